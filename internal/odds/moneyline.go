package odds

import (
	"fmt"
	"math"
)

// ProbToMoneyline converte probabilidade em odds americanas.
// Favorito (p >= 0.5): -round(100p/(1-p)); azarão: round(100(1-p)/p).
// p é limitado a [floor, 1-floor] para evitar divisão por zero.
func ProbToMoneyline(p, floor float64) int {
	if floor <= 0 || floor >= 0.5 {
		floor = 0.01
	}
	p = clamp(p, floor, 1-floor)
	if p >= 0.5 {
		return -int(math.Round(100 * p / (1 - p)))
	}
	return int(math.Round(100 * (1 - p) / p))
}

// MoneylineToProb é a conversão inversa (probabilidade implícita)
func MoneylineToProb(line int) (float64, error) {
	switch {
	case line == 0 || (line > -100 && line < 100):
		return 0, fmt.Errorf("invalid moneyline %d", line)
	case line > 0:
		return 100 / (float64(line) + 100), nil
	default:
		l := float64(-line)
		return l / (l + 100), nil
	}
}
