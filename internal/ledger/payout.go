package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
)

// Payout é o crédito de uma aposta vencedora: stake × (1 + (1-p)/p),
// arredondado em 2 casas. p é a probabilidade combinada congelada.
func Payout(stake decimal.Decimal, prob float64) decimal.Decimal {
	if prob <= 0 {
		return decimal.Zero
	}
	p := decimal.NewFromFloat(prob)
	mult := decimal.NewFromInt(1).Add(decimal.NewFromInt(1).Sub(p).Div(p))
	return stake.Mul(mult).Round(2)
}

// CombinedProb é o produto das probabilidades congeladas dos legs
func CombinedProb(legs []domain.Leg) float64 {
	p := 1.0
	for _, l := range legs {
		p *= l.Prob
	}
	return p
}

// Evaluate deriva o estado da aposta a partir dos resultados dos legs:
// qualquer leg perdido → lost (settledBy = primeiro leg perdido);
// todos ganhos → won; senão continua pending.
func Evaluate(legs []domain.Leg) (status domain.WagerStatus, settledBy string) {
	allWon := true
	for _, l := range legs {
		switch l.Result {
		case domain.LegLost:
			return domain.WagerLost, l.MatchID
		case domain.LegWon:
		default:
			allWon = false
		}
	}
	if allWon && len(legs) > 0 {
		return domain.WagerWon, ""
	}
	return domain.WagerPending, ""
}
