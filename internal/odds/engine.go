package odds

import (
	"math"
	"time"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/rating"
)

// Config reúne os parâmetros ajustáveis do modelo de odds.
//
// BaseDrawRate e DrawSensitivity definem a curva de empate:
// draw = BaseDrawRate * exp(-DrawSensitivity * |diff de rating|).
// ForfeitFloor/ForfeitCeiling limitam a probabilidade de W.O.
// RatingWeight é o peso do modelo de rating na mistura com o volume
// apostado (o restante vai para o mercado). MinBlendVolume é o volume
// total mínimo para o mercado entrar na mistura. ProbFloor limita as
// probabilidades antes da conversão para moneyline.
type Config struct {
	BaseDrawRate    float64
	DrawSensitivity float64
	ForfeitFloor    float64
	ForfeitCeiling  float64
	RatingWeight    float64
	MinBlendVolume  float64
	ProbFloor       float64
}

// DefaultConfig devolve os valores padrão (não têm derivação formal; são ajustáveis)
func DefaultConfig() Config {
	return Config{
		BaseDrawRate:    0.1,
		DrawSensitivity: 0.002,
		ForfeitFloor:    0.05,
		ForfeitCeiling:  0.25,
		RatingWeight:    0.8,
		MinBlendVolume:  1,
		ProbFloor:       0.01,
	}
}

// Distribuição de fallback quando a consulta de ratings falha
const (
	FallbackHome    = 0.35
	FallbackAway    = 0.35
	FallbackDraw    = 0.10
	FallbackForfeit = 0.20
)

// OddsQuote é a cotação derivada de uma partida (nunca é fonte de verdade)
type OddsQuote struct {
	MatchID    string    `json:"matchId"`
	Home       float64   `json:"homeWinProb"`
	Away       float64   `json:"awayWinProb"`
	Draw       float64   `json:"drawProb"`
	Forfeit    float64   `json:"forfeitProb"`
	Moneyline  Moneyline `json:"moneyline"`
	Fallback   bool      `json:"fallback"`
	ComputedAt time.Time `json:"computedAt"`
}

// Moneyline é a representação americana de cada probabilidade
type Moneyline struct {
	Home    int `json:"home"`
	Away    int `json:"away"`
	Draw    int `json:"draw"`
	Forfeit int `json:"forfeit"`
}

// Prob devolve a probabilidade do resultado escolhido
func (q OddsQuote) Prob(o domain.Outcome) float64 {
	switch o {
	case domain.OutcomeHome:
		return q.Home
	case domain.OutcomeAway:
		return q.Away
	case domain.OutcomeDraw:
		return q.Draw
	case domain.OutcomeForfeit:
		return q.Forfeit
	}
	return 0
}

// Line devolve a moneyline do resultado escolhido
func (q OddsQuote) Line(o domain.Outcome) int {
	switch o {
	case domain.OutcomeHome:
		return q.Moneyline.Home
	case domain.OutcomeAway:
		return q.Moneyline.Away
	case domain.OutcomeDraw:
		return q.Moneyline.Draw
	case domain.OutcomeForfeit:
		return q.Moneyline.Forfeit
	}
	return 0
}

// Sum é a soma das quatro probabilidades
func (q OddsQuote) Sum() float64 { return q.Home + q.Away + q.Draw + q.Forfeit }

// QuoteInput são os dados de mercado para uma partida
type QuoteInput struct {
	MatchID         string
	HomeRating      float64
	AwayRating      float64
	HomeForfeitRate float64
	AwayForfeitRate float64
	AllowsDraw      bool
	Volume          *domain.MarketVolume // opcional
}

// Engine converte ratings (e volume opcional) em probabilidades normalizadas
type Engine struct {
	cfg Config
	now func() time.Time
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

func (e *Engine) Config() Config { return e.cfg }

// Quote calcula a cotação. O resultado sempre soma 1.
func (e *Engine) Quote(in QuoteInput) OddsQuote {
	diff := in.HomeRating - in.AwayRating
	pHome := rating.ExpectedScore(in.HomeRating, in.AwayRating)

	draw := 0.0
	if in.AllowsDraw {
		draw = e.cfg.BaseDrawRate * math.Exp(-e.cfg.DrawSensitivity*math.Abs(diff))
	}

	// probabilidade de qualquer um dos times não comparecer
	forfeit := 1 - (1-clamp01(in.HomeForfeitRate))*(1-clamp01(in.AwayForfeitRate))
	forfeit = clamp(forfeit, e.cfg.ForfeitFloor, e.cfg.ForfeitCeiling)

	rest := math.Max(0, 1-draw-forfeit)
	probs := [4]float64{pHome * rest, (1 - pHome) * rest, draw, forfeit}

	if market, ok := e.marketShares(in.Volume); ok {
		w := clamp01(e.cfg.RatingWeight)
		for i := range probs {
			probs[i] = w*probs[i] + (1-w)*market[i]
		}
		if !in.AllowsDraw {
			probs[2] = 0
		}
	}

	probs = normalize(probs)
	return e.build(in.MatchID, probs, false)
}

// Fallback devolve a distribuição documentada de 35/35/10/20
func (e *Engine) Fallback(matchID string) OddsQuote {
	probs := [4]float64{FallbackHome, FallbackAway, FallbackDraw, FallbackForfeit}
	return e.build(matchID, probs, true)
}

func (e *Engine) build(matchID string, p [4]float64, fallback bool) OddsQuote {
	return OddsQuote{
		MatchID: matchID,
		Home:    p[0],
		Away:    p[1],
		Draw:    p[2],
		Forfeit: p[3],
		Moneyline: Moneyline{
			Home:    ProbToMoneyline(p[0], e.cfg.ProbFloor),
			Away:    ProbToMoneyline(p[1], e.cfg.ProbFloor),
			Draw:    ProbToMoneyline(p[2], e.cfg.ProbFloor),
			Forfeit: ProbToMoneyline(p[3], e.cfg.ProbFloor),
		},
		Fallback:   fallback,
		ComputedAt: e.now().UTC(),
	}
}

// marketShares devolve a fração do volume apostado em cada resultado
func (e *Engine) marketShares(v *domain.MarketVolume) ([4]float64, bool) {
	var out [4]float64
	if v == nil {
		return out, false
	}
	total, _ := v.Total().Float64()
	if total <= 0 || total < e.cfg.MinBlendVolume {
		return out, false
	}
	for i, o := range domain.Outcomes {
		amt, _ := v.Amounts[o].Float64()
		out[i] = amt / total
	}
	return out, true
}

func normalize(p [4]float64) [4]float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	if sum <= 0 {
		return [4]float64{FallbackHome, FallbackAway, FallbackDraw, FallbackForfeit}
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp01(x float64) float64 { return clamp(x, 0, 1) }
