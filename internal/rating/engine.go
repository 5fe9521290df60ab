package rating

import (
	"math"

	"github.com/radieske/intramural-predictions/internal/domain"
)

// K-factor por importância da partida
const (
	KFactorRegular = 32.0
	KFactorPlayoff = 40.0
	KFactorFinal   = 48.0
)

// Resultado do ponto de vista do mandante
const (
	ResultHomeWin = 1.0
	ResultDraw    = 0.5
	ResultAwayWin = 0.0
)

// HistorySize é o tamanho do buffer circular de resultados recentes
const HistorySize = 5

// DefaultInitial é o rating inicial quando a configuração não define outro
const DefaultInitial = 1200.0

// ExpectedScore devolve a probabilidade esperada de A vencer B (logística, base 400)
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1 / (1 + math.Pow(10, (ratingB-ratingA)/400))
}

// UpdateRatings calcula os novos ratings após uma partida decidida.
// result: 1 vitória do mandante, 0.5 empate, 0 vitória do visitante.
func UpdateRatings(ratingHome, ratingAway, result, kFactor float64) (newHome, newAway float64) {
	expHome := ExpectedScore(ratingHome, ratingAway)
	expAway := 1 - expHome
	newHome = math.Round(ratingHome + kFactor*(result-expHome))
	newAway = math.Round(ratingAway + kFactor*((1-result)-expAway))
	return newHome, newAway
}

// KFactor seleciona o K pela fase da partida e aplica o multiplicador do esporte
func KFactor(tier domain.Tier, sportMultiplier float64) float64 {
	k := KFactorRegular
	switch tier {
	case domain.TierPlayoff:
		k = KFactorPlayoff
	case domain.TierFinal:
		k = KFactorFinal
	}
	if sportMultiplier > 0 {
		k *= sportMultiplier
	}
	return k
}

// ResultFor converte o resultado da partida em score do mandante.
// ok=false para W.O., que não altera ratings.
func ResultFor(outcome domain.Outcome) (result float64, ok bool) {
	switch outcome {
	case domain.OutcomeHome:
		return ResultHomeWin, true
	case domain.OutcomeAway:
		return ResultAwayWin, true
	case domain.OutcomeDraw:
		return ResultDraw, true
	}
	return 0, false
}

// New cria um rating lazy com o valor inicial
func New(key domain.RatingKey, initial float64) domain.Rating {
	if initial <= 0 {
		initial = DefaultInitial
	}
	return domain.Rating{Key: key, Value: initial}
}

// Update é o par de ratings atualizado junto com os efeitos para o undo
type Update struct {
	Home    domain.Rating
	Away    domain.Rating
	Effects []domain.RatingEffect
}

// Apply aplica o resultado da partida aos dois ratings. Os dois registros
// devolvidos devem ser persistidos na mesma transação. W.O. devolve ok=false.
func Apply(home, away domain.Rating, matchID string, outcome domain.Outcome, kFactor float64) (Update, bool) {
	result, ok := ResultFor(outcome)
	if !ok {
		return Update{}, false
	}

	newHome, newAway := UpdateRatings(home.Value, away.Value, result, kFactor)
	homeEff := domain.RatingEffect{Key: home.Key, MatchID: matchID, Delta: newHome - home.Value, Result: letter(result)}
	awayEff := domain.RatingEffect{Key: away.Key, MatchID: matchID, Delta: newAway - away.Value, Result: letter(1 - result)}

	home = record(home, homeEff)
	home.Value = newHome
	away = record(away, awayEff)
	away.Value = newAway

	return Update{Home: home, Away: away, Effects: []domain.RatingEffect{homeEff, awayEff}}, true
}

// Revert desfaz só o que o efeito aplicou: o delta do valor, uma partida no
// contador e a entrada daquela partida no histórico. Resultados de outras
// partidas liquidadas depois continuam valendo.
func Revert(r domain.Rating, eff domain.RatingEffect) domain.Rating {
	r.Value -= eff.Delta
	if r.MatchesPlayed > 0 {
		r.MatchesPlayed--
	}
	results := seedResults(r)
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].MatchID == eff.MatchID {
			results = append(results[:i], results[i+1:]...)
			break
		}
	}
	r.Results = results
	r.History = tail(results)
	return r
}

func record(r domain.Rating, eff domain.RatingEffect) domain.Rating {
	r.MatchesPlayed++
	r.Results = append(seedResults(r), domain.RatingResult{MatchID: eff.MatchID, Result: eff.Result})
	r.History = tail(r.Results)
	return r
}

// seedResults copia o registro; um rating carregado só com History vira
// entradas sem partida
func seedResults(r domain.Rating) []domain.RatingResult {
	if len(r.Results) == 0 {
		out := make([]domain.RatingResult, 0, len(r.History)+1)
		for _, h := range r.History {
			out = append(out, domain.RatingResult{Result: h})
		}
		return out
	}
	out := make([]domain.RatingResult, len(r.Results), len(r.Results)+1)
	copy(out, r.Results)
	return out
}

// tail devolve os últimos HistorySize resultados, mais recente no fim
func tail(results []domain.RatingResult) []string {
	start := 0
	if len(results) > HistorySize {
		start = len(results) - HistorySize
	}
	out := make([]string, 0, len(results)-start)
	for _, r := range results[start:] {
		out = append(out, r.Result)
	}
	return out
}

func letter(score float64) string {
	switch score {
	case 1:
		return "W"
	case 0:
		return "L"
	}
	return "D"
}
