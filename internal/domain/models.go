package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome é o resultado possível de uma partida (e a escolha de um leg)
type Outcome string

const (
	OutcomeHome    Outcome = "home"
	OutcomeAway    Outcome = "away"
	OutcomeDraw    Outcome = "draw"
	OutcomeForfeit Outcome = "forfeit"
)

// Outcomes lista os resultados na ordem canônica usada em cotações e volumes
var Outcomes = []Outcome{OutcomeHome, OutcomeAway, OutcomeDraw, OutcomeForfeit}

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeHome, OutcomeAway, OutcomeDraw, OutcomeForfeit:
		return true
	}
	return false
}

// Tier define a importância da partida (seleciona o K-factor)
type Tier string

const (
	TierRegular Tier = "regular"
	TierPlayoff Tier = "playoff"
	TierFinal   Tier = "final"
)

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchDecided   MatchStatus = "decided"
)

// Match pertence ao colaborador de agenda/chaveamento.
// O core só escreve os campos de resultado.
type Match struct {
	ID            string
	SportID       string
	SeasonID      string
	HomeTeam      string
	AwayTeam      string
	ScheduledTime time.Time
	Tier          Tier
	NextMatchID   string // vazio quando não há chaveamento

	Status      MatchStatus
	Outcome     Outcome
	HomeScore   *int
	AwayScore   *int
	IsForfeit   bool
	ForfeitedBy string // "home" | "away" quando IsForfeit
	DecidedAt   *time.Time
}

func (m Match) Decided() bool { return m.Status == MatchDecided }

// Winner retorna o time vencedor; vazio em empate
func (m Match) Winner() string {
	switch m.Outcome {
	case OutcomeHome:
		return m.HomeTeam
	case OutcomeAway:
		return m.AwayTeam
	case OutcomeForfeit:
		if m.ForfeitedBy == "home" {
			return m.AwayTeam
		}
		return m.HomeTeam
	}
	return ""
}

// RatingKey identifica um rating por (esporte, temporada, time)
type RatingKey struct {
	SportID  string
	SeasonID string
	TeamID   string
}

// Rating é o registro de habilidade de um time
type Rating struct {
	Key           RatingKey
	Value         float64
	MatchesPlayed int
	History       []string // últimos resultados (W/L/D), mais recente no fim
	// Results é o registro da temporada na ordem de liquidação; History é a cauda dele.
	// Entradas com MatchID vazio vieram de carga manual e nunca são desfeitas.
	Results []RatingResult
}

// RatingResult é um resultado pontuado, marcado pela partida que o gerou
type RatingResult struct {
	MatchID string `json:"matchId"`
	Result  string `json:"result"`
}

// Standing acumula a classificação de um time na temporada
type Standing struct {
	Key         RatingKey
	Wins        int
	Losses      int
	Draws       int
	Forfeits    int
	Points      int
	GamesPlayed int
}

// ForfeitRate é a taxa histórica de W.O. do time
func (s Standing) ForfeitRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Forfeits) / float64(s.GamesPlayed)
}

type WagerStatus string

const (
	WagerPending WagerStatus = "pending"
	WagerWon     WagerStatus = "won"
	WagerLost    WagerStatus = "lost"
	WagerVoid    WagerStatus = "void"
)

func (s WagerStatus) Terminal() bool { return s != WagerPending }

type LegResult string

const (
	LegPending LegResult = "pending"
	LegWon     LegResult = "won"
	LegLost    LegResult = "lost"
)

// Leg é uma escolha (partida + resultado) dentro de uma aposta.
// Prob e Moneyline ficam congelados no momento da aposta.
type Leg struct {
	MatchID   string
	Outcome   Outcome
	Prob      float64
	Moneyline int
	Result    LegResult
}

// Wager é a aposta de um usuário; com mais de um leg é um parlay
type Wager struct {
	ID                string
	UserID            string
	SeasonID          string
	Legs              []Leg
	Stake             decimal.Decimal
	CombinedProb      float64
	CombinedMoneyline int
	Status            WagerStatus
	Payout            decimal.Decimal // crédito efetivamente aplicado na liquidação
	SettledBy         string          // partida que levou a aposta ao estado terminal
	CreatedAt         time.Time
	SettledAt         *time.Time
}

// LegFor retorna o índice do leg da partida, ou -1
func (w Wager) LegFor(matchID string) int {
	for i, l := range w.Legs {
		if l.MatchID == matchID {
			return i
		}
	}
	return -1
}

// Clone copia a aposta sem compartilhar o slice de legs
func (w Wager) Clone() Wager {
	legs := make([]Leg, len(w.Legs))
	copy(legs, w.Legs)
	w.Legs = legs
	return w
}

// Balance é o saldo virtual de um usuário numa temporada
type Balance struct {
	UserID   string
	SeasonID string
	Amount   decimal.Decimal
	Version  int64
}

type EntryKind string

const (
	EntryGrant          EntryKind = "GRANT"
	EntryStake          EntryKind = "STAKE"
	EntryRefund         EntryKind = "REFUND"
	EntryPayout         EntryKind = "PAYOUT"
	EntryPayoutReversal EntryKind = "PAYOUT_REVERSAL"
)

// LedgerEntry registra cada movimentação de saldo
type LedgerEntry struct {
	ID           string
	UserID       string
	SeasonID     string
	WagerID      string
	Kind         EntryKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// MarketVolume agrega o volume apostado por resultado numa partida
type MarketVolume struct {
	MatchID string
	Amounts map[Outcome]decimal.Decimal
	Counts  map[Outcome]int
}

func NewMarketVolume(matchID string) MarketVolume {
	return MarketVolume{
		MatchID: matchID,
		Amounts: map[Outcome]decimal.Decimal{},
		Counts:  map[Outcome]int{},
	}
}

func (v MarketVolume) Total() decimal.Decimal {
	total := decimal.Zero
	for _, a := range v.Amounts {
		total = total.Add(a)
	}
	return total
}

// RatingEffect guarda a mudança aplicada a um rating: o delta do valor e o
// resultado que a partida acrescentou ao histórico
type RatingEffect struct {
	Key     RatingKey `json:"key"`
	MatchID string    `json:"matchId"`
	Delta   float64   `json:"delta"`
	Result  string    `json:"result"`
}

// StandingEffect guarda os deltas aplicados à classificação de um time
type StandingEffect struct {
	Key         RatingKey `json:"key"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	Forfeits    int       `json:"forfeits"`
	Points      int       `json:"points"`
	GamesPlayed int       `json:"gamesPlayed"`
}

// WagerEffect registra a transição de uma aposta causada pela partida
type WagerEffect struct {
	WagerID    string          `json:"wagerId"`
	UserID     string          `json:"userId"`
	SeasonID   string          `json:"seasonId"`
	PrevStatus WagerStatus     `json:"prevStatus"`
	NewStatus  WagerStatus     `json:"newStatus"`
	Credit     decimal.Decimal `json:"credit"`
}

// SettlementRecord é o token de undo: todos os deltas aplicados na liquidação
type SettlementRecord struct {
	MatchID         string           `json:"matchId"`
	UndoToken       string           `json:"undoToken"`
	Outcome         Outcome          `json:"outcome"`
	RatingEffects   []RatingEffect   `json:"ratingEffects"`
	StandingEffects []StandingEffect `json:"standingEffects"`
	WagerEffects    []WagerEffect    `json:"wagerEffects"`
	SettledAt       time.Time        `json:"settledAt"`
	Undone          bool             `json:"undone"`
	UndoneAt        *time.Time       `json:"undoneAt,omitempty"`
}

// Principal é a identidade já autenticada pelo colaborador de auth
type Principal struct {
	Email string
	Roles []string
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SportConfig vem da configuração: tabela de pontos e multiplicador de K
type SportConfig struct {
	PointsForWin  int     `json:"pointsForWin"`
	PointsForDraw int     `json:"pointsForDraw"`
	PointsForLoss int     `json:"pointsForLoss"`
	KMultiplier   float64 `json:"kMultiplier"`
	AllowsDraw    bool    `json:"allowsDraw"`
}

// DefaultSport é usado quando o esporte não está na tabela
var DefaultSport = SportConfig{PointsForWin: 3, PointsForDraw: 1, PointsForLoss: 0, KMultiplier: 1, AllowsDraw: true}

// SportTable é a configuração injetada por esporte
type SportTable map[string]SportConfig

func (t SportTable) For(sportID string) SportConfig {
	if c, ok := t[sportID]; ok {
		return c
	}
	return DefaultSport
}
