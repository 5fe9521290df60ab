package events

import "time"

// Tipos de MatchSettled
const (
	MatchSettledType = "SETTLED"
	MatchUndoneType  = "UNDONE"
)

// Evento publicado no tópico "match_settled" depois do commit da liquidação
// (ou do undo). O bracket-worker usa para avançar/retrair o vencedor.
type MatchSettled struct {
	Type        string     `json:"type"` // "SETTLED" | "UNDONE"
	MatchID     string     `json:"matchId"`
	SportID     string     `json:"sportId"`
	SeasonID    string     `json:"seasonId"`
	NextMatchID string     `json:"nextMatchId,omitempty"`
	Outcome     string     `json:"outcome"`
	WinnerTeam  string     `json:"winnerTeam,omitempty"` // vazio em empate
	HomeScore   *int       `json:"homeScore,omitempty"`
	AwayScore   *int       `json:"awayScore,omitempty"`
	UndoToken   string     `json:"undoToken"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	Ts          time.Time  `json:"ts"`
}
