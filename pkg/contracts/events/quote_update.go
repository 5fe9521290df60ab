package events

import "encoding/json"

// Mensagem do canal Redis de cotações, repassada pelo hub websocket
type QuoteUpdate struct {
	MatchID string          `json:"matchId"`
	Payload json.RawMessage `json:"payload"`
}
