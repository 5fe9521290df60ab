package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// MatchID: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

// ServerMsg é a resposta de controle (subscribed, unsubscribed, pong, error)
type ServerMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Error   string `json:"error,omitempty"`
}
