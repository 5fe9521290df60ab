package topics

const (
	// Liquidação
	MatchSettled = "match_settled"

	// Apostas
	WagerPlaced = "wager_placed"

	// DLQs
	MatchSettledDLQ = "match_settled_dlq"
)

// Canal Redis Pub/Sub das cotações recalculadas
const QuoteBroadcastChannel = "quote_updates_broadcast"
