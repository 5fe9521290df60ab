package events

type WagerLeg struct {
	MatchID   string  `json:"match_id"`
	Outcome   string  `json:"outcome"`
	Prob      float64 `json:"prob"`
	Moneyline int     `json:"moneyline"`
}

type WagerPlaced struct {
	WagerID           string     `json:"wager_id"`
	UserID            string     `json:"user_id"`
	SeasonID          string     `json:"season_id"`
	Stake             string     `json:"stake"` // decimal com 2 casas
	CombinedProb      float64    `json:"combined_prob"`
	CombinedMoneyline int        `json:"combined_moneyline"`
	Legs              []WagerLeg `json:"legs"`
	TsUnixMs          int64      `json:"ts_unix_ms"`
}
