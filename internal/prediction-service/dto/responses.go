package dto

import (
	"time"

	"github.com/radieske/intramural-predictions/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type BalanceResponse struct {
	UserID   string `json:"userId"`
	SeasonID string `json:"seasonId"`
	Balance  string `json:"balance"`
	Version  int64  `json:"version"`
}

type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	WagerID      string    `json:"wagerId,omitempty"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LegResponse struct {
	MatchID   string  `json:"matchId"`
	Outcome   string  `json:"outcome"`
	Prob      float64 `json:"prob"`
	Moneyline int     `json:"moneyline"`
	Result    string  `json:"result"`
}

type WagerResponse struct {
	ID                string        `json:"id"`
	SeasonID          string        `json:"seasonId"`
	Stake             string        `json:"stake"`
	CombinedProb      float64       `json:"combinedProb"`
	CombinedMoneyline int           `json:"combinedMoneyline"`
	Status            string        `json:"status"`
	Payout            string        `json:"payout"`
	SettledBy         string        `json:"settledBy,omitempty"`
	Legs              []LegResponse `json:"legs"`
	CreatedAt         time.Time     `json:"createdAt"`
	SettledAt         *time.Time    `json:"settledAt,omitempty"`
}

type SettlementResponse struct {
	MatchID       string     `json:"matchId"`
	Outcome       string     `json:"outcome"`
	UndoToken     string     `json:"undoToken"`
	WagersSettled int        `json:"wagersSettled"`
	SettledAt     time.Time  `json:"settledAt"`
	Undone        bool       `json:"undone"`
	UndoneAt      *time.Time `json:"undoneAt,omitempty"`
	Reverted      *bool      `json:"reverted,omitempty"` // só na resposta do undo
}

func Balance(b domain.Balance) BalanceResponse {
	return BalanceResponse{
		UserID:   b.UserID,
		SeasonID: b.SeasonID,
		Balance:  b.Amount.StringFixed(2),
		Version:  b.Version,
	}
}

func Entries(es []domain.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, LedgerEntryResponse{
			ID:           e.ID,
			WagerID:      e.WagerID,
			Kind:         string(e.Kind),
			Amount:       e.Amount.StringFixed(2),
			BalanceAfter: e.BalanceAfter.StringFixed(2),
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

func Wager(w domain.Wager) WagerResponse {
	resp := WagerResponse{
		ID:                w.ID,
		SeasonID:          w.SeasonID,
		Stake:             w.Stake.StringFixed(2),
		CombinedProb:      w.CombinedProb,
		CombinedMoneyline: w.CombinedMoneyline,
		Status:            string(w.Status),
		Payout:            w.Payout.StringFixed(2),
		SettledBy:         w.SettledBy,
		Legs:              make([]LegResponse, 0, len(w.Legs)),
		CreatedAt:         w.CreatedAt,
		SettledAt:         w.SettledAt,
	}
	for _, l := range w.Legs {
		resp.Legs = append(resp.Legs, LegResponse{
			MatchID:   l.MatchID,
			Outcome:   string(l.Outcome),
			Prob:      l.Prob,
			Moneyline: l.Moneyline,
			Result:    string(l.Result),
		})
	}
	return resp
}

func Wagers(ws []domain.Wager) []WagerResponse {
	out := make([]WagerResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, Wager(w))
	}
	return out
}

func Settlement(rec domain.SettlementRecord) SettlementResponse {
	return SettlementResponse{
		MatchID:       rec.MatchID,
		Outcome:       string(rec.Outcome),
		UndoToken:     rec.UndoToken,
		WagersSettled: len(rec.WagerEffects),
		SettledAt:     rec.SettledAt,
		Undone:        rec.Undone,
		UndoneAt:      rec.UndoneAt,
	}
}
