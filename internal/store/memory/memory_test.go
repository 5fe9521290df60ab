package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/store"
)

func TestAtomicUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.AtomicUpdate(ctx, func(tx store.Tx) error {
		if err := tx.PutBalance(ctx, domain.Balance{UserID: "u1", SeasonID: "s1", Amount: decimal.NewFromInt(10)}); err != nil {
			return err
		}
		if err := tx.AddVolume(ctx, "m1", domain.OutcomeHome, decimal.NewFromInt(10), 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if _, err := s.GetBalance(ctx, "u1", "s1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("balance visible after rollback: %v", err)
	}
	v, _ := s.GetVolume(ctx, "m1")
	if !v.Total().IsZero() {
		t.Errorf("volume visible after rollback: %s", v.Total())
	}
}

func TestAtomicUpdateCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.AtomicUpdate(ctx, func(tx store.Tx) error {
		if err := tx.PutWager(ctx, domain.Wager{ID: "w1", UserID: "u1", SeasonID: "s1", Legs: []domain.Leg{{MatchID: "m1", Outcome: domain.OutcomeHome}}}); err != nil {
			return err
		}
		return tx.AddVolume(ctx, "m1", domain.OutcomeHome, decimal.NewFromInt(5), 1)
	})
	if err != nil {
		t.Fatalf("AtomicUpdate: %v", err)
	}

	w, err := s.GetWager(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWager: %v", err)
	}
	// alterar a cópia devolvida não pode afetar o estado guardado
	w.Legs[0].Result = domain.LegWon
	again, _ := s.GetWager(ctx, "w1")
	if again.Legs[0].Result == domain.LegWon {
		t.Error("stored wager aliased by the returned copy")
	}

	v, _ := s.GetVolume(ctx, "m1")
	if !v.Amounts[domain.OutcomeHome].Equal(decimal.NewFromInt(5)) || v.Counts[domain.OutcomeHome] != 1 {
		t.Errorf("volume = %+v", v)
	}
}

func TestWagersByMatchAndScheduled(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedMatch(domain.Match{ID: "m1", SeasonID: "s1", HomeTeam: "A", AwayTeam: "B"})
	s.SeedMatch(domain.Match{ID: "m2", SeasonID: "s1", HomeTeam: "C", AwayTeam: "A"})
	s.SeedMatch(domain.Match{ID: "m3", SeasonID: "s1", HomeTeam: "C", AwayTeam: "D"})
	s.SeedMatch(domain.Match{ID: "m4", SeasonID: "s1", HomeTeam: "A", AwayTeam: "D", Status: domain.MatchDecided})

	got, err := s.ScheduledMatchesFor(ctx, "s1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("scheduled matches = %+v", got)
	}

	_ = s.AtomicUpdate(ctx, func(tx store.Tx) error {
		_ = tx.PutWager(ctx, domain.Wager{ID: "w1", Legs: []domain.Leg{{MatchID: "m1"}, {MatchID: "m2"}}})
		_ = tx.PutWager(ctx, domain.Wager{ID: "w2", Legs: []domain.Leg{{MatchID: "m3"}}})
		ws, err := tx.WagersByMatch(ctx, "m2")
		if err != nil {
			return err
		}
		if len(ws) != 1 || ws[0].ID != "w1" {
			t.Errorf("WagersByMatch(m2) = %+v", ws)
		}
		return nil
	})
}
