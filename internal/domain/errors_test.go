package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"duplicate leg", ErrDuplicateLeg, "duplicate_leg"},
		{"wrapped already scored", fmt.Errorf("settle m1: %w", ErrAlreadyScored), "already_scored"},
		{"validation", Invalid("stake", "must be positive"), "validation_error"},
		{"insufficient funds", ErrInsufficientFunds, "insufficient_funds"},
		{"not found", fmt.Errorf("match m9: %w", ErrNotFound), "not_found"},
		{"transient", ErrTransient, "transient_store_error"},
		{"unknown", errors.New("boom"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestSpecificErrorsMatchCategory(t *testing.T) {
	for _, err := range []error{ErrDuplicateLeg, ErrAlreadySettled, ErrAlreadyScored, ErrMatchAlreadyDecided, ErrUndoOverdraw} {
		if !errors.Is(err, ErrConflict) {
			t.Errorf("%v should be a conflict", err)
		}
	}
	if !errors.Is(Invalid("legs", "empty"), ErrValidation) {
		t.Error("ValidationError should unwrap to ErrValidation")
	}
}

func TestMatchWinner(t *testing.T) {
	m := Match{HomeTeam: "A", AwayTeam: "B"}
	tests := []struct {
		outcome     Outcome
		forfeitedBy string
		want        string
	}{
		{OutcomeHome, "", "A"},
		{OutcomeAway, "", "B"},
		{OutcomeDraw, "", ""},
		{OutcomeForfeit, "home", "B"},
		{OutcomeForfeit, "away", "A"},
	}
	for _, tt := range tests {
		m.Outcome = tt.outcome
		m.ForfeitedBy = tt.forfeitedBy
		if got := m.Winner(); got != tt.want {
			t.Errorf("Winner(%s/%s) = %q, want %q", tt.outcome, tt.forfeitedBy, got, tt.want)
		}
	}
}
