package store

import (
	"strings"
	"testing"

	"github.com/radieske/intramural-predictions/internal/domain"
)

func TestParseFixtures(t *testing.T) {
	in := `[
		{"id": "qf1", "sportId": "soccer", "seasonId": "2026-fall", "homeTeam": "owls", "awayTeam": "foxes",
		 "scheduledTime": "2026-10-03T14:00:00Z", "tier": "playoff", "nextMatchId": "sf1"},
		{"id": "r1", "sportId": "futsal", "seasonId": "2026-fall", "homeTeam": "bears", "awayTeam": "wolves",
		 "scheduledTime": "2026-10-04T18:30:00Z"}
	]`
	ms, err := ParseFixtures(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 {
		t.Fatalf("got %d matches", len(ms))
	}
	if ms[0].Tier != domain.TierPlayoff || ms[0].NextMatchID != "sf1" || ms[0].Status != domain.MatchScheduled {
		t.Errorf("qf1 = %+v", ms[0])
	}
	if ms[1].Tier != domain.TierRegular {
		t.Errorf("default tier = %q", ms[1].Tier)
	}
}

func TestParseFixturesRejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{`,
		"missing team": `[{"id": "x", "sportId": "soccer", "seasonId": "s", "homeTeam": "owls"}]`,
		"same team":    `[{"id": "x", "sportId": "soccer", "seasonId": "s", "homeTeam": "owls", "awayTeam": "owls"}]`,
		"bad tier":     `[{"id": "x", "sportId": "soccer", "seasonId": "s", "homeTeam": "owls", "awayTeam": "foxes", "tier": "friendly"}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseFixtures(strings.NewReader(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
