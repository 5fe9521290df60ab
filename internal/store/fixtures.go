package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/radieske/intramural-predictions/internal/domain"
)

// fixture é o formato do arquivo de agenda usado em ambiente local
type fixture struct {
	ID            string    `json:"id"`
	SportID       string    `json:"sportId"`
	SeasonID      string    `json:"seasonId"`
	HomeTeam      string    `json:"homeTeam"`
	AwayTeam      string    `json:"awayTeam"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Tier          string    `json:"tier"`
	NextMatchID   string    `json:"nextMatchId"`
}

// ParseFixtures lê a lista de partidas agendadas ([{...}, ...])
func ParseFixtures(r io.Reader) ([]domain.Match, error) {
	var raw []fixture
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	out := make([]domain.Match, 0, len(raw))
	for i, f := range raw {
		if f.ID == "" || f.SportID == "" || f.SeasonID == "" || f.HomeTeam == "" || f.AwayTeam == "" {
			return nil, fmt.Errorf("fixture %d: id, sportId, seasonId, homeTeam and awayTeam are required", i)
		}
		if f.HomeTeam == f.AwayTeam {
			return nil, fmt.Errorf("fixture %s: team plays itself", f.ID)
		}
		tier := domain.Tier(f.Tier)
		switch tier {
		case "":
			tier = domain.TierRegular
		case domain.TierRegular, domain.TierPlayoff, domain.TierFinal:
		default:
			return nil, fmt.Errorf("fixture %s: unknown tier %q", f.ID, f.Tier)
		}
		out = append(out, domain.Match{
			ID:            f.ID,
			SportID:       f.SportID,
			SeasonID:      f.SeasonID,
			HomeTeam:      f.HomeTeam,
			AwayTeam:      f.AwayTeam,
			ScheduledTime: f.ScheduledTime,
			Tier:          tier,
			NextMatchID:   f.NextMatchID,
			Status:        domain.MatchScheduled,
		})
	}
	return out, nil
}
