package settlement

import (
	"github.com/radieske/intramural-predictions/internal/domain"
)

// standingEffects calcula os deltas de classificação de uma partida decidida.
// Em W.O. o time ausente leva a derrota (e o contador de W.O.); o outro, a vitória.
func standingEffects(m domain.Match, sport domain.SportConfig) []domain.StandingEffect {
	home := domain.StandingEffect{Key: key(m, m.HomeTeam), GamesPlayed: 1}
	away := domain.StandingEffect{Key: key(m, m.AwayTeam), GamesPlayed: 1}

	win := func(e *domain.StandingEffect) { e.Wins, e.Points = 1, sport.PointsForWin }
	loss := func(e *domain.StandingEffect) { e.Losses, e.Points = 1, sport.PointsForLoss }

	switch m.Outcome {
	case domain.OutcomeHome:
		win(&home)
		loss(&away)
	case domain.OutcomeAway:
		win(&away)
		loss(&home)
	case domain.OutcomeDraw:
		home.Draws, home.Points = 1, sport.PointsForDraw
		away.Draws, away.Points = 1, sport.PointsForDraw
	case domain.OutcomeForfeit:
		if m.ForfeitedBy == "home" {
			loss(&home)
			home.Forfeits = 1
			win(&away)
		} else {
			loss(&away)
			away.Forfeits = 1
			win(&home)
		}
	}
	return []domain.StandingEffect{home, away}
}

// applyStanding soma (sign=1) ou subtrai (sign=-1) o efeito
func applyStanding(s domain.Standing, e domain.StandingEffect, sign int) domain.Standing {
	s.Key = e.Key
	s.Wins += sign * e.Wins
	s.Losses += sign * e.Losses
	s.Draws += sign * e.Draws
	s.Forfeits += sign * e.Forfeits
	s.Points += sign * e.Points
	s.GamesPlayed += sign * e.GamesPlayed
	return s
}

func key(m domain.Match, team string) domain.RatingKey {
	return domain.RatingKey{SportID: m.SportID, SeasonID: m.SeasonID, TeamID: team}
}
