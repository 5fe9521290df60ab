package odds

import (
	"context"
	"errors"
	"fmt"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/rating"
	"github.com/radieske/intramural-predictions/internal/store"
)

// Source é de onde saem ratings, classificação e volume de uma partida.
// store.Snapshot já satisfaz; ReaderSource adapta um store.Reader.
type Source interface {
	Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error)
	Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error)
	Volume(ctx context.Context, matchID string) (domain.MarketVolume, error)
}

type readerSource struct{ r store.Reader }

func ReaderSource(r store.Reader) Source { return readerSource{r: r} }

func (s readerSource) Rating(ctx context.Context, key domain.RatingKey) (domain.Rating, error) {
	return s.r.GetRating(ctx, key)
}

func (s readerSource) Standing(ctx context.Context, key domain.RatingKey) (domain.Standing, error) {
	return s.r.GetStanding(ctx, key)
}

func (s readerSource) Volume(ctx context.Context, matchID string) (domain.MarketVolume, error) {
	return s.r.GetVolume(ctx, matchID)
}

// Inputs monta a entrada do engine para a partida. Rating ausente vira o
// valor inicial (criação lazy); qualquer outra falha é devolvida.
func Inputs(ctx context.Context, src Source, m domain.Match, sport domain.SportConfig, initialRating float64) (QuoteInput, error) {
	in := QuoteInput{MatchID: m.ID, AllowsDraw: sport.AllowsDraw}

	homeKey := domain.RatingKey{SportID: m.SportID, SeasonID: m.SeasonID, TeamID: m.HomeTeam}
	awayKey := domain.RatingKey{SportID: m.SportID, SeasonID: m.SeasonID, TeamID: m.AwayTeam}

	home, err := ratingOrDefault(ctx, src, homeKey, initialRating)
	if err != nil {
		return in, err
	}
	away, err := ratingOrDefault(ctx, src, awayKey, initialRating)
	if err != nil {
		return in, err
	}
	in.HomeRating, in.AwayRating = home.Value, away.Value

	if in.HomeForfeitRate, err = forfeitRate(ctx, src, homeKey); err != nil {
		return in, err
	}
	if in.AwayForfeitRate, err = forfeitRate(ctx, src, awayKey); err != nil {
		return in, err
	}

	vol, err := src.Volume(ctx, m.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return in, fmt.Errorf("volume %s: %w", m.ID, err)
	}
	if err == nil {
		in.Volume = &vol
	}
	return in, nil
}

func ratingOrDefault(ctx context.Context, src Source, key domain.RatingKey, initial float64) (domain.Rating, error) {
	r, err := src.Rating(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return rating.New(key, initial), nil
	}
	if err != nil {
		return r, fmt.Errorf("rating %s: %w", key.TeamID, err)
	}
	return r, nil
}

func forfeitRate(ctx context.Context, src Source, key domain.RatingKey) (float64, error) {
	s, err := src.Standing(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("standing %s: %w", key.TeamID, err)
	}
	return s.ForfeitRate(), nil
}
