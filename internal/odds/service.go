package odds

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/internal/store"
)

// Cache guarda cotações já calculadas
type Cache interface {
	Get(ctx context.Context, matchID string) (OddsQuote, bool, error)
	Set(ctx context.Context, q OddsQuote) error
	Delete(ctx context.Context, matchIDs ...string) error
}

// Broadcaster publica cotações recalculadas para os clientes ao vivo
type Broadcaster interface {
	Publish(ctx context.Context, q OddsQuote) error
}

// Service é o lado de leitura: cache → store → engine. Falha ao buscar
// ratings, classificação ou volume degrada para a cotação de fallback.
type Service struct {
	reader        store.Reader
	engine        *Engine
	sports        domain.SportTable
	initialRating float64
	cache         Cache
	bus           Broadcaster
	log           *zap.Logger
	metrics       *metrics.Core
}

type ServiceOption func(*Service)

func WithCache(c Cache) ServiceOption { return func(s *Service) { s.cache = c } }

func WithBroadcaster(b Broadcaster) ServiceOption { return func(s *Service) { s.bus = b } }

func WithMetrics(m *metrics.Core) ServiceOption { return func(s *Service) { s.metrics = m } }

func NewService(r store.Reader, engine *Engine, sports domain.SportTable, initialRating float64, log *zap.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{reader: r, engine: engine, sports: sports, initialRating: initialRating, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Quote devolve a cotação atual da partida. Partida inexistente é ErrNotFound;
// qualquer outra falha de leitura vira fallback.
func (s *Service) Quote(ctx context.Context, matchID string) (OddsQuote, error) {
	if s.cache != nil {
		q, ok, err := s.cache.Get(ctx, matchID)
		if err != nil {
			s.log.Warn("quote cache get failed", zap.String("match_id", matchID), zap.Error(err))
		}
		s.metrics.QuoteCache(ok)
		if ok {
			return q, nil
		}
	}

	q, err := s.compute(ctx, matchID)
	if err != nil {
		return OddsQuote{}, err
	}
	if s.cache != nil && !q.Fallback {
		if err := s.cache.Set(ctx, q); err != nil {
			s.log.Warn("quote cache set failed", zap.String("match_id", matchID), zap.Error(err))
		}
	}
	return q, nil
}

func (s *Service) compute(ctx context.Context, matchID string) (OddsQuote, error) {
	m, err := s.reader.GetMatch(ctx, matchID)
	if errors.Is(err, domain.ErrNotFound) {
		return OddsQuote{}, fmt.Errorf("match %s: %w", matchID, err)
	}
	if err != nil {
		return s.fallback(matchID, err), nil
	}

	in, err := Inputs(ctx, ReaderSource(s.reader), m, s.sports.For(m.SportID), s.initialRating)
	if err != nil {
		return s.fallback(matchID, err), nil
	}
	return s.engine.Quote(in), nil
}

func (s *Service) fallback(matchID string, cause error) OddsQuote {
	s.metrics.QuoteFallback()
	s.log.Warn("quote inputs unavailable, serving fallback", zap.String("match_id", matchID), zap.Error(cause))
	return s.engine.Fallback(matchID)
}

// Reprime invalida o cache das partidas, recalcula e publica as novas cotações
func (s *Service) Reprime(ctx context.Context, matchIDs []string) error {
	if len(matchIDs) == 0 {
		return nil
	}
	var errs []error
	if s.cache != nil {
		if err := s.cache.Delete(ctx, matchIDs...); err != nil {
			errs = append(errs, fmt.Errorf("cache delete: %w", err))
		}
	}
	for _, id := range matchIDs {
		q, err := s.Quote(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s.bus == nil {
			continue
		}
		if err := s.bus.Publish(ctx, q); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
