package odds

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/store"
	"github.com/radieske/intramural-predictions/internal/store/memory"
)

type mapCache struct {
	quotes  map[string]OddsQuote
	deleted []string
}

func newMapCache() *mapCache { return &mapCache{quotes: map[string]OddsQuote{}} }

func (c *mapCache) Get(_ context.Context, id string) (OddsQuote, bool, error) {
	q, ok := c.quotes[id]
	return q, ok, nil
}

func (c *mapCache) Set(_ context.Context, q OddsQuote) error {
	c.quotes[q.MatchID] = q
	return nil
}

func (c *mapCache) Delete(_ context.Context, ids ...string) error {
	for _, id := range ids {
		delete(c.quotes, id)
	}
	c.deleted = append(c.deleted, ids...)
	return nil
}

type recordingBus struct{ published []OddsQuote }

func (b *recordingBus) Publish(_ context.Context, q OddsQuote) error {
	b.published = append(b.published, q)
	return nil
}

// brokenRatings simula falha de infraestrutura na leitura de ratings
type brokenRatings struct{ store.Reader }

func (brokenRatings) GetRating(context.Context, domain.RatingKey) (domain.Rating, error) {
	return domain.Rating{}, domain.ErrTransient
}

func seeded() *memory.Store {
	st := memory.New()
	st.SeedMatch(domain.Match{ID: "m1", SportID: "soccer", SeasonID: "s1", HomeTeam: "owls", AwayTeam: "foxes"})
	st.SeedMatch(domain.Match{ID: "m2", SportID: "basketball", SeasonID: "s1", HomeTeam: "owls", AwayTeam: "bears"})
	return st
}

var sports = domain.SportTable{
	"soccer":     {PointsForWin: 3, PointsForDraw: 1, KMultiplier: 1, AllowsDraw: true},
	"basketball": {PointsForWin: 2, KMultiplier: 1, AllowsDraw: false},
}

func TestServiceQuoteUsesCache(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	svc := NewService(seeded(), NewEngine(DefaultConfig()), sports, 1200, zap.NewNop(), WithCache(c))

	q, err := svc.Quote(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if q.Fallback || math.Abs(q.Sum()-1) > 1e-9 {
		t.Errorf("quote = %+v", q)
	}
	if _, ok := c.quotes["m1"]; !ok {
		t.Fatal("quote not cached")
	}

	c.quotes["m1"] = OddsQuote{MatchID: "m1", Home: 1}
	again, _ := svc.Quote(ctx, "m1")
	if again.Home != 1 {
		t.Errorf("cache bypassed: %+v", again)
	}
}

func TestServiceQuoteNoDrawSport(t *testing.T) {
	svc := NewService(seeded(), NewEngine(DefaultConfig()), sports, 1200, zap.NewNop())
	q, err := svc.Quote(context.Background(), "m2")
	if err != nil {
		t.Fatal(err)
	}
	if q.Draw != 0 {
		t.Errorf("draw = %v in a sport without draws", q.Draw)
	}
}

func TestServiceQuoteFallbackAndNotFound(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	svc := NewService(brokenRatings{seeded()}, NewEngine(DefaultConfig()), sports, 1200, zap.NewNop(), WithCache(c))

	q, err := svc.Quote(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !q.Fallback || q.Home != FallbackHome || q.Forfeit != FallbackForfeit {
		t.Errorf("quote = %+v, want fallback", q)
	}
	if _, ok := c.quotes["m1"]; ok {
		t.Error("fallback quote was cached")
	}

	if _, err := svc.Quote(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing match: %v", err)
	}
}

func TestServiceReprime(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	bus := &recordingBus{}
	svc := NewService(seeded(), NewEngine(DefaultConfig()), sports, 1200, zap.NewNop(), WithCache(c), WithBroadcaster(bus))

	c.quotes["m1"] = OddsQuote{MatchID: "m1", Home: 1}
	if err := svc.Reprime(ctx, []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	if len(bus.published) != 2 {
		t.Fatalf("published = %d", len(bus.published))
	}
	if bus.published[0].Home == 1 {
		t.Error("reprime served the stale cached quote")
	}
	if len(c.deleted) != 2 {
		t.Errorf("deleted = %v", c.deleted)
	}

	if err := svc.Reprime(ctx, []string{"missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("reprime of missing match: %v", err)
	}
}
