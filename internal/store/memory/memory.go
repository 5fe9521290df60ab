// Package memory implementa o store em memória (ambiente local e testes).
// Um único mutex serializa as transações; o commit troca o estado inteiro.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/store"
)

type balanceKey struct{ user, season string }

type state struct {
	matches     map[string]domain.Match
	ratings     map[domain.RatingKey]domain.Rating
	standings   map[domain.RatingKey]domain.Standing
	balances    map[balanceKey]domain.Balance
	entries     []domain.LedgerEntry
	wagers      map[string]domain.Wager
	volumes     map[string]domain.MarketVolume
	settlements map[string]domain.SettlementRecord
}

func newState() *state {
	return &state{
		matches:     map[string]domain.Match{},
		ratings:     map[domain.RatingKey]domain.Rating{},
		standings:   map[domain.RatingKey]domain.Standing{},
		balances:    map[balanceKey]domain.Balance{},
		wagers:      map[string]domain.Wager{},
		volumes:     map[string]domain.MarketVolume{},
		settlements: map[string]domain.SettlementRecord{},
	}
}

// clone é raso: os valores guardados nunca são alterados no lugar
func (s *state) clone() *state {
	n := &state{
		matches:     make(map[string]domain.Match, len(s.matches)),
		ratings:     make(map[domain.RatingKey]domain.Rating, len(s.ratings)),
		standings:   make(map[domain.RatingKey]domain.Standing, len(s.standings)),
		balances:    make(map[balanceKey]domain.Balance, len(s.balances)),
		entries:     make([]domain.LedgerEntry, len(s.entries)),
		wagers:      make(map[string]domain.Wager, len(s.wagers)),
		volumes:     make(map[string]domain.MarketVolume, len(s.volumes)),
		settlements: make(map[string]domain.SettlementRecord, len(s.settlements)),
	}
	for k, v := range s.matches {
		n.matches[k] = v
	}
	for k, v := range s.ratings {
		n.ratings[k] = v
	}
	for k, v := range s.standings {
		n.standings[k] = v
	}
	for k, v := range s.balances {
		n.balances[k] = v
	}
	copy(n.entries, s.entries)
	for k, v := range s.wagers {
		n.wagers[k] = v
	}
	for k, v := range s.volumes {
		n.volumes[k] = v
	}
	for k, v := range s.settlements {
		n.settlements[k] = v
	}
	return n
}

// Store guarda todo o estado em memória
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store { return &Store{st: newState()} }

// SeedMatch grava uma partida como faria o colaborador de agenda
func (s *Store) SeedMatch(m domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Status == "" {
		m.Status = domain.MatchScheduled
	}
	s.st.matches[m.ID] = m
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// AtomicUpdate roda fn sobre uma cópia do estado e só publica a cópia se fn não falhar
func (s *Store) AtomicUpdate(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	next := s.st.clone()
	if err := fn(&tx{st: next}); err != nil {
		return err
	}
	s.st = next
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *Store) GetMatch(_ context.Context, id string) (domain.Match, error) {
	return getMatch(s.read(), id)
}

func (s *Store) GetRating(_ context.Context, key domain.RatingKey) (domain.Rating, error) {
	return getRating(s.read(), key)
}

func (s *Store) GetStanding(_ context.Context, key domain.RatingKey) (domain.Standing, error) {
	return getStanding(s.read(), key)
}

func (s *Store) GetVolume(_ context.Context, matchID string) (domain.MarketVolume, error) {
	v, ok := s.read().volumes[matchID]
	if !ok {
		return domain.NewMarketVolume(matchID), nil
	}
	return cloneVolume(v), nil
}

func (s *Store) GetWager(_ context.Context, id string) (domain.Wager, error) {
	return getWager(s.read(), id)
}

func (s *Store) ListWagers(_ context.Context, userID, seasonID string) ([]domain.Wager, error) {
	st := s.read()
	var out []domain.Wager
	for _, w := range st.wagers {
		if w.UserID == userID && (seasonID == "" || w.SeasonID == seasonID) {
			out = append(out, w.Clone())
		}
	}
	sortWagers(out)
	return out, nil
}

func (s *Store) GetBalance(_ context.Context, userID, seasonID string) (domain.Balance, error) {
	return getBalance(s.read(), userID, seasonID)
}

func (s *Store) ListEntries(_ context.Context, userID, seasonID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range s.read().entries {
		if e.UserID == userID && e.SeasonID == seasonID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) GetSettlement(_ context.Context, matchID string) (domain.SettlementRecord, error) {
	return getSettlement(s.read(), matchID)
}

func (s *Store) ScheduledMatchesFor(_ context.Context, seasonID string, teams ...string) ([]domain.Match, error) {
	want := map[string]bool{}
	for _, t := range teams {
		want[t] = true
	}
	var out []domain.Match
	for _, m := range s.read().matches {
		if m.SeasonID != seasonID || m.Decided() {
			continue
		}
		if want[m.HomeTeam] || want[m.AwayTeam] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// tx opera sobre a cópia privada do estado
type tx struct{ st *state }

func (t *tx) Match(_ context.Context, id string) (domain.Match, error) { return getMatch(t.st, id) }

// SharedMatch é igual a Match: o mutex do store já serializa tudo
func (t *tx) SharedMatch(_ context.Context, id string) (domain.Match, error) {
	return getMatch(t.st, id)
}

func (t *tx) Snapshot() store.Snapshot { return t }

func (t *tx) PutMatch(_ context.Context, m domain.Match) error {
	t.st.matches[m.ID] = m
	return nil
}

func (t *tx) Rating(_ context.Context, key domain.RatingKey) (domain.Rating, error) {
	return getRating(t.st, key)
}

func (t *tx) PutRating(_ context.Context, r domain.Rating) error {
	r.History = copyStrings(r.History)
	r.Results = append([]domain.RatingResult(nil), r.Results...)
	t.st.ratings[r.Key] = r
	return nil
}

func (t *tx) Standing(_ context.Context, key domain.RatingKey) (domain.Standing, error) {
	return getStanding(t.st, key)
}

func (t *tx) PutStanding(_ context.Context, s domain.Standing) error {
	t.st.standings[s.Key] = s
	return nil
}

func (t *tx) Balance(_ context.Context, userID, seasonID string) (domain.Balance, error) {
	return getBalance(t.st, userID, seasonID)
}

func (t *tx) PutBalance(_ context.Context, b domain.Balance) error {
	t.st.balances[balanceKey{b.UserID, b.SeasonID}] = b
	return nil
}

func (t *tx) AppendEntry(_ context.Context, e domain.LedgerEntry) error {
	t.st.entries = append(t.st.entries, e)
	return nil
}

func (t *tx) Wager(_ context.Context, id string) (domain.Wager, error) { return getWager(t.st, id) }

func (t *tx) PutWager(_ context.Context, w domain.Wager) error {
	t.st.wagers[w.ID] = w.Clone()
	return nil
}

func (t *tx) DeleteWager(_ context.Context, id string) error {
	if _, ok := t.st.wagers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.wagers, id)
	return nil
}

func (t *tx) WagersByMatch(_ context.Context, matchID string) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range t.st.wagers {
		if w.LegFor(matchID) >= 0 {
			out = append(out, w.Clone())
		}
	}
	sortWagers(out)
	return out, nil
}

func (t *tx) Volume(_ context.Context, matchID string) (domain.MarketVolume, error) {
	v, ok := t.st.volumes[matchID]
	if !ok {
		return domain.NewMarketVolume(matchID), nil
	}
	return cloneVolume(v), nil
}

func (t *tx) AddVolume(_ context.Context, matchID string, outcome domain.Outcome, amount decimal.Decimal, count int) error {
	v, ok := t.st.volumes[matchID]
	if !ok {
		v = domain.NewMarketVolume(matchID)
	} else {
		v = cloneVolume(v)
	}
	v.Amounts[outcome] = v.Amounts[outcome].Add(amount)
	v.Counts[outcome] += count
	t.st.volumes[matchID] = v
	return nil
}

func (t *tx) Settlement(_ context.Context, matchID string) (domain.SettlementRecord, error) {
	return getSettlement(t.st, matchID)
}

func (t *tx) PutSettlement(_ context.Context, rec domain.SettlementRecord) error {
	t.st.settlements[rec.MatchID] = cloneRecord(rec)
	return nil
}

func getMatch(st *state, id string) (domain.Match, error) {
	m, ok := st.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func getRating(st *state, key domain.RatingKey) (domain.Rating, error) {
	r, ok := st.ratings[key]
	if !ok {
		return domain.Rating{}, domain.ErrNotFound
	}
	r.History = copyStrings(r.History)
	r.Results = append([]domain.RatingResult(nil), r.Results...)
	return r, nil
}

func getStanding(st *state, key domain.RatingKey) (domain.Standing, error) {
	s, ok := st.standings[key]
	if !ok {
		return domain.Standing{}, domain.ErrNotFound
	}
	return s, nil
}

func getBalance(st *state, userID, seasonID string) (domain.Balance, error) {
	b, ok := st.balances[balanceKey{userID, seasonID}]
	if !ok {
		return domain.Balance{}, domain.ErrNotFound
	}
	return b, nil
}

func getWager(st *state, id string) (domain.Wager, error) {
	w, ok := st.wagers[id]
	if !ok {
		return domain.Wager{}, domain.ErrNotFound
	}
	return w.Clone(), nil
}

func getSettlement(st *state, matchID string) (domain.SettlementRecord, error) {
	rec, ok := st.settlements[matchID]
	if !ok {
		return domain.SettlementRecord{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func sortWagers(ws []domain.Wager) {
	sort.Slice(ws, func(i, j int) bool {
		if !ws[i].CreatedAt.Equal(ws[j].CreatedAt) {
			return ws[i].CreatedAt.Before(ws[j].CreatedAt)
		}
		return ws[i].ID < ws[j].ID
	})
}

func cloneVolume(v domain.MarketVolume) domain.MarketVolume {
	out := domain.NewMarketVolume(v.MatchID)
	for k, a := range v.Amounts {
		out.Amounts[k] = a
	}
	for k, c := range v.Counts {
		out.Counts[k] = c
	}
	return out
}

func cloneRecord(rec domain.SettlementRecord) domain.SettlementRecord {
	rec.RatingEffects = append([]domain.RatingEffect(nil), rec.RatingEffects...)
	rec.StandingEffects = append([]domain.StandingEffect(nil), rec.StandingEffects...)
	rec.WagerEffects = append([]domain.WagerEffect(nil), rec.WagerEffects...)
	return rec
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
