// Package settlement decide partidas: atualiza ratings, liquida apostas e
// classificação numa única transação, e guarda o registro que permite o undo.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/ledger"
	"github.com/radieske/intramural-predictions/internal/rating"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/internal/store"
)

// Notifier avisa o chaveamento (avanço/retração do vencedor)
type Notifier interface {
	MatchSettled(ctx context.Context, m domain.Match, rec domain.SettlementRecord) error
	MatchUndone(ctx context.Context, m domain.Match, rec domain.SettlementRecord) error
}

// Primer recalcula e publica as cotações das partidas afetadas
type Primer interface {
	Reprime(ctx context.Context, matchIDs []string) error
}

type SettleInput struct {
	MatchID     string
	HomeScore   *int
	AwayScore   *int
	IsForfeit   bool
	ForfeitedBy string // "home" | "away"
}

type Engine struct {
	store         store.Store
	ledger        *ledger.Ledger
	sports        domain.SportTable
	initialRating float64
	notifier      Notifier
	primer        Primer
	log           *zap.Logger
	metrics       *metrics.Core
	now           func() time.Time
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithPrimer(p Primer) Option { return func(e *Engine) { e.primer = p } }

func WithMetrics(m *metrics.Core) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(st store.Store, l *ledger.Ledger, sports domain.SportTable, initialRating float64, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:         st,
		ledger:        l,
		sports:        sports,
		initialRating: initialRating,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func validate(in SettleInput) error {
	if in.MatchID == "" {
		return domain.Invalid("matchId", "required")
	}
	if in.IsForfeit {
		if in.ForfeitedBy != "home" && in.ForfeitedBy != "away" {
			return domain.Invalid("forfeitedBy", "must be home or away")
		}
		return nil
	}
	if in.HomeScore == nil || in.AwayScore == nil {
		return domain.Invalid("score", "homeScore and awayScore are required")
	}
	if *in.HomeScore < 0 || *in.AwayScore < 0 {
		return domain.Invalid("score", "must not be negative")
	}
	return nil
}

func outcomeOf(in SettleInput) domain.Outcome {
	switch {
	case in.IsForfeit:
		return domain.OutcomeForfeit
	case *in.HomeScore > *in.AwayScore:
		return domain.OutcomeHome
	case *in.HomeScore < *in.AwayScore:
		return domain.OutcomeAway
	}
	return domain.OutcomeDraw
}

// Settle decide a partida. Uma segunda chamada (ou uma concorrente que
// perdeu a corrida) recebe ErrAlreadyScored sem alterar nada.
func (e *Engine) Settle(ctx context.Context, in SettleInput) (domain.SettlementRecord, error) {
	if err := validate(in); err != nil {
		return domain.SettlementRecord{}, err
	}
	start := time.Now()

	var (
		rec     domain.SettlementRecord
		decided domain.Match
	)
	err := e.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		m, err := tx.Match(ctx, in.MatchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", in.MatchID, err)
		}
		if m.Decided() {
			return fmt.Errorf("match %s: %w", m.ID, domain.ErrAlreadyScored)
		}
		sport := e.sports.For(m.SportID)
		outcome := outcomeOf(in)
		if outcome == domain.OutcomeDraw && !sport.AllowsDraw {
			return domain.Invalid("score", fmt.Sprintf("sport %s does not allow draws", m.SportID))
		}

		now := e.now()
		m.Status = domain.MatchDecided
		m.Outcome = outcome
		m.IsForfeit = in.IsForfeit
		m.ForfeitedBy = ""
		m.HomeScore, m.AwayScore = nil, nil
		if in.IsForfeit {
			m.ForfeitedBy = in.ForfeitedBy
		} else {
			hs, as := *in.HomeScore, *in.AwayScore
			m.HomeScore, m.AwayScore = &hs, &as
		}
		m.DecidedAt = &now
		if err := tx.PutMatch(ctx, m); err != nil {
			return err
		}

		rec = domain.SettlementRecord{
			MatchID:   m.ID,
			UndoToken: uuid.NewString(),
			Outcome:   outcome,
			SettledAt: now,
		}

		if rec.RatingEffects, err = e.applyRatings(ctx, tx, m, sport); err != nil {
			return err
		}
		if rec.WagerEffects, err = e.ledger.SettleWagersForMatch(ctx, tx, m); err != nil {
			return err
		}
		if rec.StandingEffects, err = e.applyStandings(ctx, tx, standingEffects(m, sport), 1); err != nil {
			return err
		}
		decided = m
		return tx.PutSettlement(ctx, rec)
	})
	if err != nil {
		return domain.SettlementRecord{}, err
	}

	e.metrics.MatchSettled(string(rec.Outcome), time.Since(start).Seconds())
	for _, we := range rec.WagerEffects {
		e.metrics.WagerSettled(string(we.NewStatus), we.Credit.InexactFloat64())
	}
	e.log.Info("match settled",
		zap.String("match_id", rec.MatchID),
		zap.String("outcome", string(rec.Outcome)),
		zap.String("undo_token", rec.UndoToken),
		zap.Int("wagers_settled", len(rec.WagerEffects)),
	)

	e.afterCommit(ctx, decided, rec, false)
	return rec, nil
}

func (e *Engine) applyRatings(ctx context.Context, tx store.Tx, m domain.Match, sport domain.SportConfig) ([]domain.RatingEffect, error) {
	if m.Outcome == domain.OutcomeForfeit {
		return nil, nil
	}
	home, err := e.ratingFor(ctx, tx, key(m, m.HomeTeam))
	if err != nil {
		return nil, err
	}
	away, err := e.ratingFor(ctx, tx, key(m, m.AwayTeam))
	if err != nil {
		return nil, err
	}
	upd, ok := rating.Apply(home, away, m.ID, m.Outcome, rating.KFactor(m.Tier, sport.KMultiplier))
	if !ok {
		return nil, nil
	}
	if err := tx.PutRating(ctx, upd.Home); err != nil {
		return nil, err
	}
	if err := tx.PutRating(ctx, upd.Away); err != nil {
		return nil, err
	}
	return upd.Effects, nil
}

func (e *Engine) ratingFor(ctx context.Context, tx store.Tx, k domain.RatingKey) (domain.Rating, error) {
	r, err := tx.Rating(ctx, k)
	if errors.Is(err, domain.ErrNotFound) {
		return rating.New(k, e.initialRating), nil
	}
	if err != nil {
		return r, fmt.Errorf("rating %s: %w", k.TeamID, err)
	}
	return r, nil
}

func (e *Engine) applyStandings(ctx context.Context, tx store.Tx, effs []domain.StandingEffect, sign int) ([]domain.StandingEffect, error) {
	for _, eff := range effs {
		s, err := tx.Standing(ctx, eff.Key)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("standing %s: %w", eff.Key.TeamID, err)
		}
		if err := tx.PutStanding(ctx, applyStanding(s, eff, sign)); err != nil {
			return nil, err
		}
	}
	return effs, nil
}

// Undo reverte tudo o que o registro da partida aplicou e volta a partida
// para scheduled. Num registro já desfeito devolve reverted=false.
func (e *Engine) Undo(ctx context.Context, matchID string) (rec domain.SettlementRecord, reverted bool, err error) {
	if matchID == "" {
		return rec, false, domain.Invalid("matchId", "required")
	}

	var reopened domain.Match
	var undoEffects []domain.WagerEffect
	err = e.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		m, err := tx.Match(ctx, matchID)
		if err != nil {
			return fmt.Errorf("match %s: %w", matchID, err)
		}
		rec, err = tx.Settlement(ctx, matchID)
		if err != nil {
			return fmt.Errorf("settlement for match %s: %w", matchID, err)
		}
		if rec.Undone {
			return nil
		}

		for _, eff := range rec.RatingEffects {
			r, err := tx.Rating(ctx, eff.Key)
			if err != nil {
				return fmt.Errorf("rating %s: %w", eff.Key.TeamID, err)
			}
			if err := tx.PutRating(ctx, rating.Revert(r, eff)); err != nil {
				return err
			}
		}
		if undoEffects, err = e.ledger.UndoSettlement(ctx, tx, matchID); err != nil {
			return err
		}
		if _, err := e.applyStandings(ctx, tx, rec.StandingEffects, -1); err != nil {
			return err
		}

		prev := m
		m.Status = domain.MatchScheduled
		m.Outcome = ""
		m.HomeScore, m.AwayScore = nil, nil
		m.IsForfeit, m.ForfeitedBy = false, ""
		m.DecidedAt = nil
		if err := tx.PutMatch(ctx, m); err != nil {
			return err
		}

		now := e.now()
		rec.Undone, rec.UndoneAt = true, &now
		reverted = true
		reopened = prev
		return tx.PutSettlement(ctx, rec)
	})
	if err != nil {
		return domain.SettlementRecord{}, false, err
	}
	if !reverted {
		e.log.Info("settlement already undone", zap.String("match_id", matchID))
		return rec, false, nil
	}

	e.metrics.SettlementUndone()
	for _, we := range undoEffects {
		e.metrics.WagerSettled(string(we.NewStatus), 0)
	}
	e.log.Info("settlement undone",
		zap.String("match_id", matchID),
		zap.String("undo_token", rec.UndoToken),
		zap.Int("wagers_reverted", len(undoEffects)),
	)

	e.afterCommit(ctx, reopened, rec, true)
	return rec, true, nil
}

// afterCommit roda os efeitos fora da transação. Falhas não desfazem a
// liquidação: ficam no log e na métrica para reconciliação.
func (e *Engine) afterCommit(ctx context.Context, m domain.Match, rec domain.SettlementRecord, undone bool) {
	if e.notifier != nil {
		var err error
		if undone {
			err = e.notifier.MatchUndone(ctx, m, rec)
		} else {
			err = e.notifier.MatchSettled(ctx, m, rec)
		}
		if err != nil {
			e.metrics.NotifyFailed("bracket")
			e.log.Warn("bracket notification failed; match state and bracket may diverge",
				zap.String("match_id", m.ID),
				zap.Bool("undo", undone),
				zap.Error(err),
			)
		}
	}

	if e.primer == nil {
		return
	}
	ids := []string{m.ID}
	scheduled, err := e.store.ScheduledMatchesFor(ctx, m.SeasonID, m.HomeTeam, m.AwayTeam)
	if err != nil {
		e.log.Warn("list matches to reprime failed", zap.String("match_id", m.ID), zap.Error(err))
	}
	for _, s := range scheduled {
		if s.ID != m.ID {
			ids = append(ids, s.ID)
		}
	}
	if err := e.primer.Reprime(ctx, ids); err != nil {
		e.metrics.NotifyFailed("reprime")
		e.log.Warn("odds reprime failed", zap.Strings("match_ids", ids), zap.Error(err))
	}
}
