// Package ledger guarda saldos virtuais e apostas: colocação com odds
// congeladas, cancelamento, crédito na liquidação e estorno no undo.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/odds"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/internal/store"
)

type Config struct {
	StartingBalance decimal.Decimal
	MaxLegs         int
	InitialRating   float64
}

type LegInput struct {
	MatchID string
	Outcome domain.Outcome
}

type PlaceWagerInput struct {
	UserID   string
	SeasonID string
	Legs     []LegInput
	Stake    decimal.Decimal
}

type Ledger struct {
	store   store.Store
	engine  *odds.Engine
	sports  domain.SportTable
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Core
	now     func() time.Time
}

func New(st store.Store, engine *odds.Engine, sports domain.SportTable, cfg Config, log *zap.Logger, m *metrics.Core) *Ledger {
	if cfg.MaxLegs <= 0 {
		cfg.MaxLegs = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:   st,
		engine:  engine,
		sports:  sports,
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) validate(in PlaceWagerInput) error {
	if in.UserID == "" {
		return domain.Invalid("userId", "required")
	}
	if in.SeasonID == "" {
		return domain.Invalid("seasonId", "required")
	}
	if !in.Stake.IsPositive() {
		return domain.Invalid("stake", "must be greater than zero")
	}
	if !in.Stake.Equal(in.Stake.Round(2)) {
		return domain.Invalid("stake", "at most 2 decimal places")
	}
	if len(in.Legs) == 0 {
		return domain.Invalid("legs", "at least one leg")
	}
	if len(in.Legs) > l.cfg.MaxLegs {
		return domain.Invalid("legs", fmt.Sprintf("at most %d legs", l.cfg.MaxLegs))
	}
	seen := make(map[string]bool, len(in.Legs))
	for i, leg := range in.Legs {
		if leg.MatchID == "" {
			return domain.Invalid(fmt.Sprintf("legs[%d].matchId", i), "required")
		}
		if !leg.Outcome.Valid() {
			return domain.Invalid(fmt.Sprintf("legs[%d].outcome", i), "unknown outcome")
		}
		if seen[leg.MatchID] {
			return fmt.Errorf("match %s: %w", leg.MatchID, domain.ErrDuplicateLeg)
		}
		seen[leg.MatchID] = true
	}
	return nil
}

// PlaceWager debita o stake, congela a cotação de cada leg, grava a aposta
// pendente e soma o volume das partidas. Tudo numa transação.
func (l *Ledger) PlaceWager(ctx context.Context, in PlaceWagerInput) (domain.Wager, error) {
	if err := l.validate(in); err != nil {
		return domain.Wager{}, err
	}

	now := l.now()
	w := domain.Wager{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		SeasonID:  in.SeasonID,
		Stake:     in.Stake,
		Status:    domain.WagerPending,
		Payout:    decimal.Zero,
		CreatedAt: now,
	}

	err := l.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		legs := make([]domain.Leg, 0, len(in.Legs))
		for _, li := range in.Legs {
			leg, err := l.freezeLeg(ctx, tx, in.SeasonID, li)
			if err != nil {
				return err
			}
			legs = append(legs, leg)
		}

		bal, err := tx.Balance(ctx, in.UserID, in.SeasonID)
		if err != nil {
			return fmt.Errorf("account %s/%s: %w", in.UserID, in.SeasonID, err)
		}

		if bal.Amount.LessThan(in.Stake) {
			return fmt.Errorf("balance %s < stake %s: %w", bal.Amount.StringFixed(2), in.Stake.StringFixed(2), domain.ErrInsufficientFunds)
		}
		if err := l.move(ctx, tx, bal, w.ID, domain.EntryStake, in.Stake.Neg()); err != nil {
			return err
		}

		w.Legs = legs
		w.CombinedProb = CombinedProb(legs)
		w.CombinedMoneyline = odds.ProbToMoneyline(w.CombinedProb, l.engine.Config().ProbFloor)
		if err := tx.PutWager(ctx, w); err != nil {
			return err
		}
		for _, leg := range legs {
			if err := tx.AddVolume(ctx, leg.MatchID, leg.Outcome, in.Stake, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Wager{}, err
	}

	l.metrics.WagerPlaced(len(w.Legs), w.Stake.InexactFloat64())
	l.log.Info("wager placed",
		zap.String("wager_id", w.ID),
		zap.String("user_id", w.UserID),
		zap.Int("legs", len(w.Legs)),
		zap.String("stake", w.Stake.StringFixed(2)),
		zap.Float64("combined_prob", w.CombinedProb),
	)
	return w, nil
}

// freezeLeg trava a partida em modo compartilhado (só a liquidação espera),
// valida e fixa a probabilidade vigente do resultado escolhido
func (l *Ledger) freezeLeg(ctx context.Context, tx store.Tx, seasonID string, li LegInput) (domain.Leg, error) {
	m, err := tx.SharedMatch(ctx, li.MatchID)
	if err != nil {
		return domain.Leg{}, fmt.Errorf("match %s: %w", li.MatchID, err)
	}
	if m.SeasonID != seasonID {
		return domain.Leg{}, domain.Invalid("legs.matchId", fmt.Sprintf("match %s is not in season %s", m.ID, seasonID))
	}
	if m.Decided() {
		return domain.Leg{}, fmt.Errorf("match %s: %w", m.ID, domain.ErrMatchAlreadyDecided)
	}
	sport := l.sports.For(m.SportID)
	if li.Outcome == domain.OutcomeDraw && !sport.AllowsDraw {
		return domain.Leg{}, domain.Invalid("legs.outcome", fmt.Sprintf("sport %s does not allow draws", m.SportID))
	}

	qin, err := odds.Inputs(ctx, tx.Snapshot(), m, sport, l.cfg.InitialRating)
	if err != nil {
		return domain.Leg{}, err
	}
	q := l.engine.Quote(qin)
	return domain.Leg{
		MatchID:   m.ID,
		Outcome:   li.Outcome,
		Prob:      q.Prob(li.Outcome),
		Moneyline: q.Line(li.Outcome),
		Result:    domain.LegPending,
	}, nil
}

// CancelWager devolve o stake enquanto nenhuma partida da aposta foi decidida
func (l *Ledger) CancelWager(ctx context.Context, userID, wagerID string) error {
	err := l.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		// os legs não mudam depois da aposta: dá para travar as partidas antes da aposta
		peek, err := tx.Snapshot().Wager(ctx, wagerID)
		if err != nil {
			return fmt.Errorf("wager %s: %w", wagerID, err)
		}
		if peek.UserID != userID {
			return fmt.Errorf("wager %s: %w", wagerID, domain.ErrNotFound)
		}
		for _, leg := range peek.Legs {
			m, err := tx.SharedMatch(ctx, leg.MatchID)
			if err != nil {
				return fmt.Errorf("match %s: %w", leg.MatchID, err)
			}
			if m.Decided() {
				return fmt.Errorf("match %s decided: %w", m.ID, domain.ErrAlreadySettled)
			}
		}

		w, err := tx.Wager(ctx, wagerID)
		if err != nil {
			return fmt.Errorf("wager %s: %w", wagerID, err)
		}
		if w.Status.Terminal() {
			return fmt.Errorf("wager %s is %s: %w", wagerID, w.Status, domain.ErrAlreadySettled)
		}

		bal, err := tx.Balance(ctx, w.UserID, w.SeasonID)
		if err != nil {
			return fmt.Errorf("account %s/%s: %w", w.UserID, w.SeasonID, err)
		}
		if err := l.move(ctx, tx, bal, w.ID, domain.EntryRefund, w.Stake); err != nil {
			return err
		}
		for _, leg := range w.Legs {
			if err := tx.AddVolume(ctx, leg.MatchID, leg.Outcome, w.Stake.Neg(), -1); err != nil {
				return err
			}
		}
		return tx.DeleteWager(ctx, w.ID)
	})
	if err != nil {
		return err
	}
	l.log.Info("wager cancelled", zap.String("wager_id", wagerID), zap.String("user_id", userID))
	return nil
}

// SettleWagersForMatch grava o resultado dos legs da partida e liquida as
// apostas que ficaram terminais. Só roda dentro da transação da liquidação.
func (l *Ledger) SettleWagersForMatch(ctx context.Context, tx store.Tx, m domain.Match) ([]domain.WagerEffect, error) {
	wagers, err := tx.WagersByMatch(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	now := l.now()

	var effects []domain.WagerEffect
	for _, w := range wagers {
		i := w.LegFor(m.ID)
		if w.Legs[i].Outcome == m.Outcome {
			w.Legs[i].Result = domain.LegWon
		} else {
			w.Legs[i].Result = domain.LegLost
		}

		prev := w.Status
		credit := decimal.Zero
		if prev == domain.WagerPending {
			status, _ := Evaluate(w.Legs)
			switch status {
			case domain.WagerWon:
				credit = Payout(w.Stake, w.CombinedProb)
				bal, err := tx.Balance(ctx, w.UserID, w.SeasonID)
				if err != nil {
					return nil, fmt.Errorf("account %s/%s: %w", w.UserID, w.SeasonID, err)
				}
				if err := l.move(ctx, tx, bal, w.ID, domain.EntryPayout, credit); err != nil {
					return nil, err
				}
				w.Status, w.Payout, w.SettledBy, w.SettledAt = domain.WagerWon, credit, m.ID, &now
			case domain.WagerLost:
				w.Status, w.Payout, w.SettledBy, w.SettledAt = domain.WagerLost, decimal.Zero, m.ID, &now
			}
		}

		if err := tx.PutWager(ctx, w); err != nil {
			return nil, err
		}
		if w.Status != prev {
			effects = append(effects, domain.WagerEffect{
				WagerID: w.ID, UserID: w.UserID, SeasonID: w.SeasonID,
				PrevStatus: prev, NewStatus: w.Status, Credit: credit,
			})
		}
	}
	return effects, nil
}

// UndoSettlement é o inverso exato de SettleWagersForMatch. Apostas que
// dependiam da partida voltam a pending (ou a lost, se outro leg já perdeu)
// e o payout registrado é debitado de volta. Rodar duas vezes não muda nada.
func (l *Ledger) UndoSettlement(ctx context.Context, tx store.Tx, matchID string) ([]domain.WagerEffect, error) {
	wagers, err := tx.WagersByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	now := l.now()

	var effects []domain.WagerEffect
	for _, w := range wagers {
		if w.Status == domain.WagerVoid {
			continue
		}
		i := w.LegFor(matchID)
		if w.Legs[i].Result == domain.LegPending {
			continue
		}
		w.Legs[i].Result = domain.LegPending

		prev := w.Status
		debit := decimal.Zero
		// uma aposta ganha depende de todos os legs; uma perdida só do leg que a derrubou
		dependent := prev == domain.WagerWon || (prev == domain.WagerLost && w.SettledBy == matchID)
		if dependent {
			if prev == domain.WagerWon && w.Payout.IsPositive() {
				debit = w.Payout
				bal, err := tx.Balance(ctx, w.UserID, w.SeasonID)
				if err != nil {
					return nil, fmt.Errorf("account %s/%s: %w", w.UserID, w.SeasonID, err)
				}
				if bal.Amount.LessThan(debit) {
					return nil, fmt.Errorf("wager %s: balance %s < payout %s: %w",
						w.ID, bal.Amount.StringFixed(2), debit.StringFixed(2), domain.ErrUndoOverdraw)
				}
				if err := l.move(ctx, tx, bal, w.ID, domain.EntryPayoutReversal, debit.Neg()); err != nil {
					return nil, err
				}
			}
			w.Status, w.Payout, w.SettledBy, w.SettledAt = domain.WagerPending, decimal.Zero, "", nil
			if status, by := Evaluate(w.Legs); status == domain.WagerLost {
				w.Status, w.SettledBy, w.SettledAt = status, by, &now
			}
		}

		if err := tx.PutWager(ctx, w); err != nil {
			return nil, err
		}
		if w.Status != prev {
			effects = append(effects, domain.WagerEffect{
				WagerID: w.ID, UserID: w.UserID, SeasonID: w.SeasonID,
				PrevStatus: prev, NewStatus: w.Status, Credit: debit.Neg(),
			})
		}
	}
	return effects, nil
}

// EnsureAccount abre o saldo da temporada com o valor inicial configurado.
// Se já existe, devolve o saldo atual.
func (l *Ledger) EnsureAccount(ctx context.Context, userID, seasonID string) (domain.Balance, error) {
	if userID == "" {
		return domain.Balance{}, domain.Invalid("userId", "required")
	}
	if seasonID == "" {
		return domain.Balance{}, domain.Invalid("seasonId", "required")
	}
	var out domain.Balance
	err := l.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		b, err := l.openAccount(ctx, tx, userID, seasonID)
		out = b
		return err
	})
	return out, err
}

func (l *Ledger) openAccount(ctx context.Context, tx store.Tx, userID, seasonID string) (domain.Balance, error) {
	b, err := tx.Balance(ctx, userID, seasonID)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return b, err
	}
	b = domain.Balance{UserID: userID, SeasonID: seasonID, Amount: decimal.Zero}
	if !l.cfg.StartingBalance.IsPositive() {
		return b, tx.PutBalance(ctx, b)
	}
	if err := l.move(ctx, tx, b, "", domain.EntryGrant, l.cfg.StartingBalance); err != nil {
		return b, err
	}
	return tx.Balance(ctx, userID, seasonID)
}

// GrantBalance credita moedas virtuais (operação de admin); abre a conta se preciso
func (l *Ledger) GrantBalance(ctx context.Context, userID, seasonID string, amount decimal.Decimal) (domain.Balance, error) {
	if userID == "" {
		return domain.Balance{}, domain.Invalid("userId", "required")
	}
	if seasonID == "" {
		return domain.Balance{}, domain.Invalid("seasonId", "required")
	}
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return domain.Balance{}, domain.Invalid("amount", "must be positive with at most 2 decimal places")
	}
	var out domain.Balance
	err := l.store.AtomicUpdate(ctx, func(tx store.Tx) error {
		b, err := l.openAccount(ctx, tx, userID, seasonID)
		if err != nil {
			return err
		}
		if err := l.move(ctx, tx, b, "", domain.EntryGrant, amount); err != nil {
			return err
		}
		out, err = tx.Balance(ctx, userID, seasonID)
		return err
	})
	if err != nil {
		return domain.Balance{}, err
	}
	l.log.Info("balance granted", zap.String("user_id", userID), zap.String("season_id", seasonID), zap.String("amount", amount.StringFixed(2)))
	return out, nil
}

// move aplica delta ao saldo e grava a entrada correspondente no extrato.
// Saldo negativo nunca é gravado.
func (l *Ledger) move(ctx context.Context, tx store.Tx, b domain.Balance, wagerID string, kind domain.EntryKind, delta decimal.Decimal) error {
	next := b.Amount.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%s would leave balance at %s: %w", kind, next.StringFixed(2), domain.ErrInsufficientFunds)
	}
	b.Amount = next
	b.Version++
	if err := tx.PutBalance(ctx, b); err != nil {
		return err
	}
	return tx.AppendEntry(ctx, domain.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       b.UserID,
		SeasonID:     b.SeasonID,
		WagerID:      wagerID,
		Kind:         kind,
		Amount:       delta,
		BalanceAfter: next,
		CreatedAt:    l.now(),
	})
}

func (l *Ledger) Balance(ctx context.Context, userID, seasonID string) (domain.Balance, error) {
	b, err := l.store.GetBalance(ctx, userID, seasonID)
	if err != nil {
		return b, fmt.Errorf("account %s/%s: %w", userID, seasonID, err)
	}
	return b, nil
}

func (l *Ledger) Entries(ctx context.Context, userID, seasonID string) ([]domain.LedgerEntry, error) {
	if _, err := l.Balance(ctx, userID, seasonID); err != nil {
		return nil, err
	}
	return l.store.ListEntries(ctx, userID, seasonID)
}

// Wager só é visível para o dono
func (l *Ledger) Wager(ctx context.Context, userID, wagerID string) (domain.Wager, error) {
	w, err := l.store.GetWager(ctx, wagerID)
	if err != nil {
		return w, fmt.Errorf("wager %s: %w", wagerID, err)
	}
	if w.UserID != userID {
		return domain.Wager{}, fmt.Errorf("wager %s: %w", wagerID, domain.ErrNotFound)
	}
	return w, nil
}

func (l *Ledger) WagersForUser(ctx context.Context, userID, seasonID string) ([]domain.Wager, error) {
	return l.store.ListWagers(ctx, userID, seasonID)
}
