package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/radieske/intramural-predictions/internal/domain"
	"github.com/radieske/intramural-predictions/internal/shared/kafka"
	"github.com/radieske/intramural-predictions/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do core: liquidação/undo para o
// chaveamento e apostas colocadas
type KafkaPublisher struct {
	Settled kafka.MessageWriter // tópico match_settled
	Wagers  kafka.MessageWriter // tópico wager_placed
	now     func() time.Time
}

func NewKafkaPublisher(settled, wagers kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Settled: settled, Wagers: wagers, now: time.Now}
}

// MatchSettled implementa settlement.Notifier
func (p *KafkaPublisher) MatchSettled(ctx context.Context, m domain.Match, rec domain.SettlementRecord) error {
	return p.publishMatch(ctx, events.MatchSettledType, m, rec)
}

// MatchUndone implementa settlement.Notifier; m é a partida antes de reabrir
func (p *KafkaPublisher) MatchUndone(ctx context.Context, m domain.Match, rec domain.SettlementRecord) error {
	return p.publishMatch(ctx, events.MatchUndoneType, m, rec)
}

func (p *KafkaPublisher) publishMatch(ctx context.Context, typ string, m domain.Match, rec domain.SettlementRecord) error {
	e := events.MatchSettled{
		Type:        typ,
		MatchID:     m.ID,
		SportID:     m.SportID,
		SeasonID:    m.SeasonID,
		NextMatchID: m.NextMatchID,
		Outcome:     string(rec.Outcome),
		WinnerTeam:  m.Winner(),
		HomeScore:   m.HomeScore,
		AwayScore:   m.AwayScore,
		UndoToken:   rec.UndoToken,
		DecidedAt:   m.DecidedAt,
		Ts:          p.now().UTC(),
	}
	// chave = matchId: settle e undo da mesma partida ficam ordenados
	if err := kafka.WriteJSON(ctx, p.Settled, m.ID, e); err != nil {
		return fmt.Errorf("publish %s %s: %w", typ, m.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, w domain.Wager) error {
	if p.Wagers == nil {
		return nil
	}
	e := events.WagerPlaced{
		WagerID:           w.ID,
		UserID:            w.UserID,
		SeasonID:          w.SeasonID,
		Stake:             w.Stake.StringFixed(2),
		CombinedProb:      w.CombinedProb,
		CombinedMoneyline: w.CombinedMoneyline,
		TsUnixMs:          p.now().UnixMilli(),
	}
	for _, l := range w.Legs {
		e.Legs = append(e.Legs, events.WagerLeg{
			MatchID:   l.MatchID,
			Outcome:   string(l.Outcome),
			Prob:      l.Prob,
			Moneyline: l.Moneyline,
		})
	}
	if err := kafka.WriteJSON(ctx, p.Wagers, w.ID, e); err != nil {
		return fmt.Errorf("publish wager_placed %s: %w", w.ID, err)
	}
	return nil
}
