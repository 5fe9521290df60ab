package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/internal/bracket-worker/client"
	"github.com/radieske/intramural-predictions/internal/shared/kafka"
	"github.com/radieske/intramural-predictions/internal/shared/metrics"
	"github.com/radieske/intramural-predictions/pkg/contracts/events"
)

// Fetcher é o subconjunto de *kafka.Reader usado pelo loop
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Bracket é o colaborador de chaveamento (client.Client em produção)
type Bracket interface {
	Advance(ctx context.Context, a client.Advance) error
	Retract(ctx context.Context, r client.Retract) error
}

// DLQMessage é o que vai para match_settled_dlq
type DLQMessage struct {
	Reason    string          `json:"reason"`
	Partition int             `json:"partition"`
	Offset    int64           `json:"offset"`
	Value     json.RawMessage `json:"value"`
	FailedAt  time.Time       `json:"failedAt"`
}

// Consumer lê match_settled e avança/retrai o vencedor no chaveamento.
// O offset só é commitado depois do processamento (ou do envio à DLQ);
// sem DLQ, a mensagem que falhou é reprocessada até dar certo.
type Consumer struct {
	src     Fetcher
	bracket Bracket
	dlq     kafka.MessageWriter
	log     *zap.Logger
	metrics *metrics.Bracket
	backoff time.Duration
}

func New(src Fetcher, b Bracket, dlq kafka.MessageWriter, log *zap.Logger, m *metrics.Bracket) *Consumer {
	return &Consumer{src: src, bracket: b, dlq: dlq, log: log, metrics: m, backoff: time.Second}
}

// Run processa mensagens até o contexto acabar
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.src.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("kafka fetch", zap.Error(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		// o reader já avançou: buscar a próxima e commitá-la pularia esta
		for {
			err := c.Handle(ctx, msg)
			if err == nil {
				break
			}
			c.log.Error("bracket event not handled", zap.Int64("offset", msg.Offset), zap.Error(err))
			if !c.sleep(ctx) {
				return nil
			}
		}
		if err := c.src.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("kafka commit", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.backoff):
		return true
	}
}

// Handle processa uma mensagem. Erro quando ela não foi tratada nem aceita
// pela DLQ; nesse caso o offset não pode ser commitado.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var e events.MatchSettled
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return c.deadLetter(ctx, msg, "", fmt.Errorf("decode match_settled: %w", err))
	}
	log := c.log.With(zap.String("type", e.Type), zap.String("match_id", e.MatchID), zap.String("next_match_id", e.NextMatchID))

	if e.NextMatchID == "" {
		c.metrics.Event(e.Type, "skipped")
		log.Debug("match outside a bracket")
		return nil
	}

	var err error
	switch e.Type {
	case events.MatchSettledType:
		if e.WinnerTeam == "" {
			c.metrics.Event(e.Type, "skipped")
			log.Warn("bracket match ended without a winner; nothing to advance")
			return nil
		}
		err = c.bracket.Advance(ctx, client.Advance{
			MatchID:     e.MatchID,
			NextMatchID: e.NextMatchID,
			WinnerTeam:  e.WinnerTeam,
			UndoToken:   e.UndoToken,
		})
		if err == nil {
			c.metrics.Event(e.Type, "advanced")
			log.Info("winner advanced", zap.String("winner", e.WinnerTeam))
		}
	case events.MatchUndoneType:
		err = c.bracket.Retract(ctx, client.Retract{
			MatchID:     e.MatchID,
			NextMatchID: e.NextMatchID,
			UndoToken:   e.UndoToken,
		})
		if err == nil {
			c.metrics.Event(e.Type, "retracted")
			log.Info("advance retracted")
		}
	default:
		err = fmt.Errorf("unknown event type %q", e.Type)
	}
	if err != nil {
		return c.deadLetter(ctx, msg, e.Type, err)
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, typ string, cause error) error {
	c.log.Error("bracket event failed", zap.String("type", typ), zap.Int64("offset", msg.Offset), zap.Error(cause))
	if c.dlq == nil {
		c.metrics.Event(typ, "failed")
		return fmt.Errorf("no dlq configured: %w", cause)
	}
	value := json.RawMessage(msg.Value)
	if !json.Valid(msg.Value) {
		value, _ = json.Marshal(string(msg.Value))
	}
	err := kafka.WriteJSON(ctx, c.dlq, string(msg.Key), DLQMessage{
		Reason:    cause.Error(),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Value:     value,
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		return errors.Join(cause, fmt.Errorf("dlq: %w", err))
	}
	c.metrics.Event(typ, "dlq")
	return nil
}
