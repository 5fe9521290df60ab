package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/intramural-predictions/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de cotações recalculadas (publicadas
// pelo prediction-service depois de cada liquidação) e repassa ao Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				HandlePayload(hub, []byte(msg.Payload), log)
			}
		}
	}()
}

// HandlePayload decodifica uma mensagem do canal e faz o broadcast
func HandlePayload(hub *Hub, payload []byte, log *zap.Logger) {
	var upd events.QuoteUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		log.Warn("ws subscriber unmarshal", zap.Error(err))
		return
	}
	if upd.MatchID == "" {
		log.Warn("ws subscriber: update without matchId")
		return
	}
	hub.Broadcast(upd)
}
