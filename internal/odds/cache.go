package odds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/intramural-predictions/pkg/contracts/events"
)

// RedisCache guarda a cotação atual de cada partida com TTL
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func key(matchID string) string { return "odds:quote:" + matchID }

func (r *RedisCache) Get(ctx context.Context, matchID string) (OddsQuote, bool, error) {
	var q OddsQuote
	b, err := r.Client.Get(ctx, key(matchID)).Bytes()
	if err == redis.Nil {
		return q, false, nil
	}
	if err != nil {
		return q, false, err
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return q, false, err
	}
	return q, true, nil
}

func (r *RedisCache) Set(ctx context.Context, q OddsQuote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(q.MatchID), b, r.TTL).Err()
}

func (r *RedisCache) Delete(ctx context.Context, matchIDs ...string) error {
	keys := make([]string, len(matchIDs))
	for i, id := range matchIDs {
		keys[i] = key(id)
	}
	return r.Client.Del(ctx, keys...).Err()
}

// RedisBroadcaster publica as cotações no canal lido pelo hub websocket do odds-service
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{r: r, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, q OddsQuote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(events.QuoteUpdate{MatchID: q.MatchID, Payload: payload})
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, msg).Err()
}
