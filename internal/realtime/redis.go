package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skilllink/skilllink-api/internal/models"
)

const (
	relayChannel = "skilllink:events"
	keyPrefix    = "skilllink"
	presenceTTL  = 2 * time.Minute
)

// NewRedis creates a Redis client. An empty addr disables Redis and returns nil.
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisRelay fans hub deliveries out to every API instance over pub/sub.
type RedisRelay struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, log *zap.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, d delivery) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, relayChannel, b).Err()
}

// Start subscribes to the relay channel and forwards every delivery to the
// hub until ctx is done. It returns once the subscription is confirmed.
func (r *RedisRelay) Start(ctx context.Context, h *Hub) error {
	sub := r.rdb.Subscribe(ctx, relayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", relayChannel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var d delivery
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					r.log.Warn("relay: bad payload", zap.Error(err))
					continue
				}
				h.enqueue(d)
			}
		}
	}()
	return nil
}

// Presence records which principals hold an open socket on any instance.
// Keys: skilllink:presence:<role>_<id> -> connection count.
type Presence struct {
	rdb *redis.Client
}

func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{rdb: rdb}
}

func (p *Presence) key(pr models.Principal) string {
	return fmt.Sprintf("%s:presence:%s", keyPrefix, RoomOf(pr))
}

func (p *Presence) Connect(ctx context.Context, pr models.Principal) error {
	k := p.key(pr)
	pipe := p.rdb.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, presenceTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Touch extends the presence TTL while the socket is alive.
func (p *Presence) Touch(ctx context.Context, pr models.Principal) error {
	return p.rdb.Expire(ctx, p.key(pr), presenceTTL).Err()
}

func (p *Presence) Disconnect(ctx context.Context, pr models.Principal) error {
	k := p.key(pr)
	n, err := p.rdb.Decr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n <= 0 {
		return p.rdb.Del(ctx, k).Err()
	}
	return nil
}

func (p *Presence) IsOnline(ctx context.Context, pr models.Principal) (bool, error) {
	n, err := p.rdb.Exists(ctx, p.key(pr)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
