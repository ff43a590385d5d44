package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vocalroom/internal/calendar"
	"vocalroom/internal/model"
)

// genKey versions the cache: every mutation bumps it, so stale month
// snapshots simply expire instead of being hunted down key by key.
const genKey = "reservations:gen"

// Cached wraps a Backend with a Redis read-through cache for List calls.
// A month change in the UI triggers a fresh List; with several clients
// watching the same month the backend only pays once per TTL.
type Cached struct {
	Backend
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCached decorates next with Redis caching.
func NewCached(next Backend, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{Backend: next, redis: rdb, ttl: ttl, logger: logger}
}

func (c *Cached) listKey(ctx context.Context, from, to calendar.Date) string {
	gen, err := c.redis.Get(ctx, genKey).Result()
	if err != nil {
		gen = "0"
	}
	return fmt.Sprintf("reservations:%s:%s:%s", gen, from.ISO(), to.ISO())
}

func (c *Cached) List(ctx context.Context, from, to calendar.Date) ([]model.Reservation, error) {
	key := c.listKey(ctx, from, to)

	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var out []model.Reservation
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}

	out, err := c.Backend.List(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("cache write failed")
		}
	}
	return out, nil
}

func (c *Cached) invalidate(ctx context.Context) {
	if err := c.redis.Incr(ctx, genKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func (c *Cached) Create(ctx context.Context, date string, hour int, user string) (model.Reservation, error) {
	r, err := c.Backend.Create(ctx, date, hour, user)
	if err != nil {
		return model.Reservation{}, err
	}
	c.invalidate(ctx)
	return r, nil
}

func (c *Cached) UpdateUser(ctx context.Context, id int64, newUser string) error {
	if err := c.Backend.UpdateUser(ctx, id, newUser); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cached) Delete(ctx context.Context, id int64) error {
	if err := c.Backend.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Ping checks the cache and, when the wrapped backend supports it, the
// backend itself. A dead Redis only degrades caching, so it is logged but
// does not fail readiness.
func (c *Cached) Ping(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cache ping failed")
	}
	if p, ok := c.Backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
