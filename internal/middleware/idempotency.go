package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dmsd/dmsd/internal/auth"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyPrefix    = "dmsd:idempotency:"
	storeTimeout         = 2 * time.Second
)

// ErrInFlight is returned by Reserve when the key is held by a request that
// has not completed.
var ErrInFlight = errors.New("idempotency: request in flight")

// Replay is the stored outcome of a contract write request.
type Replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ReplayStore holds replays for the idempotency middleware.
type ReplayStore interface {
	// Reserve claims key. It returns the stored replay when the key already
	// completed, ErrInFlight when another request holds it, or (nil, nil)
	// once the caller owns the key.
	Reserve(ctx context.Context, key string, ttl time.Duration) (*Replay, error)
	Complete(ctx context.Context, key string, r Replay, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Idempotency replays the response of a write request sent again with the
// same Idempotency-Key header. Keys are scoped to the authenticated dashboard
// session, so a retried submit returns the original tx hash instead of
// signing a second transaction. Failed requests release their key.
func Idempotency(store ReplayStore, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		scoped := key
		if claims, ok := c.Locals(auth.ClaimsLocal).(auth.Claims); ok {
			scoped = claims.SessionID + ":" + key
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), storeTimeout)
		replay, err := store.Reserve(ctx, scoped, ttl)
		cancel()
		switch {
		case errors.Is(err, ErrInFlight):
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		case err != nil:
			logger.Error("idempotency reserve failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		case replay != nil:
			c.Set(replayedHeader, "true")
			if replay.ContentType != "" {
				c.Set(fiber.HeaderContentType, replay.ContentType)
			}
			return c.Status(replay.Status).Send(replay.Body)
		}

		if err := c.Next(); err != nil {
			release(store, scoped, logger)
			return err
		}

		done := Replay{
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		ctx, cancel = context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.Complete(ctx, scoped, done, ttl); err != nil {
			logger.Error("idempotency persist failed", "key", key, "error", err)
			release(store, scoped, logger)
		}
		return nil
	}
}

func release(store ReplayStore, key string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := store.Release(ctx, key); err != nil {
		logger.Warn("idempotency release failed", "key", key, "error", err)
	}
}

const inFlightMarker = "__in_flight__"

// RedisReplays keeps replays in Redis so they survive restarts and are shared
// between API replicas.
type RedisReplays struct {
	cache *redis.Client
}

// NewRedisReplays builds a Redis backed ReplayStore.
func NewRedisReplays(cache *redis.Client) *RedisReplays {
	return &RedisReplays{cache: cache}
}

func (r *RedisReplays) Reserve(ctx context.Context, key string, ttl time.Duration) (*Replay, error) {
	ok, err := r.cache.SetNX(ctx, idempotencyPrefix+key, inFlightMarker, ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}
	raw, err := r.cache.Get(ctx, idempotencyPrefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Released between SetNX and Get.
		return nil, ErrInFlight
	case err != nil:
		return nil, err
	case raw == inFlightMarker:
		return nil, ErrInFlight
	}
	var replay Replay
	if err := json.Unmarshal([]byte(raw), &replay); err != nil {
		return nil, err
	}
	return &replay, nil
}

func (r *RedisReplays) Complete(ctx context.Context, key string, replay Replay, ttl time.Duration) error {
	payload, err := json.Marshal(replay)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, idempotencyPrefix+key, payload, ttl).Err()
}

func (r *RedisReplays) Release(ctx context.Context, key string) error {
	return r.cache.Del(ctx, idempotencyPrefix+key).Err()
}

type memoryReplay struct {
	replay  *Replay
	expires time.Time
}

// MemoryReplays is the single-process ReplayStore used without Redis.
type MemoryReplays struct {
	mu      sync.Mutex
	entries map[string]memoryReplay
	now     func() time.Time
}

func NewMemoryReplays() *MemoryReplays {
	return &MemoryReplays{entries: make(map[string]memoryReplay), now: time.Now}
}

func (m *MemoryReplays) Reserve(_ context.Context, key string, ttl time.Duration) (*Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		if e.replay == nil {
			return nil, ErrInFlight
		}
		r := *e.replay
		return &r, nil
	}
	m.entries[key] = memoryReplay{expires: now.Add(ttl)}
	return nil, nil
}

func (m *MemoryReplays) Complete(_ context.Context, key string, r Replay, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryReplay{replay: &r, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryReplays) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
