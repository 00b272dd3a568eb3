package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/logging"
)

type submitApp struct {
	app   *fiber.App
	calls int
	fail  bool
}

func newSubmitApp(t *testing.T, store ReplayStore) *submitApp {
	t.Helper()
	s := &submitApp{app: fiber.New()}
	s.app.Use(func(c *fiber.Ctx) error {
		if sid := c.Get("X-Test-Session"); sid != "" {
			c.Locals(auth.ClaimsLocal, auth.Claims{SessionID: sid})
		}
		return c.Next()
	})
	s.app.Use(Idempotency(store, time.Minute, logging.Discard()))
	s.app.Post("/panels/subscription/subscribe", func(c *fiber.Ctx) error {
		s.calls++
		if s.fail {
			return fiber.NewError(fiber.StatusConflict, "panel not active")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"tx_hash": "0xabc", "call": s.calls})
	})
	return s
}

func (s *submitApp) post(t *testing.T, key, session string) (int, map[string]any, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/panels/subscription/subscribe", nil)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if session != "" {
		req.Header.Set("X-Test-Session", session)
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body, resp.Header.Get(replayedHeader)
}

func redisReplays(t *testing.T) *RedisReplays {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return NewRedisReplays(cache)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	s := newSubmitApp(t, NewMemoryReplays())
	if status, _, _ := s.post(t, "", "a"); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
	if s.calls != 0 {
		t.Fatalf("handler must not run without a key")
	}
}

func TestIdempotencyReplaysSubmittedWrite(t *testing.T) {
	stores := map[string]ReplayStore{
		"redis":  redisReplays(t),
		"memory": NewMemoryReplays(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			s := newSubmitApp(t, store)
			status, first, replayed := s.post(t, "k1", "a")
			if status != fiber.StatusAccepted || replayed != "" {
				t.Fatalf("first request: %d replayed=%q", status, replayed)
			}
			status, again, replayed := s.post(t, "k1", "a")
			if status != fiber.StatusAccepted || replayed != "true" {
				t.Fatalf("replay: %d replayed=%q", status, replayed)
			}
			if diff := cmp.Diff(first, again); diff != "" {
				t.Fatalf("replay differs (-first +replay):\n%s", diff)
			}
			if s.calls != 1 {
				t.Fatalf("write submitted %d times", s.calls)
			}
		})
	}
}

func TestIdempotencyKeysAreScopedPerSession(t *testing.T) {
	s := newSubmitApp(t, redisReplays(t))
	_, first, _ := s.post(t, "same-key", "session-a")
	_, replay, _ := s.post(t, "same-key", "session-a")
	_, other, _ := s.post(t, "same-key", "session-b")

	if first["call"] != replay["call"] {
		t.Fatalf("replay in the same session must return the stored response")
	}
	if other["call"] == first["call"] {
		t.Fatalf("another session must not see the stored response")
	}
}

func TestIdempotencyReleasesFailedRequests(t *testing.T) {
	s := newSubmitApp(t, NewMemoryReplays())
	s.fail = true
	if status, _, _ := s.post(t, "k", "a"); status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
	s.fail = false
	if status, _, replayed := s.post(t, "k", "a"); status != fiber.StatusAccepted || replayed != "" {
		t.Fatalf("a failed request must not be replayed, got %d replayed=%q", status, replayed)
	}
	if s.calls != 2 {
		t.Fatalf("expected 2 handler calls got %d", s.calls)
	}
}

func TestIdempotencyInFlight(t *testing.T) {
	store := redisReplays(t)
	if _, err := store.Reserve(context.Background(), "a:k", time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Reserve(context.Background(), "a:k", time.Minute); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight got %v", err)
	}

	s := newSubmitApp(t, store)
	if status, _, _ := s.post(t, "k", "a"); status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
}

func TestMemoryReplaysExpire(t *testing.T) {
	m := NewMemoryReplays()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := m.Reserve(ctx, "k", time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := m.Complete(ctx, "k", Replay{Status: 202}, time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if r, err := m.Reserve(ctx, "k", time.Minute); err != nil || r == nil || r.Status != 202 {
		t.Fatalf("expected stored replay, got %+v %v", r, err)
	}

	now = now.Add(2 * time.Minute)
	if r, err := m.Reserve(ctx, "k", time.Minute); err != nil || r != nil {
		t.Fatalf("expired key must be reserved again, got %+v %v", r, err)
	}
}
