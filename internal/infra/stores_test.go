package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/logging"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{RedisURL: "redis://" + mr.Addr(), ConnectRetries: 1}

	client, err := NewRedisClient(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestNewRedisClientRejectsBadConfig(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), config.Config{}, logging.Discard()); err == nil {
		t.Fatalf("empty url must fail")
	}
	if _, err := NewRedisClient(context.Background(), config.Config{RedisURL: "::not a url"}, logging.Discard()); err == nil {
		t.Fatalf("malformed url must fail")
	}
}

func TestWaitReadyRetries(t *testing.T) {
	calls := 0
	err := waitReady(context.Background(), "test", 3, logging.Discard(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on the second ping, got %v after %d calls", err, calls)
	}

	calls = 0
	err = waitReady(context.Background(), "test", 2, logging.Discard(), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected failure after 2 pings, got %v after %d calls", err, calls)
	}
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), config.Config{}, logging.Discard()); err == nil {
		t.Fatalf("empty url must fail")
	}
}
