package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// KindTxConfirmed indicates a contract write was mined successfully.
	KindTxConfirmed = "tx_confirmed"
	// KindTxFailed indicates a contract write reverted or could not be confirmed.
	KindTxFailed = "tx_failed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	TxHash      string `json:"tx_hash,omitempty"`
	Body        string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "tx_hash", message.TxHash, "body", message.Body)
	return nil
}

// Channel returns the Redis pub/sub channel of a destination address.
func Channel(destination string) string {
	return "dmsd:notifications:" + destination
}

// RedisNotifier publishes messages as JSON on the destination's channel.
type RedisNotifier struct {
	cache *redis.Client
}

// NewRedisNotifier constructs a Redis pub/sub notifier.
func NewRedisNotifier(cache *redis.Client) *RedisNotifier {
	return &RedisNotifier{cache: cache}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.cache.Publish(ctx, Channel(message.Destination), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
