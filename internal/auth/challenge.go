package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownNonce is returned when a nonce was never issued, expired or was already used.
var ErrUnknownNonce = errors.New("unknown or expired nonce")

// NonceStore holds issued challenge nonces until they are consumed once.
type NonceStore interface {
	Put(ctx context.Context, nonce string, address common.Address, ttl time.Duration) error
	Take(ctx context.Context, nonce string) (common.Address, error)
}

// RedisNonceStore keeps nonces in Redis with a TTL.
type RedisNonceStore struct {
	cache *redis.Client
}

// NewRedisNonceStore constructs a Redis-backed nonce store.
func NewRedisNonceStore(cache *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{cache: cache}
}

func nonceKey(nonce string) string {
	return "auth:nonce:" + nonce
}

// Put stores nonce for address.
func (s *RedisNonceStore) Put(ctx context.Context, nonce string, address common.Address, ttl time.Duration) error {
	ok, err := s.cache.SetNX(ctx, nonceKey(nonce), address.Hex(), ttl).Result()
	if err != nil {
		return fmt.Errorf("store nonce: %w", err)
	}
	if !ok {
		return fmt.Errorf("nonce collision")
	}
	return nil
}

// Take consumes nonce atomically.
func (s *RedisNonceStore) Take(ctx context.Context, nonce string) (common.Address, error) {
	value, err := s.cache.GetDel(ctx, nonceKey(nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return common.Address{}, ErrUnknownNonce
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("consume nonce: %w", err)
	}
	return common.HexToAddress(value), nil
}

type memoryNonce struct {
	address common.Address
	expires time.Time
}

// MemoryNonceStore is the in-process fallback used without Redis.
type MemoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]memoryNonce
	now    func() time.Time
}

// NewMemoryNonceStore constructs an in-memory nonce store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: make(map[string]memoryNonce), now: time.Now}
}

// Put stores nonce for address.
func (s *MemoryNonceStore) Put(_ context.Context, nonce string, address common.Address, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.nonces {
		if now.After(v.expires) {
			delete(s.nonces, k)
		}
	}
	if _, exists := s.nonces[nonce]; exists {
		return fmt.Errorf("nonce collision")
	}
	s.nonces[nonce] = memoryNonce{address: address, expires: now.Add(ttl)}
	return nil
}

// Take consumes nonce.
func (s *MemoryNonceStore) Take(_ context.Context, nonce string) (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nonces[nonce]
	if !ok {
		return common.Address{}, ErrUnknownNonce
	}
	delete(s.nonces, nonce)
	if s.now().After(v.expires) {
		return common.Address{}, ErrUnknownNonce
	}
	return v.address, nil
}

// Challenge is the message a wallet signs to sign in.
type Challenge struct {
	Address   common.Address `json:"address"`
	ChainID   int64          `json:"chain_id"`
	Nonce     string         `json:"nonce"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Message   string         `json:"message"`
}

const messageHeader = "%s wants you to sign in with your Ethereum account:"

func formatMessage(appName string, c Challenge) string {
	var b strings.Builder
	fmt.Fprintf(&b, messageHeader+"\n", appName)
	b.WriteString(c.Address.Hex() + "\n\n")
	b.WriteString("Chain ID: " + strconv.FormatInt(c.ChainID, 10) + "\n")
	b.WriteString("Nonce: " + c.Nonce + "\n")
	b.WriteString("Issued At: " + c.IssuedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("Expiration Time: " + c.ExpiresAt.UTC().Format(time.RFC3339))
	return b.String()
}

// parsedMessage holds the fields a signed challenge message commits to.
type parsedMessage struct {
	address common.Address
	chainID int64
	nonce   string
}

func parseMessage(msg string) (parsedMessage, error) {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	if len(lines) < 2 || !common.IsHexAddress(strings.TrimSpace(lines[1])) {
		return parsedMessage{}, fmt.Errorf("%w: missing address line", ErrMalformedMessage)
	}
	out := parsedMessage{address: common.HexToAddress(strings.TrimSpace(lines[1]))}
	for _, line := range lines[2:] {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "Chain ID":
			id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return parsedMessage{}, fmt.Errorf("%w: chain id", ErrMalformedMessage)
			}
			out.chainID = id
		case "Nonce":
			out.nonce = strings.TrimSpace(value)
		}
	}
	if out.nonce == "" {
		return parsedMessage{}, fmt.Errorf("%w: missing nonce", ErrMalformedMessage)
	}
	return out, nil
}
