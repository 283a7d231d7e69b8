package redis

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
)

// memoryHook answers GET and SET in process so no server is needed.
type memoryHook struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryHook() *memoryHook {
	return &memoryHook{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (h *memoryHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("dial disabled in tests")
	}
}

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *memoryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			val, ok := h.data[fmt.Sprint(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(string(val))
			return nil
		case *redis.StatusCmd:
			key := fmt.Sprint(args[1])
			switch v := args[2].(type) {
			case []byte:
				h.data[key] = v
			default:
				h.data[key] = []byte(fmt.Sprint(v))
			}
			if len(args) >= 5 {
				h.ttls[key] = ttlFromArgs(args[3], args[4])
			}
			c.SetVal("OK")
			return nil
		}
		return fmt.Errorf("unexpected command %s", cmd.Name())
	}
}

func ttlFromArgs(unit, value any) time.Duration {
	n, _ := value.(int64)
	if fmt.Sprint(unit) == "px" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

func newStore(t *testing.T, ttl time.Duration) (*IdempotencyStore, *memoryHook) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	hook := newMemoryHook()
	client.AddHook(hook)
	return NewIdempotencyStore(client, ttl), hook
}

func TestIdempotencyStoreMissingKey(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	_, ok, err := store.Get(context.Background(), "reserve:k-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyStoreRoundTripWithTTL(t *testing.T) {
	store, hook := newStore(t, 2*time.Hour)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := middleware.IdempotencyRecord{
		Key:        "reserve:k-1",
		Error:      "booking: requested dates are not available",
		ErrorKind:  "conflict",
		OccurredAt: at,
	}
	require.NoError(t, store.Save(context.Background(), rec))

	got, ok, err := store.Get(context.Background(), "reserve:k-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Error, got.Error)
	assert.Equal(t, rec.ErrorKind, got.ErrorKind)
	assert.True(t, got.OccurredAt.Equal(at))
	assert.Equal(t, 2*time.Hour, hook.ttls[defaultPrefix+"reserve:k-1"])
}

func TestIdempotencyStoreDefaultsTTL(t *testing.T) {
	store, _ := newStore(t, 0)
	assert.Equal(t, 24*time.Hour, store.ttl)
}
