package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavy/weavy/pkg/config"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(1, 3)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed, "burst bounds the first requests")

	ok, err := limiter.Allow(ctx, "ip:192.0.2.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
	assert.Equal(t, 2, limiter.Len())
}

func TestRateLimiter_Refill(t *testing.T) {
	limiter := NewRateLimiter(20, 1)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = limiter.Allow(ctx, "k")
	require.False(t, ok)

	time.Sleep(100 * time.Millisecond)
	ok, _ = limiter.Allow(ctx, "k")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.idleTTL = time.Millisecond

	_, _ = limiter.Allow(context.Background(), "k")
	require.Equal(t, 1, limiter.Len())

	time.Sleep(5 * time.Millisecond)
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.Len())
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.idleTTL = time.Millisecond
	_, _ = limiter.Allow(context.Background(), "k")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRateLimiter_Concurrency(t *testing.T) {
	limiter := NewRateLimiter(0.001, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if ok, _ := limiter.Allow(ctx, "shared"); ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestRateLimitMiddleware_Handler(t *testing.T) {
	mw := NewRateLimitMiddleware(NewRateLimiter(0.001, 2))
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(remoteAddr, forwarded string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/sign-in/google", nil)
		r.RemoteAddr = remoteAddr
		if forwarded != "" {
			r.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, request("192.0.2.1:1000", "").Code)
	assert.Equal(t, http.StatusOK, request("192.0.2.1:2000", "").Code, "port is not part of the key")

	w := request("192.0.2.1:3000", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, request("192.0.2.9:1000", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request("192.0.2.1:4000", "203.0.113.7").Code,
		"a spoofed X-Forwarded-For does not get a fresh bucket")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, fmt.Errorf("connection refused")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	handler := NewRateLimitMiddleware(brokenLimiter{}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter(t *testing.T) {
	mr, client := newRedisClient(t)
	limiter := NewDistributedRateLimiter(client, time.Minute, 2, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	assert.True(t, mr.Exists("ratelimit:ip:192.0.2.1"))
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:ip:192.0.2.1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "ip:192.0.2.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestDistributedRateLimiter_RemainingAndReset(t *testing.T) {
	_, client := newRedisClient(t)
	limiter := NewDistributedRateLimiter(client, time.Minute, 5, "test")
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	remaining, err = limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	require.NoError(t, limiter.Reset(ctx, "k"))
	remaining, err = limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	mr, client := newRedisClient(t)
	limiter := NewDistributedRateLimiter(client, time.Minute, 5, "")
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestNewLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 4}

	_, local := NewLimiter(cfg, nil).(*RateLimiter)
	assert.True(t, local)

	_, client := newRedisClient(t)
	distributed, ok := NewLimiter(cfg, client).(*DistributedRateLimiter)
	require.True(t, ok)
	assert.Equal(t, 64, distributed.limit)
	assert.Equal(t, "weavy:ratelimit", distributed.prefix)
}
