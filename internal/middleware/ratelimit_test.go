package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateStoreWindowReset(t *testing.T) {
	now := time.Now()
	store := &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: func() time.Time { return now },
	}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		count, _, err := store.Increment(ctx, "key", 10*time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, count)
	}

	// The window expires; the counter starts over.
	now = now.Add(11 * time.Minute)
	count, ttl, err := store.Increment(ctx, "key", 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 10*time.Minute, ttl)
}

func TestMemoryRateStoreKeysAreIndependent(t *testing.T) {
	store := &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
	}

	ctx := context.Background()
	count, _, err := store.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, _, err = store.Increment(ctx, "b", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
	}

	r := gin.New()
	r.POST("/login", RateLimit(store, 4, 10*time.Minute), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/login", RateLimit(nil, 0, 0), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}
}
