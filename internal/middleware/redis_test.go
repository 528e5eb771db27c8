package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/formbox/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	return serve(e, httptest.NewRequest(http.MethodGet, path, nil))
}

func TestRedisCache_HitMissAndPurge(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := testCacheConfig()
	purger := NewCachePurger(cfg, rdb, nil)

	calls := 0
	e := echo.New()
	e.GET("/forms/:form_id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("form_id"), "calls": calls})
	}, NewRedisCache(cfg, rdb, nil))

	first := get(e, "/forms/1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	hit := get(e, "/forms/1")
	require.Equal(t, http.StatusOK, hit.Code)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), hit.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, hit.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	assert.Equal(t, "MISS", get(e, "/forms/2").Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	purger.Purge(context.Background())
	gen, err := mr.Get(generationKey(cfg.Prefix))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	assert.Equal(t, []string{generationKey(cfg.Prefix)}, mr.Keys())

	assert.Equal(t, "MISS", get(e, "/forms/1").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(e, "/forms/1").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrorsAndCookies(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := testCacheConfig()

	calls := 0
	e := echo.New()
	cache := NewRedisCache(cfg, rdb, nil)
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Form not found"})
	}, cache)
	e.GET("/cookie", func(c echo.Context) error {
		calls++
		c.SetCookie(&http.Cookie{Name: "session", Value: "x"})
		return c.String(http.StatusOK, "ok")
	}, cache)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNotFound, get(e, "/missing").Code)
		assert.Equal(t, "MISS", get(e, "/cookie").Header().Get("X-Cache"))
	}
	assert.Equal(t, 4, calls)
}

func TestRedisCache_PurgeDuringReadIsNotStored(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := testCacheConfig()
	purger := NewCachePurger(cfg, rdb, nil)

	deleted := false
	calls := 0
	e := echo.New()
	e.GET("/forms/:form_id", func(c echo.Context) error {
		calls++
		if deleted {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Form not found"})
		}
		// the form has been read; a delete commits and purges before the
		// response goes out
		body := echo.Map{"id": 1, "title": "gone soon"}
		deleted = true
		purger.Purge(c.Request().Context())
		return c.JSON(http.StatusOK, body)
	}, NewRedisCache(cfg, rdb, nil))

	assert.Equal(t, http.StatusOK, get(e, "/forms/1").Code)

	rec := get(e, "/forms/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestPurgeOnSuccess(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := testCacheConfig()
	purger := NewCachePurger(cfg, rdb, nil)

	e := echo.New()
	e.POST("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, purger.PurgeOnSuccess())
	e.POST("/fail", func(c echo.Context) error { return c.NoContent(http.StatusForbidden) }, purger.PurgeOnSuccess())

	serve(e, httptest.NewRequest(http.MethodPost, "/fail", nil))
	assert.False(t, mr.Exists(generationKey(cfg.Prefix)))

	serve(e, httptest.NewRequest(http.MethodPost, "/ok", nil))
	gen, err := mr.Get(generationKey(cfg.Prefix))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
}

func TestTokenBucket_BlocksOnceEmpty(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "test:rl",
	}

	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

	login := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = ip + ":4321"
		return serve(e, req)
	}

	rec := login("10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = login("10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = login("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 60, retry, 1)

	// buckets are per client address
	assert.Equal(t, http.StatusOK, login("10.0.0.2").Code)
}

func TestTokenBucket_FailsOpenWhenRedisIsDown(t *testing.T) {
	// nothing listens on port 1
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "test:rl"}
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
	}
}
