package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratagem-ai/internal/workspace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(reg *workspace.Registry, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Session(reg, false))
	r.Use(extra...)
	r.GET("/", func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, sess.ID())
	})
	return r
}

func TestSession_CreatesAndSetsCookie(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	r := newRouter(reg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Body.String()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.Header().Get(SessionHeader))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1, reg.Len())
}

func TestSession_ReusesCookieAndHeader(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	existing := reg.Create()
	r := newRouter(reg)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: existing.ID()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, existing.ID(), rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, existing.ID())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, existing.ID(), rec.Body.String())
	assert.Equal(t, 1, reg.Len())
}

func TestSession_UnknownIDIsNotAdopted(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	r := newRouter(reg)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "attacker-chosen")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotEqual(t, "attacker-chosen", rec.Body.String())
	_, ok := reg.Get("attacker-chosen")
	assert.False(t, ok)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLimiter(client, "test", 2, time.Minute)
	ctx := context.Background()

	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	d, err = l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(time.Minute + time.Second)
	d, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	d, _ = l.Allow(ctx, "someone-else")
	assert.True(t, d.Allowed)
}

func TestRateLimit_Middleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reg := workspace.NewRegistry("", time.Hour)
	sess := reg.Create()
	r := newRouter(reg, RateLimit(NewRedisLimiter(client, "rl", 1, time.Minute)))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SessionHeader, sess.ID())
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := call()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := call()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), `"code":42900`)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := newRouter(workspace.NewRegistry("", time.Hour), RateLimit(NewRedisLimiter(client, "rl", 1, time.Minute)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLocalLimiter_PrunesRefilledBuckets(t *testing.T) {
	now := time.Now()
	l := NewLocalLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		d, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 3, l.Len())

	now = now.Add(2 * time.Minute)
	d, err := l.Allow(ctx, "d")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, l.Len(), "refilled buckets are dropped")

	d, _ = l.Allow(ctx, "d")
	assert.False(t, d.Allowed, "a drained bucket survives pruning")
}

func TestRateLimit_KeysOnClientNotSession(t *testing.T) {
	reg := workspace.NewRegistry("", time.Hour)
	limiter := NewLocalLimiter(1, time.Hour)
	r := gin.New()
	r.Use(RateLimit(limiter), Session(reg, false))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(remote, sessionID string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		if sessionID != "" {
			req.Header.Set(SessionHeader, sessionID)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("203.0.113.7:4000", ""))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.7:4000", ""), "cookieless retry %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.7:4001", reg.Create().ID()), "another session, same client")
	assert.Equal(t, 2, reg.Len(), "rejected requests create no session")

	assert.Equal(t, http.StatusNoContent, call("198.51.100.2:4000", ""))
}
