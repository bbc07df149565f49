package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"stratagem-ai/internal/transport/http/response"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

const TooManyRequestsMessage = "too many requests, slow down"

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter is a fixed-window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.prefix + ":" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	d := Decision{Limit: l.limit, Allowed: count <= int64(l.limit)}
	if d.Allowed {
		d.Remaining = l.limit - int(count)
		return d, nil
	}
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	d.RetryAfter = ttl
	return d, nil
}

// LocalLimiter keeps one token bucket per key in memory, for single-instance
// deployments without Redis. Buckets that have refilled completely are
// dropped once per window, since a full bucket is no different from a new one.
type LocalLimiter struct {
	limit  int
	every  rate.Limit
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	buckets    map[string]*rate.Limiter
	lastPruned time.Time
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &LocalLimiter{
		limit:      limit,
		every:      rate.Every(window / time.Duration(limit)),
		window:     window,
		now:        time.Now,
		buckets:    make(map[string]*rate.Limiter),
		lastPruned: time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastPruned) >= l.window {
		l.pruneLocked(now)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.every, l.limit)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	r := bucket.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Limit: l.limit, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: int(bucket.TokensAt(now))}, nil
}

// Len reports how many keys currently hold a bucket.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *LocalLimiter) pruneLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if bucket.TokensAt(now) >= float64(l.limit) {
			delete(l.buckets, key)
		}
	}
	l.lastPruned = now
}

// LimitKey names the caller for rate limiting: the client IP. Sessions are
// free to mint, so keying on them would hand every cookieless request a fresh
// budget.
func LimitKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimit keys on LimitKey and fails open on limiter errors. It runs before
// Session on the routes it guards, so a rejected request creates no session.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), LimitKey(c))
		if err != nil {
			log.Printf("rate limiter unavailable, allowing request: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		if !d.Allowed {
			secs := int((d.RetryAfter + time.Second - 1) / time.Second)
			c.Header("Retry-After", strconv.Itoa(secs))
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests, TooManyRequestsMessage)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}
