package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/rhmaster-billing/internal/http/response"
)

// RateLimiter хранит отдельный rate.Limiter на каждого ментора.
// Для запросов без ментора в контексте ключом служит IP клиента.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает RateLimiter с limit запросов в секунду и запасом burst.
func NewRateLimiter(limit float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(limit),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow сообщает, можно ли выполнить запрос с ключом key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweep(now)
	}

	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep удаляет посетителей, не появлявшихся дольше idleTTL. Вызывается под rl.mu
// не чаще раза в idleTTL.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, v := range rl.limiters {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.limiters, k)
		}
	}
	rl.lastSweep = now
}

// RateLimitMiddleware отвечает 429, если ментор превысил лимит запросов.
func RateLimitMiddleware(rl *RateLimiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := MentorIDFrom(r.Context())
			if !ok {
				key = clientIP(r)
			}
			if !rl.Allow(key) {
				log.Warn("rate limit exceeded", slog.String("key", key), slog.String("path", r.URL.Path))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
