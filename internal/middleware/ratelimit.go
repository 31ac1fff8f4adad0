package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"messaging-service/internal/apperr"
	"messaging-service/internal/observability"
)

// UserRateLimiter hands out one token bucket per authenticated user.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*userLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastGC   time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[int64]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		lastGC:   time.Now(),
	}
}

// Allow reports whether userID may perform one more action now.
func (l *UserRateLimiter) Allow(userID int64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.idleTTL {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > l.idleTTL {
				delete(l.limiters, id)
			}
		}
		l.lastGC = now
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.limiter.AllowN(now, 1)
}

// Middleware rejects over-limit requests with RATE_LIMITED. It must run
// after AuthMiddleware.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		if !l.Allow(UserID(c)) {
			observability.IncRateLimited()
			AbortWithError(c, apperr.New(apperr.CodeRateLimited, "too many messages, slow down"))
			return
		}
		c.Next()
	}
}
