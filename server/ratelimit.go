package server

import (
	"net/http"
	"sync"
	"time"

	"stemboard/core/apperr"
	"stemboard/logger"

	"golang.org/x/time/rate"
)

// UploadLimiter hands out one token bucket per user.
type UploadLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[int64]*userLimiter
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewUploadLimiter allows perSecond uploads per user with the given burst.
func NewUploadLimiter(perSecond float64, burst int) *UploadLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UploadLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[int64]*userLimiter),
	}
}

// Allow reports whether userID may upload now.
func (l *UploadLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = time.Now()
	l.mu.Unlock()
	return ul.limiter.Allow()
}

// Prune forgets users idle for longer than idle.
func (l *UploadLimiter) Prune(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ul := range l.limiters {
		if ul.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
}

// RateLimit answers 429 when the caller's upload bucket is empty. It must run
// inside AuthMiddleware.
func (h *APIHandler) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.uploads == nil {
			next(w, r)
			return
		}
		userID, _ := GetUserIDFromContext(r.Context())
		if !h.uploads.Allow(userID) {
			logger.Warn("Upload rate limit exceeded", logger.User(userID))
			w.Header().Set("Retry-After", "1")
			writeError(w, apperr.RateLimited("upload", "Too many uploads, slow down"))
			return
		}
		next(w, r)
	}
}
