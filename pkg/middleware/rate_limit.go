package middleware

import (
	"net/http"
	"sync"
	"time"

	"lodgic/pkg/logger"
)

// ActorExtractor derives the rate-limit key from a request. Defaults to the
// collaborator-provided actor header, falling back to the remote address.
type ActorExtractor func(r *http.Request) string

func DefaultActorExtractor(r *http.Request) string {
	if actor := r.Header.Get("X-Actor-ID"); actor != "" {
		return actor
	}
	return r.RemoteAddr
}

type ActorRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor ActorExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewActorRateLimiter(limit int, window time.Duration, extractor ActorExtractor, log *logger.Logger) *ActorRateLimiter {
	limiter := &ActorRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *ActorRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for actor, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, actor)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *ActorRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *ActorRateLimiter) allow(actor string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.requests[actor][:0]
	for _, ts := range rl.requests[actor] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[actor] = recent
		return false
	}

	rl.requests[actor] = append(recent, now)
	return true
}

func ActorRateLimit(limiter *ActorRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := limiter.extractor(r)
			if !limiter.allow(actor) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", requestIDFromContext(r.Context()),
					"actor", actor,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
