package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/likebank/likebank/internal/domain"
)

type ctxKey int

const principalKey ctxKey = iota

func principalFrom(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalKey).(domain.Principal)
	return p
}

// principal resolves the caller identity forwarded by the gateway.
func (s *Server) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid X-User-ID")
			return
		}
		p := domain.Principal{UserID: userID, IsAdmin: s.cfg.IsAdmin(userID)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// rateLimit enforces a fixed per-minute window per principal. The engine
// itself only limits active tasks; the global cap lives at this layer.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		window  time.Time
		counts  = make(map[int64]int)
		perUser = s.cfg.RateLimitPerMinute
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if perUser <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			p := principalFrom(r.Context())

			mu.Lock()
			now := time.Now()
			if now.Sub(window) >= time.Minute {
				window = now
				counts = make(map[int64]int)
			}
			counts[p.UserID]++
			over := counts[p.UserID] > perUser
			mu.Unlock()

			if over {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", w.Header().Get("X-Request-ID")).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func recoverer(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
