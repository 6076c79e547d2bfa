package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"netviz/core-go/internal/auth"
	"netviz/core-go/internal/gcp"
)

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), duration)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("http_request")
	})
}

// cors admits the dashboard origins with credentials so the session cookie travels.
func (h *Handler) cors() func(http.Handler) http.Handler {
	if len(h.opts.CORSOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           h.opts.CORSMaxAge,
	})
}

func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	if !h.opts.RateLimitEnabled || h.opts.RateLimitRequests <= 0 || h.opts.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		h.opts.RateLimitRequests,
		h.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
		}),
	)
}

type sessionCtxKey struct{}

func withSession(ctx context.Context, s *auth.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

func sessionFromContext(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*auth.Session)
	return s
}

// requireSession resolves the session cookie. In mock mode a request without one runs as the
// demo session.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.currentSession(r)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionExpired):
				h.endSession(w, r)
				h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Session expired. Please sign in again.", nil)
			case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, gcp.ErrNoAccessToken):
				h.clearSessionCookie(w)
				h.writeError(w, http.StatusUnauthorized, "unauthenticated", gcp.ErrNoAccessToken.Error(), nil)
			default:
				h.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("session lookup failed")
				h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to load session", nil)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

func (h *Handler) currentSession(r *http.Request) (*auth.Session, error) {
	c, err := r.Cookie(h.opts.CookieName)
	if err != nil || c.Value == "" {
		if h.opts.MockMode {
			return auth.DemoSession(h.now()), nil
		}
		return nil, gcp.ErrNoAccessToken
	}
	if h.opts.MockMode && c.Value == auth.DemoSessionID {
		return auth.DemoSession(h.now()), nil
	}
	return h.sessions.Get(r.Context(), c.Value)
}

// endSession drops the caller's stored session and cookie. The demo session has nothing stored.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.opts.CookieName); err == nil && c.Value != "" && c.Value != auth.DemoSessionID {
		if err := h.sessions.Delete(r.Context(), c.Value); err != nil {
			h.log.Warn().Err(err).Msg("delete session failed")
		}
	}
	h.clearSessionCookie(w)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, s *auth.Session) {
	c := &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if !s.ExpiresAt.IsZero() {
		c.Expires = s.ExpiresAt
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
