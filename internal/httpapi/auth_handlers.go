package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"netviz/core-go/internal/auth"
)

type tokenRequest struct {
	State       string `json:"state" validate:"required"`
	AccessToken string `json:"accessToken" validate:"required"`
	ExpiresIn   int    `json:"expiresIn" validate:"gte=0"`
}

type sessionResponse struct {
	User            auth.User `json:"user"`
	AuthenticatedAt string    `json:"authenticatedAt"`
	ExpiresAt       string    `json:"expiresAt,omitempty"`
	Flow            string    `json:"flow"`
	MockMode        bool      `json:"mockMode"`
	Redirect        string    `json:"redirect,omitempty"`
}

func (h *Handler) toSessionResponse(s *auth.Session) sessionResponse {
	resp := sessionResponse{
		User:            s.User,
		AuthenticatedAt: s.AuthenticatedAt.UTC().Format(timeLayout),
		Flow:            s.Flow,
		MockMode:        h.opts.MockMode,
	}
	if !s.ExpiresAt.IsZero() {
		resp.ExpiresAt = s.ExpiresAt.UTC().Format(timeLayout)
	}
	return resp
}

// localRedirect accepts only same-origin paths. Browsers drop tabs and newlines from URLs,
// so control characters are rejected before the prefix checks.
func (h *Handler) localRedirect(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.opts.PostLoginRedirect, true
	}
	if strings.ContainsFunc(raw, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return "", false
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return raw, true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	redirect, ok := h.localRedirect(r.URL.Query().Get("redirect"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "redirect must be a local path", map[string]any{"redirect": r.URL.Query().Get("redirect")})
		return
	}

	flow := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("flow")))
	if flow == "" {
		flow = auth.FlowPKCE
	}
	if flow != auth.FlowPKCE && flow != auth.FlowImplicit {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "flow must be pkce or implicit", map[string]any{"flow": flow})
		return
	}

	if h.opts.MockMode {
		demo := auth.DemoSession(h.now())
		h.setSessionCookie(w, demo)
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}
	if h.provider == nil {
		h.writeError(w, http.StatusServiceUnavailable, "oauth_error", "OAuth is not configured", nil)
		return
	}

	var target string
	if flow == auth.FlowImplicit {
		target, _ = h.provider.ImplicitURL(redirect)
	} else {
		target, _ = h.provider.AuthCodeURL(redirect)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback completes the PKCE flow. When the code exchange fails and the implicit
// fallback is enabled, the browser is sent through the implicit flow instead.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		details := map[string]any{"error": e}
		if d := q.Get("error_description"); d != "" {
			details["description"] = d
		}
		h.writeError(w, http.StatusBadRequest, "oauth_error", "OAuth error: "+e, details)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.writeError(w, http.StatusBadRequest, "oauth_error", "No authorization code found in callback URL", nil)
		return
	}
	if h.provider == nil {
		h.writeError(w, http.StatusServiceUnavailable, "oauth_error", "OAuth is not configured", nil)
		return
	}

	sess, sd, err := h.provider.Exchange(r.Context(), q.Get("state"), code)
	if err != nil {
		if errors.Is(err, auth.ErrStateNotFound) {
			h.writeError(w, http.StatusBadRequest, "oauth_error", "Invalid or expired OAuth state. Please sign in again.", nil)
			return
		}
		h.log.Warn().Err(err).Bool("implicit_fallback", h.opts.ImplicitFallback).Msg("oauth code exchange failed")
		if h.opts.ImplicitFallback {
			target, _ := h.provider.ImplicitURL(sd.PostLoginRedirect)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		h.writeError(w, http.StatusBadGateway, "oauth_error", "Token exchange failed", map[string]any{"error": err.Error()})
		return
	}

	if err := h.sessions.Create(r.Context(), sess); err != nil {
		h.log.Error().Err(err).Msg("create session failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to store session", nil)
		return
	}
	h.log.Info().Str("user", sess.User.Email).Str("flow", sess.Flow).Msg("user signed in")
	h.setSessionCookie(w, sess)
	http.Redirect(w, r, sd.PostLoginRedirect, http.StatusFound)
}

// handleToken completes the implicit flow with the token the browser read from the fragment.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	if h.provider == nil {
		h.writeError(w, http.StatusServiceUnavailable, "oauth_error", "OAuth is not configured", nil)
		return
	}

	sess, sd, err := h.provider.SessionFromAccessToken(r.Context(), req.State, req.AccessToken, req.ExpiresIn)
	if err != nil {
		if errors.Is(err, auth.ErrStateNotFound) {
			h.writeError(w, http.StatusBadRequest, "oauth_error", "Invalid or expired OAuth state. Please sign in again.", nil)
			return
		}
		h.log.Warn().Err(err).Msg("implicit login failed")
		h.writeError(w, http.StatusUnauthorized, "oauth_error", "Could not verify the access token", map[string]any{"error": err.Error()})
		return
	}

	if err := h.sessions.Create(r.Context(), sess); err != nil {
		h.log.Error().Err(err).Msg("create session failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to store session", nil)
		return
	}
	h.log.Info().Str("user", sess.User.Email).Str("flow", sess.Flow).Msg("user signed in")
	h.setSessionCookie(w, sess)

	resp := h.toSessionResponse(sess)
	resp.Redirect = sd.PostLoginRedirect
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.toSessionResponse(sessionFromContext(r.Context())))
}

// handleLogout is idempotent.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
