// Package auth runs the Google sign-in flows and keeps server-side sessions.
// The browser only ever holds an opaque session id.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultSessionTTL = time.Hour
	DefaultStateTTL   = 10 * time.Minute

	FlowPKCE     = "pkce"
	FlowImplicit = "implicit"
	FlowDemo     = "demo"

	DemoAccessToken = "demo-access-token"
	DemoSessionID   = "demo"
)

var (
	ErrSessionNotFound = errors.New("auth: session not found")
	ErrSessionExpired  = errors.New("auth: session expired")
	ErrStateNotFound   = errors.New("auth: state not found or already used")
)

type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Session is an authenticated user and the Google access token issued to them.
type Session struct {
	ID              string    `json:"id"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken,omitempty"`
	TokenType       string    `json:"tokenType"`
	Expiry          time.Time `json:"expiry"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	User            User      `json:"user"`
	Flow            string    `json:"flow"`
}

// IsExpired reports whether the session validity window has passed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// StateData is what a login redirect needs to be completed later.
type StateData struct {
	State             string    `json:"state"`
	CodeVerifier      string    `json:"codeVerifier,omitempty"`
	Nonce             string    `json:"nonce,omitempty"`
	PostLoginRedirect string    `json:"postLoginRedirect"`
	Flow              string    `json:"flow"`
	CreatedAt         time.Time `json:"createdAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// DemoSession is the fixed session served in mock mode when no cookie is present.
func DemoSession(now time.Time) *Session {
	return &Session{
		ID:              DemoSessionID,
		AccessToken:     DemoAccessToken,
		TokenType:       "Bearer",
		AuthenticatedAt: now,
		User: User{
			ID:    "demo-user",
			Email: "demo@example.com",
			Name:  "Demo User",
		},
		Flow: FlowDemo,
	}
}

// SessionStore persists sessions by id.
//
// Get returns ErrSessionNotFound for unknown ids and ErrSessionExpired for sessions past
// ExpiresAt. Delete of an unknown id is not an error.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int, error)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]Session{}, now: time.Now}
}

func (m *MemorySessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.IsExpired(m.now()) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
