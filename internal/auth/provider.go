package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"netviz/core-go/internal/gcp"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// DefaultScopes grant read-only access to the project, monitoring and log data the dashboard shows.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform.read-only",
	"https://www.googleapis.com/auth/compute.readonly",
	"openid",
	"profile",
	"email",
}

var ErrNonceMismatch = errors.New("auth: id token nonce mismatch")

// IDClaims are the Google ID token claims mapped onto User.
type IDClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Domain  string `json:"hd"`
	Nonce   string `json:"nonce"`
}

type IDTokenVerifier interface {
	VerifyClaims(ctx context.Context, rawIDToken string) (IDClaims, error)
}

type oidcVerifier struct {
	v *oidc.IDTokenVerifier
}

// NewOIDCVerifier checks ID token signatures against a remote JWKS. ctx must outlive the
// verifier; keys are fetched lazily with client.
func NewOIDCVerifier(ctx context.Context, issuer, jwksURL, clientID string, client *http.Client) IDTokenVerifier {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	keys := oidc.NewRemoteKeySet(ctx, jwksURL)
	return &oidcVerifier{v: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID})}
}

func (o *oidcVerifier) VerifyClaims(ctx context.Context, raw string) (IDClaims, error) {
	tok, err := o.v.Verify(ctx, raw)
	if err != nil {
		return IDClaims{}, err
	}
	var c IDClaims
	if err := tok.Claims(&c); err != nil {
		return IDClaims{}, err
	}
	c.Subject = tok.Subject
	c.Nonce = tok.Nonce
	return c, nil
}

// UserInfoFunc resolves the signed-in user from an access token.
type UserInfoFunc func(ctx context.Context, accessToken string) (User, error)

// GCPUserInfo resolves users through the OAuth2 userinfo endpoint.
func GCPUserInfo(f *gcp.Factory) UserInfoFunc {
	return func(ctx context.Context, accessToken string) (User, error) {
		c, err := f.UserInfo(ctx, gcp.StaticToken(accessToken))
		if err != nil {
			return User{}, err
		}
		info, err := c.Get(ctx)
		if err != nil {
			return User{}, err
		}
		return User{ID: info.ID, Email: info.Email, Name: info.Name, Picture: info.Picture, Domain: info.Domain}, nil
	}
}

type ProviderConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	ImplicitRedirectURL string
	Endpoint            oauth2.Endpoint
	Scopes              []string
	SessionTTL          time.Duration
	StateTTL            time.Duration
}

// Provider drives the Google authorization-code (PKCE) and implicit flows.
type Provider struct {
	log        zerolog.Logger
	oauth      oauth2.Config
	implicit   string
	verifier   IDTokenVerifier
	userInfo   UserInfoFunc
	states     *StateStore
	httpClient *http.Client
	sessionTTL time.Duration
	now        func() time.Time
}

type ProviderDeps struct {
	Verifier   IDTokenVerifier
	UserInfo   UserInfoFunc
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewProvider(log zerolog.Logger, cfg ProviderConfig, deps ProviderDeps) *Provider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ImplicitRedirectURL == "" {
		cfg.ImplicitRedirectURL = cfg.RedirectURL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	states := NewStateStore(cfg.StateTTL)
	states.now = deps.Now

	return &Provider{
		log: log.With().Str("component", "auth").Logger(),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
		},
		implicit:   cfg.ImplicitRedirectURL,
		verifier:   deps.Verifier,
		userInfo:   deps.UserInfo,
		states:     states,
		httpClient: deps.HTTPClient,
		sessionTTL: cfg.SessionTTL,
		now:        deps.Now,
	}
}

func (p *Provider) States() *StateStore { return p.states }

// AuthCodeURL starts a PKCE login. The returned state must come back on the callback.
func (p *Provider) AuthCodeURL(postLoginRedirect string) (string, string) {
	verifier := oauth2.GenerateVerifier()
	sd := p.states.Put(StateData{
		State:             uuid.NewString(),
		CodeVerifier:      verifier,
		Nonce:             oauth2.GenerateVerifier(),
		PostLoginRedirect: postLoginRedirect,
		Flow:              FlowPKCE,
	})
	u := p.oauth.AuthCodeURL(sd.State,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(sd.Nonce),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	return u, sd.State
}

// ImplicitURL starts a token-in-fragment login. The browser posts the token back to complete it.
func (p *Provider) ImplicitURL(postLoginRedirect string) (string, string) {
	sd := p.states.Put(StateData{
		State:             uuid.NewString(),
		PostLoginRedirect: postLoginRedirect,
		Flow:              FlowImplicit,
	})
	u := p.oauth.AuthCodeURL(sd.State,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("redirect_uri", p.implicit),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	return u, sd.State
}

// Exchange completes a PKCE login. The state is consumed even when the exchange fails, and
// is returned so the caller can still honour its redirect.
func (p *Provider) Exchange(ctx context.Context, state, code string) (*Session, StateData, error) {
	sd, err := p.states.Take(state)
	if err != nil {
		return nil, StateData{}, err
	}
	if sd.Flow != FlowPKCE {
		return nil, sd, ErrStateNotFound
	}

	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(sd.CodeVerifier))
	if err != nil {
		return nil, sd, fmt.Errorf("exchange code: %w", err)
	}

	user, err := p.resolveUser(ctx, tok, sd.Nonce)
	if err != nil {
		return nil, sd, err
	}
	return p.newSession(tok, user, FlowPKCE), sd, nil
}

func (p *Provider) resolveUser(ctx context.Context, tok *oauth2.Token, nonce string) (User, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw != "" && p.verifier != nil {
		claims, err := p.verifier.VerifyClaims(ctx, raw)
		if err != nil {
			return User{}, fmt.Errorf("verify id token: %w", err)
		}
		if claims.Nonce != nonce {
			return User{}, ErrNonceMismatch
		}
		return User{
			ID:      claims.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
			Picture: claims.Picture,
			Domain:  claims.Domain,
		}, nil
	}
	return p.lookupUser(ctx, tok.AccessToken)
}

func (p *Provider) lookupUser(ctx context.Context, accessToken string) (User, error) {
	if p.userInfo == nil {
		return User{}, errors.New("auth: no userinfo resolver configured")
	}
	user, err := p.userInfo(ctx, accessToken)
	if err != nil {
		return User{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	return user, nil
}

// SessionFromAccessToken completes an implicit login with the token the browser received.
func (p *Provider) SessionFromAccessToken(ctx context.Context, state, accessToken string, expiresIn int) (*Session, StateData, error) {
	sd, err := p.states.Take(state)
	if err != nil {
		return nil, StateData{}, err
	}
	if sd.Flow != FlowImplicit {
		return nil, sd, ErrStateNotFound
	}

	user, err := p.lookupUser(ctx, accessToken)
	if err != nil {
		return nil, sd, err
	}
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if expiresIn > 0 {
		tok.Expiry = p.now().Add(time.Duration(expiresIn) * time.Second)
	}
	return p.newSession(tok, user, FlowImplicit), sd, nil
}

func (p *Provider) newSession(tok *oauth2.Token, user User, flow string) *Session {
	now := p.now()
	return &Session{
		ID:              uuid.NewString(),
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		TokenType:       tok.Type(),
		Expiry:          tok.Expiry,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(p.sessionTTL),
		User:            user,
		Flow:            flow,
	}
}
