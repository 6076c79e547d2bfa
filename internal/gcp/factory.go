package gcp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"netviz/core-go/internal/metrics"
)

// Endpoints overrides Google API base URLs. Empty fields use the library defaults.
type Endpoints struct {
	BigQuery        string
	Monitoring      string
	ResourceManager string
	OAuth2          string
}

type FactoryOptions struct {
	// HTTPClient is the transport every REST client is layered on. Nil uses http.DefaultTransport.
	HTTPClient *http.Client
	Endpoints  Endpoints
	Guard      *Guard
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Factory builds per-request API clients bound to a caller's token.
type Factory struct {
	base      *http.Client
	endpoints Endpoints
	guard     *Guard
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewFactory(opts FactoryOptions) *Factory {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 60 * time.Second}
	}
	return &Factory{
		base:      base,
		endpoints: opts.Endpoints,
		guard:     opts.Guard,
		metrics:   opts.Metrics,
		log:       opts.Logger.With().Str("component", "gcp").Logger(),
	}
}

// StaticToken wraps an access token obtained during login.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// HTTPClient returns a client that authorizes every request with ts.
func (f *Factory) HTTPClient(ts oauth2.TokenSource) *http.Client {
	base := f.base.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
		Timeout:   f.base.Timeout,
	}
}

func (f *Factory) restOptions(ts oauth2.TokenSource, endpoint string) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(f.HTTPClient(ts))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

func (f *Factory) Projects(ctx context.Context, ts oauth2.TokenSource) (*ProjectsClient, error) {
	if ts == nil {
		return nil, ErrNoAccessToken
	}
	return newProjectsClient(ctx, f, f.restOptions(ts, f.endpoints.ResourceManager))
}

func (f *Factory) UserInfo(ctx context.Context, ts oauth2.TokenSource) (*UserInfoClient, error) {
	if ts == nil {
		return nil, ErrNoAccessToken
	}
	return newUserInfoClient(ctx, f, f.restOptions(ts, f.endpoints.OAuth2))
}

// BigQuery opens a client billed to projectID.
func (f *Factory) BigQuery(ctx context.Context, ts oauth2.TokenSource, projectID string) (*BigQueryClient, error) {
	if ts == nil {
		return nil, ErrNoAccessToken
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrNoProject
	}
	return newBigQueryClient(ctx, f, projectID, f.restOptions(ts, f.endpoints.BigQuery))
}

// Monitoring opens a gRPC metric client. Callers must Close it.
func (f *Factory) Monitoring(ctx context.Context, ts oauth2.TokenSource, projectID string) (*MonitoringClient, error) {
	if ts == nil {
		return nil, ErrNoAccessToken
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrNoProject
	}
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if f.endpoints.Monitoring != "" {
		opts = append(opts, option.WithEndpoint(f.endpoints.Monitoring))
	}
	return newMonitoringClient(ctx, f, projectID, opts)
}
