// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"time"

	"netviz/core-go/internal/flowlogs"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	OAuth      OAuthConfig      `koanf:"oauth"`
	Session    SessionConfig    `koanf:"session"`
	GCP        GCPConfig        `koanf:"gcp"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	FlowLogs   FlowLogsConfig   `koanf:"flowlogs"`
	Database   DatabaseConfig   `koanf:"database"`
	CORS       CORSConfig       `koanf:"cors"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	RDNS       RDNSConfig       `koanf:"rdns"`
	Sweeper    SweeperConfig    `koanf:"sweeper"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	MaxNodes        int           `koanf:"max_nodes" validate:"gte=1"`
	MaxLinks        int           `koanf:"max_links" validate:"gte=1"`

	// MockMode serves the demo session and mock project list without Google sign-in.
	MockMode bool `koanf:"mock_mode"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
}

type OAuthConfig struct {
	ClientID            string   `koanf:"client_id"`
	ClientSecret        string   `koanf:"client_secret"`
	RedirectURL         string   `koanf:"redirect_url" validate:"omitempty,url"`
	ImplicitRedirectURL string   `koanf:"implicit_redirect_url" validate:"omitempty,url"`
	PostLoginRedirect   string   `koanf:"post_login_redirect" validate:"required"`
	Scopes              []string `koanf:"scopes" validate:"min=1"`
	VerifyIDToken       bool     `koanf:"verify_id_token"`
	Issuer              string   `koanf:"issuer" validate:"required,url"`
	JWKSURL             string   `koanf:"jwks_url" validate:"required,url"`

	// ImplicitFallback redirects a failed code exchange into the implicit flow.
	ImplicitFallback bool `koanf:"implicit_fallback"`
}

type SessionConfig struct {
	Store        string        `koanf:"store" validate:"oneof=memory badger"`
	BadgerPath   string        `koanf:"badger_path"`
	TTL          time.Duration `koanf:"ttl" validate:"gt=0"`
	StateTTL     time.Duration `koanf:"state_ttl" validate:"gt=0"`
	CookieName   string        `koanf:"cookie_name" validate:"required"`
	CookieSecure bool          `koanf:"cookie_secure"`
}

type GCPConfig struct {
	DefaultProject  string          `koanf:"default_project" validate:"required"`
	RetryAttempts   uint            `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay      time.Duration   `koanf:"retry_delay" validate:"gte=0"`
	BreakerFailures uint32          `koanf:"breaker_failures" validate:"gte=1"`
	BreakerOpenFor  time.Duration   `koanf:"breaker_open_for" validate:"gt=0"`
	HTTPTimeout     time.Duration   `koanf:"http_timeout" validate:"gt=0"`
	Endpoints       EndpointsConfig `koanf:"endpoints"`
}

// EndpointsConfig overrides Google API base URLs, mainly for emulators and tests.
type EndpointsConfig struct {
	BigQuery        string `koanf:"bigquery" validate:"omitempty,url"`
	Monitoring      string `koanf:"monitoring"`
	ResourceManager string `koanf:"resource_manager" validate:"omitempty,url"`
	OAuth2          string `koanf:"oauth2" validate:"omitempty,url"`
}

type MonitoringConfig struct {
	DefaultTimeRangeMinutes int           `koanf:"default_time_range_minutes" validate:"gte=1"`
	RefreshInterval         time.Duration `koanf:"refresh_interval" validate:"gte=1s"`
}

type FlowLogsConfig struct {
	TopologyDataset string `koanf:"topology_dataset" validate:"required"`
	ExplorerDataset string `koanf:"explorer_dataset" validate:"required"`
	DefaultHours    int    `koanf:"default_hours" validate:"oneof=1 6 24 168"`
	Concurrency     int    `koanf:"concurrency" validate:"gte=0"`
}

type DatabaseConfig struct {
	URL       string        `koanf:"url"`
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
	MaxAge         int      `koanf:"max_age" validate:"gte=0"`
}

type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests" validate:"gte=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

type RDNSConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Server    string        `koanf:"server"`
	Workers   int           `koanf:"workers" validate:"gte=1"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	CacheSize int           `koanf:"cache_size" validate:"gte=1"`
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

type SweeperConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8081",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MockMode:        false,
			MaxNodes:        500,
			MaxLinks:        1000,
		},
		Log: LogConfig{Level: "info"},
		OAuth: OAuthConfig{
			PostLoginRedirect: "/",
			Scopes: []string{
				"https://www.googleapis.com/auth/cloud-platform.read-only",
				"https://www.googleapis.com/auth/compute.readonly",
				"openid",
				"profile",
				"email",
			},
			ImplicitFallback: true,
			VerifyIDToken:    true,
			Issuer:           "https://accounts.google.com",
			JWKSURL:          "https://www.googleapis.com/oauth2/v3/certs",
		},
		Session: SessionConfig{
			Store:        "memory",
			TTL:          time.Hour,
			StateTTL:     10 * time.Minute,
			CookieName:   "netviz_session",
			CookieSecure: false,
		},
		GCP: GCPConfig{
			DefaultProject:  "demo-network-topology-project",
			RetryAttempts:   3,
			RetryDelay:      200 * time.Millisecond,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
			HTTPTimeout:     60 * time.Second,
		},
		Monitoring: MonitoringConfig{
			DefaultTimeRangeMinutes: 5,
			RefreshInterval:         30 * time.Second,
		},
		FlowLogs: FlowLogsConfig{
			TopologyDataset: flowlogs.DefaultTopologyDataset,
			ExplorerDataset: flowlogs.DefaultExplorerDataset,
			DefaultHours:    24,
			Concurrency:     4,
		},
		Database: DatabaseConfig{
			Retention: 30 * 24 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:4200"},
			MaxAge:         300,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 120,
			Window:   time.Minute,
		},
		RDNS: RDNSConfig{
			Enabled:   false,
			Workers:   8,
			Timeout:   2 * time.Second,
			CacheSize: 4096,
			CacheTTL:  30 * time.Minute,
		},
		Sweeper: SweeperConfig{
			Enabled:      true,
			PollInterval: 5 * time.Minute,
		},
	}
}
