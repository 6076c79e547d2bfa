package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"netviz/core-go/internal/auth"
	"netviz/core-go/internal/config"
	"netviz/core-go/internal/db"
	"netviz/core-go/internal/enrichment/rdns"
	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/geo"
	"netviz/core-go/internal/httpapi"
	"netviz/core-go/internal/metricedges"
	"netviz/core-go/internal/metrics"
	"netviz/core-go/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The configured level is unknown until config loads.
		bootLogger := httpapi.NewLogger("info")
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := httpapi.NewLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	guard := gcp.NewGuard(logger, m, gcp.GuardOptions{
		RetryAttempts:   cfg.GCP.RetryAttempts,
		RetryDelay:      cfg.GCP.RetryDelay,
		BreakerFailures: cfg.GCP.BreakerFailures,
		BreakerOpenFor:  cfg.GCP.BreakerOpenFor,
	})
	factory := gcp.NewFactory(gcp.FactoryOptions{
		HTTPClient: &http.Client{Timeout: cfg.GCP.HTTPTimeout},
		Endpoints: gcp.Endpoints{
			BigQuery:        cfg.GCP.Endpoints.BigQuery,
			Monitoring:      cfg.GCP.Endpoints.Monitoring,
			ResourceManager: cfg.GCP.Endpoints.ResourceManager,
			OAuth2:          cfg.GCP.Endpoints.OAuth2,
		},
		Guard:   guard,
		Metrics: m,
		Logger:  logger,
	})

	sessions, closeSessions, err := openSessionStore(cfg.Session)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.Session.Store).Msg("failed to open session store")
	}
	defer closeSessions()

	var provider *auth.Provider
	if !cfg.Server.MockMode {
		provider = newProvider(ctx, logger, cfg, factory)
	}

	var enricher *rdns.Enricher
	if cfg.RDNS.Enabled {
		enricher = rdns.New(logger, m, rdns.NewDNSResolver(cfg.RDNS.Server, cfg.RDNS.Timeout), rdns.Options{
			Workers:   cfg.RDNS.Workers,
			Timeout:   cfg.RDNS.Timeout,
			CacheSize: cfg.RDNS.CacheSize,
			CacheTTL:  cfg.RDNS.CacheTTL,
		})
	}

	var pool *db.Pool
	if cfg.Database.URL != "" {
		p, err := db.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		if err := p.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
		pool = p
	}

	if cfg.Sweeper.Enabled {
		var runs sweeper.QueryRuns
		if pool != nil {
			runs = pool.Queries()
		}
		worker := sweeper.New(logger, sessions, runs, sweeper.Options{
			PollInterval: cfg.Sweeper.PollInterval,
			Retention:    cfg.Database.Retention,
		}, m)
		go worker.Run(ctx)
	}

	h := httpapi.NewHandler(logger, httpapi.Deps{
		Pool:        pool,
		Metrics:     m,
		Sessions:    sessions,
		Provider:    provider,
		Factory:     factory,
		FlowLogs:    flowlogs.NewService(logger, geo.NewMatcher(), flowlogs.ServiceOptions{Concurrency: cfg.FlowLogs.Concurrency}),
		MetricEdges: metricedges.NewService(logger, metricedges.Options{Range: time.Duration(cfg.Monitoring.DefaultTimeRangeMinutes) * time.Minute}),
		RDNS:        enricher,
		Options:     httpapi.OptionsFromConfig(cfg),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Bool("mock_mode", cfg.Server.MockMode).
			Bool("database", pool != nil).
			Msg("netviz listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown did not complete")
	}
	logger.Info().Msg("shutdown complete")
}

func openSessionStore(cfg config.SessionConfig) (auth.SessionStore, func(), error) {
	if cfg.Store != "badger" {
		return auth.NewMemorySessionStore(), func() {}, nil
	}
	bdb, err := auth.OpenBadger(cfg.BadgerPath)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewBadgerSessionStore(bdb), func() { _ = bdb.Close() }, nil
}

func newProvider(ctx context.Context, log zerolog.Logger, cfg *config.Config, factory *gcp.Factory) *auth.Provider {
	if cfg.OAuth.ClientID == "" {
		log.Warn().Msg("oauth client id not set; sign-in is disabled")
		return nil
	}
	deps := auth.ProviderDeps{
		UserInfo:   auth.GCPUserInfo(factory),
		HTTPClient: &http.Client{Timeout: cfg.GCP.HTTPTimeout},
	}
	if cfg.OAuth.VerifyIDToken {
		deps.Verifier = auth.NewOIDCVerifier(ctx, cfg.OAuth.Issuer, cfg.OAuth.JWKSURL, cfg.OAuth.ClientID, deps.HTTPClient)
	}
	return auth.NewProvider(log, auth.ProviderConfig{
		ClientID:            cfg.OAuth.ClientID,
		ClientSecret:        cfg.OAuth.ClientSecret,
		RedirectURL:         cfg.OAuth.RedirectURL,
		ImplicitRedirectURL: cfg.OAuth.ImplicitRedirectURL,
		Scopes:              cfg.OAuth.Scopes,
		SessionTTL:          cfg.Session.TTL,
		StateTTL:            cfg.Session.StateTTL,
	}, deps)
}
