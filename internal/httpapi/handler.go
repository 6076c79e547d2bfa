package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"netviz/core-go/internal/auth"
	"netviz/core-go/internal/config"
	"netviz/core-go/internal/db"
	"netviz/core-go/internal/enrichment/rdns"
	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/metricedges"
	"netviz/core-go/internal/metrics"
	"netviz/core-go/internal/topology"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const timeLayout = time.RFC3339

// Options are the request-facing settings taken from config.
type Options struct {
	MockMode          bool
	RequestTimeout    time.Duration
	CookieName        string
	CookieSecure      bool
	PostLoginRedirect string
	ImplicitFallback  bool
	DefaultProject    string
	TopologyDataset   string
	ExplorerDataset   string
	DefaultHours      int
	MaxNodes          int
	MaxLinks          int

	// MetricsRefresh is the polling interval suggested to metric-edge clients.
	MetricsRefresh time.Duration

	CORSOrigins []string
	CORSMaxAge  int

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func DefaultOptions() Options {
	return Options{
		RequestTimeout:    60 * time.Second,
		CookieName:        "netviz_session",
		PostLoginRedirect: "/",
		ImplicitFallback:  true,
		DefaultProject:    "demo-network-topology-project",
		TopologyDataset:   flowlogs.DefaultTopologyDataset,
		ExplorerDataset:   flowlogs.DefaultExplorerDataset,
		DefaultHours:      24,
		MaxNodes:          topology.DefaultMaxNodes,
		MaxLinks:          topology.DefaultMaxLinks,
		MetricsRefresh:    30 * time.Second,
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MockMode:          cfg.Server.MockMode,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CookieName:        cfg.Session.CookieName,
		CookieSecure:      cfg.Session.CookieSecure,
		PostLoginRedirect: cfg.OAuth.PostLoginRedirect,
		ImplicitFallback:  cfg.OAuth.ImplicitFallback,
		DefaultProject:    cfg.GCP.DefaultProject,
		TopologyDataset:   cfg.FlowLogs.TopologyDataset,
		ExplorerDataset:   cfg.FlowLogs.ExplorerDataset,
		DefaultHours:      cfg.FlowLogs.DefaultHours,
		MaxNodes:          cfg.Server.MaxNodes,
		MaxLinks:          cfg.Server.MaxLinks,
		MetricsRefresh:    cfg.Monitoring.RefreshInterval,
		CORSOrigins:       cfg.CORS.AllowedOrigins,
		CORSMaxAge:        cfg.CORS.MaxAge,
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.CookieName == "" {
		o.CookieName = d.CookieName
	}
	if o.PostLoginRedirect == "" {
		o.PostLoginRedirect = d.PostLoginRedirect
	}
	if o.DefaultProject == "" {
		o.DefaultProject = d.DefaultProject
	}
	if o.TopologyDataset == "" {
		o.TopologyDataset = d.TopologyDataset
	}
	if o.ExplorerDataset == "" {
		o.ExplorerDataset = d.ExplorerDataset
	}
	if o.DefaultHours == 0 {
		o.DefaultHours = d.DefaultHours
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = d.MaxNodes
	}
	if o.MaxLinks <= 0 {
		o.MaxLinks = d.MaxLinks
	}
	if o.MetricsRefresh <= 0 {
		o.MetricsRefresh = d.MetricsRefresh
	}
	return o
}

// Deps are the collaborators a Handler serves requests with. Nil fields get working defaults
// except Pool, Provider and RDNS, whose features are then disabled.
type Deps struct {
	Pool        *db.Pool
	Metrics     *metrics.Metrics
	Sessions    auth.SessionStore
	Provider    *auth.Provider
	Factory     *gcp.Factory
	FlowLogs    *flowlogs.Service
	MetricEdges *metricedges.Service
	RDNS        *rdns.Enricher
	Options     Options
}

type Handler struct {
	log      zerolog.Logger
	pool     *db.Pool
	runs     queryRunStore
	metrics  *metrics.Metrics
	sessions auth.SessionStore
	provider *auth.Provider
	clients  gcpClients
	flows    *flowlogs.Service
	edges    *metricedges.Service
	rdns     *rdns.Enricher
	opts     Options
	now      func() time.Time
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	h := &Handler{
		log:      log,
		pool:     deps.Pool,
		metrics:  deps.Metrics,
		sessions: deps.Sessions,
		provider: deps.Provider,
		flows:    deps.FlowLogs,
		edges:    deps.MetricEdges,
		rdns:     deps.RDNS,
		opts:     deps.Options.withDefaults(),
		now:      time.Now,
	}
	if deps.Pool != nil {
		h.runs = deps.Pool.Queries()
	}
	if h.sessions == nil {
		h.sessions = auth.NewMemorySessionStore()
	}
	factory := deps.Factory
	if factory == nil {
		factory = gcp.NewFactory(gcp.FactoryOptions{Logger: log, Metrics: deps.Metrics})
	}
	h.clients = factoryClients{f: factory}
	if h.flows == nil {
		h.flows = flowlogs.NewService(log, nil, flowlogs.ServiceOptions{})
	}
	if h.edges == nil {
		h.edges = metricedges.NewService(log, metricedges.Options{})
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.opts.RequestTimeout))
	r.Use(h.accessLog)
	r.Use(h.cors())

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Use(h.rateLimit())

			r.Route("/auth", func(r chi.Router) {
				r.Get("/login", h.handleLogin)
				r.Get("/callback", h.handleCallback)
				r.Post("/token", h.handleToken)
				r.Post("/logout", h.handleLogout)
				r.With(h.requireSession).Get("/me", h.handleMe)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Use(h.requireSession)
				r.Get("/", h.handleListProjects)
				r.Get("/all", h.handleListAllProjects)
				r.Get("/{projectId}", h.handleGetProject)
			})

			r.Route("/bigquery", func(r chi.Router) {
				r.Use(h.requireSession)
				r.Get("/datasets", h.handleListDatasets)
				r.Get("/datasets/{datasetId}/tables", h.handleListTables)
				r.Post("/query", h.handleBigQueryQuery)
			})

			r.Route("/flowlogs", func(r chi.Router) {
				r.Get("/granularities", h.handleGranularities)
				r.Group(func(r chi.Router) {
					r.Use(h.requireSession)
					r.Post("/query", h.handleFlowLogsQuery)
					r.Post("/topology", h.handleFlowLogsTopology)
					r.Post("/export", h.handleFlowLogsExport)
					r.Post("/cities", h.handleFlowLogsCities)
				})
			})

			r.With(h.requireSession).Get("/metrics/edges", h.handleMetricEdges)
			r.Get("/topology/network", h.handleDemoNetwork)
			r.Get("/query-runs", h.handleListQueryRuns)
		})
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// decodeRequest decodes and validates a JSON body, writing the 400 itself on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSONStrict(r, dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid request", validationDetails(err))
		return false
	}
	return true
}

func validationDetails(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]any{"error": err.Error()}
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return map[string]any{"fields": fields}
}

// writeGCPError maps a GCP client failure onto the error envelope. Failures that invalidate the
// caller's credentials also end the session.
func (h *Handler) writeGCPError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gcp.ErrNoAccessToken):
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), nil)
		return
	case errors.Is(err, gcp.ErrNoProject):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "gcp_error", "GCP request timed out", nil)
		return
	}

	apiErr, ok := gcp.AsAPIError(err)
	if !ok {
		h.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("gcp call failed")
		h.writeError(w, http.StatusBadGateway, "gcp_error", err.Error(), nil)
		return
	}

	details := map[string]any{"service": apiErr.Service}
	if apiErr.Status != 0 {
		details["upstreamStatus"] = apiErr.Status
	}
	h.log.Warn().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("gcp_service", apiErr.Service).
		Str("operation", apiErr.Operation).
		Int("status", apiErr.Status).
		Bool("force_reauth", apiErr.ForceReauth).
		Msg("gcp call failed")

	if apiErr.ForceReauth {
		h.endSession(w, r)
		h.writeError(w, http.StatusUnauthorized, "reauth_required", apiErr.Message, details)
		return
	}

	switch apiErr.Status {
	case http.StatusBadRequest:
		h.writeError(w, http.StatusBadRequest, "validation_failed", apiErr.Message, details)
	case http.StatusForbidden:
		h.writeError(w, http.StatusForbidden, "forbidden", apiErr.Message, details)
	case http.StatusNotFound:
		h.writeError(w, http.StatusNotFound, "not_found", apiErr.Message, details)
	case http.StatusTooManyRequests:
		h.writeError(w, http.StatusTooManyRequests, "rate_limited", apiErr.Message, details)
	case http.StatusServiceUnavailable:
		h.writeError(w, http.StatusServiceUnavailable, "gcp_error", apiErr.Message, details)
	default:
		h.writeError(w, http.StatusBadGateway, "gcp_error", apiErr.Message, details)
	}
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleReadyZ only gates on the database when one is configured; query history is optional.
func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "database": "disabled"})
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "database": "ok"})
}

// projectID picks the request's project, else the configured default.
func (h *Handler) projectID(requested string) string {
	if p := strings.TrimSpace(requested); p != "" {
		return p
	}
	return h.opts.DefaultProject
}

func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d", max)
	}
	return n, nil
}
