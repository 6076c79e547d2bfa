package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"netviz/core-go/internal/auth"
	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/sqlcgen"
)

type fakeProjects struct {
	listFn    func(ctx context.Context, pageSize int, pageToken, filter string) (gcp.ProjectPage, error)
	listAllFn func(ctx context.Context, filter string) ([]gcp.Project, error)
	getFn     func(ctx context.Context, projectID string) (gcp.Project, error)
}

func (f fakeProjects) List(ctx context.Context, pageSize int, pageToken, filter string) (gcp.ProjectPage, error) {
	return f.listFn(ctx, pageSize, pageToken, filter)
}

func (f fakeProjects) ListAll(ctx context.Context, filter string) ([]gcp.Project, error) {
	return f.listAllFn(ctx, filter)
}

func (f fakeProjects) Get(ctx context.Context, projectID string) (gcp.Project, error) {
	return f.getFn(ctx, projectID)
}

type fakeBigQuery struct {
	queryFn        func(ctx context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error)
	listDatasetsFn func(ctx context.Context) ([]gcp.DatasetRef, error)
	listTablesFn   func(ctx context.Context, datasetID string) ([]gcp.TableRef, error)
}

func (f fakeBigQuery) Query(ctx context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error) {
	return f.queryFn(ctx, sql, opts)
}

func (f fakeBigQuery) ListDatasets(ctx context.Context) ([]gcp.DatasetRef, error) {
	return f.listDatasetsFn(ctx)
}

func (f fakeBigQuery) ListTables(ctx context.Context, datasetID string) ([]gcp.TableRef, error) {
	return f.listTablesFn(ctx, datasetID)
}

func (f fakeBigQuery) Close() error { return nil }

type fakeMonitoring struct {
	listFn func(ctx context.Context, q gcp.TimeSeriesQuery) ([]gcp.TimeSeries, error)
}

func (f fakeMonitoring) ListTimeSeries(ctx context.Context, q gcp.TimeSeriesQuery) ([]gcp.TimeSeries, error) {
	return f.listFn(ctx, q)
}

func (f fakeMonitoring) Close() error { return nil }

// fakeClients records the token and project each client was opened with.
type fakeClients struct {
	projects   fakeProjects
	bigquery   fakeBigQuery
	monitoring fakeMonitoring

	lastToken   string
	lastProject string
}

func (f *fakeClients) Projects(_ context.Context, accessToken string) (projectsAPI, error) {
	f.lastToken = accessToken
	return f.projects, nil
}

func (f *fakeClients) BigQuery(_ context.Context, accessToken, projectID string) (bigQueryAPI, error) {
	f.lastToken, f.lastProject = accessToken, projectID
	return f.bigquery, nil
}

func (f *fakeClients) Monitoring(_ context.Context, accessToken, projectID string) (monitoringAPI, error) {
	f.lastToken, f.lastProject = accessToken, projectID
	return f.monitoring, nil
}

type fakeQueryRuns struct {
	insertFn func(ctx context.Context, arg sqlcgen.InsertQueryRunParams) (sqlcgen.QueryRun, error)
	listFn   func(ctx context.Context, limit int32) ([]sqlcgen.QueryRun, error)
}

func (f fakeQueryRuns) InsertQueryRun(ctx context.Context, arg sqlcgen.InsertQueryRunParams) (sqlcgen.QueryRun, error) {
	if f.insertFn == nil {
		return sqlcgen.QueryRun{}, nil
	}
	return f.insertFn(ctx, arg)
}

func (f fakeQueryRuns) ListQueryRuns(ctx context.Context, limit int32) ([]sqlcgen.QueryRun, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, limit)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got: %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

// newTestHandler returns a handler with fake GCP clients and one stored session.
func newTestHandler(t *testing.T, opts Options) (*Handler, *fakeClients, *auth.Session) {
	t.Helper()
	h := NewHandler(NewLogger("debug"), Deps{Options: opts})
	clients := &fakeClients{}
	h.clients = clients

	sess := &auth.Session{
		ID:              "session-1",
		AccessToken:     "ya29.token",
		TokenType:       "Bearer",
		AuthenticatedAt: time.Now(),
		ExpiresAt:       time.Now().Add(time.Hour),
		User:            auth.User{ID: "u1", Email: "user@example.com", Name: "User"},
		Flow:            auth.FlowPKCE,
	}
	if err := h.sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return h, clients, sess
}

func withCookie(h *Handler, req *http.Request, sessionID string) *http.Request {
	req.AddCookie(&http.Cookie{Name: h.opts.CookieName, Value: sessionID})
	return req
}

func TestHealthz_OK(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}
	// Request ID should be set in responses by middleware.
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestReadyz_WithoutDatabase(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if body := decodeBody(t, rr); body["database"] != "disabled" {
		t.Fatalf("expected database disabled, got %v", body["database"])
	}
}

func TestMetrics_Unconfigured(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a registry, got %d", rr.Code)
	}
}

func TestQueryRuns_NoDatabase(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/query-runs", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "db_unavailable" {
		t.Fatalf("expected db_unavailable, got %v", code)
	}
}

func TestQueryRuns_List(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})
	project := "demo"
	hours := int32(24)
	var gotLimit int32
	h.runs = fakeQueryRuns{
		listFn: func(ctx context.Context, limit int32) ([]sqlcgen.QueryRun, error) {
			gotLimit = limit
			return []sqlcgen.QueryRun{{
				ID:             "00000000-0000-0000-0000-000000000001",
				Kind:           runKindFlowLogs,
				ProjectID:      &project,
				TimeRangeHours: &hours,
				Success:        true,
				LatencyMs:      120,
				CreatedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			}}, nil
		},
	}

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/query-runs?limit=10", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotLimit != 10 {
		t.Fatalf("expected limit 10, got %d", gotLimit)
	}
	runs := decodeBody(t, rr)["runs"].([]any)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0].(map[string]any)
	if run["kind"] != runKindFlowLogs || run["createdAt"] != "2024-06-01T12:00:00Z" {
		t.Fatalf("unexpected run %v", run)
	}
	if g, ok := run["granularities"].([]any); !ok || len(g) != 0 {
		t.Fatalf("expected empty granularities array, got %v", run["granularities"])
	}
}

func TestQueryRuns_RejectsBadLimit(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{})
	h.runs = fakeQueryRuns{}

	for _, raw := range []string{"0", "501", "ten", "5x"} {
		rr := httptest.NewRecorder()
		h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/query-runs?limit="+raw, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", raw, rr.Code)
		}
	}
}

func TestProjects_RequiresSession(t *testing.T) {
	h, _, _ := newTestHandler(t, Options{})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %v", code)
	}
}

func TestProjects_UnknownSession(t *testing.T) {
	h, _, _ := newTestHandler(t, Options{})

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "nope")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestProjects_ExpiredSessionIsDeleted(t *testing.T) {
	h, _, _ := newTestHandler(t, Options{})
	old := &auth.Session{ID: "old", AccessToken: "t", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := h.sessions.Create(context.Background(), old); err != nil {
		t.Fatalf("create: %v", err)
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "old")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, err := h.sessions.Get(context.Background(), "old"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected expired session to be deleted, got %v", err)
	}
}

func TestProjects_MockMode(t *testing.T) {
	h, clients, _ := newTestHandler(t, Options{MockMode: true})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	projects := decodeBody(t, rr)["projects"].([]any)
	if len(projects) != len(gcp.MockProjects()) {
		t.Fatalf("expected mock projects, got %d", len(projects))
	}
	if clients.lastToken != "" {
		t.Fatalf("expected no GCP client in mock mode")
	}
}

func TestProjects_List(t *testing.T) {
	h, clients, sess := newTestHandler(t, Options{})
	clients.projects.listFn = func(ctx context.Context, pageSize int, pageToken, filter string) (gcp.ProjectPage, error) {
		if pageSize != 25 || pageToken != "next" || filter != "name:prod*" {
			t.Fatalf("unexpected args size=%d token=%q filter=%q", pageSize, pageToken, filter)
		}
		return gcp.ProjectPage{Projects: []gcp.Project{{ProjectID: "prod-1", Name: "Prod"}}}, nil
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects?pageSize=25&pageToken=next&filter=name:prod*", nil), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if clients.lastToken != sess.AccessToken {
		t.Fatalf("expected session token to be used, got %q", clients.lastToken)
	}
}

func TestProjects_List_InvalidPageSize(t *testing.T) {
	h, _, sess := newTestHandler(t, Options{})

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects?pageSize=0", nil), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestProjects_ForcedReauthEndsSession(t *testing.T) {
	h, clients, sess := newTestHandler(t, Options{})
	clients.projects.listFn = func(ctx context.Context, pageSize int, pageToken, filter string) (gcp.ProjectPage, error) {
		return gcp.ProjectPage{}, &gcp.APIError{
			Service:     gcp.ServiceResourceManager,
			Status:      http.StatusUnauthorized,
			Message:     "Authentication failed. Please re-authenticate with updated scopes.",
			ForceReauth: true,
		}
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "reauth_required" {
		t.Fatalf("expected reauth_required, got %v", code)
	}
	if _, err := h.sessions.Get(context.Background(), sess.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected session to be deleted, got %v", err)
	}
	if sc := rr.Header().Get("Set-Cookie"); !strings.Contains(sc, h.opts.CookieName+"=;") {
		t.Fatalf("expected cookie to be cleared, got %q", sc)
	}
}

func TestProjects_Get_Forbidden(t *testing.T) {
	h, clients, sess := newTestHandler(t, Options{})
	clients.projects.getFn = func(ctx context.Context, projectID string) (gcp.Project, error) {
		return gcp.Project{}, &gcp.APIError{
			Service: gcp.ServiceResourceManager,
			Status:  http.StatusForbidden,
			Message: "Access denied for project " + projectID + ". Check your permissions.",
		}
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects/secret-project", nil), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	errObj := body["error"].(map[string]any)
	if errObj["code"] != "forbidden" || !strings.Contains(errObj["message"].(string), "secret-project") {
		t.Fatalf("unexpected error %v", errObj)
	}
}

func TestProjects_Get_MockNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t, Options{MockMode: true})

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects/unknown", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBigQuery_ListDatasets_DefaultProject(t *testing.T) {
	h, clients, sess := newTestHandler(t, Options{DefaultProject: "fallback-project"})
	clients.bigquery.listDatasetsFn = func(ctx context.Context) ([]gcp.DatasetRef, error) {
		return []gcp.DatasetRef{{ProjectID: "fallback-project", DatasetID: "VPCFlowLogs"}}, nil
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodGet, "/api/v1/bigquery/datasets", nil), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if clients.lastProject != "fallback-project" {
		t.Fatalf("expected default project, got %q", clients.lastProject)
	}
}

func TestBigQuery_Query_RejectsUnknownFields(t *testing.T) {
	h, _, sess := newTestHandler(t, Options{})

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodPost, "/api/v1/bigquery/query", strings.NewReader(`{"query":"SELECT 1","nope":true}`)), sess.ID)
	req.Header.Set("Content-Type", "application/json")
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := errorCode(t, rr); code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %v", code)
	}
}

func TestBigQuery_Query_RequiresQuery(t *testing.T) {
	h, _, sess := newTestHandler(t, Options{})

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodPost, "/api/v1/bigquery/query", strings.NewReader(`{"projectId":"p"}`)), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	details := decodeBody(t, rr)["error"].(map[string]any)["details"].(map[string]any)
	if fields := details["fields"].(map[string]any); fields["Query"] != "required" {
		t.Fatalf("expected Query required, got %v", fields)
	}
}

func TestBigQuery_Query_RecordsRun(t *testing.T) {
	h, clients, sess := newTestHandler(t, Options{})
	clients.bigquery.queryFn = func(ctx context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error) {
		if opts.MaxResults != gcp.DefaultMaxResults || opts.UseQueryCache {
			t.Fatalf("unexpected options %+v", opts)
		}
		return &gcp.QueryResult{JobID: "job-1", Rows: []map[string]any{{"n": int64(1)}}, TotalRows: 1, TotalBytesProcessed: 2048}, nil
	}
	var recorded sqlcgen.InsertQueryRunParams
	h.runs = fakeQueryRuns{
		insertFn: func(ctx context.Context, arg sqlcgen.InsertQueryRunParams) (sqlcgen.QueryRun, error) {
			recorded = arg
			return sqlcgen.QueryRun{ID: arg.ID}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := withCookie(h, httptest.NewRequest(http.MethodPost, "/api/v1/bigquery/query", strings.NewReader(`{"projectId":"billing-project","query":"SELECT 1","useQueryCache":false}`)), sess.ID)
	h.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["jobId"] != "job-1" {
		t.Fatalf("expected job id in response")
	}
	if recorded.Kind != runKindBigQuery || !recorded.Success || recorded.BytesProcessed != 2048 {
		t.Fatalf("unexpected recorded run %+v", recorded)
	}
	if recorded.ProjectID == nil || *recorded.ProjectID != "billing-project" {
		t.Fatalf("expected project to be recorded, got %v", recorded.ProjectID)
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{Options: Options{
		RateLimitEnabled:  true,
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	}})
	router := h.Router()

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/flowlogs/granularities", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		router.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rr.Code)
		}
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h := NewHandler(NewLogger("debug"), Deps{Options: Options{CORSOrigins: []string{"http://localhost:4200"}}})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	h.Router().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed")
	}
}
