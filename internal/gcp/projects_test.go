package gcp

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/rs/zerolog"

	"netviz/core-go/internal/metrics"
)

const crmHost = "https://cloudresourcemanager.googleapis.com"

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(func() {
		gock.RestoreClient(client)
		gock.Off()
	})
	guard := NewGuard(zerolog.Nop(), metrics.New(), GuardOptions{RetryAttempts: 3, RetryDelay: time.Millisecond})
	return NewFactory(FactoryOptions{HTTPClient: client, Guard: guard, Logger: zerolog.Nop()})
}

func TestProjectsList_mapsProjects(t *testing.T) {
	f := newTestFactory(t)
	gock.New(crmHost).
		Get("/v1/projects").
		MatchParam("pageSize", "100").
		MatchParam("filter", "lifecycleState:ACTIVE").
		MatchHeader("Authorization", "Bearer tok-123").
		Reply(http.StatusOK).
		JSON(map[string]any{
			"projects": []map[string]any{
				{"projectId": "alpha", "name": "Alpha", "projectNumber": "42", "lifecycleState": "ACTIVE", "labels": map[string]string{"env": "prod"}},
				{"projectId": "beta", "lifecycleState": "ACTIVE"},
			},
			"nextPageToken": "next-1",
		})

	c, err := f.Projects(context.Background(), StaticToken("tok-123"))
	if err != nil {
		t.Fatalf("projects client: %v", err)
	}
	page, err := c.List(context.Background(), 0, "", "lifecycleState:ACTIVE")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(page.Projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(page.Projects))
	}
	if page.Projects[0].ProjectNumber != "42" || page.Projects[0].Labels["env"] != "prod" {
		t.Fatalf("unexpected first project: %+v", page.Projects[0])
	}
	if page.Projects[1].Name != "beta" {
		t.Fatalf("expected name to fall back to project id, got %q", page.Projects[1].Name)
	}
	if page.NextPageToken != "next-1" {
		t.Fatalf("expected next page token, got %q", page.NextPageToken)
	}
	if !gock.IsDone() {
		t.Fatalf("expected all mocks to be consumed")
	}
}

func TestProjectsListAll_followsPageTokens(t *testing.T) {
	f := newTestFactory(t)
	gock.New(crmHost).
		Get("/v1/projects").
		MatchParam("pageSize", "500").
		ParamPresent("pageToken").
		Reply(http.StatusOK).
		JSON(map[string]any{"projects": []map[string]any{{"projectId": "second"}}})
	gock.New(crmHost).
		Get("/v1/projects").
		MatchParam("pageSize", "500").
		Reply(http.StatusOK).
		JSON(map[string]any{"projects": []map[string]any{{"projectId": "first"}}, "nextPageToken": "p2"})

	c, err := f.Projects(context.Background(), StaticToken("tok"))
	if err != nil {
		t.Fatalf("projects client: %v", err)
	}
	all, err := c.ListAll(context.Background(), "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(all) != 2 || all[0].ProjectID != "first" || all[1].ProjectID != "second" {
		t.Fatalf("unexpected projects: %+v", all)
	}
}

func TestProjectsList_errorMessages(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		message    string
		want       string
		wantReauth bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad token", "Authentication failed. Please re-authenticate with updated scopes.", true},
		{"forbidden", http.StatusForbidden, "caller lacks permission", "Access denied. Please check your permissions and ensure the Cloud Resource Manager API is enabled. Error: caller lacks permission", false},
		{"not found", http.StatusNotFound, "nope", "Resource Manager API endpoint not found. Please verify the API is enabled.", false},
		{"bad request", http.StatusBadRequest, "invalid filter", "invalid filter", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTestFactory(t)
			gock.New(crmHost).
				Get("/v1/projects").
				Reply(tc.status).
				JSON(map[string]any{"error": map[string]any{"code": tc.status, "message": tc.message}})

			c, err := f.Projects(context.Background(), StaticToken("tok"))
			if err != nil {
				t.Fatalf("projects client: %v", err)
			}
			_, err = c.List(context.Background(), 10, "", "")
			apiErr, ok := AsAPIError(err)
			if !ok {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, apiErr.Message)
			}
			if apiErr.ForceReauth != tc.wantReauth {
				t.Fatalf("expected reauth=%v, got %v", tc.wantReauth, apiErr.ForceReauth)
			}
			if apiErr.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, apiErr.Status)
			}
		})
	}
}

func TestProjectsList_retriesServerErrors(t *testing.T) {
	f := newTestFactory(t)
	gock.New(crmHost).
		Get("/v1/projects").
		Times(2).
		Reply(http.StatusServiceUnavailable).
		JSON(map[string]any{"error": map[string]any{"code": 503, "message": "backend unavailable"}})
	gock.New(crmHost).
		Get("/v1/projects").
		Reply(http.StatusOK).
		JSON(map[string]any{"projects": []map[string]any{{"projectId": "ok"}}})

	c, err := f.Projects(context.Background(), StaticToken("tok"))
	if err != nil {
		t.Fatalf("projects client: %v", err)
	}
	page, err := c.List(context.Background(), 10, "", "")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(page.Projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(page.Projects))
	}
}

func TestProjectsGet_notFound(t *testing.T) {
	f := newTestFactory(t)
	gock.New(crmHost).
		Get("/v1/projects/ghost").
		Reply(http.StatusNotFound).
		JSON(map[string]any{"error": map[string]any{"code": 404, "message": "missing"}})

	c, err := f.Projects(context.Background(), StaticToken("tok"))
	if err != nil {
		t.Fatalf("projects client: %v", err)
	}
	_, err = c.Get(context.Background(), "ghost")
	if err == nil || err.Error() != "Project ghost not found or you don't have access to it." {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFactory_requiresToken(t *testing.T) {
	f := NewFactory(FactoryOptions{Logger: zerolog.Nop()})
	if _, err := f.Projects(context.Background(), nil); err != ErrNoAccessToken {
		t.Fatalf("expected ErrNoAccessToken, got %v", err)
	}
	if _, err := f.BigQuery(context.Background(), StaticToken("tok"), " "); err != ErrNoProject {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	if _, err := f.Monitoring(context.Background(), StaticToken("tok"), ""); err != ErrNoProject {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
}

func TestMockProjects(t *testing.T) {
	projects := MockProjects()
	if len(projects) != 3 {
		t.Fatalf("expected 3 mock projects, got %d", len(projects))
	}
	if projects[1].Name != "Demo Project" {
		t.Fatalf("expected Demo Project, got %q", projects[1].Name)
	}
}
