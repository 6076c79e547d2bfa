package gcp

import (
	"context"
	"fmt"
	"strconv"

	crm "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

const (
	DefaultProjectPageSize = 100
	listAllPageSize        = 500
)

type Project struct {
	ProjectID      string            `json:"projectId"`
	Name           string            `json:"name"`
	ProjectNumber  string            `json:"projectNumber"`
	LifecycleState string            `json:"lifecycleState"`
	CreateTime     string            `json:"createTime,omitempty"`
	Labels         map[string]string `json:"labels,omitempty"`
}

type ProjectPage struct {
	Projects      []Project `json:"projects"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// ProjectsClient enumerates projects through Cloud Resource Manager v1.
type ProjectsClient struct {
	svc   *crm.Service
	guard *Guard
}

func newProjectsClient(ctx context.Context, f *Factory, opts []option.ClientOption) (*ProjectsClient, error) {
	svc, err := crm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create resource manager client: %w", err)
	}
	return &ProjectsClient{svc: svc, guard: f.guard}, nil
}

// List returns one page. A zero pageSize uses DefaultProjectPageSize.
func (c *ProjectsClient) List(ctx context.Context, pageSize int, pageToken, filter string) (ProjectPage, error) {
	if pageSize <= 0 {
		pageSize = DefaultProjectPageSize
	}
	resp, err := run(ctx, c.guard, ServiceResourceManager, "projects.list", func(ctx context.Context) (*crm.ListProjectsResponse, error) {
		call := c.svc.Projects.List().PageSize(int64(pageSize)).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		if filter != "" {
			call = call.Filter(filter)
		}
		return call.Do()
	})
	if err != nil {
		return ProjectPage{}, projectsListError(err)
	}

	page := ProjectPage{Projects: make([]Project, 0, len(resp.Projects)), NextPageToken: resp.NextPageToken}
	for _, p := range resp.Projects {
		page.Projects = append(page.Projects, projectFromAPI(p))
	}
	return page, nil
}

// ListAll follows nextPageToken until exhausted.
func (c *ProjectsClient) ListAll(ctx context.Context, filter string) ([]Project, error) {
	all := []Project{}
	token := ""
	for {
		page, err := c.List(ctx, listAllPageSize, token, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Projects...)
		if page.NextPageToken == "" {
			return all, nil
		}
		token = page.NextPageToken
	}
}

func (c *ProjectsClient) Get(ctx context.Context, projectID string) (Project, error) {
	if projectID == "" {
		return Project{}, ErrNoProject
	}
	p, err := run(ctx, c.guard, ServiceResourceManager, "projects.get", func(ctx context.Context) (*crm.Project, error) {
		return c.svc.Projects.Get(projectID).Context(ctx).Do()
	})
	if err != nil {
		return Project{}, projectGetError(projectID, err)
	}
	return projectFromAPI(p), nil
}

func projectFromAPI(p *crm.Project) Project {
	out := Project{
		ProjectID:      p.ProjectId,
		Name:           p.Name,
		LifecycleState: p.LifecycleState,
		CreateTime:     p.CreateTime,
		Labels:         p.Labels,
	}
	if p.ProjectNumber != 0 {
		out.ProjectNumber = strconv.FormatInt(p.ProjectNumber, 10)
	}
	if out.Name == "" {
		out.Name = out.ProjectID
	}
	return out
}

// MockProjects is the fixed list served in mock mode.
func MockProjects() []Project {
	return []Project{
		{ProjectID: "przemeksroka-joonix-service", Name: "przemeksroka-joonix-service", LifecycleState: "ACTIVE"},
		{ProjectID: "my-demo-project-123456", Name: "Demo Project", LifecycleState: "ACTIVE"},
		{ProjectID: "production-env-789012", Name: "Production Environment", LifecycleState: "ACTIVE"},
	}
}
