package httpapi

import (
	"context"

	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/sqlcgen"
)

// The narrow views of the GCP clients the handlers call. The gcp package types satisfy them;
// tests substitute fakes.

type projectsAPI interface {
	List(ctx context.Context, pageSize int, pageToken, filter string) (gcp.ProjectPage, error)
	ListAll(ctx context.Context, filter string) ([]gcp.Project, error)
	Get(ctx context.Context, projectID string) (gcp.Project, error)
}

type bigQueryAPI interface {
	Query(ctx context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error)
	ListDatasets(ctx context.Context) ([]gcp.DatasetRef, error)
	ListTables(ctx context.Context, datasetID string) ([]gcp.TableRef, error)
	Close() error
}

type monitoringAPI interface {
	ListTimeSeries(ctx context.Context, q gcp.TimeSeriesQuery) ([]gcp.TimeSeries, error)
	Close() error
}

// gcpClients opens per-request clients bound to the session's access token.
type gcpClients interface {
	Projects(ctx context.Context, accessToken string) (projectsAPI, error)
	BigQuery(ctx context.Context, accessToken, projectID string) (bigQueryAPI, error)
	Monitoring(ctx context.Context, accessToken, projectID string) (monitoringAPI, error)
}

type factoryClients struct {
	f *gcp.Factory
}

func (c factoryClients) Projects(ctx context.Context, accessToken string) (projectsAPI, error) {
	if accessToken == "" {
		return nil, gcp.ErrNoAccessToken
	}
	client, err := c.f.Projects(ctx, gcp.StaticToken(accessToken))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c factoryClients) BigQuery(ctx context.Context, accessToken, projectID string) (bigQueryAPI, error) {
	if accessToken == "" {
		return nil, gcp.ErrNoAccessToken
	}
	client, err := c.f.BigQuery(ctx, gcp.StaticToken(accessToken), projectID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c factoryClients) Monitoring(ctx context.Context, accessToken, projectID string) (monitoringAPI, error) {
	if accessToken == "" {
		return nil, gcp.ErrNoAccessToken
	}
	client, err := c.f.Monitoring(ctx, gcp.StaticToken(accessToken), projectID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// queryRunStore is the query-history subset of *sqlcgen.Queries.
type queryRunStore interface {
	InsertQueryRun(ctx context.Context, arg sqlcgen.InsertQueryRunParams) (sqlcgen.QueryRun, error)
	ListQueryRuns(ctx context.Context, limit int32) ([]sqlcgen.QueryRun, error)
}
