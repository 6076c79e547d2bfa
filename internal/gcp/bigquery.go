package gcp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultMaxResults = 10000

type QueryOptions struct {
	MaxResults    int
	UseLegacySQL  bool
	UseQueryCache bool
}

// DefaultQueryOptions mirrors the jobs.query defaults the dashboard relies on.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{MaxResults: DefaultMaxResults, UseQueryCache: true}
}

type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type QueryResult struct {
	JobID               string           `json:"jobId"`
	Schema              []Field          `json:"schema"`
	Rows                []map[string]any `json:"rows"`
	TotalRows           uint64           `json:"totalRows"`
	TotalBytesProcessed int64            `json:"totalBytesProcessed"`
	CacheHit            bool             `json:"cacheHit"`
}

type DatasetRef struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
}

type TableRef struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
	TableID   string `json:"tableId"`
}

// BigQueryClient runs standard-SQL jobs billed to one project.
type BigQueryClient struct {
	client    *bigquery.Client
	projectID string
	guard     *Guard
	factory   *Factory
}

func newBigQueryClient(ctx context.Context, f *Factory, projectID string, opts []option.ClientOption) (*BigQueryClient, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	return &BigQueryClient{client: client, projectID: projectID, guard: f.guard, factory: f}, nil
}

func (c *BigQueryClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Query runs sql to completion and reads up to MaxResults rows.
func (c *BigQueryClient) Query(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	res, err := run(ctx, c.guard, ServiceBigQuery, "jobs.query", func(ctx context.Context) (*QueryResult, error) {
		return c.query(ctx, sql, opts)
	})
	if err != nil {
		c.factory.log.Warn().Err(err).Str("project_id", c.projectID).Msg("bigquery query failed")
		return nil, bigQueryError("jobs.query", err)
	}
	c.factory.metrics.AddBigQueryBytes(res.TotalBytesProcessed)
	return res, nil
}

func (c *BigQueryClient) query(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error) {
	q := c.client.Query(sql)
	q.UseLegacySQL = opts.UseLegacySQL
	q.UseStandardSQL = !opts.UseLegacySQL
	q.DisableQueryCache = !opts.UseQueryCache

	job, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, err
	}
	it.PageInfo().MaxSize = opts.MaxResults

	res := &QueryResult{JobID: job.ID(), Rows: []map[string]any{}}
	for len(res.Rows) < opts.MaxResults {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(row))
		for k, v := range row {
			out[k] = convertValue(v)
		}
		res.Rows = append(res.Rows, out)
	}
	res.TotalRows = it.TotalRows
	for _, fs := range it.Schema {
		res.Schema = append(res.Schema, Field{Name: fs.Name, Type: string(fs.Type)})
	}

	if stats := status.Statistics; stats != nil {
		res.TotalBytesProcessed = stats.TotalBytesProcessed
		if qs, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			res.CacheHit = qs.CacheHit
		}
	}
	return res, nil
}

// ListDatasets lists datasets in the client's project.
func (c *BigQueryClient) ListDatasets(ctx context.Context) ([]DatasetRef, error) {
	out, err := run(ctx, c.guard, ServiceBigQuery, "datasets.list", func(ctx context.Context) ([]DatasetRef, error) {
		var refs []DatasetRef
		it := c.client.Datasets(ctx)
		for {
			ds, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return refs, nil
			}
			if err != nil {
				return nil, err
			}
			refs = append(refs, DatasetRef{ProjectID: ds.ProjectID, DatasetID: ds.DatasetID})
		}
	})
	if err != nil {
		return nil, bigQueryError("datasets.list", err)
	}
	if out == nil {
		out = []DatasetRef{}
	}
	return out, nil
}

func (c *BigQueryClient) ListTables(ctx context.Context, datasetID string) ([]TableRef, error) {
	out, err := run(ctx, c.guard, ServiceBigQuery, "tables.list", func(ctx context.Context) ([]TableRef, error) {
		var refs []TableRef
		it := c.client.Dataset(datasetID).Tables(ctx)
		for {
			t, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return refs, nil
			}
			if err != nil {
				return nil, err
			}
			refs = append(refs, TableRef{ProjectID: t.ProjectID, DatasetID: t.DatasetID, TableID: t.TableID})
		}
	})
	if err != nil {
		return nil, bigQueryError("tables.list", err)
	}
	if out == nil {
		out = []TableRef{}
	}
	return out, nil
}

// convertValue turns BigQuery cell values into JSON-friendly Go values.
func convertValue(v bigquery.Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case civil.Date:
		return x.String()
	case civil.Time:
		return x.String()
	case civil.DateTime:
		return x.String()
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case []bigquery.Value:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = convertValue(e)
		}
		return out
	default:
		return x
	}
}
