package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Aggregation uses the Monitoring enum names, e.g. ALIGN_RATE and REDUCE_SUM.
type Aggregation struct {
	AlignmentPeriod time.Duration
	Aligner         string
	Reducer         string
	GroupBy         []string
}

type TimeSeriesQuery struct {
	Filter      string
	Start       time.Time
	End         time.Time
	Aggregation *Aggregation
}

// Point holds one sample. At most one of Double and Int64 is set.
type Point struct {
	End    time.Time
	Double *float64
	Int64  *int64
}

// TimeSeries carries points newest first, as the API returns them.
type TimeSeries struct {
	MetricType     string
	MetricLabels   map[string]string
	ResourceType   string
	ResourceLabels map[string]string
	Points         []Point
}

// MonitoringClient reads time series for a single project.
type MonitoringClient struct {
	client    *monitoring.MetricClient
	projectID string
	guard     *Guard
	factory   *Factory
}

func newMonitoringClient(ctx context.Context, f *Factory, projectID string, opts []option.ClientOption) (*MonitoringClient, error) {
	client, err := monitoring.NewMetricClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create monitoring client: %w", err)
	}
	return &MonitoringClient{client: client, projectID: projectID, guard: f.guard, factory: f}, nil
}

func (c *MonitoringClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *MonitoringClient) ProjectID() string {
	return c.projectID
}

// ListTimeSeries runs timeSeries.list with the FULL view and drains every page.
func (c *MonitoringClient) ListTimeSeries(ctx context.Context, q TimeSeriesQuery) ([]TimeSeries, error) {
	req, err := buildListRequest(c.projectID, q)
	if err != nil {
		return nil, err
	}
	series, err := run(ctx, c.guard, ServiceMonitoring, "timeSeries.list", func(ctx context.Context) ([]TimeSeries, error) {
		var out []TimeSeries
		it := c.client.ListTimeSeries(ctx, req)
		for {
			ts, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			out = append(out, timeSeriesFromProto(ts))
		}
	})
	if err != nil {
		mapped := monitoringError(c.projectID, err)
		if apiErr, ok := AsAPIError(mapped); ok {
			c.factory.log.Warn().Int("status", apiErr.Status).Str("project_id", c.projectID).Msg("monitoring request failed")
		}
		return nil, mapped
	}
	return series, nil
}

func buildListRequest(projectID string, q TimeSeriesQuery) (*monitoringpb.ListTimeSeriesRequest, error) {
	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + projectID,
		Filter: q.Filter,
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(q.Start),
			EndTime:   timestamppb.New(q.End),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
	}
	if a := q.Aggregation; a != nil {
		agg := &monitoringpb.Aggregation{GroupByFields: a.GroupBy}
		if a.AlignmentPeriod > 0 {
			agg.AlignmentPeriod = durationpb.New(a.AlignmentPeriod)
		}
		if a.Aligner != "" {
			v, ok := monitoringpb.Aggregation_Aligner_value[a.Aligner]
			if !ok {
				return nil, fmt.Errorf("unknown aligner %q", a.Aligner)
			}
			agg.PerSeriesAligner = monitoringpb.Aggregation_Aligner(v)
		}
		if a.Reducer != "" {
			v, ok := monitoringpb.Aggregation_Reducer_value[a.Reducer]
			if !ok {
				return nil, fmt.Errorf("unknown reducer %q", a.Reducer)
			}
			agg.CrossSeriesReducer = monitoringpb.Aggregation_Reducer(v)
		}
		req.Aggregation = agg
	}
	return req, nil
}

func timeSeriesFromProto(ts *monitoringpb.TimeSeries) TimeSeries {
	out := TimeSeries{
		MetricType:     ts.GetMetric().GetType(),
		MetricLabels:   ts.GetMetric().GetLabels(),
		ResourceType:   ts.GetResource().GetType(),
		ResourceLabels: ts.GetResource().GetLabels(),
		Points:         make([]Point, 0, len(ts.GetPoints())),
	}
	for _, p := range ts.GetPoints() {
		pt := Point{End: p.GetInterval().GetEndTime().AsTime()}
		switch v := p.GetValue().GetValue().(type) {
		case *monitoringpb.TypedValue_DoubleValue:
			d := v.DoubleValue
			pt.Double = &d
		case *monitoringpb.TypedValue_Int64Value:
			i := v.Int64Value
			pt.Int64 = &i
		}
		out.Points = append(out.Points, pt)
	}
	return out
}
