// Package metricedges turns VM flow metrics from Cloud Monitoring into source/target edges.
//
// When Monitoring returns nothing usable, or fails, the package serves generated demo edges so the
// graph view always has something to render.
package metricedges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"netviz/core-go/internal/gcp"
)

// Metric names accepted from clients.
const (
	MetricTraffic    = "traffic"
	MetricLatency    = "latency"
	MetricPacketLoss = "packet_loss"
)

// Edge types narrowing the Monitoring filter.
const (
	EdgeAll          = "all"
	EdgeVMToVM       = "vm_to_vm"
	EdgeExternalToLB = "external_to_lb"
	EdgeLBToBackend  = "lb_to_backend"
	EdgeVMToVPN      = "vm_to_vpn"
)

// EdgeTypes lists the supported edge types in display order.
var EdgeTypes = []string{EdgeAll, EdgeVMToVM, EdgeExternalToLB, EdgeLBToBackend, EdgeVMToVPN}

// Sources reported in QueryDetails.
const (
	SourceGCP  = "gcp"
	SourceMock = "mock"
)

var metricTypes = map[string]string{
	MetricTraffic:    "networking.googleapis.com/vm_flow/egress_bytes_count",
	MetricLatency:    "networking.googleapis.com/vm_flow/rtt",
	MetricPacketLoss: "networking.googleapis.com/vm_flow/packet_loss",
}

// DefaultRange is the rate range shown to clients for each query.
const DefaultRange = 5 * time.Minute

const (
	window          = 6 * time.Hour
	alignmentPeriod = 60 * time.Second
)

var groupByFields = []string{
	"metric.labels.remote_location_type",
	"resource.labels.instance_id",
	"resource.labels.zone",
}

// MetricType resolves a metric name to its Monitoring type. Unknown names fall back to traffic.
func MetricType(metric string) string {
	if t, ok := metricTypes[metric]; ok {
		return t
	}
	return metricTypes[MetricTraffic]
}

// MetricName is the label shown to users; unknown names are echoed back unchanged.
func MetricName(metric string) string {
	if t, ok := metricTypes[metric]; ok {
		return t
	}
	return metric
}

func ValidMetric(metric string) bool {
	_, ok := metricTypes[metric]
	return ok
}

func ValidEdgeType(edgeType string) bool {
	for _, e := range EdgeTypes {
		if e == edgeType {
			return true
		}
	}
	return false
}

// BuildFilter returns the Monitoring filter for a metric type and edge type.
func BuildFilter(metricType, edgeType string) string {
	filter := fmt.Sprintf(`metric.type="%s" AND resource.type="gce_instance"`, metricType)
	switch edgeType {
	case EdgeExternalToLB:
		filter += ` AND resource.type="https_lb_rule"`
	case EdgeLBToBackend:
		filter += ` AND resource.type="backend_service"`
	case EdgeVMToVPN:
		filter += ` AND resource.type="vpn_tunnel"`
	}
	return filter
}

// DisplayQuery renders a PromQL-like summary of what was asked for over rng.
func DisplayQuery(metric, edgeType string, rng time.Duration) string {
	selector := ""
	if edgeType != EdgeAll {
		selector = fmt.Sprintf(`{edge_type="%s"}`, edgeType)
	}
	if rng <= 0 {
		rng = DefaultRange
	}
	return fmt.Sprintf("%s%s[%dm]", MetricName(metric), selector, int(rng.Minutes()))
}

// BuildQuery assembles the six-hour aggregated time-series request ending at end.
func BuildQuery(metric, edgeType string, end time.Time) gcp.TimeSeriesQuery {
	return gcp.TimeSeriesQuery{
		Filter: BuildFilter(MetricType(metric), edgeType),
		Start:  end.Add(-window),
		End:    end,
		Aggregation: &gcp.Aggregation{
			AlignmentPeriod: alignmentPeriod,
			Aligner:         "ALIGN_RATE",
			Reducer:         "REDUCE_SUM",
			GroupBy:         append([]string(nil), groupByFields...),
		},
	}
}

type Connection struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	MetricValue string `json:"metricValue"`
}

type QueryDetails struct {
	Metric       string `json:"metric"`
	Query        string `json:"query"`
	LatencyMs    int64  `json:"latencyMs"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Source       string `json:"source"`
}

type Result struct {
	Connections    []Connection `json:"connections"`
	QueryDetails   QueryDetails `json:"queryDetails"`
	ReauthRequired bool         `json:"reauthRequired"`
}

// TimeSeriesLister is satisfied by *gcp.MonitoringClient.
type TimeSeriesLister interface {
	ListTimeSeries(ctx context.Context, q gcp.TimeSeriesQuery) ([]gcp.TimeSeries, error)
}

// Transform keeps the newest point of each series that has points. A nil return means there was
// nothing to show.
func Transform(series []gcp.TimeSeries, metric string) []Connection {
	var out []Connection
	for _, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		latest := s.Points[0]

		source := s.ResourceLabels["instance_id"]
		if source == "" {
			source = s.ResourceLabels["zone"]
		}
		if source == "" {
			source = "unknown-source"
		}
		target := s.MetricLabels["remote_location_type"]
		if target == "" {
			target = "unknown-target"
		}

		value := "N/A"
		switch {
		case latest.Double != nil:
			value = FormatValue(*latest.Double, metric)
		case latest.Int64 != nil:
			value = FormatValue(float64(*latest.Int64), metric)
		}
		out = append(out, Connection{Source: source, Target: target, MetricValue: value})
	}
	return out
}

// FormatValue renders a raw sample for display.
func FormatValue(v float64, metric string) string {
	switch metric {
	case MetricTraffic:
		switch {
		case v >= 1e9:
			return fmt.Sprintf("%.2f GB", v/1e9)
		case v >= 1e6:
			return fmt.Sprintf("%.2f MB", v/1e6)
		case v >= 1e3:
			return fmt.Sprintf("%.2f KB", v/1e3)
		default:
			return fmt.Sprintf("%.0f B", v)
		}
	case MetricLatency:
		return fmt.Sprintf("%.1fms", v*1000)
	case MetricPacketLoss:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

type Options struct {
	Now  func() time.Time
	Mock *MockGenerator
	// Range is the display range of the rate selector. Zero uses DefaultRange.
	Range time.Duration
}

// Service fetches metric edges with a mock fallback.
type Service struct {
	log  zerolog.Logger
	now  func() time.Time
	mock *MockGenerator
	rng  time.Duration
}

func NewService(log zerolog.Logger, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mock := opts.Mock
	if mock == nil {
		mock = NewMockGenerator(nil)
	}
	rng := opts.Range
	if rng <= 0 {
		rng = DefaultRange
	}
	return &Service{log: log.With().Str("component", "metricedges").Logger(), now: now, mock: mock, rng: rng}
}

// Fetch never fails: errors and empty responses are answered with mock edges, and the error
// is surfaced in QueryDetails. A non-nil fetchErr (the client could not be opened) skips the call.
func (s *Service) Fetch(ctx context.Context, lister TimeSeriesLister, edgeType, metric string, fetchErr error) Result {
	start := time.Now()
	details := QueryDetails{
		Metric:  MetricName(metric),
		Query:   DisplayQuery(metric, edgeType, s.rng),
		Success: true,
		Source:  SourceGCP,
	}

	err := fetchErr
	if err == nil && lister == nil {
		err = gcp.ErrNoAccessToken
	}

	var conns []Connection
	if err == nil {
		var series []gcp.TimeSeries
		series, err = lister.ListTimeSeries(ctx, BuildQuery(metric, edgeType, s.now()))
		if err == nil {
			conns = Transform(series, metric)
			if len(conns) == 0 {
				details.Source = SourceMock
				conns = s.mock.Connections(EdgeAll, metric)
			}
		}
	}

	res := Result{}
	if err != nil {
		s.log.Warn().Err(err).Str("edge_type", edgeType).Str("metric", metric).Msg("monitoring fetch failed, serving mock data")
		details.Source = SourceMock
		details.ErrorMessage = err.Error()
		res.ReauthRequired = gcp.ReauthRequired(err)
		conns = s.mock.Connections(edgeType, metric)
	}

	details.LatencyMs = time.Since(start).Milliseconds()
	res.Connections = conns
	res.QueryDetails = details
	return res
}

// Normalize lowercases and trims client input.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
