package flowlogs

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/geo"
)

// QueryRunner executes one BigQuery SQL statement. *gcp.BigQueryClient satisfies it.
type QueryRunner interface {
	Query(ctx context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error)
}

type Endpoint struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Hostname string `json:"hostname,omitempty"`
}

// Connection is one aggregated source/target pair.
type Connection struct {
	Source      Endpoint `json:"source"`
	Target      Endpoint `json:"target"`
	Bytes       int64    `json:"bytes"`
	Packets     int64    `json:"packets"`
	Flows       int64    `json:"flows"`
	Granularity string   `json:"granularity,omitempty"`
}

type GranularityResult struct {
	Connections     []Connection `json:"connections"`
	LatencyMs       int64        `json:"latencyMs"`
	Success         bool         `json:"success"`
	GranularityName string       `json:"granularityName"`
	Error           string       `json:"error,omitempty"`
	TotalRows       uint64       `json:"totalRows"`
	BytesProcessed  int64        `json:"bytesProcessed"`

	// err keeps the typed failure for callers that need to inspect it.
	err error
}

// Err returns the failure behind a result with Success=false.
func (r GranularityResult) Err() error {
	return r.err
}

type CityTraffic struct {
	City         string   `json:"city"`
	Country      string   `json:"country"`
	CountryCode  string   `json:"countryCode,omitempty"`
	Continent    string   `json:"continent"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	TotalBytes   int64    `json:"totalBytes"`
	TotalPackets int64    `json:"totalPackets"`
	FlowCount    int64    `json:"flowCount"`
	AvgLatencyMs *float64 `json:"avgLatencyMs"`
	MaxLatencyMs *float64 `json:"maxLatencyMs"`
}

type CityResult struct {
	Cities         []CityTraffic `json:"cities"`
	LatencyMs      int64         `json:"latencyMs"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	TotalRows      uint64        `json:"totalRows"`
	BytesProcessed int64         `json:"bytesProcessed"`

	err error
}

func (r CityResult) Err() error {
	return r.err
}

type ServiceOptions struct {
	// Concurrency bounds parallel granularity queries. Zero means one per granularity.
	Concurrency int
	Now         func() time.Time
}

// Service turns flow-log tables into connection and city aggregates.
type Service struct {
	log         zerolog.Logger
	geo         *geo.Matcher
	concurrency int
	now         func() time.Time
}

func NewService(log zerolog.Logger, matcher *geo.Matcher, opts ServiceOptions) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if matcher == nil {
		matcher = geo.NewMatcher()
	}
	return &Service{
		log:         log.With().Str("component", "flowlogs").Logger(),
		geo:         matcher,
		concurrency: opts.Concurrency,
		now:         now,
	}
}

// Query runs one BigQuery job per granularity. Every granularity yields a result in request
// order; failures are captured per result rather than returned.
func (s *Service) Query(ctx context.Context, runner QueryRunner, ds Dataset, gs []Granularity, hours int) ([]GranularityResult, error) {
	if err := ValidateTimeRange(hours); err != nil {
		return nil, err
	}
	if len(gs) == 0 {
		return []GranularityResult{}, nil
	}

	window := WindowEndingAt(s.now(), hours)
	results := make([]GranularityResult, len(gs))

	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, gran := range gs {
		g.Go(func() error {
			results[i] = s.queryGranularity(ctx, runner, ds, gran, window)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) queryGranularity(ctx context.Context, runner QueryRunner, ds Dataset, gran Granularity, w Window) GranularityResult {
	start := time.Now()
	res, err := runner.Query(ctx, BuildConnectionQuery(ds, gran, w), gcp.DefaultQueryOptions())
	if err != nil {
		s.log.Warn().Err(err).Str("granularity", gran.DisplayName).Msg("flow log query failed")
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		return GranularityResult{
			Connections:     []Connection{},
			LatencyMs:       time.Since(start).Milliseconds(),
			GranularityName: gran.DisplayName,
			Error:           msg,
			err:             err,
		}
	}
	return GranularityResult{
		Connections:     parseConnections(res.Rows, gran),
		LatencyMs:       time.Since(start).Milliseconds(),
		Success:         true,
		GranularityName: gran.DisplayName,
		TotalRows:       res.TotalRows,
		BytesProcessed:  res.TotalBytesProcessed,
	}
}

// WithConnections drops results that produced no connections, failed ones included.
func WithConnections(results []GranularityResult) []GranularityResult {
	out := make([]GranularityResult, 0, len(results))
	for _, r := range results {
		if len(r.Connections) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func parseConnections(rows []map[string]any, gran Granularity) []Connection {
	conns := make([]Connection, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, Connection{
			Source:  Endpoint{Name: sanitizeValue(row["source_name"]), Type: gran.SourceType},
			Target:  Endpoint{Name: sanitizeValue(row["target_name"]), Type: gran.TargetType},
			Bytes:   toInt64(row["total_bytes"]),
			Packets: toInt64(row["total_packets"]),
			Flows:   toInt64(row["flow_count"]),
		})
	}
	return conns
}

// Cities aggregates traffic per geographic city. A failed query is reported in the result.
func (s *Service) Cities(ctx context.Context, runner QueryRunner, ds Dataset, hours int, direction string) (CityResult, error) {
	if err := ValidateTimeRange(hours); err != nil {
		return CityResult{}, err
	}
	start := time.Now()
	window := WindowEndingAt(s.now(), hours)

	res, err := runner.Query(ctx, BuildCityQuery(ds, window, direction), gcp.DefaultQueryOptions())
	if err != nil {
		s.log.Warn().Err(err).Str("direction", direction).Msg("city traffic query failed")
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		return CityResult{
			Cities:    []CityTraffic{},
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     msg,
			err:       err,
		}, nil
	}
	return CityResult{
		Cities:         s.parseCities(res.Rows),
		LatencyMs:      time.Since(start).Milliseconds(),
		Success:        true,
		TotalRows:      res.TotalRows,
		BytesProcessed: res.TotalBytesProcessed,
	}, nil
}

func (s *Service) parseCities(rows []map[string]any) []CityTraffic {
	out := make([]CityTraffic, 0, len(rows))
	unmatched := 0
	for _, row := range rows {
		rawCity := toString(row["city"])
		country := strings.TrimSpace(toString(row["country"]))

		ct := CityTraffic{
			City:         geo.DisplayName(rawCity),
			Country:      country,
			CountryCode:  geo.CountryCode(country),
			Continent:    strings.TrimSpace(toString(row["continent"])),
			TotalBytes:   toInt64(row["total_bytes"]),
			TotalPackets: toInt64(row["total_packets"]),
			FlowCount:    toInt64(row["flow_count"]),
			AvgLatencyMs: optionalFloat(row["avg_latency_ms"]),
			MaxLatencyMs: optionalFloat(row["max_latency_ms"]),
		}
		if m, ok := s.geo.Lookup(strings.ToLower(strings.TrimSpace(rawCity)), country); ok {
			lat, lon := m.City.Lat, m.City.Lon
			ct.Latitude, ct.Longitude = &lat, &lon
		} else {
			unmatched++
		}
		out = append(out, ct)
	}
	if unmatched > 0 {
		s.log.Debug().Int("unmatched", unmatched).Int("cities", len(rows)).Msg("cities without coordinates")
	}
	return out
}

func sanitizeValue(v any) string {
	s := toString(v)
	if s == "" {
		return "unknown"
	}
	return s
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// toInt64 accepts the numeric shapes BigQuery rows carry: int64, float64 or a decimal string.
func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// optionalFloat returns nil for missing or unparsable latencies. A measured zero is kept.
func optionalFloat(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}
