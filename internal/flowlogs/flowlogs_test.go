package flowlogs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netviz/core-go/internal/gcp"
)

type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	fn      func(sql string) (*gcp.QueryResult, error)
}

func (f *fakeRunner) Query(_ context.Context, sql string, opts gcp.QueryOptions) (*gcp.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	f.mu.Unlock()
	if opts.MaxResults != gcp.DefaultMaxResults || !opts.UseQueryCache || opts.UseLegacySQL {
		return nil, errors.New("unexpected query options")
	}
	return f.fn(sql)
}

var fixedNow = time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC)

func newTestService() *Service {
	return NewService(zerolog.Nop(), nil, ServiceOptions{Now: func() time.Time { return fixedNow }})
}

func testDataset(t *testing.T) Dataset {
	t.Helper()
	ds, err := ValidateDatasetPath("proj.logs.vpc_flows")
	require.NoError(t, err)
	return ds
}

func TestValidateDatasetPath(t *testing.T) {
	ds, err := ValidateDatasetPath("p.d.t")
	require.NoError(t, err)
	assert.Equal(t, Dataset{ProjectID: "p", DatasetID: "d", TableID: "t"}, ds)
	assert.Equal(t, "`p.d.t`", ds.TableRef())

	_, err = ValidateDatasetPath("p.d")
	assert.ErrorIs(t, err, ErrInvalidDatasetPath)
	assert.Equal(t, "Invalid format. Expected: project-id.dataset-id.table-id", err.Error())

	_, err = ValidateDatasetPath("p..t")
	assert.ErrorIs(t, err, ErrEmptyDatasetPart)

	_, err = ValidateDatasetPath("p.d.t`; DROP")
	assert.ErrorIs(t, err, ErrDatasetCharacters)
}

func TestValidateTimeRange(t *testing.T) {
	for _, h := range []int{1, 6, 24, 168} {
		assert.NoError(t, ValidateTimeRange(h))
	}
	assert.ErrorIs(t, ValidateTimeRange(12), ErrInvalidTimeRange)
}

func TestGranularities(t *testing.T) {
	gs := Granularities()
	require.Len(t, gs, 8)
	assert.Equal(t, "Instance to Instance", gs[0].DisplayName)
	assert.Equal(t, "Instance to Country", gs[7].DisplayName)
	assert.Equal(t, 3, gs[3].Index)

	g, ok := GranularityByName(" vpc to vpc ")
	require.True(t, ok)
	assert.Equal(t, "json_payload.src_vpc.vpc_name", g.SourceField)

	_, ok = GranularityAt(8)
	assert.False(t, ok)

	gs[0].DisplayName = "mutated"
	assert.Equal(t, "Instance to Instance", Granularities()[0].DisplayName)
}

func TestBuildConnectionQuery(t *testing.T) {
	g, _ := GranularityAt(1)
	sql := BuildConnectionQuery(testDataset(t), g, WindowEndingAt(fixedNow, 6))

	assert.Contains(t, sql, "FROM `proj.logs.vpc_flows`")
	assert.Contains(t, sql, "JSON_VALUE(json_payload.src_instance.vm_name) AS source_name")
	assert.Contains(t, sql, "JSON_VALUE(json_payload.connection.dest_ip) AS target_name")
	assert.Contains(t, sql, "log_id IN ('compute.googleapis.com/vpc_flows', 'networkmanagement.googleapis.com/vpc_flows')")
	assert.Contains(t, sql, "timestamp >= TIMESTAMP('2024-03-05T06:30:00.000Z')")
	assert.Contains(t, sql, "timestamp <= TIMESTAMP('2024-03-05T12:30:00.000Z')")
	assert.Contains(t, sql, "IF(JSON_VALUE(json_payload.reporter) IN ('SRC', 'SRC_GATEWAY'), 'SRC', 'DEST') AS reporter")
	assert.Contains(t, sql, "HAVING\n  total_bytes > 0")
	assert.Contains(t, sql, "LIMIT 1000")
}

func TestBuildCityQuery_directions(t *testing.T) {
	w := WindowEndingAt(fixedNow, 1)
	ds := testDataset(t)

	dest := BuildCityQuery(ds, w, DirectionDestination)
	assert.Contains(t, dest, "json_payload.dest_location.city")
	assert.NotContains(t, dest, "src_location")
	assert.Contains(t, dest, "LIMIT 500")

	src := BuildCityQuery(ds, w, DirectionSource)
	assert.Contains(t, src, "json_payload.src_location.city")
	assert.NotContains(t, src, "dest_location")

	both := BuildCityQuery(ds, w, DirectionBoth)
	assert.Contains(t, both, "UNION ALL")
	assert.Contains(t, both, "dest_location")
	assert.Contains(t, both, "src_location")

	assert.Equal(t, dest, BuildCityQuery(ds, w, "sideways"))
	assert.False(t, ValidDirection("sideways"))
}

func TestServiceQuery_capturesFailuresPerGranularity(t *testing.T) {
	runner := &fakeRunner{fn: func(sql string) (*gcp.QueryResult, error) {
		switch {
		case strings.Contains(sql, "src_vpc"):
			return nil, errors.New("BigQuery Error: Access Denied")
		case strings.Contains(sql, "src_gcp_region"):
			return &gcp.QueryResult{Rows: []map[string]any{}}, nil
		default:
			return &gcp.QueryResult{
				TotalRows:           2,
				TotalBytesProcessed: 4096,
				Rows: []map[string]any{
					{"source_name": "web-1", "target_name": "db-1", "total_bytes": int64(2048), "total_packets": int64(10), "flow_count": int64(3)},
					{"source_name": nil, "target_name": "", "total_bytes": "512", "total_packets": float64(4), "flow_count": int64(1)},
				},
			}, nil
		}
	}}

	gs := []Granularity{}
	for _, i := range []int{3, 0, 5} {
		g, _ := GranularityAt(i)
		gs = append(gs, g)
	}

	results, err := newTestService().Query(context.Background(), runner, testDataset(t), gs, 24)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "VPC to VPC", results[0].GranularityName)
	assert.False(t, results[0].Success)
	assert.Equal(t, "BigQuery Error: Access Denied", results[0].Error)
	assert.Empty(t, results[0].Connections)
	assert.Error(t, results[0].Err())

	assert.True(t, results[1].Success)
	assert.Equal(t, uint64(2), results[1].TotalRows)
	assert.Equal(t, int64(4096), results[1].BytesProcessed)
	require.Len(t, results[1].Connections, 2)
	assert.Equal(t, Endpoint{Name: "web-1", Type: EntityInstance}, results[1].Connections[0].Source)
	assert.Equal(t, "unknown", results[1].Connections[1].Source.Name)
	assert.Equal(t, "unknown", results[1].Connections[1].Target.Name)
	assert.Equal(t, int64(512), results[1].Connections[1].Bytes)
	assert.Equal(t, int64(4), results[1].Connections[1].Packets)

	kept := WithConnections(results)
	require.Len(t, kept, 1)
	assert.Equal(t, "Instance to Instance", kept[0].GranularityName)
	assert.Len(t, runner.queries, 3)
}

func TestServiceQuery_rejectsUnsupportedRange(t *testing.T) {
	_, err := newTestService().Query(context.Background(), &fakeRunner{}, testDataset(t), Granularities(), 2)
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestServiceCities(t *testing.T) {
	runner := &fakeRunner{fn: func(string) (*gcp.QueryResult, error) {
		return &gcp.QueryResult{Rows: []map[string]any{
			{"city": "tokyo", "country": "Japan", "continent": "Asia", "total_bytes": int64(900), "total_packets": int64(9), "flow_count": int64(3), "avg_latency_ms": 42.5, "max_latency_ms": 80.0},
			{"city": "qwxyz", "country": "Nowhere", "continent": "Sea", "total_bytes": int64(10), "total_packets": int64(1), "flow_count": int64(1), "avg_latency_ms": nil, "max_latency_ms": 0.0},
		}}, nil
	}}

	res, err := newTestService().Cities(context.Background(), runner, testDataset(t), 1, DirectionBoth)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Cities, 2)

	tokyo := res.Cities[0]
	assert.Equal(t, "Tokyo", tokyo.City)
	assert.Equal(t, "JP", tokyo.CountryCode)
	require.NotNil(t, tokyo.Latitude)
	require.NotNil(t, tokyo.Longitude)
	assert.InDelta(t, 35.68, *tokyo.Latitude, 0.1)
	require.NotNil(t, tokyo.AvgLatencyMs)
	assert.Equal(t, 42.5, *tokyo.AvgLatencyMs)

	unknown := res.Cities[1]
	assert.Equal(t, "Qwxyz", unknown.City)
	assert.Nil(t, unknown.Latitude)
	assert.Nil(t, unknown.AvgLatencyMs)
	require.NotNil(t, unknown.MaxLatencyMs)
	assert.Equal(t, 0.0, *unknown.MaxLatencyMs)
}

func TestServiceCities_keepsMeasuredZeroLatency(t *testing.T) {
	runner := &fakeRunner{fn: func(string) (*gcp.QueryResult, error) {
		return &gcp.QueryResult{Rows: []map[string]any{
			{"city": "paris", "country": "France", "avg_latency_ms": "0.0", "max_latency_ms": "n/a"},
		}}, nil
	}}

	res, err := newTestService().Cities(context.Background(), runner, testDataset(t), 1, DirectionSource)
	require.NoError(t, err)
	require.Len(t, res.Cities, 1)
	require.NotNil(t, res.Cities[0].AvgLatencyMs)
	assert.Equal(t, 0.0, *res.Cities[0].AvgLatencyMs)
	assert.Nil(t, res.Cities[0].MaxLatencyMs)
}

func TestServiceCities_failureReported(t *testing.T) {
	runner := &fakeRunner{fn: func(string) (*gcp.QueryResult, error) {
		return nil, errors.New("BigQuery Error: Not found: Table")
	}}
	res, err := newTestService().Cities(context.Background(), runner, testDataset(t), 6, DirectionDestination)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "BigQuery Error: Not found: Table", res.Error)
	assert.Empty(t, res.Cities)
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:             "0 B",
		512:           "512 B",
		1024:          "1 KB",
		1536:          "1.5 KB",
		1048576:       "1 MB",
		1288490189:    "1.2 GB",
		5 << 40:       "5 TB",
		3 << 50:       "3072 TB",
		1024*1024 + 1: "1 MB",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatBytes(in), "FormatBytes(%d)", in)
	}
}

func TestEntityIcon(t *testing.T) {
	cases := map[string]string{
		EntityInstance:  "computer",
		"Subnet":        "lan",
		EntityVPC:       "cloud",
		EntityZone:      "location_on",
		EntityRegion:    "public",
		EntityIPAddress: "language",
		"External":      "language",
		EntityProject:   "device_hub",
		EntityCountry:   "device_hub",
	}
	for in, want := range cases {
		assert.Equal(t, want, EntityIcon(in), in)
	}
}

func TestFlattenAndWriteCSV(t *testing.T) {
	results := []GranularityResult{
		{GranularityName: "VPC to VPC", Connections: []Connection{
			{Source: Endpoint{Name: "prod", Type: EntityVPC}, Target: Endpoint{Name: `shared "core"`, Type: EntityVPC}, Bytes: 100, Packets: 2, Flows: 1},
		}},
		{GranularityName: "Zone to Zone", Connections: []Connection{
			{Source: Endpoint{Name: "us-east1-b", Type: EntityZone}, Target: Endpoint{Name: "us-west1-a", Type: EntityZone}, Bytes: 7, Packets: 1, Flows: 1},
		}},
	}
	flat := Flatten(results)
	require.Len(t, flat, 2)
	assert.Equal(t, "VPC to VPC", flat[0].Granularity)
	assert.Equal(t, "Zone to Zone", flat[1].Granularity)
	assert.Empty(t, results[0].Connections[0].Granularity)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, flat))
	want := "Source Name,Source Type,Target Name,Target Type,Granularity,Bytes,Packets,Flows\n" +
		`"prod","VPC","shared ""core""","VPC","VPC to VPC","100","2","1"` + "\n" +
		`"us-east1-b","Zone","us-west1-a","Zone","Zone to Zone","7","1","1"`
	assert.Equal(t, want, buf.String())
}
