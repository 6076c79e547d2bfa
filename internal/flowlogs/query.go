package flowlogs

import (
	"fmt"
	"strings"
	"time"
)

const (
	connectionRowLimit = 1000
	cityRowLimit       = 500
)

// Directions for city aggregation.
const (
	DirectionDestination = "destination"
	DirectionSource      = "source"
	DirectionBoth        = "both"
)

const vpcFlowLogIDs = `'compute.googleapis.com/vpc_flows', 'networkmanagement.googleapis.com/vpc_flows'`

const reporterExpr = `IF(JSON_VALUE(json_payload.reporter) IN ('SRC', 'SRC_GATEWAY'), 'SRC', 'DEST')`

func bqTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func jsonValue(field string) string {
	return "JSON_VALUE(" + field + ")"
}

// BuildConnectionQuery aggregates source/target pairs for one granularity.
func BuildConnectionQuery(ds Dataset, g Granularity, w Window) string {
	return fmt.Sprintf(`
WITH flowLogs AS (
  SELECT
    %s AS source_name,
    %s AS target_name,
    CAST(JSON_VALUE(json_payload.bytes_sent) AS INT64) AS bytes_sent,
    CAST(JSON_VALUE(json_payload.packets_sent) AS INT64) AS packets_sent,
    timestamp,
    %s AS reporter
  FROM %s
  WHERE
    log_id IN (%s)
    AND timestamp >= TIMESTAMP('%s')
    AND timestamp <= TIMESTAMP('%s')
    AND json_payload IS NOT NULL
)
SELECT
  source_name,
  target_name,
  SUM(bytes_sent) AS total_bytes,
  SUM(packets_sent) AS total_packets,
  COUNT(*) AS flow_count
FROM flowLogs
WHERE
  reporter = 'SRC'
  AND source_name IS NOT NULL
  AND target_name IS NOT NULL
  AND source_name != ''
  AND target_name != ''
  AND source_name != target_name
GROUP BY
  source_name,
  target_name
HAVING
  total_bytes > 0
ORDER BY
  total_bytes DESC
LIMIT %d
`,
		jsonValue(g.SourceField),
		jsonValue(g.TargetField),
		reporterExpr,
		ds.TableRef(),
		vpcFlowLogIDs,
		bqTimestamp(w.Start),
		bqTimestamp(w.End),
		connectionRowLimit,
	)
}

// ValidDirection reports whether d is a supported city direction.
func ValidDirection(d string) bool {
	switch d {
	case DirectionDestination, DirectionSource, DirectionBoth:
		return true
	}
	return false
}

func citySelect(ds Dataset, w Window, location string) string {
	return fmt.Sprintf(`
  SELECT
    COALESCE(JSON_VALUE(json_payload.%[1]s.city), 'Unknown') AS city,
    COALESCE(JSON_VALUE(json_payload.%[1]s.country), 'Unknown') AS country,
    COALESCE(JSON_VALUE(json_payload.%[1]s.continent), 'Unknown') AS continent,
    CAST(JSON_VALUE(json_payload.bytes_sent) AS INT64) AS bytes_sent,
    CAST(JSON_VALUE(json_payload.packets_sent) AS INT64) AS packets_sent,
    SAFE_CAST(JSON_VALUE(json_payload.rtt_msec) AS FLOAT64) AS rtt_msec
  FROM %[2]s
  WHERE
    log_id IN (%[3]s)
    AND timestamp >= TIMESTAMP('%[4]s')
    AND timestamp <= TIMESTAMP('%[5]s')
    AND json_payload IS NOT NULL
    AND JSON_VALUE(json_payload.%[1]s.city) IS NOT NULL
    AND JSON_VALUE(json_payload.%[1]s.city) != ''
    AND %[6]s = 'SRC'`,
		location,
		ds.TableRef(),
		vpcFlowLogIDs,
		bqTimestamp(w.Start),
		bqTimestamp(w.End),
		reporterExpr,
	)
}

// BuildCityQuery aggregates traffic and latency per city. An unknown direction is treated as destination.
func BuildCityQuery(ds Dataset, w Window, direction string) string {
	var inner string
	switch direction {
	case DirectionBoth:
		inner = citySelect(ds, w, "dest_location") + "\n\n  UNION ALL\n" + citySelect(ds, w, "src_location")
	case DirectionSource:
		inner = citySelect(ds, w, "src_location")
	default:
		inner = citySelect(ds, w, "dest_location")
	}

	var sb strings.Builder
	sb.WriteString("\nWITH cityFlows AS (")
	sb.WriteString(inner)
	sb.WriteString("\n)\n")
	fmt.Fprintf(&sb, `SELECT
  city,
  country,
  continent,
  SUM(bytes_sent) AS total_bytes,
  SUM(packets_sent) AS total_packets,
  COUNT(*) AS flow_count,
  AVG(rtt_msec) AS avg_latency_ms,
  MAX(rtt_msec) AS max_latency_ms
FROM cityFlows
WHERE
  city != 'Unknown'
  AND country != 'Unknown'
GROUP BY city, country, continent
HAVING total_bytes > 0
ORDER BY total_bytes DESC
LIMIT %d
`, cityRowLimit)
	return sb.String()
}
