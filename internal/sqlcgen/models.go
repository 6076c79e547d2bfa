package sqlcgen

import "time"

type QueryRun struct {
	ID             string
	Kind           string
	ProjectID      *string
	Dataset        *string
	Granularities  []string
	TimeRangeHours *int32
	Success        bool
	Error          *string
	LatencyMs      int64
	TotalRows      int64
	BytesProcessed int64
	CreatedAt      time.Time
}
