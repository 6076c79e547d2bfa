package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"netviz/core-go/internal/sqlcgen"
)

const (
	runKindBigQuery       = "bigquery.query"
	runKindFlowLogs       = "flowlogs.query"
	runKindFlowTopology   = "flowlogs.topology"
	runKindFlowExport     = "flowlogs.export"
	runKindFlowCities     = "flowlogs.cities"
	defaultQueryRunsLimit = 50
	maxQueryRunsLimit     = 500
)

// queryRun is one BigQuery-backed request as kept in the history table.
type queryRun struct {
	Kind           string
	ProjectID      string
	Dataset        string
	Granularities  []string
	Hours          int
	Latency        time.Duration
	TotalRows      int64
	BytesProcessed int64
	Err            error
}

type queryRunView struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"`
	ProjectID      *string  `json:"projectId,omitempty"`
	Dataset        *string  `json:"dataset,omitempty"`
	Granularities  []string `json:"granularities"`
	TimeRangeHours *int32   `json:"timeRangeHours,omitempty"`
	Success        bool     `json:"success"`
	Error          *string  `json:"error,omitempty"`
	LatencyMs      int64    `json:"latencyMs"`
	TotalRows      int64    `json:"totalRows"`
	BytesProcessed int64    `json:"bytesProcessed"`
	CreatedAt      string   `json:"createdAt"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// recordRun is best effort: history must never fail the request it describes.
func (h *Handler) recordRun(ctx context.Context, run queryRun) {
	if h.runs == nil {
		return
	}

	arg := sqlcgen.InsertQueryRunParams{
		ID:             uuid.NewString(),
		Kind:           run.Kind,
		ProjectID:      optionalString(run.ProjectID),
		Dataset:        optionalString(run.Dataset),
		Granularities:  run.Granularities,
		Success:        run.Err == nil,
		LatencyMs:      run.Latency.Milliseconds(),
		TotalRows:      run.TotalRows,
		BytesProcessed: run.BytesProcessed,
	}
	if run.Hours > 0 {
		hours := int32(run.Hours)
		arg.TimeRangeHours = &hours
	}
	if run.Err != nil {
		arg.Error = optionalString(run.Err.Error())
	}

	if _, err := h.runs.InsertQueryRun(context.WithoutCancel(ctx), arg); err != nil {
		h.log.Warn().Err(err).Str("request_id", middleware.GetReqID(ctx)).Str("kind", run.Kind).Msg("record query run failed")
	}
}

func (h *Handler) ensureQueries(w http.ResponseWriter) bool {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return false
	}
	return true
}

func (h *Handler) handleListQueryRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultQueryRunsLimit, maxQueryRunsLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	if !h.ensureQueries(w) {
		return
	}

	rows, err := h.runs.ListQueryRuns(r.Context(), int32(limit))
	if err != nil {
		h.log.Error().Err(err).Msg("list query runs failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list query runs", nil)
		return
	}

	resp := make([]queryRunView, 0, len(rows))
	for _, row := range rows {
		granularities := row.Granularities
		if granularities == nil {
			granularities = []string{}
		}
		resp = append(resp, queryRunView{
			ID:             row.ID,
			Kind:           row.Kind,
			ProjectID:      row.ProjectID,
			Dataset:        row.Dataset,
			Granularities:  granularities,
			TimeRangeHours: row.TimeRangeHours,
			Success:        row.Success,
			Error:          row.Error,
			LatencyMs:      row.LatencyMs,
			TotalRows:      row.TotalRows,
			BytesProcessed: row.BytesProcessed,
			CreatedAt:      row.CreatedAt.UTC().Format(timeLayout),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": resp})
}
