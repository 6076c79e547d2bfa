package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/gcp"
	"netviz/core-go/internal/topology"
)

type flowLogsRequest struct {
	ProjectID string `json:"projectId"`
	Dataset   string `json:"dataset"`
	// Granularities are display names or indexes into the granularity list.
	Granularities  []string `json:"granularities" validate:"required,min=1,max=8,dive,required"`
	TimeRangeHours int      `json:"timeRangeHours" validate:"omitempty,oneof=1 6 24 168"`
	NodeLimit      int      `json:"nodeLimit" validate:"gte=0,lte=5000"`
	LinkLimit      int      `json:"linkLimit" validate:"gte=0,lte=10000"`
}

type citiesRequest struct {
	ProjectID      string `json:"projectId"`
	Dataset        string `json:"dataset"`
	TimeRangeHours int    `json:"timeRangeHours" validate:"omitempty,oneof=1 6 24 168"`
	Direction      string `json:"direction" validate:"omitempty,oneof=destination source both"`
}

type granularityFailure struct {
	GranularityName string `json:"granularityName"`
	Error           string `json:"error"`
}

// flowRun is a completed multi-granularity query.
type flowRun struct {
	dataset flowlogs.Dataset
	hours   int
	results []flowlogs.GranularityResult
	elapsed time.Duration
}

func (f flowRun) failures() []granularityFailure {
	out := []granularityFailure{}
	for _, r := range f.results {
		if !r.Success {
			out = append(out, granularityFailure{GranularityName: r.GranularityName, Error: r.Error})
		}
	}
	return out
}

func resolveGranularities(names []string) ([]flowlogs.Granularity, error) {
	out := make([]flowlogs.Granularity, 0, len(names))
	for _, name := range names {
		if g, ok := flowlogs.GranularityByName(name); ok {
			out = append(out, g)
			continue
		}
		if i, err := strconv.Atoi(strings.TrimSpace(name)); err == nil {
			if g, ok := flowlogs.GranularityAt(i); ok {
				out = append(out, g)
				continue
			}
		}
		return nil, fmt.Errorf("unknown granularity %q", name)
	}
	return out, nil
}

func (h *Handler) resolveDataset(w http.ResponseWriter, requested, fallback string) (flowlogs.Dataset, bool) {
	path := strings.TrimSpace(requested)
	if path == "" {
		path = fallback
	}
	ds, err := flowlogs.ValidateDatasetPath(path)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), map[string]any{"dataset": path})
		return flowlogs.Dataset{}, false
	}
	return ds, true
}

func (h *Handler) hours(requested int) int {
	if requested == 0 {
		return h.opts.DefaultHours
	}
	return requested
}

// runFlowQuery validates req, queries every granularity and records the run. It writes the
// error response itself and reports false when the request cannot be answered.
func (h *Handler) runFlowQuery(w http.ResponseWriter, r *http.Request, req flowLogsRequest, kind, defaultDataset string) (flowRun, bool) {
	ds, ok := h.resolveDataset(w, req.Dataset, defaultDataset)
	if !ok {
		return flowRun{}, false
	}
	gs, err := resolveGranularities(req.Granularities)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return flowRun{}, false
	}
	hours := h.hours(req.TimeRangeHours)

	projectID := h.projectID(req.ProjectID)
	sess := sessionFromContext(r.Context())
	client, err := h.clients.BigQuery(r.Context(), sess.AccessToken, projectID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return flowRun{}, false
	}
	defer client.Close()

	start := time.Now()
	results, err := h.flows.Query(r.Context(), client, ds, gs, hours)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return flowRun{}, false
	}
	run := flowRun{dataset: ds, hours: hours, results: results, elapsed: time.Since(start)}

	rec := queryRun{Kind: kind, ProjectID: projectID, Dataset: ds.String(), Hours: hours, Latency: run.elapsed}
	var errs []error
	for _, res := range results {
		rec.Granularities = append(rec.Granularities, res.GranularityName)
		rec.TotalRows += int64(res.TotalRows)
		rec.BytesProcessed += res.BytesProcessed
		if !res.Success {
			errs = append(errs, fmt.Errorf("%s: %s", res.GranularityName, res.Error))
		}
	}
	rec.Err = errors.Join(errs...)
	h.recordRun(r.Context(), rec)

	// The demo token is always rejected; its failures stay per granularity.
	for _, res := range results {
		if err := res.Err(); err != nil && gcp.ReauthRequired(err) && !isDemo(sess) {
			h.writeGCPError(w, r, err)
			return flowRun{}, false
		}
	}

	h.rdns.Annotate(r.Context(), run.results)
	return run, true
}

func (h *Handler) handleGranularities(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"granularities":  flowlogs.Granularities(),
		"timeRanges":     flowlogs.TimeRanges,
		"defaultHours":   h.opts.DefaultHours,
		"defaultDataset": h.opts.ExplorerDataset,
	})
}

func (h *Handler) handleFlowLogsQuery(w http.ResponseWriter, r *http.Request) {
	var req flowLogsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	run, ok := h.runFlowQuery(w, r, req, runKindFlowLogs, h.opts.ExplorerDataset)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"dataset":        run.dataset.String(),
		"timeRangeHours": run.hours,
		"results":        flowlogs.WithConnections(run.results),
		"failures":       run.failures(),
		"latencyInfo":    topology.Summarize(run.results, run.elapsed),
	})
}

func (h *Handler) handleFlowLogsTopology(w http.ResponseWriter, r *http.Request) {
	var req flowLogsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	run, ok := h.runFlowQuery(w, r, req, runKindFlowTopology, h.opts.TopologyDataset)
	if !ok {
		return
	}

	nodeLimit, linkLimit := req.NodeLimit, req.LinkLimit
	if nodeLimit == 0 {
		nodeLimit = h.opts.MaxNodes
	}
	if linkLimit == 0 {
		linkLimit = h.opts.MaxLinks
	}
	graph := h.project(topology.FromFlowResults(flowlogs.WithConnections(run.results)), nodeLimit, linkLimit)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"dataset":        run.dataset.String(),
		"timeRangeHours": run.hours,
		"graph":          graph,
		"failures":       run.failures(),
		"latencyInfo":    topology.Summarize(run.results, run.elapsed),
	})
}

func (h *Handler) handleFlowLogsExport(w http.ResponseWriter, r *http.Request) {
	var req flowLogsRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	run, ok := h.runFlowQuery(w, r, req, runKindFlowExport, h.opts.ExplorerDataset)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"flow-logs-%dh.csv\"", run.hours))
	w.WriteHeader(http.StatusOK)
	if err := flowlogs.WriteCSV(w, flowlogs.Flatten(flowlogs.WithConnections(run.results))); err != nil {
		h.log.Warn().Err(err).Msg("write csv export failed")
	}
}

func (h *Handler) handleFlowLogsCities(w http.ResponseWriter, r *http.Request) {
	var req citiesRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	ds, ok := h.resolveDataset(w, req.Dataset, h.opts.ExplorerDataset)
	if !ok {
		return
	}
	direction := req.Direction
	if direction == "" {
		direction = "destination"
	}
	hours := h.hours(req.TimeRangeHours)

	projectID := h.projectID(req.ProjectID)
	sess := sessionFromContext(r.Context())
	client, err := h.clients.BigQuery(r.Context(), sess.AccessToken, projectID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	defer client.Close()

	res, err := h.flows.Cities(r.Context(), client, ds, hours, direction)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	h.recordRun(r.Context(), queryRun{
		Kind:           runKindFlowCities,
		ProjectID:      projectID,
		Dataset:        ds.String(),
		Hours:          hours,
		Latency:        time.Duration(res.LatencyMs) * time.Millisecond,
		TotalRows:      int64(res.TotalRows),
		BytesProcessed: res.BytesProcessed,
		Err:            res.Err(),
	})
	if gcp.ReauthRequired(res.Err()) && !isDemo(sess) {
		h.writeGCPError(w, r, res.Err())
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// project caps g and counts each cut in metrics.
func (h *Handler) project(g topology.Graph, nodeLimit, linkLimit int) topology.Graph {
	out := topology.Project(g, nodeLimit, linkLimit)
	if out.Truncation.Nodes.Truncated {
		h.metrics.IncGraphTruncation("nodes")
	}
	if out.Truncation.Links.Truncated {
		h.metrics.IncGraphTruncation("links")
	}
	return out
}
