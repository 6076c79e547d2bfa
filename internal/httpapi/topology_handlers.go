package httpapi

import (
	"errors"
	"net/http"

	"netviz/core-go/internal/metricedges"
	"netviz/core-go/internal/topology"
)

var errDemoMonitoring = errors.New("Mock mode: serving demo metric edges")

type metricEdgesResponse struct {
	metricedges.Result
	Graph                  topology.Graph `json:"graph"`
	RefreshIntervalSeconds int            `json:"refreshIntervalSeconds"`
}

// handleMetricEdges always answers 200: Monitoring failures fall back to mock edges and are
// reported in queryDetails. A failure that invalidates the token still ends the session.
func (h *Handler) handleMetricEdges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	edgeType := metricedges.Normalize(q.Get("edgeType"))
	if edgeType == "" {
		edgeType = metricedges.EdgeAll
	}
	metric := metricedges.Normalize(q.Get("metric"))
	if metric == "" {
		metric = metricedges.MetricTraffic
	}
	if !metricedges.ValidEdgeType(edgeType) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown edgeType", map[string]any{"edgeType": edgeType})
		return
	}
	if !metricedges.ValidMetric(metric) {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown metric", map[string]any{"metric": metric})
		return
	}

	limit, err := parseLimit(q.Get("limit"), h.opts.MaxNodes, topology.DefaultMaxNodes*10)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	sess := sessionFromContext(r.Context())
	var (
		lister   metricedges.TimeSeriesLister
		fetchErr error
	)
	if isDemo(sess) {
		fetchErr = errDemoMonitoring
	} else {
		client, err := h.clients.Monitoring(r.Context(), sess.AccessToken, h.projectID(q.Get("projectId")))
		if err != nil {
			fetchErr = err
		} else {
			defer client.Close()
			lister = client
		}
	}

	res := h.edges.Fetch(r.Context(), lister, edgeType, metric, fetchErr)
	if res.ReauthRequired && !isDemo(sess) {
		h.endSession(w, r)
	}

	h.writeJSON(w, http.StatusOK, metricEdgesResponse{
		Result:                 res,
		Graph:                  h.project(topology.FromMetricConnections(res.Connections), limit, h.opts.MaxLinks),
		RefreshIntervalSeconds: int(h.opts.MetricsRefresh.Seconds()),
	})
}

// handleDemoNetwork serves the static demo topology.
func (h *Handler) handleDemoNetwork(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), h.opts.MaxNodes, topology.DefaultMaxNodes*10)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.project(topology.DemoNetwork(), limit, h.opts.MaxLinks))
}
