package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"netviz/core-go/internal/auth"
	"netviz/core-go/internal/gcp"
)

const maxProjectPageSize = 1000

func isDemo(s *auth.Session) bool {
	return s != nil && s.Flow == auth.FlowDemo
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxProjectPageSize {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "pageSize must be an integer between 1 and 1000", map[string]any{"pageSize": raw})
			return
		}
		pageSize = n
	}

	sess := sessionFromContext(r.Context())
	if isDemo(sess) {
		h.writeJSON(w, http.StatusOK, gcp.ProjectPage{Projects: gcp.MockProjects()})
		return
	}

	client, err := h.clients.Projects(r.Context(), sess.AccessToken)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	page, err := client.List(r.Context(), pageSize, q.Get("pageToken"), q.Get("filter"))
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleListAllProjects(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if isDemo(sess) {
		h.writeJSON(w, http.StatusOK, map[string]any{"projects": gcp.MockProjects()})
		return
	}

	client, err := h.clients.Projects(r.Context(), sess.AccessToken)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	projects, err := client.ListAll(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectId")
	sess := sessionFromContext(r.Context())
	if isDemo(sess) {
		for _, p := range gcp.MockProjects() {
			if p.ProjectID == id {
				h.writeJSON(w, http.StatusOK, p)
				return
			}
		}
		h.writeError(w, http.StatusNotFound, "not_found", "Project "+id+" not found or you don't have access to it.", map[string]any{"projectId": id})
		return
	}

	client, err := h.clients.Projects(r.Context(), sess.AccessToken)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	p, err := client.Get(r.Context(), id)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	projectID := h.projectID(r.URL.Query().Get("projectId"))
	client, err := h.clients.BigQuery(r.Context(), sessionFromContext(r.Context()).AccessToken, projectID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	defer client.Close()

	datasets, err := client.ListDatasets(r.Context())
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"projectId": projectID, "datasets": datasets})
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	projectID := h.projectID(r.URL.Query().Get("projectId"))
	datasetID := chi.URLParam(r, "datasetId")
	client, err := h.clients.BigQuery(r.Context(), sessionFromContext(r.Context()).AccessToken, projectID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	defer client.Close()

	tables, err := client.ListTables(r.Context(), datasetID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"projectId": projectID, "datasetId": datasetID, "tables": tables})
}

type bigQueryRequest struct {
	ProjectID     string `json:"projectId"`
	Query         string `json:"query" validate:"required"`
	MaxResults    int    `json:"maxResults" validate:"gte=0,lte=100000"`
	UseLegacySQL  bool   `json:"useLegacySql"`
	UseQueryCache *bool  `json:"useQueryCache"`
}

func (h *Handler) handleBigQueryQuery(w http.ResponseWriter, r *http.Request) {
	var req bigQueryRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "query must not be blank", nil)
		return
	}

	opts := gcp.DefaultQueryOptions()
	if req.MaxResults > 0 {
		opts.MaxResults = req.MaxResults
	}
	opts.UseLegacySQL = req.UseLegacySQL
	if req.UseQueryCache != nil {
		opts.UseQueryCache = *req.UseQueryCache
	}

	projectID := h.projectID(req.ProjectID)
	client, err := h.clients.BigQuery(r.Context(), sessionFromContext(r.Context()).AccessToken, projectID)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	defer client.Close()

	start := time.Now()
	res, err := client.Query(r.Context(), req.Query, opts)
	run := queryRun{Kind: runKindBigQuery, ProjectID: projectID, Latency: time.Since(start), Err: err}
	if res != nil {
		run.TotalRows = int64(res.TotalRows)
		run.BytesProcessed = res.TotalBytesProcessed
	}
	h.recordRun(r.Context(), run)
	if err != nil {
		h.writeGCPError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}
