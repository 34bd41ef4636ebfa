package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"conceptforge/internal/model"
	"conceptforge/internal/service"
)

// ClusterHandler serves cluster summaries and membership reads
type ClusterHandler struct {
	clusters *service.ClusterService
}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler(clusters *service.ClusterService) *ClusterHandler {
	return &ClusterHandler{clusters: clusters}
}

// ListByConcept handles GET /v1/concepts/{conceptId}/clusters
func (h *ClusterHandler) ListByConcept(w http.ResponseWriter, r *http.Request) {
	conceptID := mux.Vars(r)["conceptId"]

	summaries, err := h.clusters.ListByConcept(r.Context(), conceptID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clusters": summaries})
}

// Members handles GET /v1/clusters/{clusterId}/members
func (h *ClusterHandler) Members(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]

	members, err := h.clusters.Members(r.Context(), clusterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

// SetStatus handles PUT /v1/clusters/{clusterId}/status
func (h *ClusterHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]

	var req struct {
		Status model.ClusterStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid status body")
		return
	}
	switch req.Status {
	case model.ClusterPending, model.ClusterReviewing, model.ClusterResolved:
	default:
		writeError(w, http.StatusBadRequest, "unknown cluster status")
		return
	}

	if err := h.clusters.SetStatus(r.Context(), clusterID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
