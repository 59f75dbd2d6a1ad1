package handler

import (
	"log/slog"
	"net/http"

	ingestSvc "assetdrop/internal/domain/services/ingest"
	"assetdrop/internal/httputil"
)

// TreeHandler handles HTTP requests for the persisted asset tree
type TreeHandler struct {
	treeService ingestSvc.AssetTreeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(treeService ingestSvc.AssetTreeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		treeService: treeService,
		logger:      logger,
	}
}

// GetTree returns the nested asset records of a project
// GET /api/projects/{id}/assets
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	tree, err := h.treeService.GetAssetTree(r.Context(), httputil.GetUserID(r), projectID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}
