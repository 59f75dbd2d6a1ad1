package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	models "assetdrop/internal/domain/models/ingest"
	ingestSvc "assetdrop/internal/domain/services/ingest"
	"assetdrop/internal/handler/sse"
	"assetdrop/internal/httputil"
	"assetdrop/internal/service/ingest/source"
)

// IngestHandler handles batch ingestion HTTP requests.
//
// Uploads are multipart: every "files" part is paired, by index, with a
// "paths" value carrying its relative path ("Shots/Day1/a.png"). Without a
// path the part's file name is used and the file lands at the root.
type IngestHandler struct {
	ingestService  ingestSvc.IngestService
	spooler        *source.Spooler
	sseConfig      *sse.Config
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(
	ingestService ingestSvc.IngestService,
	spooler *source.Spooler,
	sseConfig *sse.Config,
	maxUploadBytes int64,
	logger *slog.Logger,
) *IngestHandler {
	return &IngestHandler{
		ingestService:  ingestService,
		spooler:        spooler,
		sseConfig:      sseConfig,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// patchNodeRequest distinguishes an absent association_ref from null (clear).
type patchNodeRequest struct {
	Name           *string                 `json:"name"`
	Link           *string                 `json:"link"`
	AssociationRef httputil.OptionalString `json:"association_ref"`
	Expanded       *bool                   `json:"expanded"`
}

type assignRequest struct {
	AssociationRef string `json:"association_ref"`
}

// CreateBatch scans an upload into a new batch.
// POST /api/projects/{id}/batches
func (h *IngestHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Project ID is required")
		return
	}
	userID := httputil.GetUserID(r)

	tree, err := h.readUploads(w, r)
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	defer h.releaseUnclaimed(tree)

	h.logger.Info("creating batch",
		"project_id", projectID,
		"user_id", userID,
		"entries", len(tree.Entries()),
	)

	view, err := h.ingestService.CreateBatch(r.Context(), &ingestSvc.CreateBatchRequest{
		ProjectID: projectID,
		UserID:    userID,
		Entries:   tree.Entries(),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, view)
}

// GetBatch returns a batch.
// GET /api/batches/{id}
func (h *IngestHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	view, err := h.ingestService.GetBatch(r.Context(), httputil.GetUserID(r), batchID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// AddFolder adds a folder by hand.
// POST /api/batches/{id}/folders
func (h *IngestHandler) AddFolder(w http.ResponseWriter, r *http.Request) {
	var req ingestSvc.AddFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.ingestService.AddFolder(r.Context(), httputil.GetUserID(r), batchID(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, view)
}

// AddFiles scans an upload into an existing batch, under the optional "parent_id" form value.
// POST /api/batches/{id}/files
func (h *IngestHandler) AddFiles(w http.ResponseWriter, r *http.Request) {
	tree, err := h.readUploads(w, r)
	if err != nil {
		h.respondUploadError(w, err)
		return
	}
	defer h.releaseUnclaimed(tree)

	var parentID *models.TempID
	if v := strings.TrimSpace(r.FormValue("parent_id")); v != "" {
		id := models.TempID(v)
		parentID = &id
	}

	view, err := h.ingestService.AddFiles(r.Context(), httputil.GetUserID(r), batchID(r), parentID, tree.Entries())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// UpdateNode edits a node.
// PATCH /api/batches/{id}/nodes/{nodeId}
func (h *IngestHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var body patchNodeRequest
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &ingestSvc.UpdateNodeRequest{
		Name:     body.Name,
		Link:     body.Link,
		Expanded: body.Expanded,
	}
	if body.AssociationRef.Present {
		ref := ""
		if body.AssociationRef.Value != nil {
			ref = *body.AssociationRef.Value
		}
		req.AssociationRef = &ref
	}

	view, err := h.ingestService.UpdateNode(r.Context(), httputil.GetUserID(r), batchID(r), nodeID(r), req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// RemoveNode removes a node and its descendants.
// DELETE /api/batches/{id}/nodes/{nodeId}
func (h *IngestHandler) RemoveNode(w http.ResponseWriter, r *http.Request) {
	view, err := h.ingestService.RemoveNode(r.Context(), httputil.GetUserID(r), batchID(r), nodeID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// AssignAssociation assigns a catalog item to a node and its descendants.
// POST /api/batches/{id}/nodes/{nodeId}/association
func (h *IngestHandler) AssignAssociation(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.ingestService.AssignAssociation(r.Context(), httputil.GetUserID(r), batchID(r), nodeID(r), req.AssociationRef)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// Validate re-runs validation.
// POST /api/batches/{id}/validate
func (h *IngestHandler) Validate(w http.ResponseWriter, r *http.Request) {
	view, err := h.ingestService.Validate(r.Context(), httputil.GetUserID(r), batchID(r))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, view)
}

// Submit commits a batch. With "Accept: text/event-stream" the response is an
// SSE stream of "progress" events followed by one "result" or "error" event.
// POST /api/batches/{id}/submit
func (h *IngestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	id := batchID(r)

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		result, err := h.ingestService.Submit(r.Context(), userID, id, nil)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, result)
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.sseConfig.KeepAliveInterval)
	keepAlive.Start(stream, h.logger)
	defer keepAlive.Stop()

	result, err := h.ingestService.Submit(r.Context(), userID, id, func(p models.Progress) {
		if err := stream.Event("progress", p); err != nil {
			h.logger.Debug("progress event dropped", "batch_id", id, "error", err)
		}
	})
	if err != nil {
		_ = stream.Event("error", problemFor(err))
		return
	}
	_ = stream.Event("result", result)
}

// Discard abandons a batch.
// DELETE /api/batches/{id}
func (h *IngestHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.ingestService.Discard(r.Context(), httputil.GetUserID(r), batchID(r)); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCatalog returns the association targets of a project.
// GET /api/projects/{id}/catalog
func (h *IngestHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	if projectID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Project ID is required")
		return
	}

	items, err := h.ingestService.ListCatalog(r.Context(), httputil.GetUserID(r), projectID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, items)
}

var errNoFiles = errors.New("no files provided")

// readUploads spools the multipart "files" parts and rebuilds their folder tree.
func (h *IngestHandler) readUploads(w http.ResponseWriter, r *http.Request) (*source.UploadTree, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errNoFiles
	}
	paths := r.MultipartForm.Value["paths"]

	uploads := make([]source.UploadedFile, 0, len(headers))
	release := func() {
		for _, u := range uploads {
			_ = u.File.Release()
		}
	}

	for i, fh := range headers {
		spooled, err := h.spool(fh)
		if err != nil {
			release()
			return nil, err
		}
		rel := fh.Filename
		if i < len(paths) && strings.TrimSpace(paths[i]) != "" {
			rel = paths[i]
		}
		uploads = append(uploads, source.UploadedFile{RelPath: rel, File: spooled})
	}

	tree, err := source.NewUploadTree(uploads)
	if err != nil {
		release()
		return nil, err
	}
	return tree, nil
}

func (h *IngestHandler) spool(fh *multipart.FileHeader) (*source.SpooledFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return h.spooler.Spool(f)
}

func (h *IngestHandler) respondUploadError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, "upload is too large")
	case errors.Is(err, errNoFiles):
		httputil.RespondError(w, http.StatusBadRequest, "No files provided")
	default:
		h.logger.Warn("failed to read upload", "error", err)
		handleErrorOr(w, err, http.StatusBadRequest, "Failed to read upload")
	}
}

func (h *IngestHandler) releaseUnclaimed(tree *source.UploadTree) {
	if err := tree.ReleaseUnclaimed(); err != nil {
		h.logger.Warn("failed to remove spooled uploads", "error", err)
	}
}

func batchID(r *http.Request) models.BatchID {
	return models.BatchID(r.PathValue("id"))
}

func nodeID(r *http.Request) models.TempID {
	return models.TempID(r.PathValue("nodeId"))
}
