package handler

import (
	"log/slog"
	"net/http"

	"docforest/internal/httputil"
	"docforest/internal/service"
)

// RecordHandler handles record HTTP requests
type RecordHandler struct {
	mutator *service.Mutator
	source  service.SnapshotSource
	logger  *slog.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(mutator *service.Mutator, source service.SnapshotSource, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		mutator: mutator,
		source:  source,
		logger:  logger,
	}
}

// HealthCheck responds 200 when the server is up
// GET /health
func (h *RecordHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRecords returns a folder listing or a pinned view.
// GET /api/records?parent_id=...            children of a folder (root if absent)
// GET /api/records?pinned=true              global pinned view
// GET /api/records?pinned=true&parent_id=X  folder-scoped pinned view
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	idx := h.source.Index()

	var parentID *string
	if p := r.URL.Query().Get("parent_id"); p != "" {
		parentID = &p
	}

	if r.URL.Query().Get("pinned") == "true" {
		httputil.RespondJSON(w, http.StatusOK, idx.Pinned(parentID))
		return
	}

	httputil.RespondJSON(w, http.StatusOK, idx.ChildrenOf(parentID))
}

// GetBreadcrumb returns the root-to-target breadcrumb path for a folder
// GET /api/records/{id}/breadcrumb
func (h *RecordHandler) GetBreadcrumb(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, h.source.Index().Breadcrumb(id))
}

// CreateRecord creates a new folder, page, or link
// POST /api/records
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.By = actor(r)

	rec, err := h.mutator.Create(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, rec)
}

type updateRecordRequest struct {
	Name     *string                 `json:"name,omitempty"`
	ParentID httputil.OptionalString `json:"parent_id"`
	Content  *string                 `json:"content,omitempty"`
}

// UpdateRecord renames, moves, or edits a record. parent_id uses tri-state
// PATCH semantics: absent means leave alone, null means move to root.
// PATCH /api/records/{id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	var req updateRecordRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil && !req.ParentID.Present && req.Content == nil {
		httputil.RespondError(w, http.StatusBadRequest, "at least one field must be provided")
		return
	}

	// All requested fields go into one mutation, so a rename bundled with a
	// move lands as a single write and cannot clobber itself.
	patch := service.UpdateRequest{
		Name:    req.Name,
		Content: req.Content,
	}
	if req.ParentID.Present {
		patch.SetParent = true
		patch.ParentID = req.ParentID.Value
	}

	rec, err := h.mutator.Update(r.Context(), id, patch)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, rec)
}

// TogglePin flips a record's pinned flag
// POST /api/records/{id}/pin
func (h *RecordHandler) TogglePin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	rec, err := h.mutator.TogglePin(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, rec)
}

type copyRecordRequest struct {
	ParentID *string `json:"parent_id,omitempty"`
}

// CopyRecord duplicates a single record into the target folder
// POST /api/records/{id}/copy
func (h *RecordHandler) CopyRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	var req copyRecordRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.mutator.Copy(r.Context(), id, req.ParentID, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, rec)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkDeleteResponse struct {
	DeletedIDs []string `json:"deleted_ids"`
	Count      int      `json:"count"`
}

// BulkDelete cascades a soft delete over the given records
// POST /api/records/delete
func (h *RecordHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	marked, err := h.mutator.CascadeSoftDelete(r.Context(), req.IDs)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, bulkDeleteResponse{
		DeletedIDs: marked,
		Count:      len(marked),
	})
}
