package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"docforest/internal/httputil"
	"docforest/internal/service"
)

// SelectionHandler manages one selection set per client. The client
// identifies itself with the X-Client-ID header; each client's selection is
// scoped to its working folder, exactly as the grid view scopes it.
type SelectionHandler struct {
	mu         sync.Mutex
	selections map[string]*service.Selection
	mutator    *service.Mutator
	logger     *slog.Logger
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(mutator *service.Mutator, logger *slog.Logger) *SelectionHandler {
	return &SelectionHandler{
		selections: make(map[string]*service.Selection),
		mutator:    mutator,
		logger:     logger,
	}
}

func (h *SelectionHandler) selection(r *http.Request) (*service.Selection, bool) {
	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		return nil, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sel, ok := h.selections[clientID]
	if !ok {
		sel = service.NewSelection(h.mutator, h.logger)
		h.selections[clientID] = sel
	}
	return sel, true
}

type selectionResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// GetSelection returns the client's current selection
// GET /api/selection
func (h *SelectionHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	ids := sel.Selected()
	httputil.RespondJSON(w, http.StatusOK, selectionResponse{IDs: ids, Count: len(ids)})
}

type selectionFolderRequest struct {
	ParentID *string `json:"parent_id"`
}

// SetFolder moves the selection scope to another working folder, clearing
// any stale selection from the previous folder
// POST /api/selection/folder
func (h *SelectionHandler) SetFolder(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	var req selectionFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sel.SetFolder(req.ParentID)
	w.WriteHeader(http.StatusNoContent)
}

type selectionToggleRequest struct {
	ID string `json:"id"`
}

// Toggle adds or removes one id from the selection
// POST /api/selection/toggle
func (h *SelectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	var req selectionToggleRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil || req.ID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "id is required")
		return
	}

	sel.Toggle(req.ID)

	ids := sel.Selected()
	httputil.RespondJSON(w, http.StatusOK, selectionResponse{IDs: ids, Count: len(ids)})
}

type selectAllRequest struct {
	VisibleIDs []string `json:"visible_ids"`
}

// SelectAll toggles selection of the currently visible listing
// POST /api/selection/select-all
func (h *SelectionHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	var req selectAllRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sel.ToggleSelectAll(req.VisibleIDs)

	ids := sel.Selected()
	httputil.RespondJSON(w, http.StatusOK, selectionResponse{IDs: ids, Count: len(ids)})
}

// Clear empties the client's selection
// POST /api/selection/clear
func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	sel.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSelected bulk-deletes the selection through the mutation engine
// POST /api/selection/delete
func (h *SelectionHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.selection(r)
	if !ok {
		httputil.RespondError(w, http.StatusBadRequest, "X-Client-ID header is required")
		return
	}

	marked, err := sel.DeleteSelected(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, bulkDeleteResponse{
		DeletedIDs: marked,
		Count:      len(marked),
	})
}
