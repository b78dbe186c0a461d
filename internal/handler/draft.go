package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"docforest/internal/httputil"
	"docforest/internal/service"
)

// DraftHandler manages debounced editor sessions, one per open page. Rapid
// edits replace the buffered draft; the engine persists it when the
// debounce elapses, on an explicit flush, or when the editor closes.
type DraftHandler struct {
	mu       sync.Mutex
	sessions map[string]*service.EditorSession
	mutator  *service.Mutator
	delay    time.Duration
	logger   *slog.Logger
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(mutator *service.Mutator, delay time.Duration, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		sessions: make(map[string]*service.EditorSession),
		mutator:  mutator,
		delay:    delay,
		logger:   logger,
	}
}

func (h *DraftHandler) session(recordID string) *service.EditorSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[recordID]
	if !ok {
		s = service.NewEditorSession(h.mutator, recordID, h.delay, h.logger)
		h.sessions[recordID] = s
	}
	return s
}

type draftRequest struct {
	Content string `json:"content"`
}

// PutDraft buffers new content for a page and restarts the autosave timer
// PUT /api/records/{id}/draft
func (h *DraftHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	var req draftRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.session(id).Edit(req.Content)
	w.WriteHeader(http.StatusAccepted)
}

// FlushDraft persists the buffered content immediately
// POST /api/records/{id}/draft/flush
func (h *DraftHandler) FlushDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	if err := h.session(id).Flush(r.Context()); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CloseDraft flushes and ends the session (the editor navigated away)
// POST /api/records/{id}/draft/close
func (h *DraftHandler) CloseDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "record ID is required")
		return
	}

	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.Close(r.Context()); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
