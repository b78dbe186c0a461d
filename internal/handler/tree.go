package handler

import (
	"log/slog"
	"net/http"

	"docforest/internal/httputil"
	"docforest/internal/service"
)

// TreeHandler handles HTTP requests for tree operations
type TreeHandler struct {
	source service.SnapshotSource
	logger *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(source service.SnapshotSource, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		source: source,
		logger: logger,
	}
}

// GetTree returns the nested folder/record tree for the whole collection
// GET /api/tree
func (h *TreeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	idx := h.source.Index()
	tree := idx.Tree()

	h.logger.Debug("tree built", "records", idx.Len())

	httputil.RespondJSON(w, http.StatusOK, tree)
}
