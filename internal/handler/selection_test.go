package handler

import (
	"net/http"
	"testing"

	"docforest/internal/domain/models"
)

func clientHeader(id string) map[string]string {
	return map[string]string{"X-Client-ID": id}
}

func TestSelectionRequiresClientID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/selection", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without X-Client-ID", rr.Code)
	}
}

func TestSelectionToggleAndGet(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("p1", nil, models.TypePage, "One"),
		seedRecord("p2", nil, models.TypePage, "Two"),
	)

	rr := env.do(t, http.MethodPost, "/api/selection/toggle", map[string]any{"id": "p1"}, clientHeader("c1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decode[selectionResponse](t, rr)
	if resp.Count != 1 || resp.IDs[0] != "p1" {
		t.Fatalf("selection = %+v, want just p1", resp)
	}

	// Toggling again removes it.
	rr = env.do(t, http.MethodPost, "/api/selection/toggle", map[string]any{"id": "p1"}, clientHeader("c1"))
	resp = decode[selectionResponse](t, rr)
	if resp.Count != 0 {
		t.Fatalf("selection after re-toggle = %+v, want empty", resp)
	}
}

func TestSelectionIsPerClient(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, seedRecord("p1", nil, models.TypePage, "One"))

	env.do(t, http.MethodPost, "/api/selection/toggle", map[string]any{"id": "p1"}, clientHeader("c1"))

	rr := env.do(t, http.MethodGet, "/api/selection", nil, clientHeader("c2"))
	resp := decode[selectionResponse](t, rr)
	if resp.Count != 0 {
		t.Fatalf("client c2 sees c1's selection: %+v", resp)
	}
}

func TestSelectionSelectAllToggle(t *testing.T) {
	env := newTestEnv(t)
	visible := map[string]any{"visible_ids": []string{"p1", "p2"}}

	rr := env.do(t, http.MethodPost, "/api/selection/select-all", visible, clientHeader("c1"))
	resp := decode[selectionResponse](t, rr)
	if resp.Count != 2 {
		t.Fatalf("select-all count = %d, want 2", resp.Count)
	}

	rr = env.do(t, http.MethodPost, "/api/selection/select-all", visible, clientHeader("c1"))
	resp = decode[selectionResponse](t, rr)
	if resp.Count != 0 {
		t.Fatalf("second select-all count = %d, want 0 (toggle off)", resp.Count)
	}
}

func TestSelectionFolderChangeClears(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, seedRecord("p1", nil, models.TypePage, "One"))

	env.do(t, http.MethodPost, "/api/selection/toggle", map[string]any{"id": "p1"}, clientHeader("c1"))

	rr := env.do(t, http.MethodPost, "/api/selection/folder", map[string]any{"parent_id": "f9"}, clientHeader("c1"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/selection", nil, clientHeader("c1"))
	resp := decode[selectionResponse](t, rr)
	if resp.Count != 0 {
		t.Fatalf("selection after folder change = %+v, want empty", resp)
	}
}

func TestSelectionDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("p1", strPtr("f1"), models.TypePage, "Draft"),
	)

	env.do(t, http.MethodPost, "/api/selection/toggle", map[string]any{"id": "f1"}, clientHeader("c1"))

	rr := env.do(t, http.MethodPost, "/api/selection/delete", nil, clientHeader("c1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decode[bulkDeleteResponse](t, rr)
	if resp.Count != 2 {
		t.Fatalf("Count = %d, want the folder and its page", resp.Count)
	}

	// Success clears the selection.
	rr = env.do(t, http.MethodGet, "/api/selection", nil, clientHeader("c1"))
	sel := decode[selectionResponse](t, rr)
	if sel.Count != 0 {
		t.Fatalf("selection after delete = %+v, want empty", sel)
	}

	env.waitVisible(t, "f1", false)
	env.waitVisible(t, "p1", false)
}
