package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docforest/internal/config"
	"docforest/internal/domain/models"
	"docforest/internal/repository/memory"
	"docforest/internal/service"
)

// testEnv wires the handlers exactly as the server does, over the in-memory
// store, so requests exercise the real mutation and snapshot paths.
type testEnv struct {
	mux     *http.ServeMux
	store   *memory.Store
	watcher *service.Watcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store := memory.NewStore(logger)
	watcher, err := service.NewWatcher(context.Background(), store, logger)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(watcher.Close)

	limits := config.Limits{
		MaxNameLength: 255,
		MaxBatchSize:  400,
		AutosaveDelay: 20 * time.Millisecond,
	}
	mutator := service.NewMutator(store, watcher, limits, logger)

	recordHandler := NewRecordHandler(mutator, watcher, logger)
	treeHandler := NewTreeHandler(watcher, logger)
	selectionHandler := NewSelectionHandler(mutator, logger)
	draftHandler := NewDraftHandler(mutator, limits.AutosaveDelay, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", recordHandler.HealthCheck)
	mux.HandleFunc("GET /api/records", recordHandler.ListRecords)
	mux.HandleFunc("POST /api/records", recordHandler.CreateRecord)
	mux.HandleFunc("POST /api/records/delete", recordHandler.BulkDelete)
	mux.HandleFunc("PATCH /api/records/{id}", recordHandler.UpdateRecord)
	mux.HandleFunc("POST /api/records/{id}/pin", recordHandler.TogglePin)
	mux.HandleFunc("POST /api/records/{id}/copy", recordHandler.CopyRecord)
	mux.HandleFunc("GET /api/records/{id}/breadcrumb", recordHandler.GetBreadcrumb)
	mux.HandleFunc("GET /api/tree", treeHandler.GetTree)
	mux.HandleFunc("PUT /api/records/{id}/draft", draftHandler.PutDraft)
	mux.HandleFunc("POST /api/records/{id}/draft/flush", draftHandler.FlushDraft)
	mux.HandleFunc("POST /api/records/{id}/draft/close", draftHandler.CloseDraft)
	mux.HandleFunc("GET /api/selection", selectionHandler.GetSelection)
	mux.HandleFunc("POST /api/selection/folder", selectionHandler.SetFolder)
	mux.HandleFunc("POST /api/selection/toggle", selectionHandler.Toggle)
	mux.HandleFunc("POST /api/selection/select-all", selectionHandler.SelectAll)
	mux.HandleFunc("POST /api/selection/clear", selectionHandler.Clear)
	mux.HandleFunc("POST /api/selection/delete", selectionHandler.DeleteSelected)

	return &testEnv{mux: mux, store: store, watcher: watcher}
}

// seed creates records directly in the store and waits until the watcher's
// index has caught up, so subsequent requests see them.
func (e *testEnv) seed(t *testing.T, recs ...models.Record) {
	t.Helper()
	ctx := context.Background()
	for i := range recs {
		if err := e.store.Create(ctx, &recs[i]); err != nil {
			t.Fatalf("seed %s: %v", recs[i].ID, err)
		}
	}
	for i := range recs {
		e.waitVisible(t, recs[i].ID, true)
	}
}

// waitVisible polls the watcher index until the record's presence matches
// want. Snapshot delivery is asynchronous.
func (e *testEnv) waitVisible(t *testing.T, id string, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := e.watcher.Index().Get(id); ok == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("record %s visibility never became %v", id, want)
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func strPtr(s string) *string { return &s }

func seedRecord(id string, parentID *string, typ models.RecordType, name string) models.Record {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return models.Record{
		ID:        id,
		ParentID:  parentID,
		Type:      typ,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestListRecords(t *testing.T) {
	env := newTestEnv(t)
	pinned := seedRecord("p1", strPtr("f1"), models.TypePage, "Pinned page")
	pinned.IsPinned = true
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("l1", nil, models.TypeLink, "Article"),
		pinned,
	)

	t.Run("root listing puts folders first", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/records", nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		recs := decode[[]models.Record](t, rr)
		if len(recs) != 2 || recs[0].ID != "f1" || recs[1].ID != "l1" {
			t.Fatalf("root listing = %v, want folder f1 then link l1", recs)
		}
	})

	t.Run("folder listing", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/records?parent_id=f1", nil, nil)
		recs := decode[[]models.Record](t, rr)
		if len(recs) != 1 || recs[0].ID != "p1" {
			t.Fatalf("folder listing = %v, want page p1", recs)
		}
	})

	t.Run("global pinned view", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/records?pinned=true", nil, nil)
		recs := decode[[]models.Record](t, rr)
		if len(recs) != 1 || recs[0].ID != "p1" {
			t.Fatalf("pinned view = %v, want page p1", recs)
		}
	})
}

func TestGetBreadcrumb(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("f2", strPtr("f1"), models.TypeFolder, "Reports"),
	)

	rr := env.do(t, http.MethodGet, "/api/records/f2/breadcrumb", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	crumbs := decode[[]models.Crumb](t, rr)
	wantNames := []string{"Home", "Work", "Reports"}
	if len(crumbs) != len(wantNames) {
		t.Fatalf("breadcrumb = %v, want %v", crumbs, wantNames)
	}
	for i, name := range wantNames {
		if crumbs[i].Name != name {
			t.Errorf("crumbs[%d].Name = %s, want %s", i, crumbs[i].Name, name)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, seedRecord("f1", nil, models.TypeFolder, "Work"))

	t.Run("valid page", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/records", map[string]any{
			"parent_id": "f1",
			"type":      "page",
			"name":      "Weekly notes",
		}, map[string]string{"X-Actor": "user-1"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
		}
		rec := decode[models.Record](t, rr)
		if rec.Name != "Weekly notes" || rec.CreatedBy != "user-1" {
			t.Fatalf("created record = %+v", rec)
		}
		env.waitVisible(t, rec.ID, true)
	})

	t.Run("invalid type", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/records", map[string]any{
			"type": "bookmark",
			"name": "x",
		}, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/records", map[string]any{
			"parent_id": "nope",
			"type":      "page",
			"name":      "x",
		}, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/records", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		env.mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})
}

func TestUpdateRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("p1", strPtr("f1"), models.TypePage, "Draft"),
	)

	t.Run("rename", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/p1", map[string]any{"name": "Final"}, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if rec, ok := env.watcher.Index().Get("p1"); ok && rec.Name == "Final" {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("rename never reached the snapshot")
	})

	t.Run("explicit null parent moves to root", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/p1", json.RawMessage(`{"parent_id": null}`), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if rec, ok := env.watcher.Index().Get("p1"); ok && rec.ParentID == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("move to root never reached the snapshot")
	})

	t.Run("rename and move in one request", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/p1", map[string]any{"name": "Renamed", "parent_id": "f1"}, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
		}
		rec := decode[models.Record](t, rr)
		if rec.Name != "Renamed" {
			t.Errorf("response name = %q, want Renamed", rec.Name)
		}
		if rec.ParentID == nil || *rec.ParentID != "f1" {
			t.Errorf("response parent = %v, want f1", rec.ParentID)
		}

		// Both changes must survive into the settled snapshot. A per-field
		// sequence of writes would let the move revert the rename.
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			rec, ok := env.watcher.Index().Get("p1")
			if ok && rec.ParentID != nil && *rec.ParentID == "f1" {
				if rec.Name != "Renamed" {
					t.Fatalf("snapshot name = %q after combined update, want Renamed", rec.Name)
				}
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("combined update never reached the snapshot")
	})

	t.Run("invalid move leaves bundled rename unapplied", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/p1", map[string]any{"name": "Ignored", "parent_id": "p1"}, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
		}
		if rec, ok := env.watcher.Index().Get("p1"); !ok || rec.Name != "Renamed" {
			t.Errorf("record name changed by a rejected update: %+v", rec)
		}
	})

	t.Run("no fields", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/p1", map[string]any{}, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("circular move is rejected", func(t *testing.T) {
		rr := env.do(t, http.MethodPatch, "/api/records/f1", map[string]any{"parent_id": "f1"}, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestTogglePin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, seedRecord("p1", nil, models.TypePage, "Draft"))

	rr := env.do(t, http.MethodPost, "/api/records/p1/pin", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	rec := decode[models.Record](t, rr)
	if !rec.IsPinned {
		t.Error("record not pinned after toggle")
	}
}

func TestCopyRecord(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("p1", strPtr("f1"), models.TypePage, "Draft"),
	)

	rr := env.do(t, http.MethodPost, "/api/records/p1/copy", map[string]any{}, map[string]string{"X-Actor": "user-2"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	rec := decode[models.Record](t, rr)
	if rec.Name != "Copy of Draft" {
		t.Errorf("Name = %q, want Copy of Draft", rec.Name)
	}
	if rec.ParentID != nil {
		t.Errorf("ParentID = %v, want root (absent parent_id)", rec.ParentID)
	}
	if rec.CreatedBy != "user-2" {
		t.Errorf("CreatedBy = %q, want user-2", rec.CreatedBy)
	}
}

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("p1", strPtr("f1"), models.TypePage, "Draft"),
		seedRecord("p2", nil, models.TypePage, "Keep me"),
	)

	rr := env.do(t, http.MethodPost, "/api/records/delete", map[string]any{"ids": []string{"f1"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	resp := decode[bulkDeleteResponse](t, rr)
	if resp.Count != 2 {
		t.Fatalf("Count = %d, want folder plus its page", resp.Count)
	}

	env.waitVisible(t, "f1", false)
	env.waitVisible(t, "p1", false)
	env.waitVisible(t, "p2", true)

	t.Run("empty ids", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/records/delete", map[string]any{"ids": []string{}}, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rr.Code)
		}
	})
}

func TestGetTree(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t,
		seedRecord("f1", nil, models.TypeFolder, "Work"),
		seedRecord("p1", strPtr("f1"), models.TypePage, "Draft"),
	)

	rr := env.do(t, http.MethodGet, "/api/tree", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	tree := decode[models.TreeNode](t, rr)
	if len(tree.Folders) != 1 || tree.Folders[0].ID != "f1" {
		t.Fatalf("tree folders = %v, want f1", tree.Folders)
	}
	if len(tree.Folders[0].Records) != 1 || tree.Folders[0].Records[0].ID != "p1" {
		t.Fatalf("tree records under f1 = %v, want p1", tree.Folders[0].Records)
	}
}
