package service

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"docforest/internal/domain"
	"docforest/internal/domain/models"
)

// RootName is the label of the synthetic breadcrumb root entry.
const RootName = "Home"

// rootKey indexes root-level records in the adjacency map. Record IDs are
// uuids, so the empty string can never collide with a real id.
const rootKey = ""

// Index answers structural queries over one snapshot of the collection
// without mutating it. The parent→children adjacency map is built once per
// snapshot so repeated queries cost O(depth) instead of O(n·depth).
//
// Tombstoned records are excluded: a deleted record is invisible to every
// query, pinned or not.
type Index struct {
	records  []models.Record
	byID     map[string]*models.Record
	children map[string][]*models.Record
	logger   *slog.Logger
}

// NewIndex builds an index over a snapshot. The snapshot slice is retained;
// callers must not mutate it afterwards.
func NewIndex(snapshot []models.Record, logger *slog.Logger) *Index {
	idx := &Index{
		records:  snapshot,
		byID:     make(map[string]*models.Record, len(snapshot)),
		children: make(map[string][]*models.Record),
		logger:   logger,
	}

	for i := range snapshot {
		rec := &snapshot[i]
		if rec.IsDeleted {
			continue
		}
		idx.byID[rec.ID] = rec
		idx.children[parentKey(rec.ParentID)] = append(idx.children[parentKey(rec.ParentID)], rec)
	}

	return idx
}

// Get returns the live record with the given id, if present.
func (idx *Index) Get(id string) (*models.Record, bool) {
	rec, ok := idx.byID[id]
	return rec, ok
}

// Len returns the number of live records in the snapshot.
func (idx *Index) Len() int { return len(idx.byID) }

// Records returns all live records in snapshot order.
func (idx *Index) Records() []models.Record {
	out := make([]models.Record, 0, len(idx.byID))
	for i := range idx.records {
		if !idx.records[i].IsDeleted {
			out = append(out, idx.records[i])
		}
	}
	return out
}

// Breadcrumb walks the parent links from folderID up to a root and returns
// the path in root-to-target order, starting with the synthetic root entry.
//
// Lookup failures never fail the call: a target that no longer exists (for
// example, concurrently deleted by another client) yields the root-only
// path, and a missing ancestor terminates the walk with whatever was
// collected. A parent-link cycle is logged and the walk aborted with the
// partial path rather than looping.
func (idx *Index) Breadcrumb(folderID string) []models.Crumb {
	path := []models.Crumb{{ID: "", Name: RootName}}
	if folderID == "" {
		return path
	}

	var crumbs []models.Crumb
	visited := make(map[string]bool)

	current := folderID
	for current != "" {
		if visited[current] {
			idx.logger.Error("parent-link cycle detected during breadcrumb walk",
				"folder_id", folderID,
				"repeated_id", current,
			)
			break
		}
		visited[current] = true

		rec, ok := idx.byID[current]
		if !ok {
			// Record gone from the snapshot; terminate the walk.
			break
		}
		crumbs = append(crumbs, models.Crumb{ID: rec.ID, Name: rec.Name})

		if rec.ParentID == nil {
			break
		}
		current = *rec.ParentID
	}

	// Collected target-to-root, flip to root-to-target.
	for i := len(crumbs) - 1; i >= 0; i-- {
		path = append(path, crumbs[i])
	}

	return path
}

// ChildrenOf returns the immediate children of the given folder (nil for
// root level), folders first, then case-insensitive by name. Equal names
// keep snapshot order.
func (idx *Index) ChildrenOf(parentID *string) []models.Record {
	siblings := idx.children[parentKey(parentID)]

	out := make([]models.Record, len(siblings))
	for i, rec := range siblings {
		out[i] = *rec
	}
	sortRecords(out)

	return out
}

// Pinned returns the pinned records, either globally (scope nil) or limited
// to one folder's immediate children. Both views are legitimate: the root
// shows a global pinned set, while inside a folder only that folder's
// pinned entries appear.
func (idx *Index) Pinned(scope *string) []models.Record {
	var out []models.Record
	for i := range idx.records {
		rec := &idx.records[i]
		if rec.IsDeleted || !rec.IsPinned {
			continue
		}
		if scope != nil && !sameParent(rec.ParentID, scope) {
			continue
		}
		out = append(out, *rec)
	}
	sortRecords(out)

	return out
}

// IsDescendantOf reports whether candidateID sits anywhere inside
// ancestorID's subtree, by walking candidate's parent chain upward. A cycle
// in the chain is an invariant violation and is returned as an error, not
// silently accepted.
func (idx *Index) IsDescendantOf(ancestorID, candidateID string) (bool, error) {
	visited := make(map[string]bool)

	current := candidateID
	for {
		rec, ok := idx.byID[current]
		if !ok || rec.ParentID == nil {
			return false, nil
		}
		if *rec.ParentID == ancestorID {
			return true, nil
		}
		if visited[*rec.ParentID] {
			idx.logger.Error("parent-link cycle detected during descendant check",
				"ancestor_id", ancestorID,
				"candidate_id", candidateID,
				"repeated_id", *rec.ParentID,
			)
			return false, fmt.Errorf("descendant check from %s: %w", candidateID, domain.ErrStructuralIntegrity)
		}
		visited[*rec.ParentID] = true
		current = *rec.ParentID
	}
}

// CollectDescendants returns the ids of every record (any type) transitively
// contained within the given folder. The traversal is protected by a
// visited set: a repeat means the acyclicity invariant is broken, and the
// call fails with a structural-integrity error instead of looping forever.
func (idx *Index) CollectDescendants(folderID string) ([]string, error) {
	var out []string
	visited := map[string]bool{folderID: true}

	queue := []string{folderID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range idx.children[current] {
			if visited[child.ID] {
				idx.logger.Error("parent-link cycle detected during descendant collection",
					"folder_id", folderID,
					"repeated_id", child.ID,
				)
				return nil, fmt.Errorf("collect descendants of %s: %w", folderID, domain.ErrStructuralIntegrity)
			}
			visited[child.ID] = true
			out = append(out, child.ID)
			queue = append(queue, child.ID)
		}
	}

	return out, nil
}

// sortRecords orders a listing the way the grid shows it: folders first,
// then case-insensitive by name, stable for ties.
func sortRecords(recs []models.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].IsFolder() != recs[j].IsFolder() {
			return recs[i].IsFolder()
		}
		return strings.ToLower(recs[i].Name) < strings.ToLower(recs[j].Name)
	})
}

func parentKey(parentID *string) string {
	if parentID == nil {
		return rootKey
	}
	return *parentID
}

// sameParent compares two parent references, treating nil as the root.
func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
