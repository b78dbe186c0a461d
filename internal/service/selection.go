package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Selection tracks the set of selected record ids scoped to the working
// folder, and fans bulk operations out through the mutation engine.
// Cross-folder selections are not a supported state: changing the working
// folder clears the set.
type Selection struct {
	mu      sync.Mutex
	folder  *string
	ids     map[string]struct{}
	mutator *Mutator
	logger  *slog.Logger
}

// NewSelection creates an empty selection rooted at the top level.
func NewSelection(mutator *Mutator, logger *slog.Logger) *Selection {
	return &Selection{
		ids:     make(map[string]struct{}),
		mutator: mutator,
		logger:  logger,
	}
}

// SetFolder moves the selection scope to another working folder. Any
// existing selection is invalidated when the folder actually changes.
func (s *Selection) SetFolder(parentID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sameParent(s.folder, parentID) {
		return
	}
	s.folder = parentID
	s.ids = make(map[string]struct{})
}

// Toggle adds the id if absent, removes it if present.
func (s *Selection) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

// ToggleSelectAll implements select-all-as-a-toggle over the currently
// visible listing: if every visible id is already selected the set is
// cleared, otherwise it is replaced with exactly the visible ids.
func (s *Selection) ToggleSelectAll(visibleIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allSelected := len(visibleIDs) > 0 && len(s.ids) == len(visibleIDs)
	if allSelected {
		for _, id := range visibleIDs {
			if _, ok := s.ids[id]; !ok {
				allSelected = false
				break
			}
		}
	}

	s.ids = make(map[string]struct{})
	if !allSelected {
		for _, id := range visibleIDs {
			s.ids[id] = struct{}{}
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// Selected returns the selected ids in sorted order.
func (s *Selection) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of selected ids.
func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// DeleteSelected cascades a soft delete over the selection. On success the
// selection is cleared; on failure it is preserved so the user can retry.
// Returns the ids actually marked deleted.
func (s *Selection) DeleteSelected(ctx context.Context) ([]string, error) {
	selected := s.Selected()
	if len(selected) == 0 {
		return nil, nil
	}

	marked, err := s.mutator.CascadeSoftDelete(ctx, selected)
	if err != nil {
		s.logger.Warn("bulk delete failed, selection preserved",
			"selected", len(selected),
			"marked", len(marked),
			"error", err,
		)
		return marked, err
	}

	s.Clear()
	return marked, nil
}
