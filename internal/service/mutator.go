package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"docforest/internal/config"
	"docforest/internal/domain"
	"docforest/internal/domain/models"
	"docforest/internal/domain/repositories"
)

// CopyNamePrefix is prepended to the name of a copied record.
const CopyNamePrefix = "Copy of "

var nameNoSlash = regexp.MustCompile(`^[^/]+$`)

// CreateRequest carries the fields for a new record.
type CreateRequest struct {
	ParentID *string           `json:"parent_id,omitempty"`
	Type     models.RecordType `json:"type"`
	Name     string            `json:"name"`
	Content  string            `json:"content,omitempty"`
	URL      string            `json:"url,omitempty"`
	By       string            `json:"-"`
}

// Validate checks the request shape. Structural checks (parent exists, is a
// folder) happen against the snapshot in Create.
func (r CreateRequest) Validate(maxNameLength int) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type,
			validation.Required,
			validation.In(models.TypeFolder, models.TypePage, models.TypeLink),
		),
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, maxNameLength),
			validation.Match(nameNoSlash).Error("name cannot contain slashes"),
		),
		validation.Field(&r.URL,
			validation.Required.When(r.Type == models.TypeLink).Error("links require a url"),
		),
	)
}

// Mutator performs structural changes against the current snapshot,
// translating each change into persisted store operations. Every operation
// validates against the snapshot as it stood at call entry; if the snapshot
// changes concurrently the persisted write may target a since-changed
// record, which the backing store resolves last-write-wins. That is
// accepted eventual-consistency behavior, not an error.
type Mutator struct {
	store  repositories.RecordStore
	source SnapshotSource
	limits config.Limits
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// NewMutator creates a mutation engine over the given store and snapshot
// source.
func NewMutator(store repositories.RecordStore, source SnapshotSource, limits config.Limits, logger *slog.Logger) *Mutator {
	return &Mutator{
		store:  store,
		source: source,
		limits: limits,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Create validates and persists one new record, returning it so callers can
// follow up immediately (for example, opening the editor on a new page).
func (m *Mutator) Create(ctx context.Context, req CreateRequest) (*models.Record, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(m.limits.MaxNameLength); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	idx := m.source.Index()
	if err := m.requireLiveFolder(idx, req.ParentID); err != nil {
		return nil, err
	}

	now := m.now()
	rec := &models.Record{
		ID:        m.newID(),
		ParentID:  req.ParentID,
		Type:      req.Type,
		Name:      req.Name,
		Content:   req.Content,
		URL:       req.URL,
		IsPinned:  false,
		IsDeleted: false,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: req.By,
	}

	if err := m.store.Create(ctx, rec); err != nil {
		// An id collision is a conflict, not a store outage.
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create record %q: %w", rec.Name, err)
		}
		return nil, fmt.Errorf("create record %q: %w: %v", rec.Name, domain.ErrPersistence, err)
	}

	m.logger.Info("record created",
		"id", rec.ID,
		"type", rec.Type,
		"name", rec.Name,
		"parent_id", rec.ParentID,
	)

	return rec, nil
}

// UpdateRequest carries the optional field changes of one update. Nil
// fields are left alone. ParentID is only consulted when SetParent is true,
// so a move to root (nil parent) stays expressible.
type UpdateRequest struct {
	Name      *string
	SetParent bool
	ParentID  *string
	Content   *string
}

// Update applies every requested field change as one persisted write. All
// validation runs against a single snapshot read, and the combined result
// is committed atomically: a rename bundled with a move can never be
// overwritten by a second full-record write built from a lagging snapshot.
// A request that changes nothing is a no-op with no store call.
func (m *Mutator) Update(ctx context.Context, id string, req UpdateRequest) (*models.Record, error) {
	var newName string
	if req.Name != nil {
		newName = strings.TrimSpace(*req.Name)
		if newName == "" {
			return nil, &domain.ValidationError{Message: "name must not be empty"}
		}
		if len(newName) > m.limits.MaxNameLength {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("name must be at most %d characters", m.limits.MaxNameLength)}
		}
		if !nameNoSlash.MatchString(newName) {
			return nil, &domain.ValidationError{Message: "name cannot contain slashes"}
		}
	}

	idx := m.source.Index()
	rec, ok := idx.Get(id)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("record %s not found", id)}
	}

	updated := *rec
	changed := false

	if req.Name != nil && updated.Name != newName {
		updated.Name = newName
		changed = true
	}

	if req.SetParent {
		if req.ParentID != nil {
			if *req.ParentID == id {
				return nil, &domain.ValidationError{Message: "cannot move a folder into itself"}
			}
			if err := m.requireLiveFolder(idx, req.ParentID); err != nil {
				return nil, err
			}
			inSubtree, err := idx.IsDescendantOf(id, *req.ParentID)
			if err != nil {
				return nil, fmt.Errorf("move record %s: %w", id, err)
			}
			if inSubtree {
				return nil, &domain.ValidationError{Message: "cannot move a folder into its own subtree"}
			}
		}
		if !sameParent(rec.ParentID, req.ParentID) {
			updated.ParentID = req.ParentID
			changed = true
		}
	}

	if req.Content != nil {
		if rec.Type != models.TypePage {
			return nil, &domain.ValidationError{Message: "only pages have content"}
		}
		if updated.Content != *req.Content {
			updated.Content = *req.Content
			changed = true
		}
	}

	if !changed {
		return rec, nil
	}

	updated.UpdatedAt = m.now()
	if err := m.store.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update record %s: %w: %v", id, domain.ErrPersistence, err)
	}

	m.logger.Info("record updated",
		"id", id,
		"name", updated.Name,
		"parent_id", updated.ParentID,
	)

	return &updated, nil
}

// Rename changes a record's display name. A name equal to the current one
// after trimming is a no-op with no store call.
func (m *Mutator) Rename(ctx context.Context, id, newName string) (*models.Record, error) {
	return m.Update(ctx, id, UpdateRequest{Name: &newName})
}

// SetContent replaces a page's rich-text payload.
func (m *Mutator) SetContent(ctx context.Context, id, content string) (*models.Record, error) {
	return m.Update(ctx, id, UpdateRequest{Content: &content})
}

// TogglePin flips a record's pinned flag. Pinning is orthogonal to the
// hierarchy; there is no cascade.
func (m *Mutator) TogglePin(ctx context.Context, id string) (*models.Record, error) {
	rec, ok := m.source.Index().Get(id)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("record %s not found", id)}
	}

	updated := *rec
	updated.IsPinned = !rec.IsPinned
	updated.UpdatedAt = m.now()

	if err := m.store.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("toggle pin of record %s: %w: %v", id, domain.ErrPersistence, err)
	}

	m.logger.Info("record pin toggled", "id", id, "pinned", updated.IsPinned)

	return &updated, nil
}

// Move re-parents a record. Children are not re-parented explicitly: they
// stay attached to the moved folder by parent id, so the subtree moves
// implicitly as one unit.
//
// Moving a record into itself or anywhere inside its own subtree is
// rejected before any store call. Moving to the current parent is a silent
// no-op, so a repeated move is idempotent rather than an error.
func (m *Mutator) Move(ctx context.Context, id string, targetParentID *string) (*models.Record, error) {
	return m.Update(ctx, id, UpdateRequest{SetParent: true, ParentID: targetParentID})
}

// Copy duplicates a single record into the target folder with a fresh id,
// "Copy of " name prefix, and fresh timestamps and owner. The copy is
// shallow: a folder's descendants are not duplicated.
func (m *Mutator) Copy(ctx context.Context, sourceID string, targetParentID *string, by string) (*models.Record, error) {
	idx := m.source.Index()

	src, ok := idx.Get(sourceID)
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("record %s not found", sourceID)}
	}
	if err := m.requireLiveFolder(idx, targetParentID); err != nil {
		return nil, err
	}

	now := m.now()
	dup := *src
	dup.ID = m.newID()
	dup.ParentID = targetParentID
	dup.Name = CopyNamePrefix + src.Name
	dup.IsDeleted = false
	dup.DeletedAt = nil
	dup.OriginalParentID = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.CreatedBy = by

	if err := m.store.Create(ctx, &dup); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("copy record %s: %w", sourceID, err)
		}
		return nil, fmt.Errorf("copy record %s: %w: %v", sourceID, domain.ErrPersistence, err)
	}

	m.logger.Info("record copied",
		"source_id", sourceID,
		"id", dup.ID,
		"parent_id", targetParentID,
	)

	return &dup, nil
}

// CascadeSoftDelete tombstones the given records and, for folders, their
// whole descendant closure. Updates are committed in sequential batches of
// at most the configured batch size; a failure in a later batch does not
// undo earlier committed batches, and the returned BatchDeleteError says
// which ids were already marked so the caller can distinguish partial
// completion from nothing-deleted.
//
// Returns the ids actually marked deleted.
func (m *Mutator) CascadeSoftDelete(ctx context.Context, rootIDs []string) ([]string, error) {
	idx := m.source.Index()
	now := m.now()

	// Compute the closure: the roots plus every folder root's descendants.
	// Roots already gone from the snapshot are skipped; another client got
	// there first and the tombstone is idempotent anyway.
	seen := make(map[string]bool)
	var tombstones []*models.Record
	folders := 0

	mark := func(rec *models.Record) {
		if seen[rec.ID] {
			return
		}
		seen[rec.ID] = true
		deleted := *rec
		deleted.IsDeleted = true
		deleted.DeletedAt = &now
		deleted.OriginalParentID = rec.ParentID
		deleted.UpdatedAt = now
		tombstones = append(tombstones, &deleted)
	}

	for _, id := range rootIDs {
		rec, ok := idx.Get(id)
		if !ok {
			continue
		}
		mark(rec)
		if rec.IsFolder() {
			folders++
			descendants, err := idx.CollectDescendants(id)
			if err != nil {
				return nil, fmt.Errorf("cascade delete %s: %w", id, err)
			}
			for _, descID := range descendants {
				if rec, ok := idx.Get(descID); ok {
					mark(rec)
				}
			}
		}
	}

	if len(tombstones) == 0 {
		return nil, nil
	}

	marked := make([]string, 0, len(tombstones))
	batchSize := m.limits.MaxBatchSize
	for start := 0; start < len(tombstones); start += batchSize {
		end := start + batchSize
		if end > len(tombstones) {
			end = len(tombstones)
		}

		if err := m.store.BatchUpdate(ctx, tombstones[start:end]); err != nil {
			return marked, &domain.BatchDeleteError{Marked: marked, Err: err}
		}
		for _, rec := range tombstones[start:end] {
			marked = append(marked, rec.ID)
		}
	}

	m.logger.Info("cascade delete completed",
		"roots", len(rootIDs),
		"folders", folders,
		"marked", len(marked),
	)

	return marked, nil
}

// requireLiveFolder checks that the parent reference points at a live
// folder record. nil means root and is always valid.
func (m *Mutator) requireLiveFolder(idx *Index, parentID *string) error {
	if parentID == nil {
		return nil
	}
	parent, ok := idx.Get(*parentID)
	if !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", *parentID)}
	}
	if !parent.IsFolder() {
		return &domain.ValidationError{Message: fmt.Sprintf("record %s is not a folder", *parentID)}
	}
	return nil
}
