package repositories

import (
	"context"

	"docforest/internal/domain/models"
)

// SubscribeOptions controls what a subscription's snapshots contain.
type SubscribeOptions struct {
	// IncludeDeleted delivers tombstoned records too. The normal (non-trash)
	// view leaves this false.
	IncludeDeleted bool
}

// Subscription is a live feed of full collection snapshots. The initial
// snapshot is delivered first, then a new full snapshot after every change.
// A value on Errs means the feed is dead and no further snapshots will
// arrive; consumers keep their last snapshot and carry on.
type Subscription struct {
	Snapshots <-chan []models.Record
	Errs      <-chan error

	cancel func()
}

// NewSubscription wires a subscription around store-owned channels.
func NewSubscription(snapshots <-chan []models.Record, errs <-chan error, cancel func()) *Subscription {
	return &Subscription{Snapshots: snapshots, Errs: errs, cancel: cancel}
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// RecordStore defines data access operations for the record collection.
// Implementations persist whole records: the mutation engine always works
// from the latest snapshot, so a full-record write carries every field the
// engine intends, and the store does not need partial-update plumbing.
type RecordStore interface {
	// Subscribe opens a snapshot feed for the collection
	Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscription, error)

	// Create persists a new record. The ID is assigned by the caller
	// before the insert so follow-up operations can use it immediately.
	Create(ctx context.Context, rec *models.Record) error

	// Update persists all mutable fields of an existing record
	Update(ctx context.Context, rec *models.Record) error

	// BatchUpdate persists one bounded chunk of records atomically.
	// Chunking to the store's operations-per-batch limit is the caller's
	// responsibility; each call is an independent unit of commitment.
	BatchUpdate(ctx context.Context, recs []*models.Record) error
}
