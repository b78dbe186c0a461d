// Package memory provides an in-process RecordStore used by tests and by
// single-node deployments that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"docforest/internal/domain"
	"docforest/internal/domain/models"
	"docforest/internal/domain/repositories"
)

// Store keeps the collection in memory and fans full snapshots out to
// subscribers after every change, mirroring the snapshot-per-change
// contract of the hosted document stores.
type Store struct {
	mu      sync.Mutex
	records map[string]models.Record
	order   []string // insertion order, keeps snapshots stable
	subs    map[int]*subscriber
	nextSub int
	logger  *slog.Logger
}

type subscriber struct {
	opts      repositories.SubscribeOptions
	snapshots chan []models.Record
	errs      chan error
}

// NewStore creates an empty in-memory store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		records: make(map[string]models.Record),
		subs:    make(map[int]*subscriber),
		logger:  logger,
	}
}

// Subscribe opens a snapshot feed. The initial snapshot is queued before
// Subscribe returns, so the first receive never blocks on a later write.
func (s *Store) Subscribe(ctx context.Context, opts repositories.SubscribeOptions) (*repositories.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++

	sub := &subscriber{
		opts: opts,
		// Capacity 1 with latest-wins delivery: a slow consumer only ever
		// misses intermediate snapshots, never the newest one.
		snapshots: make(chan []models.Record, 1),
		errs:      make(chan error, 1),
	}
	s.subs[id] = sub
	sub.snapshots <- s.snapshotLocked(opts)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.snapshots)
			close(sub.errs)
		}
	}

	return repositories.NewSubscription(sub.snapshots, sub.errs, cancel), nil
}

// Create inserts a new record. An id is assigned if the caller left it
// empty.
func (s *Store) Create(ctx context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrConflict)
	}

	s.records[rec.ID] = *rec
	s.order = append(s.order, rec.ID)
	s.publishLocked()

	return nil
}

// Update replaces all mutable fields of an existing record.
func (s *Store) Update(ctx context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
	}

	s.records[rec.ID] = *rec
	s.publishLocked()

	return nil
}

// BatchUpdate applies one chunk of updates atomically: either every record
// in the chunk is applied and a single snapshot published, or none are.
func (s *Store) BatchUpdate(ctx context.Context, recs []*models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if _, ok := s.records[rec.ID]; !ok {
			return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
		}
	}
	for _, rec := range recs {
		s.records[rec.ID] = *rec
	}
	s.publishLocked()

	return nil
}

// snapshotLocked builds a full snapshot in insertion order.
func (s *Store) snapshotLocked(opts repositories.SubscribeOptions) []models.Record {
	out := make([]models.Record, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		if rec.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// publishLocked fans the new snapshot out to every subscriber, replacing
// any undelivered older snapshot.
func (s *Store) publishLocked() {
	for _, sub := range s.subs {
		snap := s.snapshotLocked(sub.opts)
		select {
		case sub.snapshots <- snap:
		default:
			// Drop the stale queued snapshot and queue the newest.
			select {
			case <-sub.snapshots:
			default:
			}
			sub.snapshots <- snap
		}
	}
}
