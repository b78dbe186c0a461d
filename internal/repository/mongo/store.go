// Package mongo implements RecordStore on MongoDB. Change streams drive the
// snapshot feed: every observed change triggers a full re-query, matching
// the snapshot-per-change contract. Deployments without replica sets (no
// change stream support) fall back to polling.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docforest/internal/domain"
	"docforest/internal/domain/models"
	"docforest/internal/domain/repositories"
)

// CollectionName is the MongoDB collection holding the record forest.
const CollectionName = "records"

// fallbackPollInterval is used when the deployment does not support change
// streams.
const fallbackPollInterval = 5 * time.Second

// Store implements RecordStore on a mongo collection.
type Store struct {
	coll   *mongo.Collection
	logger *slog.Logger

	mu      sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	watchOnce sync.Once
	done      chan struct{}
}

type subscriber struct {
	opts      repositories.SubscribeOptions
	snapshots chan []models.Record
	errs      chan error
}

// NewStore creates a mongo record store.
func NewStore(db *mongo.Database, logger *slog.Logger) *Store {
	return &Store{
		coll:   db.Collection(CollectionName),
		logger: logger,
		subs:   make(map[int]*subscriber),
		done:   make(chan struct{}),
	}
}

// Close stops the change watcher.
func (s *Store) Close() {
	close(s.done)
}

// Subscribe opens a snapshot feed seeded with the current collection
// contents. The change watcher is started on first use.
func (s *Store) Subscribe(ctx context.Context, opts repositories.SubscribeOptions) (*repositories.Subscription, error) {
	snapshot, err := s.queryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++

	sub := &subscriber{
		opts:      opts,
		snapshots: make(chan []models.Record, 1),
		errs:      make(chan error, 1),
	}
	s.subs[id] = sub
	sub.snapshots <- filterSnapshot(snapshot, opts)
	s.mu.Unlock()

	s.watchOnce.Do(func() { go s.watch() })

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

// Create inserts a new record with the caller-assigned id.
func (s *Store) Create(ctx context.Context, rec *models.Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("record %s: %w", rec.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// Update replaces all mutable fields of an existing record.
func (s *Store) Update(ctx context.Context, rec *models.Record) error {
	result, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
	}
	return nil
}

// BatchUpdate commits one chunk of updates as a single ordered BulkWrite.
func (s *Store) BatchUpdate(ctx context.Context, recs []*models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetReplacement(rec))
	}

	if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("batch update records: %w", err)
	}
	return nil
}

// queryAll loads the full collection in creation order.
func (s *Store) queryAll(ctx context.Context) ([]models.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	return records, nil
}

// watch follows the collection's change stream, re-querying the full
// collection per observed change. If change streams are unavailable the
// loop degrades to a poll ticker.
func (s *Store) watch() {
	ctx := context.Background()

	stream, err := s.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		s.logger.Warn("change streams unavailable, falling back to polling", "error", err)
		s.pollLoop()
		return
	}
	defer stream.Close(ctx)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if !stream.Next(ctx) {
			if err := stream.Err(); err != nil {
				s.logger.Error("change stream failed, no further updates", "error", err)
				s.failSubscribers(err)
			}
			return
		}

		snapshot, err := s.queryAll(ctx)
		if err != nil {
			s.logger.Warn("snapshot re-query failed", "error", err)
			continue
		}
		s.publish(snapshot)
	}
}

func (s *Store) pollLoop() {
	ticker := time.NewTicker(fallbackPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		snapshot, err := s.queryAll(context.Background())
		if err != nil {
			s.logger.Warn("snapshot poll failed", "error", err)
			continue
		}
		s.publish(snapshot)
	}
}

func (s *Store) publish(snapshot []models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		snap := filterSnapshot(snapshot, sub.opts)
		select {
		case sub.snapshots <- snap:
		default:
			select {
			case <-sub.snapshots:
			default:
			}
			sub.snapshots <- snap
		}
	}
}

func (s *Store) failSubscribers(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subs {
		select {
		case sub.errs <- err:
		default:
		}
		delete(s.subs, id)
	}
}

func filterSnapshot(snapshot []models.Record, opts repositories.SubscribeOptions) []models.Record {
	out := make([]models.Record, 0, len(snapshot))
	for _, rec := range snapshot {
		if rec.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		out = append(out, rec)
	}
	return out
}
