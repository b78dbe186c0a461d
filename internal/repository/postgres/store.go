// Package postgres implements RecordStore on PostgreSQL. Writes from other
// clients are picked up by a poll ticker; local writes trigger an immediate
// re-query, so a writer sees its own change in the next snapshot.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docforest/internal/domain"
	"docforest/internal/domain/models"
	"docforest/internal/domain/repositories"
)

// maxConsecutivePollFailures is how many poll cycles may fail in a row
// before the subscription feed is declared dead and subscribers get the
// error signal.
const maxConsecutivePollFailures = 3

const recordColumns = `id, parent_id, type, name, content, url, is_pinned,
	is_deleted, deleted_at, original_parent_id, created_at, updated_at, created_by`

// Store implements RecordStore on a single prefixed records table.
type Store struct {
	pool  *pgxpool.Pool
	table string

	mu      sync.Mutex
	subs    map[int]*subscriber
	nextSub int

	pollInterval time.Duration
	notify       chan struct{}
	done         chan struct{}
	logger       *slog.Logger
}

type subscriber struct {
	opts      repositories.SubscribeOptions
	snapshots chan []models.Record
	errs      chan error
}

// NewStore creates a postgres record store. The table prefix separates
// dev/test/prod collections the same way the rest of the deployment does.
func NewStore(pool *pgxpool.Pool, tablePrefix string, pollInterval time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		pool:         pool,
		table:        fmt.Sprintf("%srecords", tablePrefix),
		subs:         make(map[int]*subscriber),
		pollInterval: pollInterval,
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		logger:       logger,
	}

	go s.poll()

	return s
}

// Close stops the poll loop. Open subscriptions stop receiving snapshots.
func (s *Store) Close() {
	close(s.done)
}

// EnsureSchema creates the records table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			parent_id UUID,
			type VARCHAR(16) NOT NULL,
			name VARCHAR(255) NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			original_parent_id UUID,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			created_by VARCHAR(255) NOT NULL DEFAULT ''
		)
	`, s.table)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure records table: %w", err)
	}
	return nil
}

// Subscribe opens a snapshot feed seeded with the current table contents.
func (s *Store) Subscribe(ctx context.Context, opts repositories.SubscribeOptions) (*repositories.Subscription, error) {
	snapshot, err := s.queryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++

	sub := &subscriber{
		opts:      opts,
		snapshots: make(chan []models.Record, 1),
		errs:      make(chan error, 1),
	}
	s.subs[id] = sub
	sub.snapshots <- filterSnapshot(snapshot, opts)

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
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, s.table, recordColumns)

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.ParentID,
		rec.Type,
		rec.Name,
		rec.Content,
		rec.URL,
		rec.IsPinned,
		rec.IsDeleted,
		rec.DeletedAt,
		rec.OriginalParentID,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CreatedBy,
	)
	if err != nil {
		if isPgDuplicateError(err) {
			return fmt.Errorf("record %s: %w", rec.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create record: %w", err)
	}

	s.changed()
	return nil
}

// Update writes all mutable fields of a record.
func (s *Store) Update(ctx context.Context, rec *models.Record) error {
	result, err := s.pool.Exec(ctx, s.updateQuery(), s.updateArgs(rec)...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
	}

	s.changed()
	return nil
}

// BatchUpdate commits one chunk of updates in a single transaction using a
// pgx batch, so the chunk is atomic on the wire and in the table.
func (s *Store) BatchUpdate(ctx context.Context, recs []*models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			s.logger.Warn("batch rollback failed", "error", err)
		}
	}()

	batch := &pgx.Batch{}
	for _, rec := range recs {
		batch.Queue(s.updateQuery(), s.updateArgs(rec)...)
	}

	results := tx.SendBatch(ctx, batch)
	for range recs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch update record: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.changed()
	return nil
}

func (s *Store) updateQuery() string {
	return fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $2, name = $3, content = $4, url = $5, is_pinned = $6,
		    is_deleted = $7, deleted_at = $8, original_parent_id = $9, updated_at = $10
		WHERE id = $1
	`, s.table)
}

func (s *Store) updateArgs(rec *models.Record) []interface{} {
	return []interface{}{
		rec.ID,
		rec.ParentID,
		rec.Name,
		rec.Content,
		rec.URL,
		rec.IsPinned,
		rec.IsDeleted,
		rec.DeletedAt,
		rec.OriginalParentID,
		rec.UpdatedAt,
	}
}

// queryAll loads the full collection in creation order. Tombstones are
// included; per-subscriber filtering happens at publish time.
func (s *Store) queryAll(ctx context.Context) ([]models.Record, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY created_at ASC, id ASC
	`, recordColumns, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var rec models.Record
		err := rows.Scan(
			&rec.ID,
			&rec.ParentID,
			&rec.Type,
			&rec.Name,
			&rec.Content,
			&rec.URL,
			&rec.IsPinned,
			&rec.IsDeleted,
			&rec.DeletedAt,
			&rec.OriginalParentID,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.CreatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// changed signals the poll loop that a local write happened, collapsing
// bursts into one re-query.
func (s *Store) changed() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Store) poll() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		case <-ticker.C:
		}

		snapshot, err := s.queryAll(context.Background())
		if err != nil {
			failures++
			s.logger.Warn("snapshot poll failed", "attempt", failures, "error", err)
			if failures >= maxConsecutivePollFailures {
				s.failSubscribers(err)
				return
			}
			continue
		}
		failures = 0
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

// failSubscribers delivers the error signal: the feed is dead and no
// further snapshots will arrive.
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
