package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"docforest/internal/domain/repositories"
)

// SnapshotSource provides the current tree index. The mutation engine and
// the handlers read through this so every operation validates against one
// coherent snapshot.
type SnapshotSource interface {
	Index() *Index
}

// Watcher subscribes to the record store and keeps the current Index,
// swapping it atomically whenever a new snapshot arrives. Readers always
// see a fully-built index, never a partially-applied one.
type Watcher struct {
	mu     sync.RWMutex
	index  *Index
	sub    *repositories.Subscription
	done   chan struct{}
	logger *slog.Logger
}

// NewWatcher opens a subscription and blocks until the initial snapshot has
// been delivered, so callers start with a populated index.
func NewWatcher(ctx context.Context, store repositories.RecordStore, logger *slog.Logger) (*Watcher, error) {
	sub, err := store.Subscribe(ctx, repositories.SubscribeOptions{})
	if err != nil {
		return nil, fmt.Errorf("subscribe to record store: %w", err)
	}

	w := &Watcher{
		sub:    sub,
		done:   make(chan struct{}),
		logger: logger,
	}

	select {
	case snapshot, ok := <-sub.Snapshots:
		if !ok {
			sub.Close()
			return nil, fmt.Errorf("record store subscription closed before initial snapshot")
		}
		w.index = NewIndex(snapshot, logger)
	case err := <-sub.Errs:
		sub.Close()
		return nil, fmt.Errorf("record store subscription: %w", err)
	case <-ctx.Done():
		sub.Close()
		return nil, ctx.Err()
	}

	go w.run()

	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case snapshot, ok := <-w.sub.Snapshots:
			if !ok {
				return
			}
			idx := NewIndex(snapshot, w.logger)
			w.mu.Lock()
			w.index = idx
			w.mu.Unlock()
			w.logger.Debug("snapshot applied", "records", idx.Len())
		case err := <-w.sub.Errs:
			// The feed is dead; keep serving the last snapshot.
			w.logger.Error("record store subscription failed, no further updates", "error", err)
			return
		case <-w.done:
			return
		}
	}
}

// Index returns the current snapshot's index.
func (w *Watcher) Index() *Index {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.index
}

// Close detaches from the store subscription.
func (w *Watcher) Close() {
	close(w.done)
	w.sub.Close()
}
