package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EditorSession coalesces rapid edits to one page into a single pending
// write. Each edit replaces the buffered content and restarts the debounce
// timer; the buffer is persisted when the timer fires, on an explicit
// Flush, or on Close (navigate-away). This is a deliberate coalescing
// policy: intermediate keystrokes never reach the store.
type EditorSession struct {
	mu       sync.Mutex
	recordID string
	mutator  *Mutator
	delay    time.Duration
	timer    *time.Timer
	pending  *string
	closed   bool
	logger   *slog.Logger
}

// NewEditorSession opens an autosave session for one page.
func NewEditorSession(mutator *Mutator, recordID string, delay time.Duration, logger *slog.Logger) *EditorSession {
	return &EditorSession{
		recordID: recordID,
		mutator:  mutator,
		delay:    delay,
		logger:   logger,
	}
}

// Edit buffers new content and restarts the debounce timer.
func (s *EditorSession) Edit(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending = &content
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.autosave)
}

// autosave is the timer callback. Operations fired from the timer have no
// caller to report to, so failures are logged and the content stays
// buffered for the next flush.
func (s *EditorSession) autosave() {
	if err := s.Flush(context.Background()); err != nil {
		s.logger.Warn("autosave failed", "record_id", s.recordID, "error", err)
	}
}

// Flush persists the buffered content immediately, if any, and stops the
// timer. On failure the buffer is retained so a later flush can retry.
func (s *EditorSession) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	s.mu.Unlock()

	if pending == nil {
		return nil
	}

	if _, err := s.mutator.SetContent(ctx, s.recordID, *pending); err != nil {
		return err
	}

	s.mu.Lock()
	// A newer edit may have replaced the buffer while the write was in
	// flight; only clear it if it is still the content we saved.
	if s.pending == pending {
		s.pending = nil
	}
	s.mu.Unlock()

	return nil
}

// Close flushes any pending content and ends the session. Further edits
// are ignored.
func (s *EditorSession) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Flush(ctx)
}
