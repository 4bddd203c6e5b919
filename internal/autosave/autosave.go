// Package autosave saves a document shortly after it stops changing.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/storage"
)

// DefaultDelay is the debounce interval between the last change and the save.
const DefaultDelay = time.Second

// Status is the save state shown to the user.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusFailed  Status = "failed"
)

// Snapshot returns the document to save. LastModified is filled in by the
// saver.
type Snapshot func() (storage.Meta, string)

// Saver debounces saves of one document to a backend. It is safe for
// concurrent use.
type Saver struct {
	backend  storage.Backend
	snapshot Snapshot
	delay    time.Duration

	saving sync.Mutex // serializes saves

	mu        sync.Mutex
	timer     *time.Timer
	status    Status
	gen       uint64
	lastErr   error
	lastSaved time.Time
	closed    bool
}

// New creates a saver. A delay <= 0 uses DefaultDelay.
func New(backend storage.Backend, snapshot Snapshot, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Saver{backend: backend, snapshot: snapshot, delay: delay, status: StatusIdle}
}

// Touch records a change and restarts the debounce timer.
func (s *Saver) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	s.status = StatusPending
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if err := s.save(context.Background()); err != nil {
			log.Warn().Err(err).Msg("autosave failed")
		}
	})
}

// Flush saves immediately, cancelling a pending timer.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *Saver) save(ctx context.Context) error {
	s.saving.Lock()
	defer s.saving.Unlock()

	s.mu.Lock()
	gen := s.gen
	s.status = StatusSaving
	s.mu.Unlock()

	meta, content := s.snapshot()
	meta.LastModified = time.Now().UTC()
	err := s.backend.Save(ctx, meta, content)
	metrics.ObserveAutosave(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.status = StatusFailed
		s.lastErr = err
	case gen != s.gen:
		s.status = StatusPending
	default:
		s.status = StatusSaved
		s.lastErr = nil
		s.lastSaved = meta.LastModified
	}
	if err == nil {
		log.Debug().Str("id", meta.ID).Int("bytes", len(content)).Msg("autosaved document")
	}
	return err
}

// Status returns the current save state.
func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error of the last failed save.
func (s *Saver) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastSaved returns when the document was last saved successfully.
func (s *Saver) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Close stops the saver, saving pending changes first.
func (s *Saver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.status == StatusPending
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if !pending {
		return nil
	}
	return s.save(context.Background())
}
