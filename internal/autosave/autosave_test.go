package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qwill/qwill/internal/storage"
)

type memBackend struct {
	mu    sync.Mutex
	saves int
	docs  map[string]string
	fail  error
}

func newMem() *memBackend { return &memBackend{docs: make(map[string]string)} }

func (m *memBackend) Save(ctx context.Context, meta storage.Meta, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.docs[meta.ID] = content
	return nil
}

func (m *memBackend) Load(ctx context.Context, id string) (string, storage.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[id]
	if !ok {
		return "", storage.Meta{}, storage.ErrNotFound
	}
	return c, storage.Meta{ID: id}, nil
}

func (m *memBackend) Delete(ctx context.Context, id string) error { return nil }

func (m *memBackend) List(ctx context.Context) ([]storage.Meta, error) { return nil, nil }

func (m *memBackend) count() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.docs["doc"]
}

type document struct {
	mu      sync.Mutex
	content string
}

func (d *document) set(s string) {
	d.mu.Lock()
	d.content = s
	d.mu.Unlock()
}

func (d *document) snapshot() (storage.Meta, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return storage.Meta{ID: "doc", Name: "Doc"}, d.content
}

func waitFor(t *testing.T, s *Saver, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", s.Status(), want)
}

func TestDebounce(t *testing.T) {
	mem := newMem()
	doc := &document{}
	s := New(mem, doc.snapshot, 30*time.Millisecond)

	if s.Status() != StatusIdle {
		t.Fatalf("initial status = %s", s.Status())
	}
	for _, c := range []string{"a", "ab", "abc"} {
		doc.set(c)
		s.Touch()
	}
	if s.Status() != StatusPending {
		t.Errorf("status after edits = %s, want pending", s.Status())
	}

	waitFor(t, s, StatusSaved)
	saves, content := mem.count()
	if saves != 1 || content != "abc" {
		t.Errorf("saves = %d content = %q, want 1 save of abc", saves, content)
	}
	if s.LastSaved().IsZero() {
		t.Error("LastSaved not recorded")
	}
}

func TestFlushSavesImmediately(t *testing.T) {
	mem := newMem()
	doc := &document{content: "now"}
	s := New(mem, doc.snapshot, time.Hour)
	s.Touch()

	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Status() != StatusSaved {
		t.Errorf("status = %s, want saved", s.Status())
	}
	if saves, content := mem.count(); saves != 1 || content != "now" {
		t.Errorf("saves = %d content = %q", saves, content)
	}
}

func TestFailedSave(t *testing.T) {
	mem := newMem()
	mem.fail = errors.New("disk full")
	s := New(mem, (&document{}).snapshot, time.Hour)

	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Status() != StatusFailed || s.Err() == nil {
		t.Errorf("status = %s err = %v, want failed", s.Status(), s.Err())
	}
}

func TestCloseFlushesPending(t *testing.T) {
	mem := newMem()
	doc := &document{content: "pending"}
	s := New(mem, doc.snapshot, time.Hour)
	s.Touch()

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if saves, content := mem.count(); saves != 1 || content != "pending" {
		t.Errorf("saves = %d content = %q", saves, content)
	}

	s.Touch()
	if s.Status() != StatusSaved {
		t.Errorf("Touch after Close changed status to %s", s.Status())
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestCloseWithoutChanges(t *testing.T) {
	mem := newMem()
	s := New(mem, (&document{}).snapshot, 0)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if saves, _ := mem.count(); saves != 0 {
		t.Errorf("saves = %d, want 0", saves)
	}
}
