package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileBackend stores each document as an html file with a json sidecar
// holding its metadata.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) contentPath(id string) string {
	return filepath.Join(b.dir, Key(id)+".html")
}

func (b *FileBackend) metaPath(id string) string {
	return filepath.Join(b.dir, Key(id)+".json")
}

// Save writes content first and metadata last, each through a temp file, so
// List never sees a document without content.
func (b *FileBackend) Save(ctx context.Context, meta Meta, content string) error {
	if err := validID(meta.ID); err != nil {
		return err
	}
	stamp(&meta)
	if err := writeAtomic(b.contentPath(meta.ID), []byte(content)); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writeAtomic(b.metaPath(meta.ID), data); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (b *FileBackend) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(b.metaPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("failed to decode metadata of %s: %w", id, err)
	}
	return meta, nil
}

func (b *FileBackend) Load(ctx context.Context, id string) (string, Meta, error) {
	if err := validID(id); err != nil {
		return "", Meta{}, err
	}
	meta, err := b.readMeta(id)
	if err != nil {
		return "", Meta{}, err
	}
	data, err := os.ReadFile(b.contentPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return "", Meta{}, ErrNotFound
	}
	if err != nil {
		return "", Meta{}, fmt.Errorf("failed to load document: %w", err)
	}
	return string(data), meta, nil
}

func (b *FileBackend) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	metaErr := os.Remove(b.metaPath(id))
	contentErr := os.Remove(b.contentPath(id))
	if errors.Is(metaErr, os.ErrNotExist) && errors.Is(contentErr, os.ErrNotExist) {
		return ErrNotFound
	}
	for _, err := range []error{metaErr, contentErr} {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete document: %w", err)
		}
	}
	return nil
}

func (b *FileBackend) List(ctx context.Context) ([]Meta, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, KeyPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), KeyPrefix), ".json")
		meta, err := b.readMeta(id)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable document metadata")
			continue
		}
		metas = append(metas, meta)
	}
	sortByModified(metas)
	return metas, nil
}
