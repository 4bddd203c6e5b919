package storage

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// indexKey holds the ids of every stored document.
const indexKey = KeyPrefix + "index"

// RedisBackend stores each document as a hash and tracks ids in a set.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to redisURL and pings the server.
func NewRedisBackend(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	c := redis.NewClient(opt)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewRedisBackendFromClient(c), nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(c *redis.Client) *RedisBackend {
	return &RedisBackend{client: c}
}

func (b *RedisBackend) Save(ctx context.Context, meta Meta, content string) error {
	if err := validID(meta.ID); err != nil {
		return err
	}
	stamp(&meta)
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, Key(meta.ID), map[string]interface{}{
			"content":       content,
			"name":          meta.Name,
			"preview":       meta.Preview,
			"last_modified": meta.LastModified.Format(time.RFC3339Nano),
		})
		p.SAdd(ctx, indexKey, meta.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func metaFromHash(id string, h map[string]string) Meta {
	meta := Meta{ID: id, Name: h["name"], Preview: h["preview"]}
	if v := h["last_modified"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			meta.LastModified = t
		}
	}
	return meta
}

func (b *RedisBackend) Load(ctx context.Context, id string) (string, Meta, error) {
	h, err := b.client.HGetAll(ctx, Key(id)).Result()
	if err != nil {
		return "", Meta{}, fmt.Errorf("failed to load document: %w", err)
	}
	if len(h) == 0 {
		return "", Meta{}, ErrNotFound
	}
	return h["content"], metaFromHash(id, h), nil
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		deleted = p.Del(ctx, Key(id))
		p.SRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if deleted.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *RedisBackend) List(ctx context.Context) ([]Meta, error) {
	ids, err := b.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	fields := []string{"name", "preview", "last_modified"}
	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = b.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HMGet(ctx, Key(id), fields...)
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	metas := make([]Meta, 0, len(ids))
	for i, id := range ids {
		h := make(map[string]string, len(fields))
		for j, v := range cmds[i].Val() {
			if s, ok := v.(string); ok {
				h[fields[j]] = s
			}
		}
		// Index entries whose hash expired or was removed elsewhere
		if len(h) == 0 {
			continue
		}
		metas = append(metas, metaFromHash(id, h))
	}
	sortByModified(metas)
	return metas, nil
}

// Close closes the client.
func (b *RedisBackend) Close() error { return b.client.Close() }
