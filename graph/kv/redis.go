package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store.
//
// Entries are serialized as JSON under keys of the form
// "<prefix>:<namespace>/<key>". List and the substring fallback Search use
// SCAN with a namespace-prefixed MATCH pattern, so they avoid the O(n)
// KEYS command even on a large keyspace.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	embedder Embedder
}

// NewRedisStore wraps an existing *redis.Client. prefix namespaces this
// store's keys within a shared Redis instance (e.g. "graphrun:kv").
func NewRedisStore(client *redis.Client, prefix string, embedder Embedder) *RedisStore {
	if prefix == "" {
		prefix = "graphrun:kv"
	}
	return &RedisStore{client: client, prefix: prefix, embedder: embedder}
}

func (r *RedisStore) redisKey(namespace []string, key string) string {
	return fmt.Sprintf("%s:%s/%s", r.prefix, namespaceKey(namespace), key)
}

func (r *RedisStore) scanPattern(namespace []string) string {
	return fmt.Sprintf("%s:%s/*", r.prefix, namespaceKey(namespace))
}

func (r *RedisStore) Put(ctx context.Context, namespace []string, key string, value map[string]any) error {
	now := time.Now()
	e := Entry{NamespacePath: namespace, Key: key, Value: value, UpdatedAt: now}

	existing, err := r.Get(ctx, namespace, key)
	if err == nil {
		e.CreatedAt = existing.CreatedAt
	} else {
		e.CreatedAt = now
	}

	if r.embedder != nil {
		if text, ok := value["text"].(string); ok && text != "" {
			vec, embedErr := r.embedder.Embed(ctx, text)
			if embedErr != nil {
				return fmt.Errorf("embed value: %w", embedErr)
			}
			e.Embedding = vec
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return r.client.Set(ctx, r.redisKey(namespace, key), data, 0).Err()
}

func (r *RedisStore) Get(ctx context.Context, namespace []string, key string) (Entry, error) {
	data, err := r.client.Get(ctx, r.redisKey(namespace, key)).Bytes()
	if err == redis.Nil {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, nil
}

func (r *RedisStore) Delete(ctx context.Context, namespace []string, key string) error {
	return r.client.Del(ctx, r.redisKey(namespace, key)).Err()
}

func (r *RedisStore) scanAll(ctx context.Context, namespace []string) ([]Entry, error) {
	var (
		cursor  uint64
		entries []Entry
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.scanPattern(namespace), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("redis mget: %w", err)
			}
			for _, v := range values {
				s, ok := v.(string)
				if !ok {
					continue
				}
				var e Entry
				if err := json.Unmarshal([]byte(s), &e); err != nil {
					continue
				}
				// MATCH also hits nested namespaces; keep direct entries only.
				if namespaceKey(e.NamespacePath) != namespaceKey(namespace) {
					continue
				}
				entries = append(entries, e)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

func (r *RedisStore) List(ctx context.Context, namespace []string, limit int) ([]Entry, error) {
	entries, err := r.scanAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *RedisStore) Search(ctx context.Context, namespace []string, query string, k int) ([]Entry, error) {
	entries, err := r.scanAll(ctx, namespace)
	if err != nil {
		return nil, err
	}

	if r.embedder != nil {
		qvec, embedErr := r.embedder.Embed(ctx, query)
		if embedErr != nil {
			return nil, fmt.Errorf("embed query: %w", embedErr)
		}
		sort.Slice(entries, func(i, j int) bool {
			return cosineSimilarity(qvec, entries[i].Embedding) > cosineSimilarity(qvec, entries[j].Embedding)
		})
	} else {
		q := strings.ToLower(query)
		filtered := entries[:0]
		for _, e := range entries {
			if strings.Contains(strings.ToLower(fmt.Sprint(e.Value)), q) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if k > 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries, nil
}
