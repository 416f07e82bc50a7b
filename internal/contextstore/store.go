// Package contextstore implements the key-value plus append-only stream
// backend shared by the registry cache, tenant context service, event bus
// and journey checkpointing. Grounded on the teacher's
// internal/infra/redis_adapter.go adapter shape, generalized with the
// stream operations from the original ai_services/hub_core/context_manager.py.
package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Entry is one element read back from a stream, newest first.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Store is the minimal interface every other component depends on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	AppendStream(ctx context.Context, stream string, payload map[string]any, maxLen int64) (string, error)
	ReadStreamReverse(ctx context.Context, stream, maxID string, count int64) ([]Entry, error)
	Close() error
}

// RedisStore wraps go-redis v9. Connect is single-flight via sync.Once so
// concurrent callers never race to dial.
type RedisStore struct {
	namespace string
	addr      string
	password  string
	db        int

	connectOnce sync.Once
	connectErr  error
	rdb         *redis.Client
}

func NewRedisStore(namespace, addr, password string, db int) *RedisStore {
	return &RedisStore{namespace: namespace, addr: addr, password: password, db: db}
}

func (s *RedisStore) client(ctx context.Context) (*redis.Client, error) {
	s.connectOnce.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:         s.addr,
			Password:     s.password,
			DB:           s.db,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
			PoolSize:     20,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			s.connectErr = fmt.Errorf("context store: redis ping failed (%s): %w", s.addr, err)
			return
		}
		slog.Info("context store connected", "addr", s.addr, "db", s.db)
		s.rdb = rdb
	})
	return s.rdb, s.connectErr
}

func (s *RedisStore) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	rdb, err := s.client(ctx)
	if err != nil {
		return nil, false, err
	}
	val, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rdb, err := s.client(ctx)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	rdb, err := s.client(ctx)
	if err != nil {
		return err
	}
	return rdb.Del(ctx, key).Err()
}

// AppendStream XADDs a JSON-encoded payload, trimmed approximately to maxLen.
func (s *RedisStore) AppendStream(ctx context.Context, stream string, payload map[string]any, maxLen int64) (string, error) {
	rdb, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	if maxLen <= 0 {
		maxLen = 1000
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("context store: marshal stream payload: %w", err)
	}
	id, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReadStreamReverse reads up to count entries at or before maxID, newest
// first. An empty/"$" maxID is treated as "+" (highest possible stream ID) —
// see SPEC_FULL.md §C.4 for why "$" cannot be passed through literally.
func (s *RedisStore) ReadStreamReverse(ctx context.Context, stream, maxID string, count int64) ([]Entry, error) {
	rdb, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	if maxID == "" || maxID == "$" {
		maxID = "+"
	}
	if count <= 0 {
		count = 100
	}
	raw, err := rdb.XRevRangeN(ctx, stream, maxID, "-", count).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, msg := range raw {
		fields := make(map[string]string, len(msg.Values))
		for k, v := range msg.Values {
			if s, ok := v.(string); ok {
				fields[k] = s
			} else {
				fields[k] = fmt.Sprintf("%v", v)
			}
		}
		entries[i] = Entry{ID: msg.ID, Fields: fields}
	}
	return entries, nil
}

// Namespace reports the configured namespace for callers building keys.
func (s *RedisStore) Namespace() string {
	return s.namespace
}
