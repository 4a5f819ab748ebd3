package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-forecast-api/pkg/airtable"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DataStore is the remote tabular store as seen by the pipeline.
type DataStore interface {
	FetchAll(ctx context.Context, table string) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]interface{}) (*airtable.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]interface{}) (*airtable.Record, error)
}

// TableCache keeps short-lived snapshots of whole tables in Redis.
type TableCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTableCache connects to Redis. Keys are "<prefix>:table:<name>".
func NewTableCache(opts *redis.Options, prefix string, ttl time.Duration) (*TableCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("snapshot ttl must be positive, got %s", ttl)
	}
	if prefix == "" {
		prefix = "order-forecast"
	}
	return &TableCache{rdb: redis.NewClient(opts), prefix: prefix, ttl: ttl}, nil
}

// Ping checks the Redis connection.
func (c *TableCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *TableCache) Close() error { return c.rdb.Close() }

func (c *TableCache) key(table string) string {
	return c.prefix + ":table:" + table
}

// Get returns the cached snapshot of table. ok is false on a miss.
func (c *TableCache) Get(ctx context.Context, table string) (records []airtable.Record, ok bool, err error) {
	data, err := c.rdb.Get(ctx, c.key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("snapshot get %s: %w", table, err)
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("snapshot decode %s: %w", table, err)
	}
	return records, true, nil
}

// Set stores a snapshot of table for the configured TTL.
func (c *TableCache) Set(ctx context.Context, table string, records []airtable.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("snapshot encode %s: %w", table, err)
	}
	if err := c.rdb.Set(ctx, c.key(table), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot set %s: %w", table, err)
	}
	return nil
}

// Invalidate drops the snapshots of the given tables.
func (c *TableCache) Invalidate(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	keys := make([]string, len(tables))
	for i, t := range tables {
		keys[i] = c.key(t)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// CachedStore reads tables through a TableCache. Writes go straight to the
// store and invalidate the written table. Cache failures only cost a remote
// read; they are logged and never returned.
type CachedStore struct {
	next   DataStore
	cache  *TableCache
	logger *zap.Logger
}

// NewCachedStore wraps next with cache.
func NewCachedStore(next DataStore, cache *TableCache, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{next: next, cache: cache, logger: logger}
}

// FetchAll serves table from the cache when a snapshot exists.
func (s *CachedStore) FetchAll(ctx context.Context, table string) ([]airtable.Record, error) {
	records, ok, err := s.cache.Get(ctx, table)
	if err != nil {
		s.logger.Warn("snapshot cache read failed", zap.String("table", table), zap.Error(err))
	}
	if ok {
		return records, nil
	}

	records, err = s.next.FetchAll(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, table, records); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("table", table), zap.Error(err))
	}
	return records, nil
}

// Create inserts a record and invalidates the table snapshot.
func (s *CachedStore) Create(ctx context.Context, table string, fields map[string]interface{}) (*airtable.Record, error) {
	record, err := s.next.Create(ctx, table, fields)
	s.invalidate(ctx, table)
	return record, err
}

// Update patches a record and invalidates the table snapshot.
func (s *CachedStore) Update(ctx context.Context, table, id string, fields map[string]interface{}) (*airtable.Record, error) {
	record, err := s.next.Update(ctx, table, id, fields)
	s.invalidate(ctx, table)
	return record, err
}

func (s *CachedStore) invalidate(ctx context.Context, table string) {
	if err := s.cache.Invalidate(ctx, table); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.String("table", table), zap.Error(err))
	}
}
