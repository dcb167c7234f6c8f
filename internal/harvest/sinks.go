package harvest

import (
	"context"
	"fmt"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/pkg/redis"
)

// RedisMirror copies each result set into redis so other processes can
// read it without touching the data directory.
type RedisMirror struct {
	cache *redis.Cache
}

// NewRedisMirror creates a mirror; a disabled redis client makes it a no-op
func NewRedisMirror(cache *redis.Cache) *RedisMirror {
	return &RedisMirror{cache: cache}
}

// Name identifies the sink in logs
func (m *RedisMirror) Name() string { return "redis" }

// Publish writes the latest and the per-date key
func (m *RedisMirror) Publish(ctx context.Context, rs *contracts.ResultSet) error {
	if err := m.cache.Set(ctx, redis.HarvestKey(rs.Provider), rs, redis.TTLDaily); err != nil {
		return fmt.Errorf("failed to mirror latest harvest: %w", err)
	}
	if err := m.cache.Set(ctx, redis.HarvestDateKey(rs.Provider, rs.EvaluationDate.String()), rs, redis.TTLWeekly); err != nil {
		return fmt.Errorf("failed to mirror dated harvest: %w", err)
	}
	return nil
}

// Latest reads the mirrored result set for a provider
func (m *RedisMirror) Latest(ctx context.Context, provider string) (*contracts.ResultSet, bool, error) {
	var rs contracts.ResultSet
	found, err := m.cache.Get(ctx, redis.HarvestKey(provider), &rs)
	if err != nil || !found {
		return nil, false, err
	}
	return &rs, true, nil
}

// SinkFunc adapts a function to Sink
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, rs *contracts.ResultSet) error
}

// Name identifies the sink in logs
func (f SinkFunc) Name() string { return f.SinkName }

// Publish calls the function
func (f SinkFunc) Publish(ctx context.Context, rs *contracts.ResultSet) error {
	return f.Fn(ctx, rs)
}
