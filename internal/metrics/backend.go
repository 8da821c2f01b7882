package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/any-hub/any-cache/internal/cache"
)

// 操作名，同时作为延迟统计的 key。
const (
	OpStore  = "store"
	OpLoad   = "load"
	OpRemove = "remove"
	OpClean  = "clean"
)

// InstrumentedBackend 包装任意 cache.Backend，记录各操作耗时与命中率，
// 不改变被包装后端的语义。
type InstrumentedBackend struct {
	backend cache.Backend
	latency *latencyTracker

	hits   atomic.Int64
	misses atomic.Int64
	swept  atomic.Int64
}

// Counters 是命中/未命中/清扫删除的累计值。
type Counters struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Deleted int64 `json:"swept"`
}

// Snapshot 是 /-/stats 输出的完整视图：每个操作的延迟分布加累计计数。
type Snapshot struct {
	Operations []Stats   `json:"operations"`
	Counters   Counters  `json:"counters"`
	TakenAt    time.Time `json:"taken_at"`
}

// NewInstrumentedBackend 创建带统计的后端包装，relativeAccuracy 为分位数相对误差（0.01 即 1%）。
func NewInstrumentedBackend(backend cache.Backend, relativeAccuracy float64) (*InstrumentedBackend, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	latency, err := newLatencyTracker(relativeAccuracy, OpStore, OpLoad, OpRemove, OpClean)
	if err != nil {
		return nil, err
	}
	return &InstrumentedBackend{backend: backend, latency: latency}, nil
}

func (b *InstrumentedBackend) Store(ctx context.Context, id string, value any) error {
	defer b.latency.observe(OpStore, time.Now())
	return b.backend.Store(ctx, id, value)
}

func (b *InstrumentedBackend) Load(ctx context.Context, id string, dst any) (bool, error) {
	defer b.latency.observe(OpLoad, time.Now())

	found, err := b.backend.Load(ctx, id, dst)
	if err == nil {
		if found {
			b.hits.Add(1)
		} else {
			b.misses.Add(1)
		}
	}
	return found, err
}

func (b *InstrumentedBackend) Remove(ctx context.Context, id string) error {
	defer b.latency.observe(OpRemove, time.Now())
	return b.backend.Remove(ctx, id)
}

func (b *InstrumentedBackend) Clean(ctx context.Context, mode cache.CleanMode) (cache.CleanResult, error) {
	defer b.latency.observe(OpClean, time.Now())

	result, err := b.backend.Clean(ctx, mode)
	b.swept.Add(int64(result.Deleted))
	return result, err
}

// Counters 返回当前累计值。
func (b *InstrumentedBackend) Counters() Counters {
	return Counters{
		Hits:    b.hits.Load(),
		Misses:  b.misses.Load(),
		Deleted: b.swept.Load(),
	}
}

// Snapshot 同时读取延迟分布与计数。
func (b *InstrumentedBackend) Snapshot() Snapshot {
	return Snapshot{
		Operations: b.latency.snapshot(),
		Counters:   b.Counters(),
		TakenAt:    time.Now().UTC(),
	}
}
