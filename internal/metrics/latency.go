package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// latencyTracker 为 InstrumentedBackend 的固定操作集各维护一个 DDSketch（毫秒）。
// sketch 在构造时全部建好，记录路径上不会再出现创建失败。
type latencyTracker struct {
	mu         sync.Mutex
	operations []string
	sketches   map[string]*ddsketch.DDSketch
}

func newLatencyTracker(relativeAccuracy float64, operations ...string) (*latencyTracker, error) {
	lt := &latencyTracker{
		operations: operations,
		sketches:   make(map[string]*ddsketch.DDSketch, len(operations)),
	}
	for _, operation := range operations {
		sketch, err := ddsketch.LogUnboundedDenseDDSketch(relativeAccuracy)
		if err != nil {
			return nil, fmt.Errorf("create latency sketch for %s: %w", operation, err)
		}
		lt.sketches[operation] = sketch
	}
	return lt, nil
}

// observe 记录从 start 到现在的耗时，用法为 defer lt.observe(op, time.Now())。
func (lt *latencyTracker) observe(operation string, start time.Time) {
	elapsed := time.Since(start)

	lt.mu.Lock()
	defer lt.mu.Unlock()
	if sketch, ok := lt.sketches[operation]; ok {
		sketch.Add(float64(elapsed.Microseconds()) / 1000.0)
	}
}

// Stats 是单个操作的分位数快照，单位毫秒。
type Stats struct {
	Operation string  `json:"operation"`
	Count     int64   `json:"count"`
	Min       float64 `json:"min_ms"`
	P50       float64 `json:"p50_ms"`
	P90       float64 `json:"p90_ms"`
	P99       float64 `json:"p99_ms"`
	Max       float64 `json:"max_ms"`
}

// snapshot 按构造时的操作顺序返回统计，未发生过的操作 Count 为 0。
func (lt *latencyTracker) snapshot() []Stats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	stats := make([]Stats, 0, len(lt.operations))
	for _, operation := range lt.operations {
		stats = append(stats, summarize(operation, lt.sketches[operation]))
	}
	return stats
}

func summarize(operation string, sketch *ddsketch.DDSketch) Stats {
	stat := Stats{Operation: operation}
	if sketch == nil || sketch.IsEmpty() {
		return stat
	}

	stat.Count = int64(sketch.GetCount())
	stat.Min, _ = sketch.GetMinValue()
	stat.Max, _ = sketch.GetMaxValue()
	if quantiles, err := sketch.GetValuesAtQuantiles([]float64{0.50, 0.90, 0.99}); err == nil {
		stat.P50, stat.P90, stat.P99 = quantiles[0], quantiles[1], quantiles[2]
	}
	return stat
}

func (s Stats) String() string {
	if s.Count == 0 {
		return fmt.Sprintf("%s: no data", s.Operation)
	}
	return fmt.Sprintf("%s (n=%d): min=%.2fms p50=%.2fms p90=%.2fms p99=%.2fms max=%.2fms",
		s.Operation, s.Count, s.Min, s.P50, s.P90, s.P99, s.Max)
}
