// Package metrics mirrors the registration idiom seen in the teacher's
// miner/worker.go (metrics.NewRegisteredCounter("miner/...", nil),
// metrics.NewRegisteredTimer(...)): a global registry of named counters,
// gauges and timers that an optional reporter periodically exports.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

var (
	mu       sync.Mutex
	counters = map[string]*Counter{}
	gauges   = map[string]*Gauge{}
	timers   = map[string]*Timer{}
)

// Counter is a monotonically increasing count.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc(delta int64) { c.v.Add(delta) }
func (c *Counter) Count() int64    { return c.v.Load() }

// Gauge holds an instantaneous value.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Update(v int64) { g.v.Store(v) }
func (g *Gauge) Value() int64   { return g.v.Load() }

// Timer tracks count and total duration of an operation.
type Timer struct {
	count atomic.Int64
	total atomic.Int64 // nanoseconds
}

func (t *Timer) UpdateSince(start time.Time) {
	t.count.Add(1)
	t.total.Add(int64(time.Since(start)))
}

func (t *Timer) Snapshot() (count int64, total time.Duration) {
	return t.count.Load(), time.Duration(t.total.Load())
}

// NewRegisteredCounter registers (or returns the existing) counter under
// name. The second argument mirrors go-ethereum's registry-selection
// parameter; this package only ever uses the default global registry, so
// it is accepted and ignored.
func NewRegisteredCounter(name string, _ interface{}) *Counter {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := counters[name]; ok {
		return c
	}
	c := &Counter{}
	counters[name] = c
	return c
}

// NewRegisteredGauge registers (or returns the existing) gauge under name.
func NewRegisteredGauge(name string, _ interface{}) *Gauge {
	mu.Lock()
	defer mu.Unlock()
	if g, ok := gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	gauges[name] = g
	return g
}

// NewRegisteredTimer registers (or returns the existing) timer under name.
func NewRegisteredTimer(name string, _ interface{}) *Timer {
	mu.Lock()
	defer mu.Unlock()
	if t, ok := timers[name]; ok {
		return t
	}
	t := &Timer{}
	timers[name] = t
	return t
}

// Snapshot is a point-in-time copy of every registered metric, consumed by
// reporters (see influxreporter.go).
type Snapshot struct {
	Counters map[string]int64
	Gauges   map[string]int64
	Timers   map[string]struct {
		Count int64
		Total time.Duration
	}
}

// Collect takes a Snapshot of the global registry.
func Collect() Snapshot {
	mu.Lock()
	defer mu.Unlock()
	snap := Snapshot{
		Counters: make(map[string]int64, len(counters)),
		Gauges:   make(map[string]int64, len(gauges)),
		Timers: make(map[string]struct {
			Count int64
			Total time.Duration
		}, len(timers)),
	}
	for k, c := range counters {
		snap.Counters[k] = c.Count()
	}
	for k, g := range gauges {
		snap.Gauges[k] = g.Value()
	}
	for k, t := range timers {
		count, total := t.Snapshot()
		snap.Timers[k] = struct {
			Count int64
			Total time.Duration
		}{count, total}
	}
	return snap
}
