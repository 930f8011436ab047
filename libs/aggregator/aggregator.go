// Package aggregator implements the upstream market-data adapters: one
// per Aggregator variant, dispatched through a sealed lookup table with
// no duck-typed base type.
package aggregator

import (
	"context"
	"time"

	"athena/libs/store"
	"athena/libs/ticker"
)

// Hints carries per-aggregator request hints (MOEX's market/engine).
// Other aggregators ignore them.
type Hints struct {
	Market string
	Engine string
}

// Adapter is the one-operation contract every upstream source
// implements: fetch a half-open window of bars for one symbol.
type Adapter interface {
	Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints Hints) (store.Table, error)
}

// Dispatcher maps an Aggregator to its Adapter. New aggregators add a
// Register call at construction time; there is no reflection-based or
// duck-typed lookup.
type Dispatcher struct {
	adapters map[ticker.Aggregator]Adapter
}

// NewDispatcher returns an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{adapters: make(map[ticker.Aggregator]Adapter)}
}

// Register installs the adapter responsible for agg.
func (d *Dispatcher) Register(agg ticker.Aggregator, a Adapter) {
	d.adapters[agg] = a
}

// Dispatch looks up the adapter for agg. ok is false when no adapter is
// registered — callers surface ticker.ErrUnknownAggregator in that case.
func (d *Dispatcher) Dispatch(agg ticker.Aggregator) (Adapter, bool) {
	a, ok := d.adapters[agg]
	return a, ok
}
