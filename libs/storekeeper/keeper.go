// Package storekeeper implements the cache façade over the persistent
// store and the aggregator adapters: relative bar-offset windows
// resolved to wall-clock ranges, served from cache when possible and
// refilled from upstream on a miss.
package storekeeper

import (
	"context"
	"fmt"
	"time"

	"athena/libs/aggregator"
	"athena/libs/observability"
	"athena/libs/store"
	"athena/libs/testing"
	"athena/libs/ticker"
)

// Keeper is the single entry point the expression pipeline's fetch
// primitive calls through.
type Keeper struct {
	store    *store.Store
	adapters *aggregator.Dispatcher
	clock    testing.Clock
	metrics  *observability.AthenaMetrics
}

// New wires a Keeper from its persistent store, the registered
// aggregator adapters, a clock (production wires
// testing.SystemClock{}; tests wire testing.FixedClock), and an
// optional metrics sink (nil records nothing).
func New(s *store.Store, adapters *aggregator.Dispatcher, clock testing.Clock, metrics *observability.AthenaMetrics) *Keeper {
	return &Keeper{store: s, adapters: adapters, clock: clock, metrics: metrics}
}

// GetTicker returns the bars for naming in [startBar, endBar], both
// non-positive relative bar offsets from "now" (0 = current bar). It
// serves the request from the persistent store when the store already
// holds at least endBar-startBar bars in the resolved wall-clock
// window; otherwise it calls the upstream adapter for that window,
// clips the result, persists it, and returns it.
func (k *Keeper) GetTicker(ctx context.Context, naming ticker.Naming, startBar, endBar int) (store.Table, error) {
	fetchStart := time.Now()

	if startBar >= endBar {
		err := fmt.Errorf("%w: startBar %d must be < endBar %d", ticker.ErrValue, startBar, endBar)
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}

	adapter, ok := k.adapters.Dispatch(naming.Aggregator)
	if !ok {
		err := fmt.Errorf("%w: %s", ticker.ErrUnknownAggregator, naming.Aggregator)
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}

	width := naming.TimeSpan.Width()
	now := k.clock.Now()
	start := now.Add(time.Duration(startBar) * width)
	end := now.Add(time.Duration(endBar) * width)
	wantBars := endBar - startBar

	cached, _, err := k.store.ReadCandles(ctx, naming, start.Unix(), end.Unix())
	if err != nil {
		err = fmt.Errorf("read cached candles: %w", err)
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}
	if len(cached) >= wantBars {
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), true, nil)
		return cached, nil
	}

	hints := aggregator.Hints{Market: naming.Market, Engine: naming.Engine}
	fetched, err := adapter.Download(ctx, naming.Symbol, start, end, naming.TimeSpan, hints)
	if err != nil {
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}

	clipped := clipToWindow(fetched, start.Unix(), end.Unix())
	if err := k.store.UpsertCandles(ctx, naming, clipped); err != nil {
		err = fmt.Errorf("persist fetched candles: %w", err)
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}

	refreshed, _, err := k.store.ReadCandles(ctx, naming, start.Unix(), end.Unix())
	if err != nil {
		err = fmt.Errorf("read refreshed candles: %w", err)
		k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, err)
		return nil, err
	}
	k.metrics.RecordFetch(naming.Aggregator.String(), time.Since(fetchStart), false, nil)
	return refreshed, nil
}

func clipToWindow(table store.Table, start, end int64) []store.Row {
	out := make([]store.Row, 0, len(table))
	for _, row := range table {
		if row.Datetime >= start && row.Datetime <= end {
			out = append(out, row)
		}
	}
	return out
}
