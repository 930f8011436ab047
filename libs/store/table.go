package store

import (
	"sort"

	"athena/libs/ticker"
)

// Row is one candle/analytic data point: a timestamp plus its numeric
// fields, keyed by the ticker.Column constants relevant to the owning
// aggregator.
type Row struct {
	Datetime int64
	Values   map[ticker.Column]float64
}

// Table is an ordered series of Rows. Every Table returned by the store
// or store-keeper is sorted ascending by Datetime with no duplicate
// timestamps (§3 invariant) — the schema's PRIMARY KEY on datetime plus
// upsert-on-conflict semantics make duplicates structurally impossible,
// so Table itself never needs to re-deduplicate.
type Table []Row

// SortByDatetime sorts rows ascending in place. Used when assembling a
// Table from an adapter's output, which is documented as already sorted
// but is re-sorted defensively before it ever reaches a caller.
func SortByDatetime(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Datetime < rows[j].Datetime })
}

// Tail returns the last n rows of t (or all of t if it has fewer than
// n rows). Used by the expression pipeline's reduce step, which always
// operates on "the trailing N bars".
func (t Table) Tail(n int) Table {
	if n <= 0 || len(t) == 0 {
		return nil
	}
	if n >= len(t) {
		return t
	}
	return t[len(t)-n:]
}

// Last returns the most recent value of col, and false if t is empty or
// col is absent from every row.
func (t Table) Last(col ticker.Column) (float64, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if v, ok := t[i].Values[col]; ok {
			return v, true
		}
	}
	return 0, false
}

// Values returns every present value of col across t, in Datetime order.
func (t Table) Values(col ticker.Column) []float64 {
	out := make([]float64, 0, len(t))
	for _, row := range t {
		if v, ok := row.Values[col]; ok {
			out = append(out, v)
		}
	}
	return out
}
