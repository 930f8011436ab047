package ticker

import "fmt"

// Naming is a fully-qualified request handle: a symbol plus the
// aggregator and timespan that together pick out one physical candle
// table, and the MOEX market/engine hints. Two namings are equal iff
// all five fields match (Go struct equality
// over comparable fields gives us this for free).
type Naming struct {
	Symbol     string
	Aggregator Aggregator
	TimeSpan   TimeSpan
	Market     string // MOEX hint, default "shares"
	Engine     string // MOEX hint, default "stock"
}

// DefaultMarket and DefaultEngine are the MOEX adapter's default hints
// when a naming omits them.
const (
	DefaultMarket = "shares"
	DefaultEngine = "stock"
)

// WithDefaults returns a copy of n with Market/Engine filled in from the
// package defaults when empty. Only meaningful for MOEX namings; other
// aggregators ignore Market/Engine entirely.
func (n Naming) WithDefaults() Naming {
	if n.Market == "" {
		n.Market = DefaultMarket
	}
	if n.Engine == "" {
		n.Engine = DefaultEngine
	}
	return n
}

// TableName returns the deterministic physical table name for this
// naming's candle data: "<aggShort>_<symbol>_<dbInterval>", e.g.
// "moex_YNDX_T".
func (n Naming) TableName() string {
	return fmt.Sprintf("%s_%s_%s", n.Aggregator.String(), n.Symbol, n.TimeSpan.Letter())
}
