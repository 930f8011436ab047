package ticker

import "errors"

// Sentinel errors shared by every layer above this package. Each layer
// wraps one of these with fmt.Errorf("...: %w", ...) so callers can
// classify failures with errors.Is regardless of which layer raised
// them.
var (
	// ErrWrongCondition covers parse, rewrite, typecheck, and evaluation
	// shape errors: anything that means the user's rule text does not
	// describe a valid expression.
	ErrWrongCondition = errors.New("wrong condition")

	// ErrNonexistentAggregator is raised when a "#AGG:" short code does
	// not resolve to a known Aggregator.
	ErrNonexistentAggregator = errors.New("nonexistent aggregator")

	// ErrNonexistentTicker is raised when a ticker name falls outside a
	// user's scope under legacy naming rules.
	ErrNonexistentTicker = errors.New("nonexistent ticker")

	// ErrNonexistentNotification is raised when a notification id does
	// not exist on remove.
	ErrNonexistentNotification = errors.New("nonexistent notification")

	// ErrFetchFailed wraps an aggregator adapter network/decode failure.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnknownAggregator is raised by the store-keeper when asked for
	// an aggregator with no registered adapter.
	ErrUnknownAggregator = errors.New("unknown aggregator")

	// ErrValue covers invalid bar windows (e.g. startBar >= endBar).
	ErrValue = errors.New("value error")
)
