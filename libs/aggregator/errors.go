package aggregator

import "errors"

var (
	// ErrDecodeFailed means the upstream response body did not parse
	// into the shape the adapter expects.
	ErrDecodeFailed = errors.New("aggregator: decode response failed")

	// ErrAnalyticsWindowTooRecent is returned by the MOEX-analytic
	// adapter when asked for a window ending inside the publication
	// lag the upstream feed enforces.
	ErrAnalyticsWindowTooRecent = errors.New("aggregator: analytics window ends too recently to be published")

	// ErrMissingCredentials is returned when an adapter requiring
	// session auth was not given one.
	ErrMissingCredentials = errors.New("aggregator: missing credentials")
)
