package ticker

import (
	"fmt"
	"strings"
	"time"
)

// TimeSpan is the sealed set of candle/bar widths the DSL can express.
type TimeSpan int

const (
	Minute TimeSpan = iota
	Hour
	Day
	Week
	Month
	Quarter
)

// Letter returns the canonical single-letter DSL spelling.
func (t TimeSpan) Letter() string {
	switch t {
	case Minute:
		return "T"
	case Hour:
		return "H"
	case Day:
		return "D"
	case Week:
		return "W"
	case Month:
		return "M"
	case Quarter:
		return "Q"
	default:
		return "?"
	}
}

// String returns the storage-friendly identifier used in table names
// and the ticker catalogue.
func (t TimeSpan) String() string {
	switch t {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	default:
		return fmt.Sprintf("timespan(%d)", int(t))
	}
}

// Width returns the wall-clock width of one bar of this span. Month and
// Quarter use 30/91-day approximations: the DSL only ever uses Width to
// translate relative bar offsets to a wall-clock window, not to compute
// calendar-exact boundaries.
func (t TimeSpan) Width() time.Duration {
	switch t {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	case Quarter:
		return 91 * 24 * time.Hour
	default:
		return time.Minute
	}
}

// ParseTimeSpanLetter resolves a single-letter DSL code to a TimeSpan.
// "C" ("current") is an alias for one-minute bars.
func ParseTimeSpanLetter(letter string) (TimeSpan, error) {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "C", "T":
		return Minute, nil
	case "H":
		return Hour, nil
	case "D":
		return Day, nil
	case "W":
		return Week, nil
	case "M":
		return Month, nil
	case "Q":
		return Quarter, nil
	default:
		return 0, fmt.Errorf("%w: unknown interval letter %q", ErrWrongCondition, letter)
	}
}
