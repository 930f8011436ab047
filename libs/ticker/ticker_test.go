package ticker

import (
	"errors"
	"testing"
)

func TestParseAggregatorCode(t *testing.T) {
	cases := []struct {
		in   string
		want Aggregator
	}{
		{"moex", MOEX},
		{"MOEX", MOEX},
		{"mxnl", MOEXAnalytic},
		{"MXNL", MOEXAnalytic},
	}
	for _, c := range cases {
		got, err := ParseAggregatorCode(c.in)
		if err != nil {
			t.Fatalf("ParseAggregatorCode(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseAggregatorCode(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseAggregatorCode("foo"); !errors.Is(err, ErrNonexistentAggregator) {
		t.Errorf("expected ErrNonexistentAggregator, got %v", err)
	}
}

func TestParseTimeSpanLetter(t *testing.T) {
	cases := []struct {
		in   string
		want TimeSpan
	}{
		{"C", Minute},
		{"T", Minute},
		{"H", Hour},
		{"D", Day},
		{"W", Week},
		{"M", Month},
		{"Q", Quarter},
	}
	for _, c := range cases {
		got, err := ParseTimeSpanLetter(c.in)
		if err != nil {
			t.Fatalf("ParseTimeSpanLetter(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseTimeSpanLetter(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseTimeSpanLetter("X"); !errors.Is(err, ErrWrongCondition) {
		t.Errorf("expected ErrWrongCondition, got %v", err)
	}
}

func TestNamingTableName(t *testing.T) {
	n := Naming{Symbol: "YNDX", Aggregator: MOEX, TimeSpan: Minute}
	if got, want := n.TableName(), "moex_YNDX_T"; got != want {
		t.Errorf("TableName() = %q, want %q", got, want)
	}
}

func TestNamingEquality(t *testing.T) {
	a := Naming{Symbol: "YNDX", Aggregator: MOEX, TimeSpan: Minute}
	b := Naming{Symbol: "YNDX", Aggregator: MOEX, TimeSpan: Minute}
	c := Naming{Symbol: "YNDX", Aggregator: MOEX, TimeSpan: Hour}
	if a != b {
		t.Errorf("expected equal namings to compare equal")
	}
	if a == c {
		t.Errorf("expected namings with different timespans to differ")
	}
}
