package command

import (
	"context"
	"testing"
	"time"

	"athena/libs/aggregator"
	"athena/libs/condition"
	"athena/libs/database"
	"athena/libs/store"
	"athena/libs/storekeeper"
	clocks "athena/libs/testing"
	"athena/libs/ticker"
)

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, chatID int64, messages []string) error { return nil }

type constantAdapter struct{ value float64 }

func (a constantAdapter) Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints aggregator.Hints) (store.Table, error) {
	return store.Table{
		{Datetime: start.Unix(), Values: map[ticker.Column]float64{ticker.Mean: a.value}},
		{Datetime: end.Unix(), Values: map[ticker.Column]float64{ticker.Mean: a.value}},
	}, nil
}

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	ctx := context.Background()
	cfg := database.DefaultConfig()
	cfg.Path = ":memory:"
	db, err := database.ConnectWithMigrations(ctx, cfg)
	if err != nil {
		t.Fatalf("ConnectWithMigrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	dispatcher := aggregator.NewDispatcher()
	dispatcher.Register(ticker.MOEX, constantAdapter{value: 150})
	keeper := storekeeper.New(s, dispatcher, clocks.FixedClock{T: time.Unix(1_700_000_000, 0)}, nil)

	proc, err := condition.New(ctx, s, keeper, noopNotifier{}, nil)
	if err != nil {
		t.Fatalf("condition.New: %v", err)
	}
	return New(proc)
}

func TestAddRejectsBlank(t *testing.T) {
	s := newTestSurface(t)
	if got := s.Add(context.Background(), 1, "  "); got != "Wrong syntax" {
		t.Errorf("expected 'Wrong syntax', got %q", got)
	}
}

func TestAddSucceeds(t *testing.T) {
	s := newTestSurface(t)
	if got := s.Add(context.Background(), 1, "#YNDX.mean[C] > 100"); got != "Rule saved!" {
		t.Errorf("expected 'Rule saved!', got %q", got)
	}
}

func TestAddWrongSyntax(t *testing.T) {
	s := newTestSurface(t)
	if got := s.Add(context.Background(), 1, "#YNDX.mean[C] +"); got != "Wrong syntax" {
		t.Errorf("expected 'Wrong syntax', got %q", got)
	}
}

func TestAddUnknownAggregator(t *testing.T) {
	s := newTestSurface(t)
	got := s.Add(context.Background(), 1, "#ZZZZ:YNDX.mean[C] > 0")
	if got == "Rule saved!" || got == "Wrong syntax" || got == "" {
		t.Errorf("expected an aggregator-specific reply, got %q", got)
	}
}

func TestListEmpty(t *testing.T) {
	s := newTestSurface(t)
	if got := s.List(1); got != "You have no any notifications" {
		t.Errorf("expected empty-list message, got %q", got)
	}
}

func TestListAndRemove(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	s.Add(ctx, 1, "#YNDX.mean[C] > 100")

	list := s.List(1)
	if list == "You have no any notifications" {
		t.Fatal("expected a populated list")
	}

	if got := s.Remove(ctx, "not-a-number"); got != "Wrong notification id" {
		t.Errorf("expected 'Wrong notification id' for malformed id, got %q", got)
	}
	if got := s.Remove(ctx, "999999"); got != "Wrong notification id" {
		t.Errorf("expected 'Wrong notification id' for missing id, got %q", got)
	}
}

func TestHelpUnknownCommand(t *testing.T) {
	s := newTestSurface(t)
	lookup := func(string) (string, bool) { return "", false }
	got := s.Help("frobnicate", lookup)
	if got != "I don't know command frobnicate" {
		t.Errorf("unexpected help reply: %q", got)
	}
}
