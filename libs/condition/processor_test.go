package condition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"athena/libs/aggregator"
	"athena/libs/database"
	"athena/libs/store"
	"athena/libs/storekeeper"
	clocks "athena/libs/testing"
	"athena/libs/ticker"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got map[int64][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{got: make(map[int64][]string)}
}

func (r *recordingNotifier) Notify(ctx context.Context, chatID int64, messages []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got[chatID] = append(r.got[chatID], messages...)
	return nil
}

type constantAdapter struct {
	value float64
}

func (a constantAdapter) Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints aggregator.Hints) (store.Table, error) {
	return store.Table{
		{Datetime: start.Unix(), Values: map[ticker.Column]float64{ticker.Mean: a.value}},
		{Datetime: end.Unix(), Values: map[ticker.Column]float64{ticker.Mean: a.value}},
	}, nil
}

func newTestProcessor(t *testing.T, value float64, notifier Notifier) *Processor {
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
	dispatcher.Register(ticker.MOEX, constantAdapter{value: value})
	keeper := storekeeper.New(s, dispatcher, clocks.FixedClock{T: time.Unix(1_700_000_000, 0)}, nil)

	p, err := New(ctx, s, keeper, notifier, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestCreateConditionPersistsAndActivates(t *testing.T) {
	p := newTestProcessor(t, 150, newRecordingNotifier())
	ctx := context.Background()

	n, err := p.CreateCondition(ctx, 42, "#YNDX.mean[C] > 100")
	if err != nil {
		t.Fatalf("CreateCondition: %v", err)
	}

	list := p.ListNotifications(42)
	if len(list) != 1 || list[0].ID != n.ID {
		t.Fatalf("expected notification %d in active list, got %v", n.ID, list)
	}
}

func TestCreateConditionRejectsWrongSyntax(t *testing.T) {
	p := newTestProcessor(t, 150, newRecordingNotifier())
	_, err := p.CreateCondition(context.Background(), 42, "#YNDX.mean[C] +")
	if !errors.Is(err, ticker.ErrWrongCondition) {
		t.Errorf("expected ErrWrongCondition, got %v", err)
	}
	if len(p.ListNotifications(42)) != 0 {
		t.Error("expected no notification persisted on parse failure")
	}
}

func TestRemoveNotification(t *testing.T) {
	p := newTestProcessor(t, 150, newRecordingNotifier())
	ctx := context.Background()

	n, err := p.CreateCondition(ctx, 42, "#YNDX.mean[C] > 100")
	if err != nil {
		t.Fatalf("CreateCondition: %v", err)
	}

	if err := p.RemoveNotification(ctx, n.ID); err != nil {
		t.Fatalf("RemoveNotification: %v", err)
	}
	if len(p.ListNotifications(42)) != 0 {
		t.Error("expected notification removed from active list")
	}

	err = p.RemoveNotification(ctx, n.ID)
	if !errors.Is(err, ticker.ErrNonexistentNotification) {
		t.Errorf("expected ErrNonexistentNotification on repeat remove, got %v", err)
	}
}

func TestTickNotifiesOnTrue(t *testing.T) {
	notifier := newRecordingNotifier()
	p := newTestProcessor(t, 150, notifier)
	ctx := context.Background()

	if _, err := p.CreateCondition(ctx, 7, "#YNDX.mean[C] > 100"); err != nil {
		t.Fatalf("CreateCondition: %v", err)
	}

	p.Tick(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.got[7]) != 1 {
		t.Fatalf("expected one notification for chat 7, got %v", notifier.got[7])
	}
}

type panickingAdapter struct{}

func (panickingAdapter) Download(ctx context.Context, symbol string, start, end time.Time, span ticker.TimeSpan, hints aggregator.Hints) (store.Table, error) {
	panic("simulated adapter panic")
}

func TestTickRecoversPerNotificationPanic(t *testing.T) {
	notifier := newRecordingNotifier()
	p := newTestProcessor(t, 150, notifier)
	ctx := context.Background()

	if _, err := p.CreateCondition(ctx, 7, "#YNDX.mean[C] > 100"); err != nil {
		t.Fatalf("CreateCondition: %v", err)
	}

	// Swap in an adapter that panics on every Download after the
	// trial evaluation above has already succeeded, so Tick must
	// survive the panic instead of crashing the process. The clock is an
	// hour later than the trial's, so the rows the trial cached do not
	// cover the window and Tick has to call the adapter.
	p.keeper = storekeeper.New(p.store, dispatcherWith(panickingAdapter{}), clocks.FixedClock{T: time.Unix(1_700_000_000+3600, 0)}, nil)

	p.Tick(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.got[7]) != 0 {
		t.Errorf("expected no notification when evaluation panics, got %v", notifier.got[7])
	}
}

func dispatcherWith(adapter aggregator.Adapter) *aggregator.Dispatcher {
	d := aggregator.NewDispatcher()
	d.Register(ticker.MOEX, adapter)
	return d
}

func TestTickSkipsOnFalse(t *testing.T) {
	notifier := newRecordingNotifier()
	p := newTestProcessor(t, 50, notifier)
	ctx := context.Background()

	if _, err := p.CreateCondition(ctx, 7, "#YNDX.mean[C] > 100"); err != nil {
		t.Fatalf("CreateCondition: %v", err)
	}

	p.Tick(ctx)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.got[7]) != 0 {
		t.Errorf("expected no notification when condition is false, got %v", notifier.got[7])
	}
}
