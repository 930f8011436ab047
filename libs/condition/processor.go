// Package condition implements the notification lifecycle: creating
// and validating rules, listing and removing them, and ticking the
// active set against live market data.
package condition

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"athena/libs/expr"
	"athena/libs/observability"
	"athena/libs/store"
	"athena/libs/storekeeper"
	"athena/libs/ticker"
)

// evalPanicErr classifies a recovered per-notification panic the same
// way a fetch failure would be classified.
var evalPanicErr = fmt.Errorf("%w: recovered from panic", ticker.ErrFetchFailed)

// tickFanoutLimit bounds how many notifications are evaluated
// concurrently within one Tick.
const tickFanoutLimit = 8

// Notifier is the constructor-injected outbound capability: sending
// triggered notification text to a chat. Production wires a chat-sink
// adapter; tests wire an in-memory recorder.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, messages []string) error
}

// Processor holds the active notification set and owns its lifecycle.
// The state machine per notification is Draft (in-memory while
// parsing) → Persisted (on successful AddNotification) →
// Active/Inactive (derived per tick from the evaluation result) →
// Removed (terminal).
type Processor struct {
	store    *store.Store
	keeper   *storekeeper.Keeper
	notifier Notifier
	metrics  *observability.AthenaMetrics

	mu     sync.RWMutex
	active map[int64]store.Notification
}

// New loads the persisted notification set and returns a ready
// Processor. metrics is optional; pass nil to record nothing.
func New(ctx context.Context, s *store.Store, keeper *storekeeper.Keeper, notifier Notifier, metrics *observability.AthenaMetrics) (*Processor, error) {
	existing, err := s.GetNotifications(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load persisted notifications: %w", err)
	}
	metrics.RecordActiveNotifications(len(existing))
	return &Processor{
		store:    s,
		keeper:   keeper,
		notifier: notifier,
		metrics:  metrics,
		active:   existing,
	}, nil
}

// CreateCondition parses, rewrites, and typechecks text, performs one
// trial evaluation to catch fetch/type errors before persisting, then
// persists and activates the notification. The trial's truth value is
// discarded — see DESIGN.md's Open Question (b) note.
func (p *Processor) CreateCondition(ctx context.Context, chatID int64, text string) (store.Notification, error) {
	compiled, tree, err := expr.Compile(text)
	if err != nil {
		return store.Notification{}, err
	}

	if _, err := expr.Eval(ctx, tree, p.fetch); err != nil {
		return store.Notification{}, err
	}

	n, err := p.store.AddNotification(ctx, chatID, compiled, text)
	if err != nil {
		return store.Notification{}, fmt.Errorf("persist notification: %w", err)
	}

	p.mu.Lock()
	p.active[n.ID] = n
	count := len(p.active)
	p.mu.Unlock()
	p.metrics.RecordActiveNotifications(count)

	return n, nil
}

// ListNotifications returns chatID's notifications in stable id order.
func (p *Processor) ListNotifications(chatID int64) []store.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]store.Notification, 0, len(p.active))
	for _, n := range p.active {
		if n.ChatID == chatID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveNotification deletes id from the store, then from the active
// map. ticker.ErrNonexistentNotification if id is not found.
func (p *Processor) RemoveNotification(ctx context.Context, id int64) error {
	if err := p.store.RemoveNotification(ctx, id); err != nil {
		return err
	}

	p.mu.Lock()
	delete(p.active, id)
	count := len(p.active)
	p.mu.Unlock()
	p.metrics.RecordActiveNotifications(count)
	return nil
}

// Tick re-evaluates every active notification, groups the ones that
// return true by chat, and notifies each chat once. Per-notification
// failures are logged and skip that notification; Tick itself never
// returns an error.
func (p *Processor) Tick(ctx context.Context) {
	tickStart := time.Now()

	p.mu.RLock()
	snapshot := make([]store.Notification, 0, len(p.active))
	for _, n := range p.active {
		snapshot = append(snapshot, n)
	}
	p.mu.RUnlock()

	var mu sync.Mutex
	triggered := make(map[int64][]string)
	var fired, failed atomic.Int64

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(tickFanoutLimit)

	for _, n := range snapshot {
		n := n
		group.Go(func() (geErr error) {
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					observability.LogEvent(gctx, "error", "notification_eval_panicked", map[string]any{
						"notification_id": n.ID,
						"chat_id":         n.ChatID,
						"error":           fmt.Errorf("%w: %v", evalPanicErr, r).Error(),
					})
				}
			}()

			ok, err := p.evaluateOne(gctx, n)
			if err != nil {
				failed.Add(1)
				observability.LogEvent(gctx, "info", "notification_eval_failed", map[string]any{
					"notification_id": n.ID,
					"chat_id":         n.ChatID,
					"error":           err.Error(),
				})
				return nil
			}
			if ok {
				fired.Add(1)
				mu.Lock()
				triggered[n.ChatID] = append(triggered[n.ChatID], n.OriginCondition)
				mu.Unlock()
			}
			return nil
		})
	}
	// Every Go func above always returns nil, so Wait's error is always
	// nil and is discarded explicitly.
	_ = group.Wait()

	for chatID, messages := range triggered {
		if err := p.notifier.Notify(ctx, chatID, messages); err != nil {
			observability.LogEvent(ctx, "error", "notify_failed", map[string]any{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
	}

	p.metrics.RecordTick(time.Since(tickStart), len(snapshot), int(fired.Load()), int(failed.Load()))
}

func (p *Processor) evaluateOne(ctx context.Context, n store.Notification) (bool, error) {
	tree, err := expr.ParseCompiled(n.CompiledCondition)
	if err != nil {
		return false, err
	}
	v, err := expr.Eval(ctx, tree, p.fetch)
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

func (p *Processor) fetch(ctx context.Context, naming ticker.Naming, start, end int) (store.Table, error) {
	return p.keeper.GetTicker(ctx, naming, start, end)
}
