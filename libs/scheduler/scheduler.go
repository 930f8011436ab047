// Package scheduler wraps a recurring-job primitive with a
// singleton-by-name guarantee: scheduling under a name already in use
// cancels the prior entry first.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler owns a set of named recurring jobs.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New starts a scheduler backed by its own cron runner.
func New() *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
	s.cron.Start()
	return s
}

// Schedule (re-)registers fn to run every period under name. Any job
// previously registered under name is cancelled first, guaranteeing at
// most one job with that name runs at a time. The period is passed to
// cron as an "@every" spec, which rounds periods under one second up to
// one second.
func (s *Scheduler) Schedule(name string, period time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	spec := fmt.Sprintf("@every %s", period.String())
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

// CancelByName removes the job registered under name, if any.
func (s *Scheduler) CancelByName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Stop halts the underlying cron runner, waiting for any running job
// to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
