package observability

import "time"

// RecordTick rolls up one completed Processor.Tick call: how long it
// took, how many notifications were evaluated, how many fired, and
// how many evaluations failed (returned error or recovered panic). A
// nil receiver is a no-op so callers can wire metrics optionally.
func (m *AthenaMetrics) RecordTick(duration time.Duration, evaluated, fired, failed int) {
	if m == nil {
		return
	}
	m.TicksRun.Inc()
	m.TickDuration.ObserveDuration(duration)
	m.NotificationsEvaluated.Add(float64(evaluated))
	m.NotificationsFired.Add(float64(fired))
	m.EvalFailures.Add(float64(failed))
}

// RecordActiveNotifications records the current size of the active
// notification set.
func (m *AthenaMetrics) RecordActiveNotifications(count int) {
	if m == nil {
		return
	}
	m.ActiveNotifications.Set(float64(count))
}

// RecordFetch rolls up one store-keeper GetTicker call: whether it was
// served from cache or refilled from the named aggregator, and
// whether it failed.
func (m *AthenaMetrics) RecordFetch(aggregator string, duration time.Duration, cacheHit bool, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.ObserveDuration(duration)
	if err != nil {
		m.FetchErrors.Inc("aggregator", aggregator)
		return
	}
	source := "upstream"
	if cacheHit {
		source = "cache"
	}
	m.FetchesTotal.Inc("source", source)
}
