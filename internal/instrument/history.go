package instrument

import (
	"time"

	"oi-surge-alerts/internal/series"
)

// History is the retained state of one monitored instrument.
type History struct {
	Instrument   Instrument
	Spot         *series.Series
	OpenInterest *series.Series

	LastAlert  time.Time
	FirstAlert time.Time
	Repeats    []time.Time

	maxRepeats int
}

func newHistory(inst Instrument, retention time.Duration, maxRepeats int) *History {
	return &History{
		Instrument:   inst,
		Spot:         series.New(retention),
		OpenInterest: series.New(retention),
		maxRepeats:   maxRepeats,
	}
}

// RecordTrigger books a triggered evaluation. The first trigger starts a new
// run and clears the repeats, later ones are appended. Only the newest
// maxRepeats entries are kept when a limit is set.
func (h *History) RecordTrigger(now time.Time) {
	if h.FirstAlert.IsZero() {
		h.FirstAlert = now
		h.Repeats = h.Repeats[:0]
		return
	}
	h.Repeats = append(h.Repeats, now)
	if h.maxRepeats > 0 && len(h.Repeats) > h.maxRepeats {
		h.Repeats = append(h.Repeats[:0], h.Repeats[len(h.Repeats)-h.maxRepeats:]...)
	}
}

// LastRepeat returns the most recent subsequent trigger.
func (h *History) LastRepeat() (time.Time, bool) {
	if len(h.Repeats) == 0 {
		return time.Time{}, false
	}
	return h.Repeats[len(h.Repeats)-1], true
}

// InCooldown reports whether a notification was sent less than cooldown ago.
func (h *History) InCooldown(now time.Time, cooldown time.Duration) bool {
	return !h.LastAlert.IsZero() && now.Sub(h.LastAlert) < cooldown
}
