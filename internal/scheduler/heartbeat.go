package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Heartbeat raises a flag on a cron schedule. The consumer drains it at a
// point where reading shared state is safe; the cron goroutine itself never
// touches that state.
type Heartbeat struct {
	cron   *cron.Cron
	ticks  chan struct{}
	logger zerolog.Logger
}

// NewHeartbeat registers expr (six fields, seconds first, or a descriptor such as @hourly).
func NewHeartbeat(expr string, logger zerolog.Logger) (*Heartbeat, error) {
	hb := &Heartbeat{
		cron:   cron.New(cron.WithSeconds()),
		ticks:  make(chan struct{}, 1),
		logger: logger.With().Str("component", "heartbeat").Logger(),
	}
	if _, err := hb.cron.AddFunc(expr, hb.fire); err != nil {
		return nil, fmt.Errorf("register heartbeat %q: %w", expr, err)
	}
	return hb, nil
}

func (h *Heartbeat) fire() {
	select {
	case h.ticks <- struct{}{}:
		h.logger.Debug().Msg("heartbeat due")
	default:
	}
}

// Start begins the cron schedule.
func (h *Heartbeat) Start() {
	h.cron.Start()
}

// Stop halts the schedule and waits for a running job to return.
func (h *Heartbeat) Stop() {
	<-h.cron.Stop().Done()
}

// Due reports, without blocking, whether a heartbeat fired since the last call.
func (h *Heartbeat) Due() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.ticks:
		return true
	default:
		return false
	}
}
