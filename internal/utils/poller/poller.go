package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller runs pollMethod every interval and whenever Trigger is called.
// Triggers that arrive while a run is pending are coalesced into one run.
// A zero interval disables the timer so the poller only reacts to triggers.
type Poller struct {
	name       string
	interval   time.Duration
	quit       chan struct{}
	trigger    chan struct{}
	pollMethod func(ctx context.Context) error
}

func NewPoller(name string, interval time.Duration, pollMethod func(ctx context.Context) error) *Poller {
	return &Poller{
		name:       name,
		interval:   interval,
		quit:       make(chan struct{}),
		trigger:    make(chan struct{}, 1),
		pollMethod: pollMethod,
	}
}

// Trigger requests a run without blocking.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Pending returns the number of triggered runs not yet started.
func (p *Poller) Pending() int {
	return len(p.trigger)
}

func (p *Poller) Start(ctx context.Context) {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	logger := log.Ctx(ctx).With().Str("poller", p.name).Logger()
	logger.Info().Msgf("Starting poller with interval %s", p.interval)

	for {
		select {
		case <-tick:
			p.poll(ctx, "timer")
		case <-p.trigger:
			p.poll(ctx, "trigger")
		case <-ctx.Done():
			logger.Info().Msg("Poller stopped due to context cancellation")
			return
		case <-p.quit:
			logger.Info().Msg("Poller stopped")
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context, source string) {
	logger := log.Ctx(ctx).With().Str("poller", p.name).Str("source", source).Logger()
	logger.Debug().Msg("Executing poll method")
	if err := p.pollMethod(ctx); err != nil {
		logger.Error().Err(err).Msg("Error polling")
	} else {
		logger.Debug().Msg("Poll method executed successfully")
	}
}

func (p *Poller) Stop() {
	close(p.quit)
}
