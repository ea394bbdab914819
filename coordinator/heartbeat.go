package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ParticipantEvictor removes a participant whose deadline has passed,
// along with everything that depends on it, such as the round it was
// selected for. It reports false when the participant is gone or sent a
// heartbeat in the meantime.
type ParticipantEvictor interface {
	EvictParticipant(ctx context.Context, participantID string) (bool, error)
}

// HeartbeatMonitor evicts participants whose liveness deadline has passed.
type HeartbeatMonitor struct {
	registry *Registry
	evictor  ParticipantEvictor
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewHeartbeatMonitor(registry *Registry, evictor ParticipantEvictor, clk clock.Clock, interval time.Duration, logger *slog.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: registry,
		evictor:  evictor,
		clock:    clk,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps the registry once per interval until ctx is cancelled or
// Stop is called. A sweep in progress always runs to completion.
func (hm *HeartbeatMonitor) Start(ctx context.Context) error {
	defer close(hm.done)

	ticker := hm.clock.Ticker(hm.interval)
	defer ticker.Stop()

	hm.logger.Info("heartbeat monitor started", slog.Duration("interval", hm.interval))

	for {
		select {
		case <-ctx.Done():
			hm.logger.Info("heartbeat monitor stopping")

			return nil
		case <-hm.stopChan:
			hm.logger.Info("heartbeat monitor stopped")

			return nil
		case <-ticker.C:
			hm.Sweep(ctx)
		}
	}
}

// Sweep evicts every participant that is expired right now and returns
// how many it evicted.
func (hm *HeartbeatMonitor) Sweep(ctx context.Context) int {
	evicted := 0
	for _, p := range hm.registry.Expired() {
		ok, err := hm.evictor.EvictParticipant(ctx, p.ID)
		switch {
		case err != nil:
			hm.logger.Warn("failed to evict participant",
				slog.String("participant_id", p.ID),
				slog.Any("error", err),
			)
		case !ok:
			hm.logger.Debug("participant renewed before eviction", slog.String("participant_id", p.ID))
		default:
			evicted++
			hm.logger.Info("evicted participant after missed heartbeats",
				slog.String("participant_id", p.ID),
				slog.Time("deadline", p.Deadline),
			)
		}
	}

	return evicted
}

// Stop asks the monitor to exit and waits until it has, or until ctx is
// done. The wait only makes sense once Start is running.
func (hm *HeartbeatMonitor) Stop(ctx context.Context) error {
	hm.stopOnce.Do(func() { close(hm.stopChan) })

	select {
	case <-hm.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
