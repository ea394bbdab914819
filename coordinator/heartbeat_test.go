package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type registryEvictor struct {
	mu       sync.Mutex
	registry *Registry
	removed  []string
	fail     map[string]bool
	// before runs ahead of each eviction, between the sweep's snapshot and
	// the deadline check.
	before func(id string)
}

func (r *registryEvictor) EvictParticipant(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail[id] {
		return false, errors.New("remove failed")
	}
	if r.before != nil {
		r.before(id)
	}
	if !r.registry.RemoveExpired(id) {
		return false, nil
	}
	r.removed = append(r.removed, id)

	return true, nil
}

func (r *registryEvictor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.removed)
}

func TestHeartbeatMonitorSweepEmpty(t *testing.T) {
	clk := clock.NewMock()
	registry := NewRegistry(clk, testInterval, testTimeout)
	hm := NewHeartbeatMonitor(registry, &registryEvictor{registry: registry}, clk, testInterval, testLogger)

	assert.Equal(t, 0, hm.Sweep(context.Background()))
}

func TestHeartbeatMonitorChurn(t *testing.T) {
	clk := clock.NewMock()
	registry := NewRegistry(clk, testInterval, testTimeout)
	remover := &registryEvictor{registry: registry}
	hm := NewHeartbeatMonitor(registry, remover, clk, testInterval, testLogger)

	// Deadlines are spread one millisecond apart over 100ms.
	for i := range 100 {
		require.NoError(t, registry.Add(fmt.Sprintf("participant-%03d", i)))
		clk.Add(time.Millisecond)
	}

	ctx := context.Background()
	assert.Equal(t, 0, hm.Sweep(ctx))

	clk.Add(testTimeout - 50*time.Millisecond)
	assert.Equal(t, 50, hm.Sweep(ctx))
	assert.Equal(t, 50, registry.Count())
	assert.True(t, registry.Contains("participant-050"))
	assert.False(t, registry.Contains("participant-049"))

	// A heartbeat keeps a participant alive past its original deadline.
	require.NoError(t, registry.Refresh("participant-099"))

	clk.Add(50 * time.Millisecond)
	assert.Equal(t, 49, hm.Sweep(ctx))
	assert.Equal(t, []string{"participant-099"}, registry.IDs())
	assert.Equal(t, 99, remover.count())
}

func TestHeartbeatMonitorKeepsFailedRemovals(t *testing.T) {
	clk := clock.NewMock()
	registry := NewRegistry(clk, testInterval, testTimeout)
	remover := &registryEvictor{registry: registry, fail: map[string]bool{"stuck": true}}
	hm := NewHeartbeatMonitor(registry, remover, clk, testInterval, testLogger)

	require.NoError(t, registry.Add("stuck"))
	require.NoError(t, registry.Add("gone"))
	clk.Add(testTimeout + time.Millisecond)

	assert.Equal(t, 1, hm.Sweep(context.Background()))
	assert.Equal(t, []string{"stuck"}, registry.IDs())
}

func TestHeartbeatMonitorSparesRenewedParticipant(t *testing.T) {
	clk := clock.NewMock()
	registry := NewRegistry(clk, testInterval, testTimeout)
	evictor := &registryEvictor{registry: registry}
	evictor.before = func(id string) {
		if id == "late-heartbeat" {
			require.NoError(t, registry.Refresh(id))
		}
	}
	hm := NewHeartbeatMonitor(registry, evictor, clk, testInterval, testLogger)

	require.NoError(t, registry.Add("late-heartbeat"))
	require.NoError(t, registry.Add("silent"))
	clk.Add(testTimeout + time.Millisecond)
	require.Len(t, registry.Expired(), 2)

	assert.Equal(t, 1, hm.Sweep(context.Background()))
	assert.Equal(t, []string{"late-heartbeat"}, registry.IDs())
}

func TestHeartbeatMonitorStartStop(t *testing.T) {
	cases := []struct {
		desc string
		stop func(cancel context.CancelFunc, hm *HeartbeatMonitor) error
	}{
		{
			desc: "stop",
			stop: func(_ context.CancelFunc, hm *HeartbeatMonitor) error {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()

				return hm.Stop(ctx)
			},
		},
		{
			desc: "context cancelled",
			stop: func(cancel context.CancelFunc, _ *HeartbeatMonitor) error {
				cancel()

				return nil
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			clk := clock.NewMock()
			registry := NewRegistry(clk, testInterval, testTimeout)
			remover := &registryEvictor{registry: registry}
			hm := NewHeartbeatMonitor(registry, remover, clk, testInterval, testLogger)

			for i := range 10 {
				require.NoError(t, registry.Add(fmt.Sprintf("participant-%d", i)))
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- hm.Start(ctx) }()

			require.Eventually(t, func() bool {
				clk.Add(testInterval)

				return registry.Count() == 0
			}, time.Second, 10*time.Millisecond)
			assert.Equal(t, 10, remover.count())

			require.NoError(t, tc.stop(cancel, hm))
			select {
			case err := <-errCh:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("monitor did not stop")
			}
		})
	}
}
