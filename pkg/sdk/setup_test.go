package sdk_test

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/coordinator/api"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testCoordinator struct {
	svc     coordinator.Service
	sdk     sdk.SDK
	weights storage.WeightStorage
}

func newCoordinator(t *testing.T, cfg coordinator.Config) testCoordinator {
	t.Helper()

	require.NoError(t, cfg.Validate())

	initial, err := fl.EncodeWeights(fl.Weights{{Shape: []int{2}, Data: []float64{0, 0}}})
	require.NoError(t, err)

	ws := storage.NewInMemoryStorage()
	registry := coordinator.NewRegistry(clock.New(), cfg.HeartbeatInterval, cfg.HeartbeatTimeout)
	svc := coordinator.NewService(cfg, registry, fl.NewFedAvgAggregator(), ws, nil, initial, logger)

	ts := httptest.NewServer(api.MakeHandler(svc, logger, "sdk-test"))
	t.Cleanup(ts.Close)

	return testCoordinator{
		svc:     svc,
		sdk:     sdk.NewSDK(sdk.Config{CoordinatorURL: ts.URL, Timeout: 5 * time.Second}),
		weights: ws,
	}
}

func coordinatorConfig(minParticipants, totalRounds int) coordinator.Config {
	return coordinator.Config{
		MinParticipants:   minParticipants,
		Fraction:          1,
		Epochs:            1,
		TotalRounds:       totalRounds,
		HeartbeatInterval: 10 * time.Millisecond,
		HeartbeatTimeout:  time.Minute,
		MonitorInterval:   time.Second,
	}
}
