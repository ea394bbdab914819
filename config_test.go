package fedcoord_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedcoord"
	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[coordinator]
min_participants = 10
fraction = 0.5
total_rounds = 5
heartbeat_interval = "2s"
heartbeat_timeout = "6s"
aggregator = "median"

[storage]
type = "badger"
badger_path = "/var/lib/fedcoord"
compress = true

[mqtt]
address = "tcp://broker:1883"
channel = "mnist"

[sdk]
coordinator_url = "http://coordinator:9090"
timeout = "5s"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := fedcoord.LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "median", cfg.Coordinator.Aggregator)
	assert.Equal(t, "mnist", cfg.MQTT.Channel)

	cc := coordinator.Config{
		MinParticipants:   1,
		Fraction:          1,
		Epochs:            3,
		TotalRounds:       1,
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		MonitorInterval:   time.Second,
	}
	require.NoError(t, cfg.Coordinator.Apply(&cc))
	assert.Equal(t, coordinator.Config{
		MinParticipants:   10,
		Fraction:          0.5,
		Epochs:            3,
		TotalRounds:       5,
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout:  6 * time.Second,
		MonitorInterval:   time.Second,
	}, cc)
	require.NoError(t, cc.Validate())

	sc := storage.Config{Type: "memory", CacheSize: 64}
	cfg.Storage.Apply(&sc)
	assert.Equal(t, "badger", sc.Type)
	assert.Equal(t, "/var/lib/fedcoord", sc.BadgerPath)
	assert.True(t, sc.Compress)
	assert.Equal(t, 64, sc.CacheSize)

	var sdkCfg sdk.Config
	require.NoError(t, cfg.SDK.Apply(&sdkCfg))
	assert.Equal(t, sdk.Config{CoordinatorURL: "http://coordinator:9090", Timeout: 5 * time.Second}, sdkCfg)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		desc string
		path func(t *testing.T) string
	}{
		{desc: "missing file", path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.toml") }},
		{desc: "invalid toml", path: func(t *testing.T) string { return writeConfig(t, "[coordinator\n") }},
		{desc: "wrong type", path: func(t *testing.T) string { return writeConfig(t, "[coordinator]\nepochs = \"many\"\n") }},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := fedcoord.LoadConfig(tc.path(t))
			assert.Error(t, err)
		})
	}
}

func TestApplyInvalidDuration(t *testing.T) {
	cfg := fedcoord.CoordinatorConfig{HeartbeatTimeout: "soon"}

	var cc coordinator.Config
	assert.ErrorContains(t, cfg.Apply(&cc), "heartbeat_timeout")
}
