package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		MinParticipants:   10,
		Fraction:          1,
		Epochs:            2,
		TotalRounds:       3,
		HeartbeatInterval: testInterval,
		HeartbeatTimeout:  testTimeout,
		MonitorInterval:   50 * time.Millisecond,
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		desc   string
		modify func(c *Config)
		err    error
	}{
		{desc: "valid", modify: func(*Config) {}},
		{desc: "no participants", modify: func(c *Config) { c.MinParticipants = 0 }, err: ErrInvalidConfig},
		{desc: "zero fraction", modify: func(c *Config) { c.Fraction = 0 }, err: ErrInvalidConfig},
		{desc: "fraction above one", modify: func(c *Config) { c.Fraction = 1.5 }, err: ErrInvalidConfig},
		{desc: "maximum below minimum", modify: func(c *Config) { c.MaxParticipants = 5 }, err: ErrInvalidConfig},
		{desc: "no epochs", modify: func(c *Config) { c.Epochs = 0 }, err: ErrInvalidConfig},
		{desc: "no rounds", modify: func(c *Config) { c.TotalRounds = 0 }, err: ErrInvalidConfig},
		{desc: "timeout below interval", modify: func(c *Config) { c.HeartbeatTimeout = c.HeartbeatInterval }, err: ErrInvalidConfig},
		{desc: "monitor slower than timeout", modify: func(c *Config) { c.MonitorInterval = c.HeartbeatTimeout }, err: ErrInvalidConfig},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.err)
		})
	}
}

func TestMinConnectedAndCapacity(t *testing.T) {
	cases := []struct {
		desc      string
		min       int
		fraction  float64
		max       int
		connected int
		capacity  int
	}{
		{desc: "whole cohort", min: 10, fraction: 1, connected: 10, capacity: 10},
		{desc: "half cohort", min: 5, fraction: 0.5, connected: 10, capacity: 10},
		{desc: "inexact fraction", min: 7, fraction: 0.7, connected: 10, capacity: 10},
		{desc: "explicit maximum", min: 3, fraction: 1, max: 8, connected: 3, capacity: 8},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Config{MinParticipants: tc.min, Fraction: tc.fraction, MaxParticipants: tc.max}
			assert.Equal(t, tc.connected, cfg.MinConnected())
			assert.Equal(t, tc.capacity, cfg.Capacity())
		})
	}
}

func TestExpectedCount(t *testing.T) {
	cases := []struct {
		n        int
		fraction float64
		want     int
	}{
		{n: 10, fraction: 1, want: 10},
		{n: 10, fraction: 0.5, want: 5},
		{n: 10, fraction: 0.25, want: 2},
		{n: 3, fraction: 0.1, want: 1},
		{n: 0, fraction: 1, want: 1},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ExpectedCount(tc.n, tc.fraction), "n=%d fraction=%v", tc.n, tc.fraction)
	}
}
