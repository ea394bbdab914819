package coordinator

import (
	"fmt"
	"time"
)

// rounding slack for MinParticipants / Fraction, so 7 / 0.7 gives 10.
const fractionEpsilon = 1e-9

type Config struct {
	MinParticipants   int           `env:"MIN_PARTICIPANTS"   envDefault:"1"`
	Fraction          float64       `env:"FRACTION"           envDefault:"1.0"`
	MaxParticipants   int           `env:"MAX_PARTICIPANTS"   envDefault:"0"`
	Epochs            int           `env:"EPOCHS"             envDefault:"1"`
	EpochBase         int           `env:"EPOCH_BASE"         envDefault:"0"`
	TotalRounds       int           `env:"TOTAL_ROUNDS"       envDefault:"1"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT"  envDefault:"30s"`
	MonitorInterval   time.Duration `env:"MONITOR_INTERVAL"   envDefault:"1s"`
}

func (c Config) Validate() error {
	switch {
	case c.MinParticipants < 1:
		return fmt.Errorf("%w: minimum participants must be at least 1", ErrInvalidConfig)
	case c.Fraction <= 0 || c.Fraction > 1:
		return fmt.Errorf("%w: fraction of participants must be in (0, 1]", ErrInvalidConfig)
	case c.MaxParticipants != 0 && c.MaxParticipants < c.MinConnected():
		return fmt.Errorf("%w: maximum participants %d is below the %d needed to start a round", ErrInvalidConfig, c.MaxParticipants, c.MinConnected())
	case c.Epochs < 1:
		return fmt.Errorf("%w: epochs per round must be at least 1", ErrInvalidConfig)
	case c.EpochBase < 0:
		return fmt.Errorf("%w: epoch base must not be negative", ErrInvalidConfig)
	case c.TotalRounds < 1:
		return fmt.Errorf("%w: total rounds must be at least 1", ErrInvalidConfig)
	case c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0:
		return fmt.Errorf("%w: heartbeat interval and timeout must be positive", ErrInvalidConfig)
	case c.HeartbeatTimeout <= c.HeartbeatInterval:
		return fmt.Errorf("%w: heartbeat timeout must exceed the heartbeat interval", ErrInvalidConfig)
	case c.MonitorInterval <= 0 || c.MonitorInterval >= c.HeartbeatTimeout:
		return fmt.Errorf("%w: monitor interval must be positive and shorter than the heartbeat timeout", ErrInvalidConfig)
	}

	return nil
}

// MinConnected is how many participants must be registered before a round
// starts: enough that the configured fraction of them reaches MinParticipants.
func (c Config) MinConnected() int {
	n := int(float64(c.MinParticipants)/c.Fraction + fractionEpsilon)

	return max(n, c.MinParticipants)
}

// Capacity is the registry size beyond which rendezvous replies LATER.
func (c Config) Capacity() int {
	if c.MaxParticipants > 0 {
		return c.MaxParticipants
	}

	return c.MinConnected()
}

// ExpectedCount is the number of updates that completes a round selected
// from n participants.
func ExpectedCount(n int, fraction float64) int {
	return max(1, min(n, int(fraction*float64(n))))
}
