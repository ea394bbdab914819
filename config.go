package fedcoord

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/pelletier/go-toml"
)

// Config is the optional TOML file shared by the coordinator and the CLI.
// Values set in the file override the environment defaults.
type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Storage     StorageConfig     `toml:"storage"`
	MQTT        MQTTConfig        `toml:"mqtt"`
	SDK         SDKConfig         `toml:"sdk"`
}

type CoordinatorConfig struct {
	MinParticipants   int     `toml:"min_participants"`
	Fraction          float64 `toml:"fraction"`
	MaxParticipants   int     `toml:"max_participants"`
	Epochs            int     `toml:"epochs"`
	EpochBase         int     `toml:"epoch_base"`
	TotalRounds       int     `toml:"total_rounds"`
	HeartbeatInterval string  `toml:"heartbeat_interval"`
	HeartbeatTimeout  string  `toml:"heartbeat_timeout"`
	MonitorInterval   string  `toml:"monitor_interval"`
	Aggregator        string  `toml:"aggregator"`
	TrimRatio         float64 `toml:"trim_ratio"`
}

type StorageConfig struct {
	Type       string `toml:"type"`
	FilePath   string `toml:"file_path"`
	BadgerPath string `toml:"badger_path"`
	Bucket     string `toml:"bucket"`
	Compress   bool   `toml:"compress"`
	CacheSize  int    `toml:"cache_size"`
}

type MQTTConfig struct {
	Address string `toml:"address"`
	Channel string `toml:"channel"`
}

type SDKConfig struct {
	CoordinatorURL  string `toml:"coordinator_url"`
	TLSVerification bool   `toml:"tls_verification"`
	Timeout         string `toml:"timeout"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Apply copies every value set in the file onto cfg.
func (c CoordinatorConfig) Apply(cfg *coordinator.Config) error {
	setInt(&cfg.MinParticipants, c.MinParticipants)
	setInt(&cfg.MaxParticipants, c.MaxParticipants)
	setInt(&cfg.Epochs, c.Epochs)
	setInt(&cfg.EpochBase, c.EpochBase)
	setInt(&cfg.TotalRounds, c.TotalRounds)
	if c.Fraction != 0 {
		cfg.Fraction = c.Fraction
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{name: "heartbeat_interval", value: c.HeartbeatInterval, dst: &cfg.HeartbeatInterval},
		{name: "heartbeat_timeout", value: c.HeartbeatTimeout, dst: &cfg.HeartbeatTimeout},
		{name: "monitor_interval", value: c.MonitorInterval, dst: &cfg.MonitorInterval},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.value); err != nil {
			return fmt.Errorf("coordinator.%s: %w", d.name, err)
		}
	}

	return nil
}

func (c StorageConfig) Apply(cfg *storage.Config) {
	setString(&cfg.Type, c.Type)
	setString(&cfg.FilePath, c.FilePath)
	setString(&cfg.BadgerPath, c.BadgerPath)
	setString(&cfg.S3.Bucket, c.Bucket)
	setInt(&cfg.CacheSize, c.CacheSize)
	if c.Compress {
		cfg.Compress = true
	}
}

func (c SDKConfig) Apply(cfg *sdk.Config) error {
	setString(&cfg.CoordinatorURL, c.CoordinatorURL)
	if c.TLSVerification {
		cfg.TLSVerification = true
	}
	if err := setDuration(&cfg.Timeout, c.Timeout); err != nil {
		return fmt.Errorf("sdk.timeout: %w", err)
	}

	return nil
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d

	return nil
}
