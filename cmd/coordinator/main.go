package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/fedcoord"
	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/coordinator/api"
	"github.com/absmach/fedcoord/coordinator/middleware"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/mqtt"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/benbjohnson/clock"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName          = "fedcoord"
	defHTTPPort      = "9090"
	envPrefix        = "FEDCOORD_"
	envPrefixHTTP    = "FEDCOORD_HTTP_"
	envPrefixStorage = "FEDCOORD_STORAGE_"
	pathEnv          = ".env"
	closeTimeout     = 5 * time.Second
)

type envConfig struct {
	LogLevel     string        `env:"FEDCOORD_LOG_LEVEL"     envDefault:"info"`
	InstanceID   string        `env:"FEDCOORD_INSTANCE_ID"`
	ConfigFile   string        `env:"FEDCOORD_CONFIG"`
	Aggregator   string        `env:"FEDCOORD_AGGREGATOR"    envDefault:"fedavg"`
	TrimRatio    float64       `env:"FEDCOORD_TRIM_RATIO"    envDefault:"0.1"`
	MQTTAddress  string        `env:"FEDCOORD_MQTT_ADDRESS"`
	MQTTQoS      uint8         `env:"FEDCOORD_MQTT_QOS"      envDefault:"1"`
	MQTTTimeout  time.Duration `env:"FEDCOORD_MQTT_TIMEOUT"  envDefault:"30s"`
	MQTTChannel  string        `env:"FEDCOORD_MQTT_CHANNEL"  envDefault:"default"`
	MQTTUsername string        `env:"FEDCOORD_MQTT_USERNAME"`
	MQTTPassword string        `env:"FEDCOORD_MQTT_PASSWORD"`
	OTELURL      url.URL       `env:"FEDCOORD_JAEGER_URL"`
	TraceRatio   float64       `env:"FEDCOORD_TRACE_RATIO"   envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	coordCfg := coordinator.Config{}
	if err := env.ParseWithOptions(&coordCfg, env.Options{Prefix: envPrefix}); err != nil {
		log.Fatalf("failed to load coordinator configuration : %s", err.Error())
	}

	storageCfg := storage.Config{}
	if err := env.ParseWithOptions(&storageCfg, env.Options{Prefix: envPrefixStorage}); err != nil {
		log.Fatalf("failed to load storage configuration : %s", err.Error())
	}

	if cfg.ConfigFile != "" {
		if err := applyConfigFile(cfg.ConfigFile, &cfg, &coordCfg, &storageCfg); err != nil {
			log.Fatalf("failed to load %s : %s", cfg.ConfigFile, err.Error())
		}
	}

	if err := coordCfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	backend, err := storage.NewBackend(ctx, storageCfg)
	if err != nil {
		logger.Error("failed to initialize weight storage", slog.String("type", storageCfg.Type), slog.Any("error", err))

		return
	}
	if backend.Closer != nil {
		defer backend.Closer.Close()
	}

	initial, err := loadInitialWeights(ctx, backend.Weights)
	if err != nil {
		logger.Error("failed to load initial weights", slog.Any("error", err))

		return
	}

	aggregator, err := fl.NewAggregator(cfg.Aggregator, cfg.TrimRatio)
	if err != nil {
		logger.Error("failed to create aggregator", slog.Any("error", err))

		return
	}

	var (
		pubsub   mqtt.PubSub
		notifier coordinator.Notifier
	)
	if cfg.MQTTAddress != "" {
		pubsub, err = mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.MQTTUsername, cfg.MQTTPassword, nil, cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			dctx, dcancel := context.WithTimeout(context.Background(), closeTimeout)
			defer dcancel()
			if err := pubsub.Disconnect(dctx); err != nil {
				logger.Warn("failed to disconnect from mqtt broker", slog.Any("error", err))
			}
		}()
		notifier = coordinator.NewMQTTNotifier(pubsub, cfg.MQTTChannel)
	}

	clk := clock.New()
	registry := coordinator.NewRegistry(clk, coordCfg.HeartbeatInterval, coordCfg.HeartbeatTimeout)

	svc := coordinator.NewService(coordCfg, registry, aggregator, backend.Weights, notifier, initial, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if pubsub != nil {
		if err := coordinator.Subscribe(ctx, cfg.MQTTChannel, pubsub, svc, logger); err != nil {
			logger.Error("failed to subscribe to participant topics", slog.String("error", err.Error()))

			return
		}
	}

	monitor := coordinator.NewHeartbeatMonitor(registry, svc, clk, coordCfg.MonitorInterval, logger)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	logger.Info("coordinator configured",
		slog.Int("min_participants", coordCfg.MinParticipants),
		slog.Int("min_connected", coordCfg.MinConnected()),
		slog.Float64("fraction", coordCfg.Fraction),
		slog.Int("total_rounds", coordCfg.TotalRounds),
		slog.String("aggregator", cfg.Aggregator),
		slog.String("storage", storageCfg.Type),
	)

	g.Go(func() error {
		return monitor.Start(ctx)
	})

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func applyConfigFile(path string, cfg *envConfig, coordCfg *coordinator.Config, storageCfg *storage.Config) error {
	fc, err := fedcoord.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := fc.Coordinator.Apply(coordCfg); err != nil {
		return err
	}
	fc.Storage.Apply(storageCfg)

	if fc.Coordinator.Aggregator != "" {
		cfg.Aggregator = fc.Coordinator.Aggregator
	}
	if fc.Coordinator.TrimRatio != 0 {
		cfg.TrimRatio = fc.Coordinator.TrimRatio
	}
	if fc.MQTT.Address != "" {
		cfg.MQTTAddress = fc.MQTT.Address
	}
	if fc.MQTT.Channel != "" {
		cfg.MQTTChannel = fc.MQTT.Channel
	}

	return nil
}

// loadInitialWeights returns the model stored for round zero, or nil when
// training starts without one.
func loadInitialWeights(ctx context.Context, ws storage.WeightStorage) ([]byte, error) {
	blob, err := ws.Read(ctx, storage.GlobalWeightsKey(0))
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	if _, err := fl.DecodeWeights(blob); err != nil {
		return nil, err
	}

	return blob, nil
}
