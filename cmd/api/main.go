// Package main runs the emissions API: emissions factor reads and product
// token access over HTTP, backed by PostgreSQL with an optional Redis cache
// and optional SNS event publication.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"

	"github.com/archon-research/emissions-api/db/migrator"
	httpapi "github.com/archon-research/emissions-api/internal/adapters/inbound/http"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/memory"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/postgres"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/redis"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/sns"
	"github.com/archon-research/emissions-api/internal/adapters/outbound/telemetry"
	"github.com/archon-research/emissions-api/internal/pkg/env"
	"github.com/archon-research/emissions-api/internal/ports/outbound"
	"github.com/archon-research/emissions-api/internal/services/emissions_factors"
	"github.com/archon-research/emissions-api/internal/services/health"
	"github.com/archon-research/emissions-api/internal/services/product_tokens"
	"github.com/archon-research/emissions-api/internal/services/shared"
)

// Build information, set via ldflags or read from the embedded VCS stamp.
var (
	GitCommit string
	BuildTime string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "" {
					GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	}
}

type config struct {
	DatabaseURL   string
	MigrationsDir string
	HTTPAddr      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	EventSink            string
	ProductTokenTopicARN string
	AWSRegion            string
	SNSEndpoint          string

	OTLPEndpoint string
	StdoutTraces bool
	Environment  string

	RateLimitRPS   float64
	RateLimitBurst int

	ShutdownTimeout time.Duration
	DrainDelay      time.Duration
}

// Event sink kinds selectable with EVENT_SINK.
const (
	eventSinkSNS    = "sns"
	eventSinkMemory = "memory"
	eventSinkNone   = "none"
)

// loadConfig reads the process configuration from the environment.
func loadConfig() (config, error) {
	cfg := config{
		DatabaseURL:          env.Get("DATABASE_URL", ""),
		MigrationsDir:        env.Get("MIGRATIONS_DIR", "./db/migrations"),
		HTTPAddr:             env.Get("HTTP_ADDR", ":8080"),
		RedisAddr:            env.Get("REDIS_ADDR", ""),
		RedisPassword:        env.Get("REDIS_PASSWORD", ""),
		EventSink:            env.Get("EVENT_SINK", ""),
		ProductTokenTopicARN: env.Get("SNS_PRODUCT_TOKEN_TOPIC_ARN", ""),
		AWSRegion:            env.Get("AWS_REGION", "us-east-1"),
		SNSEndpoint:          env.Get("AWS_SNS_ENDPOINT", ""),
		OTLPEndpoint:         env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Environment:          env.Get("ENVIRONMENT", "development"),
	}
	if cfg.DatabaseURL == "" {
		return config{}, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.RedisDB, err = env.GetInt("REDIS_DB", 0); err != nil {
		return config{}, err
	}
	if cfg.CacheTTL, err = env.GetDuration("CACHE_TTL", time.Hour); err != nil {
		return config{}, err
	}
	if cfg.RateLimitRPS, err = env.GetFloat("RATE_LIMIT_RPS", 100); err != nil {
		return config{}, err
	}
	if cfg.RateLimitBurst, err = env.GetInt("RATE_LIMIT_BURST", 200); err != nil {
		return config{}, err
	}
	if cfg.ShutdownTimeout, err = env.GetDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return config{}, err
	}
	if cfg.DrainDelay, err = env.GetDuration("SHUTDOWN_DRAIN_DELAY", 5*time.Second); err != nil {
		return config{}, err
	}
	if cfg.StdoutTraces, err = env.GetBool("OTEL_STDOUT_TRACES", false); err != nil {
		return config{}, err
	}

	switch cfg.EventSink {
	case "":
		cfg.EventSink = eventSinkNone
		if cfg.ProductTokenTopicARN != "" {
			cfg.EventSink = eventSinkSNS
		}
	case eventSinkSNS:
		if cfg.ProductTokenTopicARN == "" {
			return config{}, fmt.Errorf("EVENT_SINK=sns requires SNS_PRODUCT_TOKEN_TOPIC_ARN")
		}
	case eventSinkMemory, eventSinkNone:
	default:
		return config{}, fmt.Errorf("EVENT_SINK: unknown sink %q (want sns, memory or none)", cfg.EventSink)
	}
	return cfg, nil
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information and exit")
	migrate := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	if *showVersion {
		fmt.Printf("emissions-api\n")
		fmt.Printf("  Commit:     %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *migrate, logger); err != nil {
		logger.Error("emissions-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config, migrate bool, logger *slog.Logger) error {
	logger.Info("starting emissions-api", "commit", GitCommit, "environment", cfg.Environment)

	telemetryCfg := telemetry.ConfigDefaults()
	telemetryCfg.ServiceVersion = versionOrDev()
	telemetryCfg.Environment = cfg.Environment
	telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	telemetryCfg.StdoutTraces = cfg.StdoutTraces
	shutdownTelemetry, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	pool, err := postgres.OpenPool(ctx, postgres.DefaultDBConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	if migrate {
		if err := migrator.New(pool, cfg.MigrationsDir).WithLogger(logger).ApplyAll(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations up to date")
	}

	factorRepo, err := postgres.NewEmissionsFactorRepository(pool, logger)
	if err != nil {
		return err
	}
	tokenRepo, err := postgres.NewProductTokenRepository(pool, logger)
	if err != nil {
		return err
	}
	poolHealth, err := postgres.NewPoolHealth(pool)
	if err != nil {
		return err
	}

	optional := map[string]outbound.HealthChecker{}
	var cache outbound.ReferenceCache
	if cfg.RedisAddr != "" {
		redisCache, err := redis.NewReferenceCache(redis.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			TTL:       cfg.CacheTTL,
			KeyPrefix: redis.ConfigDefaults().KeyPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("create reference cache: %w", err)
		}
		defer func() {
			if err := redisCache.Close(); err != nil {
				logger.Warn("failed to close Redis connection", "error", err)
			}
		}()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable, reads fall through to the store", "addr", cfg.RedisAddr, "error", err)
		}
		cache = redisCache
		optional["redis"] = redisCache
	}

	events, err := newEventSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if events != nil {
		defer func() {
			if err := events.Close(); err != nil {
				logger.Warn("failed to close event sink", "error", err)
			}
		}()
	}

	metrics, err := shared.NewAppTelemetry()
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	factorService, err := emissions_factors.NewService(emissions_factors.ServiceConfig{
		Cache:    cache,
		CacheTTL: cfg.CacheTTL,
		Metrics:  metrics,
		Logger:   logger,
	}, factorRepo)
	if err != nil {
		return err
	}
	tokenService, err := product_tokens.NewService(product_tokens.ServiceConfig{
		Events:  events,
		Metrics: metrics,
		Logger:  logger,
	}, tokenRepo)
	if err != nil {
		return err
	}
	healthService, err := health.NewService(health.ServiceConfig{Optional: optional, Logger: logger}, poolHealth)
	if err != nil {
		return err
	}

	rpc, err := httpapi.NewHandler(httpapi.HandlerConfig{Logger: logger}, factorService, tokenService)
	if err != nil {
		return err
	}
	var shuttingDown atomic.Bool
	router := httpapi.NewRouter(httpapi.RouterConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	}, rpc, httpapi.NewHealthHandler(healthService, &shuttingDown, logger))

	serverCfg := httpapi.ServerConfigDefaults()
	serverCfg.Addr = cfg.HTTPAddr
	serverCfg.DrainDelay = cfg.DrainDelay
	serverCfg.ShuttingDown = &shuttingDown
	serverCfg.Logger = logger
	server := httpapi.NewServer(serverCfg, router)
	serverErr := server.Start()

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return errors.New("http server stopped unexpectedly")
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	if err := server.Shutdown(cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newEventSink builds the sink named by cfg.EventSink. It returns nil when
// insert events are disabled.
func newEventSink(ctx context.Context, cfg config, logger *slog.Logger) (outbound.EventSink, error) {
	switch cfg.EventSink {
	case eventSinkSNS:
	case eventSinkMemory:
		logger.Info("insert events kept in memory")
		return memory.NewEventSink(), nil
	default:
		logger.Info("insert events disabled", "eventSink", cfg.EventSink)
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := awssns.NewFromConfig(awsCfg, func(o *awssns.Options) {
		if cfg.SNSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SNSEndpoint)
		}
	})

	sinkCfg := sns.ConfigDefaults()
	sinkCfg.TopicARN = cfg.ProductTokenTopicARN
	sinkCfg.Logger = logger
	sink, err := sns.NewEventSink(client, sinkCfg)
	if err != nil {
		return nil, fmt.Errorf("create SNS event sink: %w", err)
	}
	return sink, nil
}

func versionOrDev() string {
	if GitCommit == "" {
		return "dev"
	}
	return GitCommit
}
