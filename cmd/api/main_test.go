package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/archon-research/emissions-api/internal/adapters/outbound/memory"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/emissions")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("SHUTDOWN_DRAIN_DELAY", "")
	t.Setenv("OTEL_STDOUT_TRACES", "")
	t.Setenv("EVENT_SINK", "")
	t.Setenv("SNS_PRODUCT_TOKEN_TOPIC_ARN", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.CacheTTL)
	}
	if cfg.RateLimitRPS != 100 || cfg.RateLimitBurst != 200 {
		t.Errorf("rate limit = %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want cache disabled by default", cfg.RedisAddr)
	}
	if cfg.DrainDelay != 5*time.Second {
		t.Errorf("DrainDelay = %v, want 5s", cfg.DrainDelay)
	}
	if cfg.StdoutTraces {
		t.Error("StdoutTraces should default to false")
	}
	if cfg.EventSink != eventSinkNone {
		t.Errorf("EventSink = %q, want %q without a topic", cfg.EventSink, eventSinkNone)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/emissions")
	t.Setenv("SHUTDOWN_DRAIN_DELAY", "250ms")
	t.Setenv("OTEL_STDOUT_TRACES", "true")
	t.Setenv("EVENT_SINK", "")
	t.Setenv("SNS_PRODUCT_TOKEN_TOPIC_ARN", "arn:aws:sns:us-east-1:123456789012:product-tokens")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.DrainDelay != 250*time.Millisecond {
		t.Errorf("DrainDelay = %v, want 250ms", cfg.DrainDelay)
	}
	if !cfg.StdoutTraces {
		t.Error("StdoutTraces = false, want true")
	}
	if cfg.EventSink != eventSinkSNS {
		t.Errorf("EventSink = %q, want %q when a topic is set", cfg.EventSink, eventSinkSNS)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"DATABASE_URL": ""}},
		{name: "bad cache ttl", env: map[string]string{"DATABASE_URL": "postgres://x", "CACHE_TTL": "forever"}},
		{name: "bad redis db", env: map[string]string{"DATABASE_URL": "postgres://x", "REDIS_DB": "zero"}},
		{name: "bad rate limit", env: map[string]string{"DATABASE_URL": "postgres://x", "RATE_LIMIT_RPS": "fast"}},
		{name: "bad drain delay", env: map[string]string{"DATABASE_URL": "postgres://x", "SHUTDOWN_DRAIN_DELAY": "a bit"}},
		{name: "bad stdout traces", env: map[string]string{"DATABASE_URL": "postgres://x", "OTEL_STDOUT_TRACES": "maybe"}},
		{name: "unknown event sink", env: map[string]string{"DATABASE_URL": "postgres://x", "EVENT_SINK": "kafka"}},
		{name: "sns sink without topic", env: map[string]string{"DATABASE_URL": "postgres://x", "EVENT_SINK": "sns", "SNS_PRODUCT_TOKEN_TOPIC_ARN": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewEventSink_DisabledWithoutTopic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink, err := newEventSink(context.Background(), config{}, logger)
	if err != nil {
		t.Fatalf("newEventSink() error = %v", err)
	}
	if sink != nil {
		t.Error("expected no sink without a topic")
	}
}

func TestNewEventSink_Memory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink, err := newEventSink(context.Background(), config{EventSink: eventSinkMemory}, logger)
	if err != nil {
		t.Fatalf("newEventSink() error = %v", err)
	}
	if _, ok := sink.(*memory.EventSink); !ok {
		t.Fatalf("sink = %T, want *memory.EventSink", sink)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
