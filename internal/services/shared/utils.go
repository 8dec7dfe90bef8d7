// Package shared provides shared utilities for application services.
package shared

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/archon-research/emissions-api/internal/ports/outbound"
)

// CacheKey generates the cache key for a reference read.
// Format: {kind}:{part}:{part}... with each part query-escaped so that
// separators inside values cannot collide with other keys.
func CacheKey(kind string, parts ...string) string {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, p := range parts {
		sb.WriteByte(':')
		sb.WriteString(url.QueryEscape(p))
	}
	return sb.String()
}

// FormatYear renders an optional year for cache keys.
func FormatYear(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

// Compile-time assertion that NopMetrics implements MetricsRecorder.
var _ outbound.MetricsRecorder = NopMetrics{}

// NopMetrics discards all measurements. Used when no recorder is configured.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(context.Context, string, string, time.Duration) {}
func (NopMetrics) RecordLookupFallback(context.Context, bool)                     {}
func (NopMetrics) RecordCacheResult(context.Context, bool)                        {}
