package outbound

import (
	"context"
	"time"
)

// ReferenceCache stores serialized results of reference-table reads
// (hierarchy levels, grid metadata). A miss returns found=false and no error.
type ReferenceCache interface {
	// Get returns the cached payload for key.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set stores payload under key for ttl; ttl <= 0 uses the cache default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}
