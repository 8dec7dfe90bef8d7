// Package outbound contains the secondary/outbound ports.
// These interfaces are implemented by infrastructure adapters.
package outbound

import "context"

// HealthChecker is implemented by stores that can report connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
