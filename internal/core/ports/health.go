package ports

import "context"

// HealthChecker is one storage backend reported on GET /health.
// Ping must honour ctx and return nil when the backend can serve requests.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}
