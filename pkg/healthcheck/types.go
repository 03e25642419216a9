package healthcheck

import "context"

type HealthChecker interface {
	IsHealthy(ctx context.Context) HealthResult
}

// CheckerFunc adapts a plain function to HealthChecker.
type CheckerFunc func(ctx context.Context) HealthResult

func (c CheckerFunc) IsHealthy(ctx context.Context) HealthResult {
	return c(ctx)
}

type HealthStatus int

const (
	Unhealthy HealthStatus = iota
	Degraded
	Healthy
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	}
	return "unhealthy"
}

type HealthResult struct {
	Status      HealthStatus
	Description string
}

var HealthyResult = HealthResult{Status: Healthy}

// Worst folds results into one, keeping the lowest status. An empty input is
// healthy.
func Worst(results ...HealthResult) HealthResult {
	worst := HealthyResult
	for _, r := range results {
		if r.Status < worst.Status {
			worst = r
		}
	}
	return worst
}
