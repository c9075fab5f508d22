// Package health aggregates component probes into a single liveness report.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results. CircuitOpen is informational and
// does not degrade the status: an open breaker means the backend is
// recovering, not that the gateway is down.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	CircuitOpen bool
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	embedding EmbeddingChecker
	breaker   BreakerState
}

// New creates a Service. embedding and breaker can be nil.
func New(store StorePinger, embedding EmbeddingChecker, breaker BreakerState) *Service {
	return &Service{store: store, embedding: embedding, breaker: breaker}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["redis"] = CheckError
	} else {
		checks["redis"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	report := Report{Status: status, Checks: checks}
	if s.breaker != nil {
		report.CircuitOpen = !s.breaker.Allowed()
	}
	return report
}
