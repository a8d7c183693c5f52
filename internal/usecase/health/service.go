package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckEmpty marks a category built from zero records. It answers with no matches.
	CheckEmpty CheckResult = "empty"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Category is the index state of one category.
type Category struct {
	Result  CheckResult
	Size    int
	BuiltAt time.Time
}

// Report aggregates health check results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	Categories map[string]Category
}

// Service coordinates health checks.
type Service struct {
	indexes   IndexReporter
	cache     Pinger
	catalog   Pinger
	embedding EmbeddingChecker
}

// New creates a Service. cache, catalog and embedding can be nil.
func New(indexes IndexReporter, cache, catalog Pinger, embedding EmbeddingChecker) *Service {
	return &Service{indexes: indexes, cache: cache, catalog: catalog, embedding: embedding}
}

// Check runs health checks against all components.
// The service is unhealthy when no category index is built and degraded on any other failure.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.cache != nil {
		checks["cache"] = result(s.cache.Ping(ctx))
	}
	if s.catalog != nil {
		checks["catalog"] = result(s.catalog.Ping(ctx))
	}
	if s.embedding != nil {
		checks["embedding"] = result(s.embedding.HealthCheck(ctx))
	}

	categories := make(map[string]Category)
	ready := 0
	for _, st := range s.indexes.Status() {
		c := Category{Result: CheckError, Size: st.Size, BuiltAt: st.BuiltAt}
		switch {
		case st.Ready && st.Empty:
			c.Result = CheckEmpty
			ready++
		case st.Ready:
			c.Result = CheckOK
			ready++
		}
		categories[st.Category] = c
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if ready < len(categories) {
		status = Degraded
	}
	if ready == 0 {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Categories: categories}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
