package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a cache is down; queries still run against the store.
	Degraded Status = "degraded"
	// Unhealthy indicates the document store is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	ComponentStore   = "store"
	ComponentCache   = "cache"
	ComponentIDCache = "idcache"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store Pinger
	cache Pinger
	ids   Pinger
}

// New creates a Service. cache and ids can be nil.
func New(store, cache, ids Pinger) *Service {
	return &Service{store: store, cache: cache, ids: ids}
}

// Check pings every component concurrently.
func (s *Service) Check(ctx context.Context) Report {
	pingers := map[string]Pinger{ComponentStore: s.store}
	if s.cache != nil {
		pingers[ComponentCache] = s.cache
	}
	if s.ids != nil {
		pingers[ComponentIDCache] = s.ids
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(pingers))
	)
	for name, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := CheckOK
			if err := p.Ping(ctx); err != nil {
				result = CheckError
			}
			mu.Lock()
			checks[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == ComponentStore {
			status = Unhealthy
			break
		}
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
