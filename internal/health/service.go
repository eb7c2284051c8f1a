// Package health tracks the readiness of the server's components and
// serves as the backing for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the reported state of one component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// ComponentHealth is the cached result of the most recent check
type ComponentHealth struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Service runs registered component checks on demand and caches the
// results between calls.
type Service struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  map[string]*ComponentHealth
	order  []string
}

// NewService creates an empty health service
func NewService() *Service {
	return &Service{
		checks: make(map[string]CheckFunc),
		cache:  make(map[string]*ComponentHealth),
	}
}

// Register adds a named component check. Registration order is preserved
// in reports.
func (s *Service) Register(name string, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checks[name]; !exists {
		s.order = append(s.order, name)
	}
	s.checks[name] = check
	s.cache[name] = &ComponentHealth{Name: name, Status: StatusUnknown}
}

// Run executes every registered check and updates the cache. It returns
// true when all components are healthy.
func (s *Service) Run(ctx context.Context) bool {
	s.mu.RLock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.RUnlock()

	allHealthy := true
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()

		err := check(ctx)

		s.mu.Lock()
		entry := s.cache[name]
		entry.LastChecked = time.Now().UTC()
		if err != nil {
			entry.Status = StatusUnhealthy
			entry.LastError = err.Error()
			allHealthy = false
		} else {
			entry.Status = StatusHealthy
			entry.LastError = ""
		}
		s.mu.Unlock()
	}
	return allHealthy
}

// Report returns the cached component states in registration order
func (s *Service) Report() []ComponentHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := make([]ComponentHealth, 0, len(s.order))
	for _, name := range s.order {
		report = append(report, *s.cache[name])
	}
	return report
}
