package scheduler

import (
	"maps"
	"sync"
	"time"
)

// ComponentStatus is the last known state of one job or dependency.
type ComponentStatus struct {
	Healthy     bool      `json:"healthy"`
	Message     string    `json:"message"`
	LastCheck   time.Time `json:"last_check"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	Failures    int       `json:"consecutive_failures"`
}

// Health tracks component status for the health endpoint.
type Health struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
	now        func() time.Time
}

// NewHealth creates an empty tracker. An empty tracker is healthy.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]ComponentStatus),
		now:        time.Now,
	}
}

// SetHealthy records a success for component.
func (h *Health) SetHealthy(component, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.components[component] = ComponentStatus{
		Healthy:     true,
		Message:     message,
		LastCheck:   now,
		LastSuccess: now,
	}
}

// SetUnhealthy records a failure for component, keeping its last success.
func (h *Health) SetUnhealthy(component string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.components[component]
	h.components[component] = ComponentStatus{
		Healthy:     false,
		Message:     err.Error(),
		LastCheck:   h.now(),
		LastSuccess: prev.LastSuccess,
		Failures:    prev.Failures + 1,
	}
}

// Status returns the status of component and whether it has been reported.
func (h *Health) Status(component string) (ComponentStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status, ok := h.components[component]
	return status, ok
}

// Snapshot returns a copy of every component status.
func (h *Health) Snapshot() map[string]ComponentStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return maps.Clone(h.components)
}

// IsOverallHealthy returns true if all components are healthy.
func (h *Health) IsOverallHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, status := range h.components {
		if !status.Healthy {
			return false
		}
	}
	return true
}
