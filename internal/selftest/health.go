// Package selftest reports whether the Navigator's upstream dependencies
// are usable.
package selftest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/provider"
)

// Component states.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// slowThreshold marks a reachable but slow dependency as degraded.
const slowThreshold = 500 * time.Millisecond

// ComponentStatus represents health of a single component
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency_ms,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status     string                     `json:"status"` // healthy, degraded, unhealthy
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) ComponentStatus

// Checker runs named checks concurrently.
type Checker struct {
	started time.Time
	mu      sync.Mutex
	names   []string
	checks  map[string]CheckFunc
}

func NewChecker() *Checker {
	return &Checker{started: time.Now(), checks: map[string]CheckFunc{}}
}

// Add registers a check. A later check with the same name replaces it.
func (c *Checker) Add(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.checks[name]; !ok {
		c.names = append(c.names, name)
	}
	c.checks[name] = check
}

// Names returns the registered checks in registration order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// Check runs every registered check.
func (c *Checker) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:     "healthy",
		Uptime:     formatUptime(time.Since(c.started)),
		Components: make(map[string]ComponentStatus),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	c.mu.Lock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			status.Components[name] = result
			if result.Status == StatusError {
				status.Status = "unhealthy"
			} else if result.Status == StatusDegraded && status.Status == "healthy" {
				status.Status = "degraded"
			}
		}(name, check)
	}
	wg.Wait()

	return status
}

// Pinger is satisfied by *media.Client.
type Pinger interface {
	Ping(ctx context.Context) (*media.ServerInfo, error)
}

// JellyfinCheck reaches the public system info endpoint.
func JellyfinCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		start := time.Now()
		info, err := p.Ping(ctx)
		latency := time.Since(start)
		if err != nil {
			return ComponentStatus{Status: StatusError, Latency: latency.Milliseconds(), Error: err.Error()}
		}

		status := StatusOK
		if latency > slowThreshold {
			status = StatusDegraded
		}
		return ComponentStatus{
			Status:  status,
			Latency: latency.Milliseconds(),
			Detail:  fmt.Sprintf("%s %s", info.ServerName, info.Version),
		}
	}
}

// ProviderCheck verifies the default provider can be built from server
// configuration. Requests may still bring their own key, so a missing
// credential only degrades.
func ProviderCheck(f *provider.Factory) CheckFunc {
	return func(ctx context.Context) ComponentStatus {
		pt := f.DefaultType()
		if _, err := f.Create(pt); err != nil {
			return ComponentStatus{Status: StatusDegraded, Detail: string(pt), Error: err.Error()}
		}
		return ComponentStatus{Status: StatusOK, Detail: fmt.Sprintf("%s/%s", pt, f.DefaultModel(pt))}
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// HealthHandler serves the checker as JSON. Unhealthy answers 503.
func HealthHandler(c *Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		status := c.Check(ctx)

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(status)
	}
}
