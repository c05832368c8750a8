// Package health probes the indexer's backends before a run. Components
// register Check functions and the Checker runs them concurrently.
package health

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-indexer/pkg/resilience"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Check is a function that probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status
	Message string
	Latency string
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status
	Components map[string]ComponentHealth
}

// Down lists the failing components in name order.
func (r Report) Down() []string {
	var names []string
	for name, c := range r.Components {
		if c.Status == StatusDown {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Checker manages registered health checks and runs them concurrently.
type Checker struct {
	checks  map[string]Check
	mu      sync.RWMutex
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker creates an empty Checker whose checks each get timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  logger.WithComponent("health"),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// PingCheck turns a ping function into a Check.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Run executes all registered checks concurrently. The overall status is
// down if any component is down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			start := time.Now()
			out := make(chan ComponentHealth, 1)
			err := resilience.WithTimeout(gctx, c.timeout, name, func(ctx context.Context) error {
				out <- check(ctx)
				return nil
			})
			var result ComponentHealth
			if err != nil {
				result = ComponentHealth{Status: StatusDown, Message: err.Error()}
			} else {
				result = <-out
			}
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			report.Components[name] = result
			if result.Status == StatusDown {
				report.Status = StatusDown
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// Preflight runs every check and fails with ErrConnect naming the
// components that are down.
func (c *Checker) Preflight(ctx context.Context) error {
	report := c.Run(ctx)
	for name, comp := range report.Components {
		c.logger.Debug("preflight check", "target", name, "status", comp.Status, "latency", comp.Latency)
	}
	if report.Status == StatusUp {
		return nil
	}
	down := report.Down()
	msgs := make([]string, 0, len(down))
	for _, name := range down {
		msgs = append(msgs, name+": "+report.Components[name].Message)
	}
	return apperrors.Newf(apperrors.ErrConnect, "preflight failed: %s", strings.Join(msgs, "; "))
}
