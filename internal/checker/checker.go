package checker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CheckResult is the outcome of one checker against one target.
type CheckResult struct {
	Target     string    `json:"target"`
	Check      string    `json:"check"`
	CheckedAt  time.Time `json:"checked_at"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Checker is the interface that all check implementations must satisfy
type Checker interface {
	// Check performs the actual check logic for a single target
	Check(ctx context.Context, target string) CheckResult

	// Name returns the name of this checker (e.g., "scan ports", "scan tls")
	Name() string
}

// ProgressFunc is called once per finished target.
type ProgressFunc func(target string, result CheckResult, duration float64)

// Runner orchestrates the execution of checks with concurrency and rate limiting
type Runner struct {
	Concurrency int           // Maximum number of concurrent checks
	RateLimit   int           // Targets started per second (global)
	Timeout     time.Duration // Timeout for each check
}

// RunChecks executes checker against every target using a worker pool.
// Results are returned in target order.
func (r *Runner) RunChecks(ctx context.Context, targets []string, checker Checker, progress ProgressFunc) []CheckResult {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	burst := 1
	if r.RateLimit > 0 {
		limit = rate.Limit(r.RateLimit)
		burst = r.RateLimit
	}
	limiter := rate.NewLimiter(limit, burst)

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]CheckResult, len(targets))

	for i, target := range targets {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			if err := limiter.Wait(ctx); err != nil {
				results[idx] = failedResult(t, checker.Name(), start, err)
				return
			}

			checkCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			result := checker.Check(checkCtx, t)
			duration := time.Since(start).Seconds()
			result.DurationMS = duration * 1000

			if progress != nil {
				progress(t, result, duration)
			}
			results[idx] = result
		}(i, target)
	}

	wg.Wait()
	return results
}

func failedResult(target, name string, start time.Time, err error) CheckResult {
	return CheckResult{
		Target:    target,
		Check:     name,
		CheckedAt: start.UTC(),
		Status:    "error",
		Error:     err.Error(),
	}
}

func okResult(target, name string, start time.Time, payload any) CheckResult {
	return CheckResult{
		Target:    target,
		Check:     name,
		CheckedAt: start.UTC(),
		Status:    "ok",
		Result:    payload,
	}
}

// PortScanCheck resolves a target and scans its ports.
type PortScanCheck struct {
	Resolver *TargetResolver
	Scanner  *PortScanner
	Ports    []int
	Timeout  time.Duration
}

func (c *PortScanCheck) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	t, err := c.Resolver.Resolve(ctx, target)
	if err != nil {
		return failedResult(target, c.Name(), start, err)
	}
	return okResult(target, c.Name(), start, c.Scanner.Scan(ctx, t, c.Ports, c.Timeout))
}

func (c *PortScanCheck) Name() string { return "scan ports" }

// TLSCheck profiles the TLS endpoint of a host.
type TLSCheck struct {
	Resolver *TargetResolver
	Analyzer *TLSAnalyzer
	Port     int
}

func (c *TLSCheck) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	t, err := c.Resolver.Resolve(ctx, HostFromURL(target))
	if err != nil {
		return failedResult(target, c.Name(), start, err)
	}
	return okResult(target, c.Name(), start, c.Analyzer.Analyze(ctx, t, c.Port, ServerHints{}))
}

func (c *TLSCheck) Name() string { return "scan tls" }

// WebsiteCheck runs a full website scan.
type WebsiteCheck struct {
	Scanner *WebsiteScanner
}

func (c *WebsiteCheck) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	report, err := c.Scanner.Scan(ctx, target)
	if err != nil {
		return failedResult(target, c.Name(), start, fmt.Errorf("website scan: %w", err))
	}
	return okResult(target, c.Name(), start, report)
}

func (c *WebsiteCheck) Name() string { return "scan website" }
