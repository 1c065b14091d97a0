package checker

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"go.uber.org/zap"
)

// PortScanReport is the full answer for one network scan.
type PortScanReport struct {
	OK           bool              `json:"ok"`
	Target       string            `json:"target"`
	Address      string            `json:"address"`
	Family       AddressFamily     `json:"family"`
	ScannedPorts []int             `json:"scanned_ports"`
	TimeoutMS    int64             `json:"timeout_ms"`
	Retries      int               `json:"retries"`
	DurationMS   int64             `json:"duration_ms"`
	Results      []PortProbeResult `json:"results"`
}

// OpenPorts returns the ports reported open, in scan order.
func (r *PortScanReport) OpenPorts() []int {
	var open []int
	for _, res := range r.Results {
		if res.Status == PortOpen {
			open = append(open, int(res.Port))
		}
	}
	return open
}

// PortScanner fans probes out across ports and retries closed verdicts.
type PortScanner struct {
	Prober     *PortProber
	Retries    int
	Backoff    time.Duration
	MaxWorkers int // zero means one worker per port
	// OnResult, when set, is called once per port with its final verdict.
	OnResult func(PortProbeResult)
	Logger   *zap.Logger
}

// NewPortScanner wires a scanner with the default retry policy.
func NewPortScanner(prober *PortProber, logger *zap.Logger) *PortScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prober == nil {
		prober = NewPortProber(nil, logger)
	}
	return &PortScanner{
		Prober:  prober,
		Retries: constants.ProbeRetries,
		Backoff: constants.ProbeRetryBackoff,
		Logger:  logger,
	}
}

// ParsePortList parses a comma separated port list. Entries outside 1..65535
// and duplicates are dropped, first occurrence order is kept, and the result is
// capped at MaxCustomPorts. An empty or fully invalid list yields the defaults.
func ParsePortList(csv string) []int {
	seen := make(map[int]struct{})
	var ports []int
	for _, field := range strings.Split(csv, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > 65535 {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		ports = append(ports, n)
		if len(ports) == constants.MaxCustomPorts {
			break
		}
	}
	if len(ports) == 0 {
		return append([]int(nil), constants.DefaultPorts...)
	}
	return ports
}

// ClampTimeout parses a millisecond value and clamps it into the allowed
// probe window. Anything unparsable falls back to the default.
func ClampTimeout(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return constants.DefaultScanTimeout
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return constants.DefaultScanTimeout
	}
	return ClampTimeoutDuration(time.Duration(ms) * time.Millisecond)
}

// ClampTimeoutDuration bounds d to the allowed probe window.
func ClampTimeoutDuration(d time.Duration) time.Duration {
	if d < constants.MinScanTimeout {
		return constants.MinScanTimeout
	}
	if d > constants.MaxScanTimeout {
		return constants.MaxScanTimeout
	}
	return d
}

// Scan probes every port on target. The results slice always has exactly
// len(ports) entries, in the same order as ports.
func (s *PortScanner) Scan(ctx context.Context, target *Target, ports []int, timeout time.Duration) *PortScanReport {
	start := time.Now()
	results := make([]PortProbeResult, len(ports))

	workers := s.MaxWorkers
	if workers <= 0 || workers > len(ports) {
		workers = len(ports)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := s.probeWithRetry(ctx, ports[idx], target, timeout)
				results[idx] = res
				if s.OnResult != nil {
					s.OnResult(res)
				}
			}
		}()
	}
	for idx := range ports {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	report := &PortScanReport{
		OK:           true,
		Target:       target.RawInput,
		Address:      target.Address,
		Family:       target.Family,
		ScannedPorts: append([]int(nil), ports...),
		TimeoutMS:    timeout.Milliseconds(),
		Retries:      s.Retries,
		DurationMS:   time.Since(start).Milliseconds(),
		Results:      results,
	}
	s.logger().Info("port_scan_complete",
		zap.String("target", target.RawInput),
		zap.String("address", target.Address),
		zap.Int("ports", len(ports)),
		zap.Int("open", len(report.OpenPorts())),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return report
}

// probeWithRetry repeats a closed verdict up to Retries more times. The first
// open verdict wins.
func (s *PortScanner) probeWithRetry(ctx context.Context, port int, target *Target, timeout time.Duration) PortProbeResult {
	hostname := target.OriginalHostname
	var res PortProbeResult
	for attempt := 0; attempt <= s.Retries; attempt++ {
		res = s.Prober.Probe(ctx, port, target.Address, timeout, hostname)
		if res.Status == PortOpen {
			return res
		}
		if attempt == s.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return res
		case <-time.After(s.Backoff):
		}
	}
	return res
}

func (s *PortScanner) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
