package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/checker"
)

const progressRefresh = 300 * time.Millisecond

// batchTally is a point-in-time view of a running batch.
type batchTally struct {
	done, ok, failed, open int
	elapsed                float64
	// ports and portsTotal track per-port verdicts when a port scan reports them.
	ports, portsTotal int
}

func (t batchTally) line(label string, total int) string {
	avg := 0.0
	if t.done > 0 {
		avg = t.elapsed / float64(t.done)
	}
	pct := float64(t.done) / float64(total) * 100
	line := fmt.Sprintf("[%s] Progress: %d/%d (%.1f%%) OK:%d Fail:%d Open:%d Avg:%.2fs",
		label, t.done, total, pct, t.ok, t.failed, t.open, avg)
	if t.portsTotal > 0 {
		line += fmt.Sprintf(" Ports:%d/%d", t.ports, t.portsTotal)
	}
	return line
}

// progressPrinter redraws a one-line batch summary on stderr while the
// runner works. All writes happen under mu.
type progressPrinter struct {
	out   io.Writer
	label string
	total int

	mu    sync.Mutex
	tally batchTally

	kick     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(total int, label string) *progressPrinter {
	return &progressPrinter{
		out:   os.Stderr,
		label: label,
		total: max(total, 1),
		kick:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go func() {
		ticker := time.NewTicker(progressRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-p.quit:
				return
			case <-p.kick:
			case <-ticker.C:
			}
			p.print()
		}
	}()
}

// Observe is a checker.ProgressFunc.
func (p *progressPrinter) Observe(_ string, result checker.CheckResult, seconds float64) {
	p.mu.Lock()
	p.tally.done++
	if result.Status == "ok" {
		p.tally.ok++
	} else {
		p.tally.failed++
	}
	// per-port tracking already counted the open ports
	if report, ok := result.Result.(*checker.PortScanReport); ok && report != nil && p.tally.portsTotal == 0 {
		p.tally.open += len(report.OpenPorts())
	}
	p.tally.elapsed += seconds
	p.total = max(p.total, p.tally.done)
	p.mu.Unlock()
	p.nudge()
}

// TrackPorts switches the printer to per-port progress for a batch that
// will report total port verdicts through ObservePort.
func (p *progressPrinter) TrackPorts(total int) {
	p.mu.Lock()
	p.tally.portsTotal = max(total, 1)
	p.mu.Unlock()
}

// ObservePort is a checker.PortScanner OnResult hook. Workers call it
// concurrently.
func (p *progressPrinter) ObservePort(res checker.PortProbeResult) {
	p.mu.Lock()
	p.tally.ports++
	if res.Status == checker.PortOpen {
		p.tally.open++
	}
	p.tally.portsTotal = max(p.tally.portsTotal, p.tally.ports)
	p.mu.Unlock()
	p.nudge()
}

func (p *progressPrinter) nudge() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop halts redraws and leaves the final line on screen.
func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s\r%s\n", strings.Repeat(" ", 80), p.tally.line(p.label, p.total))
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\r"+p.tally.line(p.label, p.total))
}
