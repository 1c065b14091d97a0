package cmd

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/checker"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressPrinterLifecycle(t *testing.T) {
	printer := newProgressPrinter(0, "scan ports")
	if printer.total != 1 {
		t.Fatalf("expected total to be clamped to 1, got %d", printer.total)
	}
	out := &syncBuffer{}
	printer.out = out

	report := &checker.PortScanReport{Results: []checker.PortProbeResult{
		{Port: 22, Status: checker.PortOpen},
		{Port: 80, Status: checker.PortOpen},
		{Port: 25, Status: checker.PortClosed},
	}}

	printer.Start()
	printer.Observe("a.example", checker.CheckResult{Status: "ok", Result: report}, 0.5)
	printer.Observe("b.example", checker.CheckResult{Status: "error", Error: "blocked"}, 1.0)
	time.Sleep(350 * time.Millisecond) // allow ticker to tick at least once
	printer.Stop()

	output := out.String()
	if !strings.Contains(output, "Progress: 2/2") {
		t.Fatalf("expected summary progress, got %q", output)
	}
	if !strings.Contains(output, "OK:1") || !strings.Contains(output, "Fail:1") {
		t.Fatalf("expected OK/Fail counts in output, got %q", output)
	}
	if !strings.Contains(output, "Open:2") {
		t.Fatalf("expected open port count in output, got %q", output)
	}
	if !strings.Contains(output, "Avg:0.75s") {
		t.Fatalf("expected average duration in output, got %q", output)
	}
}
