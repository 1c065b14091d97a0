package cmd

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zaptest"
)

func TestStoreAndGetAppContext(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "root"}
	appCtx := &AppContext{Logger: zaptest.NewLogger(t).Sugar(), Config: newCLIConfig()}

	storeAppContext(cmd, appCtx)

	got := getAppContext(cmd)
	if got != appCtx {
		t.Fatalf("expected stored app context to be returned")
	}

	other := &cobra.Command{Use: "other"}
	if getAppContext(other) != appCtx {
		t.Fatalf("expected global app context as fallback")
	}
}

func TestGetAppContextDefault(t *testing.T) {
	original := globalAppContext
	globalAppContext = nil
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "bare"}
	cmd.SetContext(context.Background())
	appCtx := getAppContext(cmd)
	if appCtx == nil || appCtx.Logger == nil || appCtx.Config == nil {
		t.Fatalf("expected a usable default app context, got %+v", appCtx)
	}
}

func TestAppContextServicesIsLazyAndShared(t *testing.T) {
	cfg := newCLIConfig()
	cfg.Scan.Retries = 0
	cfg.Scan.Workers = 3
	appCtx := &AppContext{Logger: zaptest.NewLogger(t).Sugar(), Config: cfg}
	defer appCtx.Close()

	first, err := appCtx.Services()
	if err != nil {
		t.Fatalf("Services() error = %v", err)
	}
	second, _ := appCtx.Services()
	if first != second {
		t.Fatal("expected the container to be built once")
	}
	if first.Ports.Retries != 0 || first.Ports.MaxWorkers != 3 {
		t.Fatalf("expected scan config applied, got retries=%d workers=%d", first.Ports.Retries, first.Ports.MaxWorkers)
	}
}

func TestAppContextServicesError(t *testing.T) {
	cfg := newCLIConfig()
	cfg.Cache.Backend = "memcached"
	appCtx := &AppContext{Config: cfg}

	if _, err := appCtx.Services(); err == nil {
		t.Fatal("expected container error for unknown cache backend")
	}
	appCtx.Close()
}
