package cmd

import (
	"context"
	"sync"

	"github.com/khanhnv2901/seca-recon/internal/application"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type appContextKey struct{}

// AppContext carries per-invocation state built in PersistentPreRunE.
type AppContext struct {
	Logger *zap.SugaredLogger
	Config *CLIConfig

	once     sync.Once
	services *application.Container
	err      error
}

var globalAppContext *AppContext

// Services builds the service container on first use. Commands that never
// scan (version, help) never pay for it.
func (a *AppContext) Services() (*application.Container, error) {
	a.once.Do(func() {
		cfg := a.Config
		if cfg == nil {
			cfg = newCLIConfig()
		}
		a.services, a.err = application.NewContainer(cfg.containerConfig(), a.zapLogger())
		if a.err == nil {
			a.services.Ports.Retries = cfg.Scan.Retries
		}
	})
	return a.services, a.err
}

func (a *AppContext) zapLogger() *zap.Logger {
	if a == nil || a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger.Desugar()
}

// Close releases the container and flushes the logger.
func (a *AppContext) Close() {
	if a == nil {
		return
	}
	if a.services != nil {
		if err := a.services.Close(); err != nil && a.Logger != nil {
			a.Logger.Warnw("failed to close services", "error", err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	if globalAppContext != nil {
		return globalAppContext
	}
	return &AppContext{Logger: zap.NewNop().Sugar(), Config: newCLIConfig()}
}
