package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/api"
	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// jobTimeout bounds one background job.
const jobTimeout = 90 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run SECA-RECON as a REST API service",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("api-rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("api-rate-burst")

		services, err := appCtx.Services()
		if err != nil {
			return err
		}
		logger := appCtx.zapLogger().Named("api")

		jobManager := api.NewJobManager()
		jobManager.SetMaxJobs(appCtx.Config.Server.MaxJobs)

		server := api.NewServer(api.Config{
			Assessment:  services.Assessment,
			CVEs:        services.NVD,
			Health:      &healthAPIService{cache: services.Cache},
			Jobs:        newJobAPIService(jobManager, services.Assessment, logger.Named("jobs")),
			Logger:      logger,
			ScanTimeout: appCtx.Config.Server.ScanTimeout,
			CORSOrigins: corsOrigins,
			RateLimit:   rateLimit,
			RateBurst:   rateBurst,
		})
		defer server.Close()

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// vuln/lite waits on the website fetch and NVD; the job stream is long lived
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		}

		// Channel to listen for errors from the server
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Fprintf(os.Stderr, "%s API server listening on %s\n", colorInfo("→"), addr)
			fmt.Fprintf(os.Stderr, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			logger.Info("shutdown requested", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(ctx); err != nil {
				// Force close if graceful shutdown fails
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Fprintf(os.Stderr, "%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", defaultServeAddr, "Address for the API server")
	serveCmd.Flags().Duration("shutdown-timeout", defaultShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().Int("api-rate-limit", defaultRateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().Int("api-rate-burst", defaultRateBurst, "Rate limit burst size")
}

type healthAPIService struct {
	cache cache.Store
}

func (s *healthAPIService) Check(ctx context.Context) error {
	return nil
}

// Ready reports whether the cache backend answers.
func (s *healthAPIService) Ready(ctx context.Context) error {
	if s.cache == nil {
		return fmt.Errorf("cache not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache unavailable: %w", err)
	}
	return nil
}

// jobAPIService runs assessments in the background and records them in the
// job manager.
type jobAPIService struct {
	manager *api.JobManager
	runner  api.Assessor
	logger  *zap.Logger
	timeout time.Duration
}

func newJobAPIService(manager *api.JobManager, runner api.Assessor, logger *zap.Logger) *jobAPIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &jobAPIService{manager: manager, runner: runner, logger: logger, timeout: jobTimeout}
}

func (s *jobAPIService) StartJob(ctx context.Context, req api.JobRequest) (*api.Job, error) {
	jobType := strings.ToLower(strings.TrimSpace(req.Type))
	if jobType == "" {
		jobType = api.JobTypeScan
	}

	var target string
	switch jobType {
	case api.JobTypeScan:
		target = strings.TrimSpace(req.Target)
		if target == "" {
			return nil, sharedErrors.ErrTargetRequired
		}
	case api.JobTypeWebsite:
		target = strings.TrimSpace(req.URL)
		if target == "" {
			return nil, sharedErrors.ErrInvalidURL
		}
	case api.JobTypeVulnLite:
		target = strings.TrimSpace(req.URL)
		if target == "" {
			target = strings.TrimSpace(req.Software)
		}
		if target == "" {
			return nil, sharedErrors.ErrMissingInput
		}
	default:
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnsupportedKind, req.Type)
	}

	job := s.manager.CreateJob(jobType, target)
	s.logger.Info("job_created", zap.String("job_id", job.ID), zap.String("type", jobType), zap.String("target", target))
	go s.execute(job, jobType, req)
	return job, nil
}

func (s *jobAPIService) execute(job *api.Job, jobType string, req api.JobRequest) {
	now := time.Now()
	s.manager.UpdateJob(job.ID, func(j *api.Job) {
		j.Status = api.JobRunning
		j.StartedAt = &now
	})
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.run(ctx, jobType, req)
	finished := time.Now()
	if err != nil {
		s.logger.Warn("job_failed", zap.String("job_id", job.ID), zap.Error(err))
		s.manager.UpdateJob(job.ID, func(j *api.Job) {
			j.Status = api.JobError
			j.Error = err.Error()
			j.FinishedAt = &finished
		})
		return
	}
	s.logger.Info("job_done", zap.String("job_id", job.ID), zap.Duration("duration", finished.Sub(now)))
	s.manager.UpdateJob(job.ID, func(j *api.Job) {
		j.Status = api.JobDone
		j.Result = result
		j.FinishedAt = &finished
	})
}

func (s *jobAPIService) run(ctx context.Context, jobType string, req api.JobRequest) (any, error) {
	switch jobType {
	case api.JobTypeScan:
		return s.runner.NetworkScan(ctx, assessment.NetworkRequest{Target: req.Target, Ports: req.Ports, Timeout: req.Timeout})
	case api.JobTypeWebsite:
		return s.runner.Website(ctx, req.URL)
	case api.JobTypeVulnLite:
		return s.runner.VulnLite(ctx, assessment.VulnRequest{URL: req.URL, Software: req.Software})
	}
	return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnsupportedKind, jobType)
}

func (s *jobAPIService) GetJob(ctx context.Context, id string) (*api.Job, error) {
	job := s.manager.GetJob(id)
	if job == nil {
		return nil, fmt.Errorf("job not found")
	}
	return job, nil
}

func (s *jobAPIService) ListJobs(ctx context.Context, limit int) ([]api.Job, error) {
	return s.manager.ListJobs(limit), nil
}

func (s *jobAPIService) Subscribe() (chan api.Job, func()) {
	return s.manager.Subscribe()
}
