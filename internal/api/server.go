package api

import (
	"context"
	"net/http"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/api/middleware"
	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"go.uber.org/zap"
)

// Assessor runs the scans behind the scan endpoints.
type Assessor interface {
	NetworkScan(ctx context.Context, req assessment.NetworkRequest) (*checker.PortScanReport, error)
	VulnLite(ctx context.Context, req assessment.VulnRequest) (*assessment.VulnReport, error)
	Website(ctx context.Context, rawURL string) (*checker.WebsiteReport, error)
}

// CVESearcher answers the standalone CVE search endpoint.
type CVESearcher interface {
	Search(ctx context.Context, query, version string, limit int) (intel.CVEResult, error)
}

type HealthService interface {
	Check(ctx context.Context) error
	Ready(ctx context.Context) error
}

type JobService interface {
	StartJob(ctx context.Context, req JobRequest) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	Subscribe() (chan Job, func())
}

type Config struct {
	Assessment Assessor
	CVEs       CVESearcher
	Health     HealthService
	Jobs       JobService
	Logger     *zap.Logger
	// ScanTimeout bounds one synchronous scan request (0 = request context only).
	ScanTimeout time.Duration
	CORSOrigins []string // empty = any origin
	RateLimit   int      // requests/second per client, 0 = off
	RateBurst   int
}

const maxBodyBytes = 1 << 20

// Server is the REST front end. It is an http.Handler.
type Server struct {
	cfg     Config
	log     *zap.Logger
	mux     *http.ServeMux
	limiter *middleware.RateLimiter
	handler http.Handler
}

func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		log:     log,
		mux:     http.NewServeMux(),
		limiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}
	s.routes()

	s.handler = middleware.Chain(s.mux,
		middleware.RequestID,
		middleware.AccessLog(s.requestLogger),
		s.limiter.Limit(s.rejectRateLimited),
		middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", middleware.HeaderRequestID},
			MaxAge:         time.Hour,
		}),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops background housekeeping.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes registers every endpoint under /api/v1 and the /api alias. The scan
// and vuln/lite endpoints are also served at the root.
func (s *Server) routes() {
	endpoints := []struct {
		method, path string
		h            http.HandlerFunc
	}{
		{http.MethodGet, "/health", s.handleHealth},
		{http.MethodGet, "/ready", s.handleReady},
		{http.MethodGet, "/network/scan", s.handleNetworkScan},
		{http.MethodPost, "/vuln/lite", s.handleVulnLite},
		{http.MethodPost, "/website/scan", s.handleWebsiteScan},
		{http.MethodGet, "/cve/search", s.handleCVESearch},
		{http.MethodGet, "/jobs", s.handleListJobs},
		{http.MethodPost, "/jobs", s.handleStartJob},
		{http.MethodGet, "/jobs/{id}", s.handleGetJob},
		{http.MethodGet, "/jobs-stream", s.handleJobStream},
	}
	for _, e := range endpoints {
		for _, prefix := range []string{"/api/v1", "/api"} {
			s.mux.HandleFunc(e.method+" "+prefix+e.path, e.h)
		}
	}
	s.mux.HandleFunc("GET /scan", s.handleNetworkScan)
	s.mux.HandleFunc("POST /vuln/lite", s.handleVulnLite)
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.log.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) scanContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.ScanTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.cfg.ScanTimeout)
}
