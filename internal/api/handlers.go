package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

const (
	defaultCVELimit = 10
	defaultJobLimit = 25
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.respondError(w, r, http.StatusInternalServerError, "", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ready(r.Context()); err != nil {
			s.respondError(w, r, http.StatusServiceUnavailable, "", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleNetworkScan serves GET /scan?target=&ports=&timeout=.
func (s *Server) handleNetworkScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, cancel := s.scanContext(r)
	defer cancel()

	report, err := s.cfg.Assessment.NetworkScan(ctx, assessment.NetworkRequest{
		Target:  q.Get("target"),
		Ports:   q.Get("ports"),
		Timeout: q.Get("timeout"),
	})
	if err != nil {
		s.respondAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleVulnLite serves POST /vuln/lite {url, software}.
func (s *Server) handleVulnLite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL      string `json:"url"`
		Software string `json:"software"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	ctx, cancel := s.scanContext(r)
	defer cancel()

	report, err := s.cfg.Assessment.VulnLite(ctx, assessment.VulnRequest{
		URL:      strings.TrimSpace(body.URL),
		Software: strings.TrimSpace(body.Software),
	})
	if err != nil {
		s.respondAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleWebsiteScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	target := strings.TrimSpace(body.URL)
	if target == "" {
		s.respondError(w, r, http.StatusBadRequest, "url_required", errors.New("URL required"))
		return
	}
	ctx, cancel := s.scanContext(r)
	defer cancel()

	report, err := s.cfg.Assessment.Website(ctx, target)
	if err != nil {
		s.respondAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleCVESearch serves GET /cve/search?q=&version=&limit=. Upstream
// failures still answer 200 with a skipped result carrying the reason.
func (s *Server) handleCVESearch(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CVEs == nil {
		s.respondAssessmentError(w, r, sharedErrors.ErrNotConfigured)
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		query = strings.TrimSpace(q.Get("query"))
	}
	limit := queryInt(q.Get("limit"), defaultCVELimit)

	result, err := s.cfg.CVEs.Search(r.Context(), query, strings.TrimSpace(q.Get("version")), limit)
	if errors.Is(err, sharedErrors.ErrEmptyQuery) {
		s.respondError(w, r, http.StatusBadRequest, "missing_query", err)
		return
	}
	if err != nil {
		s.requestLogger(r).Warn("cve_search_failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled(w, r) {
		return
	}
	jobs, err := s.cfg.Jobs.ListJobs(r.Context(), queryInt(r.URL.Query().Get("limit"), defaultJobLimit))
	if err != nil {
		s.respondError(w, r, http.StatusInternalServerError, "", err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled(w, r) {
		return
	}
	var req JobRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		s.respondAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled(w, r) {
		return
	}
	job, err := s.cfg.Jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil || job == nil {
		s.respondError(w, r, http.StatusNotFound, "", errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobStream pushes every job update as a server-sent "job" event until
// the client goes away.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if !s.jobsEnabled(w, r) {
		return
	}
	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.requestLogger(r).Error("streaming unsupported", zap.Error(err))
		return
	}

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case job, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "job", job); err != nil {
				s.requestLogger(r).Debug("job stream closed", zap.Error(err))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (s *Server) jobsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Jobs == nil {
		s.respondError(w, r, http.StatusNotFound, "", errors.New("job service not available"))
		return false
	}
	return true
}

func queryInt(raw string, fallback int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}
