package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/khanhnv2901/seca-recon/internal/api/middleware"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type unreachableBody struct {
	OK      bool               `json:"ok"`
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Context unreachableContext `json:"context"`
}

type unreachableContext struct {
	OriginalURL string `json:"original_url"`
	DNSError    string `json:"dns_error"`
}

// errorCodes maps domain errors to their wire code and HTTP status.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{sharedErrors.ErrTargetRequired, http.StatusBadRequest, "target_required"},
	{sharedErrors.ErrBlockedTarget, http.StatusBadRequest, "blocked_target"},
	{sharedErrors.ErrInvalidHost, http.StatusBadRequest, "invalid_host"},
	{sharedErrors.ErrInvalidURL, http.StatusBadRequest, "invalid_url"},
	{sharedErrors.ErrMissingInput, http.StatusBadRequest, sharedErrors.ErrMissingInput.Error()},
	{sharedErrors.ErrUnsupportedKind, http.StatusBadRequest, "unsupported_job_type"},
	{sharedErrors.ErrFetchFailed, http.StatusBadGateway, "fetch_failed"},
	{sharedErrors.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

// respondAssessmentError renders a scan failure. An unreachable host is an
// answer rather than a failure and goes out with status 200.
func (s *Server) respondAssessmentError(w http.ResponseWriter, r *http.Request, err error) {
	if ue, ok := checker.IsUnreachable(err); ok {
		writeJSON(w, http.StatusOK, unreachableBody{
			Error:   "UNREACHABLE_HOST",
			Message: sharedErrors.ErrUnreachableHost.Error(),
			Context: unreachableContext{OriginalURL: ue.OriginalURL, DNSError: ue.DNSError},
		})
		return
	}
	for _, m := range errorCodes {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.status >= 500 {
			s.requestLogger(r).Warn("scan_failed", zap.String("code", m.code), zap.Error(err))
		}
		s.respondError(w, r, m.status, m.code, err)
		return
	}
	s.respondError(w, r, http.StatusInternalServerError, "", err)
}

// respondError writes an errorBody. With a code, err becomes the details.
// Without one, err's text is the error, except on 5xx where it is logged and
// replaced by a generic message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	body := errorBody{Error: code}
	switch {
	case code != "":
		if err != nil && err.Error() != code {
			body.Details = err.Error()
		}
	case status >= 500:
		s.requestLogger(r).Error("internal_server_error", zap.Error(err), zap.Int("status", status))
		body.Error = "internal server error"
	case err != nil:
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", middleware.ClientIP(r)))
	s.respondError(w, r, http.StatusTooManyRequests, "rate_limited", errors.New("rate limit exceeded"))
}
