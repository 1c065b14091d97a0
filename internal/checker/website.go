package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/domain/risk"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scan status values.
const (
	ScanComplete = "complete"
	ScanLimited  = "limited"
)

const (
	reasonBlocked = "Target actively blocks automated scanning (WAF/CDN detected)"
	reasonTimeout = "Server did not respond in time (timeout) or rate-limited"
)

// WebsiteLimitations is attached to every website report.
var WebsiteLimitations = []string{
	"CDN-based sites may rotate headers by region",
	"Bot protection may alter response headers",
	"Some headers may vary by request method or User-Agent",
	"SSL check relies on public certificate databases",
}

// ReputationChecker looks a URL up in a reputation service.
type ReputationChecker interface {
	CheckURL(ctx context.Context, rawURL string) (intel.Reputation, error)
}

// UnreachableError means the host did not resolve or refused the connection.
type UnreachableError struct {
	OriginalURL string
	DNSError    string
	Err         error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", sharedErrors.ErrUnreachableHost, e.OriginalURL, e.DNSError)
}

func (e *UnreachableError) Unwrap() []error { return []error{sharedErrors.ErrUnreachableHost, e.Err} }

// ScanInfo describes the fetch itself.
type ScanInfo struct {
	OriginalURL   string   `json:"original_url"`
	FinalURL      string   `json:"final_url"`
	ProtocolUsed  string   `json:"protocol_used"`
	StatusCode    int      `json:"status_code"`
	RedirectChain []string `json:"redirect_chain"`
}

// HTTPSStatus summarises transport security of the final URL.
type HTTPSStatus struct {
	Secure   bool   `json:"secure"`
	Protocol string `json:"protocol"`
	Note     string `json:"note"`
}

// SSLInfo is the certificate seen by the verified fetch.
type SSLInfo struct {
	Valid           bool      `json:"valid"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	DaysRemaining   int       `json:"days_remaining"`
	IssuerName      string    `json:"issuer_name"`
	ProtocolVersion string    `json:"protocol_version"`
	WildcardCert    bool      `json:"wildcard_cert"`
	AltNames        []string  `json:"alt_names"`
}

// ScanContext carries signals about the scan environment.
type ScanContext struct {
	ActiveProtection bool `json:"active_protection"`
}

// WebsiteReport is the full website scan answer.
type WebsiteReport struct {
	OK              bool                   `json:"ok"`
	ScanStatus      string                 `json:"scan_status"`
	ScanLimitReason *string                `json:"scan_limit_reason"`
	ScanInfo        ScanInfo               `json:"scan_info"`
	HTTPSStatus     HTTPSStatus            `json:"https_status"`
	SSL             *SSLInfo               `json:"ssl"`
	TLS             *TLSProfile            `json:"tls"`
	Reputation      intel.Reputation       `json:"reputation"`
	Headers         []HeaderClassification `json:"headers"`
	Exposures       []HeaderExposure       `json:"exposures"`
	CORS            *CORSReport            `json:"cors"`
	RawHeaders      map[string]string      `json:"raw_headers"`
	Context         ScanContext            `json:"context"`
	RiskAssessment  risk.Assessment        `json:"risk_assessment"`
	Limitations     []string               `json:"limitations"`
}

// WebsiteScanner fetches a site once and classifies what came back.
type WebsiteScanner struct {
	Client     *http.Client
	TLS        *TLSAnalyzer
	Reputation ReputationChecker
	// Guard, when set, must accept the host before TLS analysis dials it.
	Guard     *TargetResolver
	UserAgent string
	Now       func() time.Time
	Logger    *zap.Logger
}

// NewWebsiteScanner wires a scanner. reputation may be nil.
func NewWebsiteScanner(client *http.Client, analyzer *TLSAnalyzer, reputation ReputationChecker, guard *TargetResolver, logger *zap.Logger) *WebsiteScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebsiteScanner{
		Client:     client,
		TLS:        analyzer,
		Reputation: reputation,
		Guard:      guard,
		UserAgent:  constants.UserAgent,
		Now:        time.Now,
		Logger:     logger,
	}
}

// Scan runs a website scan against input. Invalid input returns an error
// wrapping ErrInvalidURL; unreachable hosts return *UnreachableError; other
// transport failures wrap ErrFetchFailed. Protection signals never fail the
// scan, they produce a limited report instead.
func (s *WebsiteScanner) Scan(ctx context.Context, input string) (*WebsiteReport, error) {
	target, err := NormalizeWebsiteURL(input)
	if err != nil {
		return nil, err
	}
	logger := s.logger().With(zap.String("url", target.Normalized))
	logger.Info("website_scan_start", zap.String("original", target.Original))

	report := &WebsiteReport{
		OK:          true,
		ScanStatus:  ScanComplete,
		Reputation:  intel.UnknownReputation(),
		RawHeaders:  map[string]string{},
		Exposures:   []HeaderExposure{},
		Limitations: append([]string(nil), WebsiteLimitations...),
	}

	client := s.Client
	if client == nil {
		client = NewWebsiteClient(nil)
	}
	res := fetch(ctx, client, target.Normalized, s.userAgent())

	headers := http.Header{}
	switch res.outcome {
	case fetchOK:
		headers = res.resp.Header
		report.ScanInfo.StatusCode = res.resp.StatusCode
		if res.resp.StatusCode == http.StatusForbidden {
			report.limit(reasonBlocked)
			logger.Info("website_active_protection", zap.Int("status", res.resp.StatusCode))
		}
	case fetchTimeout:
		report.limit(reasonTimeout)
		logger.Info("website_timeout", zap.Error(res.err))
	case fetchProtected:
		report.limit(reasonBlocked)
		logger.Info("website_active_protection", zap.Error(res.err))
	case fetchUnreachable:
		logger.Info("website_unreachable", zap.String("dns_error", res.dnsError), zap.Error(res.err))
		return nil, &UnreachableError{OriginalURL: target.Original, DNSError: res.dnsError, Err: res.err}
	case fetchBlocked:
		return nil, res.err
	default:
		logger.Warn("website_fetch_failed", zap.Error(res.err))
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrFetchFailed, res.err)
	}

	finalURL := res.finalURL
	isHTTPS := strings.HasPrefix(strings.ToLower(finalURL), "https://")
	report.ScanInfo.OriginalURL = target.Original
	report.ScanInfo.FinalURL = finalURL
	report.ScanInfo.RedirectChain = res.redirectChain
	report.ScanInfo.ProtocolUsed = "http"
	report.HTTPSStatus = HTTPSStatus{Secure: false, Protocol: "HTTP", Note: "Not using HTTPS"}
	if isHTTPS {
		report.ScanInfo.ProtocolUsed = "https"
		report.HTTPSStatus = HTTPSStatus{Secure: true, Protocol: "HTTPS", Note: "Secure communication enabled"}
	}
	if res.resp != nil && res.resp.TLS != nil {
		report.SSL = s.describeSSL(res.resp.TLS)
	}

	for name, values := range headers {
		report.RawHeaders[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	report.Headers = ClassifyHeaders(headers, isHTTPS)
	if exposures := DetectHeaderExposures(headers); len(exposures) > 0 {
		report.Exposures = exposures
	}
	report.CORS = AnalyzeCORS(headers)

	hostname := hostnameOf(finalURL)
	g, gctx := errgroup.WithContext(ctx)
	if isHTTPS && hostname != "" && s.TLS != nil {
		g.Go(func() error {
			report.TLS = s.analyzeTLS(gctx, hostname, tlsPort(finalURL), headers.Get("Server"))
			return nil
		})
	}
	if s.Reputation != nil {
		g.Go(func() error {
			rep, err := s.Reputation.CheckURL(gctx, finalURL)
			if err != nil {
				logger.Warn("reputation_check_failed", zap.Error(err))
				return nil
			}
			report.Reputation = rep
			return nil
		})
	}
	_ = g.Wait()

	report.RiskAssessment = risk.Score(WebsiteRiskInput(report))
	logger.Info("website_scan_complete",
		zap.String("status", report.ScanStatus),
		zap.String("risk", report.RiskAssessment.OverallRisk))
	return report, nil
}

func (r *WebsiteReport) limit(reason string) {
	r.ScanStatus = ScanLimited
	r.ScanLimitReason = &reason
	r.Context.ActiveProtection = true
}

// WebsiteRiskInput converts a report into scorer input.
func WebsiteRiskInput(r *WebsiteReport) risk.Input {
	in := risk.Input{Reputation: r.Reputation.Matches}
	for _, h := range r.Headers {
		in.Headers = append(in.Headers, risk.HeaderObservation{Name: string(h.HeaderName), Status: string(h.Status)})
	}
	for _, e := range r.Exposures {
		in.Headers = append(in.Headers, risk.HeaderObservation{Name: e.HeaderName, Status: string(e.Status)})
	}
	if r.TLS != nil {
		for _, v := range r.TLS.Vulnerabilities {
			in.TLSVulnerabilities = append(in.TLSVulnerabilities, risk.TLSVulnerability{
				Name:     v.Name,
				Status:   string(v.Status),
				Severity: v.Severity,
			})
		}
	}
	return in
}

// analyzeTLS re-vets the final host and hands the analyzer the address the
// guard approved, so the handshakes cannot land on a rebound record.
func (s *WebsiteScanner) analyzeTLS(ctx context.Context, hostname string, port int, server string) *TLSProfile {
	target := &Target{RawInput: hostname, Address: hostname, OriginalHostname: hostname}
	if s.Guard != nil {
		vetted, err := s.Guard.Resolve(ctx, hostname)
		if err != nil {
			s.logger().Warn("tls_analysis_skipped", zap.String("host", hostname), zap.Error(err))
			return nil
		}
		target = vetted
	}
	return s.TLS.Analyze(ctx, target, port, ServerHints{ServerSoftware: server})
}

func (s *WebsiteScanner) describeSSL(state *tls.ConnectionState) *SSLInfo {
	if len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	info := &SSLInfo{
		// the fetch verifies the chain, so a completed handshake is a valid one
		Valid:           true,
		ValidFrom:       leaf.NotBefore.UTC(),
		ValidTo:         leaf.NotAfter.UTC(),
		DaysRemaining:   int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24)),
		ProtocolVersion: tls.VersionName(state.Version),
		AltNames:        append([]string{}, leaf.DNSNames...),
	}
	if len(leaf.Issuer.Organization) > 0 {
		info.IssuerName = leaf.Issuer.Organization[0]
	} else {
		info.IssuerName = leaf.Issuer.CommonName
	}
	for _, n := range leaf.DNSNames {
		if strings.HasPrefix(n, "*.") {
			info.WildcardCert = true
			break
		}
	}
	return info
}

func tlsPort(raw string) int {
	u, err := url.Parse(raw)
	if err != nil || u.Port() == "" {
		return 443
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		return 443
	}
	return p
}

// IsUnreachable reports whether err is an UnreachableError.
func IsUnreachable(err error) (*UnreachableError, bool) {
	var ue *UnreachableError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func (s *WebsiteScanner) userAgent() string {
	if s.UserAgent == "" {
		return constants.UserAgent
	}
	return s.UserAgent
}

func (s *WebsiteScanner) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
