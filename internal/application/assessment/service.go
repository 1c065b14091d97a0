// Package assessment combines the website, network and intelligence checks
// into the network scan and vuln/lite answers served by the API and the CLI.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/domain/risk"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CVELimit is how many CVEs vuln/lite asks for.
const CVELimit = 8

// TargetResolver turns user input into a scannable target.
type TargetResolver interface {
	Resolve(ctx context.Context, input string) (*checker.Target, error)
}

// PortScanner probes a resolved target.
type PortScanner interface {
	Scan(ctx context.Context, target *checker.Target, ports []int, timeout time.Duration) *checker.PortScanReport
}

// WebsiteScanner fetches and classifies a site.
type WebsiteScanner interface {
	Scan(ctx context.Context, input string) (*checker.WebsiteReport, error)
}

// CVESearcher looks up known vulnerabilities for a product and version.
type CVESearcher interface {
	Search(ctx context.Context, query, version string, limit int) (intel.CVEResult, error)
}

// ThreatIntel reports threat pulses that reference a domain.
type ThreatIntel interface {
	LookupDomain(ctx context.Context, domain string) (intel.OTXResult, error)
}

// Service runs assessments. Website, CVEs and Threats may be nil; the
// corresponding sections are then skipped.
type Service struct {
	resolver TargetResolver
	ports    PortScanner
	website  WebsiteScanner
	cves     CVESearcher
	threats  ThreatIntel
	logger   *zap.Logger
}

// NewService creates a new assessment service
func NewService(resolver TargetResolver, ports PortScanner, website WebsiteScanner, cves CVESearcher, threats ThreatIntel, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: resolver,
		ports:    ports,
		website:  website,
		cves:     cves,
		threats:  threats,
		logger:   logger,
	}
}

// NetworkRequest is the input of a network scan. Ports and Timeout are the
// raw strings received from the caller.
type NetworkRequest struct {
	Target  string
	Ports   string
	Timeout string
}

// NetworkScan resolves the target through the SSRF guard and probes the
// requested ports. Guard rejections are returned unchanged.
func (s *Service) NetworkScan(ctx context.Context, req NetworkRequest) (*checker.PortScanReport, error) {
	target, err := s.resolver.Resolve(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	ports := checker.ParsePortList(req.Ports)
	timeout := checker.ClampTimeout(req.Timeout)
	return s.ports.Scan(ctx, target, ports, timeout), nil
}

// Website runs a standalone website scan.
func (s *Service) Website(ctx context.Context, rawURL string) (*checker.WebsiteReport, error) {
	if s.website == nil {
		return nil, fmt.Errorf("website scan: %w", sharedErrors.ErrNotConfigured)
	}
	return s.website.Scan(ctx, rawURL)
}

// VulnRequest is the input of a vuln/lite assessment.
type VulnRequest struct {
	URL      string
	Software string
}

// StepError records a sub-scan that failed without failing the assessment.
type StepError struct {
	Which   string `json:"which"`
	Message string `json:"error"`
}

// CVEReport is the outcome of the CVE decision gate.
type CVEReport struct {
	Status   intel.CVEStatus `json:"status"`
	Software *string         `json:"software"`
	Version  string          `json:"version,omitempty"`
	Query    string          `json:"query,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Count    int             `json:"count"`
	Items    []intel.CVEItem `json:"items"`
}

// NetworkExposure groups open ports by service type.
type NetworkExposure struct {
	AdminServices       []int `json:"admin_services"`
	MailServices        []int `json:"mail_services"`
	WebServices         []int `json:"web_services"`
	OtherServices       []int `json:"other_services"`
	TotalExposed        int   `json:"total_exposed"`
	TotalClosedFiltered int   `json:"total_closed_filtered"`
	TotalScanned        int   `json:"total_scanned"`
}

// VulnReport is the vuln/lite answer.
type VulnReport struct {
	OK              bool                    `json:"ok"`
	Host            string                  `json:"host,omitempty"`
	ScanStatus      string                  `json:"scan_status"`
	ScanLimitReason *string                 `json:"scan_limit_reason"`
	Site            *checker.WebsiteReport  `json:"site"`
	Network         *checker.PortScanReport `json:"network"`
	CVEs            CVEReport               `json:"cves"`
	Findings        []risk.Finding          `json:"findings"`
	NetworkExposure NetworkExposure         `json:"network_exposure"`
	RiskAssessment  risk.Assessment         `json:"risk_assessment"`
	Errors          []StepError             `json:"errors"`
}

// VulnLite runs the website scan, the network scan and the threat lookup in
// parallel, then gates a CVE lookup on the detected software.
//
// It returns ErrMissingInput when neither URL nor Software is given and a
// *checker.UnreachableError when the website host cannot be reached. Every
// other sub-scan failure is recorded in the report's Errors.
func (s *Service) VulnLite(ctx context.Context, req VulnRequest) (*VulnReport, error) {
	if req.URL == "" && req.Software == "" {
		return nil, sharedErrors.ErrMissingInput
	}
	host := ""
	if req.URL != "" {
		host = checker.HostFromURL(req.URL)
	}
	logger := s.logger.With(zap.String("url", req.URL), zap.String("host", host))
	logger.Info("vuln_lite_start", zap.String("software", req.Software))

	report := &VulnReport{
		OK:         true,
		Host:       host,
		ScanStatus: checker.ScanComplete,
		Findings:   []risk.Finding{},
		Errors:     []StepError{},
	}

	var (
		siteErr, networkErr, otxErr error
		otx                         intel.OTXResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.URL != "" && s.website != nil {
		g.Go(func() error {
			site, err := s.website.Scan(gctx, req.URL)
			var unreachable *checker.UnreachableError
			if errors.As(err, &unreachable) {
				return err
			}
			report.Site, siteErr = site, err
			return nil
		})
	}
	if host != "" {
		g.Go(func() error {
			report.Network, networkErr = s.NetworkScan(gctx, NetworkRequest{Target: host})
			return nil
		})
		if s.threats != nil {
			g.Go(func() error {
				otx, otxErr = s.threats.LookupDomain(gctx, host)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		logger.Info("vuln_lite_unreachable", zap.Error(err))
		return nil, err
	}

	s.recordError(report, "website", siteErr)
	s.recordError(report, "network", networkErr)
	s.recordError(report, "otx", otxErr)

	if report.Site != nil {
		report.ScanStatus = report.Site.ScanStatus
		report.ScanLimitReason = report.Site.ScanLimitReason
	}

	serverHeader := ""
	if report.Site != nil {
		serverHeader = report.Site.RawHeaders["server"]
	}
	detected := DetectSoftware(req.Software, serverHeader, host)
	report.CVEs = s.lookupCVEs(ctx, detected, report)

	if otxErr == nil && otx.PulseCount > 0 {
		report.Findings = append(report.Findings, threatFinding(otx))
	}
	if report.Site != nil && report.ScanStatus != checker.ScanLimited {
		report.Findings = append(report.Findings, headerFindings(report.Site)...)
	}
	if report.Network != nil {
		report.Findings = append(report.Findings, networkFindings(report.Network)...)
		report.NetworkExposure = summarizeExposure(report.Network)
	} else {
		report.NetworkExposure = summarizeExposure(nil)
	}
	if report.CVEs.Status == intel.CVEConfirmed {
		report.Findings = append(report.Findings, cveFindings(report.CVEs, detected)...)
	}
	risk.SortFindings(report.Findings)

	report.RiskAssessment = risk.Score(riskInput(report))
	logger.Info("vuln_lite_complete",
		zap.Int("findings", len(report.Findings)),
		zap.String("cve_status", string(report.CVEs.Status)),
		zap.String("risk", report.RiskAssessment.OverallRisk))
	return report, nil
}

// lookupCVEs applies the decision gate and, when it passes, queries the
// CVE source with the mapped product name.
func (s *Service) lookupCVEs(ctx context.Context, detected Software, report *VulnReport) CVEReport {
	out := CVEReport{Status: intel.CVESkipped, Items: []intel.CVEItem{}, Version: detected.Version}
	if detected.Name != "" {
		name := detected.Name
		out.Software = &name
	}

	switch {
	case detected.Name == "":
		out.Reason = "Software not detected"
	case IsManagedInfrastructure(detected.Name):
		out.Reason = "Managed infrastructure detected"
	case detected.Version == "":
		out.Reason = "Software version not exposed"
	case s.cves == nil:
		out.Reason = "CVE lookup not configured"
	}
	if out.Reason != "" {
		s.logger.Info("cve_lookup_skipped", zap.String("software", detected.Name), zap.String("reason", out.Reason))
		return out
	}

	out.Query = SearchName(detected.Name)
	res, err := s.cves.Search(ctx, out.Query, detected.Version, CVELimit)
	if err != nil {
		out.Status = intel.CVEError
		out.Reason = res.Reason
		if out.Reason == "" {
			out.Reason = err.Error()
		}
		s.recordError(report, "cve", err)
		return out
	}
	out.Status = intel.CVEConfirmed
	if len(res.Items) > 0 {
		out.Items = res.Items
	}
	out.Count = len(out.Items)
	s.logger.Info("cve_lookup_complete",
		zap.String("query", out.Query),
		zap.String("version", detected.Version),
		zap.Int("count", out.Count))
	return out
}

func (s *Service) recordError(report *VulnReport, which string, err error) {
	if err == nil {
		return
	}
	s.logger.Warn("vuln_lite_step_failed", zap.String("which", which), zap.Error(err))
	report.Errors = append(report.Errors, StepError{Which: which, Message: err.Error()})
}

func riskInput(report *VulnReport) risk.Input {
	in := risk.Input{}
	if report.Site != nil {
		in = checker.WebsiteRiskInput(report.Site)
	}
	if report.CVEs.Status == intel.CVEConfirmed {
		in.CVEs = report.CVEs.Items
	}
	if report.Network != nil {
		for _, r := range report.Network.Results {
			in.Ports = append(in.Ports, risk.PortObservation{Port: int(r.Port), Open: r.Status == checker.PortOpen})
		}
	}
	return in
}
