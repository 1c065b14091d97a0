package assessment

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/domain/risk"
)

const (
	maxTitleSummary  = 120
	maxPulseEvidence = 5
)

func threatFinding(otx intel.OTXResult) risk.Finding {
	severity := "Low"
	switch {
	case otx.PulseCount >= 5:
		severity = "High"
	case otx.PulseCount >= 2:
		severity = "Medium"
	}
	pulses := otx.Pulses
	if len(pulses) > maxPulseEvidence {
		pulses = pulses[:maxPulseEvidence]
	}
	return risk.Finding{
		Category: risk.CategoryThreatIntel,
		Title:    fmt.Sprintf("Domain associated with %d threat reports (OTX)", otx.PulseCount),
		Severity: severity,
		Detail:   fmt.Sprintf("AlienVault OTX shows %d pulses referencing this domain.", otx.PulseCount),
		Evidence: map[string]any{"pulses": pulses},
	}
}

// headerFindings flags weak and deprecated security headers.
func headerFindings(site *checker.WebsiteReport) []risk.Finding {
	var out []risk.Finding
	for _, h := range site.Headers {
		if h.Severity != "Medium" && h.Severity != "High" {
			continue
		}
		out = append(out, risk.Finding{
			Category: risk.CategoryWebsite,
			Title:    fmt.Sprintf("%s: %s", strings.ToUpper(string(h.HeaderName)), h.Status),
			Severity: h.Severity,
			Detail:   h.Explanation,
			Evidence: map[string]any{"header": string(h.HeaderName)},
		})
	}
	return out
}

func networkFindings(scan *checker.PortScanReport) []risk.Finding {
	var out []risk.Finding
	for _, r := range scan.Results {
		if r.Status != checker.PortOpen {
			continue
		}
		port := int(r.Port)
		svc, ok := checker.LookupDangerousService(port)
		if !ok {
			continue
		}
		out = append(out, risk.Finding{
			Category:    risk.CategoryNetwork,
			Port:        port,
			Service:     svc.Name,
			ServiceType: checker.ServiceType(port),
			Title:       fmt.Sprintf("%s (Port %d) is exposed", svc.Name, port),
			Severity:    svc.Severity,
			Detail:      fmt.Sprintf("Port %d (%s) is reachable and open on host %s.", port, svc.Name, scan.Target),
			Evidence:    map[string]any{"port": port, "service": svc.Name},
		})
	}
	return out
}

// summarizeExposure groups open ports by service type. A nil scan yields
// empty groups.
func summarizeExposure(scan *checker.PortScanReport) NetworkExposure {
	exp := NetworkExposure{
		AdminServices: []int{},
		MailServices:  []int{},
		WebServices:   []int{},
		OtherServices: []int{},
	}
	if scan == nil {
		return exp
	}
	exp.TotalScanned = len(scan.Results)
	for _, r := range scan.Results {
		port := int(r.Port)
		if r.Status != checker.PortOpen {
			exp.TotalClosedFiltered++
			continue
		}
		switch checker.ServiceType(port) {
		case checker.ServiceAdmin:
			exp.AdminServices = append(exp.AdminServices, port)
		case checker.ServiceMail:
			exp.MailServices = append(exp.MailServices, port)
		case checker.ServiceWeb:
			exp.WebServices = append(exp.WebServices, port)
		default:
			exp.OtherServices = append(exp.OtherServices, port)
		}
		exp.TotalExposed++
	}
	return exp
}

func cveFindings(cves CVEReport, detected Software) []risk.Finding {
	software := ""
	if cves.Software != nil {
		software = *cves.Software
	}
	basis := fmt.Sprintf("Detected: %s version %s. This CVE affects that version.", software, cves.Version)

	out := make([]risk.Finding, 0, len(cves.Items))
	for _, c := range cves.Items {
		severity := c.Severity
		if severity == "" {
			severity = "Unknown"
		}
		var affected any
		if c.AffectedVersions != "" {
			affected = c.AffectedVersions
		}
		var nvd any
		if c.NVDURL != "" {
			nvd = c.NVDURL
		}
		refs := c.References
		if refs == nil {
			refs = []string{}
		}
		out = append(out, risk.Finding{
			Category:         risk.CategoryCVE,
			ID:               c.ID,
			Title:            c.ID + " — " + truncateSummary(c.Summary),
			Severity:         severity,
			Detail:           c.Summary,
			Confidence:       "Confirmed",
			DetectionBasis:   basis,
			Software:         softwareLabel(c.Summary, detected),
			LikelyApplicable: true,
			Evidence: map[string]any{
				"nvd":               nvd,
				"references":        refs,
				"affected_versions": affected,
			},
		})
	}
	return out
}

func truncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleSummary {
		return s
	}
	return string(r[:maxTitleSummary-3]) + "..."
}
