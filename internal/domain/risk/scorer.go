// Package risk turns scan observations into a weighted verdict and an
// ordered list of findings.
package risk

import (
	"strings"

	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
)

// Weights. Headers that are absent or weak carry no weight at all.
const (
	PointsCriticalCVE      = 10
	PointsHighCVE          = 8
	PointsMediumCVE        = 5
	PointsTLSCritical      = 8
	PointsTLSHigh          = 6
	PointsTLSMedium        = 3
	PointsDangerousPort    = 4
	PointsAdminService     = 6
	PointsMalwareFlag      = 10
	PointsPhishingFlag     = 10
	PointsExposedHeader    = 2
	PointsDeprecatedHeader = 3
)

var (
	dangerousPorts = map[int]struct{}{22: {}, 23: {}, 135: {}, 139: {}, 445: {}, 1433: {}, 3306: {}, 3389: {}}
	adminPorts     = map[int]struct{}{22: {}, 3389: {}, 5900: {}, 5800: {}}
)

// TLSVulnerability is the scorer's view of a heuristic TLS finding.
type TLSVulnerability struct {
	Name     string
	Status   string
	Severity string
}

// PortObservation is one probed port.
type PortObservation struct {
	Port int
	Open bool
}

// HeaderObservation is one classified or exposed header.
type HeaderObservation struct {
	Name   string
	Status string
}

// Input gathers everything the scorer weighs. Any field may be empty.
type Input struct {
	CVEs               []intel.CVEItem
	TLSVulnerabilities []TLSVulnerability
	Ports              []PortObservation
	Reputation         []intel.ThreatMatch
	Headers            []HeaderObservation
}

// Breakdown counts raw observations per source.
type Breakdown struct {
	CVEFindings        int `json:"cve_findings"`
	TLSVulnerabilities int `json:"tls_vulnerabilities"`
	NetworkExposures   int `json:"network_exposures"`
	MalwareFlags       int `json:"malware_flags"`
	HeaderExposures    int `json:"header_exposures"`
}

// Assessment is the overall verdict.
type Assessment struct {
	OverallRisk               string    `json:"overall_risk"`
	ExploitableFindings       int       `json:"exploitable_findings"`
	InformationalObservations int       `json:"informational_observations"`
	RiskPoints                int       `json:"risk_points"`
	Confidence                string    `json:"confidence"`
	Breakdown                 Breakdown `json:"breakdown"`
}

// Score computes the assessment for in. It is deterministic and never fails.
func Score(in Input) Assessment {
	var a Assessment

	for _, cve := range in.CVEs {
		switch strings.ToLower(cve.Severity) {
		case "critical":
			a.ExploitableFindings++
			a.RiskPoints += PointsCriticalCVE
		case "high":
			a.ExploitableFindings++
			a.RiskPoints += PointsHighCVE
		case "medium":
			a.ExploitableFindings++
			a.RiskPoints += PointsMediumCVE
		}
	}
	a.Breakdown.CVEFindings = len(in.CVEs)

	for _, v := range in.TLSVulnerabilities {
		if v.Status != "vulnerable" {
			continue
		}
		a.ExploitableFindings++
		a.Breakdown.TLSVulnerabilities++
		switch strings.ToLower(v.Severity) {
		case "critical":
			a.RiskPoints += PointsTLSCritical
		case "high":
			a.RiskPoints += PointsTLSHigh
		case "medium":
			a.RiskPoints += PointsTLSMedium
		}
	}

	for _, p := range in.Ports {
		if !p.Open {
			continue
		}
		a.Breakdown.NetworkExposures++
		if _, ok := dangerousPorts[p.Port]; ok {
			a.ExploitableFindings++
			a.RiskPoints += PointsDangerousPort
		}
		if _, ok := adminPorts[p.Port]; ok {
			a.ExploitableFindings++
			a.RiskPoints += PointsAdminService
		}
	}

	for _, m := range in.Reputation {
		a.ExploitableFindings++
		switch m.ThreatType {
		case "MALWARE":
			a.RiskPoints += PointsMalwareFlag
		case "SOCIAL_ENGINEERING":
			a.RiskPoints += PointsPhishingFlag
		}
	}
	a.Breakdown.MalwareFlags = len(in.Reputation)

	for _, h := range in.Headers {
		switch h.Status {
		case "exposed":
			a.ExploitableFindings++
			a.RiskPoints += PointsExposedHeader
			a.Breakdown.HeaderExposures++
		case "deprecated":
			a.ExploitableFindings++
			a.RiskPoints += PointsDeprecatedHeader
		case "not_detected", "present_weak":
			a.InformationalObservations++
		}
	}

	a.OverallRisk, a.Confidence = level(a.RiskPoints)
	if a.ExploitableFindings == 0 {
		a.OverallRisk, a.Confidence = "Low", "High"
	}
	return a
}

func level(points int) (risk, confidence string) {
	switch {
	case points >= 20:
		return "Critical", "High"
	case points >= 15:
		return "High", "High"
	case points >= 8:
		return "Medium", "High"
	case points >= 3:
		return "Low", "Medium"
	}
	return "Low", "High"
}
