package risk

import (
	"testing"

	"github.com/khanhnv2901/seca-recon/internal/domain/intel"
)

func TestScore_AbsenceOnlyIsLow(t *testing.T) {
	var headers []HeaderObservation
	for i := 0; i < 11; i++ {
		headers = append(headers, HeaderObservation{Name: "h", Status: "not_detected"})
	}
	a := Score(Input{Headers: headers})

	if a.OverallRisk != "Low" || a.Confidence != "High" {
		t.Fatalf("expected Low/High, got %s/%s", a.OverallRisk, a.Confidence)
	}
	if a.ExploitableFindings != 0 {
		t.Errorf("expected 0 exploitable findings, got %d", a.ExploitableFindings)
	}
	if a.InformationalObservations != 11 {
		t.Errorf("expected 11 informational observations, got %d", a.InformationalObservations)
	}
	if a.RiskPoints != 0 {
		t.Errorf("absent headers must not add points, got %d", a.RiskPoints)
	}
}

func TestScore_WeakHeadersAreInformational(t *testing.T) {
	a := Score(Input{Headers: []HeaderObservation{
		{Name: "Content-Security-Policy", Status: "present_weak"},
		{Name: "X-Frame-Options", Status: "present_secure"},
	}})
	if a.RiskPoints != 0 || a.ExploitableFindings != 0 {
		t.Fatalf("weak headers must not be scored: %+v", a)
	}
	if a.InformationalObservations != 1 {
		t.Errorf("expected 1 informational observation, got %d", a.InformationalObservations)
	}
}

func TestScore_SSHOpenCountsTwice(t *testing.T) {
	a := Score(Input{Ports: []PortObservation{{Port: 22, Open: true}, {Port: 80, Open: true}, {Port: 3389, Open: false}}})

	if a.RiskPoints != PointsDangerousPort+PointsAdminService {
		t.Errorf("expected %d points, got %d", PointsDangerousPort+PointsAdminService, a.RiskPoints)
	}
	if a.ExploitableFindings != 2 {
		t.Errorf("expected 2 exploitable findings, got %d", a.ExploitableFindings)
	}
	if a.Breakdown.NetworkExposures != 2 {
		t.Errorf("expected 2 network exposures, got %d", a.Breakdown.NetworkExposures)
	}
	if a.OverallRisk != "Medium" {
		t.Errorf("10 points should be Medium, got %s", a.OverallRisk)
	}
}

func TestScore_SingleCriticalCVE(t *testing.T) {
	a := Score(Input{CVEs: []intel.CVEItem{{ID: "CVE-2021-44228", Severity: "CRITICAL"}}})

	if a.RiskPoints != 10 {
		t.Fatalf("one critical CVE is worth 10 points, got %d", a.RiskPoints)
	}
	if a.OverallRisk != "Medium" && a.OverallRisk != "High" {
		t.Errorf("one critical CVE must rate at least Medium, got %s", a.OverallRisk)
	}
	if a.OverallRisk != "Medium" || a.Confidence != "High" {
		t.Errorf("10 points should be Medium/High, got %s/%s", a.OverallRisk, a.Confidence)
	}
	if a.ExploitableFindings != 1 || a.Breakdown.CVEFindings != 1 {
		t.Errorf("expected one exploitable CVE finding: %+v", a)
	}
}

func TestScore_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		risk       string
		confidence string
	}{
		{
			name:       "critical cve pair",
			in:         Input{CVEs: []intel.CVEItem{{Severity: "Critical"}, {Severity: "Critical"}}},
			risk:       "Critical",
			confidence: "High",
		},
		{
			name:       "high plus medium cve is medium",
			in:         Input{CVEs: []intel.CVEItem{{Severity: "High"}, {Severity: "Medium"}, {Severity: "Low"}}},
			risk:       "Medium",
			confidence: "High",
		},
		{
			name:       "fifteen points",
			in:         Input{CVEs: []intel.CVEItem{{Severity: "Critical"}, {Severity: "Medium"}}},
			risk:       "High",
			confidence: "High",
		},
		{
			name:       "deprecated header only",
			in:         Input{Headers: []HeaderObservation{{Status: "deprecated"}}},
			risk:       "Low",
			confidence: "Medium",
		},
		{
			name:       "exposed header only",
			in:         Input{Headers: []HeaderObservation{{Status: "exposed"}}},
			risk:       "Low",
			confidence: "High",
		},
		{
			name:       "low cve is not exploitable",
			in:         Input{CVEs: []intel.CVEItem{{Severity: "Low"}}},
			risk:       "Low",
			confidence: "High",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Score(tt.in)
			if a.OverallRisk != tt.risk || a.Confidence != tt.confidence {
				t.Errorf("got %s/%s (points %d), want %s/%s", a.OverallRisk, a.Confidence, a.RiskPoints, tt.risk, tt.confidence)
			}
		})
	}
}

func TestScore_TLSAndReputation(t *testing.T) {
	a := Score(Input{
		TLSVulnerabilities: []TLSVulnerability{
			{Name: "POODLE", Status: "vulnerable", Severity: "high"},
			{Name: "DROWN", Status: "not_vulnerable", Severity: "ok"},
			{Name: "Fallback SCSV", Status: "vulnerable", Severity: "medium"},
		},
		Reputation: []intel.ThreatMatch{{ThreatType: "MALWARE"}, {ThreatType: "UNWANTED_SOFTWARE"}},
	})

	want := PointsTLSHigh + PointsTLSMedium + PointsMalwareFlag
	if a.RiskPoints != want {
		t.Errorf("expected %d points, got %d", want, a.RiskPoints)
	}
	if a.ExploitableFindings != 4 {
		t.Errorf("expected 4 exploitable findings, got %d", a.ExploitableFindings)
	}
	if a.Breakdown.TLSVulnerabilities != 2 || a.Breakdown.MalwareFlags != 2 {
		t.Errorf("unexpected breakdown: %+v", a.Breakdown)
	}
	if a.OverallRisk != "High" {
		t.Errorf("19 points should be High, got %s", a.OverallRisk)
	}
}
