package checker

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func baseProfile() *TLSProfile {
	return &TLSProfile{
		Hostname: "example.com",
		Port:     443,
		TLSVersions: map[string]TLSVersionState{
			KeyTLS13: VersionEnabled,
			KeyTLS12: VersionEnabled,
			KeyTLS11: VersionDisabled,
			KeyTLS10: VersionDisabled,
		},
		CipherSuites: []CipherSuite{{Name: "TLS_AES_128_GCM_SHA256", Strength: CipherStrong, ForwardSecrecy: true}},
		FallbackSCSV: true,
	}
}

func findingFor(t *testing.T, findings []VulnerabilityFinding, name string) VulnerabilityFinding {
	t.Helper()
	for _, f := range findings {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no finding for %s", name)
	return VulnerabilityFinding{}
}

func TestEvaluateVulnerabilities_ModernHostIsClean(t *testing.T) {
	findings := EvaluateVulnerabilities(baseProfile(), zaptest.NewLogger(t))

	if len(findings) != len(vulnerabilityRules) {
		t.Fatalf("expected %d findings, got %d", len(vulnerabilityRules), len(findings))
	}
	for _, f := range findings {
		if f.Status != StatusNotVulnerable {
			t.Errorf("%s: expected not_vulnerable, got %s", f.Name, f.Status)
		}
		if f.Severity != "ok" {
			t.Errorf("%s: expected severity ok, got %s", f.Name, f.Severity)
		}
	}
	if f := findingFor(t, findings, "Fallback SCSV"); f.CVE != nil {
		t.Errorf("Fallback SCSV has no CVE, got %v", *f.CVE)
	}
	if f := findingFor(t, findings, "POODLE"); f.CVE == nil || *f.CVE != "CVE-2014-3566" {
		t.Errorf("POODLE CVE missing")
	}
}

func TestEvaluateVulnerabilities_Rules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *TLSProfile)
		vuln     string
		severity string
	}{
		{"heartbleed", func(p *TLSProfile) { p.OpenSSLVersion = "1.0.1e" }, "Heartbleed", "critical"},
		{"crime", func(p *TLSProfile) { p.CompressionEnabled = true }, "CRIME", "high"},
		{"drown", func(p *TLSProfile) { p.TLSVersions[KeySSLv2] = VersionEnabled }, "DROWN", "critical"},
		{"beast", func(p *TLSProfile) {
			p.TLSVersions[KeyTLS10] = VersionEnabled
			p.CipherSuites = append(p.CipherSuites, CipherSuite{Name: "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA"})
		}, "BEAST", "medium"},
		{"lucky13", func(p *TLSProfile) {
			p.CipherSuites = append(p.CipherSuites, CipherSuite{Name: "TLS_RSA_WITH_AES_256_CBC_SHA"})
		}, "Lucky13", "medium"},
		{"ticketbleed banner", func(p *TLSProfile) { p.ServerSoftware = "BigIP BIG-IP" }, "Ticketbleed", "high"},
		{"ticketbleed ticket", func(p *TLSProfile) { p.SessionTicketLength = 512 }, "Ticketbleed", "high"},
		{"fallback", func(p *TLSProfile) { p.FallbackSCSV = false }, "Fallback SCSV", "medium"},
		{"poodle", func(p *TLSProfile) { p.TLSVersions[KeySSLv3] = VersionEnabled }, "POODLE", "high"},
		{"freak", func(p *TLSProfile) {
			p.CipherSuites = append(p.CipherSuites, CipherSuite{Name: "TLS_RSA_EXPORT_WITH_RC4_40_MD5"})
		}, "FREAK", "high"},
		{"sweet32", func(p *TLSProfile) {
			p.CipherSuites = append(p.CipherSuites, CipherSuite{Name: "TLS_RSA_WITH_3DES_EDE_CBC_SHA"})
		}, "SWEET32", "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			tt.mutate(p)
			f := findingFor(t, EvaluateVulnerabilities(p, nil), tt.vuln)
			if f.Status != StatusVulnerable {
				t.Fatalf("expected vulnerable, got %s", f.Status)
			}
			if f.Severity != tt.severity {
				t.Errorf("expected severity %s, got %s", tt.severity, f.Severity)
			}
		})
	}
}

func TestEvaluateVulnerabilities_BEASTNeedsTLS10(t *testing.T) {
	p := baseProfile()
	p.CipherSuites = append(p.CipherSuites, CipherSuite{Name: "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA"})

	findings := EvaluateVulnerabilities(p, nil)
	if f := findingFor(t, findings, "BEAST"); f.Status != StatusNotVulnerable {
		t.Errorf("BEAST requires TLS 1.0, got %s", f.Status)
	}
	if f := findingFor(t, findings, "Lucky13"); f.Status != StatusVulnerable {
		t.Errorf("Lucky13 should fire on CBC, got %s", f.Status)
	}
}

func TestHeartbleedVersions(t *testing.T) {
	tests := map[string]bool{
		"1.0.1":      true,
		"1.0.1a":     true,
		"1.0.1f":     true,
		"1.0.1g":     false,
		"1.0.1u":     false,
		"1.0.10":     false,
		"1.0.2k":     false,
		"3.0.13":     false,
		"1.0.1-fips": true,
	}
	for version, want := range tests {
		p := baseProfile()
		p.OpenSSLVersion = version
		f := findingFor(t, EvaluateVulnerabilities(p, nil), "Heartbleed")
		if got := f.Status == StatusVulnerable; got != want {
			t.Errorf("OpenSSL %s: vulnerable=%v, want %v", version, got, want)
		}
	}
}

func TestEvaluateRules_PanicIsIsolated(t *testing.T) {
	rules := []vulnerabilityRule{
		{class: VulnCRIME, name: "CRIME", cve: "CVE-2012-4929", severity: "high", detect: func(*TLSProfile) bool { return true }},
		{class: VulnDROWN, name: "DROWN", severity: "critical", detect: func(*TLSProfile) bool { panic("boom") }},
		{class: VulnPOODLE, name: "POODLE", severity: "high", detect: func(*TLSProfile) bool { return false }},
	}

	findings := evaluateRules(baseProfile(), rules, zaptest.NewLogger(t))
	if len(findings) != 2 {
		t.Fatalf("expected the panicking class to be omitted, got %d findings", len(findings))
	}
	if findings[0].Name != "CRIME" || findings[1].Name != "POODLE" {
		t.Errorf("unexpected findings: %+v", findings)
	}
}

func TestVulnerabilityClassString(t *testing.T) {
	if VulnSWEET32.String() != "SWEET32" {
		t.Errorf("got %s", VulnSWEET32.String())
	}
	if VulnerabilityClass(99).String() != "VulnerabilityClass(99)" {
		t.Errorf("got %s", VulnerabilityClass(99).String())
	}
}
