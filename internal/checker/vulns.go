package checker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"go.uber.org/zap"
)

// VulnerabilityClass enumerates the historical TLS weaknesses recognised by
// configuration alone.
type VulnerabilityClass int

const (
	VulnHeartbleed VulnerabilityClass = iota
	VulnCRIME
	VulnDROWN
	VulnBEAST
	VulnLucky13
	VulnTicketbleed
	VulnFallbackSCSV
	VulnPOODLE
	VulnFREAK
	VulnSWEET32
)

func (c VulnerabilityClass) String() string {
	for _, r := range vulnerabilityRules {
		if r.class == c {
			return r.name
		}
	}
	return fmt.Sprintf("VulnerabilityClass(%d)", int(c))
}

// VulnerabilityStatus is the verdict for one class.
type VulnerabilityStatus string

const (
	StatusVulnerable    VulnerabilityStatus = "vulnerable"
	StatusNotVulnerable VulnerabilityStatus = "not_vulnerable"
)

// VulnerabilityFinding is one row of the heuristic report. Severity is "ok"
// when the class does not apply.
type VulnerabilityFinding struct {
	Name     string              `json:"name"`
	CVE      *string             `json:"cve_id"`
	Status   VulnerabilityStatus `json:"status"`
	Severity string              `json:"severity"`
}

type vulnerabilityRule struct {
	class    VulnerabilityClass
	name     string
	cve      string
	severity string
	detect   func(p *TLSProfile) bool
}

// vulnerable OpenSSL releases are 1.0.1 through 1.0.1f
var heartbleedVersion = regexp.MustCompile(`^1\.0\.1[a-f]?(?:[^0-9a-z]|$)`)

var vulnerabilityRules = []vulnerabilityRule{
	{
		class: VulnHeartbleed, name: "Heartbleed", cve: "CVE-2014-0160", severity: "critical",
		detect: func(p *TLSProfile) bool {
			return p.OpenSSLVersion != "" && heartbleedVersion.MatchString(p.OpenSSLVersion)
		},
	},
	{
		class: VulnCRIME, name: "CRIME", cve: "CVE-2012-4929", severity: "high",
		detect: func(p *TLSProfile) bool { return p.CompressionEnabled },
	},
	{
		class: VulnDROWN, name: "DROWN", cve: "CVE-2016-0800", severity: "critical",
		detect: func(p *TLSProfile) bool { return p.Enabled(KeySSLv2) },
	},
	{
		class: VulnBEAST, name: "BEAST", cve: "CVE-2011-3389", severity: "medium",
		detect: func(p *TLSProfile) bool {
			return p.Enabled(KeyTLS10) && anySuite(p, isCBC)
		},
	},
	{
		class: VulnLucky13, name: "Lucky13", cve: "CVE-2013-0169", severity: "medium",
		detect: func(p *TLSProfile) bool {
			return anySuite(p, isCBC)
		},
	},
	{
		class: VulnTicketbleed, name: "Ticketbleed", cve: "CVE-2016-9244", severity: "high",
		detect: func(p *TLSProfile) bool {
			return strings.Contains(strings.ToUpper(p.ServerSoftware), "BIG-IP") ||
				p.SessionTicketLength > constants.TicketbleedTicketLength
		},
	},
	{
		class: VulnFallbackSCSV, name: "Fallback SCSV", severity: "medium",
		detect: func(p *TLSProfile) bool { return !p.FallbackSCSV },
	},
	{
		class: VulnPOODLE, name: "POODLE", cve: "CVE-2014-3566", severity: "high",
		detect: func(p *TLSProfile) bool { return p.Enabled(KeySSLv3) },
	},
	{
		class: VulnFREAK, name: "FREAK", cve: "CVE-2015-0204", severity: "high",
		detect: func(p *TLSProfile) bool {
			return anySuite(p, func(n string) bool { return strings.Contains(n, "EXPORT") })
		},
	},
	{
		class: VulnSWEET32, name: "SWEET32", cve: "CVE-2016-2183", severity: "medium",
		detect: func(p *TLSProfile) bool {
			return anySuite(p, func(n string) bool {
				return strings.Contains(n, "3DES") || strings.Contains(n, "RC2") || strings.Contains(n, "IDEA")
			})
		},
	},
}

// EvaluateVulnerabilities runs every rule against p. A rule that panics is
// logged and left out of the result; the rest still run.
func EvaluateVulnerabilities(p *TLSProfile, logger *zap.Logger) []VulnerabilityFinding {
	return evaluateRules(p, vulnerabilityRules, logger)
}

func evaluateRules(p *TLSProfile, rules []vulnerabilityRule, logger *zap.Logger) []VulnerabilityFinding {
	if logger == nil {
		logger = zap.NewNop()
	}
	findings := make([]VulnerabilityFinding, 0, len(rules))
	for _, rule := range rules {
		vulnerable, err := runRule(rule, p)
		if err != nil {
			logger.Warn("vulnerability_rule_failed", zap.String("class", rule.name), zap.Error(err))
			continue
		}
		f := VulnerabilityFinding{
			Name:     rule.name,
			Status:   StatusNotVulnerable,
			Severity: "ok",
		}
		if rule.cve != "" {
			cve := rule.cve
			f.CVE = &cve
		}
		if vulnerable {
			f.Status = StatusVulnerable
			f.Severity = rule.severity
		}
		findings = append(findings, f)
	}
	return findings
}

func runRule(rule vulnerabilityRule, p *TLSProfile) (vulnerable bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.name, r)
		}
	}()
	return rule.detect(p), nil
}

func anySuite(p *TLSProfile, match func(upperName string) bool) bool {
	for _, s := range p.CipherSuites {
		if match(strings.ToUpper(s.Name)) {
			return true
		}
	}
	return false
}
