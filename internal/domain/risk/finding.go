package risk

import "sort"

// Category groups findings by the source that produced them.
type Category string

const (
	CategoryCVE         Category = "cve"
	CategoryNetwork     Category = "network"
	CategoryWebsite     Category = "website"
	CategoryThreatIntel Category = "threat-intel"
)

// Finding is one reportable observation.
type Finding struct {
	Category         Category       `json:"category"`
	ID               string         `json:"id,omitempty"`
	Title            string         `json:"title"`
	Severity         string         `json:"severity"`
	Detail           string         `json:"detail"`
	Port             int            `json:"port,omitempty"`
	Service          string         `json:"service,omitempty"`
	ServiceType      string         `json:"service_type,omitempty"`
	Confidence       string         `json:"confidence,omitempty"`
	DetectionBasis   string         `json:"detection_basis,omitempty"`
	Software         string         `json:"software,omitempty"`
	LikelyApplicable bool           `json:"likely_applicable,omitempty"`
	Evidence         map[string]any `json:"evidence"`
}

// SeverityWeight ranks a severity label. Unknown labels weigh zero.
func SeverityWeight(severity string) int {
	switch severity {
	case "Critical":
		return 4
	case "High":
		return 3
	case "Medium":
		return 2
	case "Low":
		return 1
	}
	return 0
}

// SortFindings orders by severity, heaviest first. Among equal severities CVE
// findings come first; everything else keeps its insertion order.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		wi, wj := SeverityWeight(findings[i].Severity), SeverityWeight(findings[j].Severity)
		if wi != wj {
			return wi > wj
		}
		return findings[i].Category == CategoryCVE && findings[j].Category != CategoryCVE
	})
}
