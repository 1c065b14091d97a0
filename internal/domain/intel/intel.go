// Package intel holds the shapes returned by external intelligence sources:
// CVE lookups, domain threat reports and URL reputation.
package intel

// CVEStatus describes how a CVE lookup concluded.
type CVEStatus string

const (
	CVEConfirmed CVEStatus = "confirmed"
	CVESkipped   CVEStatus = "skipped"
	CVEError     CVEStatus = "error"
)

// CVEItem is one vulnerability record.
type CVEItem struct {
	ID               string   `json:"id"`
	Summary          string   `json:"summary"`
	CVSS             *float64 `json:"cvss"`
	Severity         string   `json:"severity"`
	Published        string   `json:"published,omitempty"`
	References       []string `json:"references"`
	AffectedVersions string   `json:"affected_versions,omitempty"`
	NVDURL           string   `json:"nvd_url"`
}

// CVEResult is the answer to a keyword/version lookup.
type CVEResult struct {
	OK      bool      `json:"ok"`
	Query   string    `json:"query"`
	Version string    `json:"version,omitempty"`
	Status  CVEStatus `json:"status"`
	Reason  string    `json:"reason,omitempty"`
	Items   []CVEItem `json:"items"`
}

// Pulse is one OTX threat report referencing a domain.
type Pulse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Author   string   `json:"author,omitempty"`
	Modified string   `json:"modified,omitempty"`
	Tags     []string `json:"tags"`
}

// OTXResult summarises threat reports for a domain.
type OTXResult struct {
	OK         bool    `json:"ok"`
	Domain     string  `json:"domain"`
	PulseCount int     `json:"pulse_count"`
	Pulses     []Pulse `json:"pulses"`
}

// ReputationStatus is the Safe Browsing verdict for a URL.
type ReputationStatus string

const (
	ReputationUnknown   ReputationStatus = "unknown"
	ReputationSafe      ReputationStatus = "safe"
	ReputationMalicious ReputationStatus = "malicious"
)

// ThreatMatch is one Safe Browsing hit.
type ThreatMatch struct {
	ThreatType      string `json:"threatType"`
	PlatformType    string `json:"platformType"`
	ThreatEntryType string `json:"threatEntryType"`
	URL             string `json:"url,omitempty"`
}

// Reputation is the URL reputation report.
type Reputation struct {
	Status  ReputationStatus `json:"status"`
	Matches []ThreatMatch    `json:"matches"`
}

// UnknownReputation is returned when no reputation source answered.
func UnknownReputation() Reputation {
	return Reputation{Status: ReputationUnknown, Matches: []ThreatMatch{}}
}
