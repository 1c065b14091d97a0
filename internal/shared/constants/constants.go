package constants

import "time"

// DefaultPorts is the well-known service list scanned when no custom list is given.
var DefaultPorts = []int{21, 22, 25, 53, 80, 110, 143, 443, 465, 587, 993, 995, 8080}

const (
	// MaxCustomPorts bounds a caller-supplied port list.
	MaxCustomPorts = 64
	// ProbeRetries is the number of extra attempts made for a closed port.
	ProbeRetries = 2
	// ProbeRetryBackoff separates two attempts against the same port.
	ProbeRetryBackoff = 150 * time.Millisecond
	// ProbeGraceWindow is how long a silent connection must survive to count as open.
	ProbeGraceWindow = 200 * time.Millisecond
	// ProbeFallbackSlack is added to the probe timeout for the hard resolution deadline.
	ProbeFallbackSlack = 500 * time.Millisecond
)

const (
	DefaultScanTimeout = 800 * time.Millisecond
	MinScanTimeout     = 200 * time.Millisecond
	MaxScanTimeout     = 5000 * time.Millisecond
)

const (
	// TLSHandshakeTimeout bounds every TLS negotiation attempt.
	TLSHandshakeTimeout = 5 * time.Second
	// TicketbleedTicketLength is the session-ticket size above which Ticketbleed is suspected.
	TicketbleedTicketLength = 256
	// HSTSMinMaxAge is one year in seconds.
	HSTSMinMaxAge = 31536000
)

// IntelCacheTTL is how long collaborator responses are reused.
const IntelCacheTTL = 5 * time.Minute

const (
	NVDTimeout          = 8 * time.Second
	OTXTimeout          = 12 * time.Second
	SafeBrowsingTimeout = 8 * time.Second
)

const (
	// WebsiteFetchTimeout bounds the GET made by the website scan.
	WebsiteFetchTimeout = 45 * time.Second
	WebsiteMaxRedirects = 10
	// UserAgent identifies scanner traffic.
	UserAgent = "Mozilla/5.0 (compatible; SecaReconBot/1.0)"
)
