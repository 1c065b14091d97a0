package checker

// Service groups used by the exposure summary.
const (
	ServiceAdmin = "admin"
	ServiceMail  = "mail"
	ServiceWeb   = "web"
	ServiceOther = "other"
)

// DangerousService is an open port worth a finding of its own.
type DangerousService struct {
	Name     string
	Severity string
}

var dangerousServices = map[int]DangerousService{
	21:   {Name: "FTP", Severity: "High"},
	22:   {Name: "SSH", Severity: "High"},
	25:   {Name: "SMTP", Severity: "High"},
	3306: {Name: "MySQL", Severity: "High"},
	5432: {Name: "PostgreSQL", Severity: "High"},
	6379: {Name: "Redis", Severity: "High"},
}

var serviceNames = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	445:   "smb",
	465:   "smtps",
	587:   "submission",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	27017: "mongodb",
}

// ServiceName returns the common service name for a port, or "unknown".
func ServiceName(port int) string {
	if service, ok := serviceNames[port]; ok {
		return service
	}
	return "unknown"
}

// ServiceType places a port in one of the exposure groups.
func ServiceType(port int) string {
	switch port {
	case 21, 22:
		return ServiceAdmin
	case 110, 143, 465, 587:
		return ServiceMail
	case 80, 443:
		return ServiceWeb
	}
	return ServiceOther
}

// LookupDangerousService reports whether an open port deserves a finding.
func LookupDangerousService(port int) (DangerousService, bool) {
	s, ok := dangerousServices[port]
	return s, ok
}

// PortRisk assigns a display risk level to an open port.
func PortRisk(port int) string {
	switch port {
	case 23, 3389, 5900: // telnet, rdp, vnc
		return "critical"
	case 21, 22, 445, 3306, 5432, 6379, 27017:
		return "high"
	case 25, 110, 143, 8080, 8443:
		return "medium"
	case 80, 443:
		return "low"
	}
	return "info"
}
