package assessment

import (
	"net/netip"
	"regexp"
	"strings"
)

// Software is a detected product name and, when exposed, its version.
type Software struct {
	Name    string
	Version string
}

var (
	slashForm     = regexp.MustCompile(`^([A-Za-z0-9\-_.]+)/(\S+)`)
	spaceForm     = regexp.MustCompile(`^([A-Za-z0-9\-_.]+)\s+([0-9]+[.0-9a-zA-Z_-]*)`)
	tokenSplitter = regexp.MustCompile(`[\s/;()]+`)
)

// ParseSoftware reads "name/version", "name version" or a bare name.
// Names are lowercased.
func ParseSoftware(s string) Software {
	s = strings.TrimSpace(s)
	if s == "" {
		return Software{}
	}
	if m := slashForm.FindStringSubmatch(s); m != nil {
		return Software{Name: strings.ToLower(m[1]), Version: m[2]}
	}
	if m := spaceForm.FindStringSubmatch(s); m != nil {
		return Software{Name: strings.ToLower(m[1]), Version: m[2]}
	}
	return Software{Name: strings.ToLower(tokenSplitter.Split(s, 2)[0])}
}

// DetectSoftware picks the product to look up. An explicit value wins, then
// the Server header, then the first label of the host unless it is "www".
// A product literally named "server" counts as nothing detected.
func DetectSoftware(explicit, serverHeader, host string) Software {
	detected := ParseSoftware(explicit)
	if undetected(detected) && serverHeader != "" {
		detected = ParseSoftware(serverHeader)
	}
	if undetected(detected) && host != "" {
		detected = Software{}
		if _, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
			return detected
		}
		label := strings.ToLower(strings.SplitN(host, ".", 2)[0])
		if label != "" && label != "www" {
			detected.Name = label
		}
	}
	if detected.Name == "server" {
		return Software{}
	}
	return detected
}

func undetected(s Software) bool {
	return s.Name == "" || s.Name == "server"
}

var managedInfrastructure = []string{"gws", "cloudflare", "akamai", "amazon", "microsoft-iis", "esf"}

// IsManagedInfrastructure reports whether name belongs to a CDN or hosted
// platform whose version says nothing about the site behind it.
func IsManagedInfrastructure(name string) bool {
	for _, m := range managedInfrastructure {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

var searchNames = map[string]string{
	"apache-coyote": "apache tomcat",
	"coyote":        "apache tomcat",
	"tomcat":        "apache tomcat",
	"apache":        "apache http server",
	"httpd":         "apache http server",
	"nginx":         "nginx",
	"iis":           "microsoft iis",
	"microsoft-iis": "microsoft iis",
	"php":           "php",
	"wordpress":     "wordpress",
	"joomla":        "joomla",
	"drupal":        "drupal",
	"mysql":         "mysql",
	"postgresql":    "postgresql",
	"redis":         "redis",
	"mongodb":       "mongodb",
	"nodejs":        "node.js",
	"node":          "node.js",
	"express":       "express",
	"django":        "django",
	"rails":         "ruby on rails",
	"spring":        "spring framework",
	"struts":        "apache struts",
}

// partial matches, checked in order when there is no exact mapping
var searchFragments = []struct{ fragment, query string }{
	{"tomcat", "apache tomcat"},
	{"apache", "apache http server"},
	{"iis", "microsoft iis"},
	{"nginx", "nginx"},
	{"php", "php"},
	{"wordpress", "wordpress"},
	{"mysql", "mysql"},
	{"node", "node.js"},
}

// SearchName maps a banner product name to the keyword NVD indexes it under.
// Unknown names are returned lowercased.
func SearchName(name string) string {
	name = strings.ToLower(name)
	if q, ok := searchNames[name]; ok {
		return q
	}
	for _, f := range searchFragments {
		if strings.Contains(name, f.fragment) {
			return f.query
		}
	}
	return name
}

// softwareLabel names the product a CVE most likely concerns, falling back to
// the detected software marked as inferred.
func softwareLabel(summary string, detected Software) string {
	s := strings.ToLower(summary)
	switch {
	case strings.Contains(s, "log4j"):
		return "Apache Log4j (Java library)"
	case strings.Contains(s, "commons-configuration"):
		return "Apache Commons Configuration (Java library)"
	case strings.Contains(s, "roxy-wi"), strings.Contains(s, "roxywi"):
		return "Roxy-WI (admin panel)"
	case strings.Contains(s, "tomcat"):
		return "Apache Tomcat (Java servlet container)"
	case strings.Contains(s, "struts"):
		return "Apache Struts (Java framework)"
	case strings.Contains(s, "httpd"), strings.Contains(s, "apache http server"):
		return "Apache HTTP Server"
	}
	if detected.Name == "" {
		return "Inferred software (family)"
	}
	label := strings.NewReplacer("-", " ", "_", " ").Replace(detected.Name)
	if detected.Version != "" {
		label += " " + detected.Version
	}
	return label + " (inferred)"
}
