package checker

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
)

// HeaderName is one of the evaluated security headers.
type HeaderName string

const (
	HeaderXFrameOptions       HeaderName = "X-Frame-Options"
	HeaderHSTS                HeaderName = "Strict-Transport-Security"
	HeaderCSP                 HeaderName = "Content-Security-Policy"
	HeaderXContentTypeOptions HeaderName = "X-Content-Type-Options"
	HeaderXXSSProtection      HeaderName = "X-XSS-Protection"
	HeaderReferrerPolicy      HeaderName = "Referrer-Policy"
	HeaderPermissionsPolicy   HeaderName = "Permissions-Policy"
	HeaderSetCookie           HeaderName = "Set-Cookie"
	HeaderCORP                HeaderName = "Cross-Origin-Resource-Policy"
	HeaderCOEP                HeaderName = "Cross-Origin-Embedder-Policy"
	HeaderCOOP                HeaderName = "Cross-Origin-Opener-Policy"
)

// SecurityHeaders is the evaluation order and the full header set.
var SecurityHeaders = []HeaderName{
	HeaderXFrameOptions,
	HeaderHSTS,
	HeaderCSP,
	HeaderXContentTypeOptions,
	HeaderXXSSProtection,
	HeaderReferrerPolicy,
	HeaderPermissionsPolicy,
	HeaderSetCookie,
	HeaderCORP,
	HeaderCOEP,
	HeaderCOOP,
}

// HeaderStatus is the four-state taxonomy, plus exposed for disclosure headers.
type HeaderStatus string

const (
	HeaderPresentSecure HeaderStatus = "present_secure"
	HeaderPresentWeak   HeaderStatus = "present_weak"
	HeaderDeprecated    HeaderStatus = "deprecated"
	HeaderNotDetected   HeaderStatus = "not_detected"
	HeaderExposed       HeaderStatus = "exposed"
)

// Severity follows from status alone.
func (s HeaderStatus) Severity() string {
	switch s {
	case HeaderPresentSecure:
		return "Secure"
	case HeaderPresentWeak:
		return "Medium"
	case HeaderDeprecated, HeaderExposed:
		return "High"
	}
	return "Informational"
}

// HeaderClassification is the verdict for one header.
type HeaderClassification struct {
	HeaderName     HeaderName   `json:"header_name"`
	Status         HeaderStatus `json:"status"`
	DetectedValue  *string      `json:"detected_value"`
	Severity       string       `json:"severity"`
	Explanation    string       `json:"explanation"`
	Recommendation string       `json:"recommendation"`
}

type headerPredicate func(value string) bool

type headerRule struct {
	secure         headerPredicate
	weak           headerPredicate
	deprecated     headerPredicate
	explanation    string
	recommendation string
}

var maxAgePattern = regexp.MustCompile(`max-age\s*=\s*"?(\d+)`)

var headerRules = map[HeaderName]headerRule{
	HeaderXFrameOptions: {
		secure:         oneOf("sameorigin", "deny"),
		weak:           func(v string) bool { return !oneOf("sameorigin", "deny")(v) },
		explanation:    "Prevents clickjacking attacks by controlling iframe embedding",
		recommendation: "Consider migrating to CSP frame-ancestors directive",
	},
	HeaderHSTS: {
		secure: func(v string) bool {
			return hstsMaxAge(v) >= constants.HSTSMinMaxAge &&
				(strings.Contains(v, "includesubdomains") || strings.Contains(v, "preload"))
		},
		weak: func(v string) bool {
			return strings.Contains(v, "max-age=") && !strings.Contains(v, "includesubdomains")
		},
		explanation:    "Forces HTTPS connections and prevents protocol downgrade attacks",
		recommendation: "Use max-age=31536000; includeSubDomains; preload for maximum security",
	},
	HeaderCSP: {
		secure: func(v string) bool {
			return !strings.Contains(v, "unsafe-inline") && !strings.Contains(v, "unsafe-eval") &&
				strings.Contains(v, "default-src")
		},
		weak:           containsAny("unsafe-inline", "unsafe-eval", "*", "data:"),
		explanation:    "Prevents XSS attacks by controlling resource loading",
		recommendation: "Use strict CSP without unsafe directives",
	},
	HeaderXContentTypeOptions: {
		secure:         oneOf("nosniff"),
		explanation:    "Prevents MIME type sniffing attacks",
		recommendation: "Always set to nosniff",
	},
	HeaderXXSSProtection: {
		deprecated:     func(string) bool { return true },
		explanation:    "Legacy XSS protection header (deprecated by modern browsers)",
		recommendation: "Remove this header and rely on CSP instead",
	},
	HeaderReferrerPolicy: {
		secure:         oneOf("no-referrer", "same-origin", "strict-origin", "strict-origin-when-cross-origin"),
		weak:           oneOf("origin", "origin-when-cross-origin", "unsafe-url"),
		explanation:    "Controls referrer information leakage",
		recommendation: "Use strict-origin-when-cross-origin or no-referrer",
	},
	HeaderPermissionsPolicy: {
		secure: func(v string) bool {
			return !strings.Contains(v, "*") && strings.Contains(v, "=(")
		},
		weak:           containsAny("*", "self"),
		explanation:    "Controls browser feature access (camera, microphone, etc.)",
		recommendation: "Specify exact origins for sensitive features",
	},
	HeaderSetCookie: {
		secure: func(v string) bool {
			return strings.Contains(v, "secure") && strings.Contains(v, "httponly") &&
				(strings.Contains(v, "samesite=strict") || strings.Contains(v, "samesite=lax"))
		},
		weak: func(v string) bool {
			return !strings.Contains(v, "secure") || !strings.Contains(v, "httponly") ||
				strings.Contains(v, "samesite=none")
		},
		explanation:    "Cookie security attributes",
		recommendation: "Use Secure, HttpOnly, and SameSite=Strict/Lax",
	},
	HeaderCORP: {
		secure:         oneOf("same-origin", "same-site"),
		weak:           oneOf("cross-origin"),
		explanation:    "Prevents cross-origin resource attacks",
		recommendation: "Use same-origin or same-site for sensitive resources",
	},
	HeaderCOEP: {
		secure:         oneOf("require-corp", "credentialless"),
		explanation:    "Controls cross-origin embedding",
		recommendation: "Use require-corp for maximum security",
	},
	HeaderCOOP: {
		secure:         oneOf("same-origin", "same-origin-allow-popups"),
		weak:           oneOf("unsafe-none"),
		explanation:    "Isolates browsing contexts",
		recommendation: "Use same-origin for sensitive applications",
	},
}

const secureRecommendation = "Configuration is secure"

// ClassifyHeaders evaluates every header in SecurityHeaders against h. The
// output has one entry per header, in SecurityHeaders order, and depends only
// on its inputs.
func ClassifyHeaders(h http.Header, isHTTPS bool) []HeaderClassification {
	out := make([]HeaderClassification, 0, len(SecurityHeaders))
	for _, name := range SecurityHeaders {
		out = append(out, classifyHeader(name, headerValue(h, name), isHTTPS))
	}
	return out
}

func classifyHeader(name HeaderName, value string, isHTTPS bool) HeaderClassification {
	rule := headerRules[name]
	c := HeaderClassification{
		HeaderName:     name,
		Status:         HeaderNotDetected,
		Explanation:    rule.explanation,
		Recommendation: rule.recommendation,
	}

	if value != "" {
		v := value
		c.DetectedValue = &v
		normalized := strings.ToLower(strings.TrimSpace(value))
		switch {
		case rule.deprecated != nil && rule.deprecated(normalized):
			c.Status = HeaderDeprecated
		case rule.secure != nil && rule.secure(normalized):
			c.Status = HeaderPresentSecure
		case rule.weak != nil && rule.weak(normalized):
			c.Status = HeaderPresentWeak
		default:
			c.Status = HeaderPresentWeak
		}
	}

	if c.Status == HeaderPresentSecure {
		c.Recommendation = secureRecommendation
	}
	if name == HeaderHSTS && !isHTTPS && c.Status != HeaderNotDetected {
		c.Recommendation = "Browsers ignore HSTS received over plain HTTP; serve the site over HTTPS"
	}
	c.Severity = c.Status.Severity()
	return c
}

// headerValue reads a header case-insensitively. Set-Cookie values are joined.
func headerValue(h http.Header, name HeaderName) string {
	values := h.Values(string(name))
	if len(values) == 0 {
		for k, v := range h {
			if strings.EqualFold(k, string(name)) {
				values = v
				break
			}
		}
	}
	if len(values) == 0 {
		return ""
	}
	if name == HeaderSetCookie {
		return strings.Join(values, "; ")
	}
	return values[0]
}

// HeaderExposure is a response header that reveals implementation details.
type HeaderExposure struct {
	HeaderName string       `json:"header_name"`
	Status     HeaderStatus `json:"status"`
	Value      string       `json:"value"`
	Severity   string       `json:"severity"`
}

var disclosureHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-AspNetMvc-Version"}

var versionToken = regexp.MustCompile(`\d+\.\d+`)

// DetectHeaderExposures flags disclosure headers. Server counts only when it
// carries a version number; the others count whenever present.
func DetectHeaderExposures(h http.Header) []HeaderExposure {
	var out []HeaderExposure
	for _, name := range disclosureHeaders {
		value := strings.TrimSpace(h.Get(name))
		if value == "" {
			continue
		}
		if name == "Server" && !versionToken.MatchString(value) {
			continue
		}
		out = append(out, HeaderExposure{
			HeaderName: name,
			Status:     HeaderExposed,
			Value:      value,
			Severity:   HeaderExposed.Severity(),
		})
	}
	return out
}

func hstsMaxAge(v string) int {
	m := maxAgePattern.FindStringSubmatch(v)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func oneOf(options ...string) headerPredicate {
	return func(v string) bool {
		for _, o := range options {
			if v == o {
				return true
			}
		}
		return false
	}
}

func containsAny(needles ...string) headerPredicate {
	return func(v string) bool {
		for _, n := range needles {
			if strings.Contains(v, n) {
				return true
			}
		}
		return false
	}
}
