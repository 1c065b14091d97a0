package checker

import (
	"net/http"
	"strings"
)

// CORSReport summarises the cross-origin policy a site advertises.
type CORSReport struct {
	AllowOrigin      string   `json:"allow_origin"`
	AllowMethods     string   `json:"allow_methods,omitempty"`
	AllowHeaders     string   `json:"allow_headers,omitempty"`
	ExposeHeaders    string   `json:"expose_headers,omitempty"`
	MaxAge           string   `json:"max_age,omitempty"`
	AllowCredentials bool     `json:"allow_credentials"`
	AllowsAnyOrigin  bool     `json:"allows_any_origin"`
	VaryOrigin       bool     `json:"vary_origin"`
	Issues           []string `json:"issues"`
}

// AnalyzeCORS inspects the CORS response headers. It returns nil when the
// response carries no Access-Control-Allow-Origin header.
func AnalyzeCORS(h http.Header) *CORSReport {
	origin := strings.TrimSpace(h.Get("Access-Control-Allow-Origin"))
	if origin == "" {
		return nil
	}
	report := &CORSReport{
		AllowOrigin:      origin,
		AllowMethods:     h.Get("Access-Control-Allow-Methods"),
		AllowHeaders:     h.Get("Access-Control-Allow-Headers"),
		ExposeHeaders:    h.Get("Access-Control-Expose-Headers"),
		MaxAge:           h.Get("Access-Control-Max-Age"),
		AllowCredentials: strings.EqualFold(h.Get("Access-Control-Allow-Credentials"), "true"),
		VaryOrigin:       varyIncludesOrigin(h.Values("Vary")),
		Issues:           []string{},
	}

	switch origin {
	case "*":
		report.AllowsAnyOrigin = true
		report.Issues = append(report.Issues, "CORS allows any origin (*)")
		if report.AllowCredentials {
			report.Issues = append(report.Issues, "Credentials allowed with wildcard origin (disallowed by browsers)")
		}
	case "null":
		report.Issues = append(report.Issues, "CORS trusts the null origin (sandboxed frames and local files)")
	default:
		if !report.VaryOrigin {
			report.Issues = append(report.Issues, "Vary: Origin header missing (responses may be cached incorrectly)")
		}
	}

	if strings.Contains(report.AllowHeaders, "*") {
		report.Issues = append(report.Issues, "Access-Control-Allow-Headers allows any header (*)")
	}
	if strings.Contains(report.ExposeHeaders, "*") {
		report.Issues = append(report.Issues, "Access-Control-Expose-Headers exposes all headers (*)")
	}
	return report
}

func varyIncludesOrigin(values []string) bool {
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "origin") {
				return true
			}
		}
	}
	return false
}
