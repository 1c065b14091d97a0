package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/domain/risk"
)

const (
	jsonPrefix = ""
	jsonIndent = "  "
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, jsonPrefix, jsonIndent)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
}

func renderCheckResult(w io.Writer, result checker.CheckResult) {
	if result.Status != "ok" {
		fmt.Fprintf(w, "%s %s: %s\n", colorError("✗"), result.Target, result.Error)
		return
	}
	switch payload := result.Result.(type) {
	case *checker.PortScanReport:
		renderPortScan(w, payload)
	case *checker.TLSProfile:
		renderTLSProfile(w, payload)
	case *checker.WebsiteReport:
		renderWebsite(w, payload)
	default:
		_ = printJSON(w, payload)
	}
}

func renderPortScan(w io.Writer, report *checker.PortScanReport) {
	fmt.Fprintf(w, "%s %s (%s) timeout=%dms retries=%d took=%dms\n",
		colorInfo("→"), report.Target, report.Address, report.TimeoutMS, report.Retries, report.DurationMS)

	tw := newTable(w)
	fmt.Fprintln(tw, "PORT\tSERVICE\tSTATUS\tRISK")
	for _, res := range report.Results {
		port := int(res.Port)
		riskLevel := "-"
		if res.Status == checker.PortOpen {
			riskLevel = formatSeverity(checker.PortRisk(port))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", port, checker.ServiceName(port),
			formatOpenPortState(string(res.Status), checker.PortRisk(port)), riskLevel)
	}
	_ = tw.Flush()

	open := report.OpenPorts()
	fmt.Fprintf(w, "Open: %s of %d scanned\n\n", colorWarn(fmt.Sprintf("%d", len(open))), len(report.ScannedPorts))
}

func renderTLSProfile(w io.Writer, p *checker.TLSProfile) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "%s TLS %s:%d\n", colorInfo("→"), p.Hostname, p.Port)
	if p.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", colorError("error:"), p.Error)
	}

	keys := make([]string, 0, len(p.TLSVersions))
	for k := range p.TLSVersions {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	tw := newTable(w)
	fmt.Fprintln(tw, "  PROTOCOL\tSTATE")
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%s\n", k, formatStatusWithColor(string(p.TLSVersions[k])))
	}
	_ = tw.Flush()

	if len(p.CipherSuites) > 0 {
		tw = newTable(w)
		fmt.Fprintln(tw, "  CIPHER\tVERSION\tSTRENGTH\tPFS")
		for _, c := range p.CipherSuites {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%t\n", c.Name, c.Version, formatCipherStrength(c.Strength), c.ForwardSecrecy)
		}
		_ = tw.Flush()
	}

	if cert := p.Certificate; cert != nil {
		validity := colorSuccess("valid")
		if !cert.Valid {
			validity = colorError("invalid")
		}
		fmt.Fprintf(w, "  Certificate: %s issuer=%q expires=%s (%d days)\n",
			validity, cert.Issuer, cert.ExpiresOn.Format("2006-01-02"), cert.DaysRemaining)
	}
	fmt.Fprintf(w, "  Fallback SCSV: %t  Compression: %t\n", p.FallbackSCSV, p.CompressionEnabled)

	renderVulnerabilities(w, p.Vulnerabilities)
	fmt.Fprintln(w)
}

func formatCipherStrength(s checker.CipherStrength) string {
	switch s {
	case checker.CipherStrong:
		return colorSuccess(string(s))
	case checker.CipherMedium:
		return colorInfo(string(s))
	case checker.CipherDeprecated:
		return colorWarn(string(s))
	default:
		return colorError(string(s))
	}
}

func renderVulnerabilities(w io.Writer, vulns []checker.VulnerabilityFinding) {
	if len(vulns) == 0 {
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "  VULNERABILITY\tCVE\tSTATUS\tSEVERITY")
	for _, v := range vulns {
		cve := "-"
		if v.CVE != nil {
			cve = *v.CVE
		}
		status := formatStatusWithColor(string(v.Status))
		if v.Status == checker.StatusVulnerable {
			status = colorError(string(v.Status))
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", v.Name, cve, status, formatSeverity(v.Severity))
	}
	_ = tw.Flush()
}

func renderHeaders(w io.Writer, headers []checker.HeaderClassification, exposures []checker.HeaderExposure, cors *checker.CORSReport) {
	tw := newTable(w)
	fmt.Fprintln(tw, "HEADER\tSTATUS\tSEVERITY\tVALUE")
	for _, h := range headers {
		value := "-"
		if h.DetectedValue != nil {
			value = truncate(*h.DetectedValue, 60)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.HeaderName, formatStatusWithColor(string(h.Status)), formatSeverity(h.Severity), value)
	}
	for _, e := range exposures {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.HeaderName, formatSeverity(string(e.Status)), formatSeverity(e.Severity), truncate(e.Value, 60))
	}
	_ = tw.Flush()

	if cors != nil {
		fmt.Fprintf(w, "CORS: allow-origin=%q credentials=%t\n", cors.AllowOrigin, cors.AllowCredentials)
		for _, issue := range cors.Issues {
			fmt.Fprintf(w, "  %s %s\n", colorWarn("!"), issue)
		}
	}
}

func renderWebsite(w io.Writer, r *checker.WebsiteReport) {
	fmt.Fprintf(w, "%s %s → %s [%d] %s\n", colorInfo("→"),
		r.ScanInfo.OriginalURL, r.ScanInfo.FinalURL, r.ScanInfo.StatusCode, formatStatusWithColor(r.ScanStatus))
	if r.ScanLimitReason != nil {
		fmt.Fprintf(w, "  %s %s\n", colorWarn("limited:"), *r.ScanLimitReason)
	}
	fmt.Fprintf(w, "  Transport: %s (%s)\n", r.HTTPSStatus.Protocol, r.HTTPSStatus.Note)
	if r.SSL != nil {
		fmt.Fprintf(w, "  Certificate: issuer=%q %s, %d days remaining, wildcard=%t\n",
			r.SSL.IssuerName, r.SSL.ProtocolVersion, r.SSL.DaysRemaining, r.SSL.WildcardCert)
	}
	fmt.Fprintf(w, "  Reputation: %s\n", r.Reputation.Status)
	fmt.Fprintln(w)
	renderHeaders(w, r.Headers, r.Exposures, r.CORS)
	if r.TLS != nil {
		fmt.Fprintln(w)
		renderTLSProfile(w, r.TLS)
	}
	renderRisk(w, r.RiskAssessment)
}

func renderRisk(w io.Writer, a risk.Assessment) {
	fmt.Fprintf(w, "Risk: %s (points=%d, confidence=%s, exploitable=%d, informational=%d)\n",
		formatSeverity(a.OverallRisk), a.RiskPoints, a.Confidence, a.ExploitableFindings, a.InformationalObservations)
}

func renderVulnReport(w io.Writer, r *assessment.VulnReport) {
	host := r.Host
	if host == "" {
		host = "-"
	}
	fmt.Fprintf(w, "%s %s %s\n", colorInfo("→"), host, formatStatusWithColor(r.ScanStatus))
	if r.ScanLimitReason != nil {
		fmt.Fprintf(w, "  %s %s\n", colorWarn("limited:"), *r.ScanLimitReason)
	}

	cve := r.CVEs
	label := "-"
	if cve.Software != nil {
		label = *cve.Software
		if cve.Version != "" {
			label += " " + cve.Version
		}
	}
	fmt.Fprintf(w, "  Software: %s  CVE lookup: %s", label, formatStatusWithColor(string(cve.Status)))
	if cve.Reason != "" {
		fmt.Fprintf(w, " (%s)", cve.Reason)
	}
	fmt.Fprintln(w)

	ex := r.NetworkExposure
	fmt.Fprintf(w, "  Exposed: %d of %d ports (admin %v, mail %v, web %v, other %v)\n\n",
		ex.TotalExposed, ex.TotalScanned, ex.AdminServices, ex.MailServices, ex.WebServices, ex.OtherServices)

	if len(r.Findings) == 0 {
		fmt.Fprintln(w, colorSuccess("No findings."))
	} else {
		tw := newTable(w)
		fmt.Fprintln(tw, "SEVERITY\tCATEGORY\tTITLE")
		for _, f := range r.Findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", formatSeverity(f.Severity), f.Category, f.Title)
		}
		_ = tw.Flush()
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "%s %s: %s\n", colorWarn("!"), e.Which, e.Message)
	}
	fmt.Fprintln(w)
	renderRisk(w, r.RiskAssessment)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ",")
}
