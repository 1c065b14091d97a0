package checker

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"go.uber.org/zap"
)

// TLSVersionState reports whether a pinned handshake succeeded.
type TLSVersionState string

const (
	VersionEnabled  TLSVersionState = "enabled"
	VersionDisabled TLSVersionState = "disabled"
)

// Protocol version keys used in TLSProfile.TLSVersions.
const (
	KeyTLS13 = "TLS1.3"
	KeyTLS12 = "TLS1.2"
	KeyTLS11 = "TLS1.1"
	KeyTLS10 = "TLS1.0"
	KeySSLv3 = "SSLv3"
	KeySSLv2 = "SSLv2"
)

// CipherStrength buckets a cipher suite name.
type CipherStrength string

const (
	CipherStrong     CipherStrength = "strong"
	CipherMedium     CipherStrength = "medium"
	CipherDeprecated CipherStrength = "deprecated"
	CipherWeak       CipherStrength = "weak"
)

// CipherSuite is one negotiated suite.
type CipherSuite struct {
	Name           string         `json:"name"`
	Strength       CipherStrength `json:"strength"`
	ForwardSecrecy bool           `json:"forward_secrecy"`
	Version        string         `json:"version,omitempty"`
}

// CertificateInfo summarises the leaf certificate presented by the server.
type CertificateInfo struct {
	Valid         bool      `json:"valid"`
	Issuer        string    `json:"issuer"`
	Subject       string    `json:"subject"`
	ExpiresOn     time.Time `json:"expires_on"`
	DaysRemaining int       `json:"days_remaining"`
	AltNames      []string  `json:"alt_names"`
	Wildcard      bool      `json:"wildcard"`
}

// TLSProfile is the negotiated TLS posture of one host:port.
type TLSProfile struct {
	Hostname        string                     `json:"hostname"`
	Port            int                        `json:"port"`
	TLSVersions     map[string]TLSVersionState `json:"tls_versions"`
	CipherSuites    []CipherSuite              `json:"cipher_suites"`
	Certificate     *CertificateInfo           `json:"certificate"`
	Vulnerabilities []VulnerabilityFinding     `json:"vulnerabilities"`

	OpenSSLVersion      string `json:"openssl_version,omitempty"`
	CompressionEnabled  bool   `json:"compression_enabled"`
	SessionTicketLength int    `json:"session_ticket_length"`
	FallbackSCSV        bool   `json:"fallback_scsv_enabled"`
	ServerSoftware      string `json:"server_software,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Enabled reports whether the given version key negotiated.
func (p *TLSProfile) Enabled(key string) bool {
	return p != nil && p.TLSVersions[key] == VersionEnabled
}

// ServerHints carries signals gathered elsewhere, typically from HTTP headers.
type ServerHints struct {
	ServerSoftware string
}

// LegacyProber reports SSLv3 support, which crypto/tls cannot negotiate.
type LegacyProber interface {
	SupportsSSLv3(ctx context.Context, target *Target, port int) bool
}

type pinnedVersion struct {
	key     string
	version uint16
}

var pinnedVersions = []pinnedVersion{
	{KeyTLS13, tls.VersionTLS13},
	{KeyTLS12, tls.VersionTLS12},
	{KeyTLS11, tls.VersionTLS11},
	{KeyTLS10, tls.VersionTLS10},
}

// offeredSuites lists every suite crypto/tls implements, insecure ones included,
// so pinned handshakes can discover what the server is willing to pick.
var offeredSuites = func() []uint16 {
	var ids []uint16
	for _, s := range tls.CipherSuites() {
		ids = append(ids, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		ids = append(ids, s.ID)
	}
	return ids
}()

var openSSLPattern = regexp.MustCompile(`(?i)openssl/([0-9][0-9a-z.\-]*)`)

// TLSAnalyzer negotiates each protocol version against a host and records
// what it sees. It never verifies the chain during negotiation.
type TLSAnalyzer struct {
	Dialer  Dialer
	Timeout time.Duration
	Legacy  LegacyProber
	// RootCAs overrides the system pool when computing certificate validity.
	RootCAs *x509.CertPool
	Now     func() time.Time
	Logger  *zap.Logger
}

// NewTLSAnalyzer returns an analyzer with the default handshake timeout.
func NewTLSAnalyzer(d Dialer, legacy LegacyProber, logger *zap.Logger) *TLSAnalyzer {
	if d == nil {
		d = NewDirectDialer(constants.TLSHandshakeTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TLSAnalyzer{
		Dialer:  d,
		Timeout: constants.TLSHandshakeTimeout,
		Legacy:  legacy,
		Now:     time.Now,
		Logger:  logger,
	}
}

// Analyze builds the TLS profile for a vetted target. Every connection goes
// to target.Address; the hostname is only used for SNI, the Host header and
// certificate name checks. Handshake failures only ever mark versions
// disabled; the profile is always returned.
func (a *TLSAnalyzer) Analyze(ctx context.Context, target *Target, port int, hints ServerHints) *TLSProfile {
	if port == 0 {
		port = 443
	}
	hostname := target.Hostname()
	profile := &TLSProfile{
		Hostname:     hostname,
		Port:         port,
		TLSVersions:  make(map[string]TLSVersionState, len(pinnedVersions)+1),
		CipherSuites: []CipherSuite{},
	}

	var pinnedSuites []CipherSuite
	for _, pv := range pinnedVersions {
		state, err := a.handshake(ctx, target, port, &tls.Config{
			MinVersion:   pv.version,
			MaxVersion:   pv.version,
			CipherSuites: offeredSuites,
		})
		if err != nil {
			profile.TLSVersions[pv.key] = VersionDisabled
			a.logger().Debug("tls_version_disabled",
				zap.String("host", hostname),
				zap.String("version", pv.key),
				zap.Error(err))
			continue
		}
		profile.TLSVersions[pv.key] = VersionEnabled
		pinnedSuites = append(pinnedSuites, describeSuite(state.CipherSuite, pv.key))
	}

	if a.Legacy != nil {
		profile.TLSVersions[KeySSLv3] = VersionDisabled
		if a.Legacy.SupportsSSLv3(ctx, target, port) {
			profile.TLSVersions[KeySSLv3] = VersionEnabled
		}
	}

	detail, err := a.detail(ctx, target, port)
	if err != nil {
		a.logger().Debug("tls_detail_failed", zap.String("host", hostname), zap.Error(err))
		profile.Error = err.Error()
	} else {
		profile.CipherSuites = append(profile.CipherSuites, detail.suite)
		profile.Certificate = detail.certificate
		profile.SessionTicketLength = detail.ticketLength
		profile.ServerSoftware = detail.server
	}
	profile.CipherSuites = mergeSuites(profile.CipherSuites, pinnedSuites)

	if hints.ServerSoftware != "" {
		profile.ServerSoftware = hints.ServerSoftware
	}
	profile.OpenSSLVersion = ExtractOpenSSLVersion(profile.ServerSoftware)
	// crypto/tls never offers compression, so none can be negotiated.
	profile.CompressionEnabled = false
	profile.FallbackSCSV = fallbackProtected(profile.TLSVersions)

	profile.Vulnerabilities = EvaluateVulnerabilities(profile, a.logger())
	return profile
}

func (a *TLSAnalyzer) handshake(ctx context.Context, target *Target, port int, cfg *tls.Config) (tls.ConnectionState, error) {
	conn, err := a.dialTLS(ctx, target, port, cfg)
	if err != nil {
		return tls.ConnectionState{}, err
	}
	defer conn.Close()
	return conn.ConnectionState(), nil
}

func (a *TLSAnalyzer) dialTLS(ctx context.Context, target *Target, port int, cfg *tls.Config) (*tls.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	raw, err := a.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(target.Address, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	cfg.InsecureSkipVerify = true // #nosec G402 -- negotiation only, validity is computed separately
	cfg.ServerName = target.ServerName()
	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

type detailResult struct {
	suite        CipherSuite
	certificate  *CertificateInfo
	ticketLength int
	server       string
}

// detail runs one unpinned handshake, then a HEAD request so the Server
// header and any post-handshake session ticket are observed.
func (a *TLSAnalyzer) detail(ctx context.Context, target *Target, port int) (*detailResult, error) {
	recorder := &ticketRecorder{}
	conn, err := a.dialTLS(ctx, target, port, &tls.Config{
		MinVersion:         tls.VersionTLS10,
		ClientSessionCache: recorder,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.ConnectionState()
	out := &detailResult{
		suite: describeSuite(state.CipherSuite, versionKey(state.Version)),
	}
	if len(state.PeerCertificates) > 0 {
		out.certificate = a.describeCertificate(target.Hostname(), state.PeerCertificates)
	}

	_ = conn.SetDeadline(time.Now().Add(a.timeout()))
	req := fmt.Sprintf("HEAD / HTTP/1.0\r\nHost: %s\r\nConnection: close\r\n\r\n", hostHeader(target.Hostname(), target.Address))
	if _, err := conn.Write([]byte(req)); err == nil {
		if resp, err := http.ReadResponse(bufio.NewReader(conn), nil); err == nil {
			out.server = resp.Header.Get("Server")
			resp.Body.Close()
		}
	}
	out.ticketLength = recorder.Len()
	return out, nil
}

func (a *TLSAnalyzer) describeCertificate(hostname string, chain []*x509.Certificate) *CertificateInfo {
	leaf := chain[0]
	now := a.now()

	info := &CertificateInfo{
		Issuer:        "Unknown",
		Subject:       "Unknown",
		ExpiresOn:     leaf.NotAfter.UTC(),
		DaysRemaining: int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24)),
		AltNames:      append([]string{}, leaf.DNSNames...),
	}
	if len(leaf.Issuer.Organization) > 0 && leaf.Issuer.Organization[0] != "" {
		info.Issuer = leaf.Issuer.Organization[0]
	} else if leaf.Issuer.CommonName != "" {
		info.Issuer = leaf.Issuer.CommonName
	}
	if leaf.Subject.CommonName != "" {
		info.Subject = leaf.Subject.CommonName
	}
	for _, ip := range leaf.IPAddresses {
		info.AltNames = append(info.AltNames, ip.String())
	}
	for _, name := range leaf.DNSNames {
		if strings.HasPrefix(name, "*.") {
			info.Wildcard = true
			break
		}
	}

	intermediates := x509.NewCertPool()
	for _, c := range chain[1:] {
		intermediates.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		DNSName:       hostname,
		Roots:         a.RootCAs,
		Intermediates: intermediates,
		CurrentTime:   now,
	})
	info.Valid = err == nil
	return info
}

// ticketRecorder is a ClientSessionCache that only remembers ticket size.
type ticketRecorder struct {
	mu     sync.Mutex
	length int
}

func (r *ticketRecorder) Get(string) (*tls.ClientSessionState, bool) { return nil, false }

func (r *ticketRecorder) Put(_ string, cs *tls.ClientSessionState) {
	if cs == nil {
		return
	}
	ticket, _, err := cs.ResumptionState()
	if err != nil {
		return
	}
	r.mu.Lock()
	r.length = len(ticket)
	r.mu.Unlock()
}

func (r *ticketRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length
}

// ClassifyCipherSuite buckets a suite by name.
func ClassifyCipherSuite(name string) CipherStrength {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "AES_256_GCM"), strings.Contains(upper, "AES_128_GCM"),
		strings.Contains(upper, "CHACHA20_POLY1305"),
		strings.Contains(upper, "AES_256_CCM"), strings.Contains(upper, "AES_128_CCM"):
		return CipherStrong
	case strings.Contains(upper, "RC4"), strings.Contains(upper, "DES"),
		strings.Contains(upper, "EXPORT"), strings.Contains(upper, "NULL"),
		strings.Contains(upper, "MD5"), strings.Contains(upper, "SHA1"):
		return CipherWeak
	case isCBC(upper):
		return CipherDeprecated
	}
	return CipherMedium
}

// HasForwardSecrecy reports whether the suite name implies an ephemeral key exchange.
func HasForwardSecrecy(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "ECDHE") || strings.Contains(upper, "DHE") || strings.Contains(upper, "CHACHA20")
}

// ExtractOpenSSLVersion pulls the OpenSSL token out of a Server banner.
func ExtractOpenSSLVersion(server string) string {
	m := openSSLPattern.FindStringSubmatch(server)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

func isCBC(upperName string) bool {
	return strings.Contains(upperName, "CBC") && !strings.Contains(upperName, "GCM")
}

func describeSuite(id uint16, version string) CipherSuite {
	name := tls.CipherSuiteName(id)
	suite := CipherSuite{
		Name:           name,
		Strength:       ClassifyCipherSuite(name),
		ForwardSecrecy: HasForwardSecrecy(name) || version == KeyTLS13,
		Version:        version,
	}
	return suite
}

// mergeSuites appends extra to base, skipping names already present.
func mergeSuites(base, extra []CipherSuite) []CipherSuite {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]CipherSuite, 0, len(base)+len(extra))
	for _, s := range append(append([]CipherSuite{}, base...), extra...) {
		if _, dup := seen[s.Name]; dup {
			continue
		}
		seen[s.Name] = struct{}{}
		out = append(out, s)
	}
	return out
}

// fallbackProtected reports whether a downgrade could be forced. A server
// with TLS 1.3 enforces downgrade protection in the handshake itself, and a
// server offering a single version has nothing to fall back to.
func fallbackProtected(versions map[string]TLSVersionState) bool {
	if versions[KeyTLS13] == VersionEnabled {
		return true
	}
	enabled := 0
	for _, state := range versions {
		if state == VersionEnabled {
			enabled++
		}
	}
	return enabled <= 1
}

func versionKey(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return KeyTLS13
	case tls.VersionTLS12:
		return KeyTLS12
	case tls.VersionTLS11:
		return KeyTLS11
	case tls.VersionTLS10:
		return KeyTLS10
	}
	return fmt.Sprintf("0x%04x", v)
}

func (a *TLSAnalyzer) timeout() time.Duration {
	if a.Timeout <= 0 {
		return constants.TLSHandshakeTimeout
	}
	return a.Timeout
}

func (a *TLSAnalyzer) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *TLSAnalyzer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
