package checker

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
)

// AddressFamily identifies the IP version of a resolved target.
type AddressFamily int

const (
	FamilyV4 AddressFamily = 4
	FamilyV6 AddressFamily = 6
)

// Target is a user-supplied host that passed the SSRF guard.
// It is immutable once returned by Resolve.
type Target struct {
	RawInput         string        `json:"raw_input"`
	Address          string        `json:"address"`
	Family           AddressFamily `json:"family"`
	OriginalHostname string        `json:"original_hostname"`
}

// HostResolver returns every address a hostname resolves to.
// *net.Resolver and *DNSResolver both satisfy it.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// TargetResolver validates scan targets and resolves hostnames to a public address.
type TargetResolver struct {
	Resolver HostResolver
}

// NewTargetResolver returns a resolver backed by r, or the system resolver when r is nil.
func NewTargetResolver(r HostResolver) *TargetResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &TargetResolver{Resolver: r}
}

// Resolve turns raw input (hostname, IPv4 or IPv6 literal) into a Target.
// Errors wrap ErrTargetRequired, ErrBlockedTarget or ErrInvalidHost.
func (r *TargetResolver) Resolve(ctx context.Context, input string) (*Target, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return nil, sharedErrors.ErrTargetRequired
	}

	host := strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	if addr, err := netip.ParseAddr(host); err == nil {
		if IsBlockedAddress(host) {
			return nil, fmt.Errorf("%w: %s", sharedErrors.ErrBlockedTarget, raw)
		}
		addr = addr.Unmap()
		return &Target{
			RawInput:         raw,
			Address:          addr.String(),
			Family:           familyOf(addr),
			OriginalHostname: raw,
		}, nil
	}

	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrInvalidHost, raw)
	}

	chosen, ok := selectPublicAddress(addrs)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no public address", sharedErrors.ErrInvalidHost, raw)
	}
	// final guard on the chosen address
	if IsBlockedAddress(chosen.String()) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrBlockedTarget, raw)
	}

	return &Target{
		RawInput:         raw,
		Address:          chosen.String(),
		Family:           familyOf(chosen),
		OriginalHostname: host,
	}, nil
}

// Hostname is the name the user asked for, without IPv6 brackets, or the
// vetted address when none was given.
func (t *Target) Hostname() string {
	host := strings.TrimSuffix(strings.TrimPrefix(t.OriginalHostname, "["), "]")
	if host == "" {
		return t.Address
	}
	return host
}

// ServerName is the SNI value for the target. IP literals send none.
func (t *Target) ServerName() string {
	host := t.Hostname()
	if _, err := netip.ParseAddr(host); err == nil {
		return ""
	}
	return host
}

// selectPublicAddress prefers the first public IPv4 and falls back to the
// first public address of any family.
func selectPublicAddress(addrs []net.IPAddr) (netip.Addr, bool) {
	var fallback netip.Addr
	found := false
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if IsBlockedAddress(addr.String()) {
			continue
		}
		if addr.Is4() {
			return addr, true
		}
		if !found {
			fallback = addr
			found = true
		}
	}
	return fallback, found
}

func familyOf(addr netip.Addr) AddressFamily {
	if addr.Unmap().Is4() {
		return FamilyV4
	}
	return FamilyV6
}

// IsBlockedAddress reports whether ip must never be scanned. Anything that is
// not a well-formed IP literal is blocked.
func IsBlockedAddress(ip string) bool {
	if ip == "" {
		return true
	}
	if strings.Contains(ip, ":") {
		return isBlockedIPv6(ip)
	}
	return isBlockedIPv4(ip)
}

func isBlockedIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return true
	}
	octets := make([]int, 4)
	for i, p := range parts {
		if p == "" || len(p) > 3 || strings.TrimLeft(p, "0123456789") != "" {
			return true
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return true
		}
		octets[i] = n
	}

	a, b := octets[0], octets[1]
	switch {
	case a == 127: // 127.0.0.0/8
		return true
	case a == 10: // 10.0.0.0/8
		return true
	case a == 172 && b >= 16 && b <= 31: // 172.16.0.0/12
		return true
	case a == 192 && b == 168: // 192.168.0.0/16
		return true
	case a == 169 && b == 254: // link-local, includes cloud metadata
		return true
	}
	return false
}

var (
	linkLocalV6   = netip.MustParsePrefix("fe80::/10")
	uniqueLocalV6 = netip.MustParsePrefix("fc00::/7")
)

func isBlockedIPv6(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is6() {
		return true
	}
	if addr.Is4In6() {
		return isBlockedIPv4(addr.Unmap().String())
	}
	addr = addr.WithZone("")
	switch {
	case addr == netip.IPv6Loopback():
		return true
	case linkLocalV6.Contains(addr):
		return true
	case uniqueLocalV6.Contains(addr):
		return true
	}
	return false
}

// HostFromURL strips scheme, path and port from a URL-ish string.
func HostFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "https://"):
		s = s[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		s = s[len("http://"):]
	}
	if idx := strings.IndexAny(s, "/:"); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// WebsiteURL is a normalized website entry.
type WebsiteURL struct {
	Original   string `json:"original_url"`
	Normalized string `json:"normalized_url"`
	Scheme     string `json:"protocol"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
}

// NormalizeWebsiteURL parses user input into a fetchable URL. Input without a
// scheme is assumed to be HTTPS.
func NormalizeWebsiteURL(input string) (*WebsiteURL, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty input", sharedErrors.ErrInvalidURL)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" || strings.Contains(parsed.Scheme, ".") {
		parsed, err = url.Parse("https://" + trimmed)
		if err != nil {
			parsed, err = url.Parse("http://" + trimmed)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidURL, err)
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", sharedErrors.ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", sharedErrors.ErrInvalidURL)
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	port := 443
	if scheme == "http" {
		port = 80
	}
	if p := parsed.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	return &WebsiteURL{
		Original:   trimmed,
		Normalized: parsed.String(),
		Scheme:     scheme,
		Host:       parsed.Hostname(),
		Port:       port,
	}, nil
}
