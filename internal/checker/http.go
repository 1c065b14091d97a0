package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
)

// NewGuardedTransport returns a transport that resolves every dial through
// guard and refuses private, loopback and link-local destinations.
func NewGuardedTransport(guard *TargetResolver, d Dialer) *http.Transport {
	if d == nil {
		d = NewDirectDialer(constants.TLSHandshakeTimeout)
	}
	return &http.Transport{
		Proxy: nil,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			target, err := guard.Resolve(ctx, host)
			if err != nil {
				return nil, err
			}
			return d.DialContext(ctx, network, net.JoinHostPort(target.Address, port))
		},
		TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.WebsiteFetchTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
}

// NewWebsiteClient builds the client used for website fetches.
func NewWebsiteClient(transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   constants.WebsiteFetchTimeout,
		Transport: transport,
	}
}

// fetchOutcome classifies what went wrong with a website fetch.
type fetchOutcome int

const (
	fetchOK fetchOutcome = iota
	fetchTimeout
	fetchProtected
	fetchUnreachable
	fetchBlocked
	fetchFailed
)

type fetchResult struct {
	resp          *http.Response
	finalURL      string
	redirectChain []string
	outcome       fetchOutcome
	dnsError      string
	err           error
}

// fetch performs the GET that is the source of truth for a website scan. The
// response body is drained and closed before returning.
func fetch(ctx context.Context, base *http.Client, target, userAgent string) *fetchResult {
	out := &fetchResult{finalURL: target, redirectChain: []string{}}

	client := *base
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= constants.WebsiteMaxRedirects {
			return fmt.Errorf("stopped after %d redirects", constants.WebsiteMaxRedirects)
		}
		out.redirectChain = append(out.redirectChain, req.URL.String())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		out.outcome, out.err = fetchFailed, err
		return out
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		out.outcome, out.dnsError = classifyFetchError(err)
		out.err = err
		return out
	}
	drainAndClose(resp)

	out.resp = resp
	if resp.Request != nil && resp.Request.URL != nil {
		out.finalURL = resp.Request.URL.String()
	}
	return out
}

func classifyFetchError(err error) (fetchOutcome, string) {
	if errors.Is(err, sharedErrors.ErrBlockedTarget) {
		return fetchBlocked, ""
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || errors.Is(err, sharedErrors.ErrInvalidHost) {
		return fetchUnreachable, "ENOTFOUND"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fetchUnreachable, "NETWORK_ERROR"
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fetchTimeout, ""
	}
	if errors.Is(err, syscall.ECONNRESET) || isTLSFailure(err) {
		return fetchProtected, ""
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof") {
		return fetchProtected, ""
	}
	return fetchFailed, ""
}

func isTLSFailure(err error) bool {
	var recordErr tls.RecordHeaderError
	var verifyErr *tls.CertificateVerificationError
	var alert tls.AlertError
	if errors.As(err, &recordErr) || errors.As(err, &verifyErr) || errors.As(err, &alert) {
		return true
	}
	return strings.Contains(err.Error(), "tls:")
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}

// hostnameOf returns the bare host of a URL.
func hostnameOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return HostFromURL(raw)
	}
	return u.Hostname()
}
