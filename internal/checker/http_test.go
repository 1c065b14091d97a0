package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"syscall"
	"testing"

	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
)

func TestGuardedTransport_RefusesLoopback(t *testing.T) {
	srv := newSite(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	client := NewWebsiteClient(NewGuardedTransport(NewTargetResolver(&stubResolver{}), nil))

	resp, err := client.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("loopback fetch should be refused")
	}
	if !errors.Is(err, sharedErrors.ErrBlockedTarget) {
		t.Errorf("expected ErrBlockedTarget, got %v", err)
	}
}

func TestGuardedTransport_RefusesPrivateResolution(t *testing.T) {
	guard := NewTargetResolver(&stubResolver{addrs: []string{"10.0.0.5"}})
	client := NewWebsiteClient(NewGuardedTransport(guard, nil))

	resp, err := client.Get("http://intranet.example/")
	if err == nil {
		resp.Body.Close()
		t.Fatal("private resolution should be refused")
	}
	if !errors.Is(err, sharedErrors.ErrInvalidHost) {
		t.Errorf("expected ErrInvalidHost, got %v", err)
	}
}

func TestGuardedTransport_DialsResolvedAddress(t *testing.T) {
	var host string
	srv := newSite(t, func(w http.ResponseWriter, r *http.Request) {
		host = r.Host
		w.WriteHeader(http.StatusNoContent)
	})
	d := &redirectDialer{addr: srv.Listener.Addr().String()}
	guard := NewTargetResolver(&stubResolver{addrs: []string{"93.184.216.34"}})
	client := NewWebsiteClient(NewGuardedTransport(guard, d))

	resp, err := client.Get("http://site.example/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status %d", resp.StatusCode)
	}
	if host != "site.example" {
		t.Errorf("Host header %q", host)
	}
	if d.count() != 1 {
		t.Errorf("expected one dial, got %d", d.count())
	}
}

func TestWebsiteScanner_GuardedScanIsBlocked(t *testing.T) {
	srv := newSite(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := NewTargetResolver(&stubResolver{})
	s := NewWebsiteScanner(NewWebsiteClient(NewGuardedTransport(guard, nil)), nil, nil, guard, nil)

	_, err := s.Scan(context.Background(), srv.URL)
	if !errors.Is(err, sharedErrors.ErrBlockedTarget) {
		t.Fatalf("expected ErrBlockedTarget, got %v", err)
	}
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    fetchOutcome
		wantDNS string
	}{
		{"blocked", sharedErrors.ErrBlockedTarget, fetchBlocked, ""},
		{"dns", &net.DNSError{Err: "no such host", Name: "x.invalid"}, fetchUnreachable, "ENOTFOUND"},
		{"no public address", sharedErrors.ErrInvalidHost, fetchUnreachable, "ENOTFOUND"},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, fetchUnreachable, "NETWORK_ERROR"},
		{"deadline", context.DeadlineExceeded, fetchTimeout, ""},
		{"reset", syscall.ECONNRESET, fetchProtected, ""},
		{"tls alert", tls.AlertError(40), fetchProtected, ""},
		{"hang up", errors.New("read: connection reset by peer"), fetchProtected, ""},
		{"other", errors.New("stopped after 10 redirects"), fetchFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dns := classifyFetchError(tt.err)
			if got != tt.want || dns != tt.wantDNS {
				t.Errorf("got (%d, %q), want (%d, %q)", got, dns, tt.want, tt.wantDNS)
			}
		})
	}
}

func TestTLSPort(t *testing.T) {
	if p := tlsPort("https://example.com/"); p != 443 {
		t.Errorf("default port %d", p)
	}
	if p := tlsPort("https://example.com:8443/a"); p != 8443 {
		t.Errorf("explicit port %d", p)
	}
}
