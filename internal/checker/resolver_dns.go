package checker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNSResolver resolves hostnames against one configured nameserver instead of
// the system resolver. It issues an A query followed by an AAAA query.
type DNSResolver struct {
	Nameserver string
	client     *dns.Client
}

// NewDNSResolver builds a resolver for nameserver ("host" or "host:port").
func NewDNSResolver(nameserver string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DNSResolver{
		Nameserver: nameserver,
		client:     &dns.Client{Net: "udp", Timeout: timeout},
	}
}

// LookupIPAddr implements HostResolver.
func (r *DNSResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	fqdn := dns.Fqdn(host)
	var (
		addrs   []net.IPAddr
		lastErr error
	)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		resp, _, err := r.client.ExchangeContext(ctx, msg, r.Nameserver)
		if err != nil {
			lastErr = fmt.Errorf("query %s %s: %w", dns.TypeToString[qtype], host, err)
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("query %s %s: %s", dns.TypeToString[qtype], host, dns.RcodeToString[resp.Rcode])
			continue
		}

		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, net.IPAddr{IP: rec.A})
			case *dns.AAAA:
				addrs = append(addrs, net.IPAddr{IP: rec.AAAA})
			}
		}
	}

	if len(addrs) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no address records for %s", host)
	}
	return addrs, nil
}
