package application

import (
	"fmt"
	"io"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/intel"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"go.uber.org/zap"
)

// Config selects the backends the container wires together.
type Config struct {
	// ProxyAddr routes probes and TLS handshakes through a SOCKS5 proxy when set.
	ProxyAddr string
	// Nameserver replaces the system resolver when set.
	Nameserver   string
	DNSTimeout   time.Duration
	ProbeWorkers int
	// TLSTimeout bounds each handshake; zero keeps the default.
	TLSTimeout time.Duration

	Cache cache.Config

	NVDAPIKey          string
	OTXAPIKey          string
	SafeBrowsingAPIKey string
}

// Container holds all application services and their infrastructure
// This is a simple dependency injection container
type Container struct {
	// Infrastructure
	Cache        cache.Store
	Dialer       checker.Dialer
	Resolver     *checker.TargetResolver
	NVD          *intel.NVDClient
	OTX          *intel.OTXClient
	SafeBrowsing *intel.SafeBrowsingClient

	// Scanners
	Ports   *checker.PortScanner
	TLS     *checker.TLSAnalyzer
	Website *checker.WebsiteScanner

	// Services
	Assessment *assessment.Service
}

// NewContainer creates a new application service container
func NewContainer(cfg Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	tlsTimeout := cfg.TLSTimeout
	if tlsTimeout <= 0 {
		tlsTimeout = constants.TLSHandshakeTimeout
	}

	dialer, err := checker.NewDialer(cfg.ProxyAddr, tlsTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}

	var hostResolver checker.HostResolver
	if cfg.Nameserver != "" {
		hostResolver = checker.NewDNSResolver(cfg.Nameserver, cfg.DNSTimeout)
	}
	resolver := checker.NewTargetResolver(hostResolver)

	ports := checker.NewPortScanner(checker.NewPortProber(dialer, logger.Named("probe")), logger.Named("portscan"))
	ports.MaxWorkers = cfg.ProbeWorkers

	analyzer := checker.NewTLSAnalyzer(dialer, checker.NewSSLv3Prober(dialer, tlsTimeout, logger), logger.Named("tls"))
	analyzer.Timeout = tlsTimeout

	nvd := intel.NewNVDClient(cfg.NVDAPIKey, store, logger.Named("nvd"))
	otx := intel.NewOTXClient(cfg.OTXAPIKey, store, logger.Named("otx"))

	// a nil interface, not a typed nil, keeps the scanner from calling out
	var reputation checker.ReputationChecker
	var safeBrowsing *intel.SafeBrowsingClient
	if cfg.SafeBrowsingAPIKey != "" {
		safeBrowsing = intel.NewSafeBrowsingClient(cfg.SafeBrowsingAPIKey, store, logger.Named("safebrowsing"))
		reputation = safeBrowsing
	}

	client := checker.NewWebsiteClient(checker.NewGuardedTransport(resolver, dialer))
	website := checker.NewWebsiteScanner(client, analyzer, reputation, resolver, logger.Named("website"))

	svc := assessment.NewService(resolver, ports, website, nvd, otx, logger.Named("assessment"))

	return &Container{
		Cache:        store,
		Dialer:       dialer,
		Resolver:     resolver,
		NVD:          nvd,
		OTX:          otx,
		SafeBrowsing: safeBrowsing,
		Ports:        ports,
		TLS:          analyzer,
		Website:      website,
		Assessment:   svc,
	}, nil
}

// Close releases backend connections.
func (c *Container) Close() error {
	if closer, ok := c.Cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
