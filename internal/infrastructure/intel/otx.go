package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

// DefaultOTXEndpoint is the AlienVault OTX API base URL.
const DefaultOTXEndpoint = "https://otx.alienvault.com"

// OTXClient looks domains up in AlienVault OTX.
type OTXClient struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
	Cache    cache.Store
	TTL      time.Duration
	Logger   *zap.Logger
}

// NewOTXClient returns a client for the public OTX API. store may be nil.
func NewOTXClient(apiKey string, store cache.Store, logger *zap.Logger) *OTXClient {
	return &OTXClient{
		Endpoint: DefaultOTXEndpoint,
		APIKey:   apiKey,
		HTTP:     newHTTPClient(constants.OTXTimeout),
		Cache:    store,
		TTL:      constants.IntelCacheTTL,
		Logger:   nopIfNil(logger),
	}
}

type otxGeneral struct {
	PulseInfo struct {
		Count  int        `json:"count"`
		Pulses []otxPulse `json:"pulses"`
	} `json:"pulse_info"`
}

type otxPulse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Author   otxAuthor `json:"author"`
	Modified string    `json:"modified"`
	Tags     []string  `json:"tags"`
}

// otxAuthor accepts both a bare username and {"username": ...}.
type otxAuthor string

func (a *otxAuthor) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*a = otxAuthor(name)
		return nil
	}
	var obj struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil
	}
	*a = otxAuthor(obj.Username)
	return nil
}

// LookupDomain returns the pulses referencing domain.
func (c *OTXClient) LookupDomain(ctx context.Context, domainName string) (domain.OTXResult, error) {
	domainName = strings.ToLower(strings.TrimSpace(domainName))
	if domainName == "" {
		return domain.OTXResult{}, sharedErrors.ErrEmptyQuery
	}
	logger := nopIfNil(c.Logger)

	result, err := cached(ctx, c.Cache, "otx:domain:"+domainName, c.TTL, logger, func() (domain.OTXResult, error) {
		return c.fetchDomain(ctx, domainName)
	})
	if err != nil {
		logger.Warn("otx_lookup_failed", zap.String("domain", domainName), zap.Error(err))
		return domain.OTXResult{Domain: domainName, Pulses: []domain.Pulse{}}, fmt.Errorf("%w: otx: %v", sharedErrors.ErrUpstream, err)
	}
	return result, nil
}

func (c *OTXClient) fetchDomain(ctx context.Context, domainName string) (domain.OTXResult, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultOTXEndpoint
	}
	target := strings.TrimRight(endpoint, "/") + "/api/v1/indicators/domain/" + url.PathEscape(domainName) + "/general"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.OTXResult{}, err
	}
	req.Header.Set("X-OTX-API-KEY", c.APIKey)

	client := c.HTTP
	if client == nil {
		client = newHTTPClient(constants.OTXTimeout)
	}
	var general otxGeneral
	if err := doJSON(client, req, &general); err != nil {
		return domain.OTXResult{}, err
	}

	out := domain.OTXResult{
		OK:         true,
		Domain:     domainName,
		PulseCount: general.PulseInfo.Count,
		Pulses:     make([]domain.Pulse, 0, len(general.PulseInfo.Pulses)),
	}
	for _, p := range general.PulseInfo.Pulses {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		out.Pulses = append(out.Pulses, domain.Pulse{
			ID:       p.ID,
			Name:     p.Name,
			Author:   string(p.Author),
			Modified: p.Modified,
			Tags:     tags,
		})
	}
	return out, nil
}
