package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domain "github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

// DefaultSafeBrowsingEndpoint is the v4 threatMatches:find URL.
const DefaultSafeBrowsingEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"

var safeBrowsingThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"}

// SafeBrowsingClient checks URLs against Google Safe Browsing.
type SafeBrowsingClient struct {
	Endpoint string
	APIKey   string
	ClientID string
	HTTP     *http.Client
	Cache    cache.Store
	TTL      time.Duration
	Logger   *zap.Logger
}

// NewSafeBrowsingClient returns a client for the public API. store may be nil.
func NewSafeBrowsingClient(apiKey string, store cache.Store, logger *zap.Logger) *SafeBrowsingClient {
	return &SafeBrowsingClient{
		Endpoint: DefaultSafeBrowsingEndpoint,
		APIKey:   apiKey,
		ClientID: "seca-recon",
		HTTP:     newHTTPClient(constants.SafeBrowsingTimeout),
		Cache:    store,
		TTL:      constants.IntelCacheTTL,
		Logger:   nopIfNil(logger),
	}
}

type sbThreatEntry struct {
	URL string `json:"url"`
}

type sbRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string        `json:"threatTypes"`
		PlatformTypes    []string        `json:"platformTypes"`
		ThreatEntryTypes []string        `json:"threatEntryTypes"`
		ThreatEntries    []sbThreatEntry `json:"threatEntries"`
	} `json:"threatInfo"`
}

type sbResponse struct {
	Matches []struct {
		ThreatType      string        `json:"threatType"`
		PlatformType    string        `json:"platformType"`
		ThreatEntryType string        `json:"threatEntryType"`
		Threat          sbThreatEntry `json:"threat"`
	} `json:"matches"`
}

// CheckURL returns the reputation of rawURL. Without an API key it returns
// an unknown reputation and ErrNotConfigured.
func (c *SafeBrowsingClient) CheckURL(ctx context.Context, rawURL string) (domain.Reputation, error) {
	if c.APIKey == "" {
		return domain.UnknownReputation(), sharedErrors.ErrNotConfigured
	}
	logger := nopIfNil(c.Logger)
	rep, err := cached(ctx, c.Cache, "safebrowsing:"+rawURL, c.TTL, logger, func() (domain.Reputation, error) {
		return c.lookup(ctx, rawURL)
	})
	if err != nil {
		logger.Warn("safe_browsing_failed", zap.String("url", rawURL), zap.Error(err))
		return domain.UnknownReputation(), fmt.Errorf("%w: safe browsing: %v", sharedErrors.ErrUpstream, err)
	}
	return rep, nil
}

func (c *SafeBrowsingClient) lookup(ctx context.Context, rawURL string) (domain.Reputation, error) {
	var body sbRequest
	body.Client.ClientID = c.ClientID
	body.Client.ClientVersion = "1.0"
	body.ThreatInfo.ThreatTypes = safeBrowsingThreatTypes
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []sbThreatEntry{{URL: rawURL}}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Reputation{}, err
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultSafeBrowsingEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.APIKey), bytes.NewReader(payload))
	if err != nil {
		return domain.Reputation{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = newHTTPClient(constants.SafeBrowsingTimeout)
	}
	var resp sbResponse
	if err := doJSON(client, req, &resp); err != nil {
		return domain.Reputation{}, err
	}

	if len(resp.Matches) == 0 {
		return domain.Reputation{Status: domain.ReputationSafe, Matches: []domain.ThreatMatch{}}, nil
	}
	rep := domain.Reputation{Status: domain.ReputationMalicious}
	for _, m := range resp.Matches {
		rep.Matches = append(rep.Matches, domain.ThreatMatch{
			ThreatType:      m.ThreatType,
			PlatformType:    m.PlatformType,
			ThreatEntryType: m.ThreatEntryType,
			URL:             m.Threat.URL,
		})
	}
	return rep, nil
}
