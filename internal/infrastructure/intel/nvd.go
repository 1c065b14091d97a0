package intel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	domain "github.com/khanhnv2901/seca-recon/internal/domain/intel"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

// DefaultNVDEndpoint is the NVD CVE API 2.0 base URL.
const DefaultNVDEndpoint = "https://services.nvd.nist.gov/rest/json/cves/2.0"

const (
	nvdResultsPerPage = 200
	defaultCVELimit   = 10
	maxCVELimit       = 100
	maxAffectedRanges = 5
)

// NVDClient searches the NVD by keyword and filters the answer down to CVEs
// that mention the detected version.
type NVDClient struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
	Cache    cache.Store
	TTL      time.Duration
	Logger   *zap.Logger
}

// NewNVDClient returns a client for the public NVD API. store may be nil.
func NewNVDClient(apiKey string, store cache.Store, logger *zap.Logger) *NVDClient {
	return &NVDClient{
		Endpoint: DefaultNVDEndpoint,
		APIKey:   apiKey,
		HTTP:     newHTTPClient(constants.NVDTimeout),
		Cache:    store,
		TTL:      constants.IntelCacheTTL,
		Logger:   nopIfNil(logger),
	}
}

type nvdResponse struct {
	TotalResults    int                `json:"totalResults"`
	Vulnerabilities []nvdVulnerability `json:"vulnerabilities"`
}

type nvdVulnerability struct {
	CVE nvdCVE `json:"cve"`
}

type nvdCVE struct {
	ID             string             `json:"id"`
	Published      string             `json:"published"`
	Descriptions   []nvdDescription   `json:"descriptions"`
	Metrics        nvdMetrics         `json:"metrics"`
	Configurations []nvdConfiguration `json:"configurations"`
	References     []nvdReference     `json:"references"`
}

type nvdDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type nvdMetrics struct {
	V31 []nvdCVSSMetric `json:"cvssMetricV31"`
	V30 []nvdCVSSMetric `json:"cvssMetricV30"`
	V2  []nvdCVSSMetric `json:"cvssMetricV2"`
}

type nvdCVSSMetric struct {
	Data struct {
		BaseScore *float64 `json:"baseScore"`
	} `json:"cvssData"`
}

type nvdConfiguration struct {
	Nodes []struct {
		CPEMatch []nvdCPEMatch `json:"cpeMatch"`
	} `json:"nodes"`
}

type nvdCPEMatch struct {
	Criteria              string `json:"criteria"`
	VersionStartIncluding string `json:"versionStartIncluding"`
	VersionStartExcluding string `json:"versionStartExcluding"`
	VersionEndIncluding   string `json:"versionEndIncluding"`
	VersionEndExcluding   string `json:"versionEndExcluding"`
}

type nvdReference struct {
	URL string `json:"url"`
}

// CacheKey is the key a query/version pair is cached under.
func CacheKey(query, version string) string {
	if version == "" {
		version = "none"
	}
	return query + "|v=" + version
}

// Search runs a keyword search for query and keeps the CVEs matching version,
// sorted by CVSS then publication date and cut to limit. A missing version
// skips the search. Transport failures return a skipped result together with
// an error wrapping ErrUpstream.
func (c *NVDClient) Search(ctx context.Context, query, version string, limit int) (domain.CVEResult, error) {
	query = strings.TrimSpace(query)
	version = strings.TrimSpace(version)
	if query == "" {
		return domain.CVEResult{}, sharedErrors.ErrEmptyQuery
	}
	if version == "" {
		return domain.CVEResult{OK: true, Query: query, Status: domain.CVESkipped, Reason: "Version not provided", Items: []domain.CVEItem{}}, nil
	}
	if limit <= 0 {
		limit = defaultCVELimit
	}
	if limit > maxCVELimit {
		limit = maxCVELimit
	}

	logger := nopIfNil(c.Logger)
	items, err := cached(ctx, c.Cache, CacheKey(query, version), c.TTL, logger, func() ([]domain.CVEItem, error) {
		return c.fetch(ctx, query, version)
	})
	if err != nil {
		reason := fmt.Sprintf("CVE search failed: %v", err)
		if isTimeout(err) {
			reason = "CVE check skipped due to timeout"
		}
		logger.Warn("nvd_search_failed", zap.String("query", query), zap.String("version", version), zap.Error(err))
		return domain.CVEResult{OK: true, Query: query, Version: version, Status: domain.CVESkipped, Reason: reason, Items: []domain.CVEItem{}},
			fmt.Errorf("%w: nvd: %v", sharedErrors.ErrUpstream, err)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	logger.Info("nvd_search_complete", zap.String("query", query), zap.String("version", version), zap.Int("count", len(items)))
	return domain.CVEResult{OK: true, Query: query, Version: version, Status: domain.CVEConfirmed, Items: items}, nil
}

// fetch returns every version-matched item in rank order. The full ranked
// list is what gets cached so different limits share one entry.
func (c *NVDClient) fetch(ctx context.Context, query, version string) ([]domain.CVEItem, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultNVDEndpoint
	}
	params := url.Values{}
	params.Set("keywordSearch", query)
	params.Set("resultsPerPage", strconv.Itoa(nvdResultsPerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	if c.APIKey != "" {
		req.Header.Set("apiKey", c.APIKey)
	}

	client := c.HTTP
	if client == nil {
		client = newHTTPClient(constants.NVDTimeout)
	}
	var resp nvdResponse
	if err := doJSON(client, req, &resp); err != nil {
		return nil, err
	}

	items := make([]domain.CVEItem, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		item := convertCVE(v.CVE)
		if matchesVersion(item, query, version) {
			items = append(items, item)
		}
	}
	rankCVEs(items)
	return items, nil
}

func convertCVE(cve nvdCVE) domain.CVEItem {
	score := extractCVSS(cve.Metrics)
	item := domain.CVEItem{
		ID:               cve.ID,
		Summary:          summaryOf(cve.Descriptions),
		CVSS:             score,
		Severity:         SeverityFromCVSS(score),
		Published:        publishedDate(cve.Published),
		References:       uniqueReferences(cve.References),
		AffectedVersions: affectedVersions(cve.Configurations),
	}
	if cve.ID != "" {
		item.NVDURL = "https://nvd.nist.gov/vuln/detail/" + cve.ID
	}
	return item
}

// extractCVSS prefers v3.1, then v3.0, then v2.
func extractCVSS(m nvdMetrics) *float64 {
	for _, metrics := range [][]nvdCVSSMetric{m.V31, m.V30, m.V2} {
		if len(metrics) > 0 && metrics[0].Data.BaseScore != nil {
			score := *metrics[0].Data.BaseScore
			return &score
		}
	}
	return nil
}

// SeverityFromCVSS maps a base score to a severity label.
func SeverityFromCVSS(score *float64) string {
	s := 0.0
	if score != nil {
		s = *score
	}
	switch {
	case s >= 9:
		return "Critical"
	case s >= 7:
		return "High"
	case s >= 4:
		return "Medium"
	case s > 0:
		return "Low"
	}
	return "Unknown"
}

func summaryOf(descs []nvdDescription) string {
	for _, d := range descs {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(descs) > 0 {
		return descs[0].Value
	}
	return ""
}

func publishedDate(raw string) string {
	if len(raw) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", raw[:10]); err != nil {
		return ""
	}
	return raw[:10]
}

func uniqueReferences(refs []nvdReference) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if r.URL == "" {
			continue
		}
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r.URL)
	}
	return out
}

// affectedVersions renders up to five distinct version ranges from the CPE
// match criteria.
func affectedVersions(configs []nvdConfiguration) string {
	var ranges []string
	seen := make(map[string]struct{})
	add := func(r string) {
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		ranges = append(ranges, r)
	}

	for _, cfg := range configs {
		for _, node := range cfg.Nodes {
			for _, m := range node.CPEMatch {
				start := firstNonEmpty(m.VersionStartIncluding, m.VersionStartExcluding)
				end := firstNonEmpty(m.VersionEndIncluding, m.VersionEndExcluding)
				switch {
				case start != "" || end != "":
					add(firstNonEmpty(start, "*") + " - " + firstNonEmpty(end, "*"))
				case m.Criteria != "":
					// cpe:2.3:a:vendor:product:version:...
					parts := strings.Split(m.Criteria, ":")
					if len(parts) > 5 && parts[5] != "" {
						add(parts[5])
					}
				}
			}
		}
	}
	if len(ranges) > maxAffectedRanges {
		ranges = ranges[:maxAffectedRanges]
	}
	return strings.Join(ranges, ", ")
}

// matchesVersion applies the version filter, strongest evidence first:
// affected versions by full version, major.minor and major, then the summary.
func matchesVersion(item domain.CVEItem, query, version string) bool {
	v := strings.ToLower(version)
	var parts []string
	for _, p := range strings.Split(v, ".") {
		if p = strings.TrimLeft(p, "0"); p != "" {
			parts = append(parts, p)
		}
	}
	var majMin, major string
	if len(parts) >= 2 {
		majMin = parts[0] + "." + parts[1]
	}
	if len(parts) >= 1 {
		major = parts[0]
	}

	av := strings.ToLower(item.AffectedVersions)
	text := strings.ToLower(item.Summary)

	switch {
	case av != "" && strings.Contains(av, v):
		return true
	case majMin != "" && av != "" && strings.Contains(av, majMin):
		return true
	case major != "" && av != "" && strings.Contains(av, major):
		return true
	case strings.Contains(text, strings.ToLower(query)) &&
		(strings.Contains(text, "nginx") || strings.Contains(text, "apache") || strings.Contains(text, "php")):
		return true
	case strings.Contains(text, v):
		return true
	case majMin != "" && strings.Contains(text, majMin):
		return true
	}
	return false
}

func rankCVEs(items []domain.CVEItem) {
	score := func(i domain.CVEItem) float64 {
		if i.CVSS == nil {
			return 0
		}
		return *i.CVSS
	}
	sort.SliceStable(items, func(a, b int) bool {
		if sa, sb := score(items[a]), score(items[b]); sa != sb {
			return sa > sb
		}
		return items[a].Published > items[b].Published
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
