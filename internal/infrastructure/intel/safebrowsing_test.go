package intel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/khanhnv2901/seca-recon/internal/domain/intel"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func safeBrowsingServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "sb-key", r.URL.Query().Get("key"))

		var body sbRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"}, body.ThreatInfo.ThreatTypes)
		assert.Equal(t, []string{"ANY_PLATFORM"}, body.ThreatInfo.PlatformTypes)
		assert.Len(t, body.ThreatInfo.ThreatEntries, 1)

		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSafeBrowsingClient_Malicious(t *testing.T) {
	srv := safeBrowsingServer(t, `{"matches":[{"threatType":"SOCIAL_ENGINEERING","platformType":"ANY_PLATFORM","threatEntryType":"URL","threat":{"url":"https://bad.example/"}}]}`)
	c := NewSafeBrowsingClient("sb-key", nil, zaptest.NewLogger(t))
	c.Endpoint = srv.URL

	rep, err := c.CheckURL(context.Background(), "https://bad.example/")
	require.NoError(t, err)
	assert.Equal(t, domain.ReputationMalicious, rep.Status)
	require.Len(t, rep.Matches, 1)
	assert.Equal(t, "SOCIAL_ENGINEERING", rep.Matches[0].ThreatType)
	assert.Equal(t, "https://bad.example/", rep.Matches[0].URL)
}

func TestSafeBrowsingClient_Safe(t *testing.T) {
	srv := safeBrowsingServer(t, `{}`)
	c := NewSafeBrowsingClient("sb-key", nil, zaptest.NewLogger(t))
	c.Endpoint = srv.URL

	rep, err := c.CheckURL(context.Background(), "https://good.example/")
	require.NoError(t, err)
	assert.Equal(t, domain.ReputationSafe, rep.Status)
	assert.Empty(t, rep.Matches)
}

func TestSafeBrowsingClient_NotConfigured(t *testing.T) {
	c := NewSafeBrowsingClient("", nil, nil)
	rep, err := c.CheckURL(context.Background(), "https://good.example/")
	assert.ErrorIs(t, err, sharedErrors.ErrNotConfigured)
	assert.Equal(t, domain.ReputationUnknown, rep.Status)
}

func TestSafeBrowsingClient_ErrorsHideKey(t *testing.T) {
	c := NewSafeBrowsingClient("secret-key", nil, zaptest.NewLogger(t))
	c.Endpoint = "http://127.0.0.1:1/v4/threatMatches:find"

	rep, err := c.CheckURL(context.Background(), "https://good.example/")
	require.Error(t, err)
	assert.ErrorIs(t, err, sharedErrors.ErrUpstream)
	assert.False(t, strings.Contains(err.Error(), "secret-key"), err.Error())
	assert.Equal(t, domain.ReputationUnknown, rep.Status)
}
