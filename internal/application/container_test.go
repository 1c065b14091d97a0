package application

import (
	"testing"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewContainer_Defaults(t *testing.T) {
	c, err := NewContainer(Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &cache.MemoryStore{}, c.Cache)
	assert.IsType(t, &checker.DirectDialer{}, c.Dialer)
	assert.NotNil(t, c.Assessment)
	assert.NotNil(t, c.NVD)
	assert.NotNil(t, c.OTX)
	assert.Nil(t, c.SafeBrowsing)
	assert.Nil(t, c.Website.Reputation, "no key means no reputation lookups")
	assert.Same(t, c.Resolver, c.Website.Guard)
}

func TestNewContainer_OptionalBackends(t *testing.T) {
	c, err := NewContainer(Config{
		ProxyAddr:          "socks5://127.0.0.1:1080",
		Nameserver:         "9.9.9.9",
		ProbeWorkers:       4,
		TLSTimeout:         3 * time.Second,
		SafeBrowsingAPIKey: "key",
		Cache:              cache.Config{Backend: cache.BackendRedis, RedisAddr: "127.0.0.1:6379"},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &checker.ProxyDialer{}, c.Dialer)
	assert.IsType(t, &checker.DNSResolver{}, c.Resolver.Resolver)
	assert.IsType(t, &cache.RedisStore{}, c.Cache)
	assert.Equal(t, 4, c.Ports.MaxWorkers)
	assert.Equal(t, 3*time.Second, c.TLS.Timeout)
	require.NotNil(t, c.SafeBrowsing)
	assert.Equal(t, c.SafeBrowsing, c.Website.Reputation)
}

func TestNewContainer_Errors(t *testing.T) {
	_, err := NewContainer(Config{ProxyAddr: "http://proxy:8080"}, nil)
	assert.ErrorContains(t, err, "failed to create dialer")

	_, err = NewContainer(Config{Cache: cache.Config{Backend: "memcached"}}, nil)
	assert.ErrorContains(t, err, "failed to create cache")
}
