// Package intel implements the external intelligence collaborators: NVD CVE
// keyword search, AlienVault OTX domain reports and Google Safe Browsing URL
// reputation. Every client is best-effort and caches through a cache.Store.
package intel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/infrastructure/cache"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"go.uber.org/zap"
)

const maxResponseBytes = 16 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// doJSON sends req and decodes a 200 response into out. Non-200 answers wrap
// ErrUpstream.
func doJSON(client *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, query string and API key included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, uerr.Err)
		}
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return fmt.Errorf("%w: %s %s returned %s", sharedErrors.ErrUpstream, req.Method, req.URL.Host, resp.Status)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", sharedErrors.ErrUpstream, req.URL.Host, err)
	}
	return nil
}

// isTimeout reports whether err came from a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// cached is the read-through helper shared by the clients. Cache failures are
// logged and never fail the lookup.
func cached[T any](ctx context.Context, store cache.Store, key string, ttl time.Duration, logger *zap.Logger, load func() (T, error)) (T, error) {
	if store != nil {
		v, err := cache.GetJSON[T](ctx, store, key)
		if err == nil {
			logger.Debug("intel_cache_hit", zap.String("key", key))
			return v, nil
		}
		if !errors.Is(err, sharedErrors.ErrCacheMiss) {
			logger.Warn("intel_cache_read_failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if store != nil {
		if err := cache.SetJSON(ctx, store, key, v, ttl); err != nil {
			logger.Warn("intel_cache_write_failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
