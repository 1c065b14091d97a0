package checker

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	ztls "github.com/zmap/zcrypto/tls"
	"go.uber.org/zap"
)

// SSLv3Prober negotiates SSL 3.0 through zcrypto, whose handshake still
// speaks the protocol. A completed handshake is the only evidence used.
type SSLv3Prober struct {
	Dialer  Dialer
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewSSLv3Prober returns a prober bounded by timeout, or the TLS default.
// Connections go through d so proxy settings apply.
func NewSSLv3Prober(d Dialer, timeout time.Duration, logger *zap.Logger) *SSLv3Prober {
	if timeout <= 0 {
		timeout = constants.TLSHandshakeTimeout
	}
	if d == nil {
		d = NewDirectDialer(timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSLv3Prober{Dialer: d, Timeout: timeout, Logger: logger}
}

// SupportsSSLv3 implements LegacyProber. It connects to the vetted address
// and only presents the hostname as SNI.
func (p *SSLv3Prober) SupportsSSLv3(ctx context.Context, target *Target, port int) bool {
	if ctx.Err() != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	addr := net.JoinHostPort(target.Address, strconv.Itoa(port))
	raw, err := p.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		p.Logger.Debug("sslv3_connect_failed", zap.String("address", addr), zap.Error(err))
		return false
	}
	defer raw.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}

	conn := ztls.Client(raw, &ztls.Config{
		MinVersion:         ztls.VersionSSL30,
		MaxVersion:         ztls.VersionSSL30,
		InsecureSkipVerify: true, // #nosec G402
		ServerName:         target.ServerName(),
	})
	if err := conn.Handshake(); err != nil {
		p.Logger.Debug("sslv3_rejected",
			zap.String("host", target.Hostname()),
			zap.String("address", addr),
			zap.Error(err))
		return false
	}
	return true
}
