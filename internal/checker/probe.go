package checker

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"go.uber.org/zap"
)

// PortStatus is the liveness verdict for one port. There is no unknown state.
type PortStatus string

const (
	PortOpen   PortStatus = "open"
	PortClosed PortStatus = "closed"
)

// PortProbeResult is the outcome of probing a single port.
type PortProbeResult struct {
	Port   uint16     `json:"port"`
	Status PortStatus `json:"status"`
}

type probeStrategy int

const (
	// strategyBanner: open on any data or on surviving the grace window.
	strategyBanner probeStrategy = iota
	// strategyHTTP: plaintext HEAD probe, open only on an HTTP/ reply.
	strategyHTTP
	// strategyHTTPS: TLS handshake followed by the HEAD probe.
	strategyHTTPS
)

func strategyFor(port int) probeStrategy {
	switch port {
	case 443:
		return strategyHTTPS
	case 80, 8080:
		return strategyHTTP
	default:
		return strategyBanner
	}
}

type probeState int

const (
	stateConnecting probeState = iota
	stateAwaitingSignal
	stateResolved
)

func (s probeState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateAwaitingSignal:
		return "awaiting_signal"
	case stateResolved:
		return "resolved"
	}
	return "unknown"
}

type probeEvent int

const (
	evConnected probeEvent = iota
	evConnectFailed
	evData         // any bytes from the remote end
	evHTTPResponse // bytes beginning with "HTTP/"
	evRemoteClosed
	evGraceElapsed
	evTimeout
	evFallback
)

type transition struct {
	next   probeState
	status PortStatus
}

type transitionTable map[probeState]map[probeEvent]transition

var (
	toAwaiting = transition{next: stateAwaitingSignal}
	toOpen     = transition{next: stateResolved, status: PortOpen}
	toClosed   = transition{next: stateResolved, status: PortClosed}
)

// bannerTransitions drive non-HTTP ports.
var bannerTransitions = transitionTable{
	stateConnecting: {
		evConnected:     toAwaiting,
		evConnectFailed: toClosed,
		evTimeout:       toClosed,
		evFallback:      toClosed,
	},
	stateAwaitingSignal: {
		evData:         toOpen,
		evHTTPResponse: toOpen,
		evGraceElapsed: toOpen,
		evRemoteClosed: toClosed,
		evTimeout:      toClosed,
		evFallback:     toClosed,
	},
}

// httpTransitions drive ports 80, 8080 and 443.
var httpTransitions = transitionTable{
	stateConnecting: {
		evConnected:     toAwaiting,
		evConnectFailed: toClosed,
		evTimeout:       toClosed,
		evFallback:      toClosed,
	},
	stateAwaitingSignal: {
		evHTTPResponse: toOpen,
		evData:         toClosed,
		evRemoteClosed: toClosed,
		evTimeout:      toClosed,
		evFallback:     toClosed,
	},
}

// probeMachine applies events in arrival order. Once resolved, every later
// event is ignored, so a close racing the grace timer can never flip a verdict.
type probeMachine struct {
	table  transitionTable
	state  probeState
	status PortStatus
}

func newProbeMachine(strategy probeStrategy) *probeMachine {
	table := bannerTransitions
	if strategy != strategyBanner {
		table = httpTransitions
	}
	return &probeMachine{table: table, state: stateConnecting, status: PortClosed}
}

func (m *probeMachine) apply(ev probeEvent) bool {
	if m.state == stateResolved {
		return false
	}
	t, ok := m.table[m.state][ev]
	if !ok {
		return false
	}
	m.state = t.next
	if t.next == stateResolved {
		m.status = t.status
	}
	return true
}

func (m *probeMachine) resolved() bool { return m.state == stateResolved }

// PortProber performs one bounded connection attempt per call.
type PortProber struct {
	Dialer        Dialer
	GraceWindow   time.Duration
	FallbackSlack time.Duration
	Logger        *zap.Logger
}

// NewPortProber returns a prober using d, or direct dialing when d is nil.
func NewPortProber(d Dialer, logger *zap.Logger) *PortProber {
	if d == nil {
		d = NewDirectDialer(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortProber{
		Dialer:        d,
		GraceWindow:   constants.ProbeGraceWindow,
		FallbackSlack: constants.ProbeFallbackSlack,
		Logger:        logger,
	}
}

// Probe checks one port on address. hostname is used for SNI and the Host
// header; address is used when hostname is empty. Every failure mode yields
// PortClosed.
func (p *PortProber) Probe(ctx context.Context, port int, address string, timeout time.Duration, hostname string) PortProbeResult {
	result := PortProbeResult{Port: uint16(port), Status: PortClosed}
	if port < 1 || port > 65535 {
		return result
	}

	strategy := strategyFor(port)
	machine := newProbeMachine(strategy)

	slack := p.FallbackSlack
	if slack <= 0 {
		slack = constants.ProbeFallbackSlack
	}
	grace := p.GraceWindow
	if grace <= 0 {
		grace = constants.ProbeGraceWindow
	}

	// hard fallback deadline; cancel also tears the socket down
	ctx, cancel := context.WithTimeout(ctx, timeout+slack)
	defer cancel()

	events := make(chan probeEvent, 4)
	go p.attempt(ctx, events, strategy, port, address, hostname, timeout, grace)

	var graceC <-chan time.Time
	for !machine.resolved() {
		select {
		case ev := <-events:
			machine.apply(ev)
			if ev == evConnected && strategy == strategyBanner && !machine.resolved() {
				graceTimer := time.NewTimer(grace)
				defer graceTimer.Stop()
				graceC = graceTimer.C
			}
		case <-graceC:
			machine.apply(evGraceElapsed)
		case <-ctx.Done():
			machine.apply(evFallback)
		}
	}

	result.Status = machine.status
	if ce := p.logger().Check(zap.DebugLevel, "port_probe"); ce != nil {
		ce.Write(
			zap.String("address", address),
			zap.Int("port", port),
			zap.String("status", string(result.Status)),
		)
	}
	return result
}

// attempt runs the socket side of a probe and reports what happened as events.
// It sends at most three events, so the buffered channel never blocks it.
func (p *PortProber) attempt(ctx context.Context, events chan<- probeEvent, strategy probeStrategy, port int, address, hostname string, timeout, grace time.Duration) {
	dialCtx, cancelDial := context.WithTimeout(ctx, timeout)
	defer cancelDial()

	conn, err := p.Dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		events <- classifyConnectError(err)
		return
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
	}()

	if strategy == strategyHTTPS {
		serverName := hostname
		if serverName == "" {
			serverName = address
		}
		tlsConn := tls.Client(conn, &tls.Config{
			InsecureSkipVerify: true, // #nosec G402 -- only negotiation matters for liveness
			ServerName:         serverName,
		})
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			events <- classifyConnectError(err)
			return
		}
		conn = tlsConn
	}
	events <- evConnected

	readWindow := timeout
	if strategy == strategyHTTP || strategy == strategyHTTPS {
		req := fmt.Sprintf("HEAD / HTTP/1.0\r\nHost: %s\r\nConnection: close\r\n\r\n", hostHeader(hostname, address))
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		if _, err := conn.Write([]byte(req)); err != nil {
			events <- evRemoteClosed
			return
		}
	} else {
		// the grace timer must always be able to fire before the read deadline
		readWindow = timeout + grace
	}

	_ = conn.SetReadDeadline(time.Now().Add(readWindow))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if n > 0 {
		if bytes.HasPrefix(buf[:n], []byte("HTTP/")) {
			events <- evHTTPResponse
		} else {
			events <- evData
		}
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		events <- evTimeout
		return
	}
	events <- evRemoteClosed
}

func classifyConnectError(err error) probeEvent {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return evTimeout
	}
	return evConnectFailed
}

func hostHeader(hostname, address string) string {
	host := hostname
	if host == "" {
		host = address
	}
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}

func (p *PortProber) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
