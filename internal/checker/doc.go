// Package checker implements the passive reconnaissance probes.
//
// Architecture overview:
//
//   - TargetResolver validates user input and resolves it to a single public
//     address. Loopback, private, link-local and unique-local ranges are
//     refused before any socket is opened, and NewGuardedTransport applies the
//     same rule to every HTTP dial.
//   - PortProber decides open/closed for one port with a small state machine
//     (connect, wait for a signal, resolve). PortScanner fans probes out,
//     retries closed verdicts and returns results in request order.
//   - TLSAnalyzer pins each protocol version in turn, records the negotiated
//     suites and the certificate, and EvaluateVulnerabilities runs the
//     heuristic rule table over the resulting profile.
//   - ClassifyHeaders and DetectHeaderExposures grade response headers.
//     WebsiteScanner ties fetch, headers, TLS and reputation together.
//   - Runner executes any Checker across many targets with bounded
//     concurrency and a global rate limit, which is how the CLI batches work.
//
// Every network operation takes a context and carries its own deadline.
// Dialing goes through the Dialer interface so a SOCKS5 proxy can be
// substituted without touching the probes.
package checker
