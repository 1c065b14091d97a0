package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/khanhnv2901/seca-recon/internal/checker"
	"github.com/khanhnv2901/seca-recon/internal/shared/constants"
	"github.com/spf13/cobra"
)

const defaultTargetTimeout = 2 * time.Minute

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scanner against one or more targets",
}

var scanPortsCmd = &cobra.Command{
	Use:   "ports <target...>",
	Short: "Probe well-known TCP ports on public hosts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		svc, err := appCtx.Services()
		if err != nil {
			return err
		}
		portList, _ := cmd.Flags().GetString("ports")
		probeMS, _ := cmd.Flags().GetInt("probe-timeout")

		// a private copy so the progress hook stays local to this command
		scanner := *svc.Ports
		check := &checker.PortScanCheck{
			Resolver: svc.Resolver,
			Scanner:  &scanner,
			Ports:    checker.ParsePortList(portList),
			Timeout:  checker.ClampTimeoutDuration(time.Duration(probeMS) * time.Millisecond),
		}
		appCtx.Logger.Debugw("port scan configured", "ports", joinPorts(check.Ports), "timeout", check.Timeout)
		return runBatch(cmd, args, check, renderCheckResult, trackPorts(&scanner, len(args)*len(check.Ports)))
	},
}

var scanTLSCmd = &cobra.Command{
	Use:   "tls <host...>",
	Short: "Profile protocol versions, ciphers and certificate of a TLS endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetInt("port")
		check := &checker.TLSCheck{Resolver: svc.Resolver, Analyzer: svc.TLS, Port: port}
		return runBatch(cmd, args, check, renderCheckResult)
	},
}

var scanHeadersCmd = &cobra.Command{
	Use:   "headers <url...>",
	Short: "Classify the security headers a site returns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		// same fetch, no TLS profile or reputation lookup
		headersOnly := *svc.Website
		headersOnly.TLS = nil
		headersOnly.Reputation = nil
		return runBatch(cmd, args, &checker.WebsiteCheck{Scanner: &headersOnly}, renderHeaderResult)
	},
}

var scanWebsiteCmd = &cobra.Command{
	Use:   "website <url...>",
	Short: "Fetch a site and assess headers, TLS and reputation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		return runBatch(cmd, args, &checker.WebsiteCheck{Scanner: svc.Website}, renderCheckResult)
	},
}

type resultRenderer func(w io.Writer, result checker.CheckResult)

// progressHook attaches extra reporting to the batch progress line. Passing
// one shows the line even for a single target.
type progressHook func(p *progressPrinter)

// trackPorts feeds every per-port verdict of scanner into the progress line.
func trackPorts(scanner *checker.PortScanner, total int) progressHook {
	return func(p *progressPrinter) {
		p.TrackPorts(total)
		scanner.OnResult = p.ObservePort
	}
}

// runBatch paces targets through the rate-limited runner and prints the
// results. It fails when any target failed, after printing all of them.
func runBatch(cmd *cobra.Command, targets []string, check checker.Checker, render resultRenderer, hooks ...progressHook) error {
	appCtx := getAppContext(cmd)
	flags := cmd.Flags()
	jsonOut, _ := flags.GetBool("json")
	concurrency, _ := flags.GetInt("concurrency")
	rateLimit, _ := flags.GetInt("rate-limit")
	timeout, _ := flags.GetDuration("timeout")

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	runner := &checker.Runner{Concurrency: concurrency, RateLimit: rateLimit, Timeout: timeout}

	var progress checker.ProgressFunc
	var printer *progressPrinter
	if !jsonOut && (len(targets) > 1 || len(hooks) > 0) {
		printer = newProgressPrinter(len(targets), check.Name())
		printer.out = cmd.ErrOrStderr()
		for _, hook := range hooks {
			hook(printer)
		}
		printer.Start()
		progress = printer.Observe
	}

	appCtx.Logger.Infow("scan started", "check", check.Name(), "targets", len(targets), "concurrency", concurrency, "rate_limit", rateLimit)
	start := time.Now()
	results := runner.RunChecks(ctx, targets, check, progress)
	if printer != nil {
		printer.Stop()
	}

	failed := 0
	for _, r := range results {
		if r.Status != "ok" {
			failed++
			appCtx.Logger.Warnw("scan target failed", "check", check.Name(), "target", r.Target, "error", r.Error)
		}
	}
	appCtx.Logger.Infow("scan finished", "check", check.Name(), "failed", failed, "duration", time.Since(start).Round(time.Millisecond))

	out := cmd.OutOrStdout()
	if jsonOut {
		var payload any = results
		if len(results) == 1 {
			payload = results[0]
		}
		if err := printJSON(out, payload); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			render(out, r)
		}
	}

	if failed > 0 {
		return &ScanFailedError{Check: check.Name(), Failed: failed, Total: len(results)}
	}
	return nil
}

func renderHeaderResult(w io.Writer, result checker.CheckResult) {
	report, ok := result.Result.(*checker.WebsiteReport)
	if result.Status != "ok" || !ok {
		renderCheckResult(w, result)
		return
	}
	fmt.Fprintf(w, "%s %s [%d]\n", colorInfo("→"), report.ScanInfo.FinalURL, report.ScanInfo.StatusCode)
	if report.ScanLimitReason != nil {
		fmt.Fprintf(w, "  %s %s\n", colorWarn("limited:"), *report.ScanLimitReason)
	}
	renderHeaders(w, report.Headers, report.Exposures, report.CORS)
	fmt.Fprintln(w)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	scanCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	scanCmd.PersistentFlags().Int("concurrency", defaultScanConcurrency, "targets scanned in parallel")
	scanCmd.PersistentFlags().Int("rate-limit", defaultTargetRate, "targets started per second (0 = unlimited)")
	scanCmd.PersistentFlags().Duration("timeout", defaultTargetTimeout, "time budget per target")

	scanPortsCmd.Flags().String("ports", "", "comma separated ports (default: well-known service ports)")
	scanPortsCmd.Flags().Int("probe-timeout", int(constants.DefaultScanTimeout/time.Millisecond), "per-port probe timeout in milliseconds (200-5000)")

	scanTLSCmd.Flags().Int("port", 443, "TLS port")

	scanCmd.AddCommand(scanPortsCmd, scanTLSCmd, scanHeadersCmd, scanWebsiteCmd)
}
