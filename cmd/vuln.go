package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/khanhnv2901/seca-recon/internal/application/assessment"
	"github.com/khanhnv2901/seca-recon/internal/checker"
	sharedErrors "github.com/khanhnv2901/seca-recon/internal/shared/errors"
	"github.com/spf13/cobra"
)

// vulnAssessor is the slice of the assessment service the vuln command uses.
type vulnAssessor interface {
	VulnLite(ctx context.Context, req assessment.VulnRequest) (*assessment.VulnReport, error)
}

var vulnCmd = &cobra.Command{
	Use:   "vuln [url]",
	Short: "Lightweight vulnerability assessment of a site and its software",
	Long: `Runs the website, network and threat-intel scans for a URL in parallel,
then looks up CVEs for the detected (or --software supplied) server software.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := getAppContext(cmd).Services()
		if err != nil {
			return err
		}
		req := assessment.VulnRequest{}
		if len(args) == 1 {
			req.URL = args[0]
		}
		req.Software, _ = cmd.Flags().GetString("software")
		return runVuln(cmd, svc.Assessment, req)
	},
}

func runVuln(cmd *cobra.Command, svc vulnAssessor, req assessment.VulnRequest) error {
	if req.URL == "" && req.Software == "" {
		return sharedErrors.ErrMissingInput
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := svc.VulnLite(ctx, req)
	if err != nil {
		if unreachable, ok := checker.IsUnreachable(err); ok {
			return fmt.Errorf("%s is unreachable: %s", unreachable.OriginalURL, unreachable.DNSError)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, report)
	}
	renderVulnReport(out, report)
	return nil
}

func init() {
	vulnCmd.Flags().String("software", "", `server software to look up, e.g. "nginx/1.18.0"`)
	vulnCmd.Flags().Bool("json", false, "print the report as JSON")
	vulnCmd.Flags().Duration("timeout", defaultTargetTimeout, "overall time budget")
}
