// Command tester runs the supplier conformance suite against a supplier API
// and prints the per-target report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supplier-conformance/cmd/bootstrap"
	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/harness"
	"supplier-conformance/internal/pkg/config"
	"supplier-conformance/internal/printer"
)

type options struct {
	url        string
	apiKey     string
	productID  string
	apiVersion int
	timeslots  bool

	catalog      bool
	availability bool
	reservation  bool
	booking      bool

	parallel bool
	noColor  bool
}

func (o *options) targets() []harness.Target {
	if !o.catalog && !o.availability && !o.reservation && !o.booking {
		return harness.AllTargets
	}
	targets := make([]harness.Target, 0, 4)
	if o.catalog {
		targets = append(targets, harness.TargetCatalog)
	}
	if o.availability {
		targets = append(targets, harness.TargetAvailability)
	}
	if o.reservation {
		targets = append(targets, harness.TargetReservation)
	}
	if o.booking {
		targets = append(targets, harness.TargetBooking)
	}
	return targets
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "supplier-tester",
		Short:         "Conformance test runner for the supplier API",
		Long:          "Runs the conformance probes against a supplier API implementation and reports every deviation from the protocol contract.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.url, "url", "u", "", "base URL of the supplier API (required)")
	flags.StringVarP(&opts.apiKey, "api-key", "k", "", "API key sent in the API-Key header (required)")
	flags.StringVarP(&opts.productID, "product-id", "p", "", "product the availability, reservation and booking probes use")
	flags.IntVar(&opts.apiVersion, "api-version", 2, "protocol version to test (1 or 2)")
	flags.BoolVarP(&opts.timeslots, "timeslots", "t", false, "the product uses timeslots (v1 only)")
	flags.BoolVarP(&opts.catalog, "catalog", "c", false, "run the product catalog probes")
	flags.BoolVarP(&opts.availability, "availability", "a", false, "run the availability probes")
	flags.BoolVarP(&opts.reservation, "reservation", "r", false, "run the reservation probes")
	flags.BoolVarP(&opts.booking, "booking", "b", false, "run the booking and cancellation probes")
	flags.BoolVar(&opts.parallel, "parallel", false, "run the selected targets concurrently")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("api-key")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.apiVersion != 1 && opts.apiVersion != 2 {
		return fmt.Errorf("unsupported API version %d, expected 1 or 2", opts.apiVersion)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := bootstrap.NewLogger(cfg)
	slog.SetDefault(logger)

	runner := harness.New(harness.Config{
		URL:                  opts.url,
		APIKey:               opts.apiKey,
		ProductID:            opts.productID,
		Version:              contract.Version(opts.apiVersion),
		Timeslots:            opts.timeslots,
		VariantWarnThreshold: cfg.Tester.VariantWarnThreshold,
		CallTimeout:          cfg.Tester.CallTimeout,
	}, logger)

	report, err := runner.Run(ctx, opts.targets(), opts.parallel)
	if err != nil {
		return err
	}

	printer.New(os.Stdout, opts.noColor).Print(report)

	if report.Failed() {
		return fmt.Errorf("conformance run failed")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
