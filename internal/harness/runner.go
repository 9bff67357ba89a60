// Package harness queues probes per target, executes them against one
// supplier and aggregates the outcomes into a report. One failing probe never
// stops the queue.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/pkg/errs"
	"supplier-conformance/internal/probes"
	"supplier-conformance/internal/transport"
)

type Target string

const (
	TargetCatalog      Target = "Product Catalog"
	TargetAvailability Target = "Availability"
	TargetReservation  Target = "Reservation"
	TargetBooking      Target = "Booking & Cancellation"
)

// AllTargets in report order.
var AllTargets = []Target{TargetCatalog, TargetAvailability, TargetReservation, TargetBooking}

type Config struct {
	URL                  string
	APIKey               string
	ProductID            string
	Version              contract.Version
	Timeslots            bool
	VariantWarnThreshold int
	CallTimeout          time.Duration
}

type Runner struct {
	cfg    Config
	client *transport.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Runner {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Runner{
		cfg:    cfg,
		client: transport.NewClient(cfg.APIKey, cfg.CallTimeout),
		logger: logger,
	}
}

// Report is the aggregated outcome of one run.
type Report struct {
	RunID    string
	Sections []Section
}

type Section struct {
	Target  Target
	Results []probes.Result
}

// Failed reports whether any probe in any section ended in a hard failure.
func (r *Report) Failed() bool {
	for _, section := range r.Sections {
		for _, result := range section.Results {
			if result.Severity == probes.Fail {
				return true
			}
		}
	}
	return false
}

func (r *Runner) queue(target Target) []probes.Probe {
	switch target {
	case TargetCatalog:
		return probes.Catalog(r.cfg.Version)
	case TargetAvailability:
		return probes.Availability(r.cfg.Version, r.cfg.Timeslots)
	case TargetReservation:
		return probes.Reservation(r.cfg.Version)
	case TargetBooking:
		return probes.Booking(r.cfg.Version)
	}
	return nil
}

func (r *Runner) newSession() *probes.Session {
	return &probes.Session{
		Client:               r.client,
		BaseURL:              r.cfg.URL,
		ProductID:            r.cfg.ProductID,
		Version:              r.cfg.Version,
		Timeslots:            r.cfg.Timeslots,
		VariantWarnThreshold: r.cfg.VariantWarnThreshold,
	}
}

// RunTarget runs one target's queue sequentially. Probes within a target
// share a session, so the memoized reservation slot is fetched once.
func (r *Runner) RunTarget(ctx context.Context, target Target) Section {
	session := r.newSession()
	queue := r.queue(target)
	results := make([]probes.Result, 0, len(queue))
	for _, probe := range queue {
		result := r.runProbe(ctx, session, probe)
		r.logger.Debug("probe finished",
			"target", string(target),
			"title", result.Title,
			"severity", result.Severity.String(),
			"duration", result.Duration,
		)
		results = append(results, result)
	}
	return Section{Target: target, Results: results}
}

// runProbe invokes one probe, converting panics and typed errors into fail
// results so the queue keeps going.
func (r *Runner) runProbe(ctx context.Context, session *probes.Session, probe probes.Probe) (result probes.Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = probes.Result{
				Severity: probes.Fail,
				Message:  fmt.Sprintf("probe panic: %v", rec),
			}
		}
		result.Title = probe.Title
		result.Duration = time.Since(start)
	}()

	res, err := probe.Run(ctx, session)
	if err != nil {
		return r.failResult(err)
	}
	return res
}

func (r *Runner) failResult(err error) probes.Result {
	var check *probes.CheckError
	if errs.As(err, &check) {
		return probes.Result{Severity: probes.Fail, Message: check.Message, Response: check.Snapshot}
	}
	var failure *transport.Failure
	if errs.As(err, &failure) {
		return probes.Result{Severity: probes.Fail, Message: failure.Message, Response: failure.Snapshot}
	}
	r.logger.Debug("unexpected probe error", "stack", strings.Join(errs.ExtractStackLines(err, 12), "\n"))
	return probes.Result{Severity: probes.Fail, Message: err.Error()}
}

// Run executes the given targets and assembles the report. Targets are
// independent of each other, so they may run concurrently; results keep the
// requested order either way.
func (r *Runner) Run(ctx context.Context, targets []Target, parallel bool) (*Report, error) {
	report := &Report{
		RunID:    uuid.NewString(),
		Sections: make([]Section, len(targets)),
	}

	if !parallel {
		for i, target := range targets {
			report.Sections[i] = r.RunTarget(ctx, target)
		}
		return report, nil
	}

	group, ctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		group.Go(func() error {
			report.Sections[i] = r.RunTarget(ctx, target)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errs.Wrap(err, "run targets")
	}
	return report, nil
}
