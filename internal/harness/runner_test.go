//go:build unit

package harness

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/pkg/errs"
	"supplier-conformance/internal/probes"
	"supplier-conformance/internal/transport"
)

func newTestRunner() *Runner {
	return New(Config{
		URL:     "http://unreachable.test",
		APIKey:  "secret",
		Version: contract.V2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunProbeRecoversFromPanic(t *testing.T) {
	runner := newTestRunner()
	probe := probes.Probe{
		Title: "panicking probe",
		Run: func(context.Context, *probes.Session) (probes.Result, error) {
			panic("boom")
		},
	}

	result := runner.runProbe(context.Background(), runner.newSession(), probe)
	assert.Equal(t, probes.Fail, result.Severity)
	assert.Equal(t, "panicking probe", result.Title)
	assert.Contains(t, result.Message, "boom")
}

func TestRunProbeFillsTitleAndDuration(t *testing.T) {
	runner := newTestRunner()
	probe := probes.Probe{
		Title: "quiet probe",
		Run: func(context.Context, *probes.Session) (probes.Result, error) {
			return probes.Result{}, nil
		},
	}

	result := runner.runProbe(context.Background(), runner.newSession(), probe)
	assert.Equal(t, probes.Pass, result.Severity)
	assert.Equal(t, "quiet probe", result.Title)
}

func TestFailResultClassification(t *testing.T) {
	runner := newTestRunner()

	t.Run("check error keeps its snapshot", func(t *testing.T) {
		snapshot := &transport.Snapshot{URL: "http://example.test", StatusCode: 500}
		result := runner.failResult(&probes.CheckError{Message: "broken contract", Snapshot: snapshot})
		assert.Equal(t, probes.Fail, result.Severity)
		assert.Equal(t, "broken contract", result.Message)
		assert.Same(t, snapshot, result.Response)
	})

	t.Run("wrapped check error still matches", func(t *testing.T) {
		err := errs.Wrap(&probes.CheckError{Message: "inner"}, "outer")
		result := runner.failResult(err)
		assert.Equal(t, "inner", result.Message)
	})

	t.Run("transport failure", func(t *testing.T) {
		result := runner.failResult(&transport.Failure{Message: "connection refused"})
		assert.Equal(t, probes.Fail, result.Severity)
		assert.Equal(t, "connection refused", result.Message)
	})

	t.Run("plain error", func(t *testing.T) {
		result := runner.failResult(errs.New("something else"))
		assert.Equal(t, probes.Fail, result.Severity)
		assert.Equal(t, "something else", result.Message)
	})
}

func TestReportFailed(t *testing.T) {
	report := &Report{Sections: []Section{
		{Target: TargetCatalog, Results: []probes.Result{{Severity: probes.Pass}, {Severity: probes.Warning}}},
	}}
	assert.False(t, report.Failed())

	report.Sections = append(report.Sections, Section{
		Target:  TargetBooking,
		Results: []probes.Result{{Severity: probes.Fail}},
	})
	assert.True(t, report.Failed())
}

func TestRunKeepsRequestedOrder(t *testing.T) {
	runner := newTestRunner()
	targets := []Target{TargetBooking, TargetCatalog}

	for _, parallel := range []bool{false, true} {
		report, err := runner.Run(context.Background(), targets, parallel)
		require.NoError(t, err)
		require.Len(t, report.Sections, 2)
		assert.Equal(t, TargetBooking, report.Sections[0].Target)
		assert.Equal(t, TargetCatalog, report.Sections[1].Target)
		assert.NotEmpty(t, report.RunID)
	}
}
