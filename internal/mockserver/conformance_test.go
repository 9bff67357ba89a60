//go:build unit

package mockserver_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/harness"
	"supplier-conformance/internal/mockserver"
	"supplier-conformance/internal/pkg/clock"
	"supplier-conformance/internal/pkg/config"
)

// The reference implementation must pass its own conformance suite. This is
// the contract that keeps the two halves of the project honest.

func startMock(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	cfg := config.NewTestConfig()
	handler := mockserver.NewHandler(mockserver.NewRepository(), clock.NewRealClock())
	mockserver.NewRouter(engine, cfg, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)
	return server
}

func runSuite(t *testing.T, serverURL string, version contract.Version, productID string, timeslots bool) *harness.Report {
	t.Helper()
	runner := harness.New(harness.Config{
		URL:                  serverURL,
		APIKey:               "secret",
		ProductID:            productID,
		Version:              version,
		Timeslots:            timeslots,
		VariantWarnThreshold: 20,
		CallTimeout:          10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := runner.Run(context.Background(), harness.AllTargets, false)
	require.NoError(t, err)
	return report
}

func requireNoFailures(t *testing.T, report *harness.Report) {
	t.Helper()
	for _, section := range report.Sections {
		for _, result := range section.Results {
			assert.NotEqual(t, "ERROR", result.Severity.String(),
				"%s / %s: %s", section.Target, result.Title, result.Message)
		}
	}
	assert.False(t, report.Failed())
}

func TestMockPassesOwnSuite(t *testing.T) {
	server := startMock(t)

	t.Run("v1 timeslot product", func(t *testing.T) {
		requireNoFailures(t, runSuite(t, server.URL, contract.V1, "A300-FX", true))
	})

	t.Run("v1 non-timeslot product", func(t *testing.T) {
		requireNoFailures(t, runSuite(t, server.URL, contract.V1, "A500-FX", false))
	})

	t.Run("v2 pricing product", func(t *testing.T) {
		requireNoFailures(t, runSuite(t, server.URL, contract.V2, "A400-FX", false))
	})

	t.Run("v2 PDF voucher product", func(t *testing.T) {
		requireNoFailures(t, runSuite(t, server.URL, contract.V2, "A550-FX", false))
	})
}

func TestSuiteDetectsBrokenSupplier(t *testing.T) {
	// Pointing the suite at the right server with the wrong key must fail:
	// every probe that needs data gets a 403 instead.
	server := startMock(t)

	runner := harness.New(harness.Config{
		URL:         server.URL,
		APIKey:      "not-the-key",
		ProductID:   "A300-FX",
		Version:     contract.V1,
		Timeslots:   true,
		CallTimeout: 10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := runner.Run(context.Background(), []harness.Target{harness.TargetCatalog}, false)
	require.NoError(t, err)
	assert.True(t, report.Failed())
}
