//go:build unit

package printer_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"supplier-conformance/internal/harness"
	"supplier-conformance/internal/printer"
	"supplier-conformance/internal/probes"
	"supplier-conformance/internal/transport"
)

func sampleReport() *harness.Report {
	return &harness.Report{
		RunID: "run-1",
		Sections: []harness.Section{{
			Target: harness.TargetCatalog,
			Results: []probes.Result{
				{Title: "Get product catalog", Severity: probes.Pass, Duration: 12 * time.Millisecond},
				{
					Title:    "Get product catalog with use_timeslots=True query filter",
					Severity: probes.Fail,
					Message:  "Product X with non matching use_timeslots returned",
					Response: &transport.Snapshot{
						URL:        "http://supplier.test/v1/products",
						StatusCode: 200,
						Headers:    http.Header{"Content-Type": {"application/json"}},
						Body:       `[{"id": "X"}]`,
					},
				},
			},
		}},
	}
}

func TestPrintWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	printer.New(&buf, true).Print(sampleReport())
	out := buf.String()

	assert.Contains(t, out, "Product Catalog")
	assert.Contains(t, out, "Get product catalog")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "http://supplier.test/v1/products")
	assert.Contains(t, out, "Status: 200")
	assert.Contains(t, out, "Content-Type: application/json")
	assert.NotContains(t, out, "\x1b[", "no ANSI escapes with colors disabled")
}

func TestFailedExchangesComeAfterTables(t *testing.T) {
	var buf bytes.Buffer
	printer.New(&buf, true).Print(sampleReport())
	out := buf.String()

	tableAt := strings.Index(out, "Result")
	exchangeAt := strings.Index(out, "URL:")
	assert.Greater(t, exchangeAt, tableAt)
}

func TestLongBodiesAreTruncated(t *testing.T) {
	report := sampleReport()
	report.Sections[0].Results[1].Response.Body = strings.Repeat("x", 2000)

	var buf bytes.Buffer
	printer.New(&buf, true).Print(report)

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 600))
}
