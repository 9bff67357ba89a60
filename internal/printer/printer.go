// Package printer renders a harness report as tables on a terminal.
package printer

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"supplier-conformance/internal/harness"
	"supplier-conformance/internal/probes"
)

type Printer struct {
	out     io.Writer
	noColor bool
}

func New(out io.Writer, noColor bool) *Printer {
	return &Printer{out: out, noColor: noColor}
}

func (p *Printer) colorize(color text.Color, s string) string {
	if p.noColor {
		return s
	}
	return color.Sprint(s)
}

func (p *Printer) severityCell(severity probes.Severity) string {
	switch severity {
	case probes.Pass:
		return p.colorize(text.FgGreen, severity.String())
	case probes.Warning:
		return p.colorize(text.FgYellow, severity.String())
	default:
		return p.colorize(text.FgRed, severity.String())
	}
}

// Print renders every section of the report, then the HTTP exchanges of the
// probes that did not pass.
func (p *Printer) Print(report *harness.Report) {
	for _, section := range report.Sections {
		p.printSection(section)
	}
	for _, section := range report.Sections {
		for _, result := range section.Results {
			if result.Severity != probes.Pass && result.Response != nil {
				p.printExchange(section.Target, result)
			}
		}
	}
}

func (p *Printer) printSection(section harness.Section) {
	fmt.Fprintf(p.out, "\n%s\n", p.colorize(text.FgHiCyan, string(section.Target)))

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Result", "Test", "Message", "Time"})
	for i, result := range section.Results {
		t.AppendRow(table.Row{
			i + 1,
			p.severityCell(result.Severity),
			result.Title,
			result.Message,
			result.Duration.Round(time.Millisecond),
		})
	}
	t.Render()
}

func (p *Printer) printExchange(target harness.Target, result probes.Result) {
	fmt.Fprintf(p.out, "\n%s %s / %s\n",
		p.colorize(text.FgHiRed, "✗"), target, result.Title)
	fmt.Fprintf(p.out, "  URL:    %s\n", result.Response.URL)
	fmt.Fprintf(p.out, "  Status: %d\n", result.Response.StatusCode)
	names := make([]string, 0, len(result.Response.Headers))
	for name := range result.Response.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(p.out, "  Header: %s: %s\n", name, strings.Join(result.Response.Headers[name], ", "))
	}
	if result.Response.Payload != "" {
		fmt.Fprintf(p.out, "  Sent:   %s\n", truncate(result.Response.Payload, 500))
	}
	fmt.Fprintf(p.out, "  Body:   %s\n", truncate(result.Response.Body, 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
