// Package probes implements the conformance checks of the supplier
// protocol, one probe per documented behavior. A probe performs one or more
// transport calls, feeds the responses through the strict decoders and
// asserts the protocol invariants.
package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// Probe is a single self-contained conformance test. The title is what the
// report shows; the probe body never sets it.
type Probe struct {
	Title string
	Run   RunFunc
}

type RunFunc func(ctx context.Context, s *Session) (Result, error)

// CheckError is a hard contract violation detected by a probe, carrying the
// HTTP exchange that triggered it.
type CheckError struct {
	Message  string
	Snapshot *transport.Snapshot
}

func (e *CheckError) Error() string {
	return e.Message
}

func failf(snapshot *transport.Snapshot, format string, args ...any) error {
	return &CheckError{Message: fmt.Sprintf(format, args...), Snapshot: snapshot}
}

// Session carries everything a probe needs to talk to one supplier, plus the
// memoized reservation slot shared by the reservation and booking probes.
// Probes run sequentially; the slot cache is written at most once per run
// and read-only afterwards.
type Session struct {
	Client               *transport.Client
	BaseURL              string
	ProductID            string
	Version              contract.Version
	Timeslots            bool
	VariantWarnThreshold int

	slot       *contract.DailyVariants
	slotLoaded bool
}

func (s *Session) url(path string) string {
	return s.BaseURL + s.Version.BasePath() + path
}

func (s *Session) productURL(productID, suffix string) string {
	return s.url("/products/" + productID + suffix)
}

func (s *Session) get(ctx context.Context, rawURL string, query url.Values, headers map[string]string) (*transport.Snapshot, []byte, error) {
	return s.Client.Call(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     rawURL,
		Query:   query,
		Headers: headers,
	})
}

func (s *Session) post(ctx context.Context, rawURL string, body any, headers map[string]string) (*transport.Snapshot, []byte, error) {
	return s.Client.Call(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     rawURL,
		JSON:    body,
		Headers: headers,
	})
}

func (s *Session) threshold() int {
	if s.VariantWarnThreshold <= 0 {
		return 20
	}
	return s.VariantWarnThreshold
}

// dateRangeQuery builds the start/end query probes use everywhere.
func dateRangeQuery(start, end contract.Date) url.Values {
	return url.Values{
		"start": {start.String()},
		"end":   {end.String()},
	}
}

// getAPIError decodes an error body, attaching the exchange on failure.
func getAPIError(snapshot *transport.Snapshot, body []byte) (contract.APIError, error) {
	apiErr, err := contract.DecodeAPIError(snapshot.StatusCode, body)
	if err != nil {
		return contract.APIError{}, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return apiErr, nil
}

// checkAPIError compares an observed error against the expectation. A wrong
// code or label is a hard failure; a message that merely fails the prefix
// check is a warning, since suppliers may append dynamic detail.
func checkAPIError(snapshot *transport.Snapshot, apiErr contract.APIError, expected contract.ExpectedError) (Result, error) {
	if apiErr.ErrorCode != expected.ErrorCode {
		return Result{}, failf(snapshot, "Incorrect error_code (%d). Expected value: %d", apiErr.ErrorCode, expected.ErrorCode)
	}
	if apiErr.Error != expected.Error {
		return Result{}, failf(snapshot, "Incorrect error text (%s). Expected text: %s", apiErr.Error, expected.Error)
	}
	if !hasPrefix(apiErr.Message, expected.Message) {
		return Result{
			Severity: Warning,
			Message:  fmt.Sprintf("Incorrect message text %q. Expected text should start with: %q", apiErr.Message, expected.Message),
		}, nil
	}
	return Result{}, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
