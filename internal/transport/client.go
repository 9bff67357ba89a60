// Package transport sends single HTTP requests to the supplier under test
// and classifies the raw responses. It deliberately never retries: a flaky
// answer is a finding, not something to recover from.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"supplier-conformance/internal/pkg/errs"
)

// HeaderAPIKey is the fixed auth header name of the protocol.
const HeaderAPIKey = "API-Key"

// Request describes one call to the supplier.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	// JSON body; nil means no body.
	JSON any
	// When non-nil this map replaces the default headers entirely. Probes
	// use it to omit or corrupt the API key.
	Headers map[string]string
}

// Snapshot captures the full exchange for fail/warning diagnostics.
type Snapshot struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Payload    string
	Body       string
}

// Failure is a transport-level problem: the remote is unreachable or sent
// something outside the documented status set. It aborts the current probe
// and is reported distinctly from a protocol violation.
type Failure struct {
	Message  string
	Snapshot *Snapshot
}

func (f *Failure) Error() string {
	return f.Message
}

type Client struct {
	httpClient *http.Client
	apiKey     string
}

func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
	}
}

// Call performs one request. The returned body bytes are non-nil only for
// statuses that carry a meaningful payload (200/201 and the documented error
// statuses); 204 yields nil. Statuses outside {200, 201, 204, 400, 403, 405,
// 500} and network errors return a *Failure.
func (c *Client) Call(ctx context.Context, req Request) (*Snapshot, []byte, error) {
	var (
		payload []byte
		err     error
	)
	if req.JSON != nil {
		payload, err = json.Marshal(req.JSON)
		if err != nil {
			return nil, nil, errs.Wrap(err, "failed to encode request payload")
		}
	}

	callURL := req.URL
	if len(req.Query) > 0 {
		callURL = fmt.Sprintf("%s?%s", req.URL, req.Query.Encode())
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, callURL, bodyReader)
	if err != nil {
		return nil, nil, errs.Wrap(err, "failed to build request")
	}
	if req.Headers != nil {
		for name, value := range req.Headers {
			httpReq.Header.Set(name, value)
		}
	} else {
		httpReq.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, errs.Mark(&Failure{
			Message: fmt.Sprintf("Connection error occurred while testing endpoint %s. Check if your server is available.", req.URL),
		}, errs.ErrRemoteUnreachable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errs.Mark(&Failure{
			Message: fmt.Sprintf("Failed to read the response from endpoint %s", req.URL),
		}, errs.ErrRemoteUnreachable)
	}

	snapshot := &Snapshot{
		URL:        callURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Payload:    string(payload),
		Body:       string(body),
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if !json.Valid(body) {
			return snapshot, nil, errs.Mark(
				errs.Newf("Response from the %s was not in a JSON format", req.URL),
				errs.ErrContractViolation,
			)
		}
		return snapshot, body, nil
	case http.StatusNoContent:
		return snapshot, nil, nil
	case http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusInternalServerError:
		return snapshot, body, nil
	default:
		return snapshot, nil, errs.Mark(&Failure{
			Message:  fmt.Sprintf("Unexpected status code %d from %s", resp.StatusCode, req.URL),
			Snapshot: snapshot,
		}, errs.ErrUnexpectedStatus)
	}
}
