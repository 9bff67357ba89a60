package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// Shared checks for the availability endpoint families. v1 exposes /dates,
// /variants and /timeslots; v2 collapses them into a single /availability
// object. The error-path expectations are identical across families, so each
// family file only binds an endpoint name to these helpers.

func (s *Session) availabilityURL(endpoint string) string {
	return s.productURL(s.ProductID, "/"+endpoint)
}

func fetchDailyAvailability(ctx context.Context, s *Session, start, end contract.Date) ([]contract.DailyAvailability, *transport.Snapshot, error) {
	snapshot, body, err := s.get(ctx, s.availabilityURL("dates"), dateRangeQuery(start, end), nil)
	if err != nil {
		return nil, snapshot, err
	}
	days, err := contract.DecodeDailyAvailability(body)
	if err != nil {
		return nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return days, snapshot, nil
}

func fetchDailyVariants(ctx context.Context, s *Session, start, end contract.Date) ([]contract.DailyVariants, *transport.Snapshot, error) {
	snapshot, body, err := s.get(ctx, s.availabilityURL("variants"), dateRangeQuery(start, end), nil)
	if err != nil {
		return nil, snapshot, err
	}
	days, err := contract.DecodeDailyVariants(body)
	if err != nil {
		return nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return days, snapshot, nil
}

func fetchTimeslots(ctx context.Context, s *Session, start, end contract.Date) ([]contract.Timeslot, *transport.Snapshot, error) {
	snapshot, body, err := s.get(ctx, s.availabilityURL("timeslots"), dateRangeQuery(start, end), nil)
	if err != nil {
		return nil, snapshot, err
	}
	timeslots, err := contract.DecodeTimeslots(body)
	if err != nil {
		return nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return timeslots, snapshot, nil
}

func fetchAvailability(ctx context.Context, s *Session, start, end contract.Date) ([]contract.DailyVariants, *transport.Snapshot, error) {
	snapshot, body, err := s.get(ctx, s.availabilityURL("availability"), dateRangeQuery(start, end), nil)
	if err != nil {
		return nil, snapshot, err
	}
	days, err := contract.DecodeAvailabilityMap(body)
	if err != nil {
		return nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return days, snapshot, nil
}

// checkForbidden asserts the exact auth contract: HTTP 403 with the fixed
// plain-text body. A wrong body with the right status is only a warning.
func checkForbidden(snapshot *transport.Snapshot) (Result, error) {
	if snapshot.StatusCode != http.StatusForbidden {
		return Result{}, failf(snapshot,
			`Incorrect status code "%d" when calling the API without the API-Key. Expected status code: "403".`,
			snapshot.StatusCode)
	}
	if snapshot.Body != contract.ForbiddenBody {
		return Result{
			Severity: Warning,
			Message: fmt.Sprintf("Incorrect text message %q. Expected message: %q.",
				snapshot.Body, contract.ForbiddenBody),
		}, nil
	}
	return Result{}, nil
}

func availabilityMissingAPIKey(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	snapshot, _, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(tomorrow, tomorrow), map[string]string{})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

func availabilityIncorrectAPIKey(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	snapshot, _, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(tomorrow, tomorrow), map[string]string{
		transport.HeaderAPIKey: "NON-EXISTING-API-KEY",
	})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

// availabilityMissingArguments drops start and end one at a time. The exact
// ordering/wording is implementation-defined, so mismatches collect into a
// single warning instead of failing.
func availabilityMissingArguments(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	var warnings []string

	cases := []struct {
		query   url.Values
		missing string
	}{
		{url.Values{"start": {tomorrow.String()}}, "end"},
		{url.Values{"end": {tomorrow.String()}}, "start"},
		{url.Values{}, "start"},
	}
	for _, tc := range cases {
		snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), tc.query, nil)
		if err != nil {
			return Result{}, err
		}
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		result, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeMissingArgument,
			Error:     contract.LabelMissingArgument,
			Message:   fmt.Sprintf("Required argument %q was not found", tc.missing),
		})
		if err != nil {
			return Result{}, err
		}
		if result.Severity == Warning {
			warnings = append(warnings, result.Message)
		}
	}
	return collectWarnings(warnings), nil
}

func availabilityNonExistingProduct(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	snapshot, body, err := s.get(ctx, s.productURL("NON-EXISTING-PRODUCT-ID", "/"+endpoint), dateRangeQuery(tomorrow, tomorrow), nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeMissingProduct,
		Error:     contract.LabelMissingProduct,
		Message:   "Product with ID NON-EXISTING-PRODUCT-ID doesn't exist",
	})
}

func availabilityIncorrectDateFormat(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	badFormat := tomorrow.Time().Format("02-01-2006")

	queries := []url.Values{
		{"start": {badFormat}, "end": {tomorrow.String()}},
		{"start": {tomorrow.String()}, "end": {badFormat}},
	}
	for _, query := range queries {
		snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), query, nil)
		if err != nil {
			return Result{}, err
		}
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeMalformedDatetime,
			Error:     contract.MalformedDatetimeLabel(s.Version),
			Message:   fmt.Sprintf("Incorrect date format %s, please use the YYYY-MM-DD format", badFormat),
		}); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

func availabilityEndBeforeStart(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	nextWeek := tomorrow.AddDays(7)
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(nextWeek, tomorrow), nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeIncorrectRange,
		Error:     contract.LabelIncorrectRange,
		Message:   "The end date cannot be earlier than start date",
	})
}

// availabilityPastStartDate: v1 requires the documented 2009 error; v2
// merely requires that no past day shows up in the answer.
func availabilityPastStartDate(ctx context.Context, s *Session, endpoint string) (Result, error) {
	today := contract.Today()
	yesterday := today.AddDays(-1)
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(yesterday, today), nil)
	if err != nil {
		return Result{}, err
	}
	if s.Version == contract.V1 {
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		return checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeIncorrectDate,
			Error:     contract.LabelIncorrectDate,
			Message:   "Cannot use the past date",
		})
	}
	if len(body) == 0 || snapshot.StatusCode != http.StatusOK {
		return Result{}, nil
	}
	days, err := contract.DecodeAvailabilityMap(body)
	if err != nil {
		return Result{}, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	for _, day := range days {
		if day.Date == yesterday {
			return Result{}, failf(snapshot, "Returned availability for date in the past: %s", yesterday)
		}
	}
	return Result{}, nil
}

// availabilityHugeDateRange: v1 documents a maximum range error; v2 leaves
// the behavior to the supplier, so any classified response passes.
func availabilityHugeDateRange(ctx context.Context, s *Session, endpoint string) (Result, error) {
	today := contract.Today()
	end := today.AddDays(365 * 10)
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(today, end), nil)
	if err != nil {
		return Result{}, err
	}
	if s.Version != contract.V1 {
		return Result{}, nil
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeIncorrectDate,
		Error:     contract.LabelIncorrectDate,
		Message:   "Maximum date range is",
	})
}

// availabilityEmptyRange asks for a window far beyond the booking horizon
// and expects nothing to be on sale there.
func availabilityEmptyRange(ctx context.Context, s *Session, endpoint string) (Result, error) {
	start := contract.Today().AddDays(300)
	end := start.AddDays(1)
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(start, end), nil)
	if err != nil {
		return Result{}, err
	}
	if snapshot.StatusCode != http.StatusOK || string(body) == "[]" || string(body) == "{}" || len(body) == 0 {
		return Result{}, nil
	}
	return Result{
		Severity: Warning,
		Message:  "Skipping that test because response is not empty.",
	}, nil
}

func availabilityNotAllowedMethods(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		snapshot, _, err := s.Client.Call(ctx, transport.Request{
			Method: method,
			URL:    s.availabilityURL(endpoint),
			Query:  dateRangeQuery(tomorrow, tomorrow),
		})
		if err != nil {
			return Result{}, err
		}
		if snapshot.StatusCode != http.StatusMethodNotAllowed {
			return Result{}, failf(snapshot,
				`Incorrect status code "%d" when calling the API via method %s. Expected status code: "405".`,
				snapshot.StatusCode, method)
		}
	}
	return Result{}, nil
}

func availabilityNonTimeslotProduct(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(tomorrow, tomorrow), nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeTimeslotExpected,
		Error:     contract.LabelTimeslotExpected,
		Message:   fmt.Sprintf("Requested timeslot availability for non timeslot product ID %s", s.ProductID),
	})
}

func availabilityTimeslotProduct(ctx context.Context, s *Session, endpoint string) (Result, error) {
	tomorrow := contract.Tomorrow()
	snapshot, body, err := s.get(ctx, s.availabilityURL(endpoint), dateRangeQuery(tomorrow, tomorrow), nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeNonTimeslotExpected,
		Error:     contract.LabelNonTimeslotExpected,
		Message:   fmt.Sprintf("Requested non timeslot availability for timeslot product ID %s", s.ProductID),
	})
}

// checkVariantIdentity enforces the cross-day variant invariants: one name
// always maps to one id (hard failure), and the distinct-id count per 7-day
// window stays under the configured threshold (heuristic warning, since large
// legitimate catalogs exist).
func checkVariantIdentity(days []contract.DailyVariants, snapshot *transport.Snapshot, threshold int) (Result, error) {
	variantIDs := map[string]struct{}{}
	nameToID := map[string]string{}
	daysCounter := 0
	for _, day := range days {
		daysCounter++
		for _, variant := range day.Variants {
			if knownID, ok := nameToID[variant.Name]; ok {
				if variant.ID != knownID {
					return Result{}, failf(snapshot, "Variant %s should always have the same ID.", variant.Name)
				}
			} else {
				nameToID[variant.Name] = variant.ID
			}
			variantIDs[variant.ID] = struct{}{}
		}
		if daysCounter == 7 {
			daysCounter = 0
			if len(variantIDs) > threshold {
				return Result{
					Severity: Warning,
					Message: fmt.Sprintf(
						"More than %d unique variants were found in a timespan of 7 days. "+
							"Make sure that this is not an error. Variants should not be unique for each day.",
						threshold),
				}, nil
			}
			variantIDs = map[string]struct{}{}
		}
	}
	return Result{}, nil
}

func collectWarnings(warnings []string) Result {
	if len(warnings) == 0 {
		return Result{}
	}
	return Result{Severity: Warning, Message: joinLines(warnings)}
}

func joinLines(lines []string) string {
	out := ""
	for i, line := range lines {
		if i > 0 {
			out += "\n "
		}
		out += line
	}
	return out
}
