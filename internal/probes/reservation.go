package probes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// Reservation probes. Both protocol versions share the flow; they differ in
// the date field (v1 "date" YYYY-MM-DD, v2 "datetime" YYYY-MM-DDTHH:MM) and
// the v2 unit-price echo.

func (s *Session) reservationURL(productID string) string {
	return s.productURL(productID, "/reservation")
}

// reservationBody builds a valid reservation payload for the memoized slot.
func (s *Session) reservationBody(ctx context.Context, variantQuantity, minQuantity int) (map[string]any, error) {
	slot, err := s.reservationSlot(ctx)
	if err != nil {
		return nil, err
	}
	if s.Version == contract.V1 {
		return s.payloadFromSlot(slot, variantQuantity, minQuantity), nil
	}
	return s.reservationPayload(ctx, slot, variantQuantity, minQuantity)
}

func reservationMissingAPIKey(ctx context.Context, s *Session) (Result, error) {
	snapshot, _, err := s.post(ctx, s.reservationURL(s.ProductID), map[string]any{}, map[string]string{})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

func reservationIncorrectAPIKey(ctx context.Context, s *Session) (Result, error) {
	snapshot, _, err := s.post(ctx, s.reservationURL(s.ProductID), map[string]any{}, map[string]string{
		transport.HeaderAPIKey: "NON-EXISTING-API-KEY",
	})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

// reservationMissingArguments grows the payload one required field at a time:
// empty body, then with the date, then with tickets, expecting a 1000 error
// naming the next missing field at every step.
func reservationMissingArguments(ctx context.Context, s *Session) (Result, error) {
	slot, err := s.reservationSlot(ctx)
	if err != nil {
		return Result{}, err
	}

	dateField := "datetime"
	dateValue := reservationDatetime(slot, s.Timeslots)
	if s.Version == contract.V1 {
		dateField = "date"
		dateValue = contract.Tomorrow().String()
	}

	payload := map[string]any{}
	steps := []struct {
		missing string
		grow    func()
	}{
		{dateField, func() { payload[dateField] = dateValue }},
		{"tickets", func() {
			payload["tickets"] = []map[string]any{{
				"variant_id": slot.Variants[0].ID,
				"quantity":   1,
			}}
		}},
		{"customer", func() {}},
	}

	var warnings []string
	for _, step := range steps {
		snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
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
			Message:   fmt.Sprintf("Required argument %q was not found", step.missing),
		})
		if err != nil {
			return Result{}, err
		}
		if result.Severity == Warning {
			warnings = append(warnings, result.Message)
		}
		step.grow()
	}
	return collectWarnings(warnings), nil
}

func reservationNonExistingProduct(ctx context.Context, s *Session) (Result, error) {
	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	snapshot, body, err := s.post(ctx, s.reservationURL("NON-EXISTING-PRODUCT-ID"), payload, nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	// The message wording drifted between generations ("doesn't" vs "does
	// not"), so only the code and label are enforced here.
	if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeMissingProduct,
		Error:     contract.LabelMissingProduct,
		Message:   "Product with ID NON-EXISTING-PRODUCT-ID",
	}); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func reservationIncorrectDateFormat(ctx context.Context, s *Session) (Result, error) {
	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	const badDateFormat = "05/05/2020"
	expectedFormat := "YYYY-MM-DDTHH:MM"
	if s.Version == contract.V1 {
		payload["date"] = badDateFormat
		expectedFormat = "YYYY-MM-DD"
	} else {
		payload["datetime"] = badDateFormat
	}
	snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeMalformedDatetime,
		Error:     contract.MalformedDatetimeLabel(s.Version),
		Message:   fmt.Sprintf("Incorrect date format %s, please use the %s format", badDateFormat, expectedFormat),
	})
}

func reservationPastDate(ctx context.Context, s *Session) (Result, error) {
	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	yesterday := contract.Today().AddDays(-1)
	if s.Version == contract.V1 {
		payload["date"] = yesterday.String()
	} else {
		payload["datetime"] = fmt.Sprintf("%sT00:00", yesterday)
	}
	snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
	if err != nil {
		return Result{}, err
	}
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

func reservationNotAllowedMethods(ctx context.Context, s *Session) (Result, error) {
	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		snapshot, _, err := s.Client.Call(ctx, transport.Request{
			Method: method,
			URL:    s.reservationURL(s.ProductID),
			JSON:   payload,
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

// reservationRoundTrip reserves tickets for at least one variant and checks
// the expiry law: tz-aware, at least ~15 minutes ahead. v1 additionally
// insists the timezone is UTC.
func reservationRoundTrip(ctx context.Context, s *Session) (Result, error) {
	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
	if err != nil {
		return Result{}, err
	}
	reservation, err := contract.DecodeReservation(body, s.Version)
	if err != nil {
		return Result{}, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	if reservation.ReservationID == "" {
		return Result{}, failf(snapshot, "No reservation ID found")
	}
	if !reservation.ExpiresAtZoned {
		return Result{}, failf(snapshot, "Expiration time should have the timezone.")
	}
	if s.Version == contract.V1 && reservation.ExpiresAtZone != "UTC" {
		return Result{}, failf(snapshot, "Expiration time should be in the UTC timezone.")
	}
	if time.Now().UTC().Add(14 * time.Minute).After(reservation.ExpiresAt) {
		return Result{}, failf(snapshot, "Reservation should be held at least 15 minutes.")
	}
	return Result{}, nil
}

// reservationUnitPrices: products with provides_pricing must echo a unit
// price per reserved variant.
func reservationUnitPrices(ctx context.Context, s *Session) (Result, error) {
	products, _, err := fetchCatalog(ctx, s, nil)
	if err != nil {
		return Result{}, err
	}
	product, ok := findProduct(products, s.ProductID)
	if !ok || !product.ProvidesPricing {
		return Result{
			Severity: Warning,
			Message:  "Skipping the test because the product does not provide pricing.",
		}, nil
	}

	payload, err := s.reservationBody(ctx, 1, 2)
	if err != nil {
		return Result{}, err
	}
	snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
	if err != nil {
		return Result{}, err
	}
	reservation, err := contract.DecodeReservation(body, s.Version)
	if err != nil {
		return Result{}, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	if len(reservation.UnitPrice) == 0 {
		return Result{}, failf(snapshot,
			"Product %s provides pricing but the response does not include unit_price.", s.ProductID)
	}
	tickets, _ := payload["tickets"].([]map[string]any)
	for _, ticket := range tickets {
		variantID, _ := ticket["variant_id"].(string)
		price, ok := reservation.UnitPrice[variantID]
		if !ok {
			return Result{}, failf(snapshot,
				"Product %s provides pricing but the response is missing unit price for a variant", s.ProductID)
		}
		if price.Currency == "" || price.Amount == "" {
			return Result{}, failf(snapshot,
				"Product %s provides pricing but the response is missing unit price (amount, currency)", s.ProductID)
		}
	}
	return Result{}, nil
}
