package probes

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// Booking probes: turning a reservation into tickets, and the cancellation
// workflow.

func (s *Session) bookingURL() string {
	return s.url("/booking")
}

func bookingMissingReservationID(ctx context.Context, s *Session) (Result, error) {
	snapshot, body, err := s.post(ctx, s.bookingURL(), map[string]any{}, nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeMissingArgument,
		Error:     contract.LabelMissingArgument,
		Message:   `Required argument "reservation_id" was not found`,
	})
}

func bookingMissingAPIKey(ctx context.Context, s *Session) (Result, error) {
	snapshot, _, err := s.post(ctx, s.bookingURL(), map[string]any{}, map[string]string{})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

func bookingIncorrectAPIKey(ctx context.Context, s *Session) (Result, error) {
	snapshot, _, err := s.post(ctx, s.bookingURL(), map[string]any{}, map[string]string{
		transport.HeaderAPIKey: "NON-EXISTING-API-KEY",
	})
	if err != nil {
		return Result{}, err
	}
	return checkForbidden(snapshot)
}

func bookingNotAllowedMethods(ctx context.Context, s *Session) (Result, error) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		snapshot, _, err := s.Client.Call(ctx, transport.Request{
			Method: method,
			URL:    s.bookingURL(),
			JSON:   map[string]any{},
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

// bookingIncorrectReservationID posts a syntactically well-formed token that
// was never issued.
func bookingIncorrectReservationID(ctx context.Context, s *Session) (Result, error) {
	snapshot, body, err := s.post(ctx, s.bookingURL(), map[string]any{
		"reservation_id": "Tk9OLUVYSVNUSU5HLUlECg!!",
	}, nil)
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeIncorrectReservation,
		Error:     contract.LabelIncorrectReservation,
		Message:   "Given reservation ID is incorrect",
	})
}

// reserve performs a reservation and returns the decoded result together
// with the variant→quantity map that was requested.
func (s *Session) reserve(ctx context.Context, variantQuantity, minQuantity int) (contract.Reservation, map[string]int, *transport.Snapshot, error) {
	payload, err := s.reservationBody(ctx, variantQuantity, minQuantity)
	if err != nil {
		return contract.Reservation{}, nil, nil, err
	}
	quantities := map[string]int{}
	if tickets, ok := payload["tickets"].([]map[string]any); ok {
		for _, ticket := range tickets {
			variantID, _ := ticket["variant_id"].(string)
			quantity, _ := ticket["quantity"].(int)
			quantities[variantID] = quantity
		}
	}
	snapshot, body, err := s.post(ctx, s.reservationURL(s.ProductID), payload, nil)
	if err != nil {
		return contract.Reservation{}, nil, snapshot, err
	}
	reservation, err := contract.DecodeReservation(body, s.Version)
	if err != nil {
		return contract.Reservation{}, nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return reservation, quantities, snapshot, nil
}

func (s *Session) book(ctx context.Context, reservationID string, withReference bool) (contract.Booking, *transport.Snapshot, error) {
	payload := map[string]any{"reservation_id": reservationID}
	if withReference {
		payload["order_reference"] = uuid.NewString()
	}
	snapshot, body, err := s.post(ctx, s.bookingURL(), payload, nil)
	if err != nil {
		return contract.Booking{}, snapshot, err
	}
	booking, err := contract.DecodeBooking(body, s.Version)
	if err != nil {
		return contract.Booking{}, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return booking, snapshot, nil
}

// bookingRoundTrip books two tickets per variant and, for ticket-scoped
// barcodes, verifies the server returned exactly as many codes per variant as
// were reserved.
func bookingRoundTrip(ctx context.Context, s *Session) (Result, error) {
	reservation, quantities, _, err := s.reserve(ctx, 2, 3)
	if err != nil {
		return Result{}, err
	}
	booking, snapshot, err := s.book(ctx, reservation.ReservationID, true)
	if err != nil {
		return Result{}, err
	}
	if booking.BarcodeScope == contract.BarcodeScopeTicket {
		for variantID, quantity := range quantities {
			codes, ok := booking.Tickets[variantID]
			if !ok {
				return Result{}, failf(snapshot, "No tickets for variant %s", variantID)
			}
			if len(codes) != quantity {
				return Result{}, failf(snapshot,
					"Expected %d codes for variant %s but got only %d", quantity, variantID, len(codes))
			}
		}
	}
	return Result{}, nil
}

// bookingCancellationWorkflow drives the full cancellation state machine:
// book, cancel, re-cancel, cancel a booking that never existed.
func bookingCancellationWorkflow(ctx context.Context, s *Session) (Result, error) {
	slot, err := s.reservationSlot(ctx)
	if err != nil {
		return Result{}, err
	}
	reservation, _, _, err := s.reserve(ctx, 2, 3)
	if err != nil {
		return Result{}, err
	}
	booking, _, err := s.book(ctx, reservation.ReservationID, false)
	if err != nil {
		return Result{}, err
	}

	products, catalogSnapshot, err := fetchCatalog(ctx, s, nil)
	if err != nil {
		return Result{}, err
	}
	product, ok := findProduct(products, s.ProductID)
	if !ok {
		return Result{}, failf(catalogSnapshot, "Product %s is not present in the catalog", s.ProductID)
	}

	cancelURL := s.bookingURL() + "/" + booking.BookingID
	snapshot, body, err := s.Client.Call(ctx, transport.Request{
		Method: http.MethodDelete,
		URL:    cancelURL,
	})
	if err != nil {
		return Result{}, err
	}

	if !product.IsRefundable {
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeCancellationRefused,
			Error:     contract.LabelCancellationRefused,
			Message:   "The booking cannot be cancelled, the product does not allow cancellations",
		}); err != nil {
			return Result{}, err
		}
		return Result{
			Severity: Warning,
			Message:  "Skipping that test because the product does not support cancellations",
		}, nil
	}

	slotTime := slot.Date.Time()
	if product.UseTimeslots && slot.Timeslot != "" {
		if t, perr := time.Parse("2006-01-02 15:04", fmt.Sprintf("%s %s", slot.Date, slot.Timeslot)); perr == nil {
			slotTime = t
		}
	}
	now := time.Now().UTC()

	if slotTime.Before(now) {
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeIncorrectDate,
			Error:     contract.LabelIncorrectDate,
			Message:   "Cannot use the past date",
		}); err != nil {
			return Result{}, err
		}
	}

	hoursInAdvance := int(math.Round(slotTime.Sub(now).Hours()))
	withinCutoff := product.CutoffTime != 0 && product.CutoffTime > hoursInAdvance
	if withinCutoff {
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeIncorrectDate,
			Error:     contract.LabelIncorrectDate,
			Message:   fmt.Sprintf("The booking can only be cancelled %d hours in advance", product.CutoffTime),
		}); err != nil {
			return Result{}, err
		}
	}

	// second DELETE: only a booking that was actually cancelled reports 3003
	snapshot, body, err = s.Client.Call(ctx, transport.Request{
		Method: http.MethodDelete,
		URL:    cancelURL,
	})
	if err != nil {
		return Result{}, err
	}
	if slotTime.After(now) && !withinCutoff {
		apiErr, err := getAPIError(snapshot, body)
		if err != nil {
			return Result{}, err
		}
		if _, err := checkAPIError(snapshot, apiErr, contract.ExpectedError{
			ErrorCode: contract.CodeAlreadyCancelled,
			Error:     contract.LabelAlreadyCancelled,
			Message:   fmt.Sprintf("The booking with ID %s was already cancelled", booking.BookingID),
		}); err != nil {
			return Result{}, err
		}
	}

	// cancelling a booking that never existed
	const unknownID = "I-DO-NOT-EXIST"
	snapshot, body, err = s.Client.Call(ctx, transport.Request{
		Method: http.MethodDelete,
		URL:    s.bookingURL() + "/" + unknownID,
	})
	if err != nil {
		return Result{}, err
	}
	apiErr, err := getAPIError(snapshot, body)
	if err != nil {
		return Result{}, err
	}
	return checkAPIError(snapshot, apiErr, contract.ExpectedError{
		ErrorCode: contract.CodeMissingBooking,
		Error:     contract.LabelMissingBooking,
		Message:   fmt.Sprintf("Booking with ID %s doesn't exist", unknownID),
	})
}
