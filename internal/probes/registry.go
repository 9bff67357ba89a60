package probes

import (
	"context"

	"supplier-conformance/internal/contract"
)

// Probe queues per target. The harness runs one queue sequentially; probe
// order within a queue matters only for readability of the report.

func bind(endpoint string, fn func(context.Context, *Session, string) (Result, error)) RunFunc {
	return func(ctx context.Context, s *Session) (Result, error) {
		return fn(ctx, s, endpoint)
	}
}

// Catalog returns the product-catalog queue for a protocol version.
func Catalog(v contract.Version) []Probe {
	if v == contract.V1 {
		return []Probe{
			{Title: "Get product catalog", Run: catalogGetProducts},
			{Title: "Get product catalog with use_timeslots=True query filter", Run: func(ctx context.Context, s *Session) (Result, error) {
				return catalogTimeslotFilter(ctx, s, true)
			}},
			{Title: "Get product catalog with use_timeslots=False query filter", Run: func(ctx context.Context, s *Session) (Result, error) {
				return catalogTimeslotFilter(ctx, s, false)
			}},
		}
	}
	return []Probe{
		{Title: "Get product catalog", Run: catalogRequiredDataReview},
	}
}

// Availability returns the availability queue. For v1 the shared date checks
// run against /dates plus exactly one of the /variants or /timeslots
// families, selected by the timeslots flag.
func Availability(v contract.Version, timeslots bool) []Probe {
	if v != contract.V1 {
		return []Probe{
			{Title: "Checking availability for the next 30 days", Run: availabilityNext30Days},
			{Title: "Request without API-Key", Run: bind("availability", availabilityMissingAPIKey)},
			{Title: "Request with incorrect API-Key", Run: bind("availability", availabilityIncorrectAPIKey)},
			{Title: "Testing missing argument errors", Run: bind("availability", availabilityMissingArguments)},
			{Title: "Testing availability for non existing product", Run: bind("availability", availabilityNonExistingProduct)},
			{Title: "Checking incorrect date format", Run: bind("availability", availabilityIncorrectDateFormat)},
			{Title: "Checking incorrect range error", Run: bind("availability", availabilityEndBeforeStart)},
			{Title: "Checking past date", Run: bind("availability", availabilityPastStartDate)},
			{Title: "Checking huge date range", Run: bind("availability", availabilityHugeDateRange)},
			{Title: "Testing methods that are not allowed", Run: bind("availability", availabilityNotAllowedMethods)},
			{Title: "Testing optional price attribute in availability", Run: availabilityProvidesPricing},
			{Title: "Checking availability object keys", Run: availabilityTimeslotKeys},
		}
	}

	queue := []Probe{
		{Title: "[Dates] Checking response format", Run: datesResponseFormat},
		{Title: "[Dates] Checking for any availability in the next 30 days", Run: datesNext30Days},
		{Title: "[Dates] Request without API-Key", Run: bind("dates", availabilityMissingAPIKey)},
		{Title: "[Dates] Request with incorrect API-Key", Run: bind("dates", availabilityIncorrectAPIKey)},
		{Title: "[Dates] Testing missing argument errors", Run: bind("dates", availabilityMissingArguments)},
		{Title: "[Dates] Testing availability for non existing product", Run: bind("dates", availabilityNonExistingProduct)},
		{Title: "[Dates] Checking incorrect date format", Run: bind("dates", availabilityIncorrectDateFormat)},
		{Title: "[Dates] Checking incorrect range error", Run: bind("dates", availabilityEndBeforeStart)},
		{Title: "[Dates] Checking past date", Run: bind("dates", availabilityPastStartDate)},
		{Title: "[Dates] Checking huge date range", Run: bind("dates", availabilityHugeDateRange)},
		{Title: "[Dates] Testing methods that are not allowed", Run: bind("dates", availabilityNotAllowedMethods)},
	}
	if timeslots {
		queue = append(queue,
			Probe{Title: "[Timeslots] Checking response format", Run: timeslotsResponseFormat},
			Probe{Title: "[Timeslots] Checking for any availability in the next 30 days", Run: timeslotsNext30Days},
			Probe{Title: "[Timeslots] Performing single timeslot check in the next 30 days", Run: timeslotsSingleConstant},
			Probe{Title: "[Timeslots] Performing duplicates check", Run: timeslotsDuplicates},
			Probe{Title: "[Timeslots] Request without API-Key", Run: bind("timeslots", availabilityMissingAPIKey)},
			Probe{Title: "[Timeslots] Request with incorrect API-Key", Run: bind("timeslots", availabilityIncorrectAPIKey)},
			Probe{Title: "[Timeslots] Testing missing argument errors", Run: bind("timeslots", availabilityMissingArguments)},
			Probe{Title: "[Timeslots] Testing availability for non existing product", Run: bind("timeslots", availabilityNonExistingProduct)},
			Probe{Title: "[Timeslots] Checking incorrect date format", Run: bind("timeslots", availabilityIncorrectDateFormat)},
			Probe{Title: "[Timeslots] Checking incorrect range error", Run: bind("timeslots", availabilityEndBeforeStart)},
			Probe{Title: "[Timeslots] Checking past date", Run: bind("timeslots", availabilityPastStartDate)},
			Probe{Title: "[Timeslots] Checking huge date range", Run: bind("timeslots", availabilityHugeDateRange)},
			Probe{Title: "[Timeslots] Checking empty availability", Run: bind("timeslots", availabilityEmptyRange)},
			Probe{Title: "[Timeslots] Testing methods that are not allowed", Run: bind("timeslots", availabilityNotAllowedMethods)},
			// a timeslot product asked for plain variant availability must say 1003
			Probe{Title: "[Variants] Testing errors on timeslot product", Run: bind("variants", availabilityTimeslotProduct)},
		)
	} else {
		queue = append(queue,
			Probe{Title: "[Variants] Checking response format", Run: variantsResponseFormat},
			Probe{Title: "[Variants] Checking availability for the next 30 days", Run: variantsNext30Days},
			Probe{Title: "[Variants] Request without API-Key", Run: bind("variants", availabilityMissingAPIKey)},
			Probe{Title: "[Variants] Request with incorrect API-Key", Run: bind("variants", availabilityIncorrectAPIKey)},
			Probe{Title: "[Variants] Testing missing argument errors", Run: bind("variants", availabilityMissingArguments)},
			Probe{Title: "[Variants] Testing availability for non existing product", Run: bind("variants", availabilityNonExistingProduct)},
			Probe{Title: "[Variants] Checking incorrect date format", Run: bind("variants", availabilityIncorrectDateFormat)},
			Probe{Title: "[Variants] Checking incorrect range error", Run: bind("variants", availabilityEndBeforeStart)},
			Probe{Title: "[Variants] Checking past date", Run: bind("variants", availabilityPastStartDate)},
			Probe{Title: "[Variants] Checking huge date range", Run: bind("variants", availabilityHugeDateRange)},
			Probe{Title: "[Variants] Checking empty availability", Run: bind("variants", availabilityEmptyRange)},
			Probe{Title: "[Variants] Testing methods that are not allowed", Run: bind("variants", availabilityNotAllowedMethods)},
			// a non-timeslot product asked for timeslots must say 1002
			Probe{Title: "[Timeslots] Testing errors on invalid (non-timeslot) product", Run: bind("timeslots", availabilityNonTimeslotProduct)},
		)
	}
	return queue
}

// Reservation returns the reservation queue.
func Reservation(v contract.Version) []Probe {
	queue := []Probe{
		{Title: "Request without API-Key", Run: reservationMissingAPIKey},
		{Title: "Request with incorrect API-Key", Run: reservationIncorrectAPIKey},
		{Title: "Testing missing argument errors", Run: reservationMissingArguments},
		{Title: "Reserving tickets for at least 1 variant", Run: reservationRoundTrip},
		{Title: "Testing reservation for non-existing product", Run: reservationNonExistingProduct},
		{Title: "Testing reservation with incorrect date format", Run: reservationIncorrectDateFormat},
		{Title: "Testing reservation with past date", Run: reservationPastDate},
		{Title: "Testing methods that are not allowed", Run: reservationNotAllowedMethods},
	}
	if v != contract.V1 {
		queue = append(queue, Probe{
			Title: "Testing reservation for product with provides_pricing=True",
			Run:   reservationUnitPrices,
		})
	}
	return queue
}

// Booking returns the booking queue.
func Booking(v contract.Version) []Probe {
	return []Probe{
		{Title: "Booking without the reservation ID", Run: bookingMissingReservationID},
		{Title: "Booking without the API key", Run: bookingMissingAPIKey},
		{Title: "Booking with incorrect API-Key", Run: bookingIncorrectAPIKey},
		{Title: "Testing methods that are not allowed", Run: bookingNotAllowedMethods},
		{Title: "Booking with incorrect reservation ID", Run: bookingIncorrectReservationID},
		{Title: "Booking tickets for at least 1 variant", Run: bookingRoundTrip},
		{Title: "Perform booking that will be cancelled", Run: bookingCancellationWorkflow},
	}
}
