package probes

import (
	"context"
	"fmt"

	"supplier-conformance/internal/contract"
)

// Family-specific probes of the v1 /dates, /variants and /timeslots
// endpoints. The error-path probes shared by all families live in
// availability.go.

func datesResponseFormat(ctx context.Context, s *Session) (Result, error) {
	today := contract.Today()
	_, _, err := fetchDailyAvailability(ctx, s, today, today)
	return Result{}, err
}

func datesNext30Days(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	days, snapshot, err := fetchDailyAvailability(ctx, s, start, start.AddDays(30))
	if err != nil {
		return Result{}, err
	}
	sum := 0
	for _, day := range days {
		sum += day.MaxTickets
	}
	if sum <= 0 {
		return Result{}, failf(snapshot, "There is no availability for next 30 days")
	}
	return Result{}, nil
}

func variantsResponseFormat(ctx context.Context, s *Session) (Result, error) {
	today := contract.Today()
	_, _, err := fetchDailyVariants(ctx, s, today, today)
	return Result{}, err
}

func variantsNext30Days(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	days, snapshot, err := fetchDailyVariants(ctx, s, start, start.AddDays(30))
	if err != nil {
		return Result{}, err
	}
	sum := 0
	for _, day := range days {
		sum += day.AvailableTickets
	}
	if sum <= 0 {
		return Result{}, failf(snapshot, "There is no availability for next 30 days")
	}
	return checkVariantIdentity(days, snapshot, s.threshold())
}

func timeslotsResponseFormat(ctx context.Context, s *Session) (Result, error) {
	today := contract.Today()
	_, _, err := fetchTimeslots(ctx, s, today, today)
	return Result{}, err
}

func timeslotsNext30Days(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	timeslots, snapshot, err := fetchTimeslots(ctx, s, start, start.AddDays(30))
	if err != nil {
		return Result{}, err
	}
	sum := 0
	for _, t := range timeslots {
		sum += t.MaxTickets
	}
	if sum <= 0 {
		return Result{}, failf(snapshot, "There is no availability for next 30 days")
	}
	return Result{}, nil
}

// timeslotsSingleConstant flags products that offer exactly one timeslot at
// the same time every day. Those should be modelled as non-timeslot products.
func timeslotsSingleConstant(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	timeslots, _, err := fetchTimeslots(ctx, s, start, start.AddDays(30))
	if err != nil {
		return Result{}, err
	}
	dates := map[string]int{}
	windows := map[string]struct{}{}
	for _, t := range timeslots {
		dates[t.Date.String()]++
		windows[fmt.Sprintf("%s-%s", t.Start, t.End)] = struct{}{}
	}
	duplicatedDates := false
	for _, n := range dates {
		if n > 1 {
			duplicatedDates = true
			break
		}
	}
	if !duplicatedDates && len(windows) == 1 && len(timeslots) > 0 {
		// Heuristic: legitimate one-slot products exist, so this never fails.
		return Result{
			Severity: Warning,
			Message: "If a product contains only a single timeslot at the same time every day, " +
				"then please implement it as a non-timesloted product",
		}, nil
	}
	return Result{}, nil
}

func timeslotsDuplicates(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	timeslots, snapshot, err := fetchTimeslots(ctx, s, start, start.AddDays(30))
	if err != nil {
		return Result{}, err
	}
	unique := map[string]struct{}{}
	for _, t := range timeslots {
		unique[fmt.Sprintf("%s-%s-%s", t.Date, t.Start, t.End)] = struct{}{}
	}
	if len(unique) != len(timeslots) {
		return Result{}, failf(snapshot, "Timeslots cannot be duplicated")
	}
	return Result{}, nil
}
