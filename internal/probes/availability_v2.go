package probes

import (
	"context"
	"fmt"

	"supplier-conformance/internal/contract"
)

// Family-specific probes of the v2 unified /availability endpoint.

func availabilityNext30Days(ctx context.Context, s *Session) (Result, error) {
	start := contract.Today()
	days, snapshot, err := fetchAvailability(ctx, s, start, start.AddDays(30))
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

// availabilityProvidesPricing checks that a pricing product attaches a price
// to every variant in its availability. Products without provides_pricing get
// a skip-warning.
func availabilityProvidesPricing(ctx context.Context, s *Session) (Result, error) {
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

	tomorrow := contract.Tomorrow()
	days, snapshot, err := fetchAvailability(ctx, s, tomorrow, tomorrow)
	if err != nil {
		return Result{}, err
	}
	for _, day := range days {
		for _, variant := range day.Variants {
			if variant.Price == nil {
				return Result{}, failf(snapshot,
					"Product %s provides pricing but the availability does not include the price attribute for every variant.",
					s.ProductID)
			}
		}
	}
	return Result{}, nil
}

// availabilityTimeslotKeys ensures the object keys carry a real time-of-day
// for timeslot products and midnight for the rest.
func availabilityTimeslotKeys(ctx context.Context, s *Session) (Result, error) {
	products, _, err := fetchCatalog(ctx, s, nil)
	if err != nil {
		return Result{}, err
	}
	product, ok := findProduct(products, s.ProductID)
	if !ok {
		return Result{
			Severity: Warning,
			Message:  fmt.Sprintf("Skipping the test because product %s is not present in the catalog.", s.ProductID),
		}, nil
	}

	tomorrow := contract.Tomorrow()
	days, snapshot, err := fetchAvailability(ctx, s, tomorrow, tomorrow.AddDays(7))
	if err != nil {
		return Result{}, err
	}
	for _, day := range days {
		if !product.UseTimeslots && day.Timeslot != "00:00" {
			return Result{}, failf(snapshot,
				"Product %s does not use timeslots but the availability key %sT%s carries a time of day",
				s.ProductID, day.Date, day.Timeslot)
		}
		if product.UseTimeslots && day.Timeslot == "00:00" {
			return Result{}, failf(snapshot,
				"Product %s uses timeslots but the availability key %sT00:00 carries no time of day",
				s.ProductID, day.Date)
		}
	}
	return Result{}, nil
}
