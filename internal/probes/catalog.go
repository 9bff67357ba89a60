package probes

import (
	"context"
	"net/url"
)

// Catalog probes. The v1 generation exposes a use_timeslots query filter;
// v2 dropped it but added the required-data review.

func catalogGetProducts(ctx context.Context, s *Session) (Result, error) {
	_, _, err := fetchCatalog(ctx, s, nil)
	return Result{}, err
}

func catalogTimeslotFilter(ctx context.Context, s *Session, useTimeslots bool) (Result, error) {
	filter := "false"
	if useTimeslots {
		filter = "true"
	}
	products, snapshot, err := fetchCatalog(ctx, s, url.Values{"use_timeslots": {filter}})
	if err != nil {
		return Result{}, err
	}
	for _, product := range products {
		if product.UseTimeslots != useTimeslots {
			return Result{}, failf(snapshot, "Product %s with non matching use_timeslots returned", product.ID)
		}
	}
	return Result{}, nil
}

// catalogRequiredDataReview warns when any product demands additional order or
// visitor data. Requiring extra customer data should be a hard fulfillment
// requirement, not a default.
func catalogRequiredDataReview(ctx context.Context, s *Session) (Result, error) {
	products, _, err := fetchCatalog(ctx, s, nil)
	if err != nil {
		return Result{}, err
	}
	for _, product := range products {
		if len(product.RequiredOrderData) > 0 || len(product.RequiredVisitorData) > 0 {
			return Result{
				Severity: Warning,
				Message: "Note that the reseller already sends the main booker's name, email address " +
					"and phone number with each reservation. Requiring additional customer data either " +
					"at the order level (required_order_data) and/or for each individual travel group " +
					"member (required_visitor_data) should be done only if this is a hard requirement " +
					"for the fulfillment or visitor entrance process.",
			}, nil
		}
	}
	return Result{}, nil
}
