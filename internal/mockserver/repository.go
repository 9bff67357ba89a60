// Package mockserver is a reference implementation of the supplier protocol:
// a deterministic in-memory supplier the conformance tester can be pointed at.
package mockserver

import (
	"sync"
)

// Product is a fixture record. The fields beyond the wire schema drive the
// mock's behavior: barcode content type, pricing currency and how timeslot
// availability is aggregated.
type Product struct {
	ID                  string
	Name                string
	Description         string
	UseTimeslots        bool
	IsRefundable        bool
	CutoffTime          int
	MaxTicketsPerOrder  int
	RequiredOrderData   []string
	RequiredVisitorData []string

	BarcodeFormat string
	// Currency is non-empty for products that provide pricing.
	Currency string
	// TicketsAsSum: timeslot availability reports the sum over variants
	// instead of the day total.
	TicketsAsSum bool
}

func (p Product) ProvidesPricing() bool {
	return p.Currency != ""
}

// Repository holds the fixture catalog and the only mutable piece of state,
// the set of cancelled booking IDs.
type Repository struct {
	products []Product

	mu        sync.Mutex
	cancelled map[string]struct{}
}

func NewRepository() *Repository {
	return &Repository{
		products: []Product{
			{
				ID:                 "A300-FX",
				Name:               "A300-FX",
				UseTimeslots:       true,
				IsRefundable:       true,
				CutoffTime:         24,
				MaxTicketsPerOrder: 10,
				BarcodeFormat:      "CODE128",
				TicketsAsSum:       true,
			},
			{
				ID:                  "A400-FX",
				Name:                "A400-FX",
				Description:         "Test timeslot product",
				UseTimeslots:        true,
				IsRefundable:        false,
				MaxTicketsPerOrder:  10,
				RequiredVisitorData: []string{"full_name", "phone"},
				RequiredOrderData:   []string{"pickup_location", "passport_id"},
				BarcodeFormat:       "CODE128",
				Currency:            "USD",
			},
			{
				ID:                 "A500-FX",
				Name:               "A500-FX",
				Description:        "Test non timeslot product",
				IsRefundable:       true,
				MaxTicketsPerOrder: 25,
				RequiredOrderData:  []string{"pickup_location", "passport_id", "flight_number"},
				BarcodeFormat:      "CODE128",
			},
			{
				ID:                  "A550-FX",
				Name:                "A550-FX",
				Description:         "Test barcode",
				IsRefundable:        true,
				CutoffTime:          10,
				RequiredVisitorData: []string{"email", "date_of_birth"},
				BarcodeFormat:       "PDF",
			},
			{
				ID:                 "A600-FX",
				Name:               "A600-FX",
				IsRefundable:       false,
				MaxTicketsPerOrder: 5,
				RequiredOrderData:  []string{"nationality"},
				BarcodeFormat:      "CODE128",
			},
		},
		cancelled: map[string]struct{}{},
	}
}

func (r *Repository) Products() []Product {
	return r.products
}

func (r *Repository) Find(productID string) (Product, bool) {
	for _, p := range r.products {
		if p.ID == productID {
			return p, true
		}
	}
	return Product{}, false
}

func (r *Repository) MarkCancelled(bookingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[bookingID] = struct{}{}
}

func (r *Repository) IsCancelled(bookingID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancelled[bookingID]
	return ok
}
