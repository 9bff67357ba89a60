package probes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// reservationSlot finds a day (or timeslot) with bookable availability in the
// next 30 days and memoizes it, so the reservation and booking probes all
// exercise the same slot. Days with more than one non-empty variant are
// preferred: they let the booking probe verify per-variant ticket counts.
func (s *Session) reservationSlot(ctx context.Context) (*contract.DailyVariants, error) {
	if s.slotLoaded {
		if s.slot == nil {
			return nil, &CheckError{Message: "There is no availability in the next 30 days to test a reservation."}
		}
		return s.slot, nil
	}
	s.slotLoaded = true

	start := contract.Today()
	end := start.AddDays(30)

	var (
		days     []contract.DailyVariants
		snapshot *transport.Snapshot
		err      error
	)
	switch {
	case s.Version != contract.V1:
		days, snapshot, err = fetchAvailability(ctx, s, start, end)
	case s.Timeslots:
		var timeslots []contract.Timeslot
		timeslots, snapshot, err = fetchTimeslots(ctx, s, start, end)
		for _, t := range timeslots {
			days = append(days, contract.DailyVariants{
				Date:             t.Date,
				Timeslot:         t.Start,
				AvailableTickets: t.MaxTickets,
				Variants:         t.Variants,
			})
		}
	default:
		days, snapshot, err = fetchDailyVariants(ctx, s, start, end)
	}
	if err != nil {
		return nil, err
	}

	var single *contract.DailyVariants
	for i := range days {
		day := days[i]
		if len(day.Variants) == 0 || day.AvailableTickets <= 0 {
			continue
		}
		positive := 0
		for _, variant := range day.Variants {
			if variant.AvailableTickets > 0 {
				positive++
			}
		}
		if positive > 1 {
			s.slot = &days[i]
			return s.slot, nil
		}
		if single == nil {
			single = &days[i]
		}
	}
	if single == nil {
		return nil, &CheckError{
			Message:  "There is no availability in the next 30 days to test a reservation.",
			Snapshot: snapshot,
		}
	}
	s.slot = single
	return s.slot, nil
}

func fetchCatalog(ctx context.Context, s *Session, query url.Values) ([]contract.Product, *transport.Snapshot, error) {
	snapshot, body, err := s.get(ctx, s.url("/products"), query, nil)
	if err != nil {
		return nil, snapshot, err
	}
	products, err := contract.DecodeProducts(body, s.Version)
	if err != nil {
		return nil, snapshot, &CheckError{Message: err.Error(), Snapshot: snapshot}
	}
	return products, snapshot, nil
}

func findProduct(products []contract.Product, productID string) (contract.Product, bool) {
	for _, product := range products {
		if product.ID == productID {
			return product, true
		}
	}
	return contract.Product{}, false
}

var testCustomer = map[string]any{
	"first_name": "Jon",
	"last_name":  "Snow",
	"email":      "tests@example.org",
	"phone":      "+31 85 888 4442",
	"country":    "NL",
}

// reservationDatetime renders the v2 datetime field for a slot; non-timeslot
// products book the whole day at midnight.
func reservationDatetime(slot *contract.DailyVariants, useTimeslots bool) string {
	if useTimeslots && slot.Timeslot != "" {
		return fmt.Sprintf("%sT%s", slot.Date, slot.Timeslot)
	}
	return fmt.Sprintf("%sT00:00", slot.Date)
}

type ticketChoice struct {
	VariantID string
	Quantity  int
}

// ticketSelection picks the variants to reserve: every variant holding at
// least minQuantity tickets, or failing that the best-stocked variant with
// whatever quantity it can still take.
func ticketSelection(slot *contract.DailyVariants, variantQuantity, minQuantity int) []ticketChoice {
	choices := make([]ticketChoice, 0, len(slot.Variants))
	for _, variant := range slot.Variants {
		if variant.AvailableTickets >= minQuantity {
			choices = append(choices, ticketChoice{VariantID: variant.ID, Quantity: variantQuantity})
		}
	}
	if len(choices) > 0 {
		return choices
	}
	best := -1
	for i, variant := range slot.Variants {
		if variant.AvailableTickets > 0 && (best == -1 || variant.AvailableTickets > slot.Variants[best].AvailableTickets) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	quantity := variantQuantity
	if slot.Variants[best].AvailableTickets < quantity {
		quantity = slot.Variants[best].AvailableTickets
	}
	return []ticketChoice{{VariantID: slot.Variants[best].ID, Quantity: quantity}}
}

// payloadFromSlot builds the v1 reservation body.
func (s *Session) payloadFromSlot(slot *contract.DailyVariants, variantQuantity, minQuantity int) map[string]any {
	choices := ticketSelection(slot, variantQuantity, minQuantity)
	tickets := make([]map[string]any, 0, len(choices))
	for _, choice := range choices {
		tickets = append(tickets, map[string]any{
			"variant_id": choice.VariantID,
			"quantity":   choice.Quantity,
		})
	}
	payload := map[string]any{
		"date":     slot.Date.String(),
		"tickets":  tickets,
		"customer": testCustomer,
	}
	if s.Timeslots && slot.Timeslot != "" {
		payload["timeslot"] = slot.Timeslot
	}
	return payload
}

// reservationPayload builds the v2 reservation body, consulting the catalog
// for the product's required order/visitor data so conforming values can be
// attached.
func (s *Session) reservationPayload(ctx context.Context, slot *contract.DailyVariants, variantQuantity, minQuantity int) (map[string]any, error) {
	products, snapshot, err := fetchCatalog(ctx, s, nil)
	if err != nil {
		return nil, err
	}
	product, ok := findProduct(products, s.ProductID)
	if !ok {
		return nil, &CheckError{
			Message:  fmt.Sprintf("Product %s is not present in the catalog", s.ProductID),
			Snapshot: snapshot,
		}
	}

	choices := ticketSelection(slot, variantQuantity, minQuantity)
	tickets := make([]map[string]any, 0, len(choices))
	for _, choice := range choices {
		ticket := map[string]any{
			"variant_id": choice.VariantID,
			"quantity":   choice.Quantity,
		}
		if len(product.RequiredVisitorData) > 0 {
			ticket["required_visitor_data"] = visitorDataPayload(product.RequiredVisitorData, choice.Quantity)
		}
		tickets = append(tickets, ticket)
	}

	payload := map[string]any{
		"datetime": reservationDatetime(slot, product.UseTimeslots),
		"customer": testCustomer,
		"tickets":  tickets,
	}
	if len(product.RequiredOrderData) > 0 {
		orderData := map[string]any{}
		for _, field := range product.RequiredOrderData {
			orderData[field] = "test " + strings.ToLower(field)
		}
		payload["required_order_data"] = orderData
	}
	return payload, nil
}

func visitorDataPayload(fields []string, quantity int) []map[string]any {
	visitors := make([]map[string]any, 0, quantity)
	for i := 1; i <= quantity; i++ {
		data := map[string]any{}
		for _, field := range fields {
			data[field] = "test " + strings.ToLower(field) + " " + strconv.Itoa(i)
		}
		visitors = append(visitors, data)
	}
	return visitors
}
