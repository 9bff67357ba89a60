package mockserver

import (
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/mockserver/apierr"
	"supplier-conformance/internal/pkg/clock"
)

// Handler implements both protocol generations against the fixture
// repository. All time arithmetic goes through the clock so tests can pin it.
type Handler struct {
	repo *Repository
	clk  clock.Clock
}

func NewHandler(repo *Repository, clk clock.Clock) *Handler {
	return &Handler{repo: repo, clk: clk}
}

const reservationHold = 30 * time.Minute

func (h *Handler) v1Routes() []route {
	return []route{
		{Method: http.MethodGet, Path: "/products", Handler: h.listProducts(contract.V1)},
		{Method: http.MethodGet, Path: "/products/:product_id/dates", Handler: h.datesV1},
		{Method: http.MethodGet, Path: "/products/:product_id/variants", Handler: h.variantsV1},
		{Method: http.MethodGet, Path: "/products/:product_id/timeslots", Handler: h.timeslotsV1},
		{Method: http.MethodPost, Path: "/products/:product_id/reservation", Handler: h.reservation(contract.V1)},
		{Method: http.MethodPost, Path: "/booking", Handler: h.booking(contract.V1)},
		{Method: http.MethodDelete, Path: "/booking/:booking_id", Handler: h.cancelBooking},
	}
}

func (h *Handler) v2Routes() []route {
	return []route{
		{Method: http.MethodGet, Path: "/products", Handler: h.listProducts(contract.V2)},
		{Method: http.MethodGet, Path: "/products/:product_id/availability", Handler: h.availabilityV2},
		{Method: http.MethodPost, Path: "/products/:product_id/reservation", Handler: h.reservation(contract.V2)},
		{Method: http.MethodPost, Path: "/booking", Handler: h.booking(contract.V2)},
		{Method: http.MethodDelete, Path: "/booking/:booking_id", Handler: h.cancelBooking},
	}
}

func (h *Handler) today() time.Time {
	now := h.clk.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ---- request parsing ----------------------------------------------------

func malformedDatetimeLabel(version contract.Version) string {
	return contract.MalformedDatetimeLabel(version)
}

func missingArgument(name string) *apierr.BadRequest {
	return apierr.New(contract.CodeMissingArgument, contract.LabelMissingArgument,
		fmt.Sprintf("Required argument %q was not found", name))
}

func (h *Handler) queryDate(c *gin.Context, name string, version contract.Version) (time.Time, *apierr.BadRequest) {
	value := c.Query(name)
	if value == "" {
		return time.Time{}, missingArgument(name)
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apierr.New(contract.CodeMalformedDatetime, malformedDatetimeLabel(version),
			fmt.Sprintf("Incorrect date format %s, please use the YYYY-MM-DD format", value))
	}
	return day, nil
}

// dateRange validates the start/end query pair in the documented order:
// presence, format, ordering, past, width.
func (h *Handler) dateRange(c *gin.Context, version contract.Version) (start, end time.Time, bad *apierr.BadRequest) {
	if start, bad = h.queryDate(c, "start", version); bad != nil {
		return
	}
	if end, bad = h.queryDate(c, "end", version); bad != nil {
		return
	}
	if end.Before(start) {
		bad = apierr.New(contract.CodeIncorrectRange, contract.LabelIncorrectRange,
			"The end date cannot be earlier than start date")
		return
	}
	if start.Before(h.today()) {
		bad = apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
			"Cannot use the past date")
		return
	}
	if start.AddDate(0, MaxDateRangeMonths, 0).Before(end) {
		bad = apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
			fmt.Sprintf("Maximum date range is %d months", MaxDateRangeMonths))
		return
	}
	return
}

func (h *Handler) product(c *gin.Context) (Product, *apierr.BadRequest) {
	productID := c.Param("product_id")
	product, ok := h.repo.Find(productID)
	if !ok {
		return Product{}, apierr.New(contract.CodeMissingProduct, contract.LabelMissingProduct,
			fmt.Sprintf("Product with ID %s doesn't exist", productID))
	}
	return product, nil
}

func bindJSON(c *gin.Context) map[string]any {
	body := map[string]any{}
	_ = c.ShouldBindJSON(&body)
	return body
}

// ---- catalog ------------------------------------------------------------

func (h *Handler) serializeProduct(p Product, version contract.Version) gin.H {
	out := gin.H{
		"id":            p.ID,
		"name":          p.Name,
		"description":   nil,
		"use_timeslots": p.UseTimeslots,
		"is_refundable": p.IsRefundable,
		"cutoff_time":   p.CutoffTime,
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if version == contract.V2 {
		out["provides_pricing"] = p.ProvidesPricing()
		out["required_order_data"] = p.RequiredOrderData
		out["required_visitor_data"] = p.RequiredVisitorData
	}
	return out
}

func (h *Handler) listProducts(version contract.Version) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := c.Query("use_timeslots")
		out := make([]gin.H, 0, len(h.repo.Products()))
		for _, p := range h.repo.Products() {
			if filter == "true" && !p.UseTimeslots {
				continue
			}
			if filter == "false" && p.UseTimeslots {
				continue
			}
			out = append(out, h.serializeProduct(p, version))
		}
		c.JSON(http.StatusOK, out)
	}
}

// ---- availability -------------------------------------------------------

func serializeVariantV1(v variantAvailability) gin.H {
	return gin.H{"id": v.ID, "name": v.Name, "max_tickets": v.MaxTickets}
}

func (h *Handler) datesV1(c *gin.Context) {
	if _, bad := h.product(c); bad != nil {
		apierr.Abort(c, bad)
		return
	}
	start, end, bad := h.dateRange(c, contract.V1)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	out := make([]gin.H, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		availability := availabilityFor(day)
		out = append(out, gin.H{
			"date":        day.Format("2006-01-02"),
			"max_tickets": availability.MaxTickets,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) variantsV1(c *gin.Context) {
	product, bad := h.product(c)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	if product.UseTimeslots {
		apierr.Abort(c, apierr.New(contract.CodeNonTimeslotExpected, contract.LabelNonTimeslotExpected,
			fmt.Sprintf("Requested non timeslot availability for timeslot product ID %s", product.ID)))
		return
	}
	start, end, bad := h.dateRange(c, contract.V1)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	out := make([]gin.H, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		availability := availabilityFor(day)
		variants := make([]gin.H, 0, len(availability.Variants))
		for _, v := range availability.Variants {
			variants = append(variants, serializeVariantV1(v))
		}
		out = append(out, gin.H{
			"date":        day.Format("2006-01-02"),
			"max_tickets": availability.MaxTickets,
			"variants":    variants,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) timeslotsV1(c *gin.Context) {
	product, bad := h.product(c)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	if !product.UseTimeslots {
		apierr.Abort(c, apierr.New(contract.CodeTimeslotExpected, contract.LabelTimeslotExpected,
			fmt.Sprintf("Requested timeslot availability for non timeslot product ID %s", product.ID)))
		return
	}
	start, end, bad := h.dateRange(c, contract.V1)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	out := make([]gin.H, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		availability := availabilityFor(day)
		for _, slotStart := range timeslotStarts {
			variants := make([]gin.H, 0, len(availability.Variants))
			for _, v := range availability.Variants {
				variants = append(variants, serializeVariantV1(v))
			}
			out = append(out, gin.H{
				"date":        day.Format("2006-01-02"),
				"start":       slotStart,
				"end":         timeslotEnd(slotStart),
				"max_tickets": availability.MaxTickets,
				"variants":    variants,
			})
		}
	}
	c.JSON(http.StatusOK, out)
}

func variantPrice(p Product, variantID string) gin.H {
	return gin.H{
		"currency": p.Currency,
		"amount":   fmt.Sprintf("%s0.00", variantID),
	}
}

func (h *Handler) availabilityV2(c *gin.Context) {
	product, bad := h.product(c)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	start, end, bad := h.dateRange(c, contract.V2)
	if bad != nil {
		apierr.Abort(c, bad)
		return
	}
	out := gin.H{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		availability := availabilityFor(day)
		starts := []string{"00:00"}
		if product.UseTimeslots {
			starts = timeslotStarts
		}
		for _, slotStart := range starts {
			variants := make([]gin.H, 0, len(availability.Variants))
			for _, v := range availability.Variants {
				entry := gin.H{
					"id":                v.ID,
					"name":              v.Name,
					"available_tickets": v.MaxTickets,
				}
				if product.ProvidesPricing() {
					entry["price"] = variantPrice(product, v.ID)
				}
				variants = append(variants, entry)
			}
			out[fmt.Sprintf("%sT%s", day.Format("2006-01-02"), slotStart)] = gin.H{
				"available_tickets": availability.MaxTickets,
				"variants":          variants,
			}
		}
	}
	c.JSON(http.StatusOK, out)
}

// ---- reservation --------------------------------------------------------

// reservationDate extracts and validates the requested day: v1 sends a plain
// date, v2 a datetime.
func (h *Handler) reservationDate(body map[string]any, version contract.Version) (time.Time, *apierr.BadRequest) {
	field, layout, hint := "date", "2006-01-02", "YYYY-MM-DD"
	if version == contract.V2 {
		field, layout, hint = "datetime", "2006-01-02T15:04", "YYYY-MM-DDTHH:MM"
	}
	raw, ok := body[field].(string)
	if !ok || raw == "" {
		return time.Time{}, missingArgument(field)
	}
	at, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, apierr.New(contract.CodeMalformedDatetime, malformedDatetimeLabel(version),
			fmt.Sprintf("Incorrect date format %s, please use the %s format", raw, hint))
	}
	// v1 timeslot orders carry the slot start separately.
	if version == contract.V1 {
		if slot, ok := body["timeslot"].(string); ok {
			if start, serr := time.Parse("15:04", slot); serr == nil {
				at = at.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute)
			}
		}
	}
	return at, nil
}

func ticketsFromBody(body map[string]any) ([]map[string]any, *apierr.BadRequest) {
	rawTickets, ok := body["tickets"].([]any)
	if !ok || len(rawTickets) == 0 {
		return nil, missingArgument("tickets")
	}
	tickets := make([]map[string]any, 0, len(rawTickets))
	for _, raw := range rawTickets {
		ticket, ok := raw.(map[string]any)
		if !ok {
			return nil, missingArgument("tickets")
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (h *Handler) reservation(version contract.Version) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, bad := h.product(c)
		if bad != nil {
			apierr.Abort(c, bad)
			return
		}
		body := bindJSON(c)

		bookedFor, bad := h.reservationDate(body, version)
		if bad != nil {
			apierr.Abort(c, bad)
			return
		}
		day := time.Date(bookedFor.Year(), bookedFor.Month(), bookedFor.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(h.today()) {
			apierr.Abort(c, apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
				"Cannot use the past date"))
			return
		}
		if day.After(h.today().AddDate(0, MaxDateRangeMonths, 0)) {
			apierr.Abort(c, apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
				fmt.Sprintf("This date is too far ahead in the future. You can book max %d months ahead.", MaxDateRangeMonths)))
			return
		}

		tickets, bad := ticketsFromBody(body)
		if bad != nil {
			apierr.Abort(c, bad)
			return
		}
		if _, ok := body["customer"].(map[string]any); !ok {
			apierr.Abort(c, missingArgument("customer"))
			return
		}
		if version == contract.V2 {
			if bad := checkRequiredData(product, body, tickets); bad != nil {
				apierr.Abort(c, bad)
				return
			}
		}

		availability := availabilityFor(day)
		limits := map[string]int{}
		for _, v := range availability.Variants {
			limits[v.ID] = v.MaxTickets
		}
		quantities := map[string]int{}
		for _, ticket := range tickets {
			variantID, _ := ticket["variant_id"].(string)
			quantity := int(asFloat(ticket["quantity"]))
			if quantity > limits[variantID] {
				apierr.Abort(c, apierr.New(contract.CodeAvailabilityError, contract.LabelAvailabilityError,
					fmt.Sprintf("Quantity (%d) is not available anymore for a given variant (id: %s)", quantity, variantID)))
				return
			}
			quantities[variantID] = quantity
		}

		expiresAt := h.clk.Now().Add(reservationHold)
		reservationID, err := encodeReservationID(reservationToken{
			ExpiresAt:  expiresAt,
			Quantities: quantities,
			ProductID:  product.ID,
			BookedFor:  bookedFor,
		})
		if err != nil {
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}

		out := gin.H{
			"reservation_id": reservationID,
			"expires_at":     expiresAt.Format(time.RFC3339),
		}
		if version == contract.V2 && product.ProvidesPricing() {
			unitPrice := gin.H{}
			for variantID := range quantities {
				unitPrice[variantID] = variantPrice(product, variantID)
			}
			out["unit_price"] = unitPrice
		}
		c.JSON(http.StatusOK, out)
	}
}

func checkRequiredData(product Product, body map[string]any, tickets []map[string]any) *apierr.BadRequest {
	if len(product.RequiredOrderData) > 0 {
		if _, ok := body["required_order_data"].(map[string]any); !ok {
			return missingArgument("required_order_data")
		}
	}
	if len(product.RequiredVisitorData) > 0 {
		for _, ticket := range tickets {
			if _, ok := ticket["required_visitor_data"].([]any); !ok {
				return missingArgument("required_visitor_data")
			}
		}
	}
	return nil
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// ---- booking ------------------------------------------------------------

func (h *Handler) booking(version contract.Version) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := bindJSON(c)
		reservationID, _ := body["reservation_id"].(string)
		if reservationID == "" {
			apierr.Abort(c, missingArgument("reservation_id"))
			return
		}
		token, err := decodeReservationID(reservationID)
		if err != nil {
			apierr.Abort(c, apierr.New(contract.CodeIncorrectReservation, contract.LabelIncorrectReservation,
				"Given reservation ID is incorrect"))
			return
		}
		now := h.clk.Now()
		if now.After(token.ExpiresAt) {
			minutesAgo := int(math.Round(now.Sub(token.ExpiresAt).Minutes()))
			apierr.Abort(c, apierr.New(contract.CodeReservationExpired, contract.LabelReservationExpired,
				fmt.Sprintf("Your reservation has expired %d minutes ago", minutesAgo)))
			return
		}
		product, ok := h.repo.Find(token.ProductID)
		if !ok {
			apierr.Abort(c, apierr.New(contract.CodeIncorrectReservation, contract.LabelIncorrectReservation,
				"Given reservation ID is incorrect"))
			return
		}

		bookingID, err := encodeBookingID(bookingToken{
			BookedFor:  token.BookedFor,
			ProductID:  product.ID,
			Quantities: token.Quantities,
		})
		if err != nil {
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}

		scopeField := "barcode_scope"
		if version == contract.V1 {
			scopeField = "barcode_position"
		}
		out := gin.H{
			"booking_id":     bookingID,
			"barcode_format": product.BarcodeFormat,
		}
		if product.BarcodeFormat == "PDF" {
			out[scopeField] = contract.BarcodeScopeOrder
			voucher := fmt.Sprintf("voucher for %s on %s", product.ID, token.BookedFor.Format("2006-01-02"))
			out["barcode"] = base64.StdEncoding.EncodeToString([]byte(voucher))
		} else {
			out[scopeField] = contract.BarcodeScopeTicket
			codes := gin.H{}
			for variantID, quantity := range token.Quantities {
				barcodes := make([]string, 0, quantity)
				for i := 0; i < quantity; i++ {
					barcodes = append(barcodes, fmt.Sprintf("%010d", hashInt(fmt.Sprintf("%s%s%d", reservationID, variantID, i), 8)))
				}
				codes[variantID] = barcodes
			}
			out["tickets"] = codes
		}
		c.JSON(http.StatusCreated, out)
	}
}

func (h *Handler) cancelBooking(c *gin.Context) {
	bookingID := c.Param("booking_id")
	token, err := decodeBookingID(bookingID)
	if err != nil {
		apierr.Abort(c, apierr.New(contract.CodeMissingBooking, contract.LabelMissingBooking,
			fmt.Sprintf("Booking with ID %s doesn't exist", bookingID)))
		return
	}
	product, ok := h.repo.Find(token.ProductID)
	if !ok {
		apierr.Abort(c, apierr.New(contract.CodeMissingBooking, contract.LabelMissingBooking,
			fmt.Sprintf("Booking with ID %s doesn't exist", bookingID)))
		return
	}
	if !product.IsRefundable {
		apierr.Abort(c, apierr.New(contract.CodeCancellationRefused, contract.LabelCancellationRefused,
			"The booking cannot be cancelled, the product does not allow cancellations"))
		return
	}
	now := h.clk.Now()
	if token.BookedFor.Before(now) {
		apierr.Abort(c, apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
			"Cannot use the past date"))
		return
	}
	hoursInAdvance := int(math.Round(token.BookedFor.Sub(now).Hours()))
	if product.CutoffTime != 0 && product.CutoffTime > hoursInAdvance {
		apierr.Abort(c, apierr.New(contract.CodeIncorrectDate, contract.LabelIncorrectDate,
			fmt.Sprintf("The booking can only be cancelled %d hours in advance", product.CutoffTime)))
		return
	}
	if h.repo.IsCancelled(bookingID) {
		apierr.Abort(c, apierr.New(contract.CodeAlreadyCancelled, contract.LabelAlreadyCancelled,
			fmt.Sprintf("The booking with ID %s was already cancelled", bookingID)))
		return
	}
	h.repo.MarkCancelled(bookingID)
	c.Status(http.StatusNoContent)
}
