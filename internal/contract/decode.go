package contract

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	"supplier-conformance/internal/pkg/errs"
)

// The decoders are strict on purpose: unknown fields, missing required
// fields and wrong field types are each a contract violation. Every failure
// names the offending field and is wrapped with the endpoint it came from.

func wrapEndpoint(endpoint string, err error) error {
	return errs.Mark(
		errs.Newf("Incorrect JSON format in response from the %s endpoint: %s", endpoint, err.Error()),
		errs.ErrDecodeFailed,
	)
}

func topLevelArray(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errs.Mark(errs.New("The response should be a JSON Array"), errs.ErrDecodeFailed)
	}
	return items, nil
}

func topLevelObject(body []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errs.Mark(errs.New("The response should be a JSON Object"), errs.ErrDecodeFailed)
	}
	return obj, nil
}

// fieldSet walks one JSON object, tracking which keys were consumed so that
// leftovers can be rejected. The first error wins; later accessors become
// no-ops, which keeps the call sites flat.
type fieldSet struct {
	obj  map[string]json.RawMessage
	seen map[string]bool
	err  error
}

func newFieldSet(raw json.RawMessage) (*fieldSet, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errs.New("each item should be a JSON Object")
	}
	return &fieldSet{obj: obj, seen: make(map[string]bool)}, nil
}

// take consumes one key. An explicit null counts as missing: only fields
// that go through nullableStr may carry one.
func (f *fieldSet) take(name string, required bool) (json.RawMessage, bool) {
	f.seen[name] = true
	raw, ok := f.obj[name]
	if !ok || string(raw) == "null" {
		if required {
			f.fail(errs.Newf("missing value for field %q", name))
		}
		return nil, false
	}
	return raw, true
}

func (f *fieldSet) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fieldSet) str(name string) string {
	raw, ok := f.take(name, true)
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be a string", name))
	}
	return v
}

// nullableStr requires the key to be present but tolerates an explicit null.
func (f *fieldSet) nullableStr(name string) *string {
	f.seen[name] = true
	raw, ok := f.obj[name]
	if !ok {
		f.fail(errs.Newf("missing value for field %q", name))
		return nil
	}
	if string(raw) == "null" {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be a string", name))
		return nil
	}
	return &v
}

func (f *fieldSet) optStrList(name string) []string {
	raw, ok := f.take(name, false)
	if !ok {
		return nil
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be an array of strings", name))
	}
	return v
}

func (f *fieldSet) integer(name string) int {
	raw, ok := f.take(name, true)
	if !ok {
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be an integer", name))
	}
	return v
}

func (f *fieldSet) boolean(name string) bool {
	raw, ok := f.take(name, true)
	if !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be a boolean", name))
	}
	return v
}

func (f *fieldSet) date(name string) Date {
	raw, ok := f.take(name, true)
	if !ok {
		return Date{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be a string", name))
		return Date{}
	}
	d, err := ParseDate(s)
	if err != nil {
		f.fail(errs.Newf("wrong value type for field %q - should be an ISO date (YYYY-MM-DD)", name))
	}
	return d
}

// finish rejects fields that no accessor consumed, mirroring the strictness
// of the reference implementation.
func (f *fieldSet) finish() error {
	if f.err != nil {
		return f.err
	}
	var extras []string
	for key := range f.obj {
		if !f.seen[key] {
			extras = append(extras, key)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		return errs.Newf("can not match %q to any field from the specification", extras[0])
	}
	return nil
}

func decodePrice(raw json.RawMessage) (*Price, error) {
	fs, err := newFieldSet(raw)
	if err != nil {
		return nil, err
	}
	p := Price{
		Currency: fs.str("currency"),
		Amount:   fs.str("amount"),
	}
	if err := fs.finish(); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeVariant(raw json.RawMessage, v Version) (Variant, error) {
	fs, err := newFieldSet(raw)
	if err != nil {
		return Variant{}, err
	}
	variant := Variant{ID: fs.str("id"), Name: fs.str("name")}
	if v == V1 {
		variant.AvailableTickets = fs.integer("max_tickets")
	} else {
		variant.AvailableTickets = fs.integer("available_tickets")
		if raw, ok := fs.take("price", false); ok {
			price, perr := decodePrice(raw)
			if perr != nil {
				fs.fail(perr)
			}
			variant.Price = price
		}
	}
	if err := fs.finish(); err != nil {
		return Variant{}, err
	}
	return variant, nil
}

func decodeVariantList(raw json.RawMessage, v Version) ([]Variant, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errs.New(`wrong value type for field "variants" - should be an array`)
	}
	variants := make([]Variant, 0, len(items))
	for _, item := range items {
		variant, err := decodeVariant(item, v)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// DecodeProducts parses the /products response. v1 catalogs carry fewer
// fields than v2 ones; both are strict about extras.
func DecodeProducts(body []byte, v Version) ([]Product, error) {
	const endpoint = "/products"
	items, err := topLevelArray(body)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(items))
	for _, item := range items {
		fs, err := newFieldSet(item)
		if err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		p := Product{
			ID:           fs.str("id"),
			Name:         fs.str("name"),
			Description:  fs.nullableStr("description"),
			UseTimeslots: fs.boolean("use_timeslots"),
			IsRefundable: fs.boolean("is_refundable"),
			CutoffTime:   fs.integer("cutoff_time"),
		}
		if v == V2 {
			p.ProvidesPricing = fs.boolean("provides_pricing")
			p.RequiredOrderData = fs.optStrList("required_order_data")
			p.RequiredVisitorData = fs.optStrList("required_visitor_data")
		}
		if err := fs.finish(); err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		if v == V2 {
			if err := checkVocabulary(p.RequiredOrderData, RequiredOrderDataFields, "required_order_data"); err != nil {
				return nil, wrapEndpoint(endpoint, err)
			}
			if err := checkVocabulary(p.RequiredVisitorData, RequiredVisitorDataFields, "required_visitor_data"); err != nil {
				return nil, wrapEndpoint(endpoint, err)
			}
		}
		products = append(products, p)
	}
	return products, nil
}

func checkVocabulary(values, allowed []string, field string) error {
	for _, value := range values {
		found := false
		for _, a := range allowed {
			if value == a {
				found = true
				break
			}
		}
		if !found {
			return errs.Newf("wrong value %q in field %q - not part of the specification", value, field)
		}
	}
	return nil
}

// DecodeDailyAvailability parses the v1 /dates response.
func DecodeDailyAvailability(body []byte) ([]DailyAvailability, error) {
	const endpoint = "/dates"
	items, err := topLevelArray(body)
	if err != nil {
		return nil, err
	}
	days := make([]DailyAvailability, 0, len(items))
	for _, item := range items {
		fs, err := newFieldSet(item)
		if err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		day := DailyAvailability{
			Date:       fs.date("date"),
			MaxTickets: fs.integer("max_tickets"),
		}
		if err := fs.finish(); err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		days = append(days, day)
	}
	return days, nil
}

// DecodeDailyVariants parses the v1 /variants response.
func DecodeDailyVariants(body []byte) ([]DailyVariants, error) {
	const endpoint = "/variants"
	items, err := topLevelArray(body)
	if err != nil {
		return nil, err
	}
	days := make([]DailyVariants, 0, len(items))
	for _, item := range items {
		fs, err := newFieldSet(item)
		if err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		day := DailyVariants{
			Date:             fs.date("date"),
			AvailableTickets: fs.integer("max_tickets"),
		}
		if raw, ok := fs.take("variants", true); ok {
			variants, verr := decodeVariantList(raw, V1)
			if verr != nil {
				fs.fail(verr)
			}
			day.Variants = variants
		}
		if err := fs.finish(); err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		days = append(days, day)
	}
	return days, nil
}

// DecodeTimeslots parses the v1 /timeslots response.
func DecodeTimeslots(body []byte) ([]Timeslot, error) {
	const endpoint = "/timeslots"
	items, err := topLevelArray(body)
	if err != nil {
		return nil, err
	}
	timeslots := make([]Timeslot, 0, len(items))
	for _, item := range items {
		fs, err := newFieldSet(item)
		if err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		slot := Timeslot{
			Date:       fs.date("date"),
			Start:      fs.str("start"),
			End:        fs.str("end"),
			MaxTickets: fs.integer("max_tickets"),
		}
		if raw, ok := fs.take("variants", true); ok {
			variants, verr := decodeVariantList(raw, V1)
			if verr != nil {
				fs.fail(verr)
			}
			slot.Variants = variants
		}
		if err := fs.finish(); err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		timeslots = append(timeslots, slot)
	}
	return timeslots, nil
}

// DecodeAvailabilityMap parses the v2 /availability response: an object keyed
// by "YYYY-MM-DDTHH:MM". Entries are returned sorted by key so downstream
// slot selection is deterministic.
func DecodeAvailabilityMap(body []byte) ([]DailyVariants, error) {
	const endpoint = "/availability"
	obj, err := topLevelObject(body)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	days := make([]DailyVariants, 0, len(keys))
	for _, key := range keys {
		at, err := time.Parse("2006-01-02T15:04", key)
		if err != nil {
			return nil, wrapEndpoint(endpoint, errs.Newf("incorrect availability key %q, please use the YYYY-MM-DDTHH:MM format", key))
		}
		fs, ferr := newFieldSet(obj[key])
		if ferr != nil {
			return nil, wrapEndpoint(endpoint, ferr)
		}
		day := DailyVariants{
			Date:             NewDate(at),
			Timeslot:         at.Format("15:04"),
			AvailableTickets: fs.integer("available_tickets"),
		}
		if raw, ok := fs.take("variants", true); ok {
			variants, verr := decodeVariantList(raw, V2)
			if verr != nil {
				fs.fail(verr)
			}
			day.Variants = variants
		}
		if err := fs.finish(); err != nil {
			return nil, wrapEndpoint(endpoint, err)
		}
		days = append(days, day)
	}
	return days, nil
}

// DecodeReservation parses the /reservation response.
func DecodeReservation(body []byte, v Version) (Reservation, error) {
	const endpoint = "/reservation"
	if _, err := topLevelObject(body); err != nil {
		return Reservation{}, err
	}
	fs, err := newFieldSet(body)
	if err != nil {
		return Reservation{}, wrapEndpoint(endpoint, err)
	}
	reservation := Reservation{ReservationID: fs.str("reservation_id")}
	if raw, ok := fs.take("expires_at", true); ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			fs.fail(errs.New(`wrong value type for field "expires_at" - should be a string`))
		} else {
			at, zoned, zone, perr := parseISODateTime(s)
			if perr != nil {
				fs.fail(errs.Newf(`wrong value type for field "expires_at" - %q is not an ISO datetime`, s))
			}
			reservation.ExpiresAt = at
			reservation.ExpiresAtZoned = zoned
			reservation.ExpiresAtZone = zone
		}
	}
	if v == V2 {
		if raw, ok := fs.take("unit_price", false); ok {
			var prices map[string]json.RawMessage
			if err := json.Unmarshal(raw, &prices); err != nil {
				fs.fail(errs.New(`wrong value type for field "unit_price" - should be a JSON Object`))
			} else {
				reservation.UnitPrice = make(map[string]Price, len(prices))
				for variantID, rawPrice := range prices {
					price, perr := decodePrice(rawPrice)
					if perr != nil {
						fs.fail(perr)
						break
					}
					reservation.UnitPrice[variantID] = *price
				}
			}
		}
	}
	if err := fs.finish(); err != nil {
		return Reservation{}, wrapEndpoint(endpoint, err)
	}
	return reservation, nil
}

// DecodeBooking parses the /booking response and enforces the cross-field
// barcode rules.
func DecodeBooking(body []byte, v Version) (Booking, error) {
	const endpoint = "/booking"
	if _, err := topLevelObject(body); err != nil {
		return Booking{}, err
	}
	fs, err := newFieldSet(body)
	if err != nil {
		return Booking{}, wrapEndpoint(endpoint, err)
	}
	scopeField := "barcode_scope"
	if v == V1 {
		scopeField = "barcode_position"
	}
	booking := Booking{
		BookingID:     fs.str("booking_id"),
		BarcodeFormat: fs.str("barcode_format"),
		BarcodeScope:  fs.str(scopeField),
	}
	booking.Barcode = optionalStr(fs, "barcode")
	if raw, ok := fs.take("tickets", false); ok {
		if err := json.Unmarshal(raw, &booking.Tickets); err != nil {
			fs.fail(errs.New(`wrong value type for field "tickets" - should be a JSON Object of arrays`))
		}
	}
	if err := fs.finish(); err != nil {
		return Booking{}, wrapEndpoint(endpoint, err)
	}

	if !containsString(BarcodeFormats, booking.BarcodeFormat) {
		return Booking{}, errs.Mark(
			errs.Newf("Incorrect barcode format (%s)", booking.BarcodeFormat), errs.ErrDecodeFailed)
	}
	if booking.BarcodeScope != BarcodeScopeOrder && booking.BarcodeScope != BarcodeScopeTicket {
		return Booking{}, errs.Mark(
			errs.Newf("Incorrect value in the %s field: %s", scopeField, booking.BarcodeScope), errs.ErrDecodeFailed)
	}
	if booking.BarcodeScope == BarcodeScopeOrder && (booking.Barcode == nil || *booking.Barcode == "") {
		return Booking{}, errs.Mark(errs.New("Barcode for the whole order is empty"), errs.ErrDecodeFailed)
	}
	if booking.BarcodeScope == BarcodeScopeTicket && len(booking.Tickets) == 0 {
		return Booking{}, errs.Mark(errs.New("Tickets Array is empty"), errs.ErrDecodeFailed)
	}
	if booking.BarcodeFormat == "PDF" {
		if err := validatePDFBarcodes(booking); err != nil {
			return Booking{}, err
		}
	}
	return booking, nil
}

func validatePDFBarcodes(booking Booking) error {
	switch booking.BarcodeScope {
	case BarcodeScopeOrder:
		if !CheckBase64(*booking.Barcode) {
			return errs.Mark(errs.New("Error while decoding (base64) PDF voucher for the order"), errs.ErrDecodeFailed)
		}
	case BarcodeScopeTicket:
		for _, barcodes := range booking.Tickets {
			for _, barcode := range barcodes {
				if !CheckBase64(barcode) {
					return errs.Mark(errs.New("Error while decoding (base64) PDF voucher for the ticket"), errs.ErrDecodeFailed)
				}
			}
		}
	}
	return nil
}

// DecodeAPIError unpacks a documented 400 error body. A success status with
// an error-shaped body is itself a violation.
func DecodeAPIError(status int, body []byte) (APIError, error) {
	if status >= 200 && status < 300 {
		return APIError{}, errs.Mark(
			errs.Newf("Expected HTTP 400 but got HTTP %d instead.", status), errs.ErrContractViolation)
	}
	if _, err := topLevelObject(body); err != nil {
		return APIError{}, errs.Mark(errs.New("400 error response should be a JSON Object"), errs.ErrDecodeFailed)
	}
	fs, err := newFieldSet(body)
	if err != nil {
		return APIError{}, errs.Mark(errs.Newf("Incorrect response format for 400 error: %s", err.Error()), errs.ErrDecodeFailed)
	}
	apiErr := APIError{
		ErrorCode: fs.integer("error_code"),
		Error:     fs.str("error"),
		Message:   fs.str("message"),
	}
	if err := fs.finish(); err != nil {
		return APIError{}, errs.Mark(errs.Newf("Incorrect response format for 400 error: %s", err.Error()), errs.ErrDecodeFailed)
	}
	return apiErr, nil
}

// CheckBase64 reports whether the value survives a base64 decode+encode
// round trip unchanged.
func CheckBase64(value string) bool {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(decoded) == value
}

func optionalStr(fs *fieldSet, name string) *string {
	raw, ok := fs.take(name, false)
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		fs.fail(errs.Newf("wrong value type for field %q - should be a string", name))
		return nil
	}
	return &v
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// parseISODateTime accepts the ISO-8601 shapes suppliers actually send:
// RFC3339 with or without fractional seconds, and naive datetimes without
// any zone. The zone name mirrors what a supplier sent: "UTC" for a zero
// offset, the literal offset otherwise, empty for naive values.
func parseISODateTime(s string) (t time.Time, zoned bool, zone string, err error) {
	zonedLayouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999999Z07:00",
		"2006-01-02T15:04Z07:00",
	}
	for _, layout := range zonedLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			_, offset := t.Zone()
			if offset == 0 {
				return t, true, "UTC", nil
			}
			return t, true, t.Format("-07:00"), nil
		}
	}
	naiveLayouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04",
	}
	for _, layout := range naiveLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			return t, false, "", nil
		}
	}
	return time.Time{}, false, "", errs.Newf("cannot parse %q as an ISO datetime", s)
}
