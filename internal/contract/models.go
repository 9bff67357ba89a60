// Package contract holds the data schemas and the fixed error taxonomy of the
// supplier ticketing protocol, together with the strict response decoders the
// probes feed every supplier response through. Pure data and validation, no I/O.
package contract

import (
	"fmt"
	"time"
)

// Version selects which generation of the wire protocol is exercised.
// The two versions share most semantics and differ in date encoding and a
// handful of endpoints.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// BasePath returns the URL prefix of this protocol version, e.g. "/v2".
func (v Version) BasePath() string {
	return fmt.Sprintf("/v%d", int(v))
}

// Allowed vocabulary for required_order_data (v2 catalog).
var RequiredOrderDataFields = []string{
	"pickup_location",
	"dropoff_location",
	"nationality",
	"flight_number",
	"passport_id",
}

// Allowed vocabulary for required_visitor_data (v2 catalog).
var RequiredVisitorDataFields = []string{
	"full_name",
	"email",
	"phone",
	"address",
	"passport_id",
	"date_of_birth",
}

type Product struct {
	ID           string
	Name         string
	Description  *string
	UseTimeslots bool
	IsRefundable bool
	// Minimum hours before slot start after which cancellation is
	// disallowed. Zero means no cutoff.
	CutoffTime int

	// v2 only.
	ProvidesPricing     bool
	RequiredOrderData   []string
	RequiredVisitorData []string
}

type Price struct {
	Currency string
	Amount   string
}

func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.Amount, p.Currency)
}

// Variant is a bookable sub-category of a product/date (e.g. Adult/Child)
// with its own availability and, for pricing products, a unit price.
type Variant struct {
	ID               string
	Name             string
	AvailableTickets int
	Price            *Price
}

// DailyAvailability is one row of the v1 /dates endpoint.
type DailyAvailability struct {
	Date       Date
	MaxTickets int
}

// DailyVariants is one row of the v1 /variants endpoint and, with the
// Timeslot component filled in, one entry of the v2 /availability object.
type DailyVariants struct {
	Date             Date
	Timeslot         string // "HH:MM", empty for v1 non-timeslot rows
	AvailableTickets int
	Variants         []Variant
}

// Timeslot is one row of the v1 /timeslots endpoint.
type Timeslot struct {
	Date       Date
	Start      string
	End        string
	MaxTickets int
	Variants   []Variant
}

type Reservation struct {
	ReservationID string
	ExpiresAt     time.Time
	// True when the expires_at value carried an explicit timezone.
	ExpiresAtZoned bool
	// Timezone name as sent, e.g. "UTC" or "+02:00". Empty when naive.
	ExpiresAtZone string
	// v2, present when the product provides pricing.
	UnitPrice map[string]Price
}

type Booking struct {
	BookingID     string
	BarcodeFormat string
	// "order" or "ticket". v1 wire name is barcode_position, v2 barcode_scope.
	BarcodeScope string
	Barcode      *string
	Tickets      map[string][]string
}

var BarcodeFormats = []string{"QRCODE", "CODE128", "CODE39", "ITF", "DATAMATRIX", "EAN13", "PDF"}

const (
	BarcodeScopeOrder  = "order"
	BarcodeScopeTicket = "ticket"
)

// APIError is the JSON body of every documented HTTP 400 response.
type APIError struct {
	ErrorCode int
	Error     string
	Message   string
}

// Date is a calendar day without time-of-day, serialized as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func Today() Date {
	return NewDate(time.Now().UTC())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Time().AddDate(0, 0, n))
}

func (d Date) AddMonths(n int) Date {
	return NewDate(d.Time().AddDate(0, n, 0))
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

func Tomorrow() Date {
	return Today().AddDays(1)
}
