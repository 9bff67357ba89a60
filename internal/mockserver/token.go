package mockserver

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"supplier-conformance/internal/pkg/errs"
)

// Reservation and booking IDs are self-contained tokens: base64 over a JSON
// array, with the '=' padding swapped for '!' to keep the IDs URL-safe.
// A token that does not decode is simply an ID the server never issued.

var ErrBadToken = errs.ErrBadToken

func encodeToken(parts []any) (string, error) {
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", errs.Wrap(err, "encode token")
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return strings.ReplaceAll(encoded, "=", "!"), nil
}

func decodeToken(token string) ([]json.RawMessage, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(token, "!", "="))
	if err != nil {
		return nil, errs.Mark(err, ErrBadToken)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, errs.Mark(err, ErrBadToken)
	}
	return parts, nil
}

type reservationToken struct {
	ExpiresAt  time.Time
	Quantities map[string]int
	ProductID  string
	BookedFor  time.Time
}

func encodeReservationID(t reservationToken) (string, error) {
	return encodeToken([]any{
		t.ExpiresAt.Format(time.RFC3339),
		t.Quantities,
		t.ProductID,
		t.BookedFor.Format("2006-01-02T15:04:05"),
	})
}

func decodeReservationID(reservationID string) (reservationToken, error) {
	parts, err := decodeToken(reservationID)
	if err != nil {
		return reservationToken{}, err
	}
	if len(parts) != 4 {
		return reservationToken{}, errs.Mark(errs.New("wrong token arity"), ErrBadToken)
	}
	var (
		token      reservationToken
		expiresRaw string
		bookedRaw  string
	)
	if err := json.Unmarshal(parts[0], &expiresRaw); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	if token.ExpiresAt, err = time.Parse(time.RFC3339, expiresRaw); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	if err := json.Unmarshal(parts[1], &token.Quantities); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	if err := json.Unmarshal(parts[2], &token.ProductID); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	if err := json.Unmarshal(parts[3], &bookedRaw); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	if token.BookedFor, err = time.Parse("2006-01-02T15:04:05", bookedRaw); err != nil {
		return reservationToken{}, errs.Mark(err, ErrBadToken)
	}
	return token, nil
}

type bookingToken struct {
	BookedFor  time.Time
	ProductID  string
	Quantities map[string]int
}

func encodeBookingID(t bookingToken) (string, error) {
	return encodeToken([]any{
		t.BookedFor.Format("2006-01-02T15:04:05"),
		t.ProductID,
		t.Quantities,
	})
}

func decodeBookingID(bookingID string) (bookingToken, error) {
	parts, err := decodeToken(bookingID)
	if err != nil {
		return bookingToken{}, err
	}
	if len(parts) != 3 {
		return bookingToken{}, errs.Mark(errs.New("wrong token arity"), ErrBadToken)
	}
	var (
		token     bookingToken
		bookedRaw string
	)
	if err := json.Unmarshal(parts[0], &bookedRaw); err != nil {
		return bookingToken{}, errs.Mark(err, ErrBadToken)
	}
	if token.BookedFor, err = time.Parse("2006-01-02T15:04:05", bookedRaw); err != nil {
		return bookingToken{}, errs.Mark(err, ErrBadToken)
	}
	if err := json.Unmarshal(parts[1], &token.ProductID); err != nil {
		return bookingToken{}, errs.Mark(err, ErrBadToken)
	}
	if err := json.Unmarshal(parts[2], &token.Quantities); err != nil {
		return bookingToken{}, errs.Mark(err, ErrBadToken)
	}
	return token, nil
}
