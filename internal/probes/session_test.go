//go:build unit

package probes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// fixtureSession wires a Session to a canned supplier handler so single
// probes can run against hand-built responses.
func fixtureSession(t *testing.T, version contract.Version, handler http.HandlerFunc) *Session {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Session{
		Client:    transport.NewClient("secret", 5*time.Second),
		BaseURL:   server.URL,
		ProductID: "P100",
		Version:   version,
	}
}

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}
}

func TestReservationSlotSelection(t *testing.T) {
	tomorrow := contract.Tomorrow()

	t.Run("prefers a day with more than one non-empty variant", func(t *testing.T) {
		body := fmt.Sprintf(`[
			{"date": "%s", "max_tickets": 0, "variants": []},
			{"date": "%s", "max_tickets": 5, "variants": [
				{"id": "1", "name": "Adult", "max_tickets": 5},
				{"id": "2", "name": "Child", "max_tickets": 0}
			]},
			{"date": "%s", "max_tickets": 9, "variants": [
				{"id": "1", "name": "Adult", "max_tickets": 4},
				{"id": "2", "name": "Child", "max_tickets": 5}
			]}
		]`, tomorrow, tomorrow.AddDays(1), tomorrow.AddDays(2))
		s := fixtureSession(t, contract.V1, serveJSON(body))

		slot, err := s.reservationSlot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tomorrow.AddDays(2).String(), slot.Date.String())

		again, err := s.reservationSlot(context.Background())
		require.NoError(t, err)
		assert.Same(t, slot, again)
	})

	t.Run("falls back to a single-variant day", func(t *testing.T) {
		body := fmt.Sprintf(`[
			{"date": "%s", "max_tickets": 0, "variants": []},
			{"date": "%s", "max_tickets": 5, "variants": [
				{"id": "1", "name": "Adult", "max_tickets": 5}
			]}
		]`, tomorrow, tomorrow.AddDays(1))
		s := fixtureSession(t, contract.V1, serveJSON(body))

		slot, err := s.reservationSlot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tomorrow.AddDays(1).String(), slot.Date.String())
	})

	t.Run("fails when everything is sold out", func(t *testing.T) {
		body := fmt.Sprintf(`[{"date": "%s", "max_tickets": 0, "variants": []}]`, tomorrow)
		s := fixtureSession(t, contract.V1, serveJSON(body))

		_, err := s.reservationSlot(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no availability in the next 30 days")
	})
}

func TestReservationRoundTripHold(t *testing.T) {
	tomorrow := contract.Tomorrow()
	variants := fmt.Sprintf(`[{"date": "%s", "max_tickets": 10, "variants": [
		{"id": "1", "name": "Adult", "max_tickets": 5},
		{"id": "2", "name": "Child", "max_tickets": 5}
	]}]`, tomorrow)

	serve := func(expires time.Time) *Session {
		return fixtureSession(t, contract.V1, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/reservation") {
				fmt.Fprintf(w, `{"reservation_id": "r1", "expires_at": %q}`, expires.Format(time.RFC3339))
				return
			}
			fmt.Fprint(w, variants)
		})
	}

	t.Run("expiry under 15 minutes fails", func(t *testing.T) {
		s := serve(time.Now().UTC().Add(10 * time.Minute))
		_, err := reservationRoundTrip(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "held at least 15 minutes")
	})

	t.Run("documented hold passes", func(t *testing.T) {
		s := serve(time.Now().UTC().Add(30 * time.Minute))
		result, err := reservationRoundTrip(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, Pass, result.Severity)
	})
}

func TestTimeslotsSingleConstantWarns(t *testing.T) {
	tomorrow := contract.Tomorrow()
	body := fmt.Sprintf(`[
		{"date": "%s", "start": "17:30", "end": "18:30", "max_tickets": 5, "variants": []},
		{"date": "%s", "start": "17:30", "end": "18:30", "max_tickets": 5, "variants": []}
	]`, tomorrow, tomorrow.AddDays(1))
	s := fixtureSession(t, contract.V1, serveJSON(body))
	s.Timeslots = true

	result, err := timeslotsSingleConstant(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, Warning, result.Severity)
	assert.Contains(t, result.Message, "single timeslot at the same time every day")
}

func TestAvailabilityTimeslotKeys(t *testing.T) {
	tomorrow := contract.Tomorrow()

	serve := func(useTimeslots bool, key string) *Session {
		catalog := fmt.Sprintf(`[{
			"id": "P100", "name": "Tour", "description": null,
			"use_timeslots": %t, "is_refundable": true, "cutoff_time": 0,
			"provides_pricing": false
		}]`, useTimeslots)
		availability := fmt.Sprintf(`{"%s": {"available_tickets": 5, "variants": []}}`, key)
		return fixtureSession(t, contract.V2, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/availability") {
				fmt.Fprint(w, availability)
				return
			}
			fmt.Fprint(w, catalog)
		})
	}

	t.Run("timeslot product must not key at midnight", func(t *testing.T) {
		_, err := availabilityTimeslotKeys(context.Background(), serve(true, tomorrow.String()+"T00:00"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carries no time of day")
	})

	t.Run("non-timeslot product must key at midnight", func(t *testing.T) {
		_, err := availabilityTimeslotKeys(context.Background(), serve(false, tomorrow.String()+"T17:30"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "carries a time of day")
	})

	t.Run("matching keys pass", func(t *testing.T) {
		result, err := availabilityTimeslotKeys(context.Background(), serve(true, tomorrow.String()+"T17:30"))
		require.NoError(t, err)
		assert.Equal(t, Pass, result.Severity)
	})
}
