//go:build unit

package mockserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/pkg/clock"
	"supplier-conformance/internal/pkg/config"
)

// The mock clock is pinned to a Tuesday morning so "tomorrow" is always a
// weekday with availability.
var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, clk clock.Clock) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	cfg := config.NewTestConfig()
	NewRouter(engine, cfg, NewHandler(NewRepository(), clk), slog.New(slog.NewTextHandler(io.Discard, nil)))
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("API-Key", "secret")
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) contract.APIError {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, recorder.Code, "body: %s", recorder.Body.String())
	var out struct {
		ErrorCode int    `json:"error_code"`
		Error     string `json:"error"`
		Message   string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return contract.APIError{ErrorCode: out.ErrorCode, Error: out.Error, Message: out.Message}
}

func TestAuthContract(t *testing.T) {
	engine := newTestServer(t, clock.NewMockClock(testNow))

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
		recorder := httptest.NewRecorder()
		engine.ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, contract.ForbiddenBody, recorder.Body.String())
	})

	t.Run("wrong key", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products", "", map[string]string{"API-Key": "wrong"})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
		assert.Equal(t, contract.ForbiddenBody, recorder.Body.String())
	})

	t.Run("unknown method yields 405", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/dates", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	engine := newTestServer(t, clock.NewMockClock(testNow))

	t.Run("v1 catalog decodes", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		products, err := contract.DecodeProducts(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		assert.Len(t, products, 5)
	})

	t.Run("v1 use_timeslots filter", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products?use_timeslots=true", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		products, err := contract.DecodeProducts(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		require.NotEmpty(t, products)
		for _, p := range products {
			assert.True(t, p.UseTimeslots)
		}
	})

	t.Run("v2 catalog decodes with extended fields", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v2/products", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		products, err := contract.DecodeProducts(recorder.Body.Bytes(), contract.V2)
		require.NoError(t, err)

		var pricing int
		for _, p := range products {
			if p.ProvidesPricing {
				pricing++
			}
		}
		assert.Equal(t, 1, pricing)
	})
}

func TestAvailabilityValidationOrder(t *testing.T) {
	engine := newTestServer(t, clock.NewMockClock(testNow))

	t.Run("unknown product wins over bad dates", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/NOPE/dates?start=xx&end=yy", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMissingProduct, apiErr.ErrorCode)
		assert.Equal(t, "Product with ID NOPE doesn't exist", apiErr.Message)
	})

	t.Run("missing end", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/dates?start=2026-09-02", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMissingArgument, apiErr.ErrorCode)
		assert.Equal(t, `Required argument "end" was not found`, apiErr.Message)
	})

	t.Run("bad date format carries the v1 label", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/dates?start=02-09-2026&end=2026-09-05", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMalformedDatetime, apiErr.ErrorCode)
		assert.Equal(t, contract.LabelMalformedDatetimeV1, apiErr.Error)
	})

	t.Run("bad date format carries the v2 label", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v2/products/A300-FX/availability?start=02-09-2026&end=2026-09-05", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMalformedDatetime, apiErr.ErrorCode)
		assert.Equal(t, contract.LabelMalformedDatetimeV2, apiErr.Error)
	})

	t.Run("end before start", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/dates?start=2026-09-05&end=2026-09-02", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectRange, apiErr.ErrorCode)
		assert.Equal(t, "The end date cannot be earlier than start date", apiErr.Message)
	})

	t.Run("past start", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/dates?start=2026-08-25&end=2026-09-02", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Equal(t, "Cannot use the past date", apiErr.Message)
	})

	t.Run("range wider than six months", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/dates?start=2026-09-02&end=2027-04-01", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Equal(t, "Maximum date range is 6 months", apiErr.Message)
	})

	t.Run("variants of a timeslot product", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/variants?start=2026-09-02&end=2026-09-05", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeNonTimeslotExpected, apiErr.ErrorCode)
	})

	t.Run("timeslots of a non-timeslot product", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A500-FX/timeslots?start=2026-09-02&end=2026-09-05", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeTimeslotExpected, apiErr.ErrorCode)
	})
}

func TestAvailabilityBodies(t *testing.T) {
	engine := newTestServer(t, clock.NewMockClock(testNow))

	t.Run("v1 timeslots decode", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v1/products/A300-FX/timeslots?start=2026-09-02&end=2026-09-03", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		slots, err := contract.DecodeTimeslots(recorder.Body.Bytes())
		require.NoError(t, err)
		assert.Len(t, slots, 4, "two slots per day over two days")
	})

	t.Run("v2 non-timeslot keys are midnight", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v2/products/A500-FX/availability?start=2026-09-02&end=2026-09-02", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		days, err := contract.DecodeAvailabilityMap(recorder.Body.Bytes())
		require.NoError(t, err)
		require.Len(t, days, 1)
		assert.Equal(t, "00:00", days[0].Timeslot)
	})

	t.Run("v2 pricing product attaches prices", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodGet, "/v2/products/A400-FX/availability?start=2026-09-02&end=2026-09-02", "", nil)
		require.Equal(t, http.StatusOK, recorder.Code)

		days, err := contract.DecodeAvailabilityMap(recorder.Body.Bytes())
		require.NoError(t, err)
		for _, day := range days {
			for _, variant := range day.Variants {
				require.NotNil(t, variant.Price)
				assert.Equal(t, "USD", variant.Price.Currency)
			}
		}
	})
}

func TestReservationValidation(t *testing.T) {
	engine := newTestServer(t, clock.NewMockClock(testNow))

	t.Run("progressive missing arguments", func(t *testing.T) {
		steps := []struct {
			body    string
			missing string
		}{
			{`{}`, "date"},
			{`{"date": "2026-09-02"}`, "tickets"},
			{`{"date": "2026-09-02", "tickets": [{"variant_id": "1", "quantity": 1}]}`, "customer"},
		}
		for _, step := range steps {
			recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/reservation", step.body, nil)
			apiErr := decodeError(t, recorder)
			assert.Equal(t, contract.CodeMissingArgument, apiErr.ErrorCode)
			assert.Equal(t, `Required argument "`+step.missing+`" was not found`, apiErr.Message)
		}
	})

	t.Run("v2 wants a datetime", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v2/products/A500-FX/reservation", `{"datetime": "2026-09-02"}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMalformedDatetime, apiErr.ErrorCode)
		assert.Contains(t, apiErr.Message, "YYYY-MM-DDTHH:MM")
	})

	t.Run("past date", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/reservation", `{"date": "2026-08-25"}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Equal(t, "Cannot use the past date", apiErr.Message)
	})

	t.Run("too far ahead", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/reservation", `{"date": "2027-04-01"}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Contains(t, apiErr.Message, "too far ahead")
	})

	t.Run("quantity above availability", func(t *testing.T) {
		body := `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 100000}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`
		recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/reservation", body, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeAvailabilityError, apiErr.ErrorCode)
	})

	t.Run("v2 required order data enforced", func(t *testing.T) {
		body := `{
			"datetime": "2026-09-02T00:00",
			"tickets": [{"variant_id": "1", "quantity": 1, "required_visitor_data": [{"email": "a@b.c"}]}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`
		recorder := doRequest(engine, http.MethodPost, "/v2/products/A500-FX/reservation", body, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMissingArgument, apiErr.ErrorCode)
		assert.Equal(t, `Required argument "required_order_data" was not found`, apiErr.Message)
	})

	t.Run("successful hold lasts thirty minutes", func(t *testing.T) {
		body := `{
			"date": "2026-09-02",
			"timeslot": "17:30",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`
		recorder := doRequest(engine, http.MethodPost, "/v1/products/A300-FX/reservation", body, nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

		reservation, err := contract.DecodeReservation(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		assert.NotEmpty(t, reservation.ReservationID)
		assert.True(t, reservation.ExpiresAt.Equal(testNow.Add(30*time.Minute)))
	})
}

func TestBookingFlow(t *testing.T) {
	clk := clock.NewMockClock(testNow)
	engine := newTestServer(t, clk)

	reserve := func(t *testing.T, productID, body string) string {
		t.Helper()
		recorder := doRequest(engine, http.MethodPost, "/v1/products/"+productID+"/reservation", body, nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		reservation, err := contract.DecodeReservation(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		return reservation.ReservationID
	}

	t.Run("missing reservation id", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v1/booking", `{}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMissingArgument, apiErr.ErrorCode)
		assert.Equal(t, `Required argument "reservation_id" was not found`, apiErr.Message)
	})

	t.Run("foreign token", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodPost, "/v1/booking", `{"reservation_id": "Tk9OLUVYSVNUSU5HLUlECg!!"}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectReservation, apiErr.ErrorCode)
		assert.Equal(t, "Given reservation ID is incorrect", apiErr.Message)
	})

	t.Run("per-ticket barcodes match quantities", func(t *testing.T) {
		reservationID := reserve(t, "A300-FX", `{
			"date": "2026-09-02",
			"timeslot": "17:30",
			"tickets": [{"variant_id": "1", "quantity": 2}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		recorder := doRequest(engine, http.MethodPost, "/v1/booking", `{"reservation_id": "`+reservationID+`"}`, nil)
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

		booking, err := contract.DecodeBooking(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		assert.Equal(t, "CODE128", booking.BarcodeFormat)
		assert.Equal(t, contract.BarcodeScopeTicket, booking.BarcodeScope)
		assert.Len(t, booking.Tickets["1"], 2)
	})

	t.Run("PDF products get an order voucher", func(t *testing.T) {
		reservationID := reserve(t, "A550-FX", `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		recorder := doRequest(engine, http.MethodPost, "/v1/booking", `{"reservation_id": "`+reservationID+`"}`, nil)
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

		booking, err := contract.DecodeBooking(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		assert.Equal(t, "PDF", booking.BarcodeFormat)
		assert.Equal(t, contract.BarcodeScopeOrder, booking.BarcodeScope)
		require.NotNil(t, booking.Barcode)
		assert.True(t, contract.CheckBase64(*booking.Barcode))
	})

	t.Run("expired reservation", func(t *testing.T) {
		reservationID := reserve(t, "A500-FX", `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		clk.Add(45 * time.Minute)
		defer clk.Set(testNow)

		recorder := doRequest(engine, http.MethodPost, "/v1/booking", `{"reservation_id": "`+reservationID+`"}`, nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeReservationExpired, apiErr.ErrorCode)
		assert.Equal(t, "Your reservation has expired 15 minutes ago", apiErr.Message)
	})
}

func TestCancellationStateMachine(t *testing.T) {
	clk := clock.NewMockClock(testNow)
	engine := newTestServer(t, clk)

	book := func(t *testing.T, productID, reservationBody string) string {
		t.Helper()
		recorder := doRequest(engine, http.MethodPost, "/v1/products/"+productID+"/reservation", reservationBody, nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		reservation, err := contract.DecodeReservation(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)

		recorder = doRequest(engine, http.MethodPost, "/v1/booking", `{"reservation_id": "`+reservation.ReservationID+`"}`, nil)
		require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
		booking, err := contract.DecodeBooking(recorder.Body.Bytes(), contract.V1)
		require.NoError(t, err)
		return booking.BookingID
	}

	t.Run("unknown booking", func(t *testing.T) {
		recorder := doRequest(engine, http.MethodDelete, "/v1/booking/I-DO-NOT-EXIST", "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeMissingBooking, apiErr.ErrorCode)
		assert.Equal(t, "Booking with ID I-DO-NOT-EXIST doesn't exist", apiErr.Message)
	})

	t.Run("non-refundable product", func(t *testing.T) {
		bookingID := book(t, "A600-FX", `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		recorder := doRequest(engine, http.MethodDelete, "/v1/booking/"+bookingID, "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeCancellationRefused, apiErr.ErrorCode)
	})

	t.Run("inside the cutoff window", func(t *testing.T) {
		// A550-FX has a 10 hour cutoff; tomorrow midnight is 14 hours away,
		// so move the clock to the evening first.
		bookingID := book(t, "A550-FX", `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		clk.Set(time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC))
		defer clk.Set(testNow)

		recorder := doRequest(engine, http.MethodDelete, "/v1/booking/"+bookingID, "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Equal(t, "The booking can only be cancelled 10 hours in advance", apiErr.Message)
	})

	t.Run("past booking", func(t *testing.T) {
		bookingID := book(t, "A500-FX", `{
			"date": "2026-09-02",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		clk.Set(time.Date(2026, 9, 10, 10, 0, 0, 0, time.UTC))
		defer clk.Set(testNow)

		recorder := doRequest(engine, http.MethodDelete, "/v1/booking/"+bookingID, "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeIncorrectDate, apiErr.ErrorCode)
		assert.Equal(t, "Cannot use the past date", apiErr.Message)
	})

	t.Run("cancel then cancel again", func(t *testing.T) {
		bookingID := book(t, "A500-FX", `{
			"date": "2026-09-04",
			"tickets": [{"variant_id": "1", "quantity": 1}],
			"customer": {"first_name": "Jon", "last_name": "Snow"}
		}`)
		recorder := doRequest(engine, http.MethodDelete, "/v1/booking/"+bookingID, "", nil)
		assert.Equal(t, http.StatusNoContent, recorder.Code)

		recorder = doRequest(engine, http.MethodDelete, "/v1/booking/"+bookingID, "", nil)
		apiErr := decodeError(t, recorder)
		assert.Equal(t, contract.CodeAlreadyCancelled, apiErr.ErrorCode)
		assert.Equal(t, "The booking with ID "+bookingID+" was already cancelled", apiErr.Message)
	})
}
