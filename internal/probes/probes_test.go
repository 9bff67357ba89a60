//go:build unit

package probes

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

func TestCheckAPIErrorSeverity(t *testing.T) {
	snapshot := &transport.Snapshot{URL: "http://example.test", StatusCode: 400}
	expected := contract.ExpectedError{
		ErrorCode: contract.CodeMissingProduct,
		Error:     contract.LabelMissingProduct,
		Message:   "Product with ID X doesn't exist",
	}

	t.Run("wrong code fails", func(t *testing.T) {
		_, err := checkAPIError(snapshot, contract.APIError{
			ErrorCode: contract.CodeMissingArgument,
			Error:     contract.LabelMissingProduct,
			Message:   "Product with ID X doesn't exist",
		}, expected)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Incorrect error_code (1000)")
	})

	t.Run("wrong label fails", func(t *testing.T) {
		_, err := checkAPIError(snapshot, contract.APIError{
			ErrorCode: contract.CodeMissingProduct,
			Error:     "Something else",
			Message:   "Product with ID X doesn't exist",
		}, expected)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Incorrect error text")
	})

	t.Run("message prefix mismatch only warns", func(t *testing.T) {
		result, err := checkAPIError(snapshot, contract.APIError{
			ErrorCode: contract.CodeMissingProduct,
			Error:     contract.LabelMissingProduct,
			Message:   "No such product",
		}, expected)
		require.NoError(t, err)
		assert.Equal(t, Warning, result.Severity)
		assert.Contains(t, result.Message, "Expected text should start with")
	})

	t.Run("longer message with matching prefix passes", func(t *testing.T) {
		result, err := checkAPIError(snapshot, contract.APIError{
			ErrorCode: contract.CodeMissingProduct,
			Error:     contract.LabelMissingProduct,
			Message:   "Product with ID X doesn't exist in this catalog",
		}, expected)
		require.NoError(t, err)
		assert.Equal(t, Pass, result.Severity)
	})
}

func TestCheckVariantIdentity(t *testing.T) {
	snapshot := &transport.Snapshot{URL: "http://example.test", StatusCode: 200}

	t.Run("one name with two ids fails", func(t *testing.T) {
		days := []contract.DailyVariants{
			{Variants: []contract.Variant{{ID: "1", Name: "Adult"}}},
			{Variants: []contract.Variant{{ID: "9", Name: "Adult"}}},
		}
		_, err := checkVariantIdentity(days, snapshot, 20)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Variant Adult should always have the same ID.")
	})

	t.Run("too many distinct ids per week warns", func(t *testing.T) {
		days := make([]contract.DailyVariants, 7)
		for i := range days {
			days[i] = contract.DailyVariants{Variants: []contract.Variant{
				{ID: strconv.Itoa(i), Name: "Variant " + strconv.Itoa(i)},
			}}
		}
		result, err := checkVariantIdentity(days, snapshot, 3)
		require.NoError(t, err)
		assert.Equal(t, Warning, result.Severity)
		assert.Contains(t, result.Message, "More than 3 unique variants")
	})

	t.Run("stable identity passes", func(t *testing.T) {
		days := []contract.DailyVariants{
			{Variants: []contract.Variant{{ID: "1", Name: "Adult"}, {ID: "2", Name: "Child"}}},
			{Variants: []contract.Variant{{ID: "1", Name: "Adult"}, {ID: "2", Name: "Child"}}},
		}
		result, err := checkVariantIdentity(days, snapshot, 20)
		require.NoError(t, err)
		assert.Equal(t, Pass, result.Severity)
	})
}

func TestTicketSelection(t *testing.T) {
	slot := func(quantities ...int) *contract.DailyVariants {
		variants := make([]contract.Variant, len(quantities))
		for i, q := range quantities {
			variants[i] = contract.Variant{ID: string(rune('1' + i)), AvailableTickets: q}
		}
		return &contract.DailyVariants{Variants: variants}
	}

	t.Run("all variants above the minimum", func(t *testing.T) {
		choices := ticketSelection(slot(10, 20), 2, 3)
		require.Len(t, choices, 2)
		assert.Equal(t, 2, choices[0].Quantity)
	})

	t.Run("some variants below the minimum", func(t *testing.T) {
		choices := ticketSelection(slot(10, 1), 2, 3)
		require.Len(t, choices, 1)
		assert.Equal(t, "1", choices[0].VariantID)
	})

	t.Run("no variant meets the minimum falls back to the best one", func(t *testing.T) {
		choices := ticketSelection(slot(1, 2), 2, 3)
		require.Len(t, choices, 1)
		assert.Equal(t, "2", choices[0].VariantID)
		assert.Equal(t, 2, choices[0].Quantity)
	})

	t.Run("sold out", func(t *testing.T) {
		assert.Empty(t, ticketSelection(slot(0, 0), 2, 3))
	})
}

func TestReservationDatetime(t *testing.T) {
	day, err := contract.ParseDate("2026-09-02")
	require.NoError(t, err)

	withSlot := &contract.DailyVariants{Date: day, Timeslot: "17:30"}
	assert.Equal(t, "2026-09-02T17:30", reservationDatetime(withSlot, true))
	assert.Equal(t, "2026-09-02T00:00", reservationDatetime(withSlot, false))

	noSlot := &contract.DailyVariants{Date: day}
	assert.Equal(t, "2026-09-02T00:00", reservationDatetime(noSlot, true))
}

func TestCollectWarnings(t *testing.T) {
	assert.Equal(t, Pass, collectWarnings(nil).Severity)

	result := collectWarnings([]string{"first", "second"})
	assert.Equal(t, Warning, result.Severity)
	assert.Contains(t, result.Message, "first")
	assert.Contains(t, result.Message, "second")
}
