//go:build unit

package mockserver

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityIsDeterministic(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) // a Tuesday

	first := availabilityFor(day)
	second := availabilityFor(day)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same day produced different availability:\n%s", diff)
	}
}

func TestSundaysAreSoldOut(t *testing.T) {
	sunday := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	availability := availabilityFor(sunday)
	assert.Zero(t, availability.MaxTickets)
	assert.Empty(t, availability.Variants)
}

func TestVariantsSumToDayTotal(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		availability := availabilityFor(day.AddDate(0, 0, i))
		sum := 0
		for _, v := range availability.Variants {
			sum += v.MaxTickets
			assert.GreaterOrEqual(t, v.MaxTickets, 0)
		}
		if len(availability.Variants) > 0 {
			assert.Equal(t, availability.MaxTickets, sum, "day %s", availability.Date)
		}
	}
}

func TestVariantIdentityIsStable(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		availability := availabilityFor(day.AddDate(0, 0, i))
		for j, v := range availability.Variants {
			assert.Equal(t, variantNames[j], v.Name)
		}
	}
}

func TestTimeslotEnds(t *testing.T) {
	assert.Equal(t, "18:30", timeslotEnd("17:30"))
	assert.Equal(t, "20:30", timeslotEnd("19:30"))
}
