package mockserver

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Deterministic fake availability. The numbers depend only on the calendar
// date, so the same query always gets the same answer: Sundays are sold out,
// and the ticket counts hash off the date with a digit width that flips with
// the weekday.

var variantNames = []string{"Adult", "Child"}

// MaxDateRangeMonths is how far ahead availability can be requested.
const MaxDateRangeMonths = 6

type variantAvailability struct {
	ID         string
	Name       string
	MaxTickets int
}

type dayAvailability struct {
	Date       time.Time
	MaxTickets int
	Variants   []variantAvailability
}

// hashInt mimics a stable string hash narrowed to the given number of
// decimal digits.
func hashInt(s string, digits int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	n := int(h.Sum32() % 100_000_000)
	for n >= pow10(digits) {
		n /= 10
	}
	return n
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

func isoWeekday(day time.Time) int {
	wd := int(day.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func availabilityFor(day time.Time) dayAvailability {
	date := day.Format("2006-01-02")
	if isoWeekday(day) == 7 {
		return dayAvailability{Date: day, MaxTickets: 0, Variants: []variantAvailability{}}
	}
	digits := 2
	if isoWeekday(day)%3 == 0 {
		digits = 1
	}
	maxTickets := hashInt(date, digits)
	ticketsLeft := maxTickets

	variants := make([]variantAvailability, 0, len(variantNames))
	for i, name := range variantNames {
		idx := i + 1
		var variantMax int
		if idx == len(variantNames) {
			variantMax = ticketsLeft
		} else {
			variantMax = hashInt(fmt.Sprintf("%d%s", idx*isoWeekday(day), date), digits)
			if variantMax > ticketsLeft {
				variantMax = ticketsLeft
			}
			ticketsLeft -= variantMax
		}
		variants = append(variants, variantAvailability{
			ID:         fmt.Sprintf("%d", idx),
			Name:       name,
			MaxTickets: variantMax,
		})
	}
	return dayAvailability{Date: day, MaxTickets: maxTickets, Variants: variants}
}

// timeslotStarts are the fixed daily slots of timeslot products; each lasts
// one hour.
var timeslotStarts = []string{"17:30", "19:30"}

func timeslotEnd(start string) string {
	t, err := time.Parse("15:04", start)
	if err != nil {
		return start
	}
	return t.Add(time.Hour).Format("15:04")
}
