package contract

// Error codes of the fixed taxonomy. Business-rule violations always arrive
// as HTTP 400 with a JSON body {error_code, error, message}.
//
// Code 2009 is overloaded by design: past date, cutoff violation and
// too-wide range all share it and are distinguishable only by message text.
const (
	CodeMissingArgument       = 1000
	CodeMissingProduct        = 1001
	CodeTimeslotExpected      = 1002
	CodeNonTimeslotExpected   = 1003
	CodeMissingBooking        = 1004
	CodeMalformedDatetime     = 2000
	CodeIncorrectRange        = 2001
	CodeIncorrectDate         = 2009
	CodeAvailabilityError     = 3000
	CodeReservationExpired    = 3001
	CodeIncorrectReservation  = 3002
	CodeAlreadyCancelled      = 3003
	CodeCancellationRefused   = 3004
	CodeTicketsAlreadyUsed    = 3005
)

// Error labels as documented. The v1 generation labelled code 2000
// "Incorrect date format"; v2 renamed it "Malformed datetime".
const (
	LabelMissingArgument      = "Missing argument"
	LabelMissingProduct       = "Missing product"
	LabelTimeslotExpected     = "Timeslot product expected"
	LabelNonTimeslotExpected  = "Non-timeslot product expected"
	LabelMissingBooking       = "Missing booking"
	LabelMalformedDatetimeV1  = "Incorrect date format"
	LabelMalformedDatetimeV2  = "Malformed datetime"
	LabelIncorrectRange       = "Incorrect date range"
	LabelIncorrectDate        = "Incorrect date"
	LabelAvailabilityError    = "Availability error"
	LabelReservationExpired   = "Reservation expired"
	LabelIncorrectReservation = "Incorrect reservation ID"
	LabelAlreadyCancelled     = "Already cancelled"
	LabelCancellationRefused  = "Cancellation not possible"
	LabelTicketsAlreadyUsed   = "Tickets already used"
)

// MalformedDatetimeLabel returns the code-2000 label for the given protocol
// version.
func MalformedDatetimeLabel(v Version) string {
	if v == V1 {
		return LabelMalformedDatetimeV1
	}
	return LabelMalformedDatetimeV2
}

// ForbiddenBody is the exact plain-text body of every HTTP 403 response.
const ForbiddenBody = "Forbidden - Missing or incorrect API key"

// ExpectedError is what a probe expects a supplier to answer for a given
// failure scenario. Message is a prefix: suppliers may append dynamic detail.
type ExpectedError struct {
	ErrorCode int
	Error     string
	Message   string
}
