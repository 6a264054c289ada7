package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")

	ErrIllegalTransition = errors.New("illegal state transition")
	ErrUnknownBooking    = errors.New("unknown booking")
	ErrUnknownTicket     = errors.New("unknown ticket")
	ErrInvalidRefund     = errors.New("invalid refund")

	// ErrSeatAlreadyHeld is an expected outcome of a reservation race, not a failure.
	ErrSeatAlreadyHeld = errors.New("seat already held")
	ErrNotHeldByTicket = errors.New("seat not held by ticket")
)

// BookingError is returned when a request against a booking or ticket is rejected.
// It is never retried: redelivering the same input yields the same rejection.
type BookingError struct {
	BookingID int64
	TicketID  int64
	Current   string
	Requested string
	Reason    string
	Err       error
}

func (e *BookingError) Error() string {
	var b strings.Builder
	b.WriteString("booking error")
	if e.BookingID != 0 {
		fmt.Fprintf(&b, " (booking %d)", e.BookingID)
	}
	if e.TicketID != 0 {
		fmt.Fprintf(&b, " (ticket %d)", e.TicketID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Current != "" || e.Requested != "" {
		fmt.Fprintf(&b, ": %s -> %s", e.Current, e.Requested)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func illegalBookingTransition(b Booking, requested BookingStatus, reason string) *BookingError {
	return &BookingError{
		BookingID: b.ID,
		Current:   b.Status.String(),
		Requested: requested.String(),
		Reason:    reason,
		Err:       ErrIllegalTransition,
	}
}

func illegalTicketTransition(t Ticket, requested TicketStatus, reason string) *BookingError {
	return &BookingError{
		BookingID: t.BookingID,
		TicketID:  t.ID,
		Current:   t.Status.String(),
		Requested: requested.String(),
		Reason:    reason,
		Err:       ErrIllegalTransition,
	}
}

// BookingHistoryError wraps failures of the audit/history view. The underlying state
// transition is never blocked by it and the operation may be retried.
type BookingHistoryError struct {
	BookingID int64
	Err       error
}

func (e *BookingHistoryError) Error() string {
	return fmt.Sprintf("could not materialize history of booking %d: %s", e.BookingID, e.Err)
}

func (e *BookingHistoryError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a rejection that must not be retried.
func IsPermanent(err error) bool {
	var bookingErr *BookingError
	if errors.As(err, &bookingErr) {
		return true
	}

	var validationErr ValidationErrors
	return errors.As(err, &validationErr)
}
