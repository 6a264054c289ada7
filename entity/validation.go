package entity

import (
	"fmt"
	"strings"
)

const maxNoteLength = 500

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, e := range v {
		messages = append(messages, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was reported, so a nil slice never ends up in a non-nil error.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

type SeatRequest struct {
	SeatID   int64
	SeatCode string
	Price    int64
}

type NewBookingRequest struct {
	UserID    int64
	TripID    int64
	OrderCode string
	Seats     []SeatRequest
}

func (r NewBookingRequest) Validate() error {
	var errs ValidationErrors

	if r.UserID <= 0 {
		errs.add("userId", "must be positive")
	}
	if r.TripID <= 0 {
		errs.add("tripId", "must be positive")
	}
	if len(r.Seats) == 0 {
		errs.add("seats", "at least one seat is required")
	}

	seen := make(map[string]struct{}, len(r.Seats))
	for i, seat := range r.Seats {
		field := fmt.Sprintf("seats[%d]", i)
		if strings.TrimSpace(seat.SeatCode) == "" {
			errs.add(field+".seatCode", "must not be empty")
		}
		if seat.SeatID <= 0 {
			errs.add(field+".seatId", "must be positive")
		}
		if seat.Price <= 0 {
			errs.add(field+".price", "must be positive")
		}
		if _, ok := seen[seat.SeatCode]; ok {
			errs.add(field+".seatCode", "seat %s requested twice", seat.SeatCode)
		}
		seen[seat.SeatCode] = struct{}{}
	}

	return errs.Err()
}

type StatusUpdate struct {
	Status    BookingStatus
	AdminNote string
}

func (u StatusUpdate) Validate() error {
	var errs ValidationErrors

	if !u.Status.IsValid() {
		errs.add("status", "unknown status %q", u.Status)
	}
	if len(u.AdminNote) > maxNoteLength {
		errs.add("adminNote", "must be at most %d characters", maxNoteLength)
	}

	return errs.Err()
}

func ValidateCancellationReason(reason string) error {
	var errs ValidationErrors

	if strings.TrimSpace(reason) == "" {
		errs.add("cancellationReason", "must not be empty")
	}
	if len(reason) > maxNoteLength {
		errs.add("cancellationReason", "must be at most %d characters", maxNoteLength)
	}

	return errs.Err()
}

func (e PaymentCompleted_v1) Validate() error {
	var errs ValidationErrors

	if e.BookingID <= 0 {
		errs.add("bookingId", "must be positive")
	}
	if e.PaymentID <= 0 {
		errs.add("paymentId", "must be positive")
	}

	return errs.Err()
}

func (e TicketCancelled_v1) Validate() error {
	var errs ValidationErrors

	if e.TicketID <= 0 {
		errs.add("ticketId", "must be positive")
	}
	if e.PaymentID < 0 {
		errs.add("paymentId", "must not be negative")
	}
	if e.RefundAmount < 0 {
		errs.add("refundAmount", "must not be negative")
	}
	if e.RefundAmount > 0 && e.PaymentID == 0 {
		errs.add("paymentId", "is required when a refund is requested")
	}

	return errs.Err()
}
