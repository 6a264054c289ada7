package entity

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Booking is the aggregate root: it owns its tickets and is loaded with all of them.
type Booking struct {
	ID              int64         `json:"id" db:"booking_id"`
	Status          BookingStatus `json:"status" db:"status"`
	TotalPrice      int64         `json:"total_price" db:"total_price"`
	NumberOfTickets int           `json:"number_of_tickets" db:"number_of_tickets"`
	UserID          int64         `json:"user_id" db:"user_id"`
	TripID          int64         `json:"trip_id" db:"trip_id"`
	OrderCode       string        `json:"order_code" db:"order_code"`
	PaymentID       int64         `json:"payment_id" db:"payment_id"`
	AdminNote       string        `json:"admin_note" db:"admin_note"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`

	Tickets []Ticket `json:"tickets" db:"-"`
}

// NewBooking builds a PENDING booking with one RESERVED ticket per requested seat.
// ticketIDs must be allocated up front so seats can be reserved before the booking is stored.
func NewBooking(request NewBookingRequest, ticketIDs []int64, now time.Time) (Booking, error) {
	if err := request.Validate(); err != nil {
		return Booking{}, err
	}
	if len(ticketIDs) != len(request.Seats) {
		return Booking{}, fmt.Errorf("got %d ticket ids for %d seats", len(ticketIDs), len(request.Seats))
	}

	booking := Booking{
		Status:    BookingStatusPending,
		UserID:    request.UserID,
		TripID:    request.TripID,
		OrderCode: request.OrderCode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i, seat := range request.Seats {
		booking.Tickets = append(booking.Tickets, Ticket{
			ID:        ticketIDs[i],
			TripID:    request.TripID,
			SeatID:    seat.SeatID,
			SeatCode:  seat.SeatCode,
			Price:     seat.Price,
			Status:    TicketStatusReserved,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	booking.Recalculate(now)

	return booking, nil
}

func (b Booking) Clone() Booking {
	clone := b
	clone.Tickets = make([]Ticket, len(b.Tickets))
	copy(clone.Tickets, b.Tickets)
	return clone
}

func (b Booking) Ticket(ticketID int64) (Ticket, bool) {
	return lo.Find(b.Tickets, func(t Ticket) bool {
		return t.ID == ticketID
	})
}

func (b *Booking) ticket(ticketID int64) *Ticket {
	for i := range b.Tickets {
		if b.Tickets[i].ID == ticketID {
			return &b.Tickets[i]
		}
	}
	return nil
}

func (b Booking) ActiveTickets() []Ticket {
	return lo.Filter(b.Tickets, func(t Ticket, _ int) bool {
		return t.Status.IsActive()
	})
}

// Recalculate keeps the aggregate consistent with its tickets: the price and count cover
// active tickets only, a booking without active tickets is cancelled and a confirmed booking
// whose tickets are all completed is completed.
// The total price is kept as is once no active ticket remains.
func (b *Booking) Recalculate(now time.Time) {
	active := b.ActiveTickets()

	b.NumberOfTickets = len(active)
	if len(active) > 0 {
		b.TotalPrice = lo.SumBy(active, func(t Ticket) int64 {
			return t.Price
		})
	}

	switch {
	case len(active) == 0 && b.Status.CanTransitionTo(BookingStatusCancelled):
		b.Status = BookingStatusCancelled
	case len(active) > 0 && b.Status == BookingStatusConfirmed && lo.EveryBy(active, func(t Ticket) bool {
		return t.Status == TicketStatusCompleted
	}):
		b.Status = BookingStatusCompleted
	}

	b.UpdatedAt = now
}

type PaymentOutcome struct {
	// Duplicate is set when the same payment was already applied.
	Duplicate bool
	Confirmed []Ticket
	// Skipped tickets were not RESERVED and need a manual review.
	Skipped []Ticket
}

// ApplyPayment confirms every reserved ticket and the booking itself. A payment already recorded
// on the booking is a duplicate whatever happened to the booking since.
func (b *Booking) ApplyPayment(paymentID int64, now time.Time) (PaymentOutcome, error) {
	if b.PaymentID != 0 && b.PaymentID == paymentID {
		return PaymentOutcome{Duplicate: true}, nil
	}
	if b.Status != BookingStatusPending {
		reason := "booking is not awaiting payment"
		if b.PaymentID != 0 && b.PaymentID != paymentID {
			reason = fmt.Sprintf("booking already paid with payment %d", b.PaymentID)
		}
		return PaymentOutcome{}, illegalBookingTransition(*b, BookingStatusConfirmed, reason)
	}

	var outcome PaymentOutcome
	for i := range b.Tickets {
		t := &b.Tickets[i]
		if t.Status != TicketStatusReserved {
			outcome.Skipped = append(outcome.Skipped, *t)
			continue
		}
		if err := t.transitionTo(TicketStatusConfirmed, now); err != nil {
			return PaymentOutcome{}, err
		}
		t.PaymentID = paymentID
		outcome.Confirmed = append(outcome.Confirmed, *t)
	}

	if len(outcome.Confirmed) == 0 {
		return PaymentOutcome{}, illegalBookingTransition(*b, BookingStatusConfirmed, "no reserved tickets left to confirm")
	}

	b.PaymentID = paymentID
	b.Status = BookingStatusConfirmed
	b.Recalculate(now)

	return outcome, nil
}

type Cancellation struct {
	PaymentID    int64
	RefundAmount int64
	Reason       string
}

type CancelOutcome struct {
	// Duplicate is set when the ticket was already inactive; Ticket then holds its stored state.
	Duplicate bool
	Ticket    Ticket
	Refund    *Refund
}

// CheckCancel tells whether the ticket can be cancelled without mutating anything.
// A ticket that is already cancelled or expired is reported as a duplicate.
func (b Booking) CheckCancel(ticketID int64, c Cancellation) (Ticket, bool, error) {
	t, ok := b.Ticket(ticketID)
	if !ok {
		return Ticket{}, false, &BookingError{BookingID: b.ID, TicketID: ticketID, Err: ErrUnknownTicket}
	}
	if !t.Status.IsActive() {
		return t, true, nil
	}
	if !t.Status.CanTransitionTo(TicketStatusCancelled) {
		return t, false, illegalTicketTransition(t, TicketStatusCancelled, "")
	}
	if c.RefundAmount > 0 && t.PaymentID == 0 && c.PaymentID == 0 {
		return t, false, &BookingError{
			BookingID: b.ID,
			TicketID:  t.ID,
			Reason:    "refund requested for a ticket without payment",
			Err:       ErrInvalidRefund,
		}
	}
	if c.RefundAmount < 0 || c.RefundAmount > t.Price {
		return t, false, &BookingError{
			BookingID: b.ID,
			TicketID:  t.ID,
			Reason:    fmt.Sprintf("refund amount %d outside of [0, %d]", c.RefundAmount, t.Price),
			Err:       ErrInvalidRefund,
		}
	}
	return t, false, nil
}

func (b *Booking) CancelTicket(ticketID int64, c Cancellation, now time.Time) (CancelOutcome, error) {
	existing, duplicate, err := b.CheckCancel(ticketID, c)
	if err != nil {
		return CancelOutcome{}, err
	}
	if duplicate {
		return CancelOutcome{Duplicate: true, Ticket: existing}, nil
	}

	t := b.ticket(ticketID)
	if err := t.transitionTo(TicketStatusCancelled, now); err != nil {
		return CancelOutcome{}, err
	}
	t.CancellationReason = c.Reason
	t.AdminNote = c.Reason
	t.RefundAmount = c.RefundAmount
	if c.PaymentID != 0 {
		t.PaymentID = c.PaymentID
	}

	b.Recalculate(now)

	outcome := CancelOutcome{Ticket: *t}
	if c.RefundAmount > 0 {
		outcome.Refund = &Refund{
			TicketID:  t.ID,
			BookingID: b.ID,
			UserID:    b.UserID,
			PaymentID: t.PaymentID,
			Amount:    c.RefundAmount,
			Reason:    c.Reason,
		}
	}

	return outcome, nil
}

// ExpireTicket moves a reservation whose payment deadline elapsed to EXPIRED.
// It returns false when the ticket is no longer RESERVED (paid or cancelled meanwhile).
func (b *Booking) ExpireTicket(ticketID int64, now time.Time) (bool, error) {
	t := b.ticket(ticketID)
	if t == nil {
		return false, &BookingError{BookingID: b.ID, TicketID: ticketID, Err: ErrUnknownTicket}
	}
	if t.Status != TicketStatusReserved {
		return false, nil
	}
	if err := t.transitionTo(TicketStatusExpired, now); err != nil {
		return false, err
	}
	t.CancellationReason = "reservation expired"

	b.Recalculate(now)

	return true, nil
}

type TransitionOutcome struct {
	// Released are tickets that stopped holding their seat.
	Released []Ticket
	Refunds  []Refund
}

// TransitionTo applies an administrative status change, cascading it to the tickets.
// It goes through the same transition table as the automated paths.
func (b *Booking) TransitionTo(status BookingStatus, note string, now time.Time) (TransitionOutcome, error) {
	if !status.IsValid() {
		return TransitionOutcome{}, illegalBookingTransition(*b, status, "unknown status")
	}
	if !b.Status.CanTransitionTo(status) {
		return TransitionOutcome{}, illegalBookingTransition(*b, status, "")
	}

	var outcome TransitionOutcome

	switch status {
	case BookingStatusConfirmed:
		confirmed := 0
		for i := range b.Tickets {
			if b.Tickets[i].Status != TicketStatusReserved {
				continue
			}
			if err := b.Tickets[i].transitionTo(TicketStatusConfirmed, now); err != nil {
				return TransitionOutcome{}, err
			}
			confirmed++
		}
		if confirmed == 0 {
			return TransitionOutcome{}, illegalBookingTransition(*b, status, "no reserved tickets left to confirm")
		}
	case BookingStatusCancelled:
		for i := range b.Tickets {
			t := &b.Tickets[i]
			if !t.Status.CanTransitionTo(TicketStatusCancelled) {
				continue
			}
			paid := t.Status == TicketStatusConfirmed && b.PaymentID != 0

			if err := t.transitionTo(TicketStatusCancelled, now); err != nil {
				return TransitionOutcome{}, err
			}
			t.CancellationReason = note
			t.AdminNote = note
			if paid {
				t.RefundAmount = t.Price
				outcome.Refunds = append(outcome.Refunds, Refund{
					TicketID:  t.ID,
					BookingID: b.ID,
					UserID:    b.UserID,
					PaymentID: b.PaymentID,
					Amount:    t.Price,
					Reason:    note,
				})
			}
			outcome.Released = append(outcome.Released, *t)
		}
	case BookingStatusCompleted:
		for i := range b.Tickets {
			if b.Tickets[i].Status != TicketStatusConfirmed {
				continue
			}
			if err := b.Tickets[i].transitionTo(TicketStatusCompleted, now); err != nil {
				return TransitionOutcome{}, err
			}
		}
	}

	b.Status = status
	b.AdminNote = note
	b.Recalculate(now)

	return outcome, nil
}

// Refund is the amount owed back to the buyer for one cancelled ticket.
type Refund struct {
	TicketID  int64
	BookingID int64
	UserID    int64
	PaymentID int64
	Amount    int64
	Reason    string
}

// IdempotencyKey is stable across redeliveries of the cancellation that caused the refund.
func (r Refund) IdempotencyKey() string {
	return fmt.Sprintf("refund-%d-%d", r.TicketID, r.PaymentID)
}

func (r Refund) Event() RefundRequested_v1 {
	return RefundRequested_v1{
		Header:    NewEventHeaderWithIdempotencyKey(r.IdempotencyKey()),
		PaymentID: r.PaymentID,
		Amount:    r.Amount,
		Reason:    r.Reason,
		TicketID:  r.TicketID,
		BookingID: r.BookingID,
		UserID:    r.UserID,
	}
}

// StatusChangeEvents describes every status difference between two versions of a booking.
func StatusChangeEvents(before, after Booking, note string) []Event {
	var events []Event

	for _, t := range after.Tickets {
		previous, ok := before.Ticket(t.ID)
		if !ok || previous.Status == t.Status {
			continue
		}
		reason := t.CancellationReason
		if reason == "" {
			reason = note
		}
		events = append(events, TicketStatusChanged_v1{
			Header:    NewEventHeader(),
			TicketID:  t.ID,
			BookingID: after.ID,
			TripID:    t.TripID,
			SeatCode:  t.SeatCode,
			From:      previous.Status,
			To:        t.Status,
			Reason:    reason,
		})
	}

	if before.Status != after.Status {
		events = append(events, BookingStatusChanged_v1{
			Header:    NewEventHeader(),
			BookingID: after.ID,
			From:      before.Status,
			To:        after.Status,
			Note:      note,
		})
	}

	return events
}
