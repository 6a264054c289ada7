package entity

import "time"

type Ticket struct {
	ID                 int64        `json:"id" db:"ticket_id"`
	BookingID          int64        `json:"booking_id" db:"booking_id"`
	TripID             int64        `json:"trip_id" db:"trip_id"`
	SeatID             int64        `json:"seat_id" db:"seat_id"`
	SeatCode           string       `json:"seat_code" db:"seat_code"`
	Price              int64        `json:"price" db:"price"`
	Status             TicketStatus `json:"status" db:"status"`
	PaymentID          int64        `json:"payment_id" db:"payment_id"`
	AdminNote          string       `json:"admin_note" db:"admin_note"`
	CancellationReason string       `json:"cancellation_reason" db:"cancellation_reason"`
	RefundAmount       int64        `json:"refund_amount" db:"refund_amount"`
	CancelledAt        *time.Time   `json:"cancelled_at" db:"cancelled_at"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

func (t Ticket) SeatKey() SeatKey {
	return SeatKey{TripID: t.TripID, SeatCode: t.SeatCode}
}

func (t *Ticket) transitionTo(next TicketStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return illegalTicketTransition(*t, next, "")
	}

	t.Status = next
	t.UpdatedAt = now
	if next == TicketStatusCancelled || next == TicketStatusExpired {
		cancelledAt := now
		t.CancelledAt = &cancelledAt
	}

	return nil
}

// TicketSnapshot is the final view of a cancelled ticket returned to admins.
type TicketSnapshot struct {
	ID                 int64        `json:"id"`
	Status             TicketStatus `json:"status"`
	Price              int64        `json:"price"`
	SeatCode           string       `json:"seatCode"`
	SeatID             int64        `json:"seatId"`
	BookingID          int64        `json:"bookingId"`
	TripID             int64        `json:"tripId"`
	CancellationReason string       `json:"cancellationReason"`
	CancelledAt        *time.Time   `json:"cancelledAt"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

func (t Ticket) Snapshot() TicketSnapshot {
	return TicketSnapshot{
		ID:                 t.ID,
		Status:             t.Status,
		Price:              t.Price,
		SeatCode:           t.SeatCode,
		SeatID:             t.SeatID,
		BookingID:          t.BookingID,
		TripID:             t.TripID,
		CancellationReason: t.CancellationReason,
		CancelledAt:        t.CancelledAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
