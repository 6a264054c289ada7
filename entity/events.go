package entity

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

// InboundEvent is the closed set of notifications the reconciler consumes.
type InboundEvent interface {
	Event
	inbound()
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// PaymentCompleted_v1 is published by the payment service once a booking is paid.
type PaymentCompleted_v1 struct {
	Header    EventHeader `json:"header"`
	BookingID int64       `json:"booking_id"`
	PaymentID int64       `json:"payment_id"`
}

func (PaymentCompleted_v1) IsInternal() bool { return false }
func (PaymentCompleted_v1) inbound()         {}

// TicketCancelled_v1 carries a cancellation together with the refund the upstream decided on.
type TicketCancelled_v1 struct {
	Header       EventHeader `json:"header"`
	TicketID     int64       `json:"ticket_id"`
	PaymentID    int64       `json:"payment_id"`
	RefundAmount int64       `json:"refund_amount"`
	RefundReason string      `json:"refund_reason"`
	UserID       int64       `json:"user_id"`
}

func (TicketCancelled_v1) IsInternal() bool { return false }
func (TicketCancelled_v1) inbound()         {}

type BookingCreated_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  int64       `json:"booking_id"`
	UserID     int64       `json:"user_id"`
	TripID     int64       `json:"trip_id"`
	OrderCode  string      `json:"order_code"`
	TotalPrice int64       `json:"total_price"`
	TicketIDs  []int64     `json:"ticket_ids"`
	SeatCodes  []string    `json:"seat_codes"`
}

func (BookingCreated_v1) IsInternal() bool { return false }

type BookingStatusChanged_v1 struct {
	Header    EventHeader   `json:"header"`
	BookingID int64         `json:"booking_id"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	Note      string        `json:"note"`
}

func (BookingStatusChanged_v1) IsInternal() bool { return false }

type TicketStatusChanged_v1 struct {
	Header    EventHeader  `json:"header"`
	TicketID  int64        `json:"ticket_id"`
	BookingID int64        `json:"booking_id"`
	TripID    int64        `json:"trip_id"`
	SeatCode  string       `json:"seat_code"`
	From      TicketStatus `json:"from"`
	To        TicketStatus `json:"to"`
	Reason    string       `json:"reason"`
}

func (TicketStatusChanged_v1) IsInternal() bool { return false }

// RefundRequested_v1 is the refund request consumed by the payment service.
// Header.IdempotencyKey deduplicates it on the consumer side.
type RefundRequested_v1 struct {
	Header    EventHeader `json:"header"`
	PaymentID int64       `json:"payment_id"`
	Amount    int64       `json:"amount"`
	Reason    string      `json:"reason"`
	TicketID  int64       `json:"ticket_id"`
	BookingID int64       `json:"booking_id"`
	UserID    int64       `json:"user_id"`
}

func (RefundRequested_v1) IsInternal() bool { return false }

// BookingDiscrepancyDetected_v1 flags a booking for manual review.
type BookingDiscrepancyDetected_v1 struct {
	Header    EventHeader `json:"header"`
	BookingID int64       `json:"booking_id"`
	PaymentID int64       `json:"payment_id"`
	TicketIDs []int64     `json:"ticket_ids"`
	Reason    string      `json:"reason"`
}

func (BookingDiscrepancyDetected_v1) IsInternal() bool { return false }

// ExpireTicket is sent by the reservation sweeper for holds past their payment deadline.
type ExpireTicket struct {
	Header   EventHeader `json:"header"`
	TicketID int64       `json:"ticket_id"`
}

type DataLakeEvent struct {
	ID          string    `db:"event_id"`
	PublishedAt time.Time `db:"published_at"`
	Name        string    `db:"event_name"`
	Payload     []byte    `db:"event_payload"`
}
