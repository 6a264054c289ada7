package entity

import "time"

type HistoryKind string

const (
	HistoryBookingCreated       HistoryKind = "booking_created"
	HistoryBookingStatusChanged HistoryKind = "booking_status_changed"
	HistoryTicketStatusChanged  HistoryKind = "ticket_status_changed"
	HistoryRefundRequested      HistoryKind = "refund_requested"
	HistoryDiscrepancy          HistoryKind = "discrepancy"
)

// BookingHistoryEntry is one line of the audit trail of a booking. EntryID is the id of the
// event it was built from, so replaying events does not duplicate entries.
type BookingHistoryEntry struct {
	EntryID    string      `json:"entry_id" db:"entry_id"`
	BookingID  int64       `json:"booking_id" db:"booking_id"`
	TicketID   int64       `json:"ticket_id" db:"ticket_id"`
	Kind       HistoryKind `json:"kind" db:"kind"`
	FromStatus string      `json:"from_status" db:"from_status"`
	ToStatus   string      `json:"to_status" db:"to_status"`
	Amount     int64       `json:"amount" db:"amount"`
	Note       string      `json:"note" db:"note"`
	OccurredAt time.Time   `json:"occurred_at" db:"occurred_at"`
}

// BookingFilter is a conjunction of optional criteria; zero values are ignored.
type BookingFilter struct {
	Status BookingStatus
	UserID int64
	TripID int64
	Limit  int
}
