package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"busbooking/entity"
)

// BookingHistory is the read model with the audit trail of bookings.
type BookingHistory struct {
	db *sqlx.DB
}

func NewBookingHistory(db *sqlx.DB) BookingHistory {
	if db == nil {
		panic("db is nil")
	}

	return BookingHistory{db: db}
}

// Append stores entries, ignoring the ones already stored.
func (h BookingHistory) Append(ctx context.Context, entries ...entity.BookingHistoryEntry) error {
	for _, entry := range entries {
		_, err := h.db.NamedExecContext(ctx, `
			INSERT INTO booking_history
				(entry_id, booking_id, ticket_id, kind, from_status, to_status, amount, note, occurred_at)
			VALUES
				(:entry_id, :booking_id, :ticket_id, :kind, :from_status, :to_status, :amount, :note, :occurred_at)
			ON CONFLICT (entry_id) DO NOTHING
		`, entry)
		if err != nil {
			return fmt.Errorf("could not append history entry %s: %w", entry.EntryID, err)
		}
	}

	return nil
}

func (h BookingHistory) ForBooking(ctx context.Context, bookingID int64) ([]entity.BookingHistoryEntry, error) {
	entries := []entity.BookingHistoryEntry{}
	err := h.db.SelectContext(ctx, &entries, `
		SELECT entry_id, booking_id, ticket_id, kind, from_status, to_status, amount, note, occurred_at
		FROM booking_history
		WHERE booking_id = $1
		ORDER BY occurred_at, entry_id
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("could not get history of booking %d: %w", bookingID, err)
	}

	return entries, nil
}
