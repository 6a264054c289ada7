// Package booking applies booking requests, admin actions and payment notifications to the
// Booking aggregate, keeping the seat guard in step with ticket statuses.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"busbooking/entity"
	"busbooking/metrics"
)

type UpdateFn = func(ctx context.Context, booking entity.Booking) (entity.Booking, []entity.Event, error)

type Repository interface {
	NextTicketIDs(ctx context.Context, n int) ([]int64, error)
	Add(ctx context.Context, booking entity.Booking) (entity.Booking, error)
	Get(ctx context.Context, bookingID int64) (entity.Booking, error)
	Find(ctx context.Context, filter entity.BookingFilter) ([]entity.Booking, error)
	UpdateByID(ctx context.Context, bookingID int64, updateFn UpdateFn) (entity.Booking, error)
	UpdateByTicketID(ctx context.Context, ticketID int64, updateFn UpdateFn) (entity.Booking, error)
}

type SeatGuard interface {
	Reserve(ctx context.Context, key entity.SeatKey, ticketID int64) error
	Release(ctx context.Context, key entity.SeatKey, ticketID int64) error
}

func now() time.Time {
	return time.Now().UTC()
}

// releaseSeat frees the seat of a ticket that stopped holding it. A seat no longer held by the
// ticket was already released by an earlier delivery.
func releaseSeat(ctx context.Context, seats SeatGuard, ticket entity.Ticket) error {
	err := seats.Release(ctx, ticket.SeatKey(), ticket.ID)
	if errors.Is(err, entity.ErrNotHeldByTicket) {
		log.FromContext(ctx).
			WithField("ticket_id", ticket.ID).
			WithField("seat", ticket.SeatKey().String()).
			Debug("Seat not held by ticket, already released")
		return nil
	}
	return err
}

func countRefunds(events []entity.Event) {
	for _, event := range events {
		if _, ok := event.(entity.RefundRequested_v1); ok {
			metrics.RefundsRequested.Inc()
		}
	}
}
