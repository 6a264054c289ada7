package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busbooking/entity"
)

func pendingBooking(t *testing.T) entity.Booking {
	t.Helper()

	booking, err := entity.NewBooking(entity.NewBookingRequest{
		UserID:    5,
		TripID:    7,
		OrderCode: "order-1",
		Seats: []entity.SeatRequest{
			{SeatID: 1, SeatCode: "A1", Price: 50000},
			{SeatID: 2, SeatCode: "A2", Price: 50000},
		},
	}, []int64{10, 11}, time.Now())
	require.NoError(t, err)
	booking.ID = 1

	return booking
}

func TestApplyUpdate_tickets_changed_in_place(t *testing.T) {
	ctx := context.Background()
	booking := pendingBooking(t)

	updated, changed, _, err := applyUpdate(ctx, booking, func(_ context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		_, err := b.ApplyPayment(99, time.Now())
		return b, nil, err
	})
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, updated.Status)
	require.Len(t, changed, 2)
	for _, ticket := range changed {
		assert.Equal(t, entity.TicketStatusConfirmed, ticket.Status)
		assert.EqualValues(t, 99, ticket.PaymentID)
	}
}

func TestApplyUpdate_only_changed_tickets(t *testing.T) {
	ctx := context.Background()
	booking := pendingBooking(t)
	_, err := booking.ApplyPayment(99, time.Now())
	require.NoError(t, err)

	_, changed, _, err := applyUpdate(ctx, booking, func(_ context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		_, err := b.CancelTicket(11, entity.Cancellation{PaymentID: 99, RefundAmount: 50000, Reason: "change of plan"}, time.Now())
		return b, nil, err
	})
	require.NoError(t, err)

	require.Len(t, changed, 1)
	assert.EqualValues(t, 11, changed[0].ID)
	assert.Equal(t, entity.TicketStatusCancelled, changed[0].Status)
}

func TestApplyUpdate_error(t *testing.T) {
	booking := pendingBooking(t)

	_, changed, events, err := applyUpdate(context.Background(), booking, func(_ context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		return entity.Booking{}, nil, errors.New("rejected")
	})
	assert.Error(t, err)
	assert.Empty(t, changed)
	assert.Empty(t, events)
}
