package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"busbooking/entity"
)

// memoryRepository mimics the postgres repository: updates of one booking are serialized,
// a failed update leaves no trace and events are recorded only for committed updates.
type memoryRepository struct {
	mu            sync.Mutex
	bookings      map[int64]entity.Booking
	ticketBooking map[int64]int64
	locks         map[int64]*sync.Mutex
	events        []entity.Event
	nextBookingID int64
	nextTicketID  int64
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		bookings:      map[int64]entity.Booking{},
		ticketBooking: map[int64]int64{},
		locks:         map[int64]*sync.Mutex{},
	}
}

func (r *memoryRepository) NextTicketIDs(_ context.Context, n int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		r.nextTicketID++
		ids = append(ids, r.nextTicketID)
	}
	return ids, nil
}

func (r *memoryRepository) Add(_ context.Context, booking entity.Booking) (entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, stored := range r.bookings {
		for _, held := range stored.Tickets {
			if !held.Status.HoldsSeat() {
				continue
			}
			for _, t := range booking.Tickets {
				if held.SeatKey() == t.SeatKey() {
					return entity.Booking{}, entity.ErrSeatAlreadyHeld
				}
			}
		}
	}

	r.nextBookingID++
	booking = booking.Clone()
	booking.ID = r.nextBookingID
	for i := range booking.Tickets {
		booking.Tickets[i].BookingID = booking.ID
		r.ticketBooking[booking.Tickets[i].ID] = booking.ID
	}
	r.bookings[booking.ID] = booking
	r.locks[booking.ID] = &sync.Mutex{}
	r.events = append(r.events, entity.BookingCreated_v1{Header: entity.NewEventHeader(), BookingID: booking.ID})

	return booking.Clone(), nil
}

func (r *memoryRepository) Get(_ context.Context, bookingID int64) (entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[bookingID]
	if !ok {
		return entity.Booking{}, fmt.Errorf("booking %d: %w", bookingID, entity.ErrNotFound)
	}
	return booking.Clone(), nil
}

func (r *memoryRepository) Find(_ context.Context, filter entity.BookingFilter) ([]entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []entity.Booking
	for _, b := range r.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.UserID != 0 && b.UserID != filter.UserID {
			continue
		}
		if filter.TripID != 0 && b.TripID != filter.TripID {
			continue
		}
		result = append(result, b.Clone())
	}
	return result, nil
}

func (r *memoryRepository) UpdateByID(ctx context.Context, bookingID int64, updateFn UpdateFn) (entity.Booking, error) {
	r.mu.Lock()
	lock, ok := r.locks[bookingID]
	r.mu.Unlock()
	if !ok {
		return entity.Booking{}, fmt.Errorf("booking %d: %w", bookingID, entity.ErrNotFound)
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	current := r.bookings[bookingID].Clone()
	r.mu.Unlock()

	updated, events, err := updateFn(ctx, current)
	if err != nil {
		return entity.Booking{}, err
	}

	r.mu.Lock()
	r.bookings[bookingID] = updated.Clone()
	r.events = append(r.events, events...)
	r.mu.Unlock()

	return updated, nil
}

func (r *memoryRepository) UpdateByTicketID(ctx context.Context, ticketID int64, updateFn UpdateFn) (entity.Booking, error) {
	r.mu.Lock()
	bookingID, ok := r.ticketBooking[ticketID]
	r.mu.Unlock()
	if !ok {
		return entity.Booking{}, fmt.Errorf("ticket %d: %w", ticketID, entity.ErrNotFound)
	}

	return r.UpdateByID(ctx, bookingID, updateFn)
}

func (r *memoryRepository) FindExpiredReservations(_ context.Context, olderThan time.Time, limit int) ([]entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []entity.Ticket
	for _, b := range r.bookings {
		for _, t := range b.Tickets {
			if t.Status == entity.TicketStatusReserved && t.CreatedAt.Before(olderThan) && len(result) < limit {
				result = append(result, t)
			}
		}
	}
	return result, nil
}

func (r *memoryRepository) publishedEvents() []entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.Event(nil), r.events...)
}

func (r *memoryRepository) refunds() []entity.RefundRequested_v1 {
	var refunds []entity.RefundRequested_v1
	for _, event := range r.publishedEvents() {
		if refund, ok := event.(entity.RefundRequested_v1); ok {
			refunds = append(refunds, refund)
		}
	}
	return refunds
}
