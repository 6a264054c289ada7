package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"busbooking/entity"
	"busbooking/metrics"
)

type Service struct {
	repo  Repository
	seats SeatGuard
	now   func() time.Time
}

func NewService(repo Repository, seats SeatGuard) *Service {
	if repo == nil {
		panic("missing repo")
	}
	if seats == nil {
		panic("missing seats")
	}

	return &Service{repo: repo, seats: seats, now: now}
}

// Create reserves every requested seat and stores the booking with its RESERVED tickets.
// Holds taken for a request that fails are given back.
func (s *Service) Create(ctx context.Context, request entity.NewBookingRequest) (entity.Booking, error) {
	if err := request.Validate(); err != nil {
		return entity.Booking{}, err
	}
	if request.OrderCode == "" {
		request.OrderCode = shortuuid.New()
	}

	ticketIDs, err := s.repo.NextTicketIDs(ctx, len(request.Seats))
	if err != nil {
		return entity.Booking{}, err
	}

	booking, err := entity.NewBooking(request, ticketIDs, s.now())
	if err != nil {
		return entity.Booking{}, err
	}

	reserved := make([]entity.Ticket, 0, len(booking.Tickets))
	for _, ticket := range booking.Tickets {
		if err := s.seats.Reserve(ctx, ticket.SeatKey(), ticket.ID); err != nil {
			s.giveBack(ctx, reserved)
			if errors.Is(err, entity.ErrSeatAlreadyHeld) {
				return entity.Booking{}, seatConflict(ticket)
			}
			return entity.Booking{}, fmt.Errorf("could not reserve seat %s: %w", ticket.SeatKey(), err)
		}
		reserved = append(reserved, ticket)
	}

	stored, err := s.repo.Add(ctx, booking)
	if err != nil {
		s.giveBack(ctx, reserved)

		// lost against a reservation the guard did not know about
		if errors.Is(err, entity.ErrSeatAlreadyHeld) {
			return entity.Booking{}, seatConflict(entity.Ticket{TripID: request.TripID})
		}
		return entity.Booking{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": stored.ID,
		"trip_id":    stored.TripID,
		"tickets":    stored.NumberOfTickets,
	}).Info("Booking created")

	return stored, nil
}

func seatConflict(ticket entity.Ticket) error {
	metrics.SeatConflicts.Inc()

	reason := "seat is already held"
	if ticket.SeatCode != "" {
		reason = fmt.Sprintf("seat %s of trip %d is already held", ticket.SeatCode, ticket.TripID)
	}

	return &entity.BookingError{Reason: reason, Err: entity.ErrSeatAlreadyHeld}
}

func (s *Service) giveBack(ctx context.Context, tickets []entity.Ticket) {
	for _, ticket := range tickets {
		if err := releaseSeat(ctx, s.seats, ticket); err != nil {
			log.FromContext(ctx).WithError(err).WithField("ticket_id", ticket.ID).Error("Could not release seat")
		}
	}
}

func (s *Service) Get(ctx context.Context, bookingID int64) (entity.Booking, error) {
	return s.repo.Get(ctx, bookingID)
}

func (s *Service) Find(ctx context.Context, filter entity.BookingFilter) ([]entity.Booking, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, entity.ValidationErrors{{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)}}
	}

	return s.repo.Find(ctx, filter)
}

// UpdateStatus applies an admin status change through the booking state machine.
// Cancelling releases the seats and requests a full refund of every paid ticket.
func (s *Service) UpdateStatus(ctx context.Context, bookingID int64, update entity.StatusUpdate) (entity.Booking, error) {
	if err := update.Validate(); err != nil {
		return entity.Booking{}, err
	}

	var published []entity.Event

	updated, err := s.repo.UpdateByID(ctx, bookingID, func(ctx context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		before := b.Clone()

		outcome, err := b.TransitionTo(update.Status, update.AdminNote, s.now())
		if err != nil {
			return entity.Booking{}, nil, err
		}

		for _, ticket := range outcome.Released {
			if err := releaseSeat(ctx, s.seats, ticket); err != nil {
				return entity.Booking{}, nil, err
			}
		}

		events := entity.StatusChangeEvents(before, b, update.AdminNote)
		for _, refund := range outcome.Refunds {
			events = append(events, refund.Event())
		}
		published = events

		return b, events, nil
	})
	if errors.Is(err, entity.ErrNotFound) {
		return entity.Booking{}, &entity.BookingError{BookingID: bookingID, Err: entity.ErrUnknownBooking}
	}
	if err != nil {
		return entity.Booking{}, err
	}

	countRefunds(published)

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"status":     updated.Status,
	}).Info("Booking status updated by admin")

	return updated, nil
}

// CancelTicket is the admin cancellation of a single ticket. A paid ticket is refunded in full.
func (s *Service) CancelTicket(ctx context.Context, ticketID int64, reason string) (entity.TicketSnapshot, error) {
	if err := entity.ValidateCancellationReason(reason); err != nil {
		return entity.TicketSnapshot{}, err
	}

	var (
		cancelled entity.Ticket
		published []entity.Event
	)

	_, err := s.repo.UpdateByTicketID(ctx, ticketID, func(ctx context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		ticket, ok := b.Ticket(ticketID)
		if !ok {
			return entity.Booking{}, nil, &entity.BookingError{BookingID: b.ID, TicketID: ticketID, Err: entity.ErrUnknownTicket}
		}
		if !ticket.Status.IsActive() {
			return entity.Booking{}, nil, &entity.BookingError{
				BookingID: b.ID,
				TicketID:  ticketID,
				Current:   ticket.Status.String(),
				Requested: entity.TicketStatusCancelled.String(),
				Reason:    "ticket is no longer active",
				Err:       entity.ErrIllegalTransition,
			}
		}

		var refundAmount int64
		if ticket.Status == entity.TicketStatusConfirmed && ticket.PaymentID != 0 {
			refundAmount = ticket.Price
		}
		cancellation := entity.Cancellation{RefundAmount: refundAmount, Reason: reason}

		if _, _, err := b.CheckCancel(ticketID, cancellation); err != nil {
			return entity.Booking{}, nil, err
		}
		if err := releaseSeat(ctx, s.seats, ticket); err != nil {
			return entity.Booking{}, nil, err
		}

		before := b.Clone()
		outcome, err := b.CancelTicket(ticketID, cancellation, s.now())
		if err != nil {
			return entity.Booking{}, nil, err
		}
		cancelled = outcome.Ticket

		events := entity.StatusChangeEvents(before, b, reason)
		if outcome.Refund != nil {
			events = append(events, outcome.Refund.Event())
		}
		published = events

		return b, events, nil
	})
	if errors.Is(err, entity.ErrNotFound) {
		return entity.TicketSnapshot{}, &entity.BookingError{TicketID: ticketID, Err: entity.ErrUnknownTicket}
	}
	if err != nil {
		return entity.TicketSnapshot{}, err
	}

	countRefunds(published)

	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id":  ticketID,
		"booking_id": cancelled.BookingID,
	}).Info("Ticket cancelled by admin")

	return cancelled.Snapshot(), nil
}
