package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"busbooking/entity"
	"busbooking/metrics"
)

// Reconciler applies payment and cancellation notifications to bookings. Every delivery of an
// event may be a redelivery, so each step checks what was already applied.
type Reconciler struct {
	repo  Repository
	seats SeatGuard
	now   func() time.Time
}

func NewReconciler(repo Repository, seats SeatGuard) *Reconciler {
	if repo == nil {
		panic("missing repo")
	}
	if seats == nil {
		panic("missing seats")
	}

	return &Reconciler{repo: repo, seats: seats, now: now}
}

func (r *Reconciler) Apply(ctx context.Context, event entity.InboundEvent) error {
	switch e := event.(type) {
	case *entity.PaymentCompleted_v1:
		return r.OnPaymentCompleted(ctx, e)
	case entity.PaymentCompleted_v1:
		return r.OnPaymentCompleted(ctx, &e)
	case *entity.TicketCancelled_v1:
		return r.OnTicketCancelled(ctx, e)
	case entity.TicketCancelled_v1:
		return r.OnTicketCancelled(ctx, &e)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

func (r *Reconciler) OnPaymentCompleted(ctx context.Context, event *entity.PaymentCompleted_v1) error {
	if err := event.Validate(); err != nil {
		return err
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": event.BookingID,
		"payment_id": event.PaymentID,
	})

	var outcome entity.PaymentOutcome

	_, err := r.repo.UpdateByID(ctx, event.BookingID, func(ctx context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		before := b.Clone()

		var err error
		outcome, err = b.ApplyPayment(event.PaymentID, r.now())
		if err != nil {
			return entity.Booking{}, nil, err
		}
		if outcome.Duplicate {
			return b, nil, nil
		}

		events := entity.StatusChangeEvents(before, b, fmt.Sprintf("payment %d completed", event.PaymentID))
		if len(outcome.Skipped) > 0 {
			events = append(events, entity.BookingDiscrepancyDetected_v1{
				Header:    entity.NewEventHeaderWithIdempotencyKey(fmt.Sprintf("discrepancy-%d-%d", b.ID, event.PaymentID)),
				BookingID: b.ID,
				PaymentID: event.PaymentID,
				TicketIDs: lo.Map(outcome.Skipped, func(t entity.Ticket, _ int) int64 {
					return t.ID
				}),
				Reason: "payment completed for tickets that are no longer reserved",
			})
		}

		return b, events, nil
	})
	if errors.Is(err, entity.ErrNotFound) {
		return &entity.BookingError{
			BookingID: event.BookingID,
			Reason:    fmt.Sprintf("referenced by payment %d", event.PaymentID),
			Err:       entity.ErrUnknownBooking,
		}
	}
	if err != nil {
		return err
	}

	if outcome.Duplicate {
		metrics.EventsDeduplicated.WithLabelValues("PaymentCompleted_v1").Inc()
		logger.Info("Payment already applied, skipping")
		return nil
	}
	if len(outcome.Skipped) > 0 {
		metrics.Discrepancies.Inc()
		logger.
			WithField("skipped_tickets", len(outcome.Skipped)).
			Warn("Payment completed for tickets that are no longer reserved, flagged for review")
	}

	logger.WithField("confirmed_tickets", len(outcome.Confirmed)).Info("Booking confirmed")

	return nil
}

func (r *Reconciler) OnTicketCancelled(ctx context.Context, event *entity.TicketCancelled_v1) error {
	if err := event.Validate(); err != nil {
		return err
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id":  event.TicketID,
		"payment_id": event.PaymentID,
	})

	cancellation := entity.Cancellation{
		PaymentID:    event.PaymentID,
		RefundAmount: event.RefundAmount,
		Reason:       event.RefundReason,
	}

	var (
		duplicate       bool
		recordedPayment int64
		outcome         entity.CancelOutcome
	)

	_, err := r.repo.UpdateByTicketID(ctx, event.TicketID, func(ctx context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		ticket, alreadyCancelled, err := b.CheckCancel(event.TicketID, cancellation)
		if err != nil {
			return entity.Booking{}, nil, err
		}
		if alreadyCancelled {
			duplicate = true
			recordedPayment = ticket.PaymentID
			return b, nil, nil
		}
		if ticket.PaymentID != 0 && event.PaymentID != 0 && ticket.PaymentID != event.PaymentID {
			return entity.Booking{}, nil, &entity.BookingError{
				BookingID: b.ID,
				TicketID:  ticket.ID,
				Reason:    fmt.Sprintf("ticket was paid with payment %d, not %d", ticket.PaymentID, event.PaymentID),
				Err:       entity.ErrInvalidRefund,
			}
		}

		// released before the status change is committed; a rollback leaves the ticket active and
		// the redelivered event releases the same hold again
		if err := releaseSeat(ctx, r.seats, ticket); err != nil {
			return entity.Booking{}, nil, err
		}

		before := b.Clone()
		outcome, err = b.CancelTicket(event.TicketID, cancellation, r.now())
		if err != nil {
			return entity.Booking{}, nil, err
		}

		events := entity.StatusChangeEvents(before, b, event.RefundReason)
		if outcome.Refund != nil {
			events = append(events, outcome.Refund.Event())
		}

		return b, events, nil
	})
	if errors.Is(err, entity.ErrNotFound) {
		logger.Warn("Cancelled ticket is unknown, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	if duplicate {
		metrics.EventsDeduplicated.WithLabelValues("TicketCancelled_v1").Inc()
		if recordedPayment != event.PaymentID {
			metrics.Discrepancies.Inc()
			logger.
				WithField("recorded_payment_id", recordedPayment).
				Warn("Ticket already cancelled under another payment, flagged for review")
			return nil
		}
		logger.Info("Ticket already cancelled, skipping")
		return nil
	}

	if outcome.Refund != nil {
		metrics.RefundsRequested.Inc()
		logger = logger.WithField("refund_amount", outcome.Refund.Amount)
	}
	logger.Info("Ticket cancelled")

	return nil
}

// ExpireTicket ends a reservation whose payment deadline elapsed. It is a cancellation without
// refund and does nothing once the ticket left RESERVED.
func (r *Reconciler) ExpireTicket(ctx context.Context, ticketID int64) error {
	logger := log.FromContext(ctx).WithField("ticket_id", ticketID)

	var expired bool

	_, err := r.repo.UpdateByTicketID(ctx, ticketID, func(ctx context.Context, b entity.Booking) (entity.Booking, []entity.Event, error) {
		expired = false

		ticket, ok := b.Ticket(ticketID)
		if !ok || ticket.Status != entity.TicketStatusReserved {
			return b, nil, nil
		}

		if err := releaseSeat(ctx, r.seats, ticket); err != nil {
			return entity.Booking{}, nil, err
		}

		before := b.Clone()
		var err error
		expired, err = b.ExpireTicket(ticketID, r.now())
		if err != nil {
			return entity.Booking{}, nil, err
		}

		return b, entity.StatusChangeEvents(before, b, "reservation expired"), nil
	})
	if errors.Is(err, entity.ErrNotFound) {
		logger.Warn("Expired ticket is unknown, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	if expired {
		logger.Info("Reservation expired")
	}

	return nil
}
