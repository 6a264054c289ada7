package event

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"busbooking/entity"
)

func (h Handler) PaymentCompletedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"ReconcilePaymentCompleted",
		func(ctx context.Context, event *entity.PaymentCompleted_v1) error {
			log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("Reconciling completed payment")

			return h.reconciler.OnPaymentCompleted(ctx, event)
		},
	)
}

func (h Handler) TicketCancelledHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"ReconcileTicketCancelled",
		func(ctx context.Context, event *entity.TicketCancelled_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Debug("Reconciling ticket cancellation")

			return h.reconciler.OnTicketCancelled(ctx, event)
		},
	)
}
