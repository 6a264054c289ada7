package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"busbooking/entity"
)

type Reconciler interface {
	OnPaymentCompleted(ctx context.Context, event *entity.PaymentCompleted_v1) error
	OnTicketCancelled(ctx context.Context, event *entity.TicketCancelled_v1) error
}

type Handler struct {
	reconciler Reconciler
}

func NewHandler(reconciler Reconciler) Handler {
	if reconciler == nil {
		panic("missing reconciler")
	}

	return Handler{reconciler: reconciler}
}

func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		h.PaymentCompletedHandler(),
		h.TicketCancelledHandler(),
	}
}
