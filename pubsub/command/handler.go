package command

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type TicketExpirer interface {
	ExpireTicket(ctx context.Context, ticketID int64) error
}

type Handler struct {
	expirer TicketExpirer
}

func NewHandler(expirer TicketExpirer) Handler {
	if expirer == nil {
		panic("missing expirer")
	}

	return Handler{expirer: expirer}
}

func (h Handler) Handlers() []cqrs.CommandHandler {
	return []cqrs.CommandHandler{
		h.ExpireTicketHandler(),
	}
}
