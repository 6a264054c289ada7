package command

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"busbooking/entity"
)

func (h Handler) ExpireTicketHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"ExpireTicketHandler",
		func(ctx context.Context, cmd *entity.ExpireTicket) error {
			log.FromContext(ctx).WithField("ticket_id", cmd.TicketID).Debug("Expiring reservation")

			return h.expirer.ExpireTicket(ctx, cmd.TicketID)
		},
	)
}
