package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"busbooking/entity"
)

type ExpiredReservationsFinder interface {
	FindExpiredReservations(ctx context.Context, olderThan time.Time, limit int) ([]entity.Ticket, error)
}

type CommandSender interface {
	Send(ctx context.Context, cmd any) error
}

// Sweeper periodically requests expiry of reservations that were not paid within ttl.
// The expiry itself runs as a command, so it is retried like any other message.
type Sweeper struct {
	finder     ExpiredReservationsFinder
	commandBus CommandSender
	ttl        time.Duration
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

func NewSweeper(finder ExpiredReservationsFinder, commandBus CommandSender, ttl, interval time.Duration) Sweeper {
	if finder == nil {
		panic("missing finder")
	}
	if commandBus == nil {
		panic("missing commandBus")
	}
	if ttl <= 0 || interval <= 0 {
		panic("ttl and interval must be positive")
	}

	return Sweeper{
		finder:     finder,
		commandBus: commandBus,
		ttl:        ttl,
		interval:   interval,
		batchSize:  100,
		now:        now,
	}
}

func (s Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.FromContext(ctx).WithError(err).Error("Reservation sweep failed")
			}
		}
	}
}

// Sweep sends one ExpireTicket command per overdue reservation and returns how many were sent.
func (s Sweeper) Sweep(ctx context.Context) (int, error) {
	tickets, err := s.finder.FindExpiredReservations(ctx, s.now().Add(-s.ttl), s.batchSize)
	if err != nil {
		return 0, err
	}

	for i, ticket := range tickets {
		err := s.commandBus.Send(ctx, &entity.ExpireTicket{
			Header:   entity.NewEventHeaderWithIdempotencyKey(fmt.Sprintf("expire-%d", ticket.ID)),
			TicketID: ticket.ID,
		})
		if err != nil {
			return i, fmt.Errorf("could not send expiry of ticket %d: %w", ticket.ID, err)
		}
	}

	if len(tickets) > 0 {
		log.FromContext(ctx).WithField("tickets", len(tickets)).Info("Requested expiry of overdue reservations")
	}

	return len(tickets), nil
}
