package read_models_handlers

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"busbooking/entity"
)

type Repository interface {
	Append(ctx context.Context, entries ...entity.BookingHistoryEntry) error
}

// BookingHistoryReadModel builds the audit trail of bookings from published events.
// Entries are keyed by event id, so replays and redeliveries are harmless.
type BookingHistoryReadModel struct {
	repo Repository
}

func NewBookingHistoryReadModel(repo Repository) BookingHistoryReadModel {
	if repo == nil {
		panic("missing repo")
	}

	return BookingHistoryReadModel{repo: repo}
}

func (r BookingHistoryReadModel) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler("booking_history.OnBookingCreated", r.OnBookingCreated),
		cqrs.NewEventHandler("booking_history.OnBookingStatusChanged", r.OnBookingStatusChanged),
		cqrs.NewEventHandler("booking_history.OnTicketStatusChanged", r.OnTicketStatusChanged),
		cqrs.NewEventHandler("booking_history.OnRefundRequested", r.OnRefundRequested),
		cqrs.NewEventHandler("booking_history.OnDiscrepancyDetected", r.OnDiscrepancyDetected),
	}
}

func (r BookingHistoryReadModel) OnBookingCreated(ctx context.Context, event *entity.BookingCreated_v1) error {
	log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("BookingHistory: OnBookingCreated")

	return r.append(ctx, entity.BookingHistoryEntry{
		EntryID:    event.Header.ID,
		BookingID:  event.BookingID,
		Kind:       entity.HistoryBookingCreated,
		ToStatus:   entity.BookingStatusPending.String(),
		Amount:     event.TotalPrice,
		Note:       event.OrderCode,
		OccurredAt: event.Header.PublishedAt,
	})
}

func (r BookingHistoryReadModel) OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error {
	log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("BookingHistory: OnBookingStatusChanged")

	return r.append(ctx, entity.BookingHistoryEntry{
		EntryID:    event.Header.ID,
		BookingID:  event.BookingID,
		Kind:       entity.HistoryBookingStatusChanged,
		FromStatus: event.From.String(),
		ToStatus:   event.To.String(),
		Note:       event.Note,
		OccurredAt: event.Header.PublishedAt,
	})
}

func (r BookingHistoryReadModel) OnTicketStatusChanged(ctx context.Context, event *entity.TicketStatusChanged_v1) error {
	log.FromContext(ctx).WithField("ticket_id", event.TicketID).Debug("BookingHistory: OnTicketStatusChanged")

	return r.append(ctx, entity.BookingHistoryEntry{
		EntryID:    event.Header.ID,
		BookingID:  event.BookingID,
		TicketID:   event.TicketID,
		Kind:       entity.HistoryTicketStatusChanged,
		FromStatus: event.From.String(),
		ToStatus:   event.To.String(),
		Note:       event.Reason,
		OccurredAt: event.Header.PublishedAt,
	})
}

func (r BookingHistoryReadModel) OnRefundRequested(ctx context.Context, event *entity.RefundRequested_v1) error {
	log.FromContext(ctx).WithField("ticket_id", event.TicketID).Debug("BookingHistory: OnRefundRequested")

	return r.append(ctx, entity.BookingHistoryEntry{
		EntryID:    event.Header.ID,
		BookingID:  event.BookingID,
		TicketID:   event.TicketID,
		Kind:       entity.HistoryRefundRequested,
		Amount:     event.Amount,
		Note:       event.Reason,
		OccurredAt: event.Header.PublishedAt,
	})
}

func (r BookingHistoryReadModel) OnDiscrepancyDetected(ctx context.Context, event *entity.BookingDiscrepancyDetected_v1) error {
	log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("BookingHistory: OnDiscrepancyDetected")

	return r.append(ctx, entity.BookingHistoryEntry{
		EntryID:    event.Header.ID,
		BookingID:  event.BookingID,
		Kind:       entity.HistoryDiscrepancy,
		Note:       event.Reason,
		OccurredAt: event.Header.PublishedAt,
	})
}

func (r BookingHistoryReadModel) append(ctx context.Context, entry entity.BookingHistoryEntry) error {
	if err := r.repo.Append(ctx, entry); err != nil {
		return &entity.BookingHistoryError{BookingID: entry.BookingID, Err: err}
	}
	return nil
}
