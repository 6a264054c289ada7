package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"busbooking/entity"
)

type DataLake interface {
	GetEvents(ctx context.Context, eventNames ...string) ([]entity.DataLakeEvent, error)
}

type BookingHistoryReadModel interface {
	OnBookingCreated(ctx context.Context, event *entity.BookingCreated_v1) error
	OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error
	OnTicketStatusChanged(ctx context.Context, event *entity.TicketStatusChanged_v1) error
	OnRefundRequested(ctx context.Context, event *entity.RefundRequested_v1) error
	OnDiscrepancyDetected(ctx context.Context, event *entity.BookingDiscrepancyDetected_v1) error
}

var historyEvents = []string{
	"BookingCreated_v1",
	"BookingStatusChanged_v1",
	"TicketStatusChanged_v1",
	"RefundRequested_v1",
	"BookingDiscrepancyDetected_v1",
}

// RebuildBookingHistory replays the data lake into the booking history read model.
// Entries already present are kept, so it is safe to run on every start.
func RebuildBookingHistory(ctx context.Context, dl DataLake, rm BookingHistoryReadModel) error {
	logger := log.FromContext(ctx)
	logger.Info("Rebuilding booking history")

	events, err := dl.GetEvents(ctx, historyEvents...)
	if err != nil {
		return fmt.Errorf("could not get events from data lake: %w", err)
	}

	start := time.Now()

	for _, event := range events {
		if err := replayEvent(ctx, event, rm); err != nil {
			return fmt.Errorf("could not replay event %s (%s): %w", event.ID, event.Name, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"events_count": len(events),
		"duration":     time.Since(start),
	}).Info("Booking history rebuilt")

	return nil
}

func replayEvent(ctx context.Context, event entity.DataLakeEvent, rm BookingHistoryReadModel) error {
	switch event.Name {
	case "BookingCreated_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingCreated_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingCreated(ctx, e)
	case "BookingStatusChanged_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingStatusChanged_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingStatusChanged(ctx, e)
	case "TicketStatusChanged_v1":
		e, err := unmarshalDataLakeEvent[entity.TicketStatusChanged_v1](event)
		if err != nil {
			return err
		}
		return rm.OnTicketStatusChanged(ctx, e)
	case "RefundRequested_v1":
		e, err := unmarshalDataLakeEvent[entity.RefundRequested_v1](event)
		if err != nil {
			return err
		}
		return rm.OnRefundRequested(ctx, e)
	case "BookingDiscrepancyDetected_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingDiscrepancyDetected_v1](event)
		if err != nil {
			return err
		}
		return rm.OnDiscrepancyDetected(ctx, e)
	default:
		log.FromContext(ctx).WithField("event_name", event.Name).Debug("Event does not affect booking history")
		return nil
	}
}

func unmarshalDataLakeEvent[T any](event entity.DataLakeEvent) (*T, error) {
	eventInstance := new(T)

	err := json.Unmarshal(event.Payload, eventInstance)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal event %s: %w", event.Name, err)
	}

	return eventInstance, nil
}
