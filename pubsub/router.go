package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"busbooking/entity"
	"busbooking/pubsub/bus"
)

const eventsTopic = "events"

type DataLake interface {
	StoreEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent) error
}

type RouterConfig struct {
	RedisClient            *redis.Client
	RedisPublisher         message.Publisher
	EventProcessorConfig   cqrs.EventProcessorConfig
	EventHandlers          []cqrs.EventHandler
	CommandProcessorConfig cqrs.CommandProcessorConfig
	CommandHandlers        []cqrs.CommandHandler
	DataLake               DataLake
}

func NewWatermillRouter(config RouterConfig, watermillLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	if err := useMiddlewares(router, config.RedisPublisher, watermillLogger); err != nil {
		return nil, err
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, config.EventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}
	if err := eventProcessor.AddHandlers(config.EventHandlers...); err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	commandProcessor, err := cqrs.NewCommandProcessorWithConfig(router, config.CommandProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create command processor: %w", err)
	}
	if err := commandProcessor.AddHandlers(config.CommandHandlers...); err != nil {
		return nil, fmt.Errorf("could not add handlers to command processor: %w", err)
	}

	splitterSubscriber, err := newRedisSubscriber(config.RedisClient, "svc-bookings.events_splitter", watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create events splitter subscriber: %w", err)
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		eventsTopic,
		splitterSubscriber,
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			return config.RedisPublisher.Publish(eventsTopic+"."+eventName, msg)
		},
	)

	dataLakeSubscriber, err := newRedisSubscriber(config.RedisClient, "svc-bookings.store_to_data_lake", watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create data lake subscriber: %w", err)
	}

	router.AddNoPublisherHandler(
		"store_to_data_lake",
		eventsTopic,
		dataLakeSubscriber,
		func(msg *message.Message) error {
			return storeToDataLake(msg, config.DataLake)
		},
	)

	return router, nil
}

func storeToDataLake(msg *message.Message, dataLake DataLake) error {
	eventName := bus.Marshaler.NameFromMessage(msg)
	if eventName == "" {
		return fmt.Errorf("could not get event name from message")
	}

	// only the header is needed, the payload is stored as is
	type event struct {
		Header entity.EventHeader `json:"header"`
	}

	var e event
	if err := bus.Marshaler.Unmarshal(msg, &e); err != nil {
		return fmt.Errorf("could not unmarshal event: %w", err)
	}

	return dataLake.StoreEvent(
		msg.Context(),
		entity.DataLakeEvent{
			ID:          e.Header.ID,
			PublishedAt: e.Header.PublishedAt,
			Name:        eventName,
			Payload:     msg.Payload,
		},
	)
}
