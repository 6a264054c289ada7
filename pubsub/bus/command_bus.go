package bus

import (
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Marshaler is shared by buses and processors so that event names match on both ends.
var Marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func CommandTopic(commandName string) string {
	return "commands.svc-bookings." + commandName
}

func NewCommandBus(pub message.Publisher) (*cqrs.CommandBus, error) {
	return cqrs.NewCommandBusWithConfig(pub, cqrs.CommandBusConfig{
		GeneratePublishTopic: func(params cqrs.CommandBusGeneratePublishTopicParams) (string, error) {
			return CommandTopic(params.CommandName), nil
		},
		Marshaler: Marshaler,
	})
}
