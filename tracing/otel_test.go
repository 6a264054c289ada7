package tracing_test

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"busbooking/tracing"
)

func TestPublisherDecorator_injects_trace_context(t *testing.T) {
	tp, err := tracing.ConfigureTraceProvider("")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	ctx, span := otel.Tracer("").Start(context.Background(), "publish")
	defer span.End()

	msg := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	msg.SetContext(ctx)

	publisher := tracing.PublisherDecorator{Publisher: pubSub}
	require.NoError(t, publisher.Publish("topic", msg))

	received := <-messages
	received.Ack()

	traceParent := received.Metadata.Get("traceparent")
	require.NotEmpty(t, traceParent)
	assert.Contains(t, traceParent, span.SpanContext().TraceID().String())
}
