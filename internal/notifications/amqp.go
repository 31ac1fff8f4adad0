package notifications

import (
	"context"

	"messaging-service/internal/observability"
)

// Publisher is the subset of the RabbitMQ publisher the sink needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AMQPSink publishes events to the notifications topic exchange.
type AMQPSink struct {
	publisher Publisher
}

func NewAMQPSink(publisher Publisher) *AMQPSink {
	return &AMQPSink{publisher: publisher}
}

func (s *AMQPSink) Emit(ctx context.Context, event Event) error {
	return s.publisher.Publish(ctx, RoutingKey(event.Type), event, observability.HeadersFromContext(ctx))
}
