// Package natsctx propagates OpenTelemetry trace context across NATS messages.
package natsctx

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Publish injects the current trace context into a NATS header and publishes data to subject.
func Publish(ctx context.Context, nc *nats.Conn, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data

	carrier := propagation.HeaderCarrier(msg.Header)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return nc.PublishMsg(msg)
}

// Handler processes one inbound message with trace context restored onto ctx.
type Handler func(ctx context.Context, msg *nats.Msg)

// Subscribe wraps handler so every delivered message starts a consumer-kind span
// linked to the publisher's trace context.
func Subscribe(nc *nats.Conn, subject string, handler Handler) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		carrier := propagation.HeaderCarrier(msg.Header)
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)

		ctx, span := otel.Tracer("agentmind.natsctx").Start(ctx, "nats.consume",
			trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		handler(ctx, msg)
	})
}
