package io

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/swarmguard/agentmind/internal/core/natsctx"
)

// Broker wraps a JetStream-backed NATS connection for task envelope
// publish/subscribe with manual ack and prefetch=1: auto-reconnect with
// bounded backoff, and unacked envelopes redeliver.
type Broker struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Dial connects to url with auto-reconnect and bounded exponential backoff, and
// opens the JetStream context.
func Dial(url string) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			if attempts > 5 {
				return 30 * time.Second
			}
			if d := time.Second << uint(attempts); d < 30*time.Second {
				return d
			}
			return 30 * time.Second
		}),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("io: broker connect failed: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("io: jetstream init failed: %w", err)
	}

	return &Broker{conn: conn, js: js}, nil
}

// Close drains and closes the connection.
func (b *Broker) Close() {
	_ = b.conn.Drain()
}

// Publish sends data to subject with trace-context propagation.
func (b *Broker) Publish(ctx context.Context, subject string, data []byte) error {
	return natsctx.Publish(ctx, b.conn, subject, data)
}

// EnsureStream idempotently creates (or updates) a stream named name backing subject.
func (b *Broker) EnsureStream(ctx context.Context, name, subject string) error {
	_, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
	})
	return err
}

// Envelope is one delivered message with explicit ack control.
type Envelope struct {
	Data []byte
	msg  jetstream.Msg
}

// Ack acknowledges the envelope; must only be called after the terminal status
// envelope has been published.
func (e Envelope) Ack() error {
	return e.msg.Ack()
}

// Nak negatively acknowledges, requesting redelivery.
func (e Envelope) Nak() error {
	return e.msg.Nak()
}

// Consumer is a prefetch=1 durable pull consumer over one stream/subject.
type Consumer struct {
	consumer jetstream.Consumer
}

// NewConsumer creates (or attaches to) a durable pull consumer named durable
// on stream, bounding in-flight envelopes to 1.
func (b *Broker) NewConsumer(ctx context.Context, stream, durable, subject string) (*Consumer, error) {
	c, err := b.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("io: consumer create failed: %w", err)
	}
	return &Consumer{consumer: c}, nil
}

// Next blocks for up to timeout for the next envelope.
func (c *Consumer) Next(ctx context.Context, timeout time.Duration) (Envelope, error) {
	msg, err := c.consumer.Next(jetstream.FetchMaxWait(timeout))
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Data: msg.Data(), msg: msg}, nil
}

// QueueDepth reports the durable consumer's backlog on stream: messages not
// yet delivered plus messages delivered but not yet acked. This is the queue
// depth the autoscaler's publisher samples on its own interval.
func (b *Broker) QueueDepth(ctx context.Context, stream, durable string) (int, error) {
	cons, err := b.js.Consumer(ctx, stream, durable)
	if err != nil {
		return 0, fmt.Errorf("io: queue depth lookup failed: %w", err)
	}
	info, err := cons.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("io: consumer info failed: %w", err)
	}
	return int(info.NumPending) + int(info.NumAckPending), nil
}
