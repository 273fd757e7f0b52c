// Package busout implements the Bus Sender: a worker that submits
// FileRecords to a message-bus client and routes asynchronous
// delivery-report outcomes back to offset commit, re-enqueue, or drop.
package busout

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"tailshipper/internal/record"
)

// DeliveryResult is one asynchronous delivery outcome: the record it
// concerns, and an error if delivery failed.
type DeliveryResult struct {
	Record record.Record
	Err    error
}

// Producer is the narrow message-bus collaborator the Sender depends on.
// A group of size 1 is a single produce; larger groups batch.
type Producer interface {
	Produce(ctx context.Context, topic string, rec record.Record) <-chan DeliveryResult
	ProduceBatch(ctx context.Context, topic string, recs []record.Record) <-chan DeliveryResult
	Close() error
}

// JetStreamProducer is a Producer backed by NATS JetStream.
type JetStreamProducer struct {
	js jetstream.JetStream
}

// NewJetStreamProducer wraps an already-connected JetStream context.
func NewJetStreamProducer(js jetstream.JetStream) *JetStreamProducer {
	return &JetStreamProducer{js: js}
}

// Produce publishes a single record and reports the outcome asynchronously
// on the returned channel, mirroring produce(topic, payload, opaque=record).
func (p *JetStreamProducer) Produce(ctx context.Context, topic string, rec record.Record) <-chan DeliveryResult {
	out := make(chan DeliveryResult, 1)
	go func() {
		_, err := p.js.Publish(ctx, topic, rec.Payload)
		if err != nil {
			err = fmt.Errorf("busout: publish %s: %w", topic, err)
		}
		out <- DeliveryResult{Record: rec, Err: err}
		close(out)
	}()
	return out
}

// ProduceBatch publishes each record in recs, reporting every outcome on
// the shared returned channel (produce_batch semantics).
func (p *JetStreamProducer) ProduceBatch(ctx context.Context, topic string, recs []record.Record) <-chan DeliveryResult {
	out := make(chan DeliveryResult, len(recs))
	go func() {
		for _, rec := range recs {
			_, err := p.js.Publish(ctx, topic, rec.Payload)
			if err != nil {
				err = fmt.Errorf("busout: publish %s: %w", topic, err)
			}
			out <- DeliveryResult{Record: rec, Err: err}
		}
		close(out)
	}()
	return out
}

// Close releases no resources of its own; the caller owns the underlying
// NATS connection's lifecycle.
func (p *JetStreamProducer) Close() error { return nil }

// Retriable classifies a delivery error: connection-level and timeout
// failures are retriable against the same topic; anything else (e.g. a
// rejected/oversized message) is terminal.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, context.DeadlineExceeded)
}
