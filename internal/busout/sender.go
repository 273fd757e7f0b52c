package busout

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"tailshipper/internal/offsetstore"
	"tailshipper/internal/record"
)

// Sender is the single worker reading from a process-internal record
// queue and submitting to the message-bus client.
type Sender struct {
	producer Producer
	store    offsetstore.Store
	in       <-chan []record.Record
	requeue  chan<- []record.Record

	errorCount atomic.Int64
}

// NewSender returns a Sender that drains groups from in. Terminal
// failures are dropped and counted; retriable failures are written back
// to requeue for a future attempt.
func NewSender(producer Producer, store offsetstore.Store, in <-chan []record.Record, requeue chan<- []record.Record) *Sender {
	return &Sender{producer: producer, store: store, in: in, requeue: requeue}
}

// ErrorCount returns the number of records dropped after a terminal
// delivery failure.
func (s *Sender) ErrorCount() int64 { return s.errorCount.Load() }

// Run drains groups from s.in until ctx is cancelled or the channel
// closes.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case group, ok := <-s.in:
			if !ok {
				return
			}
			if len(group) == 0 {
				continue
			}
			var results <-chan DeliveryResult
			topic := group[0].Topic
			if len(group) == 1 {
				results = s.producer.Produce(ctx, topic, group[0])
			} else {
				results = s.producer.ProduceBatch(ctx, topic, group)
			}
			s.poll(ctx, results)
		}
	}
}

// poll drains every delivery report from results, routing each to offset
// commit, re-enqueue, or drop-and-count.
func (s *Sender) poll(ctx context.Context, results <-chan DeliveryResult) {
	for res := range results {
		if res.Err == nil {
			if res.Record.HasOffset() {
				s.store.Put(offsetstore.Key{Path: res.Record.Path, Inode: res.Record.Inode}, res.Record.Offset)
			}
			continue
		}
		if Retriable(res.Err) {
			rec := res.Record
			rec.IncRetry()
			select {
			case s.requeue <- []record.Record{rec}:
			case <-ctx.Done():
			}
			continue
		}
		log.Error().Err(res.Err).Str("path", res.Record.Path).Msg("busout: terminal delivery failure, dropping record")
		s.errorCount.Add(1)
	}
}
