// Package httpsink implements the HTTP Sender: a fan of worker goroutines,
// each owning a fixed-capacity pool of keep-alive SenderConnections, a
// hand-rolled HTTP/1.1 request/response framing, and multi-node failover.
package httpsink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"tailshipper/internal/offsetstore"
	"tailshipper/internal/record"
)

// InactivityTimeout bounds how long a SenderConnection may wait for
// connect, write, or read progress before being treated as stalled.
var InactivityTimeout = 30 * time.Second

// maxConnsPerWorker is the ceiling used to size the worker fan:
// N = ceil(maxConns / maxConnsPerWorker).
const maxConnsPerWorker = 500

// Sender is the HTTP Sender (component G): N workers, each with its own
// connection pool, dispatched round-robin.
type Sender struct {
	nodes []string
	store offsetstore.Store

	workers []*worker
	next    atomic.Uint64

	errorCount atomic.Int64
}

// NewSender builds a Sender with N = ceil(maxConns/500) workers, each
// holding a pool of capacity = max(1, maxConns/N).
func NewSender(nodes []string, maxConns int, store offsetstore.Store) *Sender {
	n := (maxConns + maxConnsPerWorker - 1) / maxConnsPerWorker
	if n < 1 {
		n = 1
	}
	capacity := maxConns / n
	if capacity < 1 {
		capacity = 1
	}
	s := &Sender{nodes: nodes, store: store}
	s.workers = make([]*worker, n)
	for i := range s.workers {
		s.workers[i] = newWorker(nodes, capacity, store, &s.errorCount)
	}
	return s
}

// Run starts every worker; it blocks until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) {
	done := make(chan struct{}, len(s.workers))
	for _, w := range s.workers {
		go func(w *worker) {
			w.run(ctx)
			done <- struct{}{}
		}(w)
	}
	for range s.workers {
		<-done
	}
}

// Dispatch round-robins rec to one of the workers' inboxes.
func (s *Sender) Dispatch(ctx context.Context, rec record.Record) {
	i := s.next.Add(1) % uint64(len(s.workers))
	select {
	case s.workers[i].in <- rec:
	case <-ctx.Done():
	}
}

// ErrorCount returns the total number of records dropped after exhausting
// every node.
func (s *Sender) ErrorCount() int64 { return s.errorCount.Load() }

// Load sums busy-connection counts across every worker, for the Flow
// Controller's backlog poll.
func (s *Sender) Load() int64 {
	var total int64
	for _, w := range s.workers {
		total += w.busy.Load()
	}
	return total
}

// worker owns a fixed-capacity pool of SenderConnections and drains its
// own inbox.
type worker struct {
	in    chan record.Record
	pool  chan *SenderConnection
	cap   int
	alive atomic.Int64 // connections created so far, bounded by cap
	busy  atomic.Int64

	nodes []string
	store offsetstore.Store

	errorCount *atomic.Int64
}

func newWorker(nodes []string, capacity int, store offsetstore.Store, errorCount *atomic.Int64) *worker {
	return &worker{
		in:         make(chan record.Record, capacity),
		pool:       make(chan *SenderConnection, capacity),
		cap:        capacity,
		nodes:      nodes,
		store:      store,
		errorCount: errorCount,
	}
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-w.in:
			if !ok {
				return
			}
			w.deliver(ctx, rec)
		}
	}
}

// deliver obtains an idle connection (lazily creating one up to capacity),
// sends the request, and applies success/failover/error semantics.
func (w *worker) deliver(ctx context.Context, rec record.Record) {
	w.busy.Add(1)
	defer w.busy.Add(-1)

	conn := w.obtain()
	nodeIdx := int(rec.RetryCount()) % len(w.nodes)
	node := w.nodes[nodeIdx]

	if !conn.idle() {
		if err := conn.reinit(node); err != nil {
			w.failover(ctx, rec, conn, err)
			return
		}
	}

	req := buildRequest(node, rec.Index, rec.Payload)
	resp, err := conn.send(req)
	if err != nil {
		w.failover(ctx, rec, conn, err)
		return
	}

	switch {
	case resp.Code == 201:
		if rec.HasOffset() {
			w.store.Put(offsetstore.Key{Path: rec.Path, Inode: rec.Inode}, rec.Offset)
		}
	case resp.Code == 400 || resp.Code == 429:
		log.Warn().Int("status", resp.Code).Str("path", rec.Path).Msg("httpsink: soft rejection, not counted as error")
	default:
		log.Error().Int("status", resp.Code).Str("path", rec.Path).Msg("httpsink: non-201 response")
		w.errorCount.Add(1)
	}
	w.release(conn)
}

// failover closes the stalled/broken connection and, if retries remain,
// rotates to the next node and re-dispatches; otherwise drops the record
// and counts an error.
func (w *worker) failover(ctx context.Context, rec record.Record, conn *SenderConnection, cause error) {
	conn.close()
	if rec.RetryCount() >= len(w.nodes) {
		log.Error().Err(cause).Str("path", rec.Path).Msg("httpsink: exhausted all nodes, dropping record")
		w.errorCount.Add(1)
		w.release(conn)
		return
	}
	rec.IncRetry()
	w.release(conn)
	w.deliver(ctx, rec)
}

// obtain returns an idle pooled connection, or a fresh unestablished one
// if the pool has room below capacity.
func (w *worker) obtain() *SenderConnection {
	select {
	case c := <-w.pool:
		return c
	default:
	}
	if w.alive.Load() < int64(w.cap) {
		w.alive.Add(1)
	}
	return newSenderConnection(InactivityTimeout)
}

// release returns an established connection to the pool for reuse, or
// drops it (and frees its capacity slot) if it was closed.
func (w *worker) release(conn *SenderConnection) {
	if conn.conn == nil {
		w.alive.Add(-1)
		return
	}
	select {
	case w.pool <- conn:
	default:
		conn.close()
		w.alive.Add(-1)
	}
}
