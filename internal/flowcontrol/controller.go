// Package flowcontrol implements the backpressure flag any record
// producer consults before enqueueing work for the HTTP Sender: an
// atomic flag toggled by a poller watching the sender's busy-connection
// load against its configured ceiling.
package flowcontrol

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// LoadSource reports the current aggregate busy-connection count across
// HTTP Sender workers.
type LoadSource interface {
	Load() int64
}

// backlogLogInterval is how many 10 ms poll iterations elapse between
// backlog notices while the flag remains set.
const backlogLogInterval = 500

const pollInterval = 10 * time.Millisecond

// overCeiling is the slack the sender may run over maxConns before the
// flag is raised, matching the flow-control invariant that busy
// connections stay at or below maxConns + 10.
const overCeiling = 10

// Controller polls a LoadSource and maintains a process-wide blocked flag.
type Controller struct {
	source   LoadSource
	maxConns int64

	blocked atomic.Bool
}

// NewController returns a Controller that raises Blocked() once load
// exceeds maxConns by more than 10.
func NewController(source LoadSource, maxConns int64) *Controller {
	return &Controller{source: source, maxConns: maxConns}
}

// Blocked reports whether upstream producers should currently delay
// enqueueing new HTTP-sink records. It never causes a record to be
// dropped; callers must still retry the enqueue later.
func (c *Controller) Blocked() bool { return c.blocked.Load() }

// Run polls every 10 ms until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	iterations := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load := c.source.Load()
			over := load-c.maxConns > overCeiling

			if over {
				if !c.blocked.Load() {
					c.blocked.Store(true)
				}
				iterations++
				if iterations%backlogLogInterval == 0 {
					log.Warn().Int64("load", load).Int64("max_conns", c.maxConns).Msg("flowcontrol: sustained backlog")
				}
			} else {
				if c.blocked.Load() {
					c.blocked.Store(false)
					log.Info().Int64("load", load).Msg("flowcontrol: backlog cleared")
				}
				iterations = 0
			}
		}
	}
}
