package tail

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"tailshipper/internal/record"
)

// HousekeepingInterval is the watcher's idle-wakeup cadence: every cycle,
// watched or not, runs housekeep (dropping watches on unlinked files,
// re-watching unwatched paths) and drives aggregation staleness flushes.
const HousekeepingInterval = 500 * time.Millisecond

// Watcher wraps an fsnotify.Watcher and drives a set of FileContexts.
type Watcher struct {
	fsw      *fsnotify.Watcher
	contexts map[string]*FileContext
	out      chan<- record.Record
	globalSeq uint64
}

// NewWatcher returns a Watcher that pushes emitted records onto out.
func NewWatcher(out chan<- record.Record) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		contexts: make(map[string]*FileContext),
		out:      out,
	}, nil
}

// Add attaches ctx (running its startup alignment/rectification) and
// installs an fsnotify watch on its path.
func (w *Watcher) Add(ctx *FileContext) error {
	if err := ctx.Attach(); err != nil {
		log.Warn().Err(err).Str("path", ctx.Path).Msg("tail: attach failed, will retry")
	} else if err := w.fsw.Add(ctx.Path); err != nil {
		log.Warn().Err(err).Str("path", ctx.Path).Msg("tail: watch install failed")
	} else {
		ctx.synced = true
	}
	w.contexts[ctx.Path] = ctx
	return nil
}

// Run drives the event loop until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(HousekeepingInterval)
	defer ticker.Stop()
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			for _, fc := range w.contexts {
				fc.Close()
			}
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			fc, ok := w.contexts[ev.Name]
			if !ok {
				continue // spurious event for an unknown/removed watch
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := fc.Advance(w.globalSeq, w.out); err != nil {
					log.Warn().Err(err).Str("path", fc.Path).Msg("tail: advance failed")
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("tail: watcher error")

		case <-ticker.C:
			w.globalSeq++
			w.housekeep()
		}
	}
}

// housekeep runs every cycle regardless of whether any fsnotify event
// arrived: it drops watches on fully-drained files, retries re-opening
// currently-unwatched paths, and drives aggregation staleness flushes.
func (w *Watcher) housekeep() {
	for _, fc := range w.contexts {
		if fc.synced && fc.file != nil && fc.Drained() {
			w.fsw.Remove(fc.Path)
			fc.Close()
			fc.synced = false
		}
		if !fc.synced {
			if err := fc.tryReattach(w.globalSeq, w.out); err == nil && fc.file != nil {
				if err := w.fsw.Add(fc.Path); err == nil {
					fc.synced = true
				}
			}
		}
		if fc.Pipeline != nil {
			for _, payload := range fc.Pipeline.Tick(w.globalSeq) {
				w.out <- fc.toRecord(payload, record.NoOffset)
			}
		}
	}
}
