// Package pipeline dispatches a tailed line through one of five per-file
// transform kinds, wiring field splitting, time-key normalization, and the
// scripted-callback host into a single decorated output payload.
package pipeline

import (
	"fmt"
	"strings"

	"tailshipper/internal/aggregate"
	"tailshipper/internal/fields"
	"tailshipper/internal/script"
	"tailshipper/internal/timekey"
)

// Kind is the closed set of pipeline selectors a FileContext declares.
type Kind string

const (
	KindRaw       Kind = "raw"
	KindTransform Kind = "transform"
	KindGrep      Kind = "grep"
	KindFilter    Kind = "filter"
	KindAggregate Kind = "aggregate"
)

// Config is the per-FileContext pipeline configuration.
type Config struct {
	Kind Kind

	// Host runs the scripted callback for transform/grep/aggregate. Unused
	// for raw/filter.
	Host script.Host

	// TimeIdx is the 1-based, negative-indexable field position rewritten
	// from common-log form to ISO8601 before dispatch. Nil disables
	// time-key normalization.
	TimeIdx *int

	// FilterPositions lists the 1-based, negative-indexable field
	// positions selected by a filter pipeline, in output order.
	FilterPositions []int

	// AutoSplit controls whether grep/filter/aggregate tokenize the line
	// with fields.Split before dispatch. When false the whole line is
	// passed as a single token, and TimeIdx/FilterPositions address that
	// one-element slice.
	AutoSplit bool

	// WithHost prefixes every emitted payload with HostID.
	WithHost bool
	// WithTime prefixes every aggregation-flush payload with the window's
	// time-key, after the host prefix.
	WithTime bool
	HostID   string
}

// Pipeline evaluates lines from a single FileContext.
type Pipeline struct {
	cfg Config
	agg *aggregate.Cache
}

// New returns a Pipeline for cfg. An aggregate.Cache is allocated
// internally when cfg.Kind is KindAggregate.
func New(cfg Config) *Pipeline {
	p := &Pipeline{cfg: cfg}
	if cfg.Kind == KindAggregate {
		p.agg = aggregate.NewCache()
	}
	return p
}

// Kind reports the pipeline's dispatch kind.
func (p *Pipeline) Kind() Kind { return p.cfg.Kind }

// Process evaluates one line and returns zero or more decorated output
// payloads ready for the destination sink. globalSeq is the shared
// activity tick used to detect aggregation staleness.
func (p *Pipeline) Process(line string, globalSeq uint64) ([]string, error) {
	switch p.cfg.Kind {
	case KindRaw:
		return []string{p.decorate(line)}, nil

	case KindTransform:
		outputs, err := p.cfg.Host.EvaluateLine(script.KindTransform, []string{line})
		if err != nil {
			return nil, fmt.Errorf("pipeline: transform: %w", err)
		}
		if outputs == nil {
			return nil, nil
		}
		return []string{p.decorate(strings.Join(outputs, ""))}, nil

	case KindGrep:
		toks := p.split(line)
		if p.cfg.TimeIdx != nil {
			if err := p.normalizeTimeKey(toks); err != nil {
				return nil, nil // malformed timestamp: drop the line
			}
		}
		outputs, err := p.cfg.Host.EvaluateLine(script.KindGrep, toks)
		if err != nil {
			return nil, fmt.Errorf("pipeline: grep: %w", err)
		}
		if len(outputs) == 0 {
			return nil, nil
		}
		return []string{p.decorate(strings.Join(outputs, " "))}, nil

	case KindFilter:
		toks := p.split(line)
		if p.cfg.TimeIdx != nil {
			if err := p.normalizeTimeKey(toks); err != nil {
				return nil, nil
			}
		}
		selected := make([]string, 0, len(p.cfg.FilterPositions))
		for _, pos := range p.cfg.FilterPositions {
			idx := fields.Index(len(toks), pos)
			if idx < 0 {
				selected = append(selected, "")
				continue
			}
			selected = append(selected, toks[idx])
		}
		return []string{p.decorate(strings.Join(selected, " "))}, nil

	case KindAggregate:
		toks := p.split(line)
		var timeKey string
		if p.cfg.TimeIdx != nil {
			idx := fields.Index(len(toks), *p.cfg.TimeIdx)
			if idx < 0 {
				return nil, nil
			}
			normalized, err := timekey.Normalize(toks[idx])
			if err != nil {
				return nil, nil
			}
			toks[idx] = normalized
			timeKey = normalized
		}
		res, err := p.cfg.Host.EvaluateAggregate(toks)
		if err != nil {
			return nil, fmt.Errorf("pipeline: aggregate: %w", err)
		}
		p.agg.Observe(globalSeq)
		flushed := p.agg.Add(timeKey, res.PrimaryKey, res.Deltas)
		return p.decorateFlush(flushed), nil

	default:
		return nil, fmt.Errorf("pipeline: unknown kind %q", p.cfg.Kind)
	}
}

// Tick drains the aggregation cache unconditionally on a housekeeping
// cycle with no new lines (agg.Idle), or whenever globalSeq has advanced
// past this file's own activity by more than the staleness threshold
// (agg.Stale). It is a no-op for non-aggregate pipelines.
func (p *Pipeline) Tick(globalSeq uint64) []string {
	if p.agg == nil {
		return nil
	}
	idle := p.agg.Idle()
	stale := p.agg.Stale(globalSeq)
	p.agg.EndCycle()
	if !idle && !stale {
		return nil
	}
	return p.decorateFlush(p.agg.Flush())
}

// split tokenizes line per cfg.AutoSplit, or returns it as a single token
// when autosplit is disabled.
func (p *Pipeline) split(line string) []string {
	if !p.cfg.AutoSplit {
		return []string{line}
	}
	return fields.Split(line)
}

func (p *Pipeline) normalizeTimeKey(toks []string) error {
	idx := fields.Index(len(toks), *p.cfg.TimeIdx)
	if idx < 0 {
		return fmt.Errorf("pipeline: timeidx out of range")
	}
	normalized, err := timekey.Normalize(toks[idx])
	if err != nil {
		return err
	}
	toks[idx] = normalized
	return nil
}

func (p *Pipeline) decorate(payload string) string {
	if !p.cfg.WithHost {
		return payload
	}
	return p.cfg.HostID + " " + payload
}

func (p *Pipeline) decorateFlush(buckets []aggregate.Bucket) []string {
	if len(buckets) == 0 {
		return nil
	}
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		payload := b.Payload
		if p.cfg.WithTime {
			payload = b.TimeKey + " " + payload
		}
		if p.cfg.WithHost {
			payload = p.cfg.HostID + " " + payload
		}
		out = append(out, payload)
	}
	return out
}
