// Package aggregate implements the per-file aggregation bucket cache: a
// primary-key to secondary-key integer counter map that rolls over and
// flushes on time-key change or staleness.
package aggregate

import "sort"

// Bucket is one flushed primary-key's accumulated counters, already
// serialized as the primary key followed by its "key=value" pairs, joined
// by single spaces in alphabetical secondary-key order (accumulation order
// is not otherwise meaningful, so a fixed order keeps output
// deterministic).
type Bucket struct {
	TimeKey    string
	PrimaryKey string
	Payload    string
}

// Cache accumulates secondary-key deltas under a primary key, keyed to a
// single time-key window at a time. It is not goroutine-safe; each
// FileContext's pipeline owns one Cache, driven from the single watcher
// goroutine.
type Cache struct {
	initialized bool
	lastTimeKey string

	buckets map[string]map[string]int64
	order   []string // primary-key arrival order, for deterministic flush order

	localSeq uint64

	// active is set by Observe and cleared by EndCycle, so a caller driving
	// one housekeeping cycle per tick can tell whether this cache saw any
	// line since the previous cycle.
	active bool
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{buckets: make(map[string]map[string]int64)}
}

// Add accumulates deltas under primaryKey for the given timeKey. If timeKey
// differs from the window currently held, the prior window is flushed
// first (returned) and cleared before the new deltas are accumulated.
func (c *Cache) Add(timeKey, primaryKey string, deltas map[string]int64) []Bucket {
	var flushed []Bucket
	if !c.initialized {
		c.initialized = true
		c.lastTimeKey = timeKey
	} else if timeKey != c.lastTimeKey {
		flushed = c.drain()
		c.lastTimeKey = timeKey
	}

	bucket, ok := c.buckets[primaryKey]
	if !ok {
		bucket = make(map[string]int64)
		c.buckets[primaryKey] = bucket
		c.order = append(c.order, primaryKey)
	}
	for k, v := range deltas {
		bucket[k] += v
	}
	return flushed
}

// Flush drains the current window unconditionally, keeping the
// last-known time-key for subsequent accumulation. Callers invoke this on
// an idle cycle (no new lines) or once the file's activity sequence has
// trailed the global sequence past the staleness threshold.
func (c *Cache) Flush() []Bucket {
	return c.drain()
}

// Observe records that this cache's owner processed a line at globalSeq.
func (c *Cache) Observe(globalSeq uint64) {
	c.localSeq = globalSeq
	c.active = true
}

// StalenessThreshold is the tick lag past which a cache is force-flushed
// even without a time-key rollover.
const StalenessThreshold = 1000

// Stale reports whether globalSeq has outrun this cache's last observed
// tick by more than StalenessThreshold.
func (c *Cache) Stale(globalSeq uint64) bool {
	return globalSeq > c.localSeq && globalSeq-c.localSeq > StalenessThreshold
}

// Idle reports whether this cache has seen no line since the last
// EndCycle call, i.e. the housekeeping cycle now ending had no activity
// for it.
func (c *Cache) Idle() bool {
	return !c.active
}

// EndCycle clears the per-cycle activity flag. Callers invoke this once
// per housekeeping cycle, after consulting Idle.
func (c *Cache) EndCycle() {
	c.active = false
}

func (c *Cache) drain() []Bucket {
	if len(c.order) == 0 {
		return nil
	}
	out := make([]Bucket, 0, len(c.order))
	for _, primary := range c.order {
		out = append(out, Bucket{
			TimeKey:    c.lastTimeKey,
			PrimaryKey: primary,
			Payload:    primary + " " + serialize(c.buckets[primary]),
		})
	}
	c.buckets = make(map[string]map[string]int64)
	c.order = nil
	return out
}

func serialize(secondary map[string]int64) string {
	keys := make([]string, 0, len(secondary))
	for k := range secondary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []byte
	for i, k := range keys {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, k...)
		out = append(out, '=')
		out = appendInt(out, secondary[k])
	}
	return string(out)
}

func appendInt(dst []byte, n int64) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return append(dst, buf[i:]...)
}
