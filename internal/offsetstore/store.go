// Package offsetstore persists per-file byte offsets durably across
// restarts.
package offsetstore

import "fmt"

// Key identifies one tracked file by path and inode. The inode is part of
// the key because rotation replaces the inode at a stable path.
type Key struct {
	Path  string
	Inode uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d", k.Path, k.Inode)
}

// Store persists and recovers per-file byte offsets.
type Store interface {
	// Get returns the stored offset for key, and false if none is known.
	Get(key Key) (offset int64, ok bool)

	// Put updates the in-memory offset for key. Implementations guarantee
	// eventual durable persistence within a bounded interval, or before a
	// clean shutdown — never synchronously on every call.
	Put(key Key, offset int64)

	// Flush forces a durable write of the current in-memory state.
	Flush() error

	// Close flushes and releases any underlying resources.
	Close() error
}

// RectifyResult is returned by Rectify for a single candidate file.
type RectifyResult struct {
	// Offset is the position the reader should seek to. Zero if the file
	// has no prior knowledge and startup alignment should run instead.
	Offset int64
	// Known is true if a prior offset applies directly (no alignment
	// needed); false means the caller must perform startup line-alignment.
	Known bool
}

// Rectify performs per-context startup reconciliation: if a stored entry
// exists for (path, inode) and the file's current size is at least that
// offset, the reader can seek directly; otherwise the caller must align
// from end-of-file and Rectify records nothing (the caller persists the
// fresh entry once alignment completes).
func Rectify(s Store, key Key, currentSize int64) RectifyResult {
	offset, ok := s.Get(key)
	if !ok {
		return RectifyResult{Known: false}
	}
	if currentSize < offset {
		return RectifyResult{Known: false}
	}
	return RectifyResult{Offset: offset, Known: true}
}
