// Package tail implements per-file line reading and an fsnotify-driven
// watcher: inode-aware rotation/truncation detection, bounded partial-line
// buffering, startup line-alignment, and dispatch into a transform
// pipeline.
package tail

import (
	"bytes"
	"fmt"
	"os"
	"syscall"
	"time"

	"tailshipper/internal/offsetstore"
	"tailshipper/internal/pipeline"
	"tailshipper/internal/record"
)

// MaxLineLen bounds the partial-line buffer and the longest line this
// reader will hold in memory before treating the bound itself as an
// implicit terminator.
const MaxLineLen = 10 * 1024

// FileContext is one watched file: its open descriptor (if any), observed
// inode and size, partial-line buffer, and the pipeline it feeds.
type FileContext struct {
	Index    int // stable identity across rotations, used for record back-references
	Path     string
	HostID   string
	Sink     record.Sink
	Topic    string
	IndexFn  func(now time.Time) string
	Pipeline *pipeline.Pipeline

	store offsetstore.Store

	file  *os.File
	inode uint64
	nlink uint64
	size  int64

	offset int64 // read cursor: byte position of the next unread byte
	buf    []byte
	synced bool // fsnotify watch currently installed on this path
}

// NewFileContext returns a FileContext ready for Attach.
func NewFileContext(index int, path string, store offsetstore.Store, p *pipeline.Pipeline) *FileContext {
	return &FileContext{
		Index:    index,
		Path:     path,
		Pipeline: p,
		store:    store,
		buf:      make([]byte, 0, MaxLineLen),
	}
}

// Attach opens the file for the first time, reconciling with any
// previously persisted offset and performing startup line-alignment when
// none applies.
func (c *FileContext) Attach() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("tail: open %s: %w", c.Path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("tail: stat %s: %w", c.Path, err)
	}
	stat := info.Sys().(*syscall.Stat_t)
	c.file = f
	c.inode = stat.Ino
	c.nlink = uint64(stat.Nlink)
	c.size = info.Size()

	key := offsetstore.Key{Path: c.Path, Inode: c.inode}
	rectified := offsetstore.Rectify(c.store, key, c.size)
	if rectified.Known {
		if _, err := f.Seek(rectified.Offset, 0); err != nil {
			return fmt.Errorf("tail: seek %s to %d: %w", c.Path, rectified.Offset, err)
		}
		c.offset = rectified.Offset
		return nil
	}
	return c.alignFromEnd()
}

// alignFromEnd performs startup line-alignment: seek back at most
// MaxLineLen bytes from end-of-file, locate the last newline, and persist
// the position immediately after it. Any bytes after that newline seed buf,
// and reading continues from end-of-file.
func (c *FileContext) alignFromEnd() error {
	back := c.size
	if back > MaxLineLen {
		back = MaxLineLen
	}
	start := c.size - back
	tail := make([]byte, back)
	if back > 0 {
		if _, err := c.file.ReadAt(tail, start); err != nil {
			return fmt.Errorf("tail: read tail of %s: %w", c.Path, err)
		}
	}
	aligned := start
	if idx := bytes.LastIndexByte(tail, '\n'); idx >= 0 {
		aligned = start + int64(idx) + 1
	}
	// The residue is already in buf, so the cursor sits at end-of-file.
	c.buf = append(c.buf[:0], tail[aligned-start:]...)
	c.offset = c.size
	if _, err := c.file.Seek(c.offset, 0); err != nil {
		return fmt.Errorf("tail: seek %s to %d: %w", c.Path, c.offset, err)
	}
	key := offsetstore.Key{Path: c.Path, Inode: c.inode}
	c.store.Put(key, aligned)
	return nil
}

// Offset returns the reader's current byte cursor, for status reporting.
func (c *FileContext) Offset() int64 { return c.offset }

// rotated reports whether the on-disk file at c.Path is no longer the
// inode this FileContext currently has open.
func (c *FileContext) rotated() (bool, error) {
	if c.file != nil {
		info, err := c.file.Stat()
		if err == nil {
			stat := info.Sys().(*syscall.Stat_t)
			if stat.Nlink == 0 {
				return true, nil
			}
			if info.Size() < c.size {
				return true, nil
			}
		}
	}
	info, err := os.Stat(c.Path)
	if err != nil {
		return false, err
	}
	stat := info.Sys().(*syscall.Stat_t)
	return stat.Ino != c.inode, nil
}
