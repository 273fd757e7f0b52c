package tail

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"tailshipper/internal/offsetstore"
	"tailshipper/internal/pipeline"
	"tailshipper/internal/record"
)

// Advance refreshes the file's size, reads any newly appended bytes,
// extracts complete lines, and pushes the resulting records onto out. It
// detects rotation/truncation first and re-attaches to the path when
// necessary.
func (c *FileContext) Advance(globalSeq uint64, out chan<- record.Record) error {
	if c.file == nil {
		return c.tryReattach(globalSeq, out)
	}

	rotated, err := c.rotated()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("tail: stat %s: %w", c.Path, err)
	}
	if rotated {
		if err := c.handleRotation(globalSeq, out); err != nil {
			return err
		}
	}
	if c.file == nil {
		return nil
	}

	info, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("tail: stat %s: %w", c.Path, err)
	}
	size := info.Size()
	c.size = size

	for {
		room := MaxLineLen - len(c.buf)
		if room <= 0 {
			// Over-length line: treat the bound itself as a terminator.
			c.emitLine(c.buf, globalSeq, out)
			c.buf = c.buf[:0]
			room = MaxLineLen
		}
		chunk := make([]byte, room)
		n, readErr := c.file.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
			c.offset += int64(n)
			c.drainLines(globalSeq, out)
		}
		if readErr != nil || n == 0 {
			break
		}
	}
	return nil
}

// drainLines extracts every complete newline-terminated line currently in
// buf, feeds each to the pipeline, and shifts any residue to the buffer
// head.
func (c *FileContext) drainLines(globalSeq uint64, out chan<- record.Record) {
	start := 0
	consumedThroughLine := int64(0)
	for i := 0; i < len(c.buf); i++ {
		if c.buf[i] != '\n' {
			continue
		}
		line := c.buf[start : i+1]
		consumedThroughLine = c.offset - int64(len(c.buf)-(i+1))
		c.emitLineAt(line, consumedThroughLine, globalSeq, out)
		start = i + 1
	}
	if start > 0 {
		residue := len(c.buf) - start
		copy(c.buf, c.buf[start:])
		c.buf = c.buf[:residue]
	}
}

func (c *FileContext) emitLine(line []byte, globalSeq uint64, out chan<- record.Record) {
	c.emitLineAt(line, c.offset, globalSeq, out)
}

func (c *FileContext) emitLineAt(line []byte, fileOffset int64, globalSeq uint64, out chan<- record.Record) {
	payloads, err := c.Pipeline.Process(string(line), globalSeq)
	if err != nil {
		return
	}
	recOffset := fileOffset
	if c.Pipeline.Kind() == pipeline.KindAggregate {
		recOffset = record.NoOffset
	}
	for _, p := range payloads {
		out <- c.toRecord(p, recOffset)
	}
	// Every other kind emits a record that carries this line's real offset
	// downstream, and the sink commits it on acknowledgement
	// (httpsink/sender.go, busout/sender.go). An aggregate pipeline's
	// flushes (the rollover flush emitted here, and the staleness flush
	// from pipeline.Pipeline.Tick, driven by the watcher's ticker) carry
	// record.NoOffset and so are never committed by a sender; the bucket
	// has already durably absorbed this line in memory regardless of delivery outcome,
	// so withholding the commit buys nothing and would only make the file
	// re-read and re-aggregate lines already folded into a sent bucket.
	if c.Pipeline.Kind() == pipeline.KindAggregate {
		key := offsetstore.Key{Path: c.Path, Inode: c.inode}
		c.store.Put(key, fileOffset)
	}
}

func (c *FileContext) toRecord(payload string, fileOffset int64) record.Record {
	r := record.Record{
		Payload:      []byte(payload),
		Sink:         c.Sink,
		Topic:        c.Topic,
		ContextIndex: c.Index,
		Path:         c.Path,
		Inode:        c.inode,
		Offset:       fileOffset,
	}
	if c.Sink == record.SinkHTTP && c.IndexFn != nil {
		r.Index = c.IndexFn(time.Now())
	}
	return r
}

// handleRotation closes the stale descriptor, emitting any buffered
// residue as a final line, and attempts to open the path fresh.
func (c *FileContext) handleRotation(globalSeq uint64, out chan<- record.Record) error {
	if len(c.buf) > 0 {
		c.emitLine(c.buf, globalSeq, out)
		c.buf = c.buf[:0]
	}
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	return c.tryReattach(globalSeq, out)
}

// tryReattach attempts to open c.Path fresh. A rotated file starts empty,
// so no startup alignment is needed: reading resumes from offset 0.
func (c *FileContext) tryReattach(globalSeq uint64, out chan<- record.Record) error {
	f, err := os.Open(c.Path)
	if err != nil {
		// Unlinked-but-open: the path doesn't resolve yet. Leave file nil
		// and retry on the next housekeeping pass.
		return nil
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
	c.offset = 0
	c.buf = c.buf[:0]
	return nil
}

// Drained reports whether the currently-open descriptor's underlying
// inode has been fully unlinked (nlink == 0) and may be released.
func (c *FileContext) Drained() bool {
	if c.file == nil {
		return false
	}
	info, err := c.file.Stat()
	if err != nil {
		return true
	}
	stat := info.Sys().(*syscall.Stat_t)
	return stat.Nlink == 0
}

// Close releases the open descriptor, if any.
func (c *FileContext) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
