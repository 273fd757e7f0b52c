package offsetstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileStore is a textual on-disk Store: one line per (path, inode, offset)
// triple, UTF-8 decimal, atomic replacement via write-temp-and-rename.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[Key]int64
	dirty   bool

	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewFileStore loads path if it exists and starts a background flusher. A
// missing or corrupt file is non-fatal: it is treated as "no prior
// knowledge" and a fresh file is written on the next flush.
func NewFileStore(path string, flushInterval time.Duration) *FileStore {
	s := &FileStore{
		path:          path,
		entries:       make(map[Key]int64),
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
	if err := s.load(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("offset store: starting with no prior knowledge")
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			log.Warn().Str("path", s.path).Int("line", lineNo).Msg("offset store: malformed line, skipping")
			continue
		}
		inode, err1 := strconv.ParseUint(parts[1], 10, 64)
		offset, err2 := strconv.ParseInt(parts[2], 10, 64)
		if err1 != nil || err2 != nil {
			log.Warn().Str("path", s.path).Int("line", lineNo).Msg("offset store: malformed line, skipping")
			continue
		}
		s.entries[Key{Path: parts[0], Inode: inode}] = offset
	}
	return sc.Err()
}

func (s *FileStore) Get(key Key) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offset, ok := s.entries[key]
	return offset, ok
}

func (s *FileStore) Put(key Key, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[key]; ok && offset <= cur {
		return
	}
	s.entries[key] = offset
	s.dirty = true
}

func (s *FileStore) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Error().Err(err).Msg("offset store: periodic flush failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

// Flush atomically replaces the on-disk file with the current in-memory
// state via write-temp-and-rename.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	var sb strings.Builder
	for key, offset := range s.entries {
		fmt.Fprintf(&sb, "%s\t%d\t%d\n", key.Path, key.Inode, offset)
	}
	s.dirty = false
	s.mu.Unlock()

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".offsets-*.tmp")
	if err != nil {
		return fmt.Errorf("offset store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("offset store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("offset store: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("offset store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("offset store: rename temp file: %w", err)
	}
	return nil
}

// Close stops the background flusher and performs a final flush, so that a
// clean shutdown never loses an acknowledged offset.
func (s *FileStore) Close() error {
	close(s.stopCh)
	s.wg.Wait()
	return s.Flush()
}
