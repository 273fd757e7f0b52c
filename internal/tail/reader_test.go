package tail

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tailshipper/internal/offsetstore"
	"tailshipper/internal/pipeline"
	"tailshipper/internal/record"
	"tailshipper/internal/script"
)

func intPtr(i int) *int { return &i }

// stubAggregateHost is a minimal script.Host exercising only the
// aggregate callback.
type stubAggregateHost struct {
	result func(fields []string) (script.AggregateResult, error)
}

func (h *stubAggregateHost) EvaluateLine(kind script.Kind, fields []string) ([]string, error) {
	return nil, nil
}

func (h *stubAggregateHost) EvaluateAggregate(fields []string) (script.AggregateResult, error) {
	return h.result(fields)
}

func (h *stubAggregateHost) Close() {}

type memStore struct {
	mu      sync.Mutex
	entries map[offsetstore.Key]int64
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[offsetstore.Key]int64)}
}

func (s *memStore) Get(k offsetstore.Key) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[k]
	return v, ok
}

func (s *memStore) Put(k offsetstore.Key, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[k] = offset
}

func (s *memStore) Flush() error { return nil }
func (s *memStore) Close() error { return nil }

func rawPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{Kind: pipeline.KindRaw})
}

func TestFileContext_Attach_NoPriorOffset_StartsAtEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("first\nsecond\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	fc := NewFileContext(0, path, store, rawPipeline())
	defer fc.Close()

	if err := fc.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if fc.offset != int64(len("first\nsecond\n")) {
		t.Fatalf("offset = %d, want end of file (no alignment needed, file already newline-terminated)", fc.offset)
	}

	out := make(chan record.Record, 4)
	if err := fc.Advance(0, out); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	close(out)
	var got []record.Record
	for r := range out {
		got = append(got, r)
	}
	if len(got) != 0 {
		t.Fatalf("expected no new records, got %d", len(got))
	}
}

func TestFileContext_Advance_EmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	fc := NewFileContext(0, path, store, rawPipeline())
	defer fc.Close()

	if err := fc.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("hello\nworld\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := make(chan record.Record, 4)
	if err := fc.Advance(0, out); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	close(out)
	var payloads []string
	var last record.Record
	for r := range out {
		payloads = append(payloads, string(r.Payload))
		last = r
	}
	if len(payloads) != 2 || payloads[0] != "hello\n" || payloads[1] != "world\n" {
		t.Fatalf("got %#v", payloads)
	}
	if last.Offset != int64(len("hello\nworld\n")) {
		t.Fatalf("final offset = %d, want %d", last.Offset, len("hello\nworld\n"))
	}
	// A raw pipeline's records are only committed once a sink acknowledges
	// them; Advance alone must not advance the persisted offset past the 0
	// that startup alignment of the empty file recorded.
	if persisted, ok := store.Get(offsetstore.Key{Path: path, Inode: fc.inode}); !ok || persisted != 0 {
		t.Fatalf("persisted offset = %d, ok=%v, want 0 (not advanced before sink ack)", persisted, ok)
	}
}

func TestFileContext_Advance_AggregateCommitsAtReadTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	p := pipeline.New(pipeline.Config{
		Kind:      pipeline.KindAggregate,
		TimeIdx:   intPtr(1),
		AutoSplit: true,
		Host: &stubAggregateHost{result: func(f []string) (script.AggregateResult, error) {
			return script.AggregateResult{PrimaryKey: "/a", Deltas: map[string]int64{"hits": 1}}, nil
		}},
	})
	fc := NewFileContext(0, path, store, p)
	defer fc.Close()

	if err := fc.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	line := "28/Feb/2015:12:05:04 /a\n"
	if _, err := f.WriteString(line); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := make(chan record.Record, 4)
	if err := fc.Advance(0, out); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	close(out)
	for range out {
	}

	// Aggregate flushes never get a sink acknowledgement to key a commit
	// off (their records carry NoOffset on the staleness path); the read
	// itself must commit since the bucket has already absorbed the line.
	persisted, ok := store.Get(offsetstore.Key{Path: path, Inode: fc.inode})
	if !ok || persisted != int64(len(line)) {
		t.Fatalf("persisted offset = %d, ok=%v, want %d", persisted, ok, len(line))
	}
}

// TestFileContext_Rotation exercises scenario: a file truncated to 0 after
// its entire prior content was emitted, and the next append is the only
// thing emitted afterward, at offset 5 counted from the start of the
// truncated file.
func TestFileContext_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := newMemStore()
	fc := NewFileContext(0, path, store, rawPipeline())
	defer fc.Close()

	if err := fc.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	out := make(chan record.Record, 8)

	// Simulate truncate-in-place (same inode, size drops to 0).
	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("abcd\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fc.Advance(0, out); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	close(out)

	var got []record.Record
	for r := range out {
		got = append(got, r)
	}
	if len(got) != 1 || string(got[0].Payload) != "abcd\n" {
		t.Fatalf("got %#v", got)
	}
	if got[0].Offset != 5 {
		t.Fatalf("offset = %d, want 5", got[0].Offset)
	}
}
