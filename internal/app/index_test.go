package app

import (
	"testing"
	"time"
)

func TestBuildIndexFn(t *testing.T) {
	fn := buildIndexFn("logs-%Y.%m.%d")
	got := fn(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))
	if got != "logs-2026.08.06" {
		t.Fatalf("got %q, want logs-2026.08.06", got)
	}
}

func TestBuildIndexFn_NoDirectives(t *testing.T) {
	fn := buildIndexFn("static-index")
	if got := fn(time.Now()); got != "static-index" {
		t.Fatalf("got %q, want static-index", got)
	}
}
