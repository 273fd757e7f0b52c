package app

import "testing"

func TestResolveHostID_TrimsOutput(t *testing.T) {
	got, err := resolveHostID("echo '  worker-07  '")
	if err != nil {
		t.Fatalf("resolveHostID: %v", err)
	}
	if got != "worker-07" {
		t.Fatalf("got %q, want %q", got, "worker-07")
	}
}

func TestResolveHostID_CommandFailure(t *testing.T) {
	if _, err := resolveHostID("exit 1"); err == nil {
		t.Fatal("expected error for a failing command")
	}
}
