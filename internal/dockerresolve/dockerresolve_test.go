package dockerresolve

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestResolver_LogPath_WithTestcontainers(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:      "alpine",
		Cmd:        []string{"sh", "-c", "echo dockerresolve-test-line"},
		WaitingFor: wait.ForLog("dockerresolve-test-line"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	defer container.Terminate(ctx)

	id := container.GetContainerID()

	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	path, err := r.LogPath(runCtx, id)
	if err != nil {
		t.Fatalf("LogPath: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read resolved log path %s: %v", path, err)
	}
	if !strings.Contains(string(data), "dockerresolve-test-line") {
		t.Fatalf("log file %s did not contain expected line: %s", path, data)
	}
}

func TestResolver_LogPath_UnknownContainer(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if _, err := r.LogPath(context.Background(), "does-not-exist"); err == nil {
		t.Fatal("expected error for unknown container")
	}
}
