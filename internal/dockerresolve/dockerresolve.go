// Package dockerresolve resolves a configured container ID to the
// host-side path of its JSON log file, so the same file-tailing engine
// used for plain files can tail a container's stdout/stderr without any
// special-cased streaming path.
package dockerresolve

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// Resolver looks up a container's on-disk JSON log file via the Docker
// API.
type Resolver struct {
	cli *client.Client
}

// New creates a Resolver against the Docker daemon referenced by the
// standard DOCKER_HOST environment, negotiating the API version.
func New() (*Resolver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerresolve: connect to docker daemon: %w", err)
	}
	return &Resolver{cli: cli}, nil
}

// LogPath returns the host filesystem path of containerID's JSON log
// file, as written by Docker's json-file logging driver. An error is
// returned if the container does not exist or uses a different log
// driver (LogPath is then empty).
func (r *Resolver) LogPath(ctx context.Context, containerID string) (string, error) {
	info, err := r.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("dockerresolve: inspect %s: %w", containerID, err)
	}
	if info.LogPath == "" {
		return "", fmt.Errorf("dockerresolve: container %s has no json-file log path (driver=%s)", containerID, info.HostConfig.LogConfig.Type)
	}
	return info.LogPath, nil
}

// Close releases the underlying Docker API client.
func (r *Resolver) Close() error {
	return r.cli.Close()
}
