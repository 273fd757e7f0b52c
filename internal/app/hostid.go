package app

import (
	"fmt"
	"os/exec"
	"strings"
)

// resolveHostID runs the configured host-identity shell command once at
// startup and returns its trimmed stdout.
func resolveHostID(shellCommand string) (string, error) {
	cmd := exec.Command("sh", "-c", shellCommand)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("app: host_id_command %q: %w", shellCommand, err)
	}
	return strings.TrimSpace(string(out)), nil
}
