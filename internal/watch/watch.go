// Package watch feeds foreground app observations to the gate. The
// observation source and the blocking presenter shell out to configurable
// commands so the same agent runs against different desktop environments.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Source reports the package name of the current foreground app. An empty
// string means nothing relevant is in the foreground.
type Source interface {
	ForegroundApp(ctx context.Context) (string, error)
}

// ScriptSource runs a shell command and treats its trimmed stdout as the
// foreground package name.
type ScriptSource struct {
	Command string
}

// ForegroundApp implements Source.
func (s *ScriptSource) ForegroundApp(ctx context.Context) (string, error) {
	if s.Command == "" {
		return "", nil
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", s.Command)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("foreground source command: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
