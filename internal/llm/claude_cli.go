package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI calls the Claude CLI (`claude -p`) as a subprocess.
type ClaudeCLI struct {
	model   string
	timeout time.Duration
	binary  string
}

// NewClaudeCLI creates a new Claude CLI client.
func NewClaudeCLI(model string, timeout time.Duration) *ClaudeCLI {
	return &ClaudeCLI{
		model:   model,
		timeout: timeout,
		binary:  "claude",
	}
}

// Complete pipes the prompt to the Claude CLI and returns stdout.
func (c *ClaudeCLI) Complete(ctx context.Context, r Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"-p", "--model", c.model, "--max-turns", "1"}
	if r.System != "" {
		args = append(args, "--system-prompt", r.System)
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdin = strings.NewReader(r.Prompt)
	cmd.Env = filterEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("claude cli: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return &Response{
		Content:  strings.TrimSpace(stdout.String()),
		Provider: "claude-cli",
	}, nil
}

// filterEnv drops CLAUDE_* variables so a CLI call made from inside another
// Claude session does not inherit that session's hooks.
func filterEnv(env []string) []string {
	filtered := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE_") {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
