package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes shell commands. Allows mocking in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner is the default CommandRunner using os/exec.
type ExecRunner struct{}

// Run executes a command and returns output.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, stdin string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}

// CLIClient answers prompts by running a coding-agent CLI in print mode.
// The prompt is passed on stdin so large task snapshots do not hit argv limits.
type CLIClient struct {
	name       string
	binaryPath string
	args       []string
	timeout    time.Duration
	runner     CommandRunner
}

// CLIOption configures a CLIClient.
type CLIOption func(*CLIClient)

// WithBinaryPath sets a custom path to the CLI binary.
func WithBinaryPath(path string) CLIOption {
	return func(c *CLIClient) {
		if path != "" {
			c.binaryPath = path
		}
	}
}

// WithCLITimeout sets the per-call timeout.
func WithCLITimeout(d time.Duration) CLIOption {
	return func(c *CLIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRunner sets a custom command runner (for testing).
func WithRunner(r CommandRunner) CLIOption {
	return func(c *CLIClient) { c.runner = r }
}

// NewClaudeCLI runs `claude --print`.
func NewClaudeCLI(opts ...CLIOption) *CLIClient {
	return newCLI("claude", "claude", []string{"--print"}, opts)
}

// NewCodexCLI runs `codex exec -`.
func NewCodexCLI(opts ...CLIOption) *CLIClient {
	return newCLI("codex", "codex", []string{"exec", "-"}, opts)
}

func newCLI(name, binary string, args []string, opts []CLIOption) *CLIClient {
	c := &CLIClient{
		name:       name,
		binaryPath: binary,
		args:       args,
		timeout:    60 * time.Second,
		runner:     &ExecRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the agent identifier.
func (c *CLIClient) Name() string {
	return c.name
}

// Complete runs the CLI with prompt on stdin and returns its stdout.
func (c *CLIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stdout, stderr, exitCode, err := c.runner.Run(ctx, c.binaryPath, c.args, prompt)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", unavailableErr(c.name, fmt.Errorf("timeout after %v: %w", c.timeout, ctx.Err()))
	}
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return "", unavailable("%s exited with code %d: %s", c.name, exitCode, truncate(msg, 200))
	}
	if exitCode != 0 {
		return "", unavailable("%s exited with code %d", c.name, exitCode)
	}
	return strings.TrimSpace(stdout), nil
}

// Available checks if the binary is in PATH.
func (c *CLIClient) Available() bool {
	_, err := exec.LookPath(c.binaryPath)
	return err == nil
}
