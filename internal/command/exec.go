package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// defaultMaxOutput caps the bytes of tool output kept in a Result.
const defaultMaxOutput = 64 * 1024

// ExecProcessor runs a binary with the probe's arguments appended to a
// fixed prefix.
type ExecProcessor struct {
	binary    string
	prefix    []string
	env       []string
	maxOutput int
	logger    *slog.Logger
}

// ExecOption configures an ExecProcessor.
type ExecOption func(*ExecProcessor)

// WithPrefixArgs sets arguments placed before the probe's arguments.
func WithPrefixArgs(args ...string) ExecOption {
	return func(p *ExecProcessor) {
		p.prefix = args
	}
}

// WithEnv adds KEY=VALUE entries to the child environment.
func WithEnv(env ...string) ExecOption {
	return func(p *ExecProcessor) {
		p.env = append(p.env, env...)
	}
}

// WithMaxOutput caps retained output.
func WithMaxOutput(n int) ExecOption {
	return func(p *ExecProcessor) {
		if n > 0 {
			p.maxOutput = n
		}
	}
}

// WithExecLogger sets the logger.
func WithExecLogger(logger *slog.Logger) ExecOption {
	return func(p *ExecProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewExecProcessor creates a processor for binary.
func NewExecProcessor(binary string, opts ...ExecOption) *ExecProcessor {
	p := &ExecProcessor{
		binary:    binary,
		maxOutput: defaultMaxOutput,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run implements Processor. The combined output becomes the message; a
// non-zero exit or start failure yields Success=false.
func (p *ExecProcessor) Run(ctx context.Context, args string) Result {
	parsed, err := SplitArgs(args)
	if err != nil {
		return Result{Message: fmt.Sprintf("Error: %v", err)}
	}
	argv := append(append([]string{}, p.prefix...), parsed...)

	cmd := exec.CommandContext(ctx, p.binary, argv...) //nolint:gosec // binary is operator configured
	if len(p.env) > 0 {
		cmd.Env = append(cmd.Environ(), p.env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	p.logger.Debug("running command processor", "binary", p.binary, "args", argv)
	err = cmd.Run()

	output := strings.TrimSpace(out.String())
	output = trimOutput(output, p.maxOutput)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Message: fmt.Sprintf("Timed out running %s: %v", p.binary, ctxErr)}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Message: fmt.Sprintf("Error: %s exited with code %d: %s", p.binary, exitErr.ExitCode(), output)}
		}
		return Result{Message: fmt.Sprintf("Error: %v", err)}
	}
	return Result{Success: true, Message: output}
}

// trimOutput cuts s to at most n bytes without splitting a UTF-8 sequence.
func trimOutput(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
