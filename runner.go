package venvboot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

const waitDelay = 5 * time.Second

// Command describes one invocation of an external tool.
type Command struct {
	Path string
	Args []string

	// Env replaces the child's environment when non-nil.
	Env []string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Stream copies the tool's output to the runner's terminal writers in
	// addition to capturing it.
	Stream bool

	// OnLine, if set, is called for every complete stdout line.
	OnLine func(line string)
}

// Output holds what a command wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes external commands. A non-zero exit is reported as a
// *CommandError.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec. Cancelling the context kills the
// running child.
type ExecRunner struct {
	// Stdout and Stderr receive streamed output; nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	Logger *zap.Logger
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	// grandchildren (pip build backends) may hold the pipes after a kill
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	outW := []io.Writer{&stdout}
	errW := []io.Writer{&stderr}
	if c.Stream {
		if r.Stdout != nil {
			outW = append(outW, r.Stdout)
		}
		if r.Stderr != nil {
			errW = append(errW, r.Stderr)
		}
	}
	var lines *lineWriter
	if c.OnLine != nil {
		lines = &lineWriter{fn: c.OnLine}
		outW = append(outW, lines)
	}
	cmd.Stdout = io.MultiWriter(outW...)
	cmd.Stderr = io.MultiWriter(errW...)

	logger.Debug("running command", zap.String("path", c.Path), zap.Strings("args", c.Args))
	start := time.Now()
	err := cmd.Run()
	if lines != nil {
		lines.flush()
	}
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		cmdErr := newCommandError(ctx, c, err, stderr.String())
		logger.Debug("command failed",
			zap.String("path", c.Path),
			zap.Int("exit_code", cmdErr.ExitCode),
			zap.Duration("elapsed", time.Since(start)))
		return out, cmdErr
	}
	logger.Debug("command finished", zap.String("path", c.Path), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func newCommandError(ctx context.Context, c Command, err error, stderr string) *CommandError {
	cmdErr := &CommandError{
		Path:   c.Path,
		Args:   c.Args,
		Stderr: stderr,
		Err:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.Err = ctxErr
	}
	return cmdErr
}

// lineWriter splits a byte stream into lines.
type lineWriter struct {
	mu  sync.Mutex
	buf []byte
	fn  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}
