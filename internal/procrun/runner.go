// Package procrun runs external tools as child processes.
// Both output streams are drained concurrently while the process runs, so a
// chatty tool can never stall on a full pipe, and every invocation may be
// bounded by its own timeout.
package procrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Static errors for process execution.
var (
	// ErrEmptyCommand is returned when Run is called without an argument vector.
	ErrEmptyCommand = errors.New("procrun: empty command")
	// ErrTimeout is returned when a process is killed after exceeding its timeout.
	ErrTimeout = errors.New("procrun: process timed out")
)

// stderrTailLen is how much of stderr is kept in ExitError messages.
const stderrTailLen = 4000

// Result holds the outcome of a process that ran to completion.
type Result struct {
	// ExitCode is the process exit status, or -1 when it never finished normally.
	ExitCode int
	// Stdout is the full standard output text.
	Stdout string
	// Stderr is the full standard error text.
	Stderr string
}

// Check returns an *ExitError when the process exited with a non-zero status.
func (r Result) Check(name string) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Name: name, Code: r.ExitCode, StderrTail: Tail(r.Stderr, stderrTailLen)}
}

// ExitError reports a process that exited with a non-zero status.
type ExitError struct {
	Name       string
	Code       int
	StderrTail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exit=%d err_tail=%s", e.Name, e.Code, e.StderrTail)
}

// Executor runs a command given as an argument vector.
// A non-zero exit status is reported through Result.ExitCode, not as an error;
// errors are reserved for processes that could not be started, were cancelled,
// or timed out.
type Executor interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error)
}

// Runner implements Executor with os/exec.
type Runner struct {
	logger     *slog.Logger
	drainGrace time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for command and output lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDrainGrace sets how long the output streams may keep draining after a
// process is killed before they are forcibly closed.
func WithDrainGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.drainGrace = d
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:     slog.Default(),
		drainGrace: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes argv and waits for it to exit. A timeout <= 0 disables the
// per-invocation deadline. On timeout the process is killed, both streams are
// drained, and ErrTimeout is returned together with the output captured so far.
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration) (Result, error) {
	if len(argv) == 0 || argv[0] == "" {
		return Result{ExitCode: -1}, ErrEmptyCommand
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	r.logger.Info("exec", slog.String("cmd", strings.Join(argv, " ")))

	// #nosec G204 - argv is assembled by the application from configured tool paths
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", argv[0], err)
	}

	// A grandchild that inherited the pipes keeps them open after the kill,
	// so they are closed from here once the grace period is over.
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
		case <-runCtx.Done():
			timer := time.NewTimer(r.drainGrace)
			defer timer.Stop()
			select {
			case <-drained:
			case <-timer.C:
				_ = stdout.Close()
				_ = stderr.Close()
			}
		}
	}()

	var outBuf, errBuf strings.Builder
	var g errgroup.Group
	g.Go(func() error { return r.drain(stdout, &outBuf, "stdout") })
	g.Go(func() error { return r.drain(stderr, &errBuf, "stderr") })
	drainErr := g.Wait()
	close(drained)

	waitErr := cmd.Wait()

	res := Result{ExitCode: -1, Stdout: outBuf.String(), Stderr: errBuf.String()}
	if res.Stderr != "" {
		r.logger.Debug("stderr tail", slog.String("tail", Tail(res.Stderr, stderrTailLen)))
	}

	if waitErr == nil && drainErr == nil {
		res.ExitCode = 0
		return res, nil
	}
	if timeout > 0 && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("process timeout; killed",
			slog.String("cmd", argv[0]),
			slog.Duration("timeout", timeout),
		)
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, argv[0])
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", argv[0], ctx.Err())
	}
	if drainErr != nil {
		return res, drainErr
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("wait %s: %w", argv[0], waitErr)
}

// drain copies rd into buf line by line until EOF.
func (r *Runner) drain(rd io.Reader, buf *strings.Builder, stream string) error {
	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			buf.WriteString(line)
			r.logger.Debug(stream, slog.String("line", strings.TrimRight(line, "\r\n")))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read %s: %w", stream, err)
		}
	}
}

// Tail returns at most the last n bytes of s.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Verify interface implementation at compile time.
var _ Executor = (*Runner)(nil)
