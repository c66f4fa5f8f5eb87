package procrun

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoShell skips the test if sh is not available.
func skipIfNoShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
}

func newTestRunner() *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(WithLogger(logger), WithDrainGrace(200*time.Millisecond))
}

func TestRun_CapturesBothStreams(t *testing.T) {
	skipIfNoShell(t)

	res, err := newTestRunner().Run(context.Background(),
		[]string{"sh", "-c", "echo hello; echo oops 1>&2"}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	skipIfNoShell(t)

	res, err := newTestRunner().Run(context.Background(),
		[]string{"sh", "-c", "echo broken 1>&2; exit 3"}, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)

	var exitErr *ExitError
	require.ErrorAs(t, res.Check("sh"), &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, exitErr.Error(), "exit=3")
}

func TestRun_DrainsLargeOutputWithoutDeadlock(t *testing.T) {
	skipIfNoShell(t)

	// Well past a 64KiB pipe buffer on both streams.
	script := `i=0; while [ $i -lt 20000 ]; do echo "err line $i" 1>&2; echo "out line $i"; i=$((i+1)); done`

	res, err := newTestRunner().Run(context.Background(), []string{"sh", "-c", script}, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, 20000, strings.Count(res.Stdout, "\n"))
	assert.Equal(t, 20000, strings.Count(res.Stderr, "\n"))
	assert.True(t, strings.HasSuffix(res.Stderr, "err line 19999\n"))
}

func TestRun_Timeout(t *testing.T) {
	skipIfNoShell(t)

	start := time.Now()
	res, err := newTestRunner().Run(context.Background(),
		[]string{"sh", "-c", "echo started; sleep 10"}, 200*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "started\n", res.Stdout)
}

func TestRun_ParentCancellation(t *testing.T) {
	skipIfNoShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := newTestRunner().Run(ctx, []string{"sh", "-c", "sleep 10"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = newTestRunner().Run(context.Background(), []string{""}, time.Second)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestRun_MissingBinary(t *testing.T) {
	res, err := newTestRunner().Run(context.Background(),
		[]string{"/nonexistent/tool-that-does-not-exist"}, time.Second)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, -1, res.ExitCode)
}

func TestResult_Check(t *testing.T) {
	assert.NoError(t, Result{ExitCode: 0}.Check("ffmpeg"))

	err := Result{ExitCode: 1, Stderr: "bad input"}.Check("ffmpeg")
	require.Error(t, err)
	assert.Equal(t, "ffmpeg exit=1 err_tail=bad input", err.Error())
}

func TestTail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "abc", 10, "abc"},
		{"exact limit", "abc", 3, "abc"},
		{"truncated", "abcdef", 2, "ef"},
		{"zero limit", "abc", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tail(tt.in, tt.n))
		})
	}
}
