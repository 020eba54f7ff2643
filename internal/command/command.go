// Package command runs external tools (yt-dlp, ffmpeg) and streams their
// stdout line by line.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const (
	stderrTailLines = 20
	maxLineBytes    = 64 << 20
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// ExitError reports a failed command together with the tail of its stderr.
type ExitError struct {
	Binary string
	Err    error
	Stderr []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Binary, e.Err)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// StderrText joins the captured stderr lines.
func (e *ExitError) StderrText() string {
	return strings.Join(e.Stderr, "\n")
}

// Local executes binaries on this host.
type Local struct{}

// Run starts binary, forwards each stdout line to onStdout and keeps the last
// stderr lines for the returned error. A cancelled ctx kills the process and
// the returned error wraps ctx.Err().
func (Local) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &ExitError{Binary: binary, Err: fmt.Errorf("start command: %w", err)}
	}

	var (
		wg      sync.WaitGroup
		once    sync.Once
		scanErr error
		tailMu  sync.Mutex
		tail    []string
	)
	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}
	keepStderr := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		tailMu.Lock()
		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[len(tail)-stderrTailLines:]
		}
		tailMu.Unlock()
	}
	forward := func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, keepStderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return &ExitError{Binary: binary, Err: fmt.Errorf("scan output: %w", scanErr), Stderr: tail}
	}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ExitError{Binary: binary, Err: ctxErr, Stderr: tail}
		}
		return &ExitError{Binary: binary, Err: err, Stderr: tail}
	}
	return nil
}

// IsNotFound reports whether err came from a binary missing on PATH.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Output runs binary and returns stdout joined by newlines.
func Output(ctx context.Context, runner Executor, binary string, args []string) (string, error) {
	var b strings.Builder
	err := runner.Run(ctx, binary, args, func(line string) {
		b.WriteString(line)
		b.WriteByte('\n')
	})
	return b.String(), err
}
