package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// ErrToolMissing means that a command-line utility isn't installed.
var ErrToolMissing = errors.New("tool not installed")

// DefaultTimeout bounds every single invocation of an external tool.
const DefaultTimeout = 10 * time.Second

// Tool is an external command-line utility.
type Tool struct {
	Name    string
	Timeout time.Duration // DefaultTimeout if zero
	Env     []string      // added to the inherited environment
}

// Available reports whether the tool can be found in PATH.
func (t Tool) Available() bool {
	_, err := exec.LookPath(t.Name)
	return err == nil
}

// Run executes the tool with the given arguments, feeding it stdin if non-nil,
// and returns whatever it has written. A non-zero exit status is returned
// as an *exec.ExitError, alongside the output.
func (t Tool) Run(ctx context.Context, stdin io.Reader, args ...string) (
	stdout, stderr []byte, err error) {
	path, err := exec.LookPath(t.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t.Name, ErrToolMissing)
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = stdin
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if err = cmd.Run(); err != nil && ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("%s: timed out after %s: %w", t.Name, timeout, err)
	}
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Output is Run without any input, returning just the standard output.
func (t Tool) Output(ctx context.Context, args ...string) (string, error) {
	stdout, _, err := t.Run(ctx, nil, args...)
	return string(stdout), err
}
