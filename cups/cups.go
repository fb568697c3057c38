// Package cups talks to the CUPS print spooler through its command-line tools.
package cups

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"janouch.name/zlabel/probe"
)

// ErrSubmissionToolMissing means that lp isn't installed, so no job
// can be submitted at all.
var ErrSubmissionToolMissing = fmt.Errorf("lp: %w", probe.ErrToolMissing)

// SpoolerError is returned when a spooler tool ran but reported failure.
type SpoolerError struct {
	Tool       string
	ExitCode   int
	Diagnostic string // the tool's error output, verbatim
}

func (e *SpoolerError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s failed with exit status %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Diagnostic)
}

// Client runs lpstat, lp and cancel.
type Client struct {
	lpstat, lp, cancel probe.Tool
}

// lpstat output is parsed, so it must not be translated.
var cLocale = []string{"LC_ALL=C"}

// NewClient creates a client whose every tool invocation is bounded
// by the given timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		lpstat: probe.Tool{Name: "lpstat", Timeout: timeout, Env: cLocale},
		lp:     probe.Tool{Name: "lp", Timeout: timeout},
		cancel: probe.Tool{Name: "cancel", Timeout: timeout},
	}
}

func spoolerError(tool string, stderr []byte, err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return &SpoolerError{
		Tool:       tool,
		ExitCode:   exitErr.ExitCode(),
		Diagnostic: strings.TrimSpace(string(stderr)),
	}
}

// ListPrinters returns the output of `lpstat -p`.
func (c *Client) ListPrinters(ctx context.Context) (string, error) {
	stdout, stderr, err := c.lpstat.Run(ctx, nil, "-p")
	if errors.Is(err, probe.ErrToolMissing) {
		return "", err
	}
	if err != nil {
		// lpstat exits with 1 when there are no printers at all.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 &&
			len(stdout) == 0 {
			return "", nil
		}
		return "", spoolerError("lpstat", stderr, err)
	}
	return string(stdout), nil
}

// Submit sends a raw job to the named queue.
func (c *Client) Submit(ctx context.Context, stream, queue string) error {
	_, stderr, err := c.lp.Run(ctx, strings.NewReader(stream),
		"-d", queue, "-o", "raw", "-")
	if errors.Is(err, probe.ErrToolMissing) {
		return ErrSubmissionToolMissing
	}
	if err != nil {
		return spoolerError("lp", stderr, err)
	}
	return nil
}

// Cancel removes all jobs from the named queue.
func (c *Client) Cancel(ctx context.Context, queue string) error {
	_, stderr, err := c.cancel.Run(ctx, nil, "-a", queue)
	if errors.Is(err, probe.ErrToolMissing) {
		return err
	}
	if err != nil {
		return spoolerError("cancel", stderr, err)
	}
	return nil
}
