package cups

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janouch.name/zlabel/probe"
)

// fakeTools puts shell scripts in front of PATH, standing in for CUPS tools.
func fakeTools(t *testing.T, scripts map[string]string) string {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	for name, body := range scripts {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func TestSubmit(t *testing.T) {
	dir := fakeTools(t, map[string]string{
		"lp": `echo "$@" > "$(dirname "$0")/args"; cat > "$(dirname "$0")/job"`,
	})

	c := NewClient(0)
	require.NoError(t, c.Submit(context.Background(), "^XA\n^XZ", "ZTC-GK420t"))

	job, err := os.ReadFile(filepath.Join(dir, "job"))
	require.NoError(t, err)
	assert.Equal(t, "^XA\n^XZ", string(job))

	args, err := os.ReadFile(filepath.Join(dir, "args"))
	require.NoError(t, err)
	assert.Equal(t, "-d ZTC-GK420t -o raw -\n", string(args))
}

func TestSubmitSpoolerError(t *testing.T) {
	fakeTools(t, map[string]string{
		"lp": `cat > /dev/null; echo "lp: The printer or class does not exist." >&2; exit 1`,
	})

	err := NewClient(0).Submit(context.Background(), "^XA\n^XZ", "nope")
	var se *SpoolerError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "lp", se.Tool)
	assert.Equal(t, 1, se.ExitCode)
	assert.Equal(t, "lp: The printer or class does not exist.", se.Diagnostic)
}

func TestSubmitToolMissing(t *testing.T) {
	c := NewClient(0)
	c.lp.Name = "zlabel-no-such-lp"
	err := c.Submit(context.Background(), "", "q")
	assert.ErrorIs(t, err, ErrSubmissionToolMissing)
	assert.ErrorIs(t, err, probe.ErrToolMissing)
}

func TestListPrinters(t *testing.T) {
	fakeTools(t, map[string]string{
		"lpstat": `echo "printer ZTC-GK420t is idle.  enabled since today"`,
	})
	out, err := NewClient(0).ListPrinters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "printer ZTC-GK420t is idle.  enabled since today\n", out)
}

func TestListPrintersUntranslated(t *testing.T) {
	fakeTools(t, map[string]string{
		"lpstat": `echo "LC_ALL=$LC_ALL"`,
	})
	t.Setenv("LC_ALL", "de_DE.UTF-8")
	out, err := NewClient(0).ListPrinters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LC_ALL=C\n", out)
}

func TestListPrintersNone(t *testing.T) {
	fakeTools(t, map[string]string{
		"lpstat": `echo "lpstat: No destinations added." >&2; exit 1`,
	})
	out, err := NewClient(0).ListPrinters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListPrintersFailure(t *testing.T) {
	fakeTools(t, map[string]string{
		"lpstat": `echo "lpstat: Bad file descriptor" >&2; exit 2`,
	})
	_, err := NewClient(0).ListPrinters(context.Background())
	var se *SpoolerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.ExitCode)
}

func TestCancel(t *testing.T) {
	dir := fakeTools(t, map[string]string{
		"cancel": `echo "$@" > "$(dirname "$0")/args"`,
	})
	require.NoError(t, NewClient(0).Cancel(context.Background(), "ZTC-GK420t"))

	args, err := os.ReadFile(filepath.Join(dir, "args"))
	require.NoError(t, err)
	assert.Equal(t, "-a ZTC-GK420t\n", string(args))

	c := NewClient(0)
	c.cancel.Name = "zlabel-no-such-cancel"
	assert.ErrorIs(t, c.Cancel(context.Background(), "q"), probe.ErrToolMissing)
}
