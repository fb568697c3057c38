package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janouch.name/zlabel/cups"
	"janouch.name/zlabel/probe"
	"janouch.name/zlabel/profile"
)

type fakeUSB struct{ listing string }

func (f fakeUSB) ListUSB(ctx context.Context) (string, error) {
	return f.listing, nil
}

type missingUSB struct{}

func (missingUSB) ListUSB(ctx context.Context) (string, error) {
	return "", fmt.Errorf("lsusb: %w", probe.ErrToolMissing)
}

type fakeSpooler struct{ listing string }

func (f fakeSpooler) ListPrinters(ctx context.Context) (string, error) {
	return f.listing, nil
}

type fakeDispatcher struct {
	submitted []string
	queues    []string
	err       error
}

func (f *fakeDispatcher) Submit(ctx context.Context, stream, queue string) error {
	f.submitted = append(f.submitted, stream)
	f.queues = append(f.queues, queue)
	return f.err
}

type fakeCanceller struct {
	queues []string
	err    error
}

func (f *fakeCanceller) Cancel(ctx context.Context, queue string) error {
	f.queues = append(f.queues, queue)
	return f.err
}

const zebraOnUSB = "Bus 001 Device 004: ID 0a5f:00d3 Zebra Technologies ZTC GK420t\n"

func newService(usb probe.USBLister, spooler probe.SpoolerLister,
	d Dispatcher) *Service {
	log, _ := test.NewNullLogger()
	return &Service{
		Probe:      probe.New(usb, spooler, log),
		Dispatcher: d,
		Canceller:  &fakeCanceller{},
		Log:        log,
	}
}

func TestPrintOfflineNeverDispatches(t *testing.T) {
	d := &fakeDispatcher{}
	s := newService(fakeUSB{listing: "Bus 001 Device 001: ID 1d6b:0002\n"},
		fakeSpooler{listing: "printer ZTC-GK420t is idle.\n"}, d)

	result, err := s.Print(context.Background(), profile.Defaults(), false)
	assert.ErrorIs(t, err, ErrHardwareOffline)
	assert.Empty(t, result.Stream)
	assert.False(t, result.State.USBOnline)
	assert.Empty(t, d.submitted)
}

func TestPrintUnverifiedStillDispatches(t *testing.T) {
	d := &fakeDispatcher{}
	log, hook := test.NewNullLogger()
	s := newService(fakeUSB{listing: zebraOnUSB}, fakeSpooler{}, d)
	s.Log = log

	result, err := s.Print(context.Background(), profile.Defaults(), true)
	require.NoError(t, err)
	assert.False(t, result.State.PrinterVerified)
	require.Len(t, d.submitted, 1)
	assert.Equal(t, result.Stream, d.submitted[0])
	assert.Equal(t, []string{"ZTC-GK420t"}, d.queues)
	assert.Contains(t, result.Stream, "^FDTEST FRAME^FS")

	require.NotEmpty(t, hook.Entries)
	assert.Contains(t, hook.Entries[0].Message, "doesn't list")
}

func TestPrintWithoutLSUSB(t *testing.T) {
	d := &fakeDispatcher{}
	s := newService(missingUSB{}, fakeSpooler{}, d)

	result, err := s.Print(context.Background(), profile.Defaults(), false)
	require.NoError(t, err)
	assert.True(t, result.State.USBAssumed)
	assert.Len(t, d.submitted, 1)
	assert.True(t, strings.HasSuffix(d.submitted[0], "^FDnicolocarcagni.dev^FS\n^XZ"))
}

func TestPrintSubmissionErrors(t *testing.T) {
	spoolerErr := &cups.SpoolerError{Tool: "lp", ExitCode: 1,
		Diagnostic: "lp: The printer or class does not exist."}

	for _, want := range []error{cups.ErrSubmissionToolMissing, spoolerErr} {
		d := &fakeDispatcher{err: want}
		s := newService(fakeUSB{listing: zebraOnUSB},
			fakeSpooler{listing: "printer ZTC-GK420t is idle.\n"}, d)

		result, err := s.Print(context.Background(), profile.Defaults(), false)
		assert.ErrorIs(t, err, want)
		assert.True(t, result.State.PrinterVerified)
		assert.NotEmpty(t, result.Stream)
	}

	d := &fakeDispatcher{err: spoolerErr}
	s := newService(fakeUSB{listing: zebraOnUSB}, fakeSpooler{}, d)
	_, err := s.Print(context.Background(), profile.Defaults(), false)
	var se *cups.SpoolerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "lp: The printer or class does not exist.", se.Diagnostic)
}

func TestPrintNoQueue(t *testing.T) {
	d := &fakeDispatcher{}
	s := newService(fakeUSB{listing: zebraOnUSB}, fakeSpooler{}, d)
	p := profile.Defaults()
	require.NoError(t, p.SetPrinterName(""))

	_, err := s.Print(context.Background(), p, false)
	assert.ErrorIs(t, err, errNoQueue)
	assert.Empty(t, d.submitted)
}

func TestClearQueue(t *testing.T) {
	s := newService(fakeUSB{}, fakeSpooler{}, &fakeDispatcher{})
	c := &fakeCanceller{}
	s.Canceller = c

	require.NoError(t, s.ClearQueue(context.Background(), profile.Defaults()))
	assert.Equal(t, []string{"ZTC-GK420t"}, c.queues)

	c.err = fmt.Errorf("cancel: %w", probe.ErrToolMissing)
	assert.ErrorIs(t, s.ClearQueue(context.Background(), profile.Defaults()),
		probe.ErrToolMissing)
}
