// Package probe finds out whether a label printer is plugged in
// and whether the print spooler knows about it.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// USBLister enumerates devices on the USB bus in a human-readable form.
type USBLister interface {
	ListUSB(ctx context.Context) (string, error)
}

// SpoolerLister lists printers known to the spooler, in the format
// of `lpstat -p`, i.e. one "printer NAME ..." line per queue. The leading
// word may be translated.
type SpoolerLister interface {
	ListPrinters(ctx context.Context) (string, error)
}

// LSUSB lists USB devices using the lsusb utility.
type LSUSB struct {
	Tool Tool
}

// NewLSUSB returns an LSUSB with the given per-invocation timeout.
func NewLSUSB(timeout time.Duration) *LSUSB {
	return &LSUSB{Tool: Tool{Name: "lsusb", Timeout: timeout}}
}

// ListUSB implements USBLister. The listing is returned even when
// lsusb exits with a non-zero status.
func (l *LSUSB) ListUSB(ctx context.Context) (string, error) {
	return l.Tool.Output(ctx)
}

// -----------------------------------------------------------------------------

// Vendor identifies a printer manufacturer in lsusb output.
type Vendor struct {
	Name string // as it appears in the device description
	ID   string // USB vendor ID, four hexadecimal digits
}

// Zebra Technologies.
var Zebra = Vendor{Name: "Zebra", ID: "0a5f"}

// matches reports whether the listing mentions the vendor
// either by name or by ID.
func (v Vendor) matches(listing string) bool {
	if v.Name != "" && strings.Contains(listing, v.Name) {
		return true
	}
	return v.ID != "" && strings.Contains(listing, strings.ToLower(v.ID)+":")
}

// ParseVendor parses "NAME", "NAME:ID" or ":ID".
func ParseVendor(s string) (Vendor, error) {
	name, id, _ := strings.Cut(s, ":")
	v := Vendor{Name: strings.TrimSpace(name), ID: strings.TrimSpace(id)}
	if v.Name == "" && v.ID == "" {
		return v, fmt.Errorf("%q: empty vendor", s)
	}
	if v.ID != "" && !vendorIDRegexp.MatchString(v.ID) {
		return v, fmt.Errorf("%q: vendor ID must be four hexadecimal digits", s)
	}
	return v, nil
}

var vendorIDRegexp = regexp.MustCompile(`^[0-9a-fA-F]{4}$`)

// -----------------------------------------------------------------------------

// State is a snapshot of the printer's readiness.
type State struct {
	USBOnline       bool // the printer is physically present
	PrinterVerified bool // the spooler has a queue of the configured name

	// The respective value is a default because the tool is missing.
	USBAssumed     bool
	SpoolerAssumed bool
}

// String implements the Stringer interface.
func (s State) String() string {
	var b strings.Builder
	s.Dump(&b)
	return b.String()
}

// Dump writes the state to an io.Writer in a human-readable format.
func (s State) Dump(f io.Writer) {
	usb := "disconnected"
	if s.USBOnline {
		usb = "connected"
	}
	if s.USBAssumed {
		usb += " (assumed, lsusb not installed)"
	}
	fmt.Fprintln(f, "usb:", usb)

	spooler := "not found"
	if s.PrinterVerified {
		spooler = "online"
	}
	if s.SpoolerAssumed {
		spooler += " (assumed, lpstat not installed)"
	}
	fmt.Fprintln(f, "spooler:", spooler)
}

// -----------------------------------------------------------------------------

// Probe runs both readiness checks. Neither has side effects,
// and they can be repeated at will.
type Probe struct {
	USB     USBLister
	Spooler SpoolerLister
	Vendors []Vendor
	Log     logrus.FieldLogger
}

// New creates a Probe looking for Zebra printers.
func New(usb USBLister, spooler SpoolerLister, log logrus.FieldLogger) *Probe {
	return &Probe{USB: usb, Spooler: spooler, Vendors: []Vendor{Zebra}, Log: log}
}

func (p *Probe) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// CheckTransport looks for a known printer on the USB bus. Without the
// lsusb tool, the printer is assumed to be present, so that a missing
// diagnostic utility doesn't block printing altogether. Whatever lsusb
// has listed is searched, regardless of its exit status.
func (p *Probe) CheckTransport(ctx context.Context) (online, assumed bool) {
	listing, err := p.USB.ListUSB(ctx)
	if errors.Is(err, ErrToolMissing) {
		p.logger().WithError(err).Debug("assuming the printer is connected")
		return true, true
	}
	if err != nil {
		p.logger().WithError(err).Warn("USB enumeration failed")
	}
	for _, v := range p.Vendors {
		if v.matches(listing) {
			return true, false
		}
	}
	return false, false
}

// Queue lines start with "printer", or its translation, followed by the name.
// Continuation lines are indented.
var printerLineRegexp = regexp.MustCompile(`^\S+\s+(\S+)\s`)

// registeredPrinters extracts queue names from `lpstat -p` output.
func registeredPrinters(listing string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		if m := printerLineRegexp.FindStringSubmatch(scanner.Text() + " "); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// CheckSpooler looks for a spooler queue of the given name. Without the
// lpstat tool, the printer is assumed not to be registered.
func (p *Probe) CheckSpooler(ctx context.Context, name string) (
	verified, assumed bool) {
	listing, err := p.Spooler.ListPrinters(ctx)
	if errors.Is(err, ErrToolMissing) {
		p.logger().WithError(err).Debug("cannot verify the spooler queue")
		return false, true
	}
	if err != nil {
		p.logger().WithError(err).Warn("spooler query failed")
		return false, false
	}
	if name == "" {
		return false, false
	}
	for _, registered := range registeredPrinters(listing) {
		if registered == name {
			return true, false
		}
	}
	return false, false
}

// Refresh takes a new snapshot of the printer's state.
func (p *Probe) Refresh(ctx context.Context, printerName string) State {
	var s State
	s.USBOnline, s.USBAssumed = p.CheckTransport(ctx)
	s.PrinterVerified, s.SpoolerAssumed = p.CheckSpooler(ctx, printerName)
	p.logger().WithFields(logrus.Fields{
		"printer":  printerName,
		"usb":      s.USBOnline,
		"verified": s.PrinterVerified,
	}).Debug("printer state refreshed")
	return s
}
