// Package menu is the interactive front-end: a settings overview,
// a handful of actions and prompts for changing the profile.
package menu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	"janouch.name/zlabel/cups"
	"janouch.name/zlabel/job"
	"janouch.name/zlabel/probe"
	"janouch.name/zlabel/profile"
	"janouch.name/zlabel/zpl"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted")

// Prompter reads a line of input after showing a prompt.
// *liner.State satisfies this interface.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// Menu runs the main loop over a single profile.
type Menu struct {
	Profile *profile.Profile
	Service *job.Service
	In      Prompter
	Out     io.Writer
	Log     logrus.FieldLogger

	// Save is called with the profile when the user chooses to quit.
	Save func(*profile.Profile) error

	ClearScreen bool // clear the terminal before each redraw
	Bold        bool // highlight headings with ANSI escape sequences

	state probe.State
}

func (m *Menu) printf(format string, args ...interface{}) {
	fmt.Fprintf(m.Out, format, args...)
}

func (m *Menu) logger() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

func (m *Menu) bold(s string) string {
	if !m.Bold {
		return s
	}
	return "\x1b[1m" + s + "\x1b[m"
}

// -----------------------------------------------------------------------------

func (m *Menu) prompt(prompt string) (string, error) {
	line, err := m.In.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	return line, err
}

func (m *Menu) pause(prompt string) error {
	_, err := m.prompt(prompt)
	return err
}

// promptInt asks until it gets an integer within [lo, hi].
func (m *Menu) promptInt(prompt string, lo, hi int) (int, error) {
	for {
		line, err := m.prompt(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			m.printf("Invalid input. Please enter a valid integer.\n")
			continue
		}
		if n < lo || n > hi {
			m.printf("Value must be between %d and %d.\n", lo, hi)
			continue
		}
		return n, nil
	}
}

// promptMM asks until it gets a finite length in millimetres.
func (m *Menu) promptMM(prompt string) (float64, error) {
	for {
		line, err := m.prompt(prompt)
		if err != nil {
			return 0, err
		}
		mm, err := zpl.ParseMM(line)
		if err != nil {
			m.printf("Invalid input. Please enter a valid number.\n")
			continue
		}
		return mm, nil
	}
}

func (m *Menu) report(warnings []string, err error) {
	for _, w := range warnings {
		m.printf("Warning: %s\n", w)
	}
	if err != nil {
		m.printf("Not changed: %s\n", err)
	}
}

// -----------------------------------------------------------------------------

const (
	col1, col2, col3 = 18, 22, 30
)

func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}

func (m *Menu) drawHeader() {
	if m.ClearScreen {
		m.printf("\x1b[H\x1b[2J")
	}

	p := m.Profile
	m.printf("%s\n", m.bold("ZEBRA GK420t LABEL MANAGER"))

	usb := "USB: DISCONNECTED"
	if m.state.USBOnline {
		usb = "USB: CONNECTED"
	}
	spooler := "CUPS: NOT FOUND"
	if m.state.PrinterVerified {
		spooler = "CUPS: ONLINE"
	}
	m.printf(" PRINTER: %s | %s | %s\n", cell(p.PrinterName, 18), usb, spooler)
	m.printf("%s\n", strings.Repeat("-", col1+col2+col3+10))
}

func (m *Menu) drawSettings() {
	p := m.Profile
	rows := [][3]string{
		{fmt.Sprintf("W: %g mm", p.LabelWidthMM),
			fmt.Sprintf("Speed: %d ips", p.Speed),
			fmt.Sprintf("Text: %s", p.Text)},
		{fmt.Sprintf("H: %g mm", p.LabelHeightMM),
			fmt.Sprintf("Dark:  %d (~SD)", p.Darkness),
			fmt.Sprintf("Font: Zebra 0 (%gx%gmm)", p.FontHeightMM, p.FontWidthMM)},
		{"",
			fmt.Sprintf("M-Dark:%d (^MD)", p.MediaDarkness),
			fmt.Sprintf("Off: X=%g Y=%g", p.OffsetXMM, p.OffsetYMM)},
	}

	line := func(l, c, r string) {
		m.printf(" %s%s%s%s%s%s%s\n", l,
			strings.Repeat("-", col1+2), c,
			strings.Repeat("-", col2+2), c,
			strings.Repeat("-", col3+2), r)
	}

	m.printf(" CURRENT SETTINGS:\n")
	line("+", "+", "+")
	for _, row := range rows {
		m.printf(" | %s | %s | %s |\n",
			cell(row[0], col1), cell(row[1], col2), cell(row[2], col3))
	}
	line("+", "+", "+")
}

func (m *Menu) drawActions() {
	m.printf("\n%s\n", m.bold(" ACTIONS:"))
	m.printf("  1. Print label\n")
	m.printf("  2. Print test frame (check margins)\n")
	m.printf("\n%s\n", m.bold(" CONFIGURATION:"))
	m.printf("  3. Set text\n")
	m.printf("  4. Set dimensions (mm)\n")
	m.printf("  5. Set offsets (fix fading)\n")
	m.printf("  6. Calibrate (darkness and speed)\n")
	m.printf("  7. Font settings (size in mm)\n")
	m.printf("  8. Change printer name\n")
	m.printf("  9. Clear print queue\n")
	m.printf("\n  0. Save and exit\n")
}

// -----------------------------------------------------------------------------

// Run shows the menu until the user saves and exits, or aborts.
// An abort returns ErrAborted and doesn't save anything.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.state = m.Service.Probe.Refresh(ctx, m.Profile.PrinterName)
		m.drawHeader()
		m.drawSettings()
		m.drawActions()

		choice, err := m.prompt("\n > Select option: ")
		if err != nil {
			return err
		}

		done, err := m.dispatch(ctx, strings.TrimSpace(choice))
		if err != nil || done {
			return err
		}
	}
}

func (m *Menu) dispatch(ctx context.Context, choice string) (
	done bool, err error) {
	m.logger().WithField("choice", choice).Debug("menu action")
	switch choice {
	case "1":
		return false, m.print(ctx, false)
	case "2":
		return false, m.print(ctx, true)
	case "3":
		return false, m.configureText()
	case "4":
		return false, m.configureDimensions()
	case "5":
		return false, m.configureOffsets()
	case "6":
		return false, m.configureCalibration()
	case "7":
		return false, m.configureFont()
	case "8":
		return false, m.configurePrinterName(ctx)
	case "9":
		return false, m.clearQueue(ctx)
	case "0":
		if m.Save != nil {
			if err := m.Save(m.Profile); err != nil {
				m.logger().WithError(err).Error("saving settings failed")
				m.printf("Error saving settings: %s\n", err)
			} else {
				m.printf("Settings saved.\n")
			}
		}
		m.printf("Goodbye!\n")
		return true, nil
	default:
		return false, m.pause(" Invalid selection. Press Enter...")
	}
}

func (m *Menu) print(ctx context.Context, testPattern bool) error {
	result, err := m.Service.Print(ctx, m.Profile, testPattern)
	m.state = result.State
	if !errors.Is(err, job.ErrHardwareOffline) {
		m.printf("\nSending job to '%s'...\n", m.Profile.PrinterName)
	}

	var spoolerErr *cups.SpoolerError
	switch {
	case err == nil:
		m.printf("SENT: print job submitted successfully.\n")
	case errors.Is(err, job.ErrHardwareOffline):
		m.printf("CRITICAL HARDWARE ERROR: printer not detected on USB!\n")
		m.printf("   Please check the USB cable connectivity.\n")
	case errors.Is(err, cups.ErrSubmissionToolMissing):
		m.printf("SYSTEM ERROR: 'lp' command not found. Install CUPS.\n")
	case errors.As(err, &spoolerErr):
		m.printf("FAILED: the print system returned an error.\n")
		m.printf("    Error details: %s\n", spoolerErr.Diagnostic)
	default:
		m.printf("UNEXPECTED ERROR: %s\n", err)
	}
	return m.pause("\n[Press Enter to continue]")
}

func (m *Menu) configureText() error {
	text, err := m.prompt(" Enter new text: ")
	if err != nil {
		return err
	}
	m.report(nil, m.Profile.SetText(text))
	return nil
}

func (m *Menu) configureDimensions() error {
	m.printf("\n --- LABEL DIMENSIONS (mm) ---\n")
	m.printf(" Measure your label with a ruler. " +
		"Exact dimensions prevent skipping.\n")
	width, err := m.promptMM(" Width (mm): ")
	if err != nil {
		return err
	}
	height, err := m.promptMM(" Height (mm): ")
	if err != nil {
		return err
	}
	m.report(nil, m.Profile.SetDimensions(width, height))
	return nil
}

func (m *Menu) configureOffsets() error {
	m.printf("\n --- PRINT OFFSETS (mm) ---\n")
	m.printf(" X offset shifts print right. " +
		"Use 1-2mm if the left side is fading (cold start).\n")
	m.printf(" Y offset shifts print down. Use if the top is cut off.\n")
	x, err := m.promptMM(" Left X offset (mm): ")
	if err != nil {
		return err
	}
	y, err := m.promptMM(" Top Y offset (mm): ")
	if err != nil {
		return err
	}
	m.report(nil, m.Profile.SetOffsets(x, y))
	return nil
}

func (m *Menu) configureCalibration() error {
	m.printf("\n --- MECHANICS & THERMAL ---\n")
	m.printf(" Darkness (~SD 0-30): higher is darker. " +
		"Too high wears the head and smudges.\n")
	m.printf(" Media darkness (^MD -30..30): fine-tunes darkness per label.\n")
	m.printf(" Speed (2-%d ips): lower means better quality and darkness.\n",
		profile.MaxDocumentedSpeed)

	darkness, err := m.promptInt(" Darkness (~SD 0-30): ", 0, 30)
	if err != nil {
		return err
	}
	mediaDarkness, err := m.promptInt(" Media darkness (^MD -30 to 30): ", -30, 30)
	if err != nil {
		return err
	}
	speed, err := m.promptInt(fmt.Sprintf(" Speed (2-%d ips): ",
		profile.MaxDocumentedSpeed), 2, 6)
	if err != nil {
		return err
	}
	m.report(m.Profile.SetCalibration(darkness, mediaDarkness, speed))
	return nil
}

func (m *Menu) configureFont() error {
	p := m.Profile
	m.printf("\n --- FONT SETTINGS (Zebra scalable font 0) ---\n")
	m.printf(" Standard readable size: 3mm - 6mm.\n")
	m.printf("\n Current size: %gmm x %gmm\n", p.FontHeightMM, p.FontWidthMM)

	height, err := m.promptMM(fmt.Sprintf(
		" Enter new height (mm) [max %g]: ", p.MaxFontHeightMM()))
	if err != nil {
		return err
	}

	width := height
	answer, err := m.prompt(" Keep proportional (square font)? [Y/n]: ")
	if err != nil {
		return err
	}
	if strings.ToLower(strings.TrimSpace(answer)) == "n" {
		if width, err = m.promptMM(" Enter new width (mm): "); err != nil {
			return err
		}
	} else {
		m.printf(" Width automatically set to %gmm (square).\n", height)
	}

	warnings, err := p.SetFont(height, width)
	m.report(warnings, err)
	if err != nil {
		return nil
	}
	return m.pause(" Fonts updated. Press Enter...")
}

func (m *Menu) configurePrinterName(ctx context.Context) error {
	name, err := m.prompt(" Enter CUPS printer name: ")
	if err != nil {
		return err
	}
	m.report(nil, m.Profile.SetPrinterName(name))
	m.state.PrinterVerified, m.state.SpoolerAssumed =
		m.Service.Probe.CheckSpooler(ctx, m.Profile.PrinterName)
	return nil
}

func (m *Menu) clearQueue(ctx context.Context) error {
	m.printf("\nClearing print queue for '%s'...\n", m.Profile.PrinterName)
	err := m.Service.ClearQueue(ctx, m.Profile)
	switch {
	case err == nil:
		m.printf("Queue cleared.\n")
	case errors.Is(err, probe.ErrToolMissing):
		m.printf("Error: 'cancel' command not found.\n")
	default:
		m.printf("Error: %s\n", err)
	}
	return m.pause("Press Enter to continue...")
}
