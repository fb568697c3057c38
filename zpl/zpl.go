// Package zpl encodes the subset of ZPL II understood by Zebra desktop
// direct-thermal printers such as the GK420t.
package zpl

// Resources:
//  https://docs.zebra.com/us/en/printers/software/zpl-pg/c-zpl-zpl-commands.html
//  GK420t User Guide, appendix on ZPL configuration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------

// DotsPerMM is the resolution of 203 dpi print heads, rounded down.
const DotsPerMM = 8

// MMToDots converts a length in millimetres to printer dots, truncating
// toward zero. Non-finite input yields zero rather than an error.
func MMToDots(mm, dotsPerMM float64) int {
	dots := mm * dotsPerMM
	if math.IsNaN(dots) || math.IsInf(dots, 0) {
		return 0
	}
	return int(dots)
}

var errNotFinite = errors.New("not a finite number")

// ParseMM parses a user-supplied length in millimetres. Unlike MMToDots,
// it refuses anything that isn't a finite number.
func ParseMM(s string) (float64, error) {
	mm, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 0, fmt.Errorf("%q: %w", s, errNotFinite)
	}
	return mm, nil
}

// -----------------------------------------------------------------------------

// Darkness is ~SD, the head heat setting, 0 to 30.
func Darkness(n int) string { return fmt.Sprintf("~SD%d", n) }

// StartFormat opens a label format.
func StartFormat() string { return "^XA" }

// EndFormat closes a label format and prints it.
func EndFormat() string { return "^XZ" }

// MediaTypeDirectThermal selects direct thermal media, no ribbon.
func MediaTypeDirectThermal() string { return "^MTD" }

// PrintRate is ^PR, in inches per second.
func PrintRate(ips int) string { return fmt.Sprintf("^PR%d", ips) }

// MediaDarkness is ^MD, relative to ~SD, -30 to 30.
func MediaDarkness(n int) string { return fmt.Sprintf("^MD%d", n) }

// PrintWidth is ^PW, in dots.
func PrintWidth(dots int) string { return fmt.Sprintf("^PW%d", dots) }

// LabelLength is ^LL, in dots.
func LabelLength(dots int) string { return fmt.Sprintf("^LL%d", dots) }

// ChangeEncodingUTF8 is ^CI28, so that field data is read as UTF-8.
func ChangeEncodingUTF8() string { return "^CI28" }

// FieldOrigin is ^FO, the top left corner of the next field.
func FieldOrigin(x, y int) string { return fmt.Sprintf("^FO%d,%d", x, y) }

// ScalableFont selects the internal scalable font 0 in normal orientation.
func ScalableFont(height, width int) string {
	return fmt.Sprintf("^A0N,%d,%d", height, width)
}

// FieldData is ^FD terminated with the field separator.
func FieldData(data string) string { return "^FD" + data + FieldSeparator }

// FieldSeparator ends a field.
const FieldSeparator = "^FS"

// GraphicBox is ^GB with black lines and square corners.
func GraphicBox(width, height, thickness int) string {
	return fmt.Sprintf("^GB%d,%d,%d,B,0", width, height, thickness)
}

// -----------------------------------------------------------------------------

// Stream collects directives in the order in which the firmware
// is going to consume them.
type Stream struct {
	directives []string
}

// Add appends a line made of one or more directives.
func (s *Stream) Add(directives ...string) *Stream {
	s.directives = append(s.directives, strings.Join(directives, ""))
	return s
}

// String implements the Stringer interface, one line per Add call.
func (s *Stream) String() string {
	return strings.Join(s.directives, "\n")
}
