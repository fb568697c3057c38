// Package profile holds the printer profile: what to print, how dark, how
// fast and on which label stock, together with its on-disk persistence.
package profile

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"janouch.name/zlabel/zpl"
)

// Profile is the persisted printer configuration. It is owned by the caller,
// and only ever changed through its Set* methods.
type Profile struct {
	PrinterName   string  `json:"printer_name" yaml:"printer_name" toml:"printer_name"`
	Text          string  `json:"text" yaml:"text" toml:"text"`
	Darkness      int     `json:"darkness" yaml:"darkness" toml:"darkness" validate:"min=0,max=30"`
	MediaDarkness int     `json:"media_darkness" yaml:"media_darkness" toml:"media_darkness" validate:"min=-30,max=30"`
	Speed         int     `json:"speed" yaml:"speed" toml:"speed" validate:"min=2,max=6"`
	LabelWidthMM  float64 `json:"label_width_mm" yaml:"label_width_mm" toml:"label_width_mm" validate:"gt=0"`
	LabelHeightMM float64 `json:"label_height_mm" yaml:"label_height_mm" toml:"label_height_mm" validate:"gt=0"`
	FontHeightMM  float64 `json:"font_h_mm" yaml:"font_h_mm" toml:"font_h_mm" validate:"gt=0"`
	FontWidthMM   float64 `json:"font_w_mm" yaml:"font_w_mm" toml:"font_w_mm" validate:"gt=0"`
	OffsetXMM     float64 `json:"offset_x_mm" yaml:"offset_x_mm" toml:"offset_x_mm" validate:"gte=0"`
	OffsetYMM     float64 `json:"offset_y_mm" yaml:"offset_y_mm" toml:"offset_y_mm" validate:"gte=0"`

	// PrintMethod is informational, labels are always printed direct thermal.
	PrintMethod string `json:"print_method" yaml:"print_method" toml:"print_method"`
}

// Speeds above this many inches per second are accepted for compatibility
// with older configuration files, though the printer doesn't document them.
const MaxDocumentedSpeed = 5

// fontMarginMM is how much shorter than the label a font should stay.
const fontMarginMM = 2

// Defaults returns the built-in profile for a GK420t with 50x25 mm labels.
func Defaults() *Profile {
	return &Profile{
		PrinterName:   "ZTC-GK420t",
		Text:          "nicolocarcagni.dev",
		Darkness:      30,
		MediaDarkness: 15,
		Speed:         2,
		LabelWidthMM:  50,
		LabelHeightMM: 25,
		FontHeightMM:  4,
		FontWidthMM:   4,
		OffsetXMM:     2,
		OffsetYMM:     2,
		PrintMethod:   "direct_thermal",
	}
}

// -----------------------------------------------------------------------------

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields the way they're called in the configuration file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists every field that is out of its allowed range.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func convertValidationErrors(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	ve := &ValidationError{}
	for _, fe := range ves {
		ve.Problems = append(ve.Problems, describe(fe))
	}
	return ve
}

// Validate checks every field against its allowed range.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return convertValidationErrors(err)
	}
	return nil
}

// update applies mutate to a copy of the profile and only commits it when
// the named fields pass validation, so that a rejected update changes nothing.
// Other fields aren't looked at, a profile loaded with bad values
// can still be edited.
func (p *Profile) update(mutate func(*Profile), fields ...string) error {
	candidate := *p
	mutate(&candidate)
	if len(fields) > 0 {
		if err := validate.StructPartial(&candidate, fields...); err != nil {
			return convertValidationErrors(err)
		}
	}
	*p = candidate
	return nil
}

// -----------------------------------------------------------------------------

// SetText changes the label contents.
func (p *Profile) SetText(text string) error {
	return p.update(func(c *Profile) { c.Text = text })
}

// SetPrinterName changes the spooler queue to print to.
func (p *Profile) SetPrinterName(name string) error {
	return p.update(func(c *Profile) { c.PrinterName = strings.TrimSpace(name) })
}

// SetDimensions changes the label size, in millimetres.
func (p *Profile) SetDimensions(widthMM, heightMM float64) error {
	return p.update(func(c *Profile) {
		c.LabelWidthMM, c.LabelHeightMM = widthMM, heightMM
	}, "LabelWidthMM", "LabelHeightMM")
}

// SetOffsets moves the text field away from the top left corner.
func (p *Profile) SetOffsets(xMM, yMM float64) error {
	return p.update(func(c *Profile) {
		c.OffsetXMM, c.OffsetYMM = xMM, yMM
	}, "OffsetXMM", "OffsetYMM")
}

// SetCalibration changes the thermal and mechanical settings all at once.
// The returned warnings do not prevent the change.
func (p *Profile) SetCalibration(darkness, mediaDarkness, speed int) (
	warnings []string, err error) {
	if err := p.update(func(c *Profile) {
		c.Darkness, c.MediaDarkness, c.Speed = darkness, mediaDarkness, speed
	}, "Darkness", "MediaDarkness", "Speed"); err != nil {
		return nil, err
	}
	return p.speedWarnings(), nil
}

// SetFont changes the size of the scalable font. A font taller than
// the label only results in a warning.
func (p *Profile) SetFont(heightMM, widthMM float64) (
	warnings []string, err error) {
	if err := p.update(func(c *Profile) {
		c.FontHeightMM, c.FontWidthMM = heightMM, widthMM
	}, "FontHeightMM", "FontWidthMM"); err != nil {
		return nil, err
	}
	return p.fontWarnings(), nil
}

// MaxFontHeightMM is the tallest font that still comfortably fits the label.
func (p *Profile) MaxFontHeightMM() float64 {
	return p.LabelHeightMM - fontMarginMM
}

func (p *Profile) speedWarnings() (warnings []string) {
	if p.Speed > MaxDocumentedSpeed {
		warnings = append(warnings, fmt.Sprintf(
			"speed %d ips is above the documented maximum of %d ips",
			p.Speed, MaxDocumentedSpeed))
	}
	return
}

func (p *Profile) fontWarnings() (warnings []string) {
	if limit := p.MaxFontHeightMM(); p.FontHeightMM > limit {
		warnings = append(warnings, fmt.Sprintf(
			"%gmm might be too tall for this label (max %gmm)",
			p.FontHeightMM, limit))
	}
	return
}

// Warnings reports suspicious but allowed settings.
func (p *Profile) Warnings() []string {
	return append(p.speedWarnings(), p.fontWarnings()...)
}

// -----------------------------------------------------------------------------

var errUnknownKey = errors.New("unknown key")

// Keys lists the configuration keys in their canonical order.
var Keys = []string{
	"printer_name", "text", "darkness", "media_darkness", "speed",
	"label_width_mm", "label_height_mm", "font_h_mm", "font_w_mm",
	"offset_x_mm", "offset_y_mm", "print_method",
}

// Get formats the value of a configuration key.
func (p *Profile) Get(key string) (string, error) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch key {
	case "printer_name":
		return p.PrinterName, nil
	case "text":
		return p.Text, nil
	case "darkness":
		return strconv.Itoa(p.Darkness), nil
	case "media_darkness":
		return strconv.Itoa(p.MediaDarkness), nil
	case "speed":
		return strconv.Itoa(p.Speed), nil
	case "label_width_mm":
		return f(p.LabelWidthMM), nil
	case "label_height_mm":
		return f(p.LabelHeightMM), nil
	case "font_h_mm":
		return f(p.FontHeightMM), nil
	case "font_w_mm":
		return f(p.FontWidthMM), nil
	case "offset_x_mm":
		return f(p.OffsetXMM), nil
	case "offset_y_mm":
		return f(p.OffsetYMM), nil
	case "print_method":
		return p.PrintMethod, nil
	}
	return "", fmt.Errorf("%s: %w", key, errUnknownKey)
}

// Set parses and applies a single configuration key, going through
// the same validation as the other Set* methods.
func (p *Profile) Set(key, value string) (warnings []string, err error) {
	if _, err := p.Get(key); err != nil {
		return nil, err
	}

	atoi := func() (int, error) { return strconv.Atoi(strings.TrimSpace(value)) }
	switch key {
	case "printer_name":
		return nil, p.SetPrinterName(value)
	case "text":
		return nil, p.SetText(value)
	case "print_method":
		return nil, p.update(func(c *Profile) { c.PrintMethod = value })
	case "darkness", "media_darkness", "speed":
		n, err := atoi()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		d, md, s := p.Darkness, p.MediaDarkness, p.Speed
		switch key {
		case "darkness":
			d = n
		case "media_darkness":
			md = n
		case "speed":
			s = n
		}
		return p.SetCalibration(d, md, s)
	}

	mm, err := zpl.ParseMM(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	switch key {
	case "label_width_mm":
		return nil, p.SetDimensions(mm, p.LabelHeightMM)
	case "label_height_mm":
		return nil, p.SetDimensions(p.LabelWidthMM, mm)
	case "font_h_mm":
		return p.SetFont(mm, p.FontWidthMM)
	case "font_w_mm":
		return p.SetFont(p.FontHeightMM, mm)
	case "offset_x_mm":
		return nil, p.SetOffsets(mm, p.OffsetYMM)
	case "offset_y_mm":
		return nil, p.SetOffsets(p.OffsetXMM, mm)
	}
	return nil, fmt.Errorf("%s: %w", key, errUnknownKey)
}
