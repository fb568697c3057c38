// Package label turns a printer profile into a ZPL label format.
package label

import (
	"janouch.name/zlabel/profile"
	"janouch.name/zlabel/zpl"
)

// TestFrameText is printed inside the test frame.
const TestFrameText = "TEST FRAME"

const (
	testFrameBorderMM = 1
	testFrameFontDots = 30
)

// Builder assembles label formats for a print head of the given resolution.
type Builder struct {
	DotsPerMM float64
}

// NewBuilder returns a Builder for 203 dpi print heads.
func NewBuilder() *Builder {
	return &Builder{DotsPerMM: zpl.DotsPerMM}
}

func (b *Builder) dots(mm float64) int {
	return zpl.MMToDots(mm, b.DotsPerMM)
}

// Build returns the complete command stream for a single label.
// The test pattern replaces the text with a frame drawn along
// the edges of the label, for checking margins.
func (b *Builder) Build(p *profile.Profile, testPattern bool) string {
	width := b.dots(p.LabelWidthMM)
	height := b.dots(p.LabelHeightMM)

	// The firmware reads the definition block in order, don't shuffle.
	s := &zpl.Stream{}
	s.Add(zpl.Darkness(p.Darkness))
	s.Add(zpl.StartFormat())
	s.Add(zpl.MediaTypeDirectThermal())
	s.Add(zpl.PrintRate(p.Speed))
	s.Add(zpl.MediaDarkness(p.MediaDarkness))
	s.Add(zpl.PrintWidth(width))
	s.Add(zpl.LabelLength(height))
	s.Add(zpl.ChangeEncodingUTF8())

	if testPattern {
		s.Add(zpl.FieldOrigin(0, 0),
			zpl.GraphicBox(width, height, b.dots(testFrameBorderMM)),
			zpl.FieldSeparator)
		s.Add(zpl.FieldOrigin(width/4, height/3),
			zpl.ScalableFont(testFrameFontDots, testFrameFontDots),
			zpl.FieldData(TestFrameText))
	} else {
		s.Add(zpl.FieldOrigin(b.dots(p.OffsetXMM), b.dots(p.OffsetYMM)))
		s.Add(zpl.ScalableFont(b.dots(p.FontHeightMM), b.dots(p.FontWidthMM)))
		s.Add(zpl.FieldData(p.Text))
	}

	s.Add(zpl.EndFormat())
	return s.String()
}

// Generate builds a label for the default print head resolution.
func Generate(p *profile.Profile, testPattern bool) string {
	return NewBuilder().Build(p, testPattern)
}
