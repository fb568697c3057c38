package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
	assert.Empty(t, Defaults().Warnings())
}

func TestSetCalibrationRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name                      string
		darkness, mediaDark, ips int
		field                     string
	}{
		{"darkness too high", 31, 15, 2, "darkness"},
		{"darkness negative", -1, 15, 2, "darkness"},
		{"media darkness too low", 30, -31, 2, "media_darkness"},
		{"media darkness too high", 30, 31, 2, "media_darkness"},
		{"speed too slow", 30, 15, 1, "speed"},
		{"speed too fast", 30, 15, 7, "speed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Defaults()
			_, err := p.SetCalibration(tt.darkness, tt.mediaDark, tt.ips)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Contains(t, ve.Error(), tt.field)
			assert.Equal(t, Defaults(), p, "profile must stay unchanged")
		})
	}
}

func TestSetCalibration(t *testing.T) {
	p := Defaults()
	warnings, err := p.SetCalibration(0, -30, 5)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, p.Darkness)
	assert.Equal(t, -30, p.MediaDarkness)
	assert.Equal(t, 5, p.Speed)

	// Accepted for compatibility, but flagged.
	warnings, err = p.SetCalibration(30, 30, 6)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, 6, p.Speed)
}

func TestSetFontWarnsOnly(t *testing.T) {
	p := Defaults()
	warnings, err := p.SetFont(24, 24)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, 24.0, p.FontHeightMM)

	_, err = p.SetFont(0, 4)
	assert.Error(t, err)
	assert.Equal(t, 24.0, p.FontHeightMM)
}

func TestSetDimensionsAndOffsets(t *testing.T) {
	p := Defaults()
	require.NoError(t, p.SetDimensions(100, 50))
	assert.Equal(t, 100.0, p.LabelWidthMM)
	assert.Equal(t, 50.0, p.LabelHeightMM)

	assert.Error(t, p.SetDimensions(0, 50))
	assert.Error(t, p.SetDimensions(100, -1))
	assert.Equal(t, 100.0, p.LabelWidthMM)

	require.NoError(t, p.SetOffsets(0, 1.5))
	assert.Error(t, p.SetOffsets(-0.1, 0))
	assert.Equal(t, 1.5, p.OffsetYMM)
}

func TestUpdateIgnoresUnrelatedInvalidFields(t *testing.T) {
	p := Defaults()
	p.Darkness = 99 // as if loaded from a hand-edited file
	require.NoError(t, p.SetText("hello"))
	require.NoError(t, p.SetOffsets(1, 1))
	assert.Error(t, p.Validate())
}

func TestSetByKey(t *testing.T) {
	p := Defaults()

	_, err := p.Set("darkness", "12")
	require.NoError(t, err)
	assert.Equal(t, 12, p.Darkness)

	_, err = p.Set("darkness", "31")
	assert.Error(t, err)
	assert.Equal(t, 12, p.Darkness)

	_, err = p.Set("label_width_mm", "62.5")
	require.NoError(t, err)
	assert.Equal(t, 62.5, p.LabelWidthMM)

	_, err = p.Set("offset_x_mm", "abc")
	assert.Error(t, err)

	_, err = p.Set("printer_name", "  Zebra  ")
	require.NoError(t, err)
	assert.Equal(t, "Zebra", p.PrinterName)

	_, err = p.Set("nonsense", "1")
	assert.ErrorIs(t, err, errUnknownKey)

	for _, key := range Keys {
		_, err := p.Get(key)
		assert.NoError(t, err, key)
	}
}

// -----------------------------------------------------------------------------

func TestLoadMissingFile(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"darkness": 20, "text": "hi", "unknown_key": true}`), 0644))

	p, err := Load(path)
	require.NoError(t, err)

	want := Defaults()
	want.Darkness = 20
	want.Text = "hi"
	assert.Equal(t, want, p)
}

func TestLoadBrokenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"darkness": 20,`), 0644))

	p, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), p)

	require.NoError(t, os.WriteFile(path, []byte(`{"darkness": "dark"}`), 0644))
	p, err = Load(path)
	assert.Error(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"config.json", "config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			p := Defaults()
			require.NoError(t, p.SetText("ÄÖÜ €"))
			require.NoError(t, p.SetOffsets(1.25, 0))

			require.NoError(t, Save(path, p))
			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, p, loaded)

			require.NoError(t, Save(path, loaded))
			reloaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, loaded, reloaded)

			_, err = os.Stat(path + ".new")
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestSaveUsesOriginalLayout(t *testing.T) {
	data, err := Encode("config.json", Defaults())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"printer_name\": \"ZTC-GK420t\",\n")
}
