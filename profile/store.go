package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where the profile lives unless told otherwise.
const DefaultPath = "config.json"

type codec struct {
	unmarshal func(data []byte, p *Profile) error
	marshal   func(p *Profile) ([]byte, error)
}

var codecJSON = codec{
	unmarshal: func(data []byte, p *Profile) error {
		return json.Unmarshal(data, p)
	},
	marshal: func(p *Profile) ([]byte, error) {
		data, err := json.MarshalIndent(p, "", "    ")
		return append(data, '\n'), err
	},
}

var codecYAML = codec{
	unmarshal: func(data []byte, p *Profile) error {
		return yaml.Unmarshal(data, p)
	},
	marshal: func(p *Profile) ([]byte, error) {
		return yaml.Marshal(p)
	},
}

var codecTOML = codec{
	unmarshal: func(data []byte, p *Profile) error {
		_, err := toml.Decode(string(data), p)
		return err
	},
	marshal: func(p *Profile) ([]byte, error) {
		var b bytes.Buffer
		err := toml.NewEncoder(&b).Encode(p)
		return b.Bytes(), err
	},
}

// codecFor picks the document format by file extension, JSON by default.
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return codecYAML
	case ".toml":
		return codecTOML
	default:
		return codecJSON
	}
}

// Decode merges a partial document over the defaults. Keys missing from
// the document keep their default values, unknown keys are ignored.
func Decode(path string, data []byte) (*Profile, error) {
	p := Defaults()
	if err := codecFor(path).unmarshal(data, p); err != nil {
		return Defaults(), err
	}
	return p, nil
}

// Encode serializes the whole profile in the format implied by path.
func Encode(path string, p *Profile) ([]byte, error) {
	return codecFor(path).marshal(p)
}

// Load reads the profile from path. A missing file yields the defaults
// without an error. When the file cannot be read or parsed, the defaults are
// returned as well, together with an error for the caller to report.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	} else if err != nil {
		return Defaults(), err
	}

	p, err := Decode(path, data)
	if err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save atomically replaces the file at path with the whole profile.
func Save(path string, p *Profile) error {
	data, err := Encode(path, p)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tempPath := path + ".new"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
