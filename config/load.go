package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// Format is a configuration document syntax.
type Format int

const (
	// FormatTOML is the primary document format.
	FormatTOML Format = iota
	// FormatYAML accepts the same keys as TOML.
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "toml" or "yaml" ("yml" is accepted too).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return FormatTOML, fmt.Errorf("config: unknown format %q", s)
}

// FormatFromPath picks the format from the file extension. Anything other
// than .yaml or .yml is TOML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads the document at path onto Default().
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	getLogger().Infof("%sloaded %s", nsConfig, path)
	return cfg, nil
}

// LoadOrDefault is like Load but returns Default() when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		getLogger().Warnf("%sconfig file %s not found, using defaults", nsConfig, path)
		return Default(), nil
	}
	return cfg, err
}

// Decode reads a document onto Default().
func Decode(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	if err := cfg.Overlay(r, format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay decodes a document onto c. Keys absent from the document keep
// their current value; unknown keys are logged and ignored.
func (c *Config) Overlay(r io.Reader, format Format) error {
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(c)
		if err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
		for _, key := range md.Undecoded() {
			getLogger().Warnf("%signoring unknown key %q", nsConfig, key.String())
		}
		return nil
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read yaml: %w", err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("decode yaml: %w", err)
		}
		// A strict pass on a scratch tree reports the first unknown key.
		var scratch Config
		if err := yaml.UnmarshalWithOptions(data, &scratch, yaml.DisallowUnknownField()); err != nil {
			getLogger().Warnf("%signoring unknown key: %v", nsConfig, err)
		}
		return nil
	default:
		return fmt.Errorf("config: unknown format %s", format)
	}
}

// Dump writes c as a document that decodes back into an identical tree.
func (c *Config) Dump(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(c)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(c)
	default:
		return fmt.Errorf("config: unknown format %s", format)
	}
}
