package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pvyield_simulator/internal/model"
)

// Format is the on-disk encoding of a configuration record.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension; anything but .json is YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and validates a configuration record. Absent fields keep their defaults.
func Load(path string) (model.Configuration, error) {
	cfg, err := LoadUnchecked(path)
	if err != nil {
		return model.Configuration{}, err
	}
	if err := cfg.Validate(); err != nil {
		return model.Configuration{}, err
	}
	return cfg, nil
}

// LoadUnchecked reads a configuration record without validating it.
func LoadUnchecked(path string) (model.Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Configuration{}, err
	}
	cfg, err := Unmarshal(raw, FormatFromPath(path))
	if err != nil {
		return model.Configuration{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Unmarshal decodes a configuration record on top of the defaults.
func Unmarshal(raw []byte, format Format) (model.Configuration, error) {
	cfg := model.DefaultConfiguration()
	defaultLosses := cfg.LossesPct
	cfg.LossesPct = nil

	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	}
	if err != nil {
		return model.Configuration{}, err
	}
	if cfg.LossesPct == nil {
		cfg.LossesPct = defaultLosses
	}
	return cfg, nil
}

// Marshal encodes a configuration record.
func Marshal(cfg model.Configuration, format Format) ([]byte, error) {
	if format == FormatJSON {
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes cfg to path, encoded according to its extension.
func Save(path string, cfg model.Configuration) error {
	out, err := Marshal(cfg, FormatFromPath(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, out, 0o644)
}
