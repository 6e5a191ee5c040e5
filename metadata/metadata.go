// Package metadata loads storage layout descriptors that annotate benchmark
// results in reports. Descriptors are read by the host only.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// StorageInfo describes one storage item touched by a bench. Name is the
// bench result it annotates. A nil bound means unbounded.
type StorageInfo struct {
	Name      string  `json:"name" yaml:"name" toml:"name"`
	Pallet    string  `json:"pallet,omitempty" yaml:"pallet,omitempty" toml:"pallet,omitempty"`
	Storage   string  `json:"storage,omitempty" yaml:"storage,omitempty" toml:"storage,omitempty"`
	Prefix    string  `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	MaxValues *uint32 `json:"max_values,omitempty" yaml:"max_values,omitempty" toml:"max_values,omitempty"`
	MaxSize   *uint32 `json:"max_size,omitempty" yaml:"max_size,omitempty" toml:"max_size,omitempty"`
}

type document struct {
	Storage []StorageInfo `json:"storage" yaml:"storage" toml:"storage"`
}

// Load reads descriptors from path. The format follows the extension:
// .json, .yaml, .yml or .toml.
func Load(path string) ([]StorageInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	infos, err := Parse(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}

	return infos, nil
}

// Parse decodes descriptors in the named format.
func Parse(format string, data []byte) ([]StorageInfo, error) {
	var doc document

	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}

	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}

	case "toml":
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode TOML: unknown keys %v", undecoded)
		}

	default:
		return nil, fmt.Errorf("unsupported metadata format %q", format)
	}

	if err := validate(doc.Storage); err != nil {
		return nil, err
	}

	return doc.Storage, nil
}

func validate(infos []StorageInfo) error {
	for i, info := range infos {
		if strings.TrimSpace(info.Name) == "" {
			return fmt.Errorf("storage entry %d has no name", i)
		}
	}

	return nil
}

// Label renders the storage item as "Pallet::Storage", falling back to the
// parts that are set.
func (s StorageInfo) Label() string {
	switch {
	case s.Pallet != "" && s.Storage != "":
		return s.Pallet + "::" + s.Storage
	case s.Storage != "":
		return s.Storage
	case s.Pallet != "":
		return s.Pallet
	default:
		return s.Name
	}
}
