package plugins

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultsFile is the layout of a plugin defaults file:
//
//	plugins:
//	  weavy_sourcecode:
//	    defaults:
//	      indent_unit: 4
type defaultsFile struct {
	Plugins map[string]struct {
		Defaults Options `yaml:"defaults"`
	} `yaml:"plugins"`
}

// LoadDefaults reads default option overrides keyed by plugin name
func LoadDefaults(path string) (map[string]Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin defaults: %w", err)
	}
	return ParseDefaults(data)
}

// ParseDefaults parses the contents of a plugin defaults file
func ParseDefaults(data []byte) (map[string]Options, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plugin defaults: %w", err)
	}

	out := make(map[string]Options, len(file.Plugins))
	for name, entry := range file.Plugins {
		out[normalize(name)] = entry.Defaults
	}
	return out, nil
}
