package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/solatis/conditions/internal/conditions"
	"gopkg.in/yaml.v3"
)

// Definitions files are read with yaml.v3 rather than viper: viper lowercases map
// keys, and group names and condstrs are case-sensitive.
//
// File format (YAML or JSON, JSON being a YAML subset):
//
//	numbers:
//	  gt:
//	    kind: number
//	user:
//	  email:
//	    kind: text
//	    keys: [user.email]

// LoadDefinitions builds the condition registry. An empty path selects the
// built-in catalog under group "builtin".
func LoadDefinitions(path string) (conditions.Definitions, error) {
	if path == "" {
		return conditions.BuiltinDefinitions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions file: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes a definitions document against the built-in catalog.
func ParseDefinitions(data []byte) (conditions.Definitions, error) {
	var cfg conditions.DefinitionsConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}
	if len(cfg) == 0 {
		return nil, fmt.Errorf("definitions file declares no groups")
	}
	defs, err := conditions.BuildDefinitions(cfg, conditions.Builtins())
	if err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}
	return defs, nil
}
