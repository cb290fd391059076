package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadFile reads a YAML configuration file over the defaults and validates
// the result. Keys missing from the file keep their default value.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", path, err)
	}

	return &cfg, nil
}

// Load returns the defaults when path is empty, and LoadFile otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return &cfg, nil
	}
	return LoadFile(path)
}
