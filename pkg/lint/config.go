package lint

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the working directory when no explicit
// path is given.
const ConfigFileName = ".morninglint.yml"

const defaultMinLength = 3

// Config tunes the rule set. The zero value enables every rule with
// defaults.
type Config struct {
	// Disabled lists rule codes to skip, e.g. ["W003"].
	Disabled []string `yaml:"disabled"`

	// MinIdentifierLength adjusts W003. Zero keeps the default of 3.
	MinIdentifierLength int `yaml:"min_identifier_length"`
}

// LoadConfig reads a YAML config file. A missing file yields the
// default configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) disabled(code string) bool {
	for _, d := range c.Disabled {
		if d == code {
			return true
		}
	}
	return false
}

func (c Config) minLength() int {
	if c.MinIdentifierLength > 0 {
		return c.MinIdentifierLength
	}
	return defaultMinLength
}
