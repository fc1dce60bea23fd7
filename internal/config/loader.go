package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// OptionsFileEnv names an external YAML file whose options override the
// scenario's driver.options.
const OptionsFileEnv = "VIRTUP_FILE"

// LoadScenario loads a Molecule scenario file and applies the VIRTUP_FILE
// override and defaults. A missing scenario file yields a scenario with
// only default options.
func LoadScenario(path string) (*Scenario, error) {
	var s Scenario

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
		}
	}

	if err := ApplyOptionsFile(&s.Driver.Options, os.Getenv(OptionsFileEnv)); err != nil {
		return nil, err
	}
	s.Driver.Options.SetDefaults()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &s, nil
}

// ApplyOptionsFile merges the options in path over opts. An empty path is
// a no-op.
func ApplyOptionsFile(opts *Options, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s file %s: %w", OptionsFileEnv, path, err)
	}

	var override Options
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("failed to unmarshal %s file %s: %w", OptionsFileEnv, path, err)
	}

	opts.Merge(override)
	return nil
}
