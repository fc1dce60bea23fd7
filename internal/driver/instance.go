package driver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InstanceConfig is one record of the instance-config file. The create
// playbook writes the virt_up module's server result here.
type InstanceConfig struct {
	Instance     string `yaml:"instance"`
	Address      string `yaml:"address"`
	User         string `yaml:"user"`
	Port         string `yaml:"port"`
	IdentityFile string `yaml:"identity_file"`
}

// Map returns the record as login options.
func (c *InstanceConfig) Map() map[string]string {
	return map[string]string{
		"instance":      c.Instance,
		"address":       c.Address,
		"user":          c.User,
		"port":          c.Port,
		"identity_file": c.IdentityFile,
	}
}

// LoadInstanceConfig reads the instance-config file, a YAML sequence of
// records. An empty file holds no records.
func LoadInstanceConfig(path string) ([]InstanceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance config %s: %w", path, err)
	}

	var records []InstanceConfig
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance config %s: %w", path, err)
	}
	return records, nil
}

// SaveInstanceConfig writes records to path.
func SaveInstanceConfig(path string, records []InstanceConfig) error {
	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal instance config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write instance config %s: %w", path, err)
	}
	return nil
}

// FindInstance returns the first record for instance.
func FindInstance(records []InstanceConfig, instance string) (*InstanceConfig, bool) {
	for i := range records {
		if records[i].Instance == instance {
			return &records[i], true
		}
	}
	return nil, false
}

// UpsertInstance replaces the record for rec.Instance, or appends it.
func UpsertInstance(records []InstanceConfig, rec InstanceConfig) []InstanceConfig {
	for i := range records {
		if records[i].Instance == rec.Instance {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

// RemoveInstance drops the record for instance.
func RemoveInstance(records []InstanceConfig, instance string) []InstanceConfig {
	out := records[:0]
	for _, r := range records {
		if r.Instance != instance {
			out = append(out, r)
		}
	}
	return out
}
