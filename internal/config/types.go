// Package config loads the virtup driver options and platforms from a
// Molecule scenario file, with optional overrides from VIRTUP_FILE.
package config

import (
	"fmt"
	"slices"
)

// DriverName is the name virtup registers under in molecule.yml.
const DriverName = "virtup"

// Connection types for reaching the hypervisor.
const (
	ConnectionLocal = "local"
	ConnectionSSH   = "ssh"
)

// Scenario is the subset of a Molecule scenario file virtup reads.
type Scenario struct {
	Driver    Driver     `yaml:"driver"`
	Platforms []Platform `yaml:"platforms"`
}

// Driver is the scenario's driver section.
type Driver struct {
	Name    string  `yaml:"name"`
	Options Options `yaml:"options,omitempty"`
}

// Options are the virtup driver options.
type Options struct {
	// Host is the hypervisor the virt_up module runs on.
	Host string `yaml:"host,omitempty"`
	// Connection is local or ssh.
	Connection string `yaml:"connection,omitempty"`
	// Port is the hypervisor's SSH port when Connection is ssh.
	Port int `yaml:"port,omitempty"`
	// URI is passed to the module as LIBVIRT_DEFAULT_URI.
	URI      string `yaml:"libvirt_uri,omitempty"`
	LogFile  string `yaml:"logfile,omitempty"`
	LogLevel string `yaml:"loglevel,omitempty"`
	// SSHConnectionOptions replace the default ssh -o options.
	SSHConnectionOptions []string `yaml:"ssh_connection_options,omitempty"`
}

// Platform is one instance of the scenario.
type Platform struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template,omitempty"`
	Size     string `yaml:"size,omitempty"`
	Memory   uint   `yaml:"memory,omitempty"`
	CPUs     uint   `yaml:"cpus,omitempty"`
}

// SetDefaults fills in unset options.
func (o *Options) SetDefaults() {
	if o.Host == "" {
		o.Host = "localhost"
	}
	if o.Connection == "" {
		o.Connection = ConnectionLocal
	}
	if o.Connection == ConnectionSSH && o.Port == 0 {
		o.Port = 22
	}
}

// Merge overlays the non-zero fields of other onto o.
func (o *Options) Merge(other Options) {
	if other.Host != "" {
		o.Host = other.Host
	}
	if other.Connection != "" {
		o.Connection = other.Connection
	}
	if other.Port != 0 {
		o.Port = other.Port
	}
	if other.URI != "" {
		o.URI = other.URI
	}
	if other.LogFile != "" {
		o.LogFile = other.LogFile
	}
	if other.LogLevel != "" {
		o.LogLevel = other.LogLevel
	}
	if len(other.SSHConnectionOptions) > 0 {
		o.SSHConnectionOptions = slices.Clone(other.SSHConnectionOptions)
	}
}

// Validate checks the options for errors.
func (o *Options) Validate() error {
	switch o.Connection {
	case ConnectionLocal, ConnectionSSH:
	default:
		return fmt.Errorf("invalid connection %q (must be %s or %s)", o.Connection, ConnectionLocal, ConnectionSSH)
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port %d", o.Port)
	}
	return nil
}

// Validate checks the scenario for errors.
func (s *Scenario) Validate() error {
	if s.Driver.Name != "" && s.Driver.Name != DriverName {
		return fmt.Errorf("scenario uses driver %q, not %s", s.Driver.Name, DriverName)
	}
	if err := s.Driver.Options.Validate(); err != nil {
		return fmt.Errorf("driver.options: %w", err)
	}

	seen := make(map[string]bool, len(s.Platforms))
	for i, p := range s.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platforms[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("platforms[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Platform returns the named platform.
func (s *Scenario) Platform(name string) (Platform, bool) {
	for _, p := range s.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}
