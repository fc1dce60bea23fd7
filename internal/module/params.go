package module

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	StateUp     = "up"
	StateAbsent = "absent"

	DefaultTemplate = "default"
	DefaultCPUs     = 1
	DefaultLogLevel = "info"
	DefaultLogFile  = "~/.cache/virtup.log"
)

var (
	// ErrInvalidState is returned for any state other than up or absent.
	ErrInvalidState = errors.New("invalid state")

	// ErrNameRequired is returned when no instance name is given.
	ErrNameRequired = errors.New("name is required")
)

// LogLevels are the accepted values of the loglevel parameter.
var LogLevels = []string{"critical", "error", "warning", "warn", "info", "debug"}

// Params are the module arguments.
type Params struct {
	State    string `json:"state"`
	Name     string `json:"name"`
	Template string `json:"template"`
	// Size is the template boot disk size, e.g. "10G".
	Size string `json:"size"`
	// Memory is in MiB. Zero keeps the template's.
	Memory   Count  `json:"memory"`
	CPUs     Count  `json:"cpus"`
	LogLevel string `json:"loglevel"`
	LogFile  string `json:"logfile"`
}

// Count is a non-negative integer argument. Ansible passes templated
// values as strings, so both JSON numbers and numeric strings are accepted.
type Count uint

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid count %s: %w", data, err)
	}
	*c = Count(n)
	return nil
}

// LoadParams reads the JSON arguments file Ansible passes to binary
// modules. Ansible's internal "_ansible_*" keys are ignored.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module arguments: %w", err)
	}

	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse module arguments: %w", err)
	}
	p.SetDefaults()
	return &p, nil
}

// SetDefaults fills in unset parameters.
func (p *Params) SetDefaults() {
	if p.State == "" {
		p.State = StateUp
	}
	if p.Template == "" {
		p.Template = DefaultTemplate
	}
	if p.CPUs == 0 {
		p.CPUs = DefaultCPUs
	}
	if p.LogLevel == "" {
		p.LogLevel = DefaultLogLevel
	}
	if p.LogFile == "" {
		p.LogFile = DefaultLogFile
	}
}

// Validate checks the parameters. It never touches the engine.
func (p *Params) Validate() error {
	if p.State != StateUp && p.State != StateAbsent {
		return fmt.Errorf("%w: %q (must be %s or %s)", ErrInvalidState, p.State, StateUp, StateAbsent)
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	if !slices.Contains(LogLevels, p.LogLevel) {
		return fmt.Errorf("invalid loglevel %q (must be one of %s)", p.LogLevel, strings.Join(LogLevels, ", "))
	}
	return nil
}
