// Package output provides formatters for displaying virtup instances,
// images and option maps in various formats (table, YAML, JSON).
package output

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jbweber/molecule-virtup/internal/storage"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format, the format of Molecule's own files.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats virtup resources for output.
type Formatter interface {
	// FormatInstances formats instances and templates.
	FormatInstances(instances []virtup.InstanceInfo) (string, error)

	// FormatImages formats base images.
	FormatImages(images []storage.VolumeInfo) (string, error)

	// FormatValues formats a flat key/value map such as login options.
	FormatValues(values map[string]string) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}

// DefaultFormat is table on a terminal and YAML otherwise, so that
// Molecule and scripts reading the CLI's stdout get parseable output.
func DefaultFormat(f *os.File) Format {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatTable
	}
	return FormatYAML
}

// instanceView is the serialized form of an instance.
type instanceView struct {
	Name       string    `json:"name" yaml:"name"`
	Template   string    `json:"template" yaml:"template"`
	IsTemplate bool      `json:"is_template" yaml:"is_template"`
	State      string    `json:"state" yaml:"state"`
	Address    string    `json:"address,omitempty" yaml:"address,omitempty"`
	User       string    `json:"user" yaml:"user"`
	Identity   string    `json:"ssh_identity" yaml:"ssh_identity"`
	MemoryMiB  uint      `json:"memory" yaml:"memory"`
	VCPUs      uint      `json:"vcpus" yaml:"vcpus"`
	Created    time.Time `json:"created" yaml:"created"`
}

func instanceViews(instances []virtup.InstanceInfo) []instanceView {
	views := make([]instanceView, 0, len(instances))
	for _, i := range instances {
		views = append(views, instanceView{
			Name:       i.Name,
			Template:   i.Template,
			IsTemplate: i.IsTemplate,
			State:      i.State,
			Address:    i.Address,
			User:       i.User.Username,
			Identity:   i.User.SSHIdentity,
			MemoryMiB:  i.MemoryMiB,
			VCPUs:      i.VCPUs,
			Created:    i.Created,
		})
	}
	return views
}

// imageView is the serialized form of a base image.
type imageView struct {
	Name       string `json:"name" yaml:"name"`
	Path       string `json:"path" yaml:"path"`
	Capacity   uint64 `json:"capacity" yaml:"capacity"`
	Allocation uint64 `json:"allocation" yaml:"allocation"`
}

func imageViews(images []storage.VolumeInfo) []imageView {
	views := make([]imageView, 0, len(images))
	for _, img := range images {
		views = append(views, imageView{
			Name:       img.Name,
			Path:       img.Path,
			Capacity:   img.Capacity,
			Allocation: img.Allocation,
		})
	}
	return views
}
