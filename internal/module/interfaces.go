package module

import (
	"context"

	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// Engine is the VM engine the module drives. Instances are addressed by
// name; the engine owns everything behind a name.
//
// In production, this is satisfied by *virtup.Engine.
// In tests, this is satisfied by fakes.
type Engine interface {
	// Version returns the engine version as a semantic version string
	Version() string

	// Exists reports whether an instance (or template domain) exists
	Exists(ctx context.Context, name string) (bool, error)

	// Meta returns the stored metadata of an instance
	Meta(ctx context.Context, name string) (*virtup.Meta, error)

	// Build creates the template domain for template if it does not exist
	Build(ctx context.Context, template string, opts virtup.BuildOptions) error

	// Clone creates instance name from the template domain of template
	Clone(ctx context.Context, template, name string, opts virtup.CloneOptions) error

	// Start starts an instance unless it is running
	Start(ctx context.Context, name string) error

	// WaitForPort waits until port on the instance accepts connections
	WaitForPort(ctx context.Context, name string, port int) error

	// Address returns the instance's IPv4 address
	Address(ctx context.Context, name string) (string, error)

	// Delete stops and removes an instance
	Delete(ctx context.Context, name string) error
}
