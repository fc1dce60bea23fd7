package module

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/molecule-virtup/internal/virtup"
)

const (
	// SSHPort is the port instances are reached on.
	SSHPort = 22

	// EphemeralDirEnv names Molecule's per-scenario scratch directory.
	EphemeralDirEnv = "MOLECULE_EPHEMERAL_DIRECTORY"
)

// ErrEphemeralDirNotSet is returned by up when MOLECULE_EPHEMERAL_DIRECTORY is unset.
var ErrEphemeralDirNotSet = errors.New(EphemeralDirEnv + " is not set")

// ConnectFunc opens the engine. It is called once, after the parameters
// and the environment have been checked.
type ConnectFunc func(ctx context.Context) (Engine, error)

// Module runs virt_up against an engine.
type Module struct {
	// Engine is opened through Connect when nil.
	Engine  Engine
	Connect ConnectFunc
	// Version is the engine version checked by Preflight.
	Version string
	Log     logrus.FieldLogger

	// Getenv and Groups are replaceable in tests.
	Getenv func(string) string
	Groups func() ([]Group, error)
}

// New returns a module reading the real environment.
func New(engine Engine, log logrus.FieldLogger) *Module {
	return &Module{
		Engine:  engine,
		Version: engine.Version(),
		Log:     log,
		Getenv:  os.Getenv,
		Groups:  processGroups,
	}
}

// NewConnecting returns a module that opens its engine with connect only
// once the parameters, the preflight checks and the environment pass, so a
// failing invocation never touches the hypervisor.
func NewConnecting(version string, connect ConnectFunc, log logrus.FieldLogger) *Module {
	return &Module{
		Connect: connect,
		Version: version,
		Log:     log,
		Getenv:  os.Getenv,
		Groups:  processGroups,
	}
}

// Run validates p, runs the preflight checks and then brings the instance
// up or removes it.
func (m *Module) Run(ctx context.Context, p Params) (*Result, error) {
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m.Log.WithFields(logrus.Fields{
		"version":  m.Version,
		"state":    p.State,
		"name":     p.Name,
		"template": p.Template,
	}).Info("starting virt_up")

	if err := m.Preflight(); err != nil {
		return nil, err
	}

	var ephemeralDir string
	if p.State == StateUp {
		ephemeralDir = m.Getenv(EphemeralDirEnv)
		if ephemeralDir == "" {
			return nil, ErrEphemeralDirNotSet
		}
	}

	if m.Engine == nil {
		if m.Connect == nil {
			return nil, errors.New("no engine configured")
		}
		engine, err := m.Connect(ctx)
		if err != nil {
			return nil, err
		}
		m.Engine = engine
	}

	var (
		result *Result
		err    error
	)
	switch p.State {
	case StateUp:
		result, err = m.up(ctx, p, ephemeralDir)
	case StateAbsent:
		result, err = m.absent(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	m.Log.Debugf("result=%+v", *result)
	return result, nil
}

func (m *Module) up(ctx context.Context, p Params, ephemeralDir string) (*Result, error) {
	result := &Result{}

	exists, err := m.Engine.Exists(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance %s: %w", p.Name, err)
	}
	if !exists {
		err := m.Engine.Build(ctx, p.Template, virtup.BuildOptions{
			Size:      p.Size,
			MemoryMiB: uint(p.Memory),
			VCPUs:     uint(p.CPUs),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build template %s: %w", p.Template, err)
		}

		err = m.Engine.Clone(ctx, p.Template, p.Name, virtup.CloneOptions{
			MemoryMiB: uint(p.Memory),
			VCPUs:     uint(p.CPUs),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clone instance %s: %w", p.Name, err)
		}
		result.Changed = true
	}

	if err := m.Engine.Start(ctx, p.Name); err != nil {
		return nil, fmt.Errorf("failed to start instance %s: %w", p.Name, err)
	}
	if err := m.Engine.WaitForPort(ctx, p.Name, SSHPort); err != nil {
		return nil, fmt.Errorf("instance %s did not come up: %w", p.Name, err)
	}
	m.Log.Infof("instance %s is up", p.Name)

	meta, err := m.Engine.Meta(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %s: %w", p.Name, err)
	}
	address, err := m.Engine.Address(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get address of %s: %w", p.Name, err)
	}

	moleculeKey := filepath.Join(ephemeralDir, filepath.Base(meta.User.SSHIdentity))
	result.Keys = map[string]string{
		KeyVirtup:   meta.User.SSHIdentity,
		KeyMolecule: moleculeKey,
	}
	result.Server = &Server{
		Instance:     p.Name,
		Address:      address,
		User:         meta.User.Username,
		Port:         fmt.Sprint(SSHPort),
		IdentityFile: moleculeKey,
	}
	return result, nil
}

func (m *Module) absent(ctx context.Context, p Params) (*Result, error) {
	exists, err := m.Engine.Exists(ctx, p.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check instance %s: %w", p.Name, err)
	}
	if !exists {
		return &Result{}, nil
	}

	if err := m.Engine.Delete(ctx, p.Name); err != nil {
		return nil, fmt.Errorf("failed to delete instance %s: %w", p.Name, err)
	}
	m.Log.Infof("instance %s was deleted", p.Name)
	return &Result{Changed: true}, nil
}
