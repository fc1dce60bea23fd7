package module

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/jbweber/molecule-virtup/internal/naming"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// fakeEngine is an in-memory Engine that records every call.
type fakeEngine struct {
	version   string
	instances map[string]*virtup.Meta
	templates map[string]bool
	running   map[string]bool

	buildErr error
	waitErr  error

	calls []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		version:   "2.1.0",
		instances: make(map[string]*virtup.Meta),
		templates: make(map[string]bool),
		running:   make(map[string]bool),
	}
}

func (f *fakeEngine) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeEngine) Version() string { return f.version }

func (f *fakeEngine) Exists(_ context.Context, name string) (bool, error) {
	f.record("exists %s", name)
	_, ok := f.instances[name]
	return ok, nil
}

func (f *fakeEngine) Meta(_ context.Context, name string) (*virtup.Meta, error) {
	f.record("meta %s", name)
	meta, ok := f.instances[name]
	if !ok {
		return nil, virtup.ErrNotFound
	}
	return meta, nil
}

func (f *fakeEngine) Build(_ context.Context, template string, opts virtup.BuildOptions) error {
	f.record("build %s", template)
	if f.buildErr != nil {
		return f.buildErr
	}
	f.templates[template] = true
	return nil
}

func (f *fakeEngine) Clone(_ context.Context, template, name string, opts virtup.CloneOptions) error {
	f.record("clone %s %s", template, name)
	if !f.templates[template] {
		return errors.New("template not built")
	}
	f.instances[name] = &virtup.Meta{
		Name:     name,
		Template: template,
		User: virtup.User{
			Username:    "virtup",
			SSHIdentity: naming.KeyPath("/home/tester/.local/share/virtup/keys", template),
		},
		MemoryMiB: opts.MemoryMiB,
		VCPUs:     opts.VCPUs,
	}
	return nil
}

func (f *fakeEngine) Start(_ context.Context, name string) error {
	f.record("start %s", name)
	f.running[name] = true
	return nil
}

func (f *fakeEngine) WaitForPort(_ context.Context, name string, port int) error {
	f.record("wait %s %d", name, port)
	return f.waitErr
}

func (f *fakeEngine) Address(_ context.Context, name string) (string, error) {
	f.record("address %s", name)
	return "192.168.122.10", nil
}

func (f *fakeEngine) Delete(_ context.Context, name string) error {
	f.record("delete %s", name)
	if _, ok := f.instances[name]; !ok {
		return virtup.ErrNotFound
	}
	delete(f.instances, name)
	delete(f.running, name)
	return nil
}

// newTestModule returns a module over f whose environment is env and whose
// process is a member of groups. Log entries are captured by the hook.
func newTestModule(f *fakeEngine, env map[string]string, groups ...string) (*Module, *test.Hook) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	hook := test.NewLocal(log)

	m := New(f, log)
	m.Getenv = func(key string) string { return env[key] }
	m.Groups = func() ([]Group, error) {
		out := make([]Group, 0, len(groups))
		for i, g := range groups {
			out = append(out, Group{GID: 1000 + i, Name: g})
		}
		return out, nil
	}
	return m, hook
}
