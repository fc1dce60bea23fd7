package driver

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/jbweber/molecule-virtup/internal/config"
)

//go:embed scaffold
var scaffoldFS embed.FS

const scaffoldRoot = "scaffold"

// ScenarioOptions parameterize a new scenario.
type ScenarioOptions struct {
	Options   config.Options
	Platforms []config.Platform
	// Force overwrites existing files.
	Force bool
}

// RenderScenario writes molecule.yml and the create, destroy and converge
// playbooks into dir. Existing files are left alone unless opts.Force is
// set. It returns the paths written.
func RenderScenario(dir string, opts ScenarioOptions) ([]string, error) {
	opts.Options.SetDefaults()
	if err := opts.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver options: %w", err)
	}
	if len(opts.Platforms) == 0 {
		opts.Platforms = []config.Platform{{Name: "instance", Template: "default"}}
	}
	for i := range opts.Platforms {
		if opts.Platforms[i].Template == "" {
			opts.Platforms[i].Template = "default"
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}

	entries, err := fs.ReadDir(scaffoldFS, scaffoldRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaffolding: %w", err)
	}

	var written []string
	for _, entry := range entries {
		data, err := scaffoldFS.ReadFile(scaffoldRoot + "/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read scaffold %s: %w", entry.Name(), err)
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".tmpl") {
			name = strings.TrimSuffix(name, ".tmpl")
			if data, err = renderTemplate(name, data, opts); err != nil {
				return nil, err
			}
		}

		path := filepath.Join(dir, name)
		if !opts.Force {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%s already exists", path)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func renderTemplate(name string, text []byte, opts ScenarioOptions) ([]byte, error) {
	tmpl, err := template.New(name).Delims("[[", "]]").Parse(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		DriverName string
		ScenarioOptions
	}{config.DriverName, opts})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// InstallScaffold copies the scaffolding, templates unrendered, into dir so
// that the template directory reported to Molecule exists. Files already
// present are kept. It returns the paths written.
func InstallScaffold(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}

	entries, err := fs.ReadDir(scaffoldFS, scaffoldRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaffolding: %w", err)
	}

	var written []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(path); err == nil {
			continue
		}

		data, err := scaffoldFS.ReadFile(scaffoldRoot + "/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read scaffold %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
