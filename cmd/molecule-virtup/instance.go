package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/molecule-virtup/internal/config"
	"github.com/jbweber/molecule-virtup/internal/driver"
	"github.com/jbweber/molecule-virtup/internal/module"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

var (
	upParams     module.Params
	ephemeralDir string
)

func init() {
	flags := upCmd.Flags()
	flags.StringVar(&upParams.Template, "template", "", "template (base image) name")
	flags.StringVar(&upParams.Size, "size", "", "template boot disk size, e.g. 10G")
	flags.UintVar((*uint)(&upParams.Memory), "memory", 0, "memory in MiB")
	flags.UintVar((*uint)(&upParams.CPUs), "cpus", 0, "number of virtual CPUs")
	flags.StringVar(&ephemeralDir, "ephemeral-dir", os.Getenv(module.EphemeralDirEnv), "directory receiving the instance's private key")
}

var upCmd = &cobra.Command{
	Use:   "up <name>",
	Short: "Bring an instance up",
	Long: `Run the virt_up module locally to bring an instance up, copy its private
key into the ephemeral directory and record it in the instance config.

Resources default to the scenario platform of the same name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ephemeralDir == "" {
			return module.ErrEphemeralDirNotSet
		}

		p := upParams
		p.State = module.StateUp
		p.Name = args[0]

		scenario, err := config.LoadScenario(scenarioFile)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
		applyPlatform(&p, scenario)

		result, err := runModule(cmd, scenario.Driver.Options, p)
		if err != nil {
			return err
		}

		if err := copyKey(result.Keys[module.KeyVirtup], result.Keys[module.KeyMolecule]); err != nil {
			return err
		}
		if err := updateInstanceConfig(func(records []driver.InstanceConfig) []driver.InstanceConfig {
			return driver.UpsertInstance(records, driver.InstanceConfig(*result.Server))
		}); err != nil {
			return err
		}

		fmt.Printf("✓ Instance %s is up at %s (changed: %t)\n", p.Name, result.Server.Address, result.Changed)
		return nil
	},
}

var absentCmd = &cobra.Command{
	Use:   "absent <name>",
	Short: "Remove an instance",
	Long: `Run the virt_up module locally to remove an instance and drop it from the
instance config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := config.LoadScenario(scenarioFile)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}

		result, err := runModule(cmd, scenario.Driver.Options, module.Params{
			State: module.StateAbsent,
			Name:  args[0],
		})
		if err != nil {
			return err
		}

		if err := updateInstanceConfig(func(records []driver.InstanceConfig) []driver.InstanceConfig {
			return driver.RemoveInstance(records, args[0])
		}); err != nil {
			return err
		}

		if result.Changed {
			fmt.Printf("✓ Instance %s removed\n", args[0])
		} else {
			fmt.Printf("Instance %s does not exist\n", args[0])
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List virtup instances and templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := config.LoadScenario(scenarioFile)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}

		log, err := newLogger()
		if err != nil {
			return err
		}

		engine, err := virtup.Connect(cmd.Context(), scenario.Driver.Options.URI, virtup.Options{}, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := engine.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
			}
		}()

		instances, err := engine.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}

		f, err := newFormatter()
		if err != nil {
			return err
		}
		out, err := f.FormatInstances(instances)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// applyPlatform fills unset parameters from the scenario platform named p.Name.
func applyPlatform(p *module.Params, scenario *config.Scenario) {
	platform, ok := scenario.Platform(p.Name)
	if !ok {
		return
	}
	if p.Template == "" {
		p.Template = platform.Template
	}
	if p.Size == "" {
		p.Size = platform.Size
	}
	if p.Memory == 0 {
		p.Memory = module.Count(platform.Memory)
	}
	if p.CPUs == 0 {
		p.CPUs = module.Count(platform.CPUs)
	}
}

// runModule runs virt_up in-process against the scenario's libvirt URI,
// logging to stderr.
func runModule(cmd *cobra.Command, opts config.Options, p module.Params) (*module.Result, error) {
	p.LogLevel = logLevel
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	var engine *virtup.Engine
	defer func() {
		if engine == nil {
			return
		}
		if closeErr := engine.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("failed to close libvirt connection")
		}
	}()

	connect := func(ctx context.Context) (module.Engine, error) {
		var err error
		engine, err = virtup.Connect(ctx, opts.URI, virtup.Options{}, log)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	m := module.NewConnecting(virtup.Version, connect, log)
	m.Getenv = moduleEnv(opts, ephemeralDir, os.Getenv)
	return m.Run(cmd.Context(), p)
}

// moduleEnv is the environment the in-process module sees: the scenario's
// libvirt_uri as LIBVIRT_DEFAULT_URI and the ephemeral directory flag.
func moduleEnv(opts config.Options, ephemeral string, getenv func(string) string) func(string) string {
	return func(key string) string {
		switch {
		case key == "LIBVIRT_DEFAULT_URI" && opts.URI != "":
			return opts.URI
		case key == module.EphemeralDirEnv:
			return ephemeral
		}
		return getenv(key)
	}
}

// copyKey copies the engine-managed private key to where Molecule expects it.
func copyKey(src, dst string) error {
	if src == "" || dst == "" || src == dst {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open key %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy key to %s: %w", dst, err)
	}
	return out.Close()
}

// updateInstanceConfig rewrites the instance config with update applied.
// A missing file starts out empty.
func updateInstanceConfig(update func([]driver.InstanceConfig) []driver.InstanceConfig) error {
	if instanceConfig == "" {
		return nil
	}

	var records []driver.InstanceConfig
	if _, err := os.Stat(instanceConfig); err == nil {
		records, err = driver.LoadInstanceConfig(instanceConfig)
		if err != nil {
			return err
		}
	}
	return driver.SaveInstanceConfig(instanceConfig, update(records))
}
