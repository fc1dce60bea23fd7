package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/molecule-virtup/internal/config"
	"github.com/jbweber/molecule-virtup/internal/driver"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold Molecule resources",
}

var (
	initTemplate string
	initForce    bool
	initOptions  config.Options
)

func init() {
	initCmd.AddCommand(initScenarioCmd)

	flags := initScenarioCmd.Flags()
	flags.StringVar(&initTemplate, "template", "default", "template of the scenario's instance")
	flags.BoolVar(&initForce, "force", false, "overwrite existing files")
	flags.StringVar(&initOptions.Host, "host", "", "hypervisor host the virt_up module runs on")
	flags.StringVar(&initOptions.Connection, "connection", "", "connection to the hypervisor: local or ssh")
	flags.StringVar(&initOptions.URI, "libvirt-uri", "", "libvirt URI on the hypervisor")
}

var initScenarioCmd = &cobra.Command{
	Use:   "scenario <dir>",
	Short: "Create a virtup scenario",
	Long: `Create a Molecule scenario using the virtup driver: molecule.yml and the
create, destroy and converge playbooks.

Example:
  molecule-virtup init scenario molecule/default --template generic-centos-8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := driver.RenderScenario(args[0], driver.ScenarioOptions{
			Options:   initOptions,
			Platforms: []config.Platform{{Name: "instance", Template: initTemplate}},
			Force:     initForce,
		})
		if err != nil {
			return fmt.Errorf("failed to create scenario: %w", err)
		}

		for _, path := range written {
			fmt.Printf("✓ %s\n", path)
		}
		return nil
	},
}
