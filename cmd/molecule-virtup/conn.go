package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/molecule-virtup/internal/config"
	"github.com/jbweber/molecule-virtup/internal/libvirt"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test the libvirt connection",
	Long: `Test connectivity to the libvirt daemon named by the scenario's
libvirt_uri option (or LIBVIRT_DEFAULT_URI) and display version information.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := config.LoadScenario(scenarioFile)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}

		uri := libvirtURI(scenario.Driver.Options)
		fmt.Printf("Testing libvirt connection to %s...\n", uri)

		client, err := libvirt.ConnectURI(cmd.Context(), uri, 0)
		if err != nil {
			return fmt.Errorf("failed to connect to libvirt: %w", err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
			}
		}()

		fmt.Println("✓ Connected to libvirt daemon")

		if err := client.Ping(); err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		v, err := client.Libvirt().ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get libvirt version: %w", err)
		}
		fmt.Printf("✓ Libvirt version: %s\n", libvirt.FormatVersion(v))

		hostname, err := client.Libvirt().ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		fmt.Printf("✓ Hypervisor hostname: %s\n", hostname)
		fmt.Printf("✓ virt-up engine version: %s\n", virtup.Version)

		fmt.Println("\nConnection test successful!")
		return nil
	},
}

// libvirtURI is the scenario's libvirt_uri, else LIBVIRT_DEFAULT_URI, else
// the system URI.
func libvirtURI(opts config.Options) string {
	if opts.URI != "" {
		return opts.URI
	}
	if uri := os.Getenv("LIBVIRT_DEFAULT_URI"); uri != "" {
		return uri
	}
	return libvirt.DefaultURI
}
