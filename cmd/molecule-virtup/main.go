package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/molecule-virtup/internal/config"
	"github.com/jbweber/molecule-virtup/internal/driver"
	"github.com/jbweber/molecule-virtup/internal/logging"
	"github.com/jbweber/molecule-virtup/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Environment Molecule sets for drivers.
const (
	instanceConfigEnv = "MOLECULE_INSTANCE_CONFIG"
	scenarioFileEnv   = "MOLECULE_FILE"
)

var (
	scenarioFile   string
	instanceConfig string
	templateDir    string
	outputFormat   string
	logLevel       string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "molecule-virtup",
	Short: "Molecule driver for virt-up libvirt instances",
	Long: `molecule-virtup is the virtup driver for Molecule.

It answers Molecule's driver queries (login command, login and Ansible
connection options) from the scenario's instance config, scaffolds new
scenarios, and can bring instances up or down directly for debugging.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&scenarioFile, "scenario", envOr(scenarioFileEnv, "molecule.yml"), "Molecule scenario file")
	flags.StringVar(&instanceConfig, "instance-config", os.Getenv(instanceConfigEnv), "Molecule instance config file")
	flags.StringVar(&templateDir, "template-dir", "", "scenario scaffolding directory reported to Molecule (default $XDG_DATA_HOME/molecule-virtup/scaffold)")
	flags.StringVarP(&outputFormat, "output", "o", "", "output format: table, yaml or json (default table on a terminal, yaml otherwise)")
	flags.StringVar(&logLevel, "log-level", "warning", "log level")

	rootCmd.AddCommand(loginCmdCmd)
	rootCmd.AddCommand(loginOptionsCmd)
	rootCmd.AddCommand(connectionOptionsCmd)
	rootCmd.AddCommand(pathsCmd)
	rootCmd.AddCommand(testConnCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(absentCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(imageCmd)
}

var loginCmdCmd = &cobra.Command{
	Use:   "login-cmd",
	Short: "Print the login command template",
	Long: `Print the ssh command template Molecule formats with an instance's
login options to log in to it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver()
		if err != nil {
			return err
		}
		fmt.Println(d.LoginCmdTemplate())
		return nil
	},
}

var loginOptionsCmd = &cobra.Command{
	Use:   "login-options <instance>",
	Short: "Print the login options of an instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver()
		if err != nil {
			return err
		}
		opts, err := d.LoginOptions(args[0])
		if err != nil {
			return fmt.Errorf("failed to get login options: %w", err)
		}
		return printValues(opts)
	},
}

var connectionOptionsCmd = &cobra.Command{
	Use:   "connection-options <instance>",
	Short: "Print the Ansible connection options of an instance",
	Long: `Print the Ansible inventory variables of an instance. An instance that
has not been created yet has no options.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver()
		if err != nil {
			return err
		}
		opts, err := d.AnsibleConnectionOptions(args[0])
		if err != nil {
			return fmt.Errorf("failed to get connection options: %w", err)
		}
		return printValues(opts)
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print the driver's template and modules directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver()
		if err != nil {
			return err
		}
		return printValues(map[string]string{
			"name":         d.Name(),
			"template_dir": d.TemplateDir(),
			"modules_dir":  d.ModulesDir(),
		})
	},
}

// newDriver builds the driver from the scenario file and instance config.
func newDriver() (*driver.VirtUp, error) {
	scenario, err := config.LoadScenario(scenarioFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}

	modulesDir, err := executableDir()
	if err != nil {
		return nil, err
	}

	dir := templateDir
	if dir == "" {
		dir = defaultTemplateDir()
	}
	if _, err := driver.InstallScaffold(dir); err != nil {
		return nil, err
	}

	d := driver.New(instanceConfig, scenario.Driver.Options, dir, modulesDir)
	if err := d.SanityChecks(); err != nil {
		return nil, fmt.Errorf("sanity checks failed: %w", err)
	}
	return d, nil
}

// defaultTemplateDir is $XDG_DATA_HOME/molecule-virtup/scaffold, falling
// back to ~/.local/share.
func defaultTemplateDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "molecule-virtup", "scaffold")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "molecule-virtup", "scaffold")
	}
	return filepath.Join(home, ".local", "share", "molecule-virtup", "scaffold")
}

// executableDir is where virt_up is installed next to this binary.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	return filepath.Dir(exe), nil
}

func newFormatter() (output.Formatter, error) {
	format := output.DefaultFormat(os.Stdout)
	if outputFormat != "" {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return nil, err
		}
		format = output.Format(outputFormat)
	}
	return output.NewFormatter(output.Options{Format: format})
}

func printValues(values map[string]string) error {
	f, err := newFormatter()
	if err != nil {
		return err
	}
	out, err := f.FormatValues(values)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func newLogger() (*logrus.Logger, error) {
	return logging.New(os.Stderr, logLevel)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
