package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jbweber/molecule-virtup/internal/logging"
	"github.com/jbweber/molecule-virtup/internal/module"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_ = module.FailJSON(os.Stdout, err)
		os.Exit(1)
	}
}

var params module.Params

var rootCmd = &cobra.Command{
	Use:   "virt_up [args-file]",
	Short: "Ansible module creating and removing virt-up instances",
	Long: `virt_up brings a libvirt instance up from a template, or removes it.

Ansible runs it as a binary module with the path of a JSON arguments file:

  {"state": "up", "name": "myinst", "template": "generic-centos-8"}

For manual runs the same arguments can be given as flags. The result is
printed as a single JSON object on stdout.`,
	Version:       fmt.Sprintf("%s (commit: %s, engine: %s)", version, commit, virtup.Version),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := params
		if len(args) == 1 {
			loaded, err := module.LoadParams(args[0])
			if err != nil {
				return err
			}
			p = *loaded
		}
		return run(cmd.Context(), p)
	},
}

func init() {
	bindParams(rootCmd.Flags(), &params)
}

func bindParams(fs *pflag.FlagSet, p *module.Params) {
	fs.StringVar(&p.State, "state", module.StateUp, "desired state: up or absent")
	fs.StringVar(&p.Name, "name", "", "instance name")
	fs.StringVar(&p.Template, "template", module.DefaultTemplate, "template (base image) name")
	fs.StringVar(&p.Size, "size", "", "template boot disk size, e.g. 10G")
	fs.UintVar((*uint)(&p.Memory), "memory", 0, "memory in MiB (0 keeps the template's)")
	fs.UintVar((*uint)(&p.CPUs), "cpus", module.DefaultCPUs, "number of virtual CPUs")
	fs.StringVar(&p.LogLevel, "loglevel", module.DefaultLogLevel, "log level")
	fs.StringVar(&p.LogFile, "logfile", module.DefaultLogFile, "log file")
}

func run(ctx context.Context, p module.Params) error {
	p.SetDefaults()
	if err := p.Validate(); err != nil {
		return err
	}

	log, closer, err := logging.NewFile(p.LogFile, p.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = closer.Close() }()

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
		engine, err = virtup.Connect(ctx, "", virtup.Options{}, log)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}

	result, err := module.NewConnecting(virtup.Version, connect, log).Run(ctx, p)
	if err != nil {
		log.WithError(err).Error("virt_up failed")
		return err
	}
	return module.ExitJSON(os.Stdout, result)
}
