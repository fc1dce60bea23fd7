// Package driver is the virtup driver as Molecule sees it: SSH login and
// Ansible connection options derived from the instance-config file the
// create playbook writes, plus the scenario scaffolding for init.
package driver

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/jbweber/molecule-virtup/internal/config"
)

// ErrInstanceNotFound is returned when the instance-config file has no
// record for an instance.
var ErrInstanceNotFound = errors.New("instance not found in instance config")

// Driver is what Molecule calls on any driver.
type Driver interface {
	Name() string
	SetName(name string)
	LoginCmdTemplate() string
	DefaultSafeFiles() []string
	DefaultSSHConnectionOptions() []string
	SSHConnectionOptions() []string
	LoginOptions(instance string) (map[string]string, error)
	AnsibleConnectionOptions(instance string) (map[string]string, error)
	SanityChecks() error
	TemplateDir() string
	ModulesDir() string
}

// DefaultSSHConnectionOptions are the ssh -o options Molecule uses for
// every SSH based driver.
var DefaultSSHConnectionOptions = []string{
	"-o UserKnownHostsFile=/dev/null",
	"-o ControlMaster=auto",
	"-o ControlPersist=60s",
	"-o ForwardX11=no",
	"-o LogLevel=ERROR",
	"-o IdentitiesOnly=yes",
	"-o StrictHostKeyChecking=no",
}

// VirtUp implements Driver.
type VirtUp struct {
	name           string
	instanceConfig string
	options        config.Options
	templateDir    string
	modulesDir     string
}

// New returns the driver reading instance records from instanceConfig.
// templateDir and modulesDir are reported to Molecule as-is.
func New(instanceConfig string, options config.Options, templateDir, modulesDir string) *VirtUp {
	return &VirtUp{
		name:           config.DriverName,
		instanceConfig: instanceConfig,
		options:        options,
		templateDir:    templateDir,
		modulesDir:     modulesDir,
	}
}

var _ Driver = (*VirtUp)(nil)

func (d *VirtUp) Name() string        { return d.name }
func (d *VirtUp) SetName(name string) { d.name = name }

// LoginCmdTemplate returns the ssh command Molecule formats to log in.
// The {address}, {user}, {port} and {identity_file} fields come from the
// instance's login options.
func (d *VirtUp) LoginCmdTemplate() string {
	return "ssh {address} -l {user} -p {port} -i {identity_file} " +
		strings.Join(d.SSHConnectionOptions(), " ")
}

// DefaultSafeFiles lists files Molecule must keep on destroy. virtup has none.
func (d *VirtUp) DefaultSafeFiles() []string {
	return []string{}
}

// DefaultSSHConnectionOptions returns Molecule's standard ssh options.
func (d *VirtUp) DefaultSSHConnectionOptions() []string {
	return slices.Clone(DefaultSSHConnectionOptions)
}

// SSHConnectionOptions returns the driver's ssh_connection_options when
// set, and the defaults otherwise.
func (d *VirtUp) SSHConnectionOptions() []string {
	if len(d.options.SSHConnectionOptions) > 0 {
		return slices.Clone(d.options.SSHConnectionOptions)
	}
	return d.DefaultSSHConnectionOptions()
}

// LoginOptions returns {instance: name} merged with the instance's record.
func (d *VirtUp) LoginOptions(instance string) (map[string]string, error) {
	rec, err := d.instanceRecord(instance)
	if err != nil {
		return nil, err
	}

	opts := map[string]string{"instance": instance}
	maps.Copy(opts, rec.Map())
	return opts, nil
}

// AnsibleConnectionOptions returns the inventory variables for an
// instance. An instance that has not been created yet, because the
// instance-config file or its record is missing, has an empty map. Any
// other failure to read the file is returned.
func (d *VirtUp) AnsibleConnectionOptions(instance string) (map[string]string, error) {
	rec, err := d.instanceRecord(instance)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrInstanceNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"ansible_user":             rec.User,
		"ansible_host":             rec.Address,
		"ansible_port":             rec.Port,
		"ansible_private_key_file": rec.IdentityFile,
		"connection":               "ssh",
		"ansible_ssh_common_args":  strings.Join(d.SSHConnectionOptions(), " "),
	}, nil
}

// SanityChecks has nothing to check.
func (d *VirtUp) SanityChecks() error {
	return nil
}

// TemplateDir returns the directory holding the scenario scaffolding.
func (d *VirtUp) TemplateDir() string {
	return d.templateDir
}

// ModulesDir returns the directory holding the virt_up module.
func (d *VirtUp) ModulesDir() string {
	return d.modulesDir
}

func (d *VirtUp) instanceRecord(instance string) (*InstanceConfig, error) {
	records, err := LoadInstanceConfig(d.instanceConfig)
	if err != nil {
		return nil, err
	}
	rec, ok := FindInstance(records, instance)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instance)
	}
	return rec, nil
}
