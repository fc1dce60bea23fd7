// Package cloudinit renders the NoCloud seed that gives a cloned instance
// its hostname and the login user with the template's SSH key.
//
// See https://cloudinit.readthedocs.io/en/latest/reference/datasources/nocloud.html
package cloudinit

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"
)

// Seed is the per-instance input of the NoCloud datasource.
type Seed struct {
	// InstanceID changes whenever the instance is recreated, which makes
	// cloud-init run its first-boot modules again.
	InstanceID string
	Hostname   string
	Username   string
	// AuthorizedKey is one public key in authorized_keys format.
	AuthorizedKey string
}

// Validate checks the seed for missing fields and a malformed key.
func (s *Seed) Validate() error {
	if s.InstanceID == "" {
		return fmt.Errorf("instance id is required")
	}
	if s.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if s.Username == "" {
		return fmt.Errorf("username is required")
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(s.AuthorizedKey)); err != nil {
		return fmt.Errorf("invalid authorized key: %w", err)
	}
	return nil
}

// UserData is the cloud-config document.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
type UserData struct {
	Hostname         string `yaml:"hostname"`
	PreserveHostname bool   `yaml:"preserve_hostname"`
	SSHPasswordAuth  bool   `yaml:"ssh_pwauth"`
	Users            []User `yaml:"users"`
	Output           Output `yaml:"output"`
}

// User is one entry of the cloud-config users list.
type User struct {
	Name              string   `yaml:"name"`
	Sudo              string   `yaml:"sudo"`
	Shell             string   `yaml:"shell"`
	LockPasswd        bool     `yaml:"lock_passwd"`
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys"`
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// MetaData is the NoCloud meta-data document.
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// GenerateUserData renders user-data, including the "#cloud-config" header.
func GenerateUserData(seed *Seed) (string, error) {
	if seed == nil {
		return "", fmt.Errorf("seed cannot be nil")
	}

	userData := UserData{
		Hostname:        seed.Hostname,
		SSHPasswordAuth: false,
		Users: []User{
			{
				Name:              seed.Username,
				Sudo:              "ALL=(ALL) NOPASSWD:ALL",
				Shell:             "/bin/bash",
				LockPasswd:        true,
				SSHAuthorizedKeys: []string{strings.TrimSpace(seed.AuthorizedKey)},
			},
		},
		Output: Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	out, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}
	return "#cloud-config\n" + string(out), nil
}

// GenerateMetaData renders meta-data.
func GenerateMetaData(seed *Seed) (string, error) {
	if seed == nil {
		return "", fmt.Errorf("seed cannot be nil")
	}

	out, err := yaml.Marshal(&MetaData{
		InstanceID:    seed.InstanceID,
		LocalHostname: seed.Hostname,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}
	return string(out), nil
}
