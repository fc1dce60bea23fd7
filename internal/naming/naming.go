// Package naming holds the naming conventions for the libvirt resources
// owned by virtup: template domains, instance volumes and key files.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// TemplatePrefix is prepended to a template name to form the name of the
	// template domain that instances are cloned from.
	TemplatePrefix = "TEMPLATE-"

	// KeyFileSuffix is appended to the template name to form the file name
	// of the template's private key. Key file names are unique per template
	// so that keys copied into one directory do not collide.
	KeyFileSuffix = "_ed25519"
)

var domainNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName checks that name is usable as a libvirt domain name and as a
// volume name prefix.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("name %q is longer than 64 characters", name)
	}
	if !domainNamePattern.MatchString(name) {
		return fmt.Errorf("name %q must start with an alphanumeric character and contain only alphanumerics, '.', '-' or '_'", name)
	}
	return nil
}

// TemplateDomain returns the domain name of the template built for template.
//
// Example: "generic-centos-8" → "TEMPLATE-generic-centos-8"
func TemplateDomain(template string) string {
	return TemplatePrefix + template
}

// IsTemplateDomain reports whether name is a template domain.
func IsTemplateDomain(name string) bool {
	return strings.HasPrefix(name, TemplatePrefix)
}

// BaseImage returns the volume name of the base OS image for a template.
// Format: {template}.qcow2
func BaseImage(template string) string {
	if strings.HasSuffix(template, ".qcow2") {
		return template
	}
	return template + ".qcow2"
}

// VolumeNameBoot returns the volume name for a domain's boot disk.
// Format: {domain}_boot.qcow2
func VolumeNameBoot(domain string) string {
	return fmt.Sprintf("%s_boot.qcow2", domain)
}

// VolumeNameCloudInit returns the volume name for a domain's cloud-init ISO.
// Format: {domain}_cloudinit.iso
func VolumeNameCloudInit(domain string) string {
	return fmt.Sprintf("%s_cloudinit.iso", domain)
}

// KeyPath returns the private key path for a template under keyDir.
// Format: {keyDir}/{template}/{template}_ed25519
func KeyPath(keyDir, template string) string {
	return filepath.Join(keyDir, template, template+KeyFileSuffix)
}
