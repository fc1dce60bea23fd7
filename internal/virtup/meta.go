package virtup

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"gopkg.in/yaml.v3"
)

const (
	// MetadataNamespace is the XML namespace of the virtup metadata element.
	MetadataNamespace = "http://virtup.sinenomine.net/v1"

	// MetadataKey is the element prefix libvirt uses for the namespace.
	MetadataKey = "virtup"
)

// Meta is what virtup knows about a template or instance. It is stored with
// the domain itself.
type Meta struct {
	Name      string    `yaml:"name"`
	Template  string    `yaml:"template"`
	User      User      `yaml:"user"`
	MemoryMiB uint      `yaml:"memory"`
	VCPUs     uint      `yaml:"vcpus"`
	SizeBytes uint64    `yaml:"size,omitempty"`
	Created   time.Time `yaml:"created"`
}

// User is the login account cloud-init creates on instances.
type User struct {
	Username string `yaml:"username"`
	// SSHIdentity is the path of the private key on the hypervisor host.
	SSHIdentity   string `yaml:"ssh_identity"`
	AuthorizedKey string `yaml:"authorized_key"`
}

// metadataElement wraps the YAML document so it can live inside the domain XML.
type metadataElement struct {
	XMLName xml.Name `xml:"meta"`
	Xmlns   string   `xml:"xmlns,attr"`
	YAML    string   `xml:",chardata"`
}

func encodeMeta(meta *Meta) (string, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta to YAML: %w", err)
	}

	out, err := xml.Marshal(metadataElement{Xmlns: MetadataNamespace, YAML: string(data)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta to XML: %w", err)
	}
	return string(out), nil
}

func decodeMeta(doc string) (*Meta, error) {
	var elem metadataElement
	if err := xml.Unmarshal([]byte(doc), &elem); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meta XML: %w", err)
	}

	var meta Meta
	if err := yaml.Unmarshal([]byte(elem.YAML), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meta YAML: %w", err)
	}
	return &meta, nil
}

// storeMeta saves meta in the domain's persistent definition.
func storeMeta(lv libvirtClient, dom libvirt.Domain, meta *Meta) error {
	doc, err := encodeMeta(meta)
	if err != nil {
		return err
	}

	err = lv.DomainSetMetadata(
		dom,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{doc},
		libvirt.OptString{MetadataKey},
		libvirt.OptString{MetadataNamespace},
		libvirt.DomainAffectConfig,
	)
	if err != nil {
		return fmt.Errorf("failed to set libvirt domain metadata: %w", err)
	}
	return nil
}

// loadMeta reads meta back from a domain.
func loadMeta(lv libvirtClient, dom libvirt.Domain) (*Meta, error) {
	doc, err := lv.DomainGetMetadata(
		dom,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{MetadataNamespace},
		libvirt.DomainAffectConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get libvirt domain metadata for %s: %w", dom.Name, err)
	}
	return decodeMeta(doc)
}
