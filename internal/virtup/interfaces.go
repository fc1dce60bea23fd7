package virtup

import (
	"context"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/molecule-virtup/internal/storage"
)

// libvirtClient defines the libvirt operations needed by the engine.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// ConnectGetLibVersion returns the libvirt library version of the daemon
	ConnectGetLibVersion() (uint64, error)

	// ConnectListAllDomains lists all domains (running and stopped)
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainLookupByName looks up a domain by name
	DomainLookupByName(name string) (libvirt.Domain, error)

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(xml string) (libvirt.Domain, error)

	// DomainCreate starts a domain
	DomainCreate(dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainDestroy force-stops a domain
	DomainDestroy(dom libvirt.Domain) error

	// DomainUndefineFlags undefines a domain with flags (e.g., NVRAM cleanup)
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error

	// DomainInterfaceAddresses returns the addresses of a domain's interfaces
	DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error)

	// DomainSetMetadata stores custom metadata on a domain
	DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error

	// DomainGetMetadata reads custom metadata from a domain
	DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)
}

// storageManager defines the storage operations needed by the engine.
//
// In production, this is satisfied by *storage.Manager.
// In tests, this is satisfied by mock implementations.
type storageManager interface {
	// ImageExists checks if a base image exists in the images pool
	ImageExists(ctx context.Context, imageName string) (bool, error)

	// VolumeExists checks if a volume exists in a pool
	VolumeExists(ctx context.Context, poolName, volumeName string) (bool, error)

	// CreateVolume creates a new volume in a pool
	CreateVolume(ctx context.Context, poolName string, spec storage.VolumeSpec) error

	// WriteVolumeData writes data to a volume (for cloud-init ISOs)
	WriteVolumeData(ctx context.Context, poolName, volumeName string, data []byte) error

	// DeleteVolumes deletes the named volumes from a pool, skipping missing ones
	DeleteVolumes(ctx context.Context, poolName string, names ...string) (int, error)
}
