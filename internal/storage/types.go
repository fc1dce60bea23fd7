package storage

import "fmt"

// PoolType represents the type of storage pool backend.
type PoolType string

// PoolTypeDir is a directory-backed pool, the only type virtup creates.
const PoolTypeDir PoolType = "dir"

// VolumeType represents the purpose of a storage volume.
type VolumeType string

const (
	VolumeTypeBoot      VolumeType = "boot"       // Domain boot disk
	VolumeTypeCloudInit VolumeType = "cloudinit"  // Cloud-init seed ISO
	VolumeTypeBaseImage VolumeType = "base-image" // Template base image
)

// VolumeFormat represents the disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2"
	VolumeFormatRaw   VolumeFormat = "raw"
)

// VolumeSpec specifies how to create a storage volume.
type VolumeSpec struct {
	Name   string
	Type   VolumeType
	Format VolumeFormat

	// CapacityBytes is the virtual size of the volume. Zero is only valid
	// for cloud-init ISOs and for overlays, which inherit the size of their
	// backing volume.
	CapacityBytes uint64

	// BackingVolume names an optional qcow2 backing volume.
	BackingVolume string
	// BackingPool is the pool holding BackingVolume. Defaults to the pool
	// the volume is created in.
	BackingPool string
}

// Validate checks if the volume spec is valid.
func (v *VolumeSpec) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	if v.Type == "" {
		return fmt.Errorf("volume type is required")
	}
	switch v.Format {
	case VolumeFormatQCOW2, VolumeFormatRaw:
	case "":
		return fmt.Errorf("volume format is required")
	default:
		return fmt.Errorf("invalid volume format: %s (must be qcow2 or raw)", v.Format)
	}
	if v.CapacityBytes == 0 && v.BackingVolume == "" && v.Type != VolumeTypeCloudInit {
		return fmt.Errorf("volume capacity must be greater than 0")
	}
	if v.BackingVolume != "" && v.Format != VolumeFormatQCOW2 {
		return fmt.Errorf("backing volumes are only supported for qcow2 format")
	}
	return nil
}

// VolumeInfo contains information about a storage volume.
type VolumeInfo struct {
	Name       string
	Path       string
	Pool       string
	Capacity   uint64 // bytes
	Allocation uint64 // bytes
}

// CapacityGB returns the volume capacity in GiB.
func (v *VolumeInfo) CapacityGB() float64 {
	return float64(v.Capacity) / (1024 * 1024 * 1024)
}

// AllocationGB returns the volume allocation in GiB.
func (v *VolumeInfo) AllocationGB() float64 {
	return float64(v.Allocation) / (1024 * 1024 * 1024)
}

// Default pool configuration.
const (
	DefaultImagesPool    = "virtup-images"
	DefaultInstancesPool = "virtup-instances"
	DefaultImagesPath    = "/var/lib/libvirt/images/virtup/images"
	DefaultInstancesPath = "/var/lib/libvirt/images/virtup/instances"
)
