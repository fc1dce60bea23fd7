// Package storage manages the libvirt storage pools and volumes used by
// virtup.
//
// Two directory pools are used:
//   - virtup-images: base OS images, one per template ({template}.qcow2)
//   - virtup-instances: per-domain volumes (boot disks, cloud-init ISOs)
//
// Template boot disks are qcow2 overlays on a base image and instance boot
// disks are qcow2 overlays on their template's boot disk, so a backing
// volume may live in a different pool than the volume being created.
//
// The package defines its own consumer-side LibvirtClient interface, which
// *libvirt.Libvirt satisfies.
package storage
