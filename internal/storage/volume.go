package storage

import (
	"bytes"
	"context"
	"fmt"

	libvirtxml "libvirt.org/go/libvirtxml"
)

// CreateVolume creates a new volume in the specified pool.
func (m *Manager) CreateVolume(ctx context.Context, poolName string, spec VolumeSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid volume spec: %w", err)
	}

	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	var backing *VolumeInfo
	if spec.BackingVolume != "" {
		backingPool := spec.BackingPool
		if backingPool == "" {
			backingPool = poolName
		}
		backing, err = m.GetVolumeInfo(ctx, backingPool, spec.BackingVolume)
		if err != nil {
			return fmt.Errorf("failed to look up backing volume %s: %w", spec.BackingVolume, err)
		}
	}

	volumeXML, err := generateVolumeXML(spec, backing)
	if err != nil {
		return fmt.Errorf("failed to generate volume XML: %w", err)
	}

	if _, err := m.client.StorageVolCreateXML(pool, volumeXML, 0); err != nil {
		return fmt.Errorf("failed to create volume: %w", err)
	}

	return nil
}

// DeleteVolume deletes a volume from the specified pool.
func (m *Manager) DeleteVolume(_ context.Context, poolName, volumeName string) error {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return fmt.Errorf("volume not found: %w", err)
	}

	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}

	return nil
}

// DeleteVolumes deletes the named volumes from poolName. Volumes that do
// not exist are skipped. Failures on individual volumes do not stop the
// sweep; the first one is returned along with the number of deleted volumes.
func (m *Manager) DeleteVolumes(ctx context.Context, poolName string, names ...string) (int, error) {
	var (
		deleted  int
		firstErr error
	)
	for _, name := range names {
		exists, err := m.VolumeExists(ctx, poolName, name)
		if err == nil && !exists {
			continue
		}
		if err == nil {
			err = m.DeleteVolume(ctx, poolName, name)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete volume %s: %w", name, err)
			}
			continue
		}
		deleted++
	}
	return deleted, firstErr
}

// ListVolumes lists all volumes in the specified pool.
func (m *Manager) ListVolumes(_ context.Context, poolName string) ([]VolumeInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	volumes, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	infos := make([]VolumeInfo, 0, len(volumes))
	for _, vol := range volumes {
		path, err := m.client.StorageVolGetPath(vol)
		if err != nil {
			continue
		}
		_, capacity, allocation, err := m.client.StorageVolGetInfo(vol)
		if err != nil {
			continue
		}
		infos = append(infos, VolumeInfo{
			Name:       vol.Name,
			Path:       path,
			Pool:       poolName,
			Capacity:   capacity,
			Allocation: allocation,
		})
	}

	return infos, nil
}

// GetVolumeInfo returns path and size information for a single volume.
func (m *Manager) GetVolumeInfo(_ context.Context, poolName, volumeName string) (*VolumeInfo, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return nil, fmt.Errorf("volume not found: %w", err)
	}

	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume path: %w", err)
	}

	_, capacity, allocation, err := m.client.StorageVolGetInfo(vol)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume info: %w", err)
	}

	return &VolumeInfo{
		Name:       volumeName,
		Path:       path,
		Pool:       poolName,
		Capacity:   capacity,
		Allocation: allocation,
	}, nil
}

// WriteVolumeData uploads data to a volume (used for cloud-init ISOs).
func (m *Manager) WriteVolumeData(_ context.Context, poolName, volumeName string, data []byte) error {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("pool not found: %w", err)
	}

	vol, err := m.client.StorageVolLookupByName(pool, volumeName)
	if err != nil {
		return fmt.Errorf("volume not found: %w", err)
	}

	if err := m.client.StorageVolUpload(vol, bytes.NewReader(data), 0, uint64(len(data)), 0); err != nil {
		return fmt.Errorf("failed to upload data to volume: %w", err)
	}

	return nil
}

// VolumeExists checks if a volume exists in the specified pool.
func (m *Manager) VolumeExists(_ context.Context, poolName, volumeName string) (bool, error) {
	pool, err := m.client.StoragePoolLookupByName(poolName)
	if err != nil {
		return false, fmt.Errorf("pool not found: %w", err)
	}

	if _, err := m.client.StorageVolLookupByName(pool, volumeName); err != nil {
		return false, nil
	}
	return true, nil
}

// generateVolumeXML renders the volume definition. An overlay with no
// explicit capacity inherits the capacity of its backing volume.
func generateVolumeXML(spec VolumeSpec, backing *VolumeInfo) (string, error) {
	capacity := spec.CapacityBytes
	if backing != nil && capacity < backing.Capacity {
		capacity = backing.Capacity
	}

	vol := &libvirtxml.StorageVolume{
		Type: "file",
		Name: spec.Name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Value: capacity,
			Unit:  "B",
		},
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: string(spec.Format),
			},
		},
	}

	if backing != nil {
		vol.BackingStore = &libvirtxml.StorageVolumeBackingStore{
			Path: backing.Path,
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: string(VolumeFormatQCOW2),
			},
		}
	}

	doc, err := vol.Marshal()
	if err != nil {
		return "", err
	}
	return stripXMLHeader(doc), nil
}
