package storage

import (
	"context"
	"fmt"
	"strings"

	libvirtxml "libvirt.org/go/libvirtxml"
)

// EnsurePool ensures a directory pool exists, creating it if necessary.
// If the pool already exists, this is a no-op.
func (m *Manager) EnsurePool(ctx context.Context, name, path string) error {
	if _, err := m.client.StoragePoolLookupByName(name); err == nil {
		return nil
	}
	return m.CreatePool(ctx, name, path)
}

// CreatePool defines, builds, starts and autostarts a directory pool.
func (m *Manager) CreatePool(_ context.Context, name, path string) error {
	poolXML, err := generateDirPoolXML(name, path)
	if err != nil {
		return fmt.Errorf("failed to generate pool XML: %w", err)
	}

	pool, err := m.client.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return fmt.Errorf("failed to define pool: %w", err)
	}

	if err := m.client.StoragePoolBuild(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to build pool: %w", err)
	}

	if err := m.client.StoragePoolCreate(pool, 0); err != nil {
		_ = m.client.StoragePoolUndefine(pool)
		return fmt.Errorf("failed to start pool: %w", err)
	}

	if err := m.client.StoragePoolSetAutostart(pool, 1); err != nil {
		return fmt.Errorf("pool created but failed to set autostart: %w", err)
	}

	return nil
}

func generateDirPoolXML(name, path string) (string, error) {
	pool := &libvirtxml.StoragePool{
		Type: string(PoolTypeDir),
		Name: name,
		Target: &libvirtxml.StoragePoolTarget{
			Path: path,
			Permissions: &libvirtxml.StoragePoolTargetPermissions{
				Mode: "0755",
			},
		},
	}

	doc, err := pool.Marshal()
	if err != nil {
		return "", err
	}
	return stripXMLHeader(doc), nil
}

func stripXMLHeader(doc string) string {
	doc = strings.TrimPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`)
	return strings.TrimSpace(doc)
}
