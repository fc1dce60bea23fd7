package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is an in-memory LibvirtClient keyed by pool and volume name.
type mockLibvirtClient struct {
	pools   map[string]bool                   // pool name -> running
	volumes map[string]map[string]*mockVolume // pool name -> volume name -> volume
	created map[string]string                 // volume name -> XML passed to StorageVolCreateXML

	// failDelete makes StorageVolDelete fail for the named volumes.
	failDelete map[string]bool
}

type mockVolume struct {
	path     string
	capacity uint64
	data     []byte
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:      make(map[string]bool),
		volumes:    make(map[string]map[string]*mockVolume),
		created:    make(map[string]string),
		failDelete: make(map[string]bool),
	}
}

// addPool registers a running pool without going through CreatePool.
func (m *mockLibvirtClient) addPool(name string) {
	m.pools[name] = true
	m.volumes[name] = make(map[string]*mockVolume)
}

// addVolume registers a volume without going through CreateVolume.
func (m *mockLibvirtClient) addVolume(pool, name string, capacity uint64) {
	m.volumes[pool][name] = &mockVolume{
		path:     "/var/lib/libvirt/images/virtup/" + pool + "/" + name,
		capacity: capacity,
	}
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	if _, ok := m.pools[name]; !ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool not found: %s", name)
	}
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockLibvirtClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StoragePool{}, fmt.Errorf("invalid pool XML: missing name")
	}
	if _, ok := m.pools[name]; ok {
		return libvirt.StoragePool{}, fmt.Errorf("storage pool already exists: %s", name)
	}
	m.pools[name] = false
	m.volumes[name] = make(map[string]*mockVolume)
	return libvirt.StoragePool{Name: name}, nil
}

func (m *mockLibvirtClient) StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	m.pools[pool.Name] = true
	return nil
}

func (m *mockLibvirtClient) StoragePoolBuild(pool libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error {
	if _, ok := m.pools[pool.Name]; !ok {
		return fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	return nil
}

func (m *mockLibvirtClient) StoragePoolUndefine(pool libvirt.StoragePool) error {
	delete(m.pools, pool.Name)
	delete(m.volumes, pool.Name)
	return nil
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return nil, 0, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	result := make([]libvirt.StorageVol, 0, len(vols))
	for name := range vols {
		result = append(result, libvirt.StorageVol{Pool: pool.Name, Name: name})
	}
	return result, uint32(len(result)), nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	if _, ok := vols[name]; !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume not found: %s", name)
	}
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	vols, ok := m.volumes[pool.Name]
	if !ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage pool not found: %s", pool.Name)
	}
	name := extractTagValue(xml, "name")
	if name == "" {
		return libvirt.StorageVol{}, fmt.Errorf("invalid volume XML: missing name")
	}
	if _, ok := vols[name]; ok {
		return libvirt.StorageVol{}, fmt.Errorf("storage volume already exists: %s", name)
	}
	m.addVolume(pool.Name, name, 0)
	m.created[name] = xml
	return libvirt.StorageVol{Pool: pool.Name, Name: name}, nil
}

func (m *mockLibvirtClient) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	if m.failDelete[vol.Name] {
		return fmt.Errorf("permission denied: %s", vol.Name)
	}
	vols, ok := m.volumes[vol.Pool]
	if !ok {
		return fmt.Errorf("storage pool not found: %s", vol.Pool)
	}
	if _, ok := vols[vol.Name]; !ok {
		return fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	delete(vols, vol.Name)
	return nil
}

func (m *mockLibvirtClient) lookup(vol libvirt.StorageVol) (*mockVolume, error) {
	vols, ok := m.volumes[vol.Pool]
	if !ok {
		return nil, fmt.Errorf("storage pool not found: %s", vol.Pool)
	}
	v, ok := vols[vol.Name]
	if !ok {
		return nil, fmt.Errorf("storage volume not found: %s", vol.Name)
	}
	return v, nil
}

func (m *mockLibvirtClient) StorageVolGetPath(vol libvirt.StorageVol) (string, error) {
	v, err := m.lookup(vol)
	if err != nil {
		return "", err
	}
	return v.path, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(vol libvirt.StorageVol) (int8, uint64, uint64, error) {
	v, err := m.lookup(vol)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, v.capacity, uint64(len(v.data)), nil
}

func (m *mockLibvirtClient) StorageVolUpload(vol libvirt.StorageVol, reader io.Reader, offset uint64, length uint64, flags libvirt.StorageVolUploadFlags) error {
	v, err := m.lookup(vol)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	v.data = data
	return nil
}

// extractTagValue returns the text of the first <tag>...</tag> in xml.
func extractTagValue(xml, tag string) string {
	start := strings.Index(xml, "<"+tag+">")
	if start == -1 {
		return ""
	}
	start += len(tag) + 2
	end := strings.Index(xml[start:], "</"+tag+">")
	if end == -1 {
		return ""
	}
	return xml[start : start+end]
}
