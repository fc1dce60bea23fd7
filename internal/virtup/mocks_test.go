package virtup

import (
	"context"
	"fmt"
	"io"
	"net"
	"sort"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/sirupsen/logrus"
	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/molecule-virtup/internal/storage"
)

// mockDomain is one domain held by mockLibvirtClient.
type mockDomain struct {
	xml   string
	state int32
	meta  string
	addrs []libvirt.DomainIPAddr
}

// mockLibvirtClient is an in-memory libvirtClient keyed by domain name.
type mockLibvirtClient struct {
	mu sync.Mutex

	domains map[string]*mockDomain

	// Configurable failures
	defineErr    error
	setMetaErr   error
	createErr    error
	addressesErr error

	// Call tracking
	defineCalls   []string
	createCalls   []string
	destroyCalls  []string
	undefineCalls []string
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{domains: make(map[string]*mockDomain)}
}

// addDomain registers a domain without going through DomainDefineXML.
func (m *mockLibvirtClient) addDomain(name string, state int32, meta *Meta) {
	d := &mockDomain{state: state}
	if meta != nil {
		doc, err := encodeMeta(meta)
		if err != nil {
			panic(err)
		}
		d.meta = doc
	}
	m.domains[name] = d
}

// lease gives a domain an IPv4 DHCP lease.
func (m *mockLibvirtClient) lease(name, addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[name].addrs = append(m.domains[name].addrs, libvirt.DomainIPAddr{
		Type:   int32(libvirt.IPAddrTypeIpv4),
		Addr:   addr,
		Prefix: 24,
	})
}

func (m *mockLibvirtClient) get(dom libvirt.Domain) (*mockDomain, error) {
	d, ok := m.domains[dom.Name]
	if !ok {
		return nil, notFound(dom.Name)
	}
	return d, nil
}

func notFound(name string) error {
	return libvirt.Error{
		Code:    uint32(libvirt.ErrNoDomain),
		Message: fmt.Sprintf("Domain not found: no domain with matching name '%s'", name),
	}
}

func (m *mockLibvirtClient) ConnectGetLibVersion() (uint64, error) {
	return 8006000, nil
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.domains))
	for name := range m.domains {
		names = append(names, name)
	}
	sort.Strings(names)

	doms := make([]libvirt.Domain, 0, len(names))
	for _, name := range names {
		doms = append(doms, libvirt.Domain{Name: name})
	}
	return doms, uint32(len(doms)), nil
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.domains[name]; !ok {
		return libvirt.Domain{}, notFound(name)
	}
	return libvirt.Domain{Name: name}, nil
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defineCalls = append(m.defineCalls, xml)
	if m.defineErr != nil {
		return libvirt.Domain{}, m.defineErr
	}

	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return libvirt.Domain{}, fmt.Errorf("invalid domain XML: %w", err)
	}
	m.domains[dom.Name] = &mockDomain{xml: xml, state: 5}
	return libvirt.Domain{Name: dom.Name}, nil
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, dom.Name)
	if m.createErr != nil {
		return m.createErr
	}
	d, err := m.get(dom)
	if err != nil {
		return err
	}
	d.state = domainStateRunning
	return nil
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.get(dom)
	if err != nil {
		return 0, 0, err
	}
	return d.state, 0, nil
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyCalls = append(m.destroyCalls, dom.Name)
	d, err := m.get(dom)
	if err != nil {
		return err
	}
	d.state = 5
	return nil
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undefineCalls = append(m.undefineCalls, dom.Name)
	if _, err := m.get(dom); err != nil {
		return err
	}
	delete(m.domains, dom.Name)
	return nil
}

func (m *mockLibvirtClient) DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addressesErr != nil {
		return nil, m.addressesErr
	}
	d, err := m.get(dom)
	if err != nil {
		return nil, err
	}
	if len(d.addrs) == 0 {
		return nil, nil
	}
	return []libvirt.DomainInterface{{Name: "vnet0", Addrs: d.addrs}}, nil
}

func (m *mockLibvirtClient) DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setMetaErr != nil {
		return m.setMetaErr
	}
	d, err := m.get(dom)
	if err != nil {
		return err
	}
	d.meta = metadata[0]
	return nil
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := m.get(dom)
	if err != nil {
		return "", err
	}
	if d.meta == "" {
		return "", fmt.Errorf("metadata not found: requested metadata element is not present")
	}
	return d.meta, nil
}

// mockStorageManager is an in-memory storageManager.
type mockStorageManager struct {
	mu sync.Mutex

	images  map[string]bool
	volumes map[string]map[string]storage.VolumeSpec // pool -> name -> spec
	data    map[string][]byte                        // volume name -> uploaded data

	createErr error
}

func newMockStorageManager() *mockStorageManager {
	return &mockStorageManager{
		images:  make(map[string]bool),
		volumes: map[string]map[string]storage.VolumeSpec{storage.DefaultInstancesPool: {}},
		data:    make(map[string][]byte),
	}
}

func (s *mockStorageManager) ImageExists(_ context.Context, imageName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images[imageName], nil
}

func (s *mockStorageManager) VolumeExists(_ context.Context, poolName, volumeName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.volumes[poolName][volumeName]
	return ok, nil
}

func (s *mockStorageManager) CreateVolume(_ context.Context, poolName string, spec storage.VolumeSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, ok := s.volumes[poolName][spec.Name]; ok {
		return fmt.Errorf("volume %s already exists", spec.Name)
	}
	s.volumes[poolName][spec.Name] = spec
	return nil
}

func (s *mockStorageManager) WriteVolumeData(_ context.Context, poolName, volumeName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.volumes[poolName][volumeName]; !ok {
		return fmt.Errorf("volume not found: %s", volumeName)
	}
	s.data[volumeName] = data
	return nil
}

func (s *mockStorageManager) DeleteVolumes(_ context.Context, poolName string, names ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, name := range names {
		if _, ok := s.volumes[poolName][name]; ok {
			delete(s.volumes[poolName], name)
			deleted++
		}
	}
	return deleted, nil
}

// testLogger discards log output.
func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestEngine returns an engine over fresh mocks with keys under t's temp dir.
func newTestEngine(keyDir string) (*Engine, *mockLibvirtClient, *mockStorageManager) {
	lv := newMockLibvirtClient()
	sm := newMockStorageManager()
	e := New(lv, sm, Options{KeyDir: keyDir, PollInterval: 1}, testLogger())
	return e, lv, sm
}

// fakeConn is returned by dialers that succeed.
type fakeConn struct{ net.Conn }

func (fakeConn) Close() error { return nil }
