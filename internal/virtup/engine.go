package virtup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/sirupsen/logrus"

	vlibvirt "github.com/jbweber/molecule-virtup/internal/libvirt"
	"github.com/jbweber/molecule-virtup/internal/storage"
)

// Version is the engine version reported to the provisioning module.
const Version = "2.1.0"

const (
	// Domain states (from libvirt VIR_DOMAIN_* constants)
	domainStateRunning = 1

	defaultUsername     = "virtup"
	defaultMemoryMiB    = 1024
	defaultVCPUs        = 1
	defaultTimeout      = 5 * time.Minute
	defaultPollInterval = 2 * time.Second
	dialTimeout         = 3 * time.Second
)

var (
	// ErrNotFound is returned when a named domain does not exist.
	ErrNotFound = errors.New("domain not found")

	// ErrNoAddress is returned when a domain has no IPv4 lease yet.
	ErrNoAddress = errors.New("no IPv4 address")
)

// Options configure an Engine. Zero values take the defaults.
type Options struct {
	// KeyDir holds one key pair per template. Defaults to
	// ~/.local/share/virtup/keys.
	KeyDir string
	// Username is the login user created on instances.
	Username  string
	MemoryMiB uint
	VCPUs     uint
	// Network is the libvirt network instances attach to.
	Network string
	// Timeout bounds WaitForPort.
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyDir == "" {
		o.KeyDir = defaultKeyDir()
	}
	if o.Username == "" {
		o.Username = defaultUsername
	}
	if o.MemoryMiB == 0 {
		o.MemoryMiB = defaultMemoryMiB
	}
	if o.VCPUs == 0 {
		o.VCPUs = defaultVCPUs
	}
	if o.Network == "" {
		o.Network = vlibvirt.DefaultNetwork
	}
	if o.Timeout == 0 {
		o.Timeout = defaultTimeout
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

func defaultKeyDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "virtup", "keys")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "virtup", "keys")
	}
	return filepath.Join(home, ".local", "share", "virtup", "keys")
}

// Engine manages virtup templates and instances on one libvirt connection.
type Engine struct {
	lv   libvirtClient
	sm   storageManager
	opts Options
	log  logrus.FieldLogger

	client *vlibvirt.Client
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
	now    func() time.Time
}

// New creates an engine on top of an existing connection.
func New(lv libvirtClient, sm storageManager, opts Options, log logrus.FieldLogger) *Engine {
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &Engine{
		lv:   lv,
		sm:   sm,
		opts: opts.withDefaults(),
		log:  log,
		dial: dialer.DialContext,
		now:  time.Now,
	}
}

// Connect opens the libvirt connection named by uri (LIBVIRT_DEFAULT_URI
// when empty), makes sure the virtup storage pools exist, and returns an
// engine using it. The caller must Close the engine.
func Connect(ctx context.Context, uri string, opts Options, log logrus.FieldLogger) (*Engine, error) {
	if uri == "" {
		uri = os.Getenv("LIBVIRT_DEFAULT_URI")
	}

	log.WithField("uri", uri).Debug("connecting to libvirt")
	client, err := vlibvirt.ConnectURI(ctx, uri, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt: %w", err)
	}

	sm := storage.NewManager(client.Libvirt())
	if err := sm.EnsureDefaultPools(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ensure default pools: %w", err)
	}

	e := New(client.Libvirt(), sm, opts, log)
	e.client = client
	return e, nil
}

// Close releases the libvirt connection opened by Connect.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Version returns the engine version.
func (e *Engine) Version() string {
	return Version
}

// LibvirtVersion returns the version of the libvirt daemon.
func (e *Engine) LibvirtVersion() (string, error) {
	v, err := e.lv.ConnectGetLibVersion()
	if err != nil {
		return "", fmt.Errorf("failed to get libvirt version: %w", err)
	}
	return vlibvirt.FormatVersion(v), nil
}

// lookup finds a domain, mapping libvirt's "no domain" error to ErrNotFound.
func (e *Engine) lookup(name string) (libvirt.Domain, error) {
	dom, err := e.lv.DomainLookupByName(name)
	if err != nil {
		if libvirt.IsNotFound(err) {
			return libvirt.Domain{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return libvirt.Domain{}, fmt.Errorf("failed to look up domain %s: %w", name, err)
	}
	return dom, nil
}

// Exists reports whether a domain named name is defined.
func (e *Engine) Exists(_ context.Context, name string) (bool, error) {
	_, err := e.lookup(name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Meta returns the stored meta of a template or instance.
func (e *Engine) Meta(_ context.Context, name string) (*Meta, error) {
	dom, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	return loadMeta(e.lv, dom)
}

// Address returns the first IPv4 address leased to the domain.
func (e *Engine) Address(_ context.Context, name string) (string, error) {
	dom, err := e.lookup(name)
	if err != nil {
		return "", err
	}

	ifaces, err := e.lv.DomainInterfaceAddresses(dom, uint32(libvirt.DomainInterfaceAddressesSrcLease), 0)
	if err != nil {
		return "", fmt.Errorf("failed to get interface addresses of %s: %w", name, err)
	}
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Type == int32(libvirt.IPAddrTypeIpv4) {
				return addr.Addr, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNoAddress)
}
