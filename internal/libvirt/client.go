package libvirt

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultURI is used when neither a URI nor LIBVIRT_DEFAULT_URI is given.
	DefaultURI = "qemu:///system"

	defaultSystemSocket = "/var/run/libvirt/libvirt-sock"
	defaultTCPPort      = "16509"
	defaultTimeout      = 5 * time.Second
)

// Client wraps a go-libvirt connection.
type Client struct {
	libvirt *libvirt.Libvirt
	uri     string
}

// Endpoint is where a connection URI points: a local socket or a remote
// libvirtd, and the driver URI to open once connected.
type Endpoint struct {
	Socket    string // set for local connections
	Host      string // set for remote connections
	Port      string
	DriverURI string // e.g. qemu:///system
}

// ParseURI resolves a libvirt connection URI. Supported transports are the
// local unix socket (qemu://, qemu+unix://) and plain TCP (qemu+tcp://).
func ParseURI(uri string) (*Endpoint, error) {
	if uri == "" {
		uri = DefaultURI
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid libvirt URI %q: %w", uri, err)
	}

	driver, transport, _ := strings.Cut(u.Scheme, "+")
	if driver != "qemu" {
		return nil, fmt.Errorf("unsupported libvirt driver %q in %s", driver, uri)
	}
	if u.Path != "/system" && u.Path != "/session" {
		return nil, fmt.Errorf("libvirt URI %s must end in /system or /session", uri)
	}

	ep := &Endpoint{DriverURI: "qemu://" + u.Path}

	switch transport {
	case "", "unix":
		if u.Host != "" && transport == "" {
			return nil, fmt.Errorf("remote libvirt URI %s needs an explicit +tcp transport", uri)
		}
		ep.Socket = u.Query().Get("socket")
		if ep.Socket == "" {
			ep.Socket = localSocket(u.Path)
		}
	case "tcp":
		if u.Hostname() == "" {
			return nil, fmt.Errorf("libvirt URI %s has no host", uri)
		}
		ep.Host = u.Hostname()
		ep.Port = u.Port()
		if ep.Port == "" {
			ep.Port = defaultTCPPort
		}
	default:
		return nil, fmt.Errorf("unsupported libvirt transport %q in %s", transport, uri)
	}

	return ep, nil
}

func localSocket(path string) string {
	if path == "/system" {
		return defaultSystemSocket
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join("/run/user", fmt.Sprint(os.Getuid()))
	}
	return filepath.Join(runtimeDir, "libvirt", "libvirt-sock")
}

func (ep *Endpoint) dialer(timeout time.Duration) socket.Dialer {
	if ep.Socket != "" {
		return dialers.NewLocal(
			dialers.WithSocket(ep.Socket),
			dialers.WithLocalTimeout(timeout),
		)
	}
	return dialers.NewRemote(
		ep.Host,
		dialers.UsePort(ep.Port),
		dialers.WithRemoteTimeout(timeout),
	)
}

// Connect opens the libvirt connection named by uri.
// If timeout is zero, defaults to 5 seconds.
func Connect(uri string, timeout time.Duration) (*Client, error) {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ep, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	l := libvirt.NewWithDialer(ep.dialer(timeout))
	if err := l.ConnectToURI(libvirt.ConnectURI(ep.DriverURI)); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", uri, err)
	}

	return &Client{libvirt: l, uri: ep.DriverURI}, nil
}

// ConnectURI is Connect with context support for cancellation.
func ConnectURI(ctx context.Context, uri string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := Connect(uri, timeout)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}
	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// URI returns the driver URI the connection was opened with.
func (c *Client) URI() string {
	return c.uri
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}
	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}
	return nil
}

// FormatVersion renders a libvirt version number (e.g. 8006000) as 8.6.0.
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v%1000000)/1000, v%1000)
}
