// Package libvirt wraps github.com/digitalocean/go-libvirt for virtup.
//
// It provides:
//   - Connection management from a libvirt connection URI (the value of
//     LIBVIRT_DEFAULT_URI), over the local unix socket or libvirtd's TCP
//     transport
//   - Domain XML generation for templates and instances
//
// Consumers (internal/virtup, internal/storage) define their own narrow
// interfaces over *libvirt.Libvirt; this package does not.
//
//	client, err := libvirt.ConnectURI(ctx, os.Getenv("LIBVIRT_DEFAULT_URI"), 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package libvirt
