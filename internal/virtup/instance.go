package virtup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/jbweber/molecule-virtup/internal/cloudinit"
	vlibvirt "github.com/jbweber/molecule-virtup/internal/libvirt"
	"github.com/jbweber/molecule-virtup/internal/naming"
	"github.com/jbweber/molecule-virtup/internal/storage"
)

// BuildOptions tune a template build. Zero values take the engine defaults.
type BuildOptions struct {
	// Size is the boot disk size, e.g. "10G". Empty keeps the image size.
	Size      string
	MemoryMiB uint
	VCPUs     uint
}

// CloneOptions override the template's resources for one instance.
type CloneOptions struct {
	MemoryMiB uint
	VCPUs     uint
}

// Build creates the template domain TEMPLATE-<template> if it does not
// exist yet.
//
// This orchestrates the template build:
//  1. Check the base image <template>.qcow2 is in the images pool
//  2. Generate (or reuse) the template key pair
//  3. Create the boot overlay in the instances pool
//  4. Define the domain (not started) and store its meta
func (e *Engine) Build(ctx context.Context, template string, opts BuildOptions) error {
	if err := naming.ValidateName(template); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	name := naming.TemplateDomain(template)
	log := e.log.WithField("template", template)

	exists, err := e.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		log.Debugf("template domain %s already exists", name)
		return nil
	}

	size, err := ParseSize(opts.Size)
	if err != nil {
		return err
	}

	image := naming.BaseImage(template)
	ok, err := e.sm.ImageExists(ctx, image)
	if err != nil {
		return fmt.Errorf("failed to check base image: %w", err)
	}
	if !ok {
		return fmt.Errorf("base image %s not found in pool %s", image, storage.DefaultImagesPool)
	}

	keyPath := naming.KeyPath(e.opts.KeyDir, template)
	authorizedKey, err := ensureKeyPair(keyPath, e.opts.Username+"@"+name)
	if err != nil {
		return fmt.Errorf("failed to prepare ssh key: %w", err)
	}

	meta := &Meta{
		Name:     name,
		Template: template,
		User: User{
			Username:      e.opts.Username,
			SSHIdentity:   keyPath,
			AuthorizedKey: authorizedKey,
		},
		MemoryMiB: orDefault(opts.MemoryMiB, e.opts.MemoryMiB),
		VCPUs:     orDefault(opts.VCPUs, e.opts.VCPUs),
		SizeBytes: size,
		Created:   e.now().UTC(),
	}

	log.Infof("building template %s from %s", name, image)
	bootVolume := naming.VolumeNameBoot(name)
	err = e.sm.CreateVolume(ctx, storage.DefaultInstancesPool, storage.VolumeSpec{
		Name:          bootVolume,
		Type:          storage.VolumeTypeBoot,
		Format:        storage.VolumeFormatQCOW2,
		CapacityBytes: size,
		BackingVolume: image,
		BackingPool:   storage.DefaultImagesPool,
	})
	if err != nil {
		return fmt.Errorf("failed to create boot volume: %w", err)
	}

	if err := e.define(ctx, meta, ""); err != nil {
		e.cleanupVolumes(ctx, name, bootVolume)
		return err
	}

	log.Infof("template %s built", name)
	return nil
}

// Clone creates the instance name from the template domain of template.
func (e *Engine) Clone(ctx context.Context, template, name string, opts CloneOptions) error {
	if err := naming.ValidateName(name); err != nil {
		return fmt.Errorf("invalid instance name: %w", err)
	}
	if naming.IsTemplateDomain(name) {
		return fmt.Errorf("instance name %q uses the reserved prefix %s", name, naming.TemplatePrefix)
	}
	log := e.log.WithField("instance", name)

	tname := naming.TemplateDomain(template)
	tmeta, err := e.Meta(ctx, tname)
	if err != nil {
		return fmt.Errorf("failed to load template %s: %w", tname, err)
	}

	exists, err := e.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("instance %s already exists", name)
	}

	meta := &Meta{
		Name:      name,
		Template:  tmeta.Template,
		User:      tmeta.User,
		MemoryMiB: orDefault(opts.MemoryMiB, tmeta.MemoryMiB),
		VCPUs:     orDefault(opts.VCPUs, tmeta.VCPUs),
		SizeBytes: tmeta.SizeBytes,
		Created:   e.now().UTC(),
	}

	log.Infof("cloning instance %s from %s", name, tname)
	bootVolume := naming.VolumeNameBoot(name)
	seedVolume := naming.VolumeNameCloudInit(name)

	err = e.sm.CreateVolume(ctx, storage.DefaultInstancesPool, storage.VolumeSpec{
		Name:          bootVolume,
		Type:          storage.VolumeTypeBoot,
		Format:        storage.VolumeFormatQCOW2,
		BackingVolume: naming.VolumeNameBoot(tname),
	})
	if err != nil {
		return fmt.Errorf("failed to create boot volume: %w", err)
	}

	if err := e.writeSeed(ctx, meta, seedVolume); err != nil {
		e.cleanupVolumes(ctx, name, bootVolume, seedVolume)
		return err
	}

	if err := e.define(ctx, meta, seedVolume); err != nil {
		e.cleanupVolumes(ctx, name, bootVolume, seedVolume)
		return err
	}

	log.Infof("instance %s defined", name)
	return nil
}

// writeSeed renders the NoCloud ISO for meta and uploads it.
func (e *Engine) writeSeed(ctx context.Context, meta *Meta, volume string) error {
	iso, err := cloudinit.GenerateISO(&cloudinit.Seed{
		InstanceID:    uuid.NewString(),
		Hostname:      meta.Name,
		Username:      meta.User.Username,
		AuthorizedKey: meta.User.AuthorizedKey,
	})
	if err != nil {
		return fmt.Errorf("failed to generate cloud-init ISO: %w", err)
	}

	err = e.sm.CreateVolume(ctx, storage.DefaultInstancesPool, storage.VolumeSpec{
		Name:          volume,
		Type:          storage.VolumeTypeCloudInit,
		Format:        storage.VolumeFormatRaw,
		CapacityBytes: uint64(len(iso)),
	})
	if err != nil {
		return fmt.Errorf("failed to create cloud-init volume: %w", err)
	}

	if err := e.sm.WriteVolumeData(ctx, storage.DefaultInstancesPool, volume, iso); err != nil {
		return fmt.Errorf("failed to upload cloud-init ISO: %w", err)
	}
	return nil
}

// define defines the domain described by meta and stores meta on it.
func (e *Engine) define(_ context.Context, meta *Meta, seedVolume string) error {
	xml, err := vlibvirt.GenerateDomainXML(vlibvirt.DomainSpec{
		Name:            meta.Name,
		MemoryMiB:       meta.MemoryMiB,
		VCPUs:           meta.VCPUs,
		Pool:            storage.DefaultInstancesPool,
		BootVolume:      naming.VolumeNameBoot(meta.Name),
		CloudInitVolume: seedVolume,
		Network:         e.opts.Network,
	})
	if err != nil {
		return fmt.Errorf("failed to generate domain XML: %w", err)
	}

	dom, err := e.lv.DomainDefineXML(xml)
	if err != nil {
		return fmt.Errorf("failed to define domain %s: %w", meta.Name, err)
	}

	if err := storeMeta(e.lv, dom, meta); err != nil {
		if uerr := e.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); uerr != nil {
			e.log.Warnf("failed to undefine domain %s: %v", meta.Name, uerr)
		}
		return err
	}
	return nil
}

func (e *Engine) cleanupVolumes(ctx context.Context, name string, volumes ...string) {
	if _, err := e.sm.DeleteVolumes(ctx, storage.DefaultInstancesPool, volumes...); err != nil {
		e.log.Warnf("failed to clean up volumes of %s: %v", name, err)
	}
}

// Start starts the domain unless it is already running.
func (e *Engine) Start(_ context.Context, name string) error {
	dom, err := e.lookup(name)
	if err != nil {
		return err
	}

	state, _, err := e.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get state of %s: %w", name, err)
	}
	if state == domainStateRunning {
		e.log.Debugf("instance %s is already running", name)
		return nil
	}

	e.log.Infof("starting instance %s", name)
	if err := e.lv.DomainCreate(dom); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return nil
}

// WaitForPort waits until the domain has a leased IPv4 address and port
// accepts TCP connections, bounded by the engine timeout.
func (e *Engine) WaitForPort(ctx context.Context, name string, port int) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	e.log.Infof("waiting up to %v for %s port %d", e.opts.Timeout, name, port)

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	for {
		ready, err := e.portReady(ctx, name, port)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %s port %d: %w", name, port, ctx.Err())
		case <-ticker.C:
		}
	}
}

// portReady makes one readiness attempt. Only lookup failures are fatal.
func (e *Engine) portReady(ctx context.Context, name string, port int) (bool, error) {
	addr, err := e.Address(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err != nil {
		e.log.Debugf("no address for %s yet: %v", name, err)
		return false, nil
	}

	conn, err := e.dial(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		e.log.Debugf("%s:%d not reachable yet: %v", addr, port, err)
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

// Delete force-stops the domain if it is running, undefines it and deletes
// its volumes. Volume cleanup is best-effort.
func (e *Engine) Delete(ctx context.Context, name string) error {
	dom, err := e.lookup(name)
	if err != nil {
		return err
	}

	state, _, err := e.lv.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("failed to get state of %s: %w", name, err)
	}
	if state == domainStateRunning {
		e.log.Infof("stopping instance %s", name)
		if err := e.lv.DomainDestroy(dom); err != nil {
			return fmt.Errorf("failed to stop %s: %w", name, err)
		}
	}

	if err := e.lv.DomainUndefineFlags(dom, libvirt.DomainUndefineNvram); err != nil {
		return fmt.Errorf("failed to undefine domain %s: %w", name, err)
	}

	deleted, err := e.sm.DeleteVolumes(ctx, storage.DefaultInstancesPool,
		naming.VolumeNameBoot(name), naming.VolumeNameCloudInit(name))
	if err != nil {
		e.log.Warnf("failed to delete volumes of %s: %v", name, err)
	}

	e.log.Infof("domain %s deleted (%d volumes removed)", name, deleted)
	return nil
}

func orDefault(v, def uint) uint {
	if v == 0 {
		return def
	}
	return v
}
