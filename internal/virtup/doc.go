// Package virtup is the libvirt engine behind the virt_up module.
//
// It builds template domains from base images, clones instances from
// templates, starts them and waits for SSH, and deletes them again.
//
// Templates are domains named TEMPLATE-<template>. They are defined but
// never started; their boot volume is a qcow2 overlay on the base image
// <template>.qcow2 in the virtup-images pool, and every instance cloned from
// a template gets its own overlay on the template's boot volume plus a
// NoCloud seed ISO carrying the template's SSH key.
//
// Each domain carries its Meta as YAML in the domain's custom metadata
// element, so an instance can be looked up by name without any state on
// disk beyond the template key files.
//
// All operations take dependencies via interfaces (libvirtClient and
// storageManager) so they can be tested without a hypervisor.
package virtup
