// Package module implements virt_up, the Ansible module Molecule runs to
// bring instances up and tear them down.
//
// The module translates its parameters into calls on an Engine, relays the
// instance's SSH credentials back to Molecule, and reports whether anything
// changed. Run is idempotent per instance name: the engine's existence
// check is the only gate.
package module
