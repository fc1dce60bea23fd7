package module

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

const (
	// RequiredGroup is the group that grants access to the system libvirt socket.
	RequiredGroup = "libvirt"

	// MinEngineMajor is the oldest engine major version the module supports.
	MinEngineMajor = 2
)

// ErrEngineTooOld is returned when the engine's major version is below MinEngineMajor.
var ErrEngineTooOld = errors.New("engine version too old")

// Group is a group the current process belongs to.
type Group struct {
	GID  int
	Name string
}

// processGroups returns the supplementary groups of the current process.
func processGroups() ([]Group, error) {
	gids, err := os.Getgroups()
	if err != nil {
		return nil, fmt.Errorf("failed to get process groups: %w", err)
	}

	groups := make([]Group, 0, len(gids))
	for _, gid := range gids {
		g := Group{GID: gid, Name: strconv.Itoa(gid)}
		if grp, err := user.LookupGroupId(strconv.Itoa(gid)); err == nil {
			g.Name = grp.Name
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// checkVersion fails unless version is a semantic version with a major
// version of at least MinEngineMajor.
func checkVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid engine version %q: %w", version, err)
	}
	if v.Major() < MinEngineMajor {
		return fmt.Errorf("%w: %s (need %d.0.0 or later)", ErrEngineTooOld, v, MinEngineMajor)
	}
	return nil
}

// Preflight checks the environment before acting. An engine that is too
// old is fatal; a missing LIBVIRT_DEFAULT_URI or a missing libvirt group
// membership are only logged.
func (m *Module) Preflight() error {
	if err := checkVersion(m.Version); err != nil {
		return err
	}

	if uri := m.Getenv("LIBVIRT_DEFAULT_URI"); uri != "" {
		m.Log.Debugf("LIBVIRT_DEFAULT_URI=%s", uri)
	} else {
		m.Log.Warn("LIBVIRT_DEFAULT_URI is not set")
	}

	groups, err := m.Groups()
	if err != nil {
		m.Log.Warnf("could not determine group membership: %v", err)
		return nil
	}

	member := false
	for _, g := range groups {
		m.Log.Debugf("group: %d(%s)", g.GID, g.Name)
		if g.Name == RequiredGroup {
			member = true
		}
	}
	if !member {
		m.Log.Warnf("user is not a member of the %s group", RequiredGroup)
	}
	return nil
}
