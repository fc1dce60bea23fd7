package virtup

import (
	"context"
	"fmt"

	"github.com/jbweber/molecule-virtup/internal/naming"
)

// InstanceInfo describes one virtup domain.
type InstanceInfo struct {
	Meta
	State      string
	Address    string
	IsTemplate bool
}

// List returns every domain that carries virtup meta, templates included.
// Other domains on the connection are skipped.
func (e *Engine) List(ctx context.Context) ([]InstanceInfo, error) {
	// NeedResults: 1 means populate the domains slice
	// Flags: 0 means all domains (active and inactive)
	domains, _, err := e.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	infos := make([]InstanceInfo, 0, len(domains))
	for _, dom := range domains {
		meta, err := loadMeta(e.lv, dom)
		if err != nil {
			e.log.Debugf("skipping domain %s: %v", dom.Name, err)
			continue
		}

		info := InstanceInfo{
			Meta:       *meta,
			State:      "unknown",
			IsTemplate: naming.IsTemplateDomain(dom.Name),
		}
		if state, _, err := e.lv.DomainGetState(dom, 0); err == nil {
			info.State = stateToString(state)
		} else {
			e.log.Warnf("failed to get state of %s: %v", dom.Name, err)
		}
		if addr, err := e.Address(ctx, dom.Name); err == nil {
			info.Address = addr
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// stateToString converts libvirt domain state to human-readable string.
func stateToString(state int32) string {
	switch state {
	case 0:
		return "no state"
	case 1:
		return "running"
	case 2:
		return "blocked"
	case 3:
		return "paused"
	case 4:
		return "shutdown"
	case 5:
		return "shutoff"
	case 6:
		return "crashed"
	case 7:
		return "pmsuspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}
