package virtup

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ParseSize parses a disk size such as "10G", "20Gi" or "512M" into bytes.
// Single-letter suffixes are binary units, as with virt-builder --size.
// An empty string yields zero, meaning "keep the base image size".
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	switch s[len(s)-1] {
	case 'K', 'M', 'G', 'T', 'P', 'E':
		s += "i"
	case 'k':
		s = s[:len(s)-1] + "Ki"
	}

	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if q.Sign() <= 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", s)
	}
	return uint64(q.Value()), nil
}
