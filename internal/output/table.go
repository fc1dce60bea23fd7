package output

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/jbweber/molecule-virtup/internal/storage"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatInstances formats instances as a table.
func (f *TableFormatter) FormatInstances(instances []virtup.InstanceInfo) (string, error) {
	if len(instances) == 0 {
		return "No instances found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTEMPLATE\tSTATE\tIP\tVCPUs\tMEMORY\tAGE")
	}

	for _, i := range instances {
		ip := i.Address
		if ip == "" {
			ip = "-"
		}

		age := "-"
		if !i.Created.IsZero() {
			age = formatAge(time.Since(i.Created))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d MiB\t%s\n",
			i.Name, i.Template, i.State, ip, i.VCPUs, i.MemoryMiB, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatImages formats base images as a table.
func (f *TableFormatter) FormatImages(images []storage.VolumeInfo) (string, error) {
	if len(images) == 0 {
		return "No images found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tCAPACITY\tALLOCATION\tPATH")
	}

	for _, img := range images {
		_, _ = fmt.Fprintf(w, "%s\t%.1f GiB\t%.1f GiB\t%s\n",
			img.Name, img.CapacityGB(), img.AllocationGB(), img.Path)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatValues formats a key/value map as a two-column table sorted by key.
func (f *TableFormatter) FormatValues(values map[string]string) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	}

	for _, k := range slices.Sorted(maps.Keys(values)) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", k, values[k])
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	if days < 365 {
		return fmt.Sprintf("%dw", days/7)
	}
	return fmt.Sprintf("%dy", days/365)
}
