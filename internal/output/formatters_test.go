package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/molecule-virtup/internal/storage"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// createTestInstance creates an InstanceInfo for testing.
func createTestInstance(name, state, ip string) virtup.InstanceInfo {
	return virtup.InstanceInfo{
		Meta: virtup.Meta{
			Name:     name,
			Template: "generic-centos-8",
			User: virtup.User{
				Username:    "virtup",
				SSHIdentity: "/home/test/.local/share/virtup/keys/generic-centos-8",
			},
			MemoryMiB: 2048,
			VCPUs:     2,
			Created:   time.Now().Add(-5 * time.Minute),
		},
		State:   state,
		Address: ip,
	}
}

func TestTableFormatter_FormatInstances(t *testing.T) {
	tests := []struct {
		name       string
		instances  []virtup.InstanceInfo
		noHeaders  bool
		wantLines  int
		wantHeader bool
		contains   []string
	}{
		{
			name:      "empty list",
			instances: nil,
			wantLines: 1,
			contains:  []string{"No instances found"},
		},
		{
			name: "running and stopped",
			instances: []virtup.InstanceInfo{
				createTestInstance("myinst", "running", "192.168.122.10"),
				createTestInstance("other", "shutoff", ""),
			},
			wantLines:  3,
			wantHeader: true,
			contains:   []string{"myinst", "192.168.122.10", "running", "shutoff", "2048 MiB", "5m"},
		},
		{
			name: "no headers",
			instances: []virtup.InstanceInfo{
				createTestInstance("myinst", "running", "192.168.122.10"),
			},
			noHeaders: true,
			wantLines: 1,
			contains:  []string{"myinst"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TableFormatter{NoHeaders: tt.noHeaders}
			out, err := f.FormatInstances(tt.instances)
			if err != nil {
				t.Fatalf("FormatInstances() error = %v", err)
			}

			lines := strings.Split(strings.TrimSpace(out), "\n")
			if len(lines) != tt.wantLines {
				t.Errorf("got %d lines, want %d:\n%s", len(lines), tt.wantLines, out)
			}

			if got := strings.HasPrefix(out, "NAME"); got != tt.wantHeader {
				t.Errorf("header present = %v, want %v", got, tt.wantHeader)
			}

			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestTableFormatter_FormatInstances_MissingAddress(t *testing.T) {
	f := &TableFormatter{NoHeaders: true}
	out, err := f.FormatInstances([]virtup.InstanceInfo{createTestInstance("other", "shutoff", "")})
	if err != nil {
		t.Fatalf("FormatInstances() error = %v", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 4 || fields[3] != "-" {
		t.Errorf("expected '-' for missing address, got %q", out)
	}
}

func TestTableFormatter_FormatImages(t *testing.T) {
	f := &TableFormatter{}

	out, err := f.FormatImages(nil)
	if err != nil {
		t.Fatalf("FormatImages() error = %v", err)
	}
	if !strings.Contains(out, "No images found") {
		t.Errorf("expected empty message, got %q", out)
	}

	out, err = f.FormatImages([]storage.VolumeInfo{{
		Name:       "generic-centos-8.qcow2",
		Path:       "/var/lib/libvirt/images/virtup/images/generic-centos-8.qcow2",
		Capacity:   10 * 1024 * 1024 * 1024,
		Allocation: 1024 * 1024 * 1024,
	}})
	if err != nil {
		t.Fatalf("FormatImages() error = %v", err)
	}
	for _, want := range []string{"NAME", "generic-centos-8.qcow2", "10.0 GiB", "1.0 GiB"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatter_FormatValues(t *testing.T) {
	f := &TableFormatter{NoHeaders: true}
	out, err := f.FormatValues(map[string]string{
		"ansible_user": "virtup",
		"ansible_host": "192.168.122.10",
	})
	if err != nil {
		t.Fatalf("FormatValues() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ansible_host") {
		t.Errorf("expected keys sorted, first line = %q", lines[0])
	}
}

func TestYAMLFormatter_FormatInstances(t *testing.T) {
	f := &YAMLFormatter{}
	out, err := f.FormatInstances([]virtup.InstanceInfo{
		createTestInstance("myinst", "running", "192.168.122.10"),
	})
	if err != nil {
		t.Fatalf("FormatInstances() error = %v", err)
	}

	var got []map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0]["name"] != "myinst" || got[0]["address"] != "192.168.122.10" || got[0]["user"] != "virtup" {
		t.Errorf("unexpected item: %v", got[0])
	}
}

func TestYAMLFormatter_FormatValues(t *testing.T) {
	f := &YAMLFormatter{}

	out, err := f.FormatValues(nil)
	if err != nil {
		t.Fatalf("FormatValues() error = %v", err)
	}
	if strings.TrimSpace(out) != "{}" {
		t.Errorf("expected empty mapping, got %q", out)
	}

	out, err = f.FormatValues(map[string]string{"instance": "myinst"})
	if err != nil {
		t.Fatalf("FormatValues() error = %v", err)
	}
	if strings.TrimSpace(out) != "instance: myinst" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestJSONFormatter_FormatInstances(t *testing.T) {
	f := &JSONFormatter{}
	out, err := f.FormatInstances([]virtup.InstanceInfo{
		createTestInstance("myinst", "running", "192.168.122.10"),
		createTestInstance("other", "shutoff", ""),
	})
	if err != nil {
		t.Fatalf("FormatInstances() error = %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if _, ok := got[1]["address"]; ok {
		t.Errorf("expected address omitted for instance without lease: %v", got[1])
	}
	if got[0]["memory"] != float64(2048) {
		t.Errorf("memory = %v, want 2048", got[0]["memory"])
	}
}

func TestJSONFormatter_FormatImages(t *testing.T) {
	f := &JSONFormatter{}

	out, err := f.FormatImages(nil)
	if err != nil {
		t.Fatalf("FormatImages() error = %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty array, got %q", out)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{name: "table", format: FormatTable},
		{name: "yaml", format: FormatYAML},
		{name: "json", format: FormatJSON},
		{name: "invalid", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormatter(Options{Format: tt.format})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFormatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && f == nil {
				t.Error("NewFormatter() returned nil formatter")
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"table", "yaml", "json"} {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) error = %v", f, err)
		}
	}
	for _, f := range []string{"", "xml", "TABLE"} {
		if err := ValidateFormat(f); err == nil {
			t.Errorf("ValidateFormat(%q) expected error", f)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "unknown"},
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{4 * 24 * time.Hour, "4d"},
		{21 * 24 * time.Hour, "3w"},
		{400 * 24 * time.Hour, "1y"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatAge(tt.d); got != tt.want {
				t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
