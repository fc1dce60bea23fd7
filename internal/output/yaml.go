package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/molecule-virtup/internal/storage"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatInstances formats instances as a YAML sequence.
func (f *YAMLFormatter) FormatInstances(instances []virtup.InstanceInfo) (string, error) {
	return marshalYAML(instanceViews(instances))
}

// FormatImages formats base images as a YAML sequence.
func (f *YAMLFormatter) FormatImages(images []storage.VolumeInfo) (string, error) {
	return marshalYAML(imageViews(images))
}

// FormatValues formats a key/value map as a YAML mapping.
func (f *YAMLFormatter) FormatValues(values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	return marshalYAML(values)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return string(data), nil
}
