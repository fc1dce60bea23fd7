package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/molecule-virtup/internal/storage"
	"github.com/jbweber/molecule-virtup/internal/virtup"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatInstances formats instances as a JSON array.
func (f *JSONFormatter) FormatInstances(instances []virtup.InstanceInfo) (string, error) {
	return marshalJSON(instanceViews(instances))
}

// FormatImages formats base images as a JSON array.
func (f *JSONFormatter) FormatImages(images []storage.VolumeInfo) (string, error) {
	return marshalJSON(imageViews(images))
}

// FormatValues formats a key/value map as a JSON object.
func (f *JSONFormatter) FormatValues(values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	return marshalJSON(values)
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}
