// internal/rules/load.go
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/solatis/logview/internal/types"
	"gopkg.in/yaml.v3"
)

// ParseViewYAML decodes a YAML view document. The schema is the JSON one.
func ParseViewYAML(data []byte) (*View, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed YAML: %v", types.ErrInvalidView, err)
	}
	normalized, err := normalizeYAML(doc, "view")
	if err != nil {
		return nil, err
	}
	return ParseViewValue(normalized)
}

// normalizeYAML converts yaml.v3 generic values to the shapes the JSON walk
// expects. Mappings with non-string keys are rejected.
func normalizeYAML(v any, path string) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalizeYAML(val, path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, viewErr(path, "non-string key %v", k)
			}
			n, err := normalizeYAML(val, path+"."+ks)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalizeYAML(val, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// LoadViewFile reads a view from a JSON or YAML (.yaml, .yml) file.
func LoadViewFile(path string) (*View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read view file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseViewYAML(data)
	default:
		return ParseView(data)
	}
}
