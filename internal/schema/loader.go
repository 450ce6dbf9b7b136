package schema

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// LoadFile reads a YAML schema definition from path.
//
// Example:
//
//	name: trade
//	id_field: trade_id
//	rules:
//	  - field: isin
//	    kind: required
//	  - field: isin
//	    kind: format:isin
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and checks a YAML schema definition.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal renders s as YAML.
func Marshal(s *Schema) ([]byte, error) {
	return yaml.Marshal(s)
}

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		def := ""
		if idx := strings.Index(name, ":-"); idx != -1 {
			def = name[idx+2:]
			name = name[:idx]
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return def
	})
}
