package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk layout of an entity schema file.
type schemaFile struct {
	Entities []*EntitySchema `yaml:"entities"`
}

// LoadFile reads entity schemas from a YAML file.
// Validation happens when the schemas are installed into a Registry.
func LoadFile(path string) ([]*EntitySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("schema file %s declares no entities", path)
	}
	return file.Entities, nil
}
