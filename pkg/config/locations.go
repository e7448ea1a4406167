package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// locationsFile is the top-level shape of LOCATIONS_PATH (§4.10).
type locationsFile struct {
	Locations []string `yaml:"locations"`
}

// LoadLocations reads and parses the canonical location list used by
// pkg/location's Resolver to correct typo'd location arguments.
func LoadLocations(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	var file locationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if len(file.Locations) == 0 {
		return nil, NewValidationError("locations", path, "locations", ErrMissingRequiredField)
	}

	return file.Locations, nil
}
