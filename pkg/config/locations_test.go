package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocationsFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadLocations(t *testing.T) {
	path := writeLocationsFile(t, `
locations:
  - Goa
  - Mumbai
  - Bengaluru
`)

	locations, err := LoadLocations(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Goa", "Mumbai", "Bengaluru"}, locations)
}

func TestLoadLocations_EmptyListRejected(t *testing.T) {
	path := writeLocationsFile(t, `locations: []`)
	_, err := LoadLocations(path)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestLoadLocations_MissingFileRejected(t *testing.T) {
	_, err := LoadLocations(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}
