package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLabel_FromLabelFile(t *testing.T) {
	// GIVEN
	devicePath := t.TempDir()
	err := os.WriteFile(filepath.Join(devicePath, "temp1_label"), []byte("Package id 0\n"), 0644)
	assert.NoError(t, err)

	// WHEN
	label := GetLabel(devicePath, "temp1_input")

	// THEN
	assert.Equal(t, "Package id 0", label)
}

func TestGetLabel_FallbackToDeviceDir(t *testing.T) {
	// GIVEN
	devicePath := filepath.Join(t.TempDir(), "hwmon3")
	assert.NoError(t, os.MkdirAll(devicePath, 0755))

	// WHEN
	label := GetLabel(devicePath, "temp1_input")

	// THEN
	assert.Equal(t, "hwmon3", label)
}

func TestGetThermalZoneType(t *testing.T) {
	// GIVEN
	zonePath := t.TempDir()
	err := os.WriteFile(filepath.Join(zonePath, "type"), []byte("cpu-thermal\n"), 0644)
	assert.NoError(t, err)

	// WHEN
	result := GetThermalZoneType(zonePath)

	// THEN
	assert.Equal(t, "cpu-thermal", result)
}
