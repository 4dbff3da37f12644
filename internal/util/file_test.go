package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadIntFromFile(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "temp")
	err := os.WriteFile(filePath, []byte("45123\n"), 0644)
	assert.NoError(t, err)

	// WHEN
	result, err := ReadIntFromFile(filePath)

	// THEN
	assert.NoError(t, err)
	assert.Equal(t, 45123, result)
}

func TestReadIntFromFile_Empty(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "temp")
	err := os.WriteFile(filePath, []byte(""), 0644)
	assert.NoError(t, err)

	// WHEN
	_, err = ReadIntFromFile(filePath)

	// THEN
	assert.Error(t, err)
}

func TestReadIntFromFile_NotANumber(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "temp")
	err := os.WriteFile(filePath, []byte("hot"), 0644)
	assert.NoError(t, err)

	// WHEN
	_, err = ReadIntFromFile(filePath)

	// THEN
	assert.Error(t, err)
}

func TestReadIntFromFile_Missing(t *testing.T) {
	// WHEN
	_, err := ReadIntFromFile(filepath.Join(t.TempDir(), "missing"))

	// THEN
	assert.True(t, IsNotExist(err))
}

func TestWriteIntToFile(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "duty_cycle")
	err := os.WriteFile(filePath, []byte("0"), 0644)
	assert.NoError(t, err)

	// WHEN
	err = WriteIntToFile(20000, filePath)

	// THEN
	assert.NoError(t, err)
	text, err := ReadTextFromFile(filePath)
	assert.NoError(t, err)
	assert.Equal(t, "20000", text)
}

func TestWriteTextToFile_DoesNotCreate(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "enable")

	// WHEN
	err := WriteTextToFile("1", filePath)

	// THEN
	assert.Error(t, err)
	assert.False(t, FileExists(filePath))
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(filepath.Join(dir, "nope")))
}

func TestWriteIntToFile_ShorterValue(t *testing.T) {
	// GIVEN
	filePath := filepath.Join(t.TempDir(), "duty_cycle")
	err := os.WriteFile(filePath, []byte("300000"), 0644)
	assert.NoError(t, err)

	// WHEN
	err = WriteIntToFile(0, filePath)

	// THEN
	assert.NoError(t, err)
	text, err := ReadTextFromFile(filePath)
	assert.NoError(t, err)
	assert.Equal(t, "0", text)
}
