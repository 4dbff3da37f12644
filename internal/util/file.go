package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ReadIntFromFile reads a single integer from the file at path,
// ignoring surrounding whitespace.
func ReadIntFromFile(path string) (value int, err error) {
	text, err := ReadTextFromFile(path)
	if err != nil {
		return -1, err
	}
	if len(text) <= 0 {
		return -1, fmt.Errorf("file is empty: %s", path)
	}
	value, err = strconv.Atoi(text)
	return value, err
}

// ReadTextFromFile reads the whole file at path, trimming surrounding whitespace.
func ReadTextFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteIntToFile write a single integer to a file path
func WriteIntToFile(value int, path string) error {
	return WriteTextToFile(strconv.Itoa(value), path)
}

// WriteTextToFile replaces the content of an existing file with the given text.
// The file is never created, sysfs attributes must already exist.
func WriteTextToFile(text string, path string) error {
	evaluatedPath, err := resolvePath(path)
	if len(evaluatedPath) > 0 && err == nil {
		path = evaluatedPath
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(text)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func resolvePath(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// FileExists returns true if something (file or directory) exists at path
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists returns true if a directory exists at path
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsWritable returns true if the current process may write to path
func IsWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// ExpandHomePath resolves a leading "~" to the home directory of the current user
func ExpandHomePath(path string) (string, error) {
	return homedir.Expand(path)
}

// IsNotExist reports whether err says a file or directory is missing
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
