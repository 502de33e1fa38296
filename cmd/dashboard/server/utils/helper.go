package utils

import (
	"os"
	"path"
	"path/filepath"
)

func SelfDir() (string, error) {
	ex, err := os.Executable()
	if err != nil {
		return "", err
	}
	return path.Dir(ex), nil
}

// Resolve returns p relative to dir unless p is absolute
func Resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
