package utils

import (
	"os"
)

// WriteStagedFile writes content to path with the given permissions and
// chmods it explicitly, since the process umask may mask out bits the
// sandbox mount needs.
func WriteStagedFile(path, content string, perm os.FileMode) error {
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// attempts to remove dir and optionally its content. Can ignore error, for example if folder does not exist.
func RemoveIO(dir string, recursive, ignoreError bool) error {
	var err error
	if recursive {
		err = os.RemoveAll(dir)
	} else {
		err = os.Remove(dir)
	}

	if ignoreError {
		return nil
	}
	return err
}

// TruncateOutput caps s at maxBytes and appends marker when anything was
// cut off. maxBytes <= 0 disables the ceiling.
func TruncateOutput(s string, maxBytes int, marker string) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + marker
}
