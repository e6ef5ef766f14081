package ingest

import (
	"path/filepath"
	"strings"

	"invoice-tracker/constants"
)

// AllowedExt reports whether a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden reports whether a file or directory name starts with '.'.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
