package graph

import (
	"fmt"
	"strings"
)

// ValidateName rejects names that cannot be used as a path segment.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ValidateExtension rejects extensions that would change the path of the file.
// An empty extension is valid.
func ValidateExtension(ext string) error {
	if strings.ContainsAny(ext, "/\\\x00") {
		return fmt.Errorf("%w: extension %q contains a path separator", ErrInvalidName, ext)
	}
	return nil
}

// SplitFileName splits "main.cpp" into ("main", "cpp"). A leading dot is
// part of the name, so ".gitignore" has no extension.
func SplitFileName(fileName string) (name, ext string) {
	i := strings.LastIndex(fileName, ".")
	if i <= 0 || i == len(fileName)-1 {
		return fileName, ""
	}
	return fileName[:i], fileName[i+1:]
}
