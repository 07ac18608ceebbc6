package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// PathError represents a root path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}

// NormalizePath cleans a path for the current platform, keeping the leading
// separators of Windows UNC paths
func NormalizePath(path string) string {
	normalized := filepath.Clean(path)

	if IsUNCPath(path) && !strings.HasPrefix(normalized, `\\`) {
		normalized = `\\` + strings.TrimLeft(normalized, `\/`)
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	if runtime.GOOS == "windows" && !IsUNCPath(path) {
		// a drive letter colon is allowed
		rest := path
		if len(rest) >= 2 && rest[1] == ':' {
			rest = rest[2:]
		}
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// ResolveRoot turns a user supplied root into the canonical absolute path of
// an existing directory. ~ is expanded and symlinks are followed so that two
// spellings of the same tree resolve to the same root.
func ResolveRoot(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}

	abs, err := filepath.Abs(NormalizePath(expanded))
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &PathError{Path: path, Message: "directory does not exist"}
		}
		return "", &PathError{Path: path, Message: err.Error()}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		return "", &PathError{Path: path, Message: "not a directory"}
	}

	return resolved, nil
}

// CheckRoots rejects a pair of canonical roots that are the same directory
// or where one contains the other
func CheckRoots(rootA, rootB string) error {
	if rootA == rootB {
		return &PathError{Path: rootB, Message: "both roots are the same directory"}
	}
	if within(rootA, rootB) {
		return &PathError{Path: rootA, Message: "root A is inside root B"}
	}
	if within(rootB, rootA) {
		return &PathError{Path: rootB, Message: "root B is inside root A"}
	}
	return nil
}

func within(path, parent string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
