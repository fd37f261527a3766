package hdf5

import (
	"path"
	"strings"
)

// SplitPath splits a path into its components. Leading and trailing slashes
// and empty components are dropped.
//
// Examples:
//   - "/" -> []string{}
//   - "/entry/data" -> []string{"entry", "data"}
func SplitPath(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

// CleanPath normalizes a path to start with "/" and have no trailing slash.
func CleanPath(p string) string {
	return path.Clean("/" + p)
}

// JoinPath joins a group path and a link name.
func JoinPath(group, name string) string {
	return CleanPath(group + "/" + name)
}

// validName reports whether name can be used as a link name.
func validName(name string) bool {
	return name != "" && name != "." && !strings.Contains(name, "/")
}
