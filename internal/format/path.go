package format

import "strings"

// Basename returns the trailing -slice components of path joined by "/".
// slice -1 keeps the last component, -2 keeps "owner/repo" style pairs.
// Any non-negative slice is treated as -1.
func Basename(path string, slice int) string {
	if path == "" {
		return ""
	}
	if slice >= 0 {
		slice = -1
	}
	parts := strings.Split(strings.ReplaceAll(path, `\`, "/"), "/")
	start := len(parts) + slice
	if start < 0 {
		start = 0
	}
	return strings.Join(parts[start:], "/")
}
