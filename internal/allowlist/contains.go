package allowlist

import (
	"path/filepath"
	"runtime"
	"strings"
)

// caseInsensitive is true where the native filesystem compares names without case.
var caseInsensitive = runtime.GOOS == "windows"

// Contains reports whether target equals root or lies beneath it.
// Both paths must already be resolved. Comparison is per path segment, so
// /a/b contains /a/b/c but not /a/bc. Volume names (drive letters, UNC
// shares) must match before any segment is compared.
func Contains(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	rootVol := filepath.VolumeName(root)
	targetVol := filepath.VolumeName(target)
	if !sameSegment(rootVol, targetVol, caseInsensitive) {
		return false
	}
	return containsSegments(segments(root[len(rootVol):]), segments(target[len(targetVol):]), caseInsensitive)
}

func containsSegments(root, target []string, fold bool) bool {
	if len(target) < len(root) {
		return false
	}
	for i := range root {
		if !sameSegment(root[i], target[i], fold) {
			return false
		}
	}
	return true
}

func segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
}

func sameSegment(a, b string, fold bool) bool {
	if fold {
		return strings.EqualFold(a, b)
	}
	return a == b
}
