// Package resolve turns user-supplied path strings into the absolute,
// symlink-resolved form used for every authorization decision.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxLinkHops bounds dangling-symlink chasing, matching the usual ELOOP limit.
const maxLinkHops = 40

// ErrTooManyLinks is returned when a symlink chain does not terminate.
var ErrTooManyLinks = errors.New("too many levels of symbolic links")

// ExpandHome expands a leading "~" or "~/" to the current user's home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Path resolves raw into an absolute path with symlinks followed.
//
// ".." is applied after the symlink before it has been followed, as the
// kernel does, so "link/../x" names the parent of link's target.
// Paths that do not exist yet resolve through their deepest existing
// ancestor: the ancestor is resolved and the missing segments are
// re-appended. A dangling symlink resolves to where it points.
// Only failures other than non-existence are returned.
func Path(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := absolute(ExpandHome(raw))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", raw, err)
	}
	return resolve(abs, 0)
}

// absolute prefixes the working directory without cleaning, so ".." is
// left for symlink evaluation.
func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	if filepath.VolumeName(p) != "" {
		// Drive-relative ("C:foo") needs the per-drive working directory.
		return filepath.Abs(p)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return cwd + string(filepath.Separator) + p, nil
}

// splitLast splits off the final segment of p without lexical cleaning.
// ok is false when p is a filesystem root.
func splitLast(p string) (dir, base string, ok bool) {
	vol := len(filepath.VolumeName(p))
	i := len(p) - 1
	for i >= vol && !os.IsPathSeparator(p[i]) {
		i--
	}
	if i < vol {
		return "", "", false
	}
	dir, base = p[:i], p[i+1:]
	if len(dir) == vol {
		dir = p[:i+1]
	}
	if dir == p {
		return "", "", false
	}
	return dir, base, true
}

func resolve(abs string, hops int) (string, error) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}

	dir, base, ok := splitLast(abs)
	if !ok {
		// Filesystem root that EvalSymlinks could not stat; nothing left to resolve.
		return filepath.Clean(abs), nil
	}

	if info, lerr := os.Lstat(abs); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
		if hops >= maxLinkHops {
			return "", fmt.Errorf("resolve %s: %w", abs, ErrTooManyLinks)
		}
		target, err := os.Readlink(abs)
		if err != nil {
			return "", fmt.Errorf("readlink %s: %w", abs, err)
		}
		if !filepath.IsAbs(target) {
			target = dir + string(filepath.Separator) + target
		}
		return resolve(target, hops+1)
	}

	resolvedParent, err := resolve(dir, hops)
	if err != nil {
		return "", err
	}
	// Below the deepest existing ancestor ".." can only be lexical.
	return filepath.Join(resolvedParent, base), nil
}
