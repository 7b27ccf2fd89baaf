// Package allowlist holds the operator-configured set of directories that
// filesystem operations may touch, and decides containment for resolved paths.
//
// The set is rebuilt from the environment on every Load so configuration
// changes apply to the next call without a restart.
package allowlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/fsgate/internal/resolve"
)

// DefaultEnvVar is the environment variable listing allowed directories,
// separated by os.PathListSeparator.
const DefaultEnvVar = "MCP_FS_ALLOWED_DIRS"

// ErrNotConfigured means no usable allowed directory is configured.
var ErrNotConfigured = errors.New("no allowed directories configured")

// DeniedError reports a resolved path that lies outside every allowed root.
type DeniedError struct {
	Path string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("path not allowed: %s", e.Path)
}

// NotConfiguredError wraps ErrNotConfigured with operator guidance.
type NotConfiguredError struct {
	EnvVar string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%v. Set %s to a list of absolute directory paths separated by %q",
		ErrNotConfigured, e.EnvVar, string(os.PathListSeparator))
}

func (e *NotConfiguredError) Unwrap() error { return ErrNotConfigured }

// Source produces a fresh allow set. Implementations must not cache.
type Source interface {
	Load() Set
}

// EnvSource reads the allow list from an environment variable on every Load.
type EnvSource struct {
	// Var is the variable name; empty means DefaultEnvVar.
	Var string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// FromEnv returns a Source reading the named variable (DefaultEnvVar if empty).
func FromEnv(name string) *EnvSource {
	return &EnvSource{Var: name}
}

func (s *EnvSource) name() string {
	if s.Var == "" {
		return DefaultEnvVar
	}
	return s.Var
}

// Load parses the variable. Entries that fail to resolve, do not exist or
// are not directories are dropped silently.
func (s *EnvSource) Load() Set {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return Parse(getenv(s.name()), s.name())
}

// Parse builds a Set from a path-list string. envVar only feeds the
// not-configured message.
func Parse(raw, envVar string) Set {
	set := Set{envVar: envVar}
	for _, candidate := range filepath.SplitList(raw) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		root, err := resolve.Path(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		set.roots = append(set.roots, root)
	}
	return set
}

// Set is an ordered collection of resolved allowed roots.
type Set struct {
	roots  []string
	envVar string
}

// NewSet builds a Set from already-resolved root directories without
// touching the filesystem.
func NewSet(roots ...string) Set {
	return Set{roots: append([]string(nil), roots...), envVar: DefaultEnvVar}
}

// Roots returns a copy of the allowed roots.
func (s Set) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Empty reports whether no roots are configured.
func (s Set) Empty() bool {
	return len(s.roots) == 0
}

// Authorize returns nil when resolved equals or descends from an allowed root.
// An empty set yields a *NotConfiguredError; otherwise a *DeniedError.
func (s Set) Authorize(resolved string) error {
	if len(s.roots) == 0 {
		envVar := s.envVar
		if envVar == "" {
			envVar = DefaultEnvVar
		}
		return &NotConfiguredError{EnvVar: envVar}
	}
	for _, root := range s.roots {
		if Contains(root, resolved) {
			return nil
		}
	}
	return &DeniedError{Path: resolved}
}
