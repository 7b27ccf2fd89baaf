// Package fsops performs the six gated filesystem operations.
//
// Every operation loads a fresh allow set, resolves each path argument,
// authorizes all of them, and only then touches the filesystem. Failures
// come back as *Error with a Kind from a closed set. The Dispatcher keeps no
// per-call state, so concurrent calls are safe; calls racing on the same
// path are not coordinated.
package fsops

import (
	"context"
	"strings"

	"github.com/spf13/afero"

	"github.com/ppiankov/fsgate/internal/allowlist"
	"github.com/ppiankov/fsgate/internal/logging"
	"github.com/ppiankov/fsgate/internal/resolve"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ResolveFunc maps a raw user path to its resolved absolute form.
type ResolveFunc func(raw string) (string, error)

// Dispatcher executes operations against an afero filesystem.
type Dispatcher struct {
	fs      afero.Fs
	allowed allowlist.Source
	resolve ResolveFunc
	logger  *logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(d *Dispatcher) { d.fs = fs }
}

// WithResolver replaces resolve.Path.
func WithResolver(fn ResolveFunc) Option {
	return func(d *Dispatcher) { d.resolve = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher that consults allowed on every call.
func New(allowed allowlist.Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fs:      afero.NewOsFs(),
		allowed: allowed,
		resolve: resolve.Path,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Roots returns the allow set as it would be loaded for the next call.
func (d *Dispatcher) Roots() []string {
	return d.allowed.Load().Roots()
}

// Check resolves and authorizes path without touching the filesystem
// beyond resolution.
func (d *Dispatcher) Check(ctx context.Context, path string) (string, error) {
	resolved, err := d.authorize(ctx, "check", path)
	if err != nil {
		return "", err
	}
	return resolved[0], nil
}

// authorize loads the allow set once, resolves every raw path and
// authorizes all of them. It returns the resolved paths in argument order.
// No filesystem mutation happens here.
func (d *Dispatcher) authorize(ctx context.Context, op string, raws ...string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(op, "", err)
	}
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			return nil, invalidArgument(op, "path is required")
		}
	}

	set := d.allowed.Load()
	if set.Empty() {
		err := set.Authorize("")
		d.logger.Warn("operation refused", "op", op, "reason", err)
		return nil, &Error{Kind: KindConfiguration, Op: op, Err: err}
	}

	resolved := make([]string, 0, len(raws))
	for _, raw := range raws {
		p, err := d.resolve(raw)
		if err != nil {
			return nil, &Error{Kind: KindFilesystem, Op: op, Path: raw, Err: err}
		}
		d.logger.Debug("resolved path", "op", op, "raw", raw, "resolved", p)
		resolved = append(resolved, p)
	}

	for _, p := range resolved {
		if err := set.Authorize(p); err != nil {
			d.logger.Warn("access denied", "op", op, "path", p)
			return nil, &Error{Kind: Classify(err), Op: op, Path: p, Err: err}
		}
	}
	return resolved, nil
}
