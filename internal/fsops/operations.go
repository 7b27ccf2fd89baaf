package fsops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/ppiankov/fsgate/internal/allowlist"
)

// Entry describes one direct child returned by List.
type Entry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	IsDir    bool   `json:"is_dir"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
}

// Ack acknowledges a mutating operation.
type Ack struct {
	OK   bool   `json:"ok"`
	Path string `json:"path,omitempty"`
}

// List returns the direct children of a directory, sorted by name.
// A missing directory is NotFound, never an empty list.
func (d *Dispatcher) List(ctx context.Context, path string) ([]Entry, error) {
	const op = "list"
	resolved, err := d.authorize(ctx, op, path)
	if err != nil {
		return nil, err
	}
	dir := resolved[0]

	info, err := d.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(op, dir)
		}
		return nil, wrap(op, dir, err)
	}
	if !info.IsDir() {
		return nil, &Error{Kind: KindFilesystem, Op: op, Path: dir, Err: fmt.Errorf("not a directory: %s", dir)}
	}

	children, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		return nil, wrap(op, dir, err)
	}

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		childPath := filepath.Join(dir, child.Name())
		// ReadDir reports links as links; report what they point at when possible.
		if child.Mode()&fs.ModeSymlink != 0 {
			if target, err := d.fs.Stat(childPath); err == nil {
				child = target
			}
		}
		entries = append(entries, Entry{
			Path:     childPath,
			Name:     filepath.Base(childPath),
			IsDir:    child.IsDir(),
			Size:     child.Size(),
			Modified: child.ModTime().Unix(),
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })

	d.logger.Debug("listed directory", "path", dir, "entries", len(entries))
	return entries, nil
}

// ReadFile returns the full content of a regular file as UTF-8 text.
func (d *Dispatcher) ReadFile(ctx context.Context, path string) (string, error) {
	const op = "read_file"
	resolved, err := d.authorize(ctx, op, path)
	if err != nil {
		return "", err
	}
	file := resolved[0]

	info, err := d.fs.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", notFound(op, file)
		}
		return "", wrap(op, file, err)
	}
	if !info.Mode().IsRegular() {
		return "", &Error{Kind: KindNotFound, Op: op, Path: file, Err: fmt.Errorf("not a regular file: %s", file)}
	}

	data, err := afero.ReadFile(d.fs, file)
	if err != nil {
		return "", wrap(op, file, err)
	}
	if !utf8.Valid(data) {
		return "", &Error{Kind: KindFilesystem, Op: op, Path: file, Err: fmt.Errorf("file is not valid UTF-8 text: %s", file)}
	}
	return string(data), nil
}

// WriteFile creates missing parent directories and writes content,
// replacing any existing file. It returns the resolved path.
func (d *Dispatcher) WriteFile(ctx context.Context, path, content string) (Ack, error) {
	const op = "write_file"
	resolved, err := d.authorize(ctx, op, path)
	if err != nil {
		return Ack{}, err
	}
	file := resolved[0]

	if err := d.fs.MkdirAll(filepath.Dir(file), dirPerm); err != nil {
		return Ack{}, wrap(op, file, err)
	}
	if err := afero.WriteFile(d.fs, file, []byte(content), filePerm); err != nil {
		return Ack{}, wrap(op, file, err)
	}

	d.logger.Info("wrote file", "path", file, "bytes", len(content))
	return Ack{OK: true, Path: file}, nil
}

// Delete removes a file, or a directory tree recursively. A missing path
// is a successful no-op. There is no undo.
func (d *Dispatcher) Delete(ctx context.Context, path string) (Ack, error) {
	const op = "delete"
	resolved, err := d.authorize(ctx, op, path)
	if err != nil {
		return Ack{}, err
	}
	target := resolved[0]

	info, err := d.fs.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.logger.Debug("delete target absent", "path", target)
			return Ack{OK: true}, nil
		}
		return Ack{}, wrap(op, target, err)
	}

	if info.IsDir() {
		err = d.fs.RemoveAll(target)
	} else {
		err = d.fs.Remove(target)
	}
	if err != nil {
		return Ack{}, wrap(op, target, err)
	}

	d.logger.Info("deleted", "path", target, "dir", info.IsDir())
	return Ack{OK: true}, nil
}

// Mkdir creates a directory and any missing parents. Existing directories
// are not an error.
func (d *Dispatcher) Mkdir(ctx context.Context, path string) (Ack, error) {
	const op = "mkdir"
	resolved, err := d.authorize(ctx, op, path)
	if err != nil {
		return Ack{}, err
	}
	dir := resolved[0]

	if err := d.fs.MkdirAll(dir, dirPerm); err != nil {
		return Ack{}, wrap(op, dir, err)
	}

	d.logger.Info("created directory", "path", dir)
	return Ack{OK: true, Path: dir}, nil
}

// Move renames src to dst. Both endpoints are authorized before anything
// changes. An existing dst fails with AlreadyExists unless overwrite is set,
// in which case it is removed (recursively for directories) first.
func (d *Dispatcher) Move(ctx context.Context, src, dst string, overwrite bool) (Ack, error) {
	const op = "move"
	resolved, err := d.authorize(ctx, op, src, dst)
	if err != nil {
		return Ack{}, err
	}
	from, to := resolved[0], resolved[1]

	dstInfo, err := d.fs.Stat(to)
	dstExists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Ack{}, wrap(op, to, err)
	}
	if dstExists && !overwrite {
		return Ack{}, &Error{Kind: KindAlreadyExists, Op: op, Path: to, Err: fmt.Errorf("%s: %w", to, fs.ErrExist)}
	}

	if _, err := d.fs.Stat(from); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Ack{}, notFound(op, from)
		}
		return Ack{}, wrap(op, from, err)
	}
	if from == to {
		return Ack{OK: true}, nil
	}
	// Removing dst must never take src with it, and src cannot land inside itself.
	if allowlist.Contains(from, to) {
		return Ack{}, invalidArgument(op, "cannot move %s into itself (%s)", from, to)
	}
	if allowlist.Contains(to, from) {
		return Ack{}, invalidArgument(op, "destination %s contains source %s", to, from)
	}

	if dstExists {
		if dstInfo.IsDir() {
			err = d.fs.RemoveAll(to)
		} else {
			err = d.fs.Remove(to)
		}
		if err != nil {
			return Ack{}, wrap(op, to, err)
		}
		d.logger.Info("removed existing destination", "path", to, "dir", dstInfo.IsDir())
	}

	if err := d.fs.MkdirAll(filepath.Dir(to), dirPerm); err != nil {
		return Ack{}, wrap(op, to, err)
	}
	if err := d.rename(from, to); err != nil {
		return Ack{}, wrap(op, from, err)
	}

	d.logger.Info("moved", "src", from, "dst", to)
	return Ack{OK: true}, nil
}

// rename falls back to copy-and-remove when src and dst live on different devices.
func (d *Dispatcher) rename(from, to string) error {
	err := d.fs.Rename(from, to)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	d.logger.Debug("cross-device move, copying", "src", from, "dst", to)
	if err := copyTree(d.fs, from, to); err != nil {
		_ = d.fs.RemoveAll(to)
		return fmt.Errorf("copy across devices: %w", err)
	}
	return d.fs.RemoveAll(from)
}
