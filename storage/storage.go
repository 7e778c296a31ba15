// Package storage is the file I/O contract the embedding core uses, with a
// local filesystem backend and an in-memory backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
)

// Common errors
var (
	ErrNotExist    = errors.New("file does not exist")
	ErrInvalidPath = errors.New("invalid storage path")
)

// Storage reads and writes files by path.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// Error is a failed storage operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind implements errkind.Kinded.
func (e *Error) Kind() errkind.Kind { return errkind.Storage }

// Clean normalizes a storage key: NFC, forward slashes, no leading slash,
// no parent references.
func Clean(path string) (string, error) {
	p := norm.NFC.String(strings.ReplaceAll(path, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	if p == "" || strings.ContainsRune(p, 0) {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	return filepath.ToSlash(filepath.Clean(p)), nil
}

// Local stores files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(op, path string) (string, error) {
	key, err := Clean(path)
	if err != nil {
		return "", &Error{Op: op, Path: path, Err: err}
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &Error{Op: op, Path: path, Err: ErrInvalidPath}
	}
	return full, nil
}

// Read implements Storage.
func (l *Local) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := l.resolve("read", path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Op: "read", Path: path, Err: ErrNotExist}
	}
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Write implements Storage. The file is replaced atomically.
func (l *Local) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve("write", path)
	if err != nil {
		return err
	}
	wrap := func(err error) error { return &Error{Op: "write", Path: path, Err: err} }

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return wrap(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return wrap(err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return wrap(err)
	}
	return nil
}

// Exists implements Storage.
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := l.resolve("stat", path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, &Error{Op: "stat", Path: path, Err: err}
	}
}

// Delete implements Storage. Deleting a missing file is not an error.
func (l *Local) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := l.resolve("delete", path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "delete", Path: path, Err: err}
	}
	return nil
}

// Memory keeps files in memory. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

// Read implements Storage.
func (m *Memory) Read(_ context.Context, path string) ([]byte, error) {
	key, err := Clean(path)
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[key]
	if !ok {
		return nil, &Error{Op: "read", Path: path, Err: ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// Write implements Storage.
func (m *Memory) Write(_ context.Context, path string, data []byte) error {
	key, err := Clean(path)
	if err != nil {
		return &Error{Op: "write", Path: path, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), data...)
	return nil
}

// Exists implements Storage.
func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	key, err := Clean(path)
	if err != nil {
		return false, &Error{Op: "stat", Path: path, Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key]
	return ok, nil
}

// Delete implements Storage.
func (m *Memory) Delete(_ context.Context, path string) error {
	key, err := Clean(path)
	if err != nil {
		return &Error{Op: "delete", Path: path, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

// Paths returns the stored keys.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for k := range m.files {
		out = append(out, k)
	}
	return out
}
