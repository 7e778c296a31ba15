package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"docs/a.pdf", "docs/a.pdf", false},
		{"/docs//a.pdf", "docs/a.pdf", false},
		{`docs\a.pdf`, "docs/a.pdf", false},
		{"docs/./a.pdf", "docs/a.pdf", false},
		{"café.pdf", "café.pdf", false},
		{"../etc/passwd", "", true},
		{"docs/../../x", "", true},
		{"", "", true},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := Clean(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Clean(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func exercise(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if ok, err := s.Exists(ctx, "a/b.pdf"); err != nil || ok {
		t.Fatalf("Exists() = %v, %v; want false, nil", ok, err)
	}
	_, err := s.Read(ctx, "a/b.pdf")
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("Read() error = %v, want ErrNotExist", err)
	}
	if errkind.Of(err) != errkind.Storage {
		t.Errorf("errkind.Of() = %q, want StorageError", errkind.Of(err))
	}

	if err := s.Write(ctx, "a/b.pdf", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "a/b.pdf", []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, err := s.Read(ctx, "/a/b.pdf")
	if err != nil || string(data) != "two" {
		t.Errorf("Read() = %q, %v; want two", data, err)
	}
	if ok, _ := s.Exists(ctx, "a/b.pdf"); !ok {
		t.Error("Exists() = false after Write")
	}

	if err := s.Delete(ctx, "a/b.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a/b.pdf"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if ok, _ := s.Exists(ctx, "a/b.pdf"); ok {
		t.Error("Exists() = true after Delete")
	}

	if err := s.Write(ctx, "../escape", []byte("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Write(../escape) error = %v, want ErrInvalidPath", err)
	}
}

func TestLocal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, s)

	if err := s.Write(context.Background(), "x/y.bin", []byte("z")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "y.bin" {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestLocalCancelledContext(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Write(ctx, "a", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	exercise(t, m)

	ctx := context.Background()
	m.Write(ctx, "b", nil)
	m.Write(ctx, "a", nil)
	paths := m.Paths()
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "a" || paths[1] != "b" {
		t.Errorf("Paths() = %v", paths)
	}

	if err := m.Write(ctx, "../c", nil); errkind.Of(err) != errkind.Storage {
		t.Errorf("Write() error = %v, want StorageError", err)
	}
}
