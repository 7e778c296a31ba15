package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/internal/pdftest"
	"github.com/Xangel0s/docqr-Flex-sub000/stamp"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stderr)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspectJSON(t *testing.T) {
	src := writeFile(t, "letter.pdf", pdftest.Letter())

	stdout, _, err := execute(t, "inspect", src, "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var desc inspect.Descriptor
	if err := json.Unmarshal([]byte(stdout), &desc); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if desc.PageCount != 1 || desc.PageWidth != 612 || desc.PageHeight != 792 {
		t.Errorf("descriptor = %+v", desc)
	}
}

func TestInspectProtected(t *testing.T) {
	src := writeFile(t, "locked.pdf", pdftest.Encrypted())

	_, stderr, err := execute(t, "inspect", src)
	if err == nil {
		t.Fatal("expected an error")
	}
	if errkind.Of(err) != errkind.Protected {
		t.Errorf("kind = %s, want %s", errkind.Of(err), errkind.Protected)
	}
	if !strings.Contains(stderr, errkind.MessageFor(errkind.Protected)) {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestCode(t *testing.T) {
	out := filepath.Join(t.TempDir(), "code.png")

	if _, _, err := execute(t, "code", "doc-1", "-o", out); err != nil {
		t.Fatalf("code: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("output is not a PNG")
	}
}

func TestEmbed(t *testing.T) {
	src := writeFile(t, "letter.pdf", pdftest.Letter())
	out := filepath.Join(t.TempDir(), "out.pdf")

	stdout, _, err := execute(t, "embed", src, "--x", "40", "--y", "60", "--size", "100", "-o", out)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := stamp.Verify(data); err != nil {
		t.Errorf("output: %v", err)
	}
	if !strings.Contains(stdout, string(stamp.StrategyPrimary)) {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestEmbedWithOverlayFile(t *testing.T) {
	src := writeFile(t, "a4.pdf", pdftest.A4())
	overlay := writeFile(t, "overlay.png", pdftest.Overlay())
	out := filepath.Join(t.TempDir(), "out.pdf")

	if _, _, err := execute(t, "embed", src, "--overlay", overlay, "-o", out); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error(err)
	}
}

func TestEmbedRejectsPlacement(t *testing.T) {
	src := writeFile(t, "letter.pdf", pdftest.Letter())
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, stderr, err := execute(t, "embed", src, "--x", "560", "--size", "80", "-o", out)
	if errkind.Of(err) != errkind.Validation {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if !strings.Contains(stderr, "invalid placement") {
		t.Errorf("stderr = %q", stderr)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output written on failure")
	}
}

func TestPlace(t *testing.T) {
	src := writeFile(t, "a4.pdf", pdftest.A4())

	stdout, _, err := execute(t, "place", src, "--x", "20", "--y", "20", "--size", "80", "scale:10")
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !strings.Contains(stdout, "size corrected") {
		t.Errorf("missing size correction in %q", stdout)
	}
	if !strings.Contains(stdout, "placement") {
		t.Errorf("missing placement in %q", stdout)
	}
}

func TestPlaceCommit(t *testing.T) {
	src := writeFile(t, "a4.pdf", pdftest.A4())
	out := filepath.Join(t.TempDir(), "out.pdf")

	if _, _, err := execute(t, "place", src, "move:-500,-500", "--commit", "-o", out); err != nil {
		t.Fatalf("place: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := stamp.Verify(data); err != nil {
		t.Errorf("output: %v", err)
	}
}

func TestPlaceCommitRejectsOutOfBounds(t *testing.T) {
	src := writeFile(t, "letter.pdf", pdftest.Letter())
	out := filepath.Join(t.TempDir(), "out.pdf")

	_, _, err := execute(t, "place", src, "--x", "560", "--y", "50", "--size", "100", "--commit", "-o", out)
	if errkind.Of(err) != errkind.Validation {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output written for an out-of-bounds placement")
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in      string
		want    step
		wantErr bool
	}{
		{in: "move:10,-5", want: step{op: "move", a: 10, b: -5}},
		{in: "scale:1.5", want: step{op: "scale", a: 1.5, b: 1.5}},
		{in: "scale:1,2", want: step{op: "scale", a: 1, b: 2}},
		{in: "move:10", wantErr: true},
		{in: "rotate:90", wantErr: true},
		{in: "move", wantErr: true},
		{in: "scale:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStep(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfigFlag(t *testing.T) {
	cfg := writeFile(t, "docqr.yaml", []byte("inspect:\n  unit: millimeters\n"))
	src := writeFile(t, "a4.pdf", pdftest.A4())

	stdout, _, err := execute(t, "--config", cfg, "inspect", src, "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var desc inspect.Descriptor
	if err := json.Unmarshal([]byte(stdout), &desc); err != nil {
		t.Fatal(err)
	}
	if desc.Unit != "millimeters" {
		t.Errorf("unit = %q", desc.Unit)
	}
}

func TestOpenUnknownDrivers(t *testing.T) {
	ctx := context.Background()
	if _, _, err := openStore(ctx, configFromContext(ctx).Store); err != nil {
		t.Errorf("default store: %v", err)
	}
	s := configFromContext(ctx).Store
	s.Driver = "sqlite"
	if _, _, err := openStore(ctx, s); err == nil {
		t.Error("expected an error for an unknown store driver")
	}
	l := configFromContext(ctx).Lock
	l.Driver = "etcd"
	if _, _, err := openLocker(ctx, l, nil); err == nil {
		t.Error("expected an error for an unknown lock driver")
	}
}
