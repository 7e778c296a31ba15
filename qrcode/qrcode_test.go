package qrcode

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	qr "github.com/skip2/go-qrcode"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    qr.RecoveryLevel
		wantErr bool
	}{
		{"low", qr.Low, false},
		{"", qr.Medium, false},
		{"Medium", qr.Medium, false},
		{"high", qr.High, false},
		{"highest", qr.Highest, false},
		{"extreme", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPNG(t *testing.T) {
	g, err := New("https://docs.example.com/d/", 128, "high")
	if err != nil {
		t.Fatal(err)
	}
	if got := g.URL("abc"); got != "https://docs.example.com/d/abc" {
		t.Errorf("URL() = %q", got)
	}

	data, err := g.PNG("abc")
	if err != nil {
		t.Fatalf("PNG() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("size = %dx%d, want 128x128", b.Dx(), b.Dy())
	}
}

func TestPNGDistinctPerDocument(t *testing.T) {
	g, _ := New("https://docs.example.com/d/", 0, "")
	a, _ := g.PNG("doc-a")
	b, _ := g.PNG("doc-b")
	if bytes.Equal(a, b) {
		t.Error("different documents produced the same code")
	}
}

func TestPNGEmptyID(t *testing.T) {
	g, _ := New("x", 64, "low")
	if _, err := g.PNG(" "); !errors.Is(err, ErrEmptyID) {
		t.Errorf("PNG() error = %v, want ErrEmptyID", err)
	}
}
