package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/internal/pdftest"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

func TestInspectLetter(t *testing.T) {
	desc, err := New().Inspect(context.Background(), pdftest.Letter())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	want := Descriptor{PageCount: 1, PageWidth: 612, PageHeight: 792, Unit: placement.Points, Readable: true}
	if desc != want {
		t.Errorf("Inspect() = %+v, want %+v", desc, want)
	}
}

func TestInspectMultiPageReportsFirstPage(t *testing.T) {
	desc, err := New().Inspect(context.Background(), pdftest.Pages(3, 420, 595))
	if err != nil {
		t.Fatal(err)
	}
	if desc.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", desc.PageCount)
	}
	if desc.PageWidth != 420 || desc.PageHeight != 595 {
		t.Errorf("page = %gx%g, want 420x595", desc.PageWidth, desc.PageHeight)
	}
}

func TestInspectMillimeters(t *testing.T) {
	desc, err := New(WithUnit(placement.Millimeters)).Inspect(context.Background(), pdftest.A4())
	if err != nil {
		t.Fatal(err)
	}
	if desc.Unit != placement.Millimeters {
		t.Errorf("Unit = %q, want millimeters", desc.Unit)
	}
	if desc.PageWidth != 209.902778 || desc.PageHeight != 297.038889 {
		t.Errorf("page = %gx%g mm", desc.PageWidth, desc.PageHeight)
	}
}

func TestInspectRotatedPage(t *testing.T) {
	desc, err := New().Inspect(context.Background(), pdftest.Rotated(612, 792, 90))
	if err != nil {
		t.Fatal(err)
	}
	if desc.PageWidth != 792 || desc.PageHeight != 612 || desc.Rotation != 90 {
		t.Errorf("Inspect() = %+v, want 792x612 rotated 90", desc)
	}
}

func TestInspectProtected(t *testing.T) {
	_, err := New().Inspect(context.Background(), pdftest.Encrypted())
	if err == nil {
		t.Fatal("Inspect() should fail on an encrypted document")
	}
	if !IsProtected(err) {
		t.Errorf("IsProtected(%v) = false", err)
	}
	if errkind.Of(err) != errkind.Protected {
		t.Errorf("errkind.Of() = %q, want %q", errkind.Of(err), errkind.Protected)
	}
	if errkind.Of(err).Retryable() {
		t.Error("protected documents must not be retryable")
	}
}

func TestInspectUnsupportedEncoding(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"unknown content filter", pdftest.UnsupportedFilter()},
		{"not a pdf", []byte("GIF89a not a document")},
		{"empty page tree", pdftest.Build([]string{
			"<< /Type /Catalog /Pages 2 0 R >>",
			"<< /Type /Pages /Kids [] /Count 0 >>",
		}, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Inspect(context.Background(), tt.data)
			if !IsUnsupportedEncoding(err) {
				t.Errorf("Inspect() error = %v, want UnsupportedEncodingError", err)
			}
		})
	}
}

func TestClassifyByMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want errkind.Kind
	}{
		{"file requires a Password", errkind.Protected},
		{"cannot decrypt object 4", errkind.Protected},
		{"ENCRYPTED stream", errkind.Protected},
		{"bad xref", errkind.UnsupportedEncoding},
	}
	for _, tt := range tests {
		if got := classify(errors.New(tt.msg), false).Kind(); got != tt.want {
			t.Errorf("classify(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestInspectHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Inspect(ctx, pdftest.Letter()); !errors.Is(err, context.Canceled) {
		t.Errorf("Inspect() error = %v, want context.Canceled", err)
	}
}

func TestOpenKeepsPageContent(t *testing.T) {
	doc, err := New().Open(context.Background(), pdftest.Letter())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Content) == 0 {
		t.Error("Open() should decode page 1 content")
	}
	if doc.Page == nil || doc.Reader == nil {
		t.Error("Open() should return the parsed page")
	}
}
