package writer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/reader"
)

func a4() *generic.Rectangle {
	return &generic.Rectangle{URX: 595, URY: 842}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewPdfFileWriter("")
	res := generic.NewDictionary()
	res.Set("ProcSet", generic.ArrayObject{generic.NameObject("PDF")})
	if _, err := w.AddPage(a4(), []byte("0 0 1 rg 10 10 50 50 re f"), res); err != nil {
		t.Fatalf("AddPage() error = %v", err)
	}
	if _, err := w.AddPage(&generic.Rectangle{URX: 612, URY: 792}, nil, nil); err != nil {
		t.Fatalf("AddPage() error = %v", err)
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7\n")) {
		t.Errorf("missing header: %q", data[:16])
	}

	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if r.Repaired {
		t.Error("written xref needed repair")
	}
	if r.GetPageCount() != 2 {
		t.Fatalf("GetPageCount() = %d, want 2", r.GetPageCount())
	}
	page, _ := r.GetPage(0)
	content, err := r.PageContent(page)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "0 0 1 rg 10 10 50 50 re f" {
		t.Errorf("PageContent() = %q", content)
	}
	if page.Resources == nil || page.Resources.GetArray("ProcSet") == nil {
		t.Error("resources were not written")
	}
	if r.Trailer.GetArray("ID") == nil {
		t.Error("trailer is missing /ID")
	}
}

func TestWriterWriteIsRepeatable(t *testing.T) {
	w := NewPdfFileWriter("1.6")
	if _, err := w.AddPage(a4(), []byte("q Q"), nil); err != nil {
		t.Fatal(err)
	}
	first, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	second, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Write() output changed between calls")
	}
}

func TestWriterPageLimit(t *testing.T) {
	w := NewPdfFileWriter("")
	w.MaxPages = 1
	if _, err := w.AddPage(a4(), nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddPage(a4(), nil, nil); !errors.Is(err, ErrPageLimit) {
		t.Errorf("second AddPage() error = %v, want ErrPageLimit", err)
	}
	if w.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", w.PageCount())
	}
}

func TestWriterRejectsEmptyBox(t *testing.T) {
	w := NewPdfFileWriter("")
	if _, err := w.AddPage(&generic.Rectangle{URX: 100}, nil, nil); err == nil {
		t.Error("expected an error for a zero-height page")
	}
	if _, err := w.AddPage(nil, nil, nil); err == nil {
		t.Error("expected an error for a nil page box")
	}
}

func TestWriterTruncatePages(t *testing.T) {
	w := NewPdfFileWriter("")
	for i := 0; i < 5; i++ {
		if _, err := w.AddPage(a4(), []byte("q Q"), nil); err != nil {
			t.Fatal(err)
		}
	}

	if got := w.TruncatePages(1, 2); got != 2 {
		t.Errorf("TruncatePages(1, 2) = %d, want 2", got)
	}
	if w.PageCount() != 3 {
		t.Errorf("PageCount() = %d, want 3", w.PageCount())
	}
	if got := w.TruncatePages(1, 10); got != 2 {
		t.Errorf("TruncatePages(1, 10) = %d, want 2", got)
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "0000000000 00001 f \n") {
		t.Error("removed objects should be written as free entries")
	}
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if r.GetPageCount() != 1 {
		t.Errorf("GetPageCount() = %d, want 1", r.GetPageCount())
	}
}

func TestWriterSetObject(t *testing.T) {
	w := NewPdfFileWriter("")
	ref := w.AddObject(generic.IntegerObject(1))
	if err := w.SetObject(ref, generic.IntegerObject(2)); err != nil {
		t.Fatal(err)
	}
	if got := w.Object(ref); got != generic.IntegerObject(2) {
		t.Errorf("Object() = %v, want 2", got)
	}
	if err := w.SetObject(generic.NewReference(999, 0), generic.NullObject{}); err == nil {
		t.Error("SetObject() on an unknown reference should fail")
	}
}

func TestFormatPdfDate(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.FixedZone("", -(5*3600 + 30*60)))
	if got, want := formatPdfDate(ts), "D:20240305140709-05'30'"; got != want {
		t.Errorf("formatPdfDate() = %q, want %q", got, want)
	}
}
