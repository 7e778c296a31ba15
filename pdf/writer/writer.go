// Package writer builds complete PDF files from generic objects.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
)

// ErrPageLimit is returned by AddPage once the writer holds MaxPages pages.
var ErrPageLimit = errors.New("page limit reached")

// Producer is written to the document information dictionary.
const Producer = "docqr"

// PdfFileWriter creates new PDF files.
type PdfFileWriter struct {
	Version string
	// MaxPages caps AddPage. Zero means no limit.
	MaxPages int

	objects    map[int]*generic.IndirectObject
	nextObjNum int

	root     *generic.DictionaryObject
	pages    *generic.DictionaryObject
	info     *generic.DictionaryObject
	rootRef  generic.Reference
	pagesRef generic.Reference
	infoRef  generic.Reference
	pageRefs []generic.Reference
}

// NewPdfFileWriter creates a writer with an empty page tree.
func NewPdfFileWriter(version string) *PdfFileWriter {
	if version == "" {
		version = "1.7"
	}
	w := &PdfFileWriter{
		Version:    version,
		objects:    make(map[int]*generic.IndirectObject),
		nextObjNum: 1,
	}

	w.pages = generic.NewDictionary()
	w.pages.Set("Type", generic.NameObject("Pages"))
	w.pages.Set("Kids", generic.ArrayObject{})
	w.pages.Set("Count", generic.IntegerObject(0))
	w.pagesRef = w.AddObject(w.pages)

	w.root = generic.NewDictionary()
	w.root.Set("Type", generic.NameObject("Catalog"))
	w.root.Set("Pages", w.pagesRef)
	w.rootRef = w.AddObject(w.root)

	w.info = generic.NewDictionary()
	w.info.Set("Producer", generic.NewLiteralString(Producer))
	w.info.Set("CreationDate", generic.NewLiteralString(formatPdfDate(time.Now())))
	w.infoRef = w.AddObject(w.info)
	return w
}

// AddObject adds an object and returns its reference.
func (w *PdfFileWriter) AddObject(obj generic.PdfObject) generic.Reference {
	objNum := w.nextObjNum
	w.nextObjNum++
	w.objects[objNum] = generic.NewIndirectObject(objNum, 0, obj)
	return generic.NewReference(objNum, 0)
}

// SetObject replaces the object behind ref.
func (w *PdfFileWriter) SetObject(ref generic.Reference, obj generic.PdfObject) error {
	ind, ok := w.objects[ref.ObjectNumber]
	if !ok {
		return fmt.Errorf("object %v not found", ref)
	}
	ind.Object = obj
	return nil
}

// Object returns the object behind ref, or nil.
func (w *PdfFileWriter) Object(ref generic.Reference) generic.PdfObject {
	if ind, ok := w.objects[ref.ObjectNumber]; ok {
		return ind.Object
	}
	return nil
}

// Root returns the document catalog.
func (w *PdfFileWriter) Root() *generic.DictionaryObject { return w.root }

// SetInfo sets a text entry of the document information dictionary.
func (w *PdfFileWriter) SetInfo(key, value string) {
	w.info.Set(key, generic.NewLiteralString(value))
}

// AddPage appends a page. Contents are Flate-compressed. Resources may be nil.
func (w *PdfFileWriter) AddPage(box *generic.Rectangle, contents []byte, resources *generic.DictionaryObject) (generic.Reference, error) {
	if w.MaxPages > 0 && len(w.pageRefs) >= w.MaxPages {
		return generic.Reference{}, fmt.Errorf("%w: %d", ErrPageLimit, w.MaxPages)
	}
	if box == nil || box.Empty() {
		return generic.Reference{}, fmt.Errorf("page box must have a positive area")
	}

	page := generic.NewDictionary()
	page.Set("Type", generic.NameObject("Page"))
	page.Set("Parent", w.pagesRef)
	page.Set("MediaBox", box.ToArray())
	if resources == nil {
		resources = generic.NewDictionary()
	}
	page.Set("Resources", resources)

	if contents != nil {
		encoded, err := filters.FlateEncode(contents)
		if err != nil {
			return generic.Reference{}, fmt.Errorf("compress page contents: %w", err)
		}
		stream := generic.NewStream(nil, encoded)
		stream.Dictionary.Set("Filter", generic.NameObject("FlateDecode"))
		page.Set("Contents", w.AddObject(stream))
	}

	ref := w.AddObject(page)
	w.pageRefs = append(w.pageRefs, ref)
	w.syncPages()
	return ref, nil
}

// PageCount returns the number of pages.
func (w *PdfFileWriter) PageCount() int {
	return len(w.pageRefs)
}

// Page returns the dictionary of the page at index.
func (w *PdfFileWriter) Page(index int) (*generic.DictionaryObject, error) {
	if index < 0 || index >= len(w.pageRefs) {
		return nil, fmt.Errorf("page index %d out of bounds (%d pages)", index, len(w.pageRefs))
	}
	dict, _ := w.Object(w.pageRefs[index]).(*generic.DictionaryObject)
	return dict, nil
}

// RemovePage removes the page at index along with its direct content stream.
func (w *PdfFileWriter) RemovePage(index int) error {
	page, err := w.Page(index)
	if err != nil {
		return err
	}
	if ref, ok := page.Get("Contents").(generic.Reference); ok {
		delete(w.objects, ref.ObjectNumber)
	}
	delete(w.objects, w.pageRefs[index].ObjectNumber)
	w.pageRefs = append(w.pageRefs[:index], w.pageRefs[index+1:]...)
	w.syncPages()
	return nil
}

// TruncatePages removes trailing pages until at most n remain, removing no
// more than limit pages. It returns the number removed.
func (w *PdfFileWriter) TruncatePages(n, limit int) int {
	removed := 0
	for len(w.pageRefs) > n && removed < limit {
		if err := w.RemovePage(len(w.pageRefs) - 1); err != nil {
			break
		}
		removed++
	}
	return removed
}

func (w *PdfFileWriter) syncPages() {
	kids := make(generic.ArrayObject, len(w.pageRefs))
	for i, ref := range w.pageRefs {
		kids[i] = ref
	}
	w.pages.Set("Kids", kids)
	w.pages.Set("Count", generic.IntegerObject(len(w.pageRefs)))
}

// Write serializes the document. It can be called repeatedly.
func (w *PdfFileWriter) Write(out io.Writer) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", w.Version)
	buf.Write([]byte{0x25, 0xE2, 0xE3, 0xCF, 0xD3, 0x0A})

	offsets := make(map[int]int64, len(w.objects))
	for objNum := 1; objNum < w.nextObjNum; objNum++ {
		obj, ok := w.objects[objNum]
		if !ok {
			continue
		}
		offsets[objNum] = int64(buf.Len())
		if err := obj.Write(&buf); err != nil {
			return fmt.Errorf("write object %d: %w", objNum, err)
		}
	}

	sum := blake2b.Sum256(buf.Bytes())
	fileID := sum[:16]

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", w.nextObjNum)
	buf.WriteString("0000000000 65535 f \n")
	for objNum := 1; objNum < w.nextObjNum; objNum++ {
		if off, ok := offsets[objNum]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 00001 f \n")
		}
	}

	trailer := generic.NewDictionary()
	trailer.Set("Size", generic.IntegerObject(w.nextObjNum))
	trailer.Set("Root", w.rootRef)
	trailer.Set("Info", w.infoRef)
	trailer.Set("ID", generic.ArrayObject{generic.NewHexString(fileID), generic.NewHexString(fileID)})

	buf.WriteString("trailer\n")
	if err := trailer.Write(&buf); err != nil {
		return err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// Bytes returns the serialized document.
func (w *PdfFileWriter) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatPdfDate formats a time as a PDF date string.
func formatPdfDate(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("D:%s%s%02d'%02d'", t.Format("20060102150405"), sign, offset/3600, (offset%3600)/60)
}
