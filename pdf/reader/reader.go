// Package reader parses PDF files: cross-reference data, indirect objects,
// object streams and the page tree.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
)

// Common errors
var (
	ErrInvalidPDF      = errors.New("invalid PDF file")
	ErrNoXRef          = errors.New("no xref found")
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidXRef     = errors.New("invalid xref")
	ErrEncrypted       = errors.New("PDF is encrypted: password required")
	ErrUnsupportedXRef = errors.New("unsupported xref type")
)

// maxPages bounds page tree traversal.
const maxPages = 100000

var headerRegex = regexp.MustCompile(`%PDF-(\d+\.\d+)`)

// PdfFileReader reads and parses PDF files held in memory.
type PdfFileReader struct {
	data    []byte
	xref    map[int]xrefEntry
	objects map[int]generic.PdfObject
	streams map[int]*objectStream
	loading map[int]bool

	Version string
	Trailer *generic.DictionaryObject
	Root    *generic.DictionaryObject
	pages   []*Page

	// Encrypted is set when the trailer carries /Encrypt. Structure may
	// still be readable, but strings and streams are not.
	Encrypted bool
	// HasXRefStream is set when cross-reference streams were used.
	HasXRefStream bool
	// Repaired is set when the cross-reference data had to be rebuilt.
	Repaired bool
}

// Page is a leaf of the page tree with its inherited attributes resolved.
type Page struct {
	Ref       generic.Reference
	Dict      *generic.DictionaryObject
	MediaBox  *generic.Rectangle
	CropBox   *generic.Rectangle
	Resources *generic.DictionaryObject
	Rotate    int
}

// Box returns the visible page box: the crop box clipped to the media box,
// or the media box when there is no usable crop box.
func (p *Page) Box() *generic.Rectangle {
	mb := p.MediaBox
	if p.CropBox == nil {
		return mb
	}
	box := &generic.Rectangle{
		LLX: max(p.CropBox.LLX, mb.LLX),
		LLY: max(p.CropBox.LLY, mb.LLY),
		URX: min(p.CropBox.URX, mb.URX),
		URY: min(p.CropBox.URY, mb.URY),
	}
	if box.Empty() {
		return mb
	}
	return box
}

// NewPdfFileReader reads all of r and parses it.
func NewPdfFileReader(r io.Reader) (*PdfFileReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF data: %w", err)
	}
	return NewPdfFileReaderFromBytes(data)
}

// NewPdfFileReaderFromBytes parses a PDF held in data. The slice is
// retained and must not be modified.
func NewPdfFileReaderFromBytes(data []byte) (*PdfFileReader, error) {
	r := &PdfFileReader{
		data:    data,
		xref:    make(map[int]xrefEntry),
		objects: make(map[int]generic.PdfObject),
		streams: make(map[int]*objectStream),
		loading: make(map[int]bool),
	}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PdfFileReader) parse() error {
	head := r.data[:min(1024, len(r.data))]
	m := headerRegex.FindSubmatch(head)
	if m == nil {
		return fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}
	r.Version = string(m[1])

	err := r.loadXRef()
	if errors.Is(err, ErrUnsupportedXRef) {
		return err
	}
	if err == nil {
		r.Encrypted = r.Trailer.Has("Encrypt")
		err = r.loadStructure()
	}
	if err != nil {
		if r.Encrypted {
			return fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		if rerr := r.rebuildXRef(); rerr != nil {
			return fmt.Errorf("%w (repair failed: %v)", err, rerr)
		}
		r.Repaired = true
		r.Encrypted = r.Trailer.Has("Encrypt")
		if err := r.loadStructure(); err != nil {
			if r.Encrypted {
				return fmt.Errorf("%w: %v", ErrEncrypted, err)
			}
			return err
		}
	}
	return nil
}

func (r *PdfFileReader) loadStructure() error {
	root, err := r.ResolveDict(r.Trailer.Get("Root"))
	if err != nil || root == nil {
		return fmt.Errorf("%w: missing document catalog: %v", ErrInvalidPDF, err)
	}
	r.Root = root
	r.pages = nil
	return r.loadPages()
}

type inherited struct {
	mediaBox  *generic.Rectangle
	cropBox   *generic.Rectangle
	resources *generic.DictionaryObject
	rotate    int
}

func (r *PdfFileReader) loadPages() error {
	pagesRef, ok := r.Root.Get("Pages").(generic.Reference)
	if !ok {
		return fmt.Errorf("%w: missing /Pages reference", ErrInvalidPDF)
	}
	visited := make(map[int]bool)
	return r.walkPages(pagesRef, inherited{}, visited, 0)
}

func (r *PdfFileReader) walkPages(ref generic.Reference, inh inherited, visited map[int]bool, depth int) error {
	if visited[ref.ObjectNumber] {
		return fmt.Errorf("%w: page tree cycle at %v", ErrInvalidPDF, ref)
	}
	if depth > 64 || len(r.pages) >= maxPages {
		return fmt.Errorf("%w: page tree too large", ErrInvalidPDF)
	}
	visited[ref.ObjectNumber] = true

	node, err := r.ResolveDict(ref)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: page tree node %v is not a dictionary", ErrInvalidPDF, ref)
	}

	if box, err := r.rect(node.Get("MediaBox")); err == nil && box != nil {
		inh.mediaBox = box
	}
	if box, err := r.rect(node.Get("CropBox")); err == nil && box != nil {
		inh.cropBox = box
	}
	if res, err := r.ResolveDict(node.Get("Resources")); err == nil && res != nil {
		inh.resources = res
	}
	if rot, err := r.Resolve(node.Get("Rotate")); err == nil {
		if n, ok := rot.(generic.IntegerObject); ok {
			inh.rotate = int(n)
		}
	}

	kidsObj, err := r.Resolve(node.Get("Kids"))
	if err != nil {
		return err
	}
	kids, isTree := kidsObj.(generic.ArrayObject)
	if node.GetName("Type") == "Page" || !isTree {
		mb := inh.mediaBox
		if mb == nil || mb.Empty() {
			mb = &generic.Rectangle{URX: 612, URY: 792}
		}
		r.pages = append(r.pages, &Page{
			Ref:       ref,
			Dict:      node,
			MediaBox:  mb,
			CropBox:   inh.cropBox,
			Resources: inh.resources,
			Rotate:    ((inh.rotate % 360) + 360) % 360,
		})
		return nil
	}

	for _, kid := range kids {
		kref, ok := kid.(generic.Reference)
		if !ok {
			continue
		}
		if err := r.walkPages(kref, inh, visited, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (r *PdfFileReader) rect(obj generic.PdfObject) (*generic.Rectangle, error) {
	obj, err := r.Resolve(obj)
	if err != nil || obj == nil {
		return nil, err
	}
	arr, ok := obj.(generic.ArrayObject)
	if !ok {
		return nil, fmt.Errorf("%w: box is not an array", ErrInvalidPDF)
	}
	resolved := make(generic.ArrayObject, len(arr))
	for i, v := range arr {
		if resolved[i], err = r.Resolve(v); err != nil {
			return nil, err
		}
	}
	return generic.NewRectangle(resolved)
}

// GetObject retrieves an object by number.
func (r *PdfFileReader) GetObject(objNum int) (generic.PdfObject, error) {
	if obj, ok := r.objects[objNum]; ok {
		return obj, nil
	}
	entry, ok := r.xref[objNum]
	if !ok || !entry.inUse {
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, objNum)
	}
	if r.loading[objNum] {
		return nil, fmt.Errorf("%w: reference cycle at object %d", ErrInvalidPDF, objNum)
	}
	r.loading[objNum] = true
	defer delete(r.loading, objNum)

	var obj generic.PdfObject
	var err error
	if entry.stream > 0 {
		obj, err = r.objectFromStream(entry.stream, entry.index, objNum)
	} else {
		obj, err = r.objectAt(entry.offset, objNum)
	}
	if err != nil {
		return nil, err
	}
	r.objects[objNum] = obj
	return obj, nil
}

func (r *PdfFileReader) objectAt(offset int64, objNum int) (generic.PdfObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrObjectNotFound, objNum)
	}
	p := generic.NewParserFromBytes(r.data[offset:])
	p.ResolveLength = r.resolveLength
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}
	if ind.ObjectNumber != objNum {
		return nil, fmt.Errorf("%w: expected object %d at %d, found %d", ErrInvalidXRef, objNum, offset, ind.ObjectNumber)
	}
	return ind.Object, nil
}

func (r *PdfFileReader) resolveLength(ref generic.Reference) (int64, bool) {
	obj, err := r.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(generic.IntegerObject)
	return int64(n), ok && n >= 0
}

// objectStream is a decoded /Type /ObjStm stream.
type objectStream struct {
	data    []byte
	first   int
	nums    []int
	offsets []int
}

func (r *PdfFileReader) objectFromStream(streamNum, index, objNum int) (generic.PdfObject, error) {
	stm, ok := r.streams[streamNum]
	if !ok {
		obj, err := r.GetObject(streamNum)
		if err != nil {
			return nil, err
		}
		stream, ok := obj.(*generic.StreamObject)
		if !ok {
			return nil, fmt.Errorf("%w: object stream %d is not a stream", ErrInvalidPDF, streamNum)
		}
		data, err := r.DecodeStream(stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
		}
		n, _ := stream.Dictionary.GetInt("N")
		first, _ := stream.Dictionary.GetInt("First")
		if first < 0 || int(first) > len(data) {
			return nil, fmt.Errorf("%w: object stream %d has bad /First", ErrInvalidPDF, streamNum)
		}

		stm = &objectStream{data: data, first: int(first)}
		p := generic.NewParserFromBytes(data[:first])
		for i := int64(0); i < n; i++ {
			a, err1 := p.ParseObject()
			b, err2 := p.ParseObject()
			na, ok1 := a.(generic.IntegerObject)
			nb, ok2 := b.(generic.IntegerObject)
			if err1 != nil || err2 != nil || !ok1 || !ok2 {
				break
			}
			stm.nums = append(stm.nums, int(na))
			stm.offsets = append(stm.offsets, int(nb))
		}
		r.streams[streamNum] = stm
	}

	if index < 0 || index >= len(stm.offsets) || stm.nums[index] != objNum {
		// Index hints are sometimes wrong; fall back to a search.
		index = -1
		for i, n := range stm.nums {
			if n == objNum {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("%w: %d in object stream %d", ErrObjectNotFound, objNum, streamNum)
		}
	}
	start := stm.first + stm.offsets[index]
	if start < 0 || start >= len(stm.data) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrInvalidPDF, objNum)
	}
	return generic.NewParserFromBytes(stm.data[start:]).ParseObjectOrReference()
}

// Resolve follows references until a direct object is reached. A nil or
// dangling reference resolves to nil without error, as PDF treats it as null.
func (r *PdfFileReader) Resolve(obj generic.PdfObject) (generic.PdfObject, error) {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(generic.Reference)
		if !ok {
			return obj, nil
		}
		next, err := r.GetObject(ref.ObjectNumber)
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("%w: reference chain too long", ErrInvalidPDF)
}

// ResolveDict resolves obj and returns it as a dictionary. A stream yields
// its dictionary. Anything else yields nil.
func (r *PdfFileReader) ResolveDict(obj generic.PdfObject) (*generic.DictionaryObject, error) {
	obj, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case *generic.DictionaryObject:
		return v, nil
	case *generic.StreamObject:
		return v.Dictionary, nil
	}
	return nil, nil
}

// DecodeStream returns the decoded data of a stream. Unknown filters fail
// with filters.ErrUnsupportedFilter.
func (r *PdfFileReader) DecodeStream(s *generic.StreamObject) ([]byte, error) {
	if r.Encrypted {
		return nil, ErrEncrypted
	}
	parms, err := r.Resolve(s.Dictionary.Get("DecodeParms"))
	if err != nil {
		return nil, err
	}
	return filters.Decode(s.Data, s.Filters(), decodeParams(parms))
}

func decodeParams(obj generic.PdfObject) []filters.Params {
	toParams := func(o generic.PdfObject) filters.Params {
		d, ok := o.(*generic.DictionaryObject)
		if !ok {
			return nil
		}
		p := filters.Params{}
		for _, k := range d.Keys() {
			if n, ok := d.Get(k).(generic.IntegerObject); ok {
				p[k] = int(n)
			}
		}
		return p
	}
	switch v := obj.(type) {
	case *generic.DictionaryObject:
		return []filters.Params{toParams(v)}
	case generic.ArrayObject:
		out := make([]filters.Params, len(v))
		for i, item := range v {
			out[i] = toParams(item)
		}
		return out
	}
	return nil
}

// GetPageCount returns the number of pages.
func (r *PdfFileReader) GetPageCount() int {
	return len(r.pages)
}

// GetPage returns a page by zero-based index.
func (r *PdfFileReader) GetPage(index int) (*Page, error) {
	if index < 0 || index >= len(r.pages) {
		return nil, fmt.Errorf("page index %d out of bounds (%d pages)", index, len(r.pages))
	}
	return r.pages[index], nil
}

// PageContent returns the decoded content of a page. Multiple content
// streams are joined with a newline.
func (r *PdfFileReader) PageContent(page *Page) ([]byte, error) {
	obj, err := r.Resolve(page.Dict.Get("Contents"))
	if err != nil {
		return nil, err
	}

	var parts []generic.PdfObject
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case *generic.StreamObject:
		parts = []generic.PdfObject{v}
	case generic.ArrayObject:
		parts = v
	default:
		return nil, fmt.Errorf("%w: page /Contents is %T", ErrInvalidPDF, obj)
	}

	var buf bytes.Buffer
	for _, part := range parts {
		resolved, err := r.Resolve(part)
		if err != nil {
			return nil, err
		}
		s, ok := resolved.(*generic.StreamObject)
		if !ok {
			continue
		}
		data, err := r.DecodeStream(s)
		if err != nil {
			return nil, err
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Data returns the raw file bytes.
func (r *PdfFileReader) Data() []byte {
	return r.data
}
