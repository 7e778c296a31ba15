package stamp

import (
	"fmt"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/reader"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/writer"
)

// maxCopyDepth bounds nesting of direct objects while copying.
const maxCopyDepth = 256

// importer copies objects from a source document into a writer, giving each
// referenced object a new number exactly once.
type importer struct {
	r    *reader.PdfFileReader
	w    *writer.PdfFileWriter
	refs map[int]generic.Reference
}

func newImporter(r *reader.PdfFileReader, w *writer.PdfFileWriter) *importer {
	return &importer{r: r, w: w, refs: make(map[int]generic.Reference)}
}

func (im *importer) copy(obj generic.PdfObject, depth int) (generic.PdfObject, error) {
	if depth > maxCopyDepth {
		return nil, fmt.Errorf("object nesting exceeds %d levels", maxCopyDepth)
	}
	switch v := obj.(type) {
	case nil:
		return generic.NullObject{}, nil
	case generic.Reference:
		if ref, ok := im.refs[v.ObjectNumber]; ok {
			return ref, nil
		}
		// Reserve the number first so cycles resolve to it.
		ref := im.w.AddObject(generic.NullObject{})
		im.refs[v.ObjectNumber] = ref
		target, err := im.r.GetObject(v.ObjectNumber)
		if err != nil {
			return ref, nil
		}
		copied, err := im.copy(target, depth+1)
		if err != nil {
			return nil, err
		}
		if err := im.w.SetObject(ref, copied); err != nil {
			return nil, err
		}
		return ref, nil
	case *generic.DictionaryObject:
		out := generic.NewDictionary()
		for _, key := range v.Keys() {
			// Parent links would drag in the source page tree.
			if key == "Parent" {
				continue
			}
			c, err := im.copy(v.Get(key), depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(key, c)
		}
		return out, nil
	case generic.ArrayObject:
		out := make(generic.ArrayObject, len(v))
		for i, item := range v {
			c, err := im.copy(item, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case *generic.StreamObject:
		d, err := im.copy(v.Dictionary, depth+1)
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return generic.NewStream(d.(*generic.DictionaryObject), data), nil
	default:
		return obj.Clone(), nil
	}
}

// pageMatrix maps the page box of a page with the given /Rotate onto an
// upright box with its lower-left corner at the origin, as viewers display
// it. It also returns the displayed size.
func pageMatrix(box *generic.Rectangle, rotate int) ([6]float64, float64, float64) {
	w, h := box.Width(), box.Height()
	llx, lly := box.LLX, box.LLY
	switch rotate {
	case 90:
		return [6]float64{0, -1, 1, 0, -lly, llx + w}, h, w
	case 180:
		return [6]float64{-1, 0, 0, -1, llx + w, lly + h}, w, h
	case 270:
		return [6]float64{0, 1, -1, 0, lly + h, -llx}, h, w
	default:
		return [6]float64{1, 0, 0, 1, -llx, -lly}, w, h
	}
}

// importedPage is page 1 of a source, stored as a Form XObject.
type importedPage struct {
	Ref    generic.Reference
	Matrix [6]float64
	// Width and Height are the displayed size in points.
	Width, Height float64
}

// importPage stores page as a Form XObject in w. The decoded content is
// re-compressed with Flate; resources are deep-copied.
func importPage(w *writer.PdfFileWriter, r *reader.PdfFileReader, page *reader.Page, content []byte) (*importedPage, error) {
	box := page.Box()
	im := newImporter(r, w)

	res := generic.PdfObject(generic.NewDictionary())
	if page.Resources != nil {
		var err error
		if res, err = im.copy(page.Resources, 0); err != nil {
			return nil, fmt.Errorf("copy page resources: %w", err)
		}
	}

	encoded, err := filters.FlateEncode(content)
	if err != nil {
		return nil, fmt.Errorf("compress page content: %w", err)
	}
	dict := generic.NewDictionary()
	dict.Set("Type", generic.NameObject("XObject"))
	dict.Set("Subtype", generic.NameObject("Form"))
	dict.Set("BBox", box.ToArray())
	dict.Set("Resources", res)
	dict.Set("Filter", generic.NameObject("FlateDecode"))

	m, dw, dh := pageMatrix(box, page.Rotate)
	return &importedPage{
		Ref:    w.AddObject(generic.NewStream(dict, encoded)),
		Matrix: m,
		Width:  dw,
		Height: dh,
	}, nil
}
