package reader

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
)

// xrefEntry locates one object. Objects stored in an object stream have a
// non-zero stream number.
type xrefEntry struct {
	offset     int64
	generation int
	inUse      bool
	stream     int
	index      int
}

// maxXRefSections bounds the /Prev chain.
const maxXRefSections = 1024

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func (r *PdfFileReader) skipSpace(pos int) int {
	for pos < len(r.data) && isSpace(r.data[pos]) {
		pos++
	}
	return pos
}

// readInt reads an unsigned decimal integer at pos.
func (r *PdfFileReader) readInt(pos int) (int64, int, bool) {
	start := pos
	for pos < len(r.data) && r.data[pos] >= '0' && r.data[pos] <= '9' {
		pos++
	}
	if start == pos {
		return 0, pos, false
	}
	v, err := strconv.ParseInt(string(r.data[start:pos]), 10, 64)
	return v, pos, err == nil
}

// loadXRef follows startxref and the /Prev chain. Earlier sections never
// override entries from later ones.
func (r *PdfFileReader) loadXRef() error {
	idx := bytes.LastIndex(r.data, []byte("startxref"))
	if idx < 0 {
		return ErrNoXRef
	}
	offset, _, ok := r.readInt(r.skipSpace(idx + len("startxref")))
	if !ok {
		return fmt.Errorf("%w: missing startxref offset", ErrInvalidXRef)
	}

	visited := make(map[int64]bool)
	for n := 0; n < maxXRefSections && !visited[offset]; n++ {
		visited[offset] = true
		if offset >= int64(len(r.data)) {
			return fmt.Errorf("%w: offset %d out of bounds", ErrInvalidXRef, offset)
		}

		pos := r.skipSpace(int(offset))
		var trailer *generic.DictionaryObject
		var err error
		if bytes.HasPrefix(r.data[pos:], []byte("xref")) {
			trailer, err = r.parseXRefTable(pos + len("xref"))
		} else {
			trailer, err = r.parseXRefStream(pos)
			r.HasXRefStream = true
		}
		if err != nil {
			return err
		}
		if r.Trailer == nil {
			r.Trailer = trailer
		}

		// Hybrid files point at an additional xref stream.
		if stm, ok := trailer.GetInt("XRefStm"); ok && !visited[stm] {
			visited[stm] = true
			if _, err := r.parseXRefStream(r.skipSpace(int(stm))); err != nil {
				return err
			}
			r.HasXRefStream = true
		}

		prev, ok := trailer.GetInt("Prev")
		if !ok || prev <= 0 {
			break
		}
		offset = prev
	}
	if r.Trailer == nil {
		return ErrNoXRef
	}
	return nil
}

func (r *PdfFileReader) addEntry(objNum int, e xrefEntry) {
	if _, exists := r.xref[objNum]; !exists {
		r.xref[objNum] = e
	}
}

// parseXRefTable parses a classic table starting after the "xref" keyword.
func (r *PdfFileReader) parseXRefTable(pos int) (*generic.DictionaryObject, error) {
	for {
		pos = r.skipSpace(pos)
		if bytes.HasPrefix(r.data[pos:], []byte("trailer")) {
			pos += len("trailer")
			break
		}

		start, p, ok := r.readInt(pos)
		if !ok {
			return nil, fmt.Errorf("%w: bad subsection header at %d", ErrInvalidXRef, pos)
		}
		for p < len(r.data) && (r.data[p] == ' ' || r.data[p] == '\t') {
			p++
		}
		count, p, ok := r.readInt(p)
		if !ok {
			return nil, fmt.Errorf("%w: bad subsection count at %d", ErrInvalidXRef, p)
		}
		pos = p

		for i := int64(0); i < count; i++ {
			pos = r.skipSpace(pos)
			off, p, ok := r.readInt(pos)
			if !ok {
				return nil, fmt.Errorf("%w: bad entry offset at %d", ErrInvalidXRef, pos)
			}
			p = r.skipSpace(p)
			gen, p, ok := r.readInt(p)
			if !ok {
				return nil, fmt.Errorf("%w: bad entry generation at %d", ErrInvalidXRef, p)
			}
			p = r.skipSpace(p)
			if p >= len(r.data) || (r.data[p] != 'n' && r.data[p] != 'f') {
				return nil, fmt.Errorf("%w: bad entry type at %d", ErrInvalidXRef, p)
			}
			r.addEntry(int(start+i), xrefEntry{offset: off, generation: int(gen), inUse: r.data[p] == 'n'})
			pos = p + 1
		}
	}

	obj, err := generic.NewParserFromBytes(r.data[pos:]).ParseObject()
	if err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrInvalidXRef, err)
	}
	dict, ok := obj.(*generic.DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: trailer is not a dictionary", ErrInvalidXRef)
	}
	return dict, nil
}

// parseXRefStream parses a cross-reference stream object at pos.
func (r *PdfFileReader) parseXRefStream(pos int) (*generic.DictionaryObject, error) {
	p := generic.NewParserFromBytes(r.data[pos:])
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("%w: xref stream: %v", ErrInvalidXRef, err)
	}
	stream, ok := ind.Object.(*generic.StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, fmt.Errorf("%w: no xref table or stream at %d", ErrInvalidXRef, pos)
	}
	dict := stream.Dictionary

	data, err := filters.Decode(stream.Data, stream.Filters(), decodeParams(dict.Get("DecodeParms")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedXRef, err)
	}

	wArr := dict.GetArray("W")
	if len(wArr) != 3 {
		return nil, fmt.Errorf("%w: bad /W", ErrInvalidXRef)
	}
	var w [3]int
	for i, v := range wArr {
		n, ok := v.(generic.IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("%w: bad /W", ErrInvalidXRef)
		}
		w[i] = int(n)
	}
	size := w[0] + w[1] + w[2]
	if size == 0 {
		return nil, fmt.Errorf("%w: zero entry size", ErrInvalidXRef)
	}

	var index []int64
	if arr := dict.GetArray("Index"); arr != nil {
		for _, v := range arr {
			if n, ok := v.(generic.IntegerObject); ok {
				index = append(index, int64(n))
			}
		}
	} else if n, ok := dict.GetInt("Size"); ok {
		index = []int64{0, n}
	}

	field := func(b []byte) int64 {
		var v int64
		for _, c := range b {
			v = v<<8 | int64(c)
		}
		return v
	}

	at := 0
	for i := 0; i+1 < len(index); i += 2 {
		for j := int64(0); j < index[i+1] && at+size <= len(data); j++ {
			row := data[at : at+size]
			at += size

			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])

			objNum := int(index[i] + j)
			switch typ {
			case 0:
				r.addEntry(objNum, xrefEntry{generation: int(f3)})
			case 1:
				r.addEntry(objNum, xrefEntry{offset: f2, generation: int(f3), inUse: true})
			case 2:
				r.addEntry(objNum, xrefEntry{stream: int(f2), index: int(f3), inUse: true})
			}
		}
	}
	return dict, nil
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuildXRef scans the whole file for object headers. It is used when the
// cross-reference data is missing or damaged.
func (r *PdfFileReader) rebuildXRef() error {
	r.xref = make(map[int]xrefEntry)
	r.objects = make(map[int]generic.PdfObject)
	r.Trailer = nil

	for _, m := range objHeader.FindAllSubmatchIndex(r.data, -1) {
		num, err1 := strconv.Atoi(string(r.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(r.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		// Later definitions win, as with incremental updates.
		r.xref[num] = xrefEntry{offset: int64(m[2]), generation: gen, inUse: true}
	}
	if len(r.xref) == 0 {
		return fmt.Errorf("%w: no objects found", ErrInvalidPDF)
	}

	if idx := bytes.LastIndex(r.data, []byte("trailer")); idx >= 0 {
		obj, err := generic.NewParserFromBytes(r.data[idx+len("trailer"):]).ParseObject()
		if dict, ok := obj.(*generic.DictionaryObject); err == nil && ok && dict.Has("Root") {
			r.Trailer = dict
			return nil
		}
	}

	for num := range r.xref {
		obj, err := r.GetObject(num)
		if err != nil {
			continue
		}
		dict, ok := obj.(*generic.DictionaryObject)
		if ok && dict.GetName("Type") == "Catalog" {
			r.Trailer = generic.NewDictionary()
			r.Trailer.Set("Root", generic.NewReference(num, r.xref[num].generation))
			return nil
		}
		if s, ok := obj.(*generic.StreamObject); ok && s.Dictionary.GetName("Type") == "XRef" && s.Dictionary.Has("Root") {
			r.Trailer = s.Dictionary
			return nil
		}
	}
	return fmt.Errorf("%w: no document catalog found", ErrInvalidPDF)
}
