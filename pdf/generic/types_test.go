package generic

import (
	"bytes"
	"testing"
)

func writeString(t *testing.T, obj PdfObject) string {
	t.Helper()
	var buf bytes.Buffer
	if err := obj.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	return buf.String()
}

func TestWriteObjects(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Type", NameObject("XObject"))
	dict.Set("BBox", ArrayObject{RealObject(0), RealObject(0), RealObject(612.5), IntegerObject(792)})

	tests := []struct {
		name string
		obj  PdfObject
		want string
	}{
		{"null", NullObject{}, "null"},
		{"bool", BooleanObject(true), "true"},
		{"integer", IntegerObject(-12), "-12"},
		{"real", RealObject(51.4285714), "51.4286"},
		{"real whole", RealObject(100), "100"},
		{"real tiny", RealObject(1e-7), "0"},
		{"negative zero", RealObject(-0.00001), "0"},
		{"name escape", NameObject("A B/C"), "/A#20B#2FC"},
		{"literal", NewLiteralString("a(b)\\"), `(a\(b\)\\)`},
		{"hex", NewHexString([]byte{0xde, 0xad}), "<dead>"},
		{"reference", NewReference(12, 0), "12 0 R"},
		{"dictionary", dict, "<<\n/Type /XObject\n/BBox [0 0 612.5 792]\n>>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.obj); got != tt.want {
				t.Errorf("Write() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoundTripThroughParser(t *testing.T) {
	dict := NewDictionary()
	dict.Set("Name", NewLiteralString("odd (text) \\ \n"))
	dict.Set("Ref", NewReference(3, 0))
	dict.Set("Nums", ArrayObject{IntegerObject(1), RealObject(2.5)})

	obj, err := NewParserFromBytes([]byte(writeString(t, dict))).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	got := obj.(*DictionaryObject)
	if s := got.Get("Name").(*StringObject); string(s.Value) != "odd (text) \\ \n" {
		t.Errorf("Name = %q", s.Value)
	}
	if got.Get("Ref") != NewReference(3, 0) {
		t.Errorf("Ref = %v", got.Get("Ref"))
	}
}

func TestDictionaryOrderAndDelete(t *testing.T) {
	d := NewDictionary()
	d.Set("B", IntegerObject(1))
	d.Set("A", IntegerObject(2))
	d.Set("C", IntegerObject(3))
	d.Delete("A")
	d.Set("B", IntegerObject(4))
	d.Set("D", nil)

	keys := d.Keys()
	if len(keys) != 2 || keys[0] != "B" || keys[1] != "C" {
		t.Errorf("Keys() = %v, want [B C]", keys)
	}
	if v, _ := d.GetInt("B"); v != 4 {
		t.Errorf("B = %d, want 4", v)
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewDictionary()
	inner.Set("K", IntegerObject(1))
	outer := NewDictionary()
	outer.Set("Inner", inner)
	s := NewStream(outer, []byte("data"))

	c := s.Clone().(*StreamObject)
	c.Dictionary.GetDict("Inner").Set("K", IntegerObject(2))
	c.Data[0] = 'X'

	if v, _ := inner.GetInt("K"); v != 1 {
		t.Errorf("original mutated through clone: K = %d", v)
	}
	if string(s.Data) != "data" {
		t.Errorf("original data mutated: %q", s.Data)
	}
}

func TestStreamFilters(t *testing.T) {
	s := NewStream(nil, nil)
	if f := s.Filters(); f != nil {
		t.Errorf("Filters() = %v, want nil", f)
	}
	s.Dictionary.Set("Filter", NameObject("FlateDecode"))
	if f := s.Filters(); len(f) != 1 || f[0] != "FlateDecode" {
		t.Errorf("Filters() = %v", f)
	}
	s.Dictionary.Set("Filter", ArrayObject{NameObject("ASCII85Decode"), NameObject("FlateDecode")})
	if f := s.Filters(); len(f) != 2 || f[1] != "FlateDecode" {
		t.Errorf("Filters() = %v", f)
	}
}

func TestRectangle(t *testing.T) {
	r, err := NewRectangle(ArrayObject{IntegerObject(612), RealObject(792), IntegerObject(0), IntegerObject(0)})
	if err != nil {
		t.Fatalf("NewRectangle failed: %v", err)
	}
	if r.LLX != 0 || r.URY != 792 || r.Width() != 612 || r.Height() != 792 {
		t.Errorf("rectangle not normalized: %+v", r)
	}
	if r.Empty() {
		t.Error("Empty() = true, want false")
	}
	if _, err := NewRectangle(ArrayObject{IntegerObject(1)}); err == nil {
		t.Error("expected error for short array")
	}
	if _, err := NewRectangle(ArrayObject{IntegerObject(1), NameObject("x"), IntegerObject(1), IntegerObject(1)}); err == nil {
		t.Error("expected error for non-numeric element")
	}
}
