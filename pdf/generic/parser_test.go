package generic

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseScalars(t *testing.T) {
	tests := []struct {
		input string
		want  PdfObject
	}{
		{"null", NullObject{}},
		{"true", BooleanObject(true)},
		{"false", BooleanObject(false)},
		{"42", IntegerObject(42)},
		{"-123", IntegerObject(-123)},
		{"+7", IntegerObject(7)},
		{"3.5", RealObject(3.5)},
		{"-.25", RealObject(-0.25)},
		{"/Type", NameObject("Type")},
		{"/A#20B", NameObject("A B")},
	}

	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		if obj != tt.want {
			t.Errorf("ParseObject(%q) = %#v, want %#v", tt.input, obj, tt.want)
		}
	}
}

func TestParseStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
		hex   bool
	}{
		{"(Hello)", "Hello", false},
		{"(a (nested) b)", "a (nested) b", false},
		{`(esc \( \) \\ \n)`, "esc ( ) \\ \n", false},
		{`(\101\102)`, "AB", false},
		{"<48656C6C6F>", "Hello", true},
		{"<48 65 6>", "He`", true},
	}

	for _, tt := range tests {
		obj, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if err != nil {
			t.Fatalf("ParseObject(%q) failed: %v", tt.input, err)
		}
		s, ok := obj.(*StringObject)
		if !ok {
			t.Fatalf("ParseObject(%q) = %T, want *StringObject", tt.input, obj)
		}
		if string(s.Value) != tt.want || s.IsHex != tt.hex {
			t.Errorf("ParseObject(%q) = %q (hex %v), want %q (hex %v)", tt.input, s.Value, s.IsHex, tt.want, tt.hex)
		}
	}
}

func TestParseDictionaryWithReferences(t *testing.T) {
	input := "<< /Type /Page /Parent 3 0 R /MediaBox [0 0 612 792] /Rotate 0 /Kids [4 0 R 5 0 R] /Empty null >>"
	obj, err := NewParserFromBytes([]byte(input)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	dict, ok := obj.(*DictionaryObject)
	if !ok {
		t.Fatalf("got %T, want *DictionaryObject", obj)
	}

	if got := dict.GetName("Type"); got != "Page" {
		t.Errorf("Type = %q, want Page", got)
	}
	if got := dict.Get("Parent"); got != NewReference(3, 0) {
		t.Errorf("Parent = %v, want 3 0 R", got)
	}
	if kids := dict.GetArray("Kids"); len(kids) != 2 || kids[1] != NewReference(5, 0) {
		t.Errorf("Kids = %v, want [4 0 R 5 0 R]", kids)
	}
	if dict.Has("Empty") {
		t.Error("null entries should be dropped")
	}
	if r, _ := dict.GetInt("Rotate"); r != 0 {
		t.Errorf("Rotate = %d, want 0", r)
	}
}

func TestParseArrayNumbersAreNotReferences(t *testing.T) {
	obj, err := NewParserFromBytes([]byte("[1 2 3 0 R 4]")).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	want := ArrayObject{IntegerObject(1), IntegerObject(2), NewReference(3, 0), IntegerObject(4)}
	got := obj.(ArrayObject)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"<< /A 1", ErrInvalidDictionary},
		{"[1 2", ErrInvalidArray},
		{"(open", ErrInvalidString},
		{"<4G>", ErrInvalidString},
		{"bogus", ErrInvalidObject},
	}
	for _, tt := range tests {
		_, err := NewParserFromBytes([]byte(tt.input)).ParseObject()
		if !errors.Is(err, tt.want) {
			t.Errorf("ParseObject(%q) error = %v, want %v", tt.input, err, tt.want)
		}
	}
}

func TestParseNestingLimit(t *testing.T) {
	input := bytes.Repeat([]byte("["), maxNesting+1)
	if _, err := NewParserFromBytes(input).ParseObject(); err == nil {
		t.Error("expected nesting error")
	}
}

func TestParseIndirectStream(t *testing.T) {
	input := "7 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	obj, err := NewParserFromBytes([]byte(input)).ParseIndirectObject()
	if err != nil {
		t.Fatalf("ParseIndirectObject failed: %v", err)
	}
	if obj.ObjectNumber != 7 {
		t.Errorf("ObjectNumber = %d, want 7", obj.ObjectNumber)
	}
	s, ok := obj.Object.(*StreamObject)
	if !ok {
		t.Fatalf("Object = %T, want *StreamObject", obj.Object)
	}
	if string(s.Data) != "hello" {
		t.Errorf("Data = %q, want hello", s.Data)
	}
}

func TestParseIndirectStreamLength(t *testing.T) {
	input := "7 0 obj\n<< /Length 9 0 R >>\nstream\r\nab endstream cd\r\nendstream\nendobj\n"

	t.Run("resolved", func(t *testing.T) {
		p := NewParserFromBytes([]byte(input))
		p.ResolveLength = func(ref Reference) (int64, bool) {
			if ref.ObjectNumber != 9 {
				t.Errorf("resolved %v, want 9 0 R", ref)
			}
			return 15, true
		}
		obj, err := p.ParseIndirectObject()
		if err != nil {
			t.Fatalf("ParseIndirectObject failed: %v", err)
		}
		if got := string(obj.Object.(*StreamObject).Data); got != "ab endstream cd" {
			t.Errorf("Data = %q, want %q", got, "ab endstream cd")
		}
	})

	t.Run("scanned", func(t *testing.T) {
		obj, err := NewParserFromBytes([]byte(input)).ParseIndirectObject()
		if err != nil {
			t.Fatalf("ParseIndirectObject failed: %v", err)
		}
		if got := string(obj.Object.(*StreamObject).Data); got != "ab " {
			t.Errorf("Data = %q, want %q", got, "ab ")
		}
	})
}

func TestParseIndirectMissingEndstream(t *testing.T) {
	input := "1 0 obj << /Length 100 >> stream\nabc"
	if _, err := NewParserFromBytes([]byte(input)).ParseIndirectObject(); !errors.Is(err, ErrInvalidStream) {
		t.Errorf("error = %v, want ErrInvalidStream", err)
	}
}
