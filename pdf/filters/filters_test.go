package filters

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	original := []byte("q 1 0 0 1 0 0 cm /Tpl Do Q\nq 100 0 0 100 50 50 cm /Ov Do Q\n")

	encoded, err := FlateEncode(original)
	if err != nil {
		t.Fatalf("FlateEncode failed: %v", err)
	}
	decoded, err := Decode(encoded, []string{"FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decoded, original) {
		t.Errorf("Decode() = %q, want %q", decoded, original)
	}
}

func TestFlateTruncatedTail(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(bytes.Repeat([]byte("abc"), 100))
	w.Close()

	// Drop the adler32 checksum.
	data := buf.Bytes()[:buf.Len()-4]
	got, err := Decode(data, []string{"Fl"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 300 {
		t.Errorf("len = %d, want 300", len(got))
	}
}

func TestFlateGarbage(t *testing.T) {
	_, err := Decode([]byte("not zlib"), []string{"FlateDecode"}, nil)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("error = %v, want ErrDecodeFailed", err)
	}
}

func TestPNGUpPredictor(t *testing.T) {
	// Two rows of 3 columns, Up filter on the second row.
	raw := []byte{
		0, 1, 2, 3,
		2, 1, 1, 1,
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(raw)
	w.Close()

	got, err := Decode(buf.Bytes(), []string{"FlateDecode"}, []Params{{"Predictor": 12, "Columns": 3}})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []byte{1, 2, 3, 2, 3, 4}
	if !bytes.Equal(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestASCIIHex(t *testing.T) {
	got, err := Decode([]byte("48 65 6C\n6C 6F>"), []string{"ASCIIHexDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "Hello" {
		t.Errorf("Decode() = %q, want Hello", got)
	}
}

func TestASCII85(t *testing.T) {
	got, err := Decode([]byte("<~87cURD]i,\"Ebo80~>"), []string{"A85"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "Hello World" {
		t.Errorf("Decode() = %q, want %q", got, "Hello World")
	}
}

func TestLZW(t *testing.T) {
	// Example from the PDF reference.
	data := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	got, err := Decode(data, []string{"LZWDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "-----A---B" {
		t.Errorf("Decode() = %q, want %q", got, "-----A---B")
	}
}

func TestRunLength(t *testing.T) {
	data := []byte{2, 'a', 'b', 'c', 254, 'z', 128}
	got, err := Decode(data, []string{"RunLengthDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "abczzz" {
		t.Errorf("Decode() = %q, want abczzz", got)
	}

	if _, err := Decode([]byte{5, 'a'}, []string{"RL"}, nil); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("truncated error = %v, want ErrDecodeFailed", err)
	}
}

func TestChain(t *testing.T) {
	inner, _ := FlateEncode([]byte("chained"))
	var hexed bytes.Buffer
	for _, b := range inner {
		hexed.WriteString("0123456789ABCDEF"[b>>4 : b>>4+1])
		hexed.WriteString("0123456789ABCDEF"[b&15 : b&15+1])
	}
	hexed.WriteByte('>')

	got, err := Decode(hexed.Bytes(), []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(got) != "chained" {
		t.Errorf("Decode() = %q, want chained", got)
	}
}

func TestUnsupported(t *testing.T) {
	for _, name := range []string{"JBIG2Decode", "JPXDecode", "Crypt"} {
		if Supported(name) {
			t.Errorf("Supported(%s) = true, want false", name)
		}
		_, err := Decode([]byte("x"), []string{name}, nil)
		if !errors.Is(err, ErrUnsupportedFilter) {
			t.Errorf("Decode(%s) error = %v, want ErrUnsupportedFilter", name, err)
		}
	}
	if !Supported("FlateDecode") {
		t.Error("Supported(FlateDecode) = false")
	}
}
