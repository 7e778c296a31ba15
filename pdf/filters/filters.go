// Package filters implements the PDF stream filters needed to read page
// content and cross-reference streams.
package filters

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Common errors
var (
	ErrUnsupportedFilter = errors.New("unsupported filter")
	ErrDecodeFailed      = errors.New("decode failed")
)

// maxDecodedSize bounds the output of a single decode step.
const maxDecodedSize = 256 << 20

// Params holds the integer decode parameters of one filter
// (Predictor, Columns, Colors, BitsPerComponent, EarlyChange).
type Params map[string]int

func (p Params) get(key string, def int) int {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Decoder decodes one filter stage.
type Decoder func(data []byte, params Params) ([]byte, error)

var registry = map[string]Decoder{
	"FlateDecode":     flateDecode,
	"Fl":              flateDecode,
	"ASCIIHexDecode":  asciiHexDecode,
	"AHx":             asciiHexDecode,
	"ASCII85Decode":   ascii85Decode,
	"A85":             ascii85Decode,
	"LZWDecode":       lzwDecode,
	"LZW":             lzwDecode,
	"RunLengthDecode": runLengthDecode,
	"RL":              runLengthDecode,
}

// Supported reports whether name can be decoded.
func Supported(name string) bool {
	_, ok := registry[name]
	return ok
}

// Decode runs data through the named filters in order.
func Decode(data []byte, names []string, params []Params) ([]byte, error) {
	out := data
	for i, name := range names {
		dec, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		var p Params
		if i < len(params) {
			p = params[i]
		}
		var err error
		if out, err = dec(out, p); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
	}
	return out, nil
}

// FlateEncode compresses data for a /FlateDecode stream.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("flate encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flate encode: %w", err)
	}
	return buf.Bytes(), nil
}

func flateDecode(data []byte, params Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxDecodedSize+1))
	// Truncated zlib tails are common in the wild; keep what was inflated.
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if n > maxDecodedSize {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrDecodeFailed, maxDecodedSize)
	}
	return unpredict(buf.Bytes(), params)
}

// unpredict reverses a PNG predictor (10-15). TIFF predictor 2 is not
// supported.
func unpredict(data []byte, params Params) ([]byte, error) {
	predictor := params.get("Predictor", 1)
	switch {
	case predictor == 1:
		return data, nil
	case predictor == 2:
		return nil, fmt.Errorf("%w: TIFF predictor", ErrUnsupportedFilter)
	case predictor < 10 || predictor > 15:
		return nil, fmt.Errorf("%w: predictor %d", ErrDecodeFailed, predictor)
	}

	colors := params.get("Colors", 1)
	bpc := params.get("BitsPerComponent", 8)
	columns := params.get("Columns", 1)
	bpp := max((colors*bpc+7)/8, 1)
	rowLen := (columns*colors*bpc + 7) / 8
	if rowLen <= 0 {
		return nil, fmt.Errorf("%w: empty predictor row", ErrDecodeFailed)
	}

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLen)
	row := make([]byte, rowLen)
	for i := 0; i < len(data); i += rowLen + 1 {
		ft := data[i]
		src := data[i+1 : min(i+1+rowLen, len(data))]
		clear(row)
		copy(row, src)
		for j := range row {
			var left, upLeft byte
			if j >= bpp {
				left = row[j-bpp]
				upLeft = prev[j-bpp]
			}
			up := prev[j]
			switch ft {
			case 0:
			case 1:
				row[j] += left
			case 2:
				row[j] += up
			case 3:
				row[j] += byte((int(left) + int(up)) / 2)
			case 4:
				row[j] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("%w: PNG filter type %d", ErrDecodeFailed, ft)
			}
		}
		out = append(out, row[:len(src)]...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func asciiHexDecode(data []byte, _ Params) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '>' {
			break
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0 {
			continue
		}
		digits = append(digits, b)
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

func ascii85Decode(data []byte, _ Params) ([]byte, error) {
	if end := bytes.Index(data, []byte("~>")); end >= 0 {
		data = data[:end]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	out, err := io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return out, nil
}

// lzwDecode decodes PDF LZW, which differs from compress/lzw by the
// EarlyChange code width switch.
func lzwDecode(data []byte, params Params) ([]byte, error) {
	const (
		clearCode = 256
		eodCode   = 257
	)
	early := params.get("EarlyChange", 1)

	table := make([][]byte, 258, 4096)
	reset := func() {
		table = table[:258]
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
	}
	reset()

	width := 9
	bitPos := 0
	next := func() int {
		if bitPos+width > len(data)*8 {
			return eodCode
		}
		code := 0
		for i := 0; i < width; i++ {
			bit := bitPos + i
			if data[bit/8]&(0x80>>(bit%8)) != 0 {
				code |= 1 << (width - 1 - i)
			}
		}
		bitPos += width
		return code
	}

	var out bytes.Buffer
	var prev []byte
	for {
		code := next()
		if code == eodCode {
			break
		}
		if code == clearCode {
			reset()
			width = 9
			prev = nil
			continue
		}

		var seq []byte
		switch {
		case code < len(table):
			seq = table[code]
		case code == len(table) && prev != nil:
			seq = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, fmt.Errorf("%w: invalid LZW code %d", ErrDecodeFailed, code)
		}
		out.Write(seq)
		if out.Len() > maxDecodedSize {
			return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrDecodeFailed, maxDecodedSize)
		}

		if prev != nil && len(table) < 4096 {
			entry := append(append([]byte(nil), prev...), seq[0])
			table = append(table, entry)
		}
		prev = seq

		if len(table)+early >= 1<<width && width < 12 {
			width++
		}
	}
	return unpredict(out.Bytes(), params)
}

func runLengthDecode(data []byte, _ Params) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out.Bytes(), nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(data[i : i+n+1])
			i += n + 1
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("%w: truncated run-length data", ErrDecodeFailed)
			}
			out.Write(bytes.Repeat(data[i:i+1], 257-n))
			i++
		}
	}
	return out.Bytes(), nil
}
