// Package pdftest builds small PDF and image fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// Build assembles objects numbered from 1 into a PDF with a classic xref
// table. Object 1 must be the catalog.
func Build(objects []string, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R %s>>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, trailerExtra, xref)
	return buf.Bytes()
}

// Stream formats a stream object body with a direct /Length.
func Stream(dict, data string) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Pages builds a document with n pages of the given size in points. Every
// page draws a filled rectangle with a Helvetica label.
func Pages(n int, width, height float64) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var kids bytes.Buffer
	for i := 0; i < n; i++ {
		pageNum := len(objs) + 1
		fmt.Fprintf(&kids, "%d 0 R ", pageNum)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				width, height, pageNum+1),
			Stream("", fmt.Sprintf("0.9 g 10 10 100 40 re f BT /F1 12 Tf 20 25 Td (page %d) Tj ET", i+1)),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), n)
	return Build(objs, "")
}

// Letter is a single US Letter page.
func Letter() []byte { return Pages(1, 612, 792) }

// A4 is a single A4 page.
func A4() []byte { return Pages(1, 595, 842) }

// Encrypted is a single page whose trailer references an encryption
// dictionary.
func Encrypted() []byte {
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		Stream("", "0 g"),
		"<< /Filter /Standard /V 2 /R 3 /Length 128 >>",
	}, "/Encrypt 5 0 R /ID [<00> <00>] ")
}

// UnsupportedFilter is a single page whose content uses a filter the
// reader cannot decode.
func UnsupportedFilter() []byte {
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>",
		Stream("/Filter /JBIG2Decode", "\x00\x01\x02\x03"),
	}, "")
}

// Rotated is a single page with the given /Rotate.
func Rotated(width, height float64, rotate int) []byte {
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Rotate %d /Contents 4 0 R >>", width, height, rotate),
		Stream("", "0 g 0 0 10 10 re f"),
	}, "")
}

// PNG encodes a solid square image of the given size.
func PNG(size int, c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Overlay is a small opaque black PNG suitable as an overlay image.
func Overlay() []byte { return PNG(8, color.Black) }
