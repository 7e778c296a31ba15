// Package images turns raster images into PDF image XObjects.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
)

// Common errors
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDecodeFailed      = errors.New("image decode failed")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// DefaultMaxPixels bounds the pixel count of embedded images.
const DefaultMaxPixels = 4096 * 4096

// ColorSpace represents a PDF color space.
type ColorSpace string

const (
	ColorSpaceGray ColorSpace = "DeviceGray"
	ColorSpaceRGB  ColorSpace = "DeviceRGB"
	ColorSpaceCMYK ColorSpace = "DeviceCMYK"
)

// Format is an encoded image format.
type Format string

const (
	FormatPNG  Format = "PNG"
	FormatJPEG Format = "JPEG"
	FormatGIF  Format = "GIF"
)

// PDFImage is an image ready for PDF embedding.
type PDFImage struct {
	Width, Height    int
	BitsPerComponent int
	ColorSpace       ColorSpace
	// Data is encoded with Filter.
	Data   []byte
	Filter string
	// AlphaData is a Flate-compressed 8-bit soft mask, nil when opaque.
	AlphaData []byte
	Format    Format
}

// ObjectAdder registers indirect objects.
type ObjectAdder interface {
	AddObject(obj generic.PdfObject) generic.Reference
}

// DetectFormat sniffs the encoded format from the file header.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	}
	return ""
}

// Dimensions returns the pixel size without decoding the full image.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Load reads an encoded image. Baseline JPEGs within maxPixels are passed
// through as DCTDecode; everything else is decoded, downscaled to fit
// maxPixels if needed, and stored as Flate data. maxPixels <= 0 means
// DefaultMaxPixels.
func Load(r io.Reader, maxPixels int) (*PDFImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return LoadBytes(data, maxPixels)
}

// LoadBytes is Load for in-memory data.
func LoadBytes(data []byte, maxPixels int) (*PDFImage, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	format := DetectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	if format == FormatJPEG {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		if cfg.Width*cfg.Height <= maxPixels && cfg.ColorModel != color.CMYKModel {
			cs := ColorSpaceRGB
			if cfg.ColorModel == color.GrayModel {
				cs = ColorSpaceGray
			}
			return &PDFImage{
				Width:            cfg.Width,
				Height:           cfg.Height,
				BitsPerComponent: 8,
				ColorSpace:       cs,
				Data:             data,
				Filter:           "DCTDecode",
				Format:           FormatJPEG,
			}, nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	pdfImg, err := FromImage(Fit(img, maxPixels))
	if err != nil {
		return nil, err
	}
	pdfImg.Format = format
	return pdfImg, nil
}

// Fit downscales img proportionally so it has at most maxPixels pixels.
func Fit(img image.Image, maxPixels int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxPixels <= 0 || w*h <= maxPixels {
		return img
	}
	for w*h > maxPixels {
		w, h = max(1, w*9/10), max(1, h*9/10)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FromImage converts a decoded image to 8-bit gray or RGB samples with an
// optional soft mask.
func FromImage(img image.Image) (*PDFImage, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidDimensions
	}

	gray := false
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		gray = true
	}
	comps := 3
	cs := ColorSpaceRGB
	if gray {
		comps = 1
		cs = ColorSpaceGray
	}

	pixels := make([]byte, 0, w*h*comps)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if gray {
				pixels = append(pixels, c.R)
			} else {
				pixels = append(pixels, c.R, c.G, c.B)
			}
			alpha = append(alpha, c.A)
			if c.A != 0xFF {
				opaque = false
			}
		}
	}

	data, err := filters.FlateEncode(pixels)
	if err != nil {
		return nil, err
	}
	out := &PDFImage{
		Width:            w,
		Height:           h,
		BitsPerComponent: 8,
		ColorSpace:       cs,
		Data:             data,
		Filter:           "FlateDecode",
	}
	if !opaque {
		if out.AlphaData, err = filters.FlateEncode(alpha); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// HasAlpha reports whether the image carries a soft mask.
func (img *PDFImage) HasAlpha() bool {
	return len(img.AlphaData) > 0
}

// XObject builds the image XObject stream. The soft mask, if any, is
// registered through objs and referenced from the returned stream.
func (img *PDFImage) XObject(objs ObjectAdder) *generic.StreamObject {
	dict := imageDict(img.Width, img.Height, img.ColorSpace, img.Filter)
	if img.HasAlpha() {
		mask := imageDict(img.Width, img.Height, ColorSpaceGray, "FlateDecode")
		dict.Set("SMask", objs.AddObject(generic.NewStream(mask, img.AlphaData)))
	}
	return generic.NewStream(dict, img.Data)
}

func imageDict(w, h int, cs ColorSpace, filter string) *generic.DictionaryObject {
	d := generic.NewDictionary()
	d.Set("Type", generic.NameObject("XObject"))
	d.Set("Subtype", generic.NameObject("Image"))
	d.Set("Width", generic.IntegerObject(w))
	d.Set("Height", generic.IntegerObject(h))
	d.Set("ColorSpace", generic.NameObject(cs))
	d.Set("BitsPerComponent", generic.IntegerObject(8))
	if filter != "" {
		d.Set("Filter", generic.NameObject(filter))
	}
	return d
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
