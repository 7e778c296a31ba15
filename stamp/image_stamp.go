package stamp

import (
	"bytes"
	"fmt"
	"image"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/images"
)

// OverlayError reports an overlay image that cannot be used.
type OverlayError struct {
	Err error
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay image: %v", e.Err)
}

func (e *OverlayError) Unwrap() error { return e.Err }

// Kind implements errkind.Kinded. A bad overlay is a request problem.
func (e *OverlayError) Kind() errkind.Kind { return errkind.Validation }

// loadOverlay prepares the overlay for in-tree composition.
func loadOverlay(data []byte, maxPixels int) (*images.PDFImage, error) {
	img, err := images.LoadBytes(data, maxPixels)
	if err != nil {
		return nil, &OverlayError{Err: err}
	}
	return img, nil
}

// rasterType maps an image format to the type name gofpdf registers.
func rasterType(f images.Format) string {
	switch f {
	case images.FormatPNG:
		return "PNG"
	case images.FormatJPEG:
		return "JPG"
	case images.FormatGIF:
		return "GIF"
	}
	return ""
}

// rasterOverlay returns overlay bytes gofpdf can register, downscaled to
// maxPixels when needed, with their gofpdf type.
func rasterOverlay(data []byte, maxPixels int) ([]byte, string, error) {
	typ := rasterType(images.DetectFormat(data))
	if typ == "" {
		return nil, "", &OverlayError{Err: images.ErrUnsupportedFormat}
	}
	w, h, err := images.Dimensions(data)
	if err != nil {
		return nil, "", &OverlayError{Err: err}
	}
	if maxPixels <= 0 || w*h <= maxPixels {
		return data, typ, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &OverlayError{Err: err}
	}
	out, err := images.EncodePNG(images.Fit(img, maxPixels))
	if err != nil {
		return nil, "", &OverlayError{Err: err}
	}
	return out, "PNG", nil
}
