package stamp

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/pdf/generic"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/images"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/writer"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Resource names used on the output page.
const (
	pageResource    = "Pg"
	overlayResource = "Ov"
)

func cm(m [6]float64) string {
	parts := make([]string, len(m))
	for i, v := range m {
		parts[i] = generic.FormatNumber(v)
	}
	return strings.Join(parts, " ") + " cm"
}

// overlayMatrix places a unit-square image at a top-left real rectangle on
// a page of the given height, all in points.
func overlayMatrix(x, y, w, h, pageHeight float64) [6]float64 {
	return [6]float64{w, 0, 0, h, x, pageHeight - y - h}
}

// compose adds the single output page: the imported page drawn upright and
// the overlay on top of it. real is in unit.
func compose(w *writer.PdfFileWriter, pg *importedPage, overlay *images.PDFImage, real placement.Rect, unit placement.Unit) error {
	ovRef := w.AddObject(overlay.XObject(w))

	x, y := unit.ToPoints(real.X), unit.ToPoints(real.Y)
	ow, oh := unit.ToPoints(real.Width), unit.ToPoints(real.Height)

	var content strings.Builder
	fmt.Fprintf(&content, "q %s /%s Do Q\n", cm(pg.Matrix), pageResource)
	fmt.Fprintf(&content, "q %s /%s Do Q\n", cm(overlayMatrix(x, y, ow, oh, pg.Height)), overlayResource)

	xobjects := generic.NewDictionary()
	xobjects.Set(pageResource, pg.Ref)
	xobjects.Set(overlayResource, ovRef)
	res := generic.NewDictionary()
	res.Set("XObject", xobjects)

	box := &generic.Rectangle{URX: pg.Width, URY: pg.Height}
	if _, err := w.AddPage(box, []byte(content.String()), res); err != nil {
		return fmt.Errorf("add output page: %w", err)
	}
	return nil
}

// enforceSinglePage removes pages beyond the first, at most maxExtra of
// them, and fails if more than one page remains.
func enforceSinglePage(w *writer.PdfFileWriter, maxExtra int, logger *log.Logger) error {
	if n := w.PageCount(); n > 1 {
		removed := w.TruncatePages(1, maxExtra)
		logger.Warn("output overflowed onto extra pages", "pages", n, "removed", removed)
	}
	if n := w.PageCount(); n != 1 {
		return &PageInvariantError{Pages: n, Stage: "truncation"}
	}
	return nil
}
