package stamp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/images"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/writer"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Renderer produces a faithful single-page copy of a source the primary
// strategy could not parse.
type Renderer interface {
	Render(ctx context.Context, source []byte) (*Replacement, error)
}

// Fallback draws the overlay onto a replacement of page 1. It does not
// inspect the original source or re-validate the placement.
type Fallback struct {
	inspector *inspect.Inspector
	renderer  Renderer
	opts      Options
}

// NewFallback creates the fallback strategy. renderer may be nil, in which
// case only replacements carried by the request are used.
func NewFallback(insp *inspect.Inspector, renderer Renderer, opts Options) *Fallback {
	if insp == nil {
		insp = inspect.New()
	}
	return &Fallback{inspector: insp, renderer: renderer, opts: opts.withDefaults()}
}

// Strategy implements Embedder.
func (f *Fallback) Strategy() Strategy { return StrategyFallback }

// Embed implements Embedder.
func (f *Fallback) Embed(ctx context.Context, req Request) (*Artifact, error) {
	rep := req.Replacement
	if rep == nil && f.renderer != nil {
		var err error
		if rep, err = f.renderer.Render(ctx, req.Source); err != nil {
			return nil, errkind.Wrap(errkind.UnsupportedEncoding, "render replacement page", err)
		}
	}
	switch {
	case rep == nil:
		return nil, errkind.Wrap(errkind.UnsupportedEncoding, "fallback embed", ErrNoReplacement)
	case len(rep.PDF) > 0:
		doc, err := f.inspector.Open(ctx, rep.PDF)
		if err != nil {
			return nil, fmt.Errorf("replacement document: %w", err)
		}
		return composeDocument(ctx, doc, req, f.opts, false, StrategyFallback)
	case len(rep.Image) > 0:
		return f.embedRaster(ctx, rep, req)
	default:
		return nil, errkind.Wrap(errkind.UnsupportedEncoding, "fallback embed", ErrNoReplacement)
	}
}

// embedRaster composes a full-bleed page image and the overlay with gofpdf.
func (f *Fallback) embedRaster(ctx context.Context, rep *Replacement, req Request) (*Artifact, error) {
	page, err := rep.Page()
	if err != nil {
		return nil, err
	}
	pageType := rasterType(images.DetectFormat(rep.Image))
	if pageType == "" {
		return nil, fmt.Errorf("replacement image: %w", images.ErrUnsupportedFormat)
	}
	overlay, overlayType, err := rasterOverlay(req.Overlay, f.opts.MaxOverlayPixels)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	real := placement.ToReal(req.Placement, page)
	u := page.Unit
	pw, ph := u.ToPoints(page.Width), u.ToPoints(page.Height)

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetProducer(writer.Producer, true)
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: pw, Ht: ph})

	pageOpts := gofpdf.ImageOptions{ReadDpi: false, ImageType: pageType}
	pdf.RegisterImageOptionsReader("page", pageOpts, bytes.NewReader(rep.Image))
	pdf.ImageOptions("page", 0, 0, pw, ph, false, pageOpts, 0, "")

	ovOpts := gofpdf.ImageOptions{ReadDpi: false, ImageType: overlayType}
	pdf.RegisterImageOptionsReader("overlay", ovOpts, bytes.NewReader(overlay))
	pdf.ImageOptions("overlay", u.ToPoints(real.X), u.ToPoints(real.Y),
		u.ToPoints(real.Width), u.ToPoints(real.Height), false, ovOpts, 0, "")

	// gofpdf cannot delete pages; anything but one page is fatal.
	if n := pdf.PageCount(); n != 1 {
		return nil, &PageInvariantError{Pages: n, Stage: "raster composition"}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("serialize raster output: %w", err)
	}
	data := buf.Bytes()
	if err := Verify(data); err != nil {
		return nil, err
	}
	f.opts.Logger.Debug("composed raster output", "strategy", StrategyFallback, "bytes", len(data))
	return newArtifact(data, req, real, page, StrategyFallback), nil
}
