package stamp

import (
	"context"
	"fmt"

	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/writer"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Primary imports page 1 of the original source into a new single-page
// document and draws the overlay on it.
type Primary struct {
	inspector *inspect.Inspector
	opts      Options
}

// NewPrimary creates the primary strategy.
func NewPrimary(insp *inspect.Inspector, opts Options) *Primary {
	if insp == nil {
		insp = inspect.New()
	}
	return &Primary{inspector: insp, opts: opts.withDefaults()}
}

// Strategy implements Embedder.
func (p *Primary) Strategy() Strategy { return StrategyPrimary }

// Embed implements Embedder.
func (p *Primary) Embed(ctx context.Context, req Request) (*Artifact, error) {
	doc, err := p.inspector.Open(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	return composeDocument(ctx, doc, req, p.opts, true, StrategyPrimary)
}

// composeDocument runs the in-tree composition against an opened document.
// With validate set, the placement is re-checked against the document's
// real page before drawing.
func composeDocument(ctx context.Context, doc *inspect.Document, req Request, opts Options, validate bool, s Strategy) (*Artifact, error) {
	logger := opts.Logger.With("strategy", s)

	// A fresh writer that refuses a second page.
	w := writer.NewPdfFileWriter(doc.Reader.Version)
	w.MaxPages = 1

	pg, err := importPage(w, doc.Reader, doc.Page, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("import page: %w", err)
	}

	page := doc.Descriptor.Page()
	if validate {
		if err := opts.Validator.Validate(req.Placement, page); err != nil {
			return nil, err
		}
	}
	real := placement.ToReal(req.Placement, page)

	overlay, err := loadOverlay(req.Overlay, opts.MaxOverlayPixels)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := compose(w, pg, overlay, real, page.Unit); err != nil {
		return nil, err
	}
	if err := enforceSinglePage(w, opts.MaxExtraPages, logger); err != nil {
		return nil, err
	}

	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize output: %w", err)
	}
	if err := Verify(data); err != nil {
		return nil, err
	}
	logger.Debug("composed output", "x", real.X, "y", real.Y, "width", real.Width, "height", real.Height, "bytes", len(data))
	return newArtifact(data, req, real, page, s), nil
}
