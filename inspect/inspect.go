// Package inspect opens candidate source documents, reads their first page
// box and classifies documents the embedding path cannot use.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/filters"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/reader"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// protectedPattern matches parser messages that indicate encryption.
var protectedPattern = regexp.MustCompile(`(?i)password|encrypt`)

// Descriptor describes a source document as seen by the embedders.
type Descriptor struct {
	PageCount int `json:"page_count"`
	// PageWidth and PageHeight are the displayed size of page 1, after
	// applying /Rotate, in Unit.
	PageWidth  float64        `json:"page_width"`
	PageHeight float64        `json:"page_height"`
	Unit       placement.Unit `json:"unit"`
	Readable   bool           `json:"readable"`
	Encrypted  bool           `json:"encrypted"`
	// Rotation is the normalized /Rotate of page 1.
	Rotation int `json:"rotation"`
	// OriginX and OriginY are the lower-left corner of the page box in
	// points, before rotation.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// Page returns the real page the descriptor describes.
func (d Descriptor) Page() placement.Page {
	return placement.Page{Width: d.PageWidth, Height: d.PageHeight, Unit: d.Unit}
}

// Error is a classified inspection failure.
type Error struct {
	kind errkind.Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.kind {
	case errkind.Protected:
		return fmt.Sprintf("document is protected: %v", e.Err)
	default:
		return fmt.Sprintf("document cannot be parsed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Kind implements errkind.Kinded.
func (e *Error) Kind() errkind.Kind { return e.kind }

// IsProtected reports whether err classifies a protected document.
func IsProtected(err error) bool {
	return errkind.Of(err) == errkind.Protected
}

// IsUnsupportedEncoding reports whether err classifies a document the
// primary path cannot parse.
func IsUnsupportedEncoding(err error) bool {
	return errkind.Of(err) == errkind.UnsupportedEncoding
}

// classify turns a reader failure into a classified error.
func classify(err error, encrypted bool) *Error {
	if encrypted || errors.Is(err, reader.ErrEncrypted) || protectedPattern.MatchString(err.Error()) {
		return &Error{kind: errkind.Protected, Err: err}
	}
	return &Error{kind: errkind.UnsupportedEncoding, Err: err}
}

// Document is an opened source ready for embedding.
type Document struct {
	Reader     *reader.PdfFileReader
	Page       *reader.Page
	Content    []byte
	Descriptor Descriptor
}

// Inspector opens and classifies PDF sources.
type Inspector struct {
	// Unit is the unit descriptors are reported in.
	Unit   placement.Unit
	logger *log.Logger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithUnit sets the unit descriptors are reported in.
func WithUnit(u placement.Unit) Option {
	return func(i *Inspector) { i.Unit = u }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(i *Inspector) { i.logger = l }
}

// New creates an Inspector reporting points by default.
func New(opts ...Option) *Inspector {
	i := &Inspector{Unit: placement.Points, logger: log.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect returns the descriptor of source.
func (i *Inspector) Inspect(ctx context.Context, source []byte) (Descriptor, error) {
	doc, err := i.Open(ctx, source)
	if err != nil {
		return Descriptor{}, err
	}
	return doc.Descriptor, nil
}

// Open parses source and decodes the content of page 1, so callers that
// succeed here can import the page without further parse failures.
func (i *Inspector) Open(ctx context.Context, source []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := reader.NewPdfFileReaderFromBytes(source)
	if err != nil {
		i.logger.Debug("source rejected by parser", "err", err)
		return nil, classify(err, false)
	}
	if r.Encrypted {
		i.logger.Debug("source is encrypted")
		return nil, classify(reader.ErrEncrypted, true)
	}
	if r.GetPageCount() == 0 {
		return nil, &Error{kind: errkind.UnsupportedEncoding, Err: errors.New("document has no pages")}
	}

	page, err := r.GetPage(0)
	if err != nil {
		return nil, classify(err, false)
	}
	content, err := r.PageContent(page)
	if err != nil {
		if errors.Is(err, filters.ErrUnsupportedFilter) {
			i.logger.Debug("page content uses an unsupported filter", "err", err)
		} else {
			i.logger.Debug("page content cannot be decoded", "err", err)
		}
		return nil, classify(err, false)
	}

	box := page.Box()
	w, h := box.Width(), box.Height()
	if page.Rotate == 90 || page.Rotate == 270 {
		w, h = h, w
	}
	unit := i.Unit
	if unit == "" {
		unit = placement.Points
	}

	desc := Descriptor{
		PageCount:  r.GetPageCount(),
		PageWidth:  unit.Round(unit.FromPoints(w)),
		PageHeight: unit.Round(unit.FromPoints(h)),
		Unit:       unit,
		Readable:   true,
		Rotation:   page.Rotate,
		OriginX:    box.LLX,
		OriginY:    box.LLY,
	}
	i.logger.Debug("inspected source", "pages", desc.PageCount, "width", desc.PageWidth, "height", desc.PageHeight, "unit", desc.Unit)
	return &Document{Reader: r, Page: page, Content: content, Descriptor: desc}, nil
}
