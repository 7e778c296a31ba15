// Package stamp composites an overlay image onto page 1 of a source
// document and produces a single-page artifact.
//
// Two strategies implement Embedder. Primary imports the original page into
// a fresh document. Fallback draws onto a pre-rendered replacement of the
// page and is used only when the original cannot be parsed.
package stamp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/blake2b"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/images"
	"github.com/Xangel0s/docqr-Flex-sub000/pdf/reader"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Strategy names an embedding strategy.
type Strategy string

const (
	StrategyPrimary  Strategy = "primary"
	StrategyFallback Strategy = "fallback"
)

// DefaultMaxExtraPages bounds the page truncation loop.
const DefaultMaxExtraPages = 8

// ErrPageInvariant matches every *PageInvariantError.
var ErrPageInvariant = errors.New("single-page invariant violated")

// ErrNoReplacement is returned by Fallback when the request carries no
// replacement page.
var ErrNoReplacement = errors.New("no replacement page available")

// PageInvariantError reports an output that does not have exactly one page.
type PageInvariantError struct {
	Pages int
	Stage string
}

func (e *PageInvariantError) Error() string {
	return fmt.Sprintf("%s: output has %d pages after %s", ErrPageInvariant, e.Pages, e.Stage)
}

// Is matches ErrPageInvariant.
func (e *PageInvariantError) Is(target error) bool { return target == ErrPageInvariant }

// Kind implements errkind.Kinded.
func (e *PageInvariantError) Kind() errkind.Kind { return errkind.PageInvariant }

// Replacement is a pre-rendered copy of page 1 supplied by an external
// renderer. Exactly one of PDF and Image is set.
type Replacement struct {
	// PDF is a single-page document.
	PDF []byte
	// Image is a PNG or JPEG raster of the page, representing a page of
	// Width x Height in Unit.
	Image  []byte
	Width  float64
	Height float64
	// Unit is inferred from the dimensions when empty.
	Unit placement.Unit
}

// Page returns the real page a raster replacement represents.
func (r *Replacement) Page() (placement.Page, error) {
	unit := r.Unit
	if unit == "" {
		unit = placement.InferUnit(r.Width, r.Height)
	}
	page := placement.Page{Width: r.Width, Height: r.Height, Unit: unit}
	if !page.Valid() {
		return placement.Page{}, fmt.Errorf("%w: replacement %gx%g", placement.ErrInvalidPage, r.Width, r.Height)
	}
	return page, nil
}

// Request is one embedding attempt.
type Request struct {
	Source      []byte
	Overlay     []byte
	Placement   placement.Canonical
	Replacement *Replacement
}

// Artifact is a finished single-page output.
type Artifact struct {
	Data []byte
	// Digest is the hex BLAKE2b-256 of Data.
	Digest    string
	Placement placement.Canonical
	// Real is the overlay geometry drawn, in the unit of Page.
	Real     placement.Rect
	Page     placement.Page
	Strategy Strategy
}

// Embedder produces an artifact from a request.
type Embedder interface {
	Embed(ctx context.Context, req Request) (*Artifact, error)
	Strategy() Strategy
}

// Options configures both strategies.
type Options struct {
	Validator        placement.Validator
	MaxExtraPages    int
	MaxOverlayPixels int
	Logger           *log.Logger
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{
		Validator:        placement.DefaultValidator(),
		MaxExtraPages:    DefaultMaxExtraPages,
		MaxOverlayPixels: images.DefaultMaxPixels,
	}
}

func (o Options) withDefaults() Options {
	if o.Validator == (placement.Validator{}) {
		o.Validator = placement.DefaultValidator()
	}
	if o.MaxExtraPages <= 0 {
		o.MaxExtraPages = DefaultMaxExtraPages
	}
	if o.MaxOverlayPixels <= 0 {
		o.MaxOverlayPixels = images.DefaultMaxPixels
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Verify re-opens a serialized output and checks that it has exactly one
// page.
func Verify(data []byte) error {
	r, err := reader.NewPdfFileReaderFromBytes(data)
	if err != nil {
		return fmt.Errorf("re-open output: %w", err)
	}
	if n := r.GetPageCount(); n != 1 {
		return &PageInvariantError{Pages: n, Stage: "re-open"}
	}
	return nil
}

// Digest returns the hex BLAKE2b-256 of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newArtifact(data []byte, req Request, real placement.Rect, page placement.Page, s Strategy) *Artifact {
	return &Artifact{
		Data:      data,
		Digest:    Digest(data),
		Placement: req.Placement,
		Real:      real,
		Page:      page,
		Strategy:  s,
	}
}
