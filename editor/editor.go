// Package editor models the interactive placement editor: a square overlay
// object dragged and resized on a surface that shows the page scaled to fit.
//
// Every operation is a pure function from one State to the next. The only
// side effects are Apply, which pushes a state to a Sink, and Save, which
// hands the canonical placement to a Submitter.
package editor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Xangel0s/docqr-Flex-sub000/placement"
)

// Epsilon is the smallest correction, in surface units, that is applied.
const Epsilon = 0.001

// DefaultWarnInterval is the minimum time between correction warnings.
const DefaultWarnInterval = time.Second

// Object is the overlay on the surface: its top-left corner and side.
type Object struct {
	X    float64
	Y    float64
	Size float64
}

// Rect returns the object as a surface rectangle.
func (o Object) Rect() placement.Rect {
	return placement.Rect{X: o.X, Y: o.Y, Width: o.Size, Height: o.Size}
}

// Correction is an adjustment the editor made to keep the object valid.
type Correction struct {
	// Field is "x", "y" or "size".
	Field string
	From  float64
	To    float64
}

func (c Correction) String() string {
	return fmt.Sprintf("%s corrected from %.3f to %.3f", c.Field, c.From, c.To)
}

// Options configure an editor.
type Options struct {
	// SafeMargin is kept clear around the page edge, in canonical units.
	SafeMargin float64
	// MinSize and MaxSize bound the side in canonical units.
	MinSize      float64
	MaxSize      float64
	WarnInterval time.Duration
	Clock        clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.MinSize <= 0 {
		o.MinSize = placement.MinSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = placement.MaxSize
	}
	if o.WarnInterval <= 0 {
		o.WarnInterval = DefaultWarnInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// State is one frame of the editor.
type State struct {
	Layout placement.Layout
	Object Object

	opts    Options
	limiter RateLimiter
	// warnings are the corrections of the last step that may be shown.
	warnings []Correction
}

// New loads canonical onto a surface showing page. The object is square
// with the side taken from the horizontal axis.
func New(page placement.Page, surfaceWidth, surfaceHeight float64, canonical placement.Canonical, opts Options) (State, error) {
	layout, err := placement.Fit(page, surfaceWidth, surfaceHeight)
	if err != nil {
		return State{}, err
	}
	opts = opts.withDefaults()
	r := layout.ToSurface(canonical)
	return State{
		Layout:  layout,
		Object:  Object{X: r.X, Y: r.Y, Size: r.Width},
		opts:    opts,
		limiter: NewRateLimiter(opts.WarnInterval, opts.Clock),
	}, nil
}

// Warnings returns the corrections of the last step that passed the
// warning throttle.
func (s State) Warnings() []Correction {
	return append([]Correction(nil), s.warnings...)
}

// bounds returns the area the object must stay inside.
func (s State) bounds() placement.Rect {
	pr := s.Layout.PageRect()
	mx := s.Layout.SurfaceX(s.opts.SafeMargin)
	my := s.Layout.SurfaceY(s.opts.SafeMargin)
	return placement.Rect{X: pr.X + mx, Y: pr.Y + my, Width: pr.Width - 2*mx, Height: pr.Height - 2*my}
}

// stretch is how much taller than the displayed side the saved square is.
// Canonical space is not proportional to the page, so a square that is
// square on screen can be taller once saved.
func (s State) stretch() float64 {
	return max(1, s.Layout.SurfaceY(1)/s.Layout.SurfaceX(1))
}

// sizeRange returns the allowed side in surface units.
func (s State) sizeRange() (float64, float64) {
	b := s.bounds()
	lo := s.Layout.SurfaceX(s.opts.MinSize)
	hi := min(s.Layout.SurfaceX(s.opts.MaxSize), b.Width, b.Height/s.stretch())
	return lo, max(lo, hi)
}

// correct clamps v into [lo, hi] unless the adjustment is within Epsilon.
func correct(field string, v, lo, hi float64, out []Correction) (float64, []Correction) {
	c := math.Max(lo, math.Min(v, hi))
	if math.Abs(c-v) <= Epsilon {
		return v, out
	}
	return c, append(out, Correction{Field: field, From: v, To: c})
}

// clampPosition keeps the object inside the bounds, per axis.
func (s State) clampPosition(o Object, out []Correction) (Object, []Correction) {
	b := s.bounds()
	o.X, out = correct("x", o.X, b.X, b.Right()-o.Size, out)
	o.Y, out = correct("y", o.Y, b.Y, b.Bottom()-o.Size*s.stretch(), out)
	return o, out
}

func (s State) next(o Object, corrections []Correction) State {
	n := s
	n.Object = o
	n.warnings = nil
	if len(corrections) > 0 {
		var ok bool
		if n.limiter, ok = s.limiter.Allow(); ok {
			n.warnings = corrections
		}
	}
	return n
}

// Move drags the object by (dx, dy). Only an axis that leaves the page is
// clamped.
func Move(s State, dx, dy float64) (State, []Correction) {
	o := s.Object
	o.X += dx
	o.Y += dy
	o, corrections := s.clampPosition(o, nil)
	return s.next(o, corrections), corrections
}

// Scale resizes the object by the handle's axis factors. The dominant axis
// sets one uniform factor; the side is clamped to the allowed size and the
// center stays put.
func Scale(s State, scaleX, scaleY float64) (State, []Correction) {
	factor := scaleX
	if math.Abs(scaleY-1) > math.Abs(scaleX-1) {
		factor = scaleY
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return s.next(s.Object, nil), nil
	}

	var corrections []Correction
	o := s.Object
	cx, cy := o.X+o.Size/2, o.Y+o.Size/2
	lo, hi := s.sizeRange()
	o.Size, corrections = correct("size", o.Size*factor, lo, hi, corrections)
	o.X = cx - o.Size/2
	o.Y = cy - o.Size/2

	o, corrections = s.clampPosition(o, corrections)
	return s.next(o, corrections), corrections
}

// Canonical converts the object to a canonical placement. The height is
// forced to the width so the result is square.
func (s State) Canonical() placement.Canonical {
	p := s.Layout.ToCanonical(s.Object.Rect())
	p.Height = p.Width

	// Rounding can leave an edge-aligned object a hundredth past the page.
	// Anything further out is left for the validator to reject.
	m := s.opts.SafeMargin
	p.X = absorb(p.X, m, placement.CanonicalWidth-m-p.Width)
	p.Y = absorb(p.Y, m, placement.CanonicalHeight-m-p.Height)
	return p
}

// roundingSlack is the largest overshoot, in canonical units, that Canonical
// snaps back to the edge.
const roundingSlack = 0.01

func absorb(v, lo, hi float64) float64 {
	switch {
	case v < lo && lo-v <= roundingSlack:
		return lo
	case v > hi && v-hi <= roundingSlack:
		return hi
	}
	return v
}

// Sink displays editor frames.
type Sink interface {
	Render(o Object)
	Warn(c Correction)
}

// Apply pushes s to sink: the object geometry, then any warnings.
func Apply(s State, sink Sink) {
	sink.Render(s.Object)
	for _, c := range s.warnings {
		sink.Warn(c)
	}
}

// Submitter starts an embedding job for a placement.
type Submitter interface {
	Submit(ctx context.Context, p placement.Canonical) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, p placement.Canonical) error

func (f SubmitterFunc) Submit(ctx context.Context, p placement.Canonical) error { return f(ctx, p) }

// Save submits the canonical placement of s. The displayed object is left
// as it is.
func Save(ctx context.Context, s State, sub Submitter) (placement.Canonical, error) {
	p := s.Canonical()
	if err := sub.Submit(ctx, p); err != nil {
		return p, fmt.Errorf("submit placement: %w", err)
	}
	return p, nil
}
