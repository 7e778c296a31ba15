package placement

import (
	"errors"
	"fmt"
)

// ErrInvalidPage is returned when a page or surface has no usable size.
var ErrInvalidPage = errors.New("invalid page dimensions")

// toReal maps p onto page without rounding.
func toReal(p Canonical, page Page) Rect {
	return Rect{
		X:      p.X / CanonicalWidth * page.Width,
		Y:      p.Y / CanonicalHeight * page.Height,
		Width:  p.Width / CanonicalWidth * page.Width,
		Height: p.Height / CanonicalHeight * page.Height,
	}
}

// fromReal maps r back to canonical space without rounding.
func fromReal(r Rect, page Page) Canonical {
	return Canonical{
		X:      r.X / page.Width * CanonicalWidth,
		Y:      r.Y / page.Height * CanonicalHeight,
		Width:  r.Width / page.Width * CanonicalWidth,
		Height: r.Height / page.Height * CanonicalHeight,
	}
}

// ToReal converts a canonical placement to the real page by percentage and
// rounds the result to the precision of the page unit.
func ToReal(p Canonical, page Page) Rect {
	r := toReal(p, page)
	u := page.Unit
	return Rect{X: u.Round(r.X), Y: u.Round(r.Y), Width: u.Round(r.Width), Height: u.Round(r.Height)}
}

// FromReal converts a real page rectangle to canonical space, rounded to two
// decimals.
func FromReal(r Rect, page Page) Canonical {
	return fromReal(r, page).Rounded()
}

// Layout describes how a real page is shown on a fixed-size surface:
// scaled to fit and centered.
type Layout struct {
	Page          Page
	SurfaceWidth  float64
	SurfaceHeight float64
	Scale         float64
	OffsetX       float64
	OffsetY       float64
}

// Fit computes the layout of page on a surface of the given size.
func Fit(page Page, surfaceWidth, surfaceHeight float64) (Layout, error) {
	if !page.Valid() {
		return Layout{}, fmt.Errorf("%w: page %gx%g", ErrInvalidPage, page.Width, page.Height)
	}
	if surfaceWidth <= 0 || surfaceHeight <= 0 {
		return Layout{}, fmt.Errorf("%w: surface %gx%g", ErrInvalidPage, surfaceWidth, surfaceHeight)
	}

	scale := min(surfaceWidth/page.Width, surfaceHeight/page.Height)
	return Layout{
		Page:          page,
		SurfaceWidth:  surfaceWidth,
		SurfaceHeight: surfaceHeight,
		Scale:         scale,
		OffsetX:       (surfaceWidth - page.Width*scale) / 2,
		OffsetY:       (surfaceHeight - page.Height*scale) / 2,
	}, nil
}

// ToSurface converts a canonical placement to surface coordinates. Surface
// values are for rendering only and are not rounded.
func (l Layout) ToSurface(p Canonical) Rect {
	r := toReal(p, l.Page)
	return Rect{
		X:      r.X*l.Scale + l.OffsetX,
		Y:      r.Y*l.Scale + l.OffsetY,
		Width:  r.Width * l.Scale,
		Height: r.Height * l.Scale,
	}
}

// ToCanonical inverts ToSurface: surface to real, then real to canonical.
func (l Layout) ToCanonical(s Rect) Canonical {
	r := Rect{
		X:      (s.X - l.OffsetX) / l.Scale,
		Y:      (s.Y - l.OffsetY) / l.Scale,
		Width:  s.Width / l.Scale,
		Height: s.Height / l.Scale,
	}
	return FromReal(r, l.Page)
}

// PageRect returns the page box on the surface.
func (l Layout) PageRect() Rect {
	return Rect{
		X:      l.OffsetX,
		Y:      l.OffsetY,
		Width:  l.Page.Width * l.Scale,
		Height: l.Page.Height * l.Scale,
	}
}

// SurfaceX converts a canonical horizontal length to surface units.
func (l Layout) SurfaceX(v float64) float64 {
	return v / CanonicalWidth * l.Page.Width * l.Scale
}

// SurfaceY converts a canonical vertical length to surface units.
func (l Layout) SurfaceY(v float64) float64 {
	return v / CanonicalHeight * l.Page.Height * l.Scale
}
