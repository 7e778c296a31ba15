// Package placement defines the canonical overlay placement space and the
// conversions between canonical, real page and editing surface coordinates.
//
// Canonical space is a fixed 595x842 grid with a top-left origin and Y
// growing downward. It carries no physical meaning; a placement is mapped
// onto a real page by percentage so any page size maps proportionally.
package placement

import (
	"fmt"
	"math"
)

// Canonical page dimensions.
const (
	CanonicalWidth  = 595.0
	CanonicalHeight = 842.0
)

// Overlay size limits in canonical units.
const (
	MinSize       = 50.0
	MaxSize       = 300.0
	SizeTolerance = 0.5
)

// SquareEpsilon is the largest width/height difference of a square overlay.
const SquareEpsilon = 1e-6

// PointsPerMillimeter converts millimeters to PDF points.
const PointsPerMillimeter = 72.0 / 25.4

// Unit is the native unit of a real page.
type Unit string

const (
	Points      Unit = "points"
	Millimeters Unit = "millimeters"
)

// InferUnit guesses the unit of page dimensions that arrive without one.
// Pages whose dimensions are both below 1000 are taken as millimeters.
func InferUnit(width, height float64) Unit {
	if width < 1000 && height < 1000 {
		return Millimeters
	}
	return Points
}

// ParseUnit parses a unit name. The empty string yields Points.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "pt", "points":
		return Points, nil
	case "mm", "millimeters":
		return Millimeters, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// Decimals returns the number of decimals real values keep in this unit.
func (u Unit) Decimals() int {
	if u == Millimeters {
		return 6
	}
	return 2
}

// Round rounds v to the precision of the unit.
func (u Unit) Round(v float64) float64 {
	return Round(v, u.Decimals())
}

// ToPoints converts v from this unit to points.
func (u Unit) ToPoints(v float64) float64 {
	if u == Millimeters {
		return v * PointsPerMillimeter
	}
	return v
}

// FromPoints converts v from points to this unit.
func (u Unit) FromPoints(v float64) float64 {
	if u == Millimeters {
		return v / PointsPerMillimeter
	}
	return v
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Canonical is an overlay placement in canonical space.
type Canonical struct {
	X      float64 `json:"x" yaml:"x" bson:"x"`
	Y      float64 `json:"y" yaml:"y" bson:"y"`
	Width  float64 `json:"width" yaml:"width" bson:"width"`
	Height float64 `json:"height" yaml:"height" bson:"height"`
}

// Square returns a square canonical placement with its top-left corner at
// (x, y).
func Square(x, y, size float64) Canonical {
	return Canonical{X: x, Y: y, Width: size, Height: size}
}

// Rounded returns p with every field rounded to two decimals.
func (p Canonical) Rounded() Canonical {
	return Canonical{
		X:      Round(p.X, 2),
		Y:      Round(p.Y, 2),
		Width:  Round(p.Width, 2),
		Height: Round(p.Height, 2),
	}
}

func (p Canonical) String() string {
	return fmt.Sprintf("{x:%g y:%g width:%g height:%g}", p.X, p.Y, p.Width, p.Height)
}

// Page is the real page box of a document in its native unit.
type Page struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
	Unit   Unit    `json:"unit" bson:"unit"`
}

// CanonicalPage is the page used when nothing better is known.
var CanonicalPage = Page{Width: CanonicalWidth, Height: CanonicalHeight, Unit: Points}

// Valid reports whether the page has positive finite dimensions.
func (p Page) Valid() bool {
	return p.Width > 0 && p.Height > 0 && !math.IsInf(p.Width, 0) && !math.IsInf(p.Height, 0)
}

// InPoints returns the page converted to points.
func (p Page) InPoints() Page {
	return Page{Width: p.Unit.ToPoints(p.Width), Height: p.Unit.ToPoints(p.Height), Unit: Points}
}

// Rect is an axis-aligned rectangle in real or surface space with a
// top-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}
