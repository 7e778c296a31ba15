package placement

import (
	"fmt"
	"math"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
)

// boundsEpsilon absorbs float error in real-space bound comparisons.
const boundsEpsilon = 1e-9

// ValidationError reports a placement that violates a size or bounds rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid placement %s: %s", e.Field, e.Reason)
}

// Kind implements errkind.Kinded.
func (e *ValidationError) Kind() errkind.Kind {
	return errkind.Validation
}

// Validator checks canonical placements against a real page. It rejects
// offending placements and never adjusts them.
type Validator struct {
	MinSize    float64
	MaxSize    float64
	Tolerance  float64
	SafeMargin float64
}

// DefaultValidator returns a validator with the standard limits and no safe
// margin.
func DefaultValidator() Validator {
	return Validator{MinSize: MinSize, MaxSize: MaxSize, Tolerance: SizeTolerance}
}

// Validate checks p against page with the default limits and the given
// safe margin (in canonical units).
func Validate(p Canonical, page Page, safeMargin float64) error {
	v := DefaultValidator()
	v.SafeMargin = safeMargin
	return v.Validate(p, page)
}

// Validate checks p against page.
func (v Validator) Validate(p Canonical, page Page) error {
	for _, f := range []struct {
		name string
		val  float64
	}{{"x", p.X}, {"y", p.Y}, {"width", p.Width}, {"height", p.Height}} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return &ValidationError{Field: f.name, Reason: "not a finite number"}
		}
	}

	lo, hi := v.MinSize-v.Tolerance, v.MaxSize+v.Tolerance
	if p.Width < lo || p.Width > hi {
		return &ValidationError{Field: "width", Reason: fmt.Sprintf("%g outside [%g, %g]", p.Width, v.MinSize, v.MaxSize)}
	}
	if p.Height < lo || p.Height > hi {
		return &ValidationError{Field: "height", Reason: fmt.Sprintf("%g outside [%g, %g]", p.Height, v.MinSize, v.MaxSize)}
	}
	if math.Abs(p.Width-p.Height) > SquareEpsilon {
		return &ValidationError{Field: "height", Reason: fmt.Sprintf("overlay must be square, got %gx%g", p.Width, p.Height)}
	}
	if p.X < 0 {
		return &ValidationError{Field: "x", Reason: "negative"}
	}
	if p.Y < 0 {
		return &ValidationError{Field: "y", Reason: "negative"}
	}
	if !page.Valid() {
		return &ValidationError{Field: "page", Reason: fmt.Sprintf("page %gx%g has no area", page.Width, page.Height)}
	}

	r := toReal(p, page)
	mx := v.SafeMargin / CanonicalWidth * page.Width
	my := v.SafeMargin / CanonicalHeight * page.Height
	epsX := boundsEpsilon * page.Width
	epsY := boundsEpsilon * page.Height

	switch {
	case r.X < mx-epsX:
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("%g is inside the %g safe margin", p.X, v.SafeMargin)}
	case r.Y < my-epsY:
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("%g is inside the %g safe margin", p.Y, v.SafeMargin)}
	case r.Right() > page.Width-mx+epsX:
		return &ValidationError{Field: "x", Reason: fmt.Sprintf("right edge %g exceeds %g", p.X+p.Width, CanonicalWidth-v.SafeMargin)}
	case r.Bottom() > page.Height-my+epsY:
		return &ValidationError{Field: "y", Reason: fmt.Sprintf("bottom edge %g exceeds %g", p.Y+p.Height, CanonicalHeight-v.SafeMargin)}
	}
	return nil
}
