// Package spatial provides the axis-aligned bounding boxes and the
// quadtree index used to lay out stimuli without visual overlap.
//
// All boxes follow the half-open convention: a box covers
// [X0,X1) x [Y0,Y1), so boxes sharing an edge do not intersect.
package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeInvalidBounds is returned when a box is constructed with its
// max corner before its min corner.
const ErrTypeInvalidBounds = "spatial_invalid_bounds"

// AABB is an axis-aligned half-open rectangle. Values are immutable;
// moved boxes are new values.
type AABB struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// NewAABB builds a box from its min and max corners.
func NewAABB(x0, y0, x1, y1 float64) (AABB, error) {
	if x1 < x0 || y1 < y0 {
		return AABB{}, errors.New("max corner is before min corner").
			WithType(ErrTypeInvalidBounds).
			WithTag("x0", x0).
			WithTag("y0", y0).
			WithTag("x1", x1).
			WithTag("y1", y1)
	}

	return AABB{X0: x0, Y0: y0, X1: x1, Y1: y1}, nil
}

// Intersects reports whether the two boxes overlap. Touching edges do
// not count.
func (b AABB) Intersects(o AABB) bool {
	return !(b.X1 <= o.X0 ||
		b.X0 >= o.X1 ||
		b.Y1 <= o.Y0 ||
		b.Y0 >= o.Y1)
}

// Contains reports whether o lies fully inside b.
func (b AABB) Contains(o AABB) bool {
	return b.X0 <= o.X0 &&
		b.Y0 <= o.Y0 &&
		b.X1 >= o.X1 &&
		b.Y1 >= o.Y1
}

// ContainsPoint reports whether the point lies inside the box.
func (b AABB) ContainsPoint(x, y float64) bool {
	return b.X0 <= x && x < b.X1 &&
		b.Y0 <= y && y < b.Y1
}

// Shift returns a copy of the box translated by (dx, dy).
func (b AABB) Shift(dx, dy float64) AABB {
	return AABB{
		X0: b.X0 + dx,
		Y0: b.Y0 + dy,
		X1: b.X1 + dx,
		Y1: b.Y1 + dy,
	}
}

// Width returns the horizontal extent of the box.
func (b AABB) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the vertical extent of the box.
func (b AABB) Height() float64 {
	return b.Y1 - b.Y0
}
