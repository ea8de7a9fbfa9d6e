// Package stimulus turns seeded DRBG streams into the stimuli served to
// browsers: non-overlapping triangle layouts, canvas text placements
// and audio tone plans.
package stimulus

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/kenaz/drbg"
	"github.com/aukilabs/kenaz/spatial"
)

const (
	// ErrTypeBadConfiguration is returned when the requested shape
	// cannot fit the canvas. Detected before any randomness is drawn.
	ErrTypeBadConfiguration = "stimulus_bad_configuration"

	// ErrTypePlacementExhausted is returned when the attempt budget
	// runs out before the requested count is placed. The caller gets
	// no partial result.
	ErrTypePlacementExhausted = "stimulus_placement_exhausted"

	// DefaultTriangleSize is the bounding box edge used by the layout
	// endpoints.
	DefaultTriangleSize = 64

	// layoutMargin pads every triangle's bounding box in a layout.
	layoutMargin = 2

	// singleMargin pads the single-triangle endpoint.
	singleMargin = 3

	// attemptFactor scales the requested count into the global attempt
	// budget shared by all shapes of one run.
	attemptFactor = 10
)

// triangleTemplate is the fixed vertex template every candidate is
// translated from, as (x0,y0,x1,y1,x2,y2).
var triangleTemplate = Triangle{
	0, 55,
	17.38389009393539, 0.67781283689527,
	39.3956816724991, 8.0780276923631,
}

// Triangle is a flat vertex list (x0,y0,x1,y1,x2,y2), the layout the
// browser clients consume directly.
type Triangle [6]float64

// Shift returns a copy of the triangle translated by (dx, dy).
func (t Triangle) Shift(dx, dy float64) Triangle {
	return Triangle{
		t[0] + dx, t[1] + dy,
		t[2] + dx, t[3] + dy,
		t[4] + dx, t[5] + dy,
	}
}

// TriangleLayout places triangles from two independent DRBG streams.
// Position is seeded with the fast nonce and drives anchors and retry
// offsets; Shape is seeded with the slow nonce and reserved for
// template variation, so fine-grained timing entropy never shares nonce
// material with the coarse-grained stream.
type TriangleLayout struct {
	Position *drbg.Generator
	Shape    *drbg.Generator
}

// Single returns one triangle anchored inside the canvas, with its
// margin-expanded bounding box.
func (l *TriangleLayout) Single(width, height int) (Triangle, spatial.AABB, error) {
	if err := checkCanvas(width, height, DefaultTriangleSize); err != nil {
		return Triangle{}, spatial.AABB{}, err
	}
	return l.candidate(0, 0, width, height, singleMargin, DefaultTriangleSize, DefaultTriangleSize)
}

// Generate returns n mutually non-overlapping triangles on a width x
// height canvas, in acceptance order, together with their bounding
// boxes. The boxes are pairwise non-intersecting under the half-open
// convention.
func (l *TriangleLayout) Generate(n, width, height, size int) ([]Triangle, []spatial.AABB, error) {
	if err := checkCanvas(width, height, size); err != nil {
		return nil, nil, err
	}

	index := spatial.NewQuadtree(spatial.AABB{X0: 0, Y0: 0, X1: float64(width), Y1: float64(height)}, 0, 0)
	triangles := make([]Triangle, 0, n)
	boxes := make([]spatial.AABB, 0, n)

	maxAttempts := n * attemptFactor
	attempts := 0

	for len(triangles) < n && attempts < maxAttempts {
		tri, box, err := l.candidate(0, 0, width, height, layoutMargin, size, size)
		if err != nil {
			if errors.IsType(err, drbg.ErrTypeInvalidRange) {
				// The canvas passed the size check but leaves no
				// feasible anchor range. Burn an attempt so the run
				// terminates as exhausted instead of erroring out.
				attempts++
				continue
			}
			return nil, nil, err
		}

		overlap := len(index.Query(box)) > 0
		for overlap && attempts < maxAttempts {
			dx, err := l.Position.RandInt(-int(box.X0), width-int(box.X1))
			if err != nil {
				return nil, nil, err
			}
			dy, err := l.Position.RandInt(-int(box.Y0), height-int(box.Y1))
			if err != nil {
				return nil, nil, err
			}

			box = box.Shift(float64(dx), float64(dy))
			tri = tri.Shift(float64(dx), float64(dy))
			attempts++

			overlap = len(index.Query(box)) > 0
		}

		if !overlap {
			triangles = append(triangles, tri)
			boxes = append(boxes, box)
			index.Insert(box, tri)
		}
	}

	if len(triangles) < n {
		instrumentPlacementExhausted()
		return nil, nil, errors.New("attempt budget exhausted before reaching the requested count").
			WithType(ErrTypePlacementExhausted).
			WithTag("requested", n).
			WithTag("placed", len(triangles)).
			WithTag("attempts", attempts)
	}

	instrumentPlacement(n, attempts)
	return triangles, boxes, nil
}

// candidate draws an anchor from the position stream and translates the
// template there, keeping the margin-expanded box inside the region.
func (l *TriangleLayout) candidate(x0, y0, x1, y1, margin, boxWidth, boxHeight int) (Triangle, spatial.AABB, error) {
	xOffset, err := l.Position.RandInt(x0+margin, x1-margin-boxWidth)
	if err != nil {
		return Triangle{}, spatial.AABB{}, err
	}
	yOffset, err := l.Position.RandInt(y0+margin+boxHeight, y1-margin-boxHeight)
	if err != nil {
		return Triangle{}, spatial.AABB{}, err
	}

	tri := triangleTemplate.Shift(float64(xOffset), float64(yOffset))

	box := spatial.AABB{
		X0: math.Floor(min(tri[0], tri[2], tri[4]) - float64(margin)),
		Y0: math.Floor(min(tri[1], tri[3], tri[5]) - float64(margin)),
		X1: math.Ceil(max(tri[0], tri[2], tri[4]) + float64(margin)),
		Y1: math.Ceil(max(tri[1], tri[3], tri[5]) + float64(margin)),
	}
	return tri, box, nil
}

func checkCanvas(width, height, size int) error {
	if size > width || size*2 > height {
		return errors.New("triangle size does not fit the canvas").
			WithType(ErrTypeBadConfiguration).
			WithTag("width", width).
			WithTag("height", height).
			WithTag("size", size)
	}
	return nil
}
