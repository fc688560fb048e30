// Package geometry holds the rectangle arithmetic used to reason about
// OCR bounding boxes on a flyer page. Coordinates are image pixels with the
// origin in the upper-left corner.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoVertices is returned when a polygon has no vertices to bound.
var ErrNoVertices = errors.New("polygon has no vertices")

// Point is a position on the page
type Point struct {
	X float64
	Y float64
}

// Add returns the component-wise sum of two points
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Less reports whether p is strictly above and to the left of o.
func (p Point) Less(o Point) bool {
	return p.X < o.X && p.Y < o.Y
}

// Dimensions is the width and height of a rectangle
type Dimensions struct {
	Width  float64
	Height float64
}

// Scale returns the dimensions with both sides multiplied by f
func (d Dimensions) Scale(f float64) Dimensions {
	return Dimensions{Width: d.Width * f, Height: d.Height * f}
}

// Area returns Width*Height
func (d Dimensions) Area() float64 {
	return d.Width * d.Height
}

// AtLeast reports whether both sides are >= the other's sides.
func (d Dimensions) AtLeast(o Dimensions) bool {
	return d.Width >= o.Width && d.Height >= o.Height
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	Position   Point
	Dimensions Dimensions
}

// NewRect builds a rectangle from its top-left corner and size.
func NewRect(x, y, w, h float64) (Rect, error) {
	if w < 0 || h < 0 {
		return Rect{}, fmt.Errorf("negative dimensions %vx%v", w, h)
	}
	return Rect{Position: Point{X: x, Y: y}, Dimensions: Dimensions{Width: w, Height: h}}, nil
}

// FromBounds builds the rectangle spanning [left,right] x [top,bottom].
func FromBounds(left, top, right, bottom float64) Rect {
	return Rect{
		Position:   Point{X: left, Y: top},
		Dimensions: Dimensions{Width: math.Max(0, right-left), Height: math.Max(0, bottom-top)},
	}
}

// FromVertices returns the axis-aligned bounding rectangle of a polygon.
func FromVertices(vertices []Point) (Rect, error) {
	if len(vertices) == 0 {
		return Rect{}, ErrNoVertices
	}

	minX, minY := vertices[0].X, vertices[0].Y
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		minX = math.Min(minX, v.X)
		minY = math.Min(minY, v.Y)
		maxX = math.Max(maxX, v.X)
		maxY = math.Max(maxY, v.Y)
	}

	return FromBounds(minX, minY, maxX, maxY), nil
}

// Top returns the y coordinate of the upper edge
func (r Rect) Top() float64 {
	return r.Position.Y
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 {
	return r.Position.X + r.Dimensions.Width
}

// Bottom returns the y coordinate of the lower edge
func (r Rect) Bottom() float64 {
	return r.Position.Y + r.Dimensions.Height
}

// Left returns the x coordinate of the left edge
func (r Rect) Left() float64 {
	return r.Position.X
}

// TopLeft returns the upper left corner
func (r Rect) TopLeft() Point {
	return r.Position
}

// TopRight returns the upper right corner
func (r Rect) TopRight() Point {
	return Point{X: r.Right(), Y: r.Top()}
}

// BottomRight returns the lower right corner
func (r Rect) BottomRight() Point {
	return Point{X: r.Right(), Y: r.Bottom()}
}

// BottomLeft returns the lower left corner
func (r Rect) BottomLeft() Point {
	return Point{X: r.Left(), Y: r.Bottom()}
}

// Centroid returns the centre of the rectangle
func (r Rect) Centroid() Point {
	return Point{
		X: r.Position.X + r.Dimensions.Width/2,
		Y: r.Position.Y + r.Dimensions.Height/2,
	}
}

// Area returns the rectangle's area
func (r Rect) Area() float64 {
	return r.Dimensions.Area()
}

// Compare orders rectangles by area alone. Rectangles of equal area compare
// equal regardless of shape, so a wide strip and a tall column of the same
// area rank the same during absorption.
func (r Rect) Compare(o Rect) int {
	switch a, b := r.Area(), o.Area(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Greater reports whether r has strictly larger area than o.
func (r Rect) Greater(o Rect) bool { return r.Compare(o) > 0 }

// Less reports whether r has strictly smaller area than o.
func (r Rect) Less(o Rect) bool { return r.Compare(o) < 0 }

// Inflate grows the rectangle by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return FromBounds(r.Left()-d, r.Top()-d, r.Right()+d, r.Bottom()+d)
}

// Bounding returns the smallest rectangle enclosing all rects. The zero
// Rect is returned for an empty input.
func Bounding(rects ...Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}

	left, top := rects[0].Left(), rects[0].Top()
	right, bottom := rects[0].Right(), rects[0].Bottom()
	for _, r := range rects[1:] {
		left = math.Min(left, r.Left())
		top = math.Min(top, r.Top())
		right = math.Max(right, r.Right())
		bottom = math.Max(bottom, r.Bottom())
	}

	return FromBounds(left, top, right, bottom)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.Position.X, r.Position.Y, r.Dimensions.Width, r.Dimensions.Height)
}
