package geometry

import "math"

// intersects reports whether the closed intervals [s1,e1] and [s2,e2] share
// at least one point.
func intersects(s1, e1, s2, e2 float64) bool {
	contains := func(s, e, v float64) bool { return v >= s && v <= e }
	return contains(s1, e1, s2) || contains(s1, e1, e2) || contains(s2, e2, s1)
}

// OverlapInX reports whether the horizontal extents of a and b intersect.
func OverlapInX(a, b Rect) bool {
	return intersects(a.Left(), a.Right(), b.Left(), b.Right())
}

// OverlapInY reports whether the vertical extents of a and b intersect.
func OverlapInY(a, b Rect) bool {
	return intersects(a.Top(), a.Bottom(), b.Top(), b.Bottom())
}

// Overlap reports whether a and b intersect on both axes. Touching edges
// count as overlap.
func Overlap(a, b Rect) bool {
	return OverlapInX(a, b) && OverlapInY(a, b)
}

// OverlapFully reports whether a strictly encloses b and is larger than it.
func OverlapFully(a, b Rect) bool {
	return a.Greater(b) &&
		a.TopLeft().Less(b.TopLeft()) &&
		b.BottomRight().Less(a.BottomRight())
}

// Distance returns the gap between two rectangles: zero when they overlap,
// the gap along the separating axis when they overlap on the other one, and
// the Euclidean length of both gaps otherwise.
func Distance(a, b Rect) float64 {
	dx := math.Min(math.Abs(a.Left()-b.Right()), math.Abs(a.Right()-b.Left()))
	dy := math.Min(math.Abs(a.Bottom()-b.Top()), math.Abs(a.Top()-b.Bottom()))

	switch {
	case Overlap(a, b):
		return 0
	case OverlapInX(a, b):
		return dy
	case OverlapInY(a, b):
		return dx
	default:
		return math.Hypot(dx, dy)
	}
}
