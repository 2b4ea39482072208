package drag

import "math"

// Point is a position in screen coordinates.
type Point struct {
	X, Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned box with its origin at the top-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Corners returns the top-left, top-right, bottom-left and bottom-right corners.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{r.X, r.Y},
		{r.X + r.Width, r.Y},
		{r.X, r.Y + r.Height},
		{r.X + r.Width, r.Y + r.Height},
	}
}

// Intersects reports whether r and o overlap with a non-zero area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// cornerDistance is the sum of the distances between matching corners of a and b.
func cornerDistance(a, b Rect) float64 {
	ac, bc := a.Corners(), b.Corners()
	var sum float64
	for i := range ac {
		sum += ac[i].Distance(bc[i])
	}
	return sum
}
