package geometry

import "math"

// SignedArea returns the shoelace area of a polygon. It is positive when the
// vertices run counter-clockwise in a y-up frame.
func SignedArea(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	return sum / 2
}

// PolygonArea returns the unsigned area of a simple polygon.
func PolygonArea(polygon []Point2D) float64 {
	return math.Abs(SignedArea(polygon))
}

// CounterClockwise returns the polygon with positive signed area, reversing
// a copy of the vertices when needed.
func CounterClockwise(polygon []Point2D) []Point2D {
	if SignedArea(polygon) >= 0 {
		return polygon
	}
	out := make([]Point2D, len(polygon))
	for i, p := range polygon {
		out[len(polygon)-1-i] = p
	}
	return out
}

// IntersectPolygons computes the intersection of two convex polygons using
// the Sutherland-Hodgman algorithm. Both input polygons must be convex.
// Returns nil if there is no intersection or if inputs are invalid.
func IntersectPolygons(subject, clip []Point2D) []Point2D {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}

	clip = CounterClockwise(clip)
	output := make([]Point2D, len(subject))
	copy(output, subject)

	// Clip against each edge of the clip polygon
	for i := 0; i < len(clip); i++ {
		if len(output) == 0 {
			return nil
		}
		output = clipPolygonByEdge(output, clip[i], clip[(i+1)%len(clip)])
	}

	if len(output) < 3 {
		return nil
	}
	return output
}

// ConvexIoU returns the intersection-over-union of two convex polygons.
func ConvexIoU(a, b []Point2D) float64 {
	inter := PolygonArea(IntersectPolygons(a, b))
	union := PolygonArea(a) + PolygonArea(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// clipPolygonByEdge clips a polygon against a single edge using
// the Sutherland-Hodgman algorithm.
func clipPolygonByEdge(polygon []Point2D, edgeStart, edgeEnd Point2D) []Point2D {
	var clipped []Point2D

	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentInside := isInsideEdge(current, edgeStart, edgeEnd)
		nextInside := isInsideEdge(next, edgeStart, edgeEnd)

		if currentInside {
			clipped = append(clipped, current)
			if !nextInside {
				if intersection, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
					clipped = append(clipped, intersection)
				}
			}
		} else if nextInside {
			if intersection, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
				clipped = append(clipped, intersection)
			}
		}
	}

	return clipped
}

// isInsideEdge checks if a point is on the inside (left side) of the directed edge.
func isInsideEdge(p, edgeStart, edgeEnd Point2D) bool {
	return (edgeEnd.X-edgeStart.X)*(p.Y-edgeStart.Y)-
		(edgeEnd.Y-edgeStart.Y)*(p.X-edgeStart.X) >= 0
}

// lineIntersection computes the intersection point of line p1-p2
// with line e1-e2. Returns false for parallel lines.
func lineIntersection(p1, p2, e1, e2 Point2D) (Point2D, bool) {
	x1, y1 := p1.X, p1.Y
	x2, y2 := p2.X, p2.Y
	x3, y3 := e1.X, e1.Y
	x4, y4 := e2.X, e2.Y

	denom := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(denom) < 1e-10 {
		return Point2D{}, false
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / denom

	return Point2D{
		X: x1 + t*(x2-x1),
		Y: y1 + t*(y2-y1),
	}, true
}
