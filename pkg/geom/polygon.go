package geom

import "github.com/paulmach/orb"

// PolygonOverlapArea returns the area of the intersection of two closed
// rings in the XY plane, clip being convex. orb ships the point/ring/polygon
// types but no boolean ops, so the clip itself is ours: Sutherland-Hodgman
// against each edge of clip, applied to subject.
//
// The winding of clip is read from its signed area, so clockwise and
// counter-clockwise clip rings are both handled; the two inputs need not
// share an orientation.
func PolygonOverlapArea(subject, clip orb.Ring) float64 {
	if len(subject) < 3 || len(clip) < 3 {
		return 0
	}
	var winding float64
	for i := 0; i < len(clip)-1; i++ {
		winding += clip[i][0]*clip[i+1][1] - clip[i+1][0]*clip[i][1]
	}
	output := subject
	for i := 0; i < len(clip)-1; i++ {
		if len(output) == 0 {
			return 0
		}
		a, b := clip[i], clip[i+1]
		if winding < 0 {
			// Clockwise clip: its interior lies to the right of each edge.
			a, b = b, a
		}
		output = clipEdge(output, a, b)
	}
	return ringArea(output)
}

// clipEdge clips the polygon `input` against the half-plane to the left of
// the directed edge a->b, per the Sutherland-Hodgman algorithm.
func clipEdge(input orb.Ring, a, b orb.Point) orb.Ring {
	if len(input) == 0 {
		return nil
	}
	var output orb.Ring
	edgeX, edgeY := b[0]-a[0], b[1]-a[1]

	inside := func(p orb.Point) bool {
		return edgeX*(p[1]-a[1])-edgeY*(p[0]-a[0]) >= 0
	}
	intersect := func(p, q orb.Point) orb.Point {
		px, py := p[0], p[1]
		qx, qy := q[0], q[1]
		d1 := edgeX*(py-a[1]) - edgeY*(px-a[0])
		d2 := edgeX*(qy-a[1]) - edgeY*(qx-a[0])
		t := d1 / (d1 - d2)
		return orb.Point{px + t*(qx-px), py + t*(qy-py)}
	}

	n := len(input)
	for i := 0; i < n; i++ {
		cur := input[i]
		prev := input[(i-1+n)%n]
		curIn := inside(cur)
		prevIn := inside(prev)
		if curIn {
			if !prevIn {
				output = append(output, intersect(prev, cur))
			}
			output = append(output, cur)
		} else if prevIn {
			output = append(output, intersect(prev, cur))
		}
	}
	return output
}

// ringArea returns the unsigned area of a (possibly open) ring via the
// shoelace formula.
func ringArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	n := len(r)
	for i := 0; i < n; i++ {
		p := r[i]
		q := r[(i+1)%n]
		sum += p[0]*q[1] - q[0]*p[1]
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}
