// Package ledger turns raw on-ledger transactions into renderable payment
// events: it filters and deduplicates payments, resolves address labels, and
// computes the globe arcs the dashboard animates.
package ledger

import (
	"math"

	"github.com/ledgerpulse/ledgerpulse/internal/domain"
)

const (
	// arcSegments is the number of Bezier segments per arc; the point list
	// has arcSegments+1 entries.
	arcSegments = 48

	// arcAltitudeScale converts angular distance into arc peak height above
	// the unit sphere. A half-circumference hop peaks at half a radius.
	arcAltitudeScale = 0.5
)

// latLngToVec3 maps a coordinate onto the unit sphere, y-up, matching the
// globe renderer's convention.
func latLngToVec3(p domain.LatLng) domain.Vec3 {
	phi := (90 - p.Lat) * math.Pi / 180
	theta := (p.Lng + 180) * math.Pi / 180
	return domain.Vec3{
		X: -math.Sin(phi) * math.Cos(theta),
		Y: math.Cos(phi),
		Z: math.Sin(phi) * math.Sin(theta),
	}
}

func dot(a, b domain.Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func length(v domain.Vec3) float64 {
	return math.Sqrt(dot(v, v))
}

func scale(v domain.Vec3, s float64) domain.Vec3 {
	return domain.Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func add(a, b domain.Vec3) domain.Vec3 {
	return domain.Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

// angularDistance returns the great-circle angle between two unit vectors,
// in radians.
func angularDistance(a, b domain.Vec3) float64 {
	d := dot(a, b)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// BuildArc computes the quadratic Bezier arc between two coordinates on the
// unit sphere. The control point sits above the midpoint at an altitude
// proportional to the great-circle distance, so long hops arc higher.
func BuildArc(src, dst domain.LatLng) domain.GeoArc {
	a := latLngToVec3(src)
	b := latLngToVec3(dst)

	angle := angularDistance(a, b)
	altitude := arcAltitudeScale * angle / math.Pi

	mid := add(a, b)
	if l := length(mid); l > 1e-9 {
		mid = scale(mid, 1/l)
	} else {
		// Antipodal endpoints have no unique midpoint; pick a pole-ish
		// perpendicular so the arc is still well formed.
		mid = perpendicular(a)
	}
	ctrl := scale(mid, 1+altitude)

	points := make([]domain.Vec3, arcSegments+1)
	for i := 0; i <= arcSegments; i++ {
		t := float64(i) / arcSegments
		u := 1 - t
		points[i] = add(add(scale(a, u*u), scale(ctrl, 2*u*t)), scale(b, t*t))
	}

	return domain.GeoArc{
		Src:      src,
		Dst:      dst,
		Altitude: altitude,
		Points:   points,
	}
}

// perpendicular returns a unit vector orthogonal to v.
func perpendicular(v domain.Vec3) domain.Vec3 {
	p := domain.Vec3{X: -v.Y, Y: v.X, Z: 0}
	if l := length(p); l > 1e-9 {
		return scale(p, 1/l)
	}
	return domain.Vec3{X: 1}
}
