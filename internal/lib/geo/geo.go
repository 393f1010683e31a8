package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

const (
	earthRadius = 6371000 // meters
	tileSize    = 256     // pixels, standard web-mercator tile
)

// ops implements the Ops interface
type ops struct {
	distance DistanceFunc
}

// Option configures an Ops implementation
type Option func(*ops)

// WithDistanceFunc overrides the default great-circle metric
func WithDistanceFunc(fn DistanceFunc) Option {
	return func(o *ops) {
		o.distance = fn
	}
}

// NewOps creates a new Ops implementation with haversine as the default metric
func NewOps(opts ...Option) Ops {
	o := &ops{distance: Haversine}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Haversine is the default DistanceFunc: great-circle distance in meters
func Haversine(a, b Point) float64 {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// Distance measures the distance between two points using the configured metric
func (g *ops) Distance(a, b Point) (float64, error) {
	if !isValidCoordinate(a) || !isValidCoordinate(b) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return g.distance(a, b), nil
}

// Project maps a geographic coordinate to spherical-mercator pixel space at
// the given zoom. Pixel space is what the host renders in, so segment math
// done here is locally linear.
func (g *ops) Project(p Point, zoom float64) Planar {
	scale := tileSize * math.Exp2(zoom)
	siny := math.Sin(p.Latitude * math.Pi / 180)

	// Clamp to keep y finite near the poles
	siny = math.Min(math.Max(siny, -0.9999), 0.9999)

	return Planar{
		X: scale * (0.5 + p.Longitude/360),
		Y: scale * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// Unproject maps a pixel-space point at the given zoom back to geographic
// coordinates
func (g *ops) Unproject(pt Planar, zoom float64) Point {
	scale := tileSize * math.Exp2(zoom)
	n := math.Pi * (1 - 2*pt.Y/scale)

	return Point{
		Latitude:  math.Atan(math.Sinh(n)) * 180 / math.Pi,
		Longitude: (pt.X/scale - 0.5) * 360,
	}
}

// ClosestPointOnSegment finds the point on segment a-b closest to p by
// perpendicular projection, with the segment parameter clamped to [0,1].
// Work happens in an equirectangular plane around the segment, which is
// accurate at road-segment scale.
func (g *ops) ClosestPointOnSegment(p, a, b Point) (Point, float64) {
	if a.Latitude == b.Latitude && a.Longitude == b.Longitude {
		return a, 0
	}

	cosLat := math.Cos((a.Latitude + b.Latitude) / 2 * math.Pi / 180)

	ax, ay := a.Longitude*cosLat, a.Latitude
	bx, by := b.Longitude*cosLat, b.Latitude
	px, py := p.Longitude*cosLat, p.Latitude

	dx, dy := bx-ax, by-ay
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)

	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Point{
		Latitude:  a.Latitude + t*(b.Latitude-a.Latitude),
		Longitude: a.Longitude + t*(b.Longitude-a.Longitude),
	}, t
}

// PointSegmentDistance measures the distance from p to the clamped closest
// point on segment a-b; used to rank candidate segments during hit-testing
func (g *ops) PointSegmentDistance(p, a, b Point) float64 {
	closest, _ := g.ClosestPointOnSegment(p, a, b)
	return g.distance(p, closest)
}

// PointAtDistanceOnSegment interpolates the point m meters from a along
// segment a-b of precomputed length segLen. Interpolation is linear, which
// matches pixel-space rendering for road-scale segments.
func (g *ops) PointAtDistanceOnSegment(a, b Point, m, segLen float64) Point {
	if segLen <= 0 {
		return a
	}

	t := m / segLen
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Point{
		Latitude:  a.Latitude + t*(b.Latitude-a.Latitude),
		Longitude: a.Longitude + t*(b.Longitude-a.Longitude),
	}
}

// DecodePolyline decodes a Google polyline string to a point sequence
func (g *ops) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes a point sequence as a Google polyline string
func (g *ops) EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	p := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(p) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return p, nil
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(p Point) bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
