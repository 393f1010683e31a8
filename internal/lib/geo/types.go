package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Planar represents a point in projected (pixel) space at a given zoom
type Planar struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polyline represents a route geometry with optional encoded form
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
	Points          []Point `json:"points"`
}

// DistanceFunc is the metric used to measure the distance between two points
// in meters. The default is great-circle (haversine); callers needing a
// planar or otherwise specialised metric inject their own at construction.
type DistanceFunc func(a, b Point) float64

// Ops interface defines the geometric primitives used for hit-testing and
// distance walks over polylines
type Ops interface {
	// Distance between two points in meters, using the configured metric
	Distance(a, b Point) (float64, error)

	// Map a geographic coordinate to pixel space at the given zoom
	Project(p Point, zoom float64) Planar

	// Inverse of Project
	Unproject(pt Planar, zoom float64) Point

	// Closest point on segment a-b to p, plus the segment parameter clamped to [0,1]
	ClosestPointOnSegment(p, a, b Point) (Point, float64)

	// Distance from p to the clamped closest point on segment a-b
	PointSegmentDistance(p, a, b Point) float64

	// Point at distance m from a along segment a-b of length segLen
	PointAtDistanceOnSegment(a, b Point, m, segLen float64) Point

	// Decode Google polyline string to point sequence
	DecodePolyline(encoded string) ([]Point, error)

	// Encode point sequence as a Google polyline string
	EncodePolyline(points []Point) string
}

// NewOps is implemented in geo.go
