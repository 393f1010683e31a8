package view

import (
	"errors"

	"github.com/dpup/routespan/internal/lib/geo"
)

// Context carries what the host knows about the current map view. The host
// must deliver a fresh Context on every pan, zoom, or resize.
type Context struct {
	Center geo.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
}

// Tolerance is the geographic half-extent of a fixed pixel radius around the
// view center. It is only valid for the view it was computed from; hit-testing
// with a stale tolerance silently misses or over-matches.
type Tolerance struct {
	DLat float64 `json:"dlat"`
	DLng float64 `json:"dlng"`
}

// Calculator converts pixel hit radii into geographic tolerances
type Calculator struct {
	ops geo.Ops
}

// NewCalculator creates a Calculator backed by the given geometry ops
func NewCalculator(ops geo.Ops) *Calculator {
	return &Calculator{ops: ops}
}

// Recompute derives the geographic half-extents of pixelRadius at the view
// center. The pixel-to-geo ratio depends on zoom and latitude, so this must
// run again after every qualifying view event.
func (c *Calculator) Recompute(view Context, pixelRadius float64) (Tolerance, error) {
	if pixelRadius <= 0 {
		return Tolerance{}, errors.New("pixel radius must be positive")
	}

	center := c.ops.Project(view.Center, view.Zoom)
	offset := c.ops.Unproject(geo.Planar{X: center.X + pixelRadius, Y: center.Y - pixelRadius}, view.Zoom)

	dlat := offset.Latitude - view.Center.Latitude
	dlng := offset.Longitude - view.Center.Longitude
	if dlat < 0 {
		dlat = -dlat
	}
	if dlng < 0 {
		dlng = -dlng
	}

	return Tolerance{DLat: dlat, DLng: dlng}, nil
}
