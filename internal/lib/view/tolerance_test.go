package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routespan/internal/lib/geo"
)

func TestCalculator_Recompute(t *testing.T) {
	calc := NewCalculator(geo.NewOps())

	v := Context{
		Center: geo.Point{Latitude: 38.0675, Longitude: -120.5436},
		Zoom:   14,
		Width:  1024,
		Height: 768,
	}

	tol, err := calc.Recompute(v, 12)
	require.NoError(t, err)
	assert.Greater(t, tol.DLat, 0.0)
	assert.Greater(t, tol.DLng, 0.0)

	// Zooming out one level doubles the geographic size of a pixel
	out := v
	out.Zoom = 13
	tolOut, err := calc.Recompute(out, 12)
	require.NoError(t, err)
	assert.InDelta(t, tol.DLng*2, tolOut.DLng, tol.DLng*0.01)

	// A larger hit radius scales the tolerance proportionally
	tolWide, err := calc.Recompute(v, 24)
	require.NoError(t, err)
	assert.InDelta(t, tol.DLng*2, tolWide.DLng, tol.DLng*0.01)
}

func TestCalculator_RecomputeLatitudeDependence(t *testing.T) {
	calc := NewCalculator(geo.NewOps())

	equator := Context{Center: geo.Point{Latitude: 0, Longitude: 0}, Zoom: 12}
	north := Context{Center: geo.Point{Latitude: 60, Longitude: 0}, Zoom: 12}

	tolEq, err := calc.Recompute(equator, 10)
	require.NoError(t, err)
	tolNo, err := calc.Recompute(north, 10)
	require.NoError(t, err)

	// Mercator stretches vertically toward the poles, so one pixel spans
	// fewer degrees of latitude at 60N than at the equator.
	assert.Less(t, tolNo.DLat, tolEq.DLat)

	// Longitude span per pixel is latitude-independent in mercator
	assert.InDelta(t, tolEq.DLng, tolNo.DLng, tolEq.DLng*0.001)
}

func TestCalculator_RecomputeRejectsNonPositiveRadius(t *testing.T) {
	calc := NewCalculator(geo.NewOps())

	_, err := calc.Recompute(Context{Zoom: 10}, 0)
	assert.Error(t, err)

	_, err = calc.Recompute(Context{Zoom: 10}, -3)
	assert.Error(t, err)
}
