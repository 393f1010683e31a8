package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routespan/internal/lib/geo"
)

func straightLine() geo.Polyline {
	return geo.Polyline{Points: []geo.Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 10},
		{Latitude: 0, Longitude: 20},
		{Latitude: 10, Longitude: 20},
	}}
}

func TestIndex_Build(t *testing.T) {
	ix := NewIndex()

	require.NoError(t, ix.Build(straightLine()))
	assert.Equal(t, 3, ix.Len())

	// Too few points is a precondition violation
	err := ix.Build(geo.Polyline{Points: []geo.Point{{Latitude: 0, Longitude: 0}}})
	assert.Error(t, err)
}

func TestIndex_Query(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Build(straightLine()))

	// Box around the middle of the first segment hits only segment 0
	segs, err := ix.Query(BoxAround(geo.Point{Latitude: 0, Longitude: 5}, 1, 1))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].StartIndex)
	assert.Equal(t, 1, segs[0].EndIndex)

	// Box straddling the shared vertex hits both adjacent segments, in index order
	segs, err = ix.Query(BoxAround(geo.Point{Latitude: 0, Longitude: 10}, 1, 1))
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, 0, segs[0].StartIndex)
	assert.Equal(t, 1, segs[1].StartIndex)

	// Box far from every segment is an empty, non-error result
	segs, err = ix.Query(BoxAround(geo.Point{Latitude: 50, Longitude: 50}, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestIndex_QueryVerticalSegment(t *testing.T) {
	// Axis-aligned segments have a zero-width bbox on one axis; the index
	// must still find them.
	ix := NewIndex()
	require.NoError(t, ix.Build(geo.Polyline{Points: []geo.Point{
		{Latitude: 0, Longitude: 5},
		{Latitude: 10, Longitude: 5},
	}}))

	segs, err := ix.Query(BoxAround(geo.Point{Latitude: 5, Longitude: 5}, 0.5, 0.5))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].StartIndex)
}

func TestIndex_Rebuild(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Build(straightLine()))
	require.Equal(t, 3, ix.Len())

	// Rebuilding swaps in the new snapshot wholesale
	require.NoError(t, ix.Build(geo.Polyline{Points: []geo.Point{
		{Latitude: 40, Longitude: 40},
		{Latitude: 41, Longitude: 41},
	}}))
	assert.Equal(t, 1, ix.Len())

	segs, err := ix.Query(BoxAround(geo.Point{Latitude: 0, Longitude: 5}, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, segs, "Segments from the previous polyline version should be gone")
}

func TestIndex_Clear(t *testing.T) {
	ix := NewIndex()
	require.NoError(t, ix.Build(straightLine()))

	ix.Clear()
	assert.Zero(t, ix.Len())

	_, err := ix.Query(BoxAround(geo.Point{Latitude: 0, Longitude: 5}, 1, 1))
	assert.Error(t, err, "Query after Clear should be rejected")
}
