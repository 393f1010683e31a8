package spatial

import (
	"errors"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/dpup/routespan/internal/lib/geo"
)

// rtreego rejects zero-area rectangles, so boxes for axis-aligned segments
// get padded by this many degrees.
const minExtent = 1e-9

// Segment identifies one polyline edge by the index pair of its endpoints
type Segment struct {
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	Start      geo.Point `json:"start"`
	End        geo.Point `json:"end"`
}

// Box is an axis-aligned geographic query rectangle
type Box struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BoxAround builds the query box for a point padded by geographic half-extents
func BoxAround(p geo.Point, dlat, dlng float64) Box {
	return Box{
		MinLat: p.Latitude - dlat,
		MinLng: p.Longitude - dlng,
		MaxLat: p.Latitude + dlat,
		MaxLng: p.Longitude + dlng,
	}
}

// segmentEntry wraps a segment for R-tree storage
type segmentEntry struct {
	segment Segment
	bbox    rtreego.Rect
}

// Bounds implements rtreego.Spatial
func (e *segmentEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// Index answers bounding-box range queries over the segments of one polyline
// version. It is rebuilt wholesale when the polyline changes; there is no
// incremental maintenance.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex creates an empty, unbuilt index
func NewIndex() *Index {
	return &Index{}
}

// Build computes one bounding box per segment and bulk-loads them. Any
// previously built snapshot is discarded.
func (ix *Index) Build(line geo.Polyline) error {
	if len(line.Points) < 2 {
		return errors.New("polyline must have at least 2 points")
	}

	entries := make([]rtreego.Spatial, 0, len(line.Points)-1)
	for i := 0; i < len(line.Points)-1; i++ {
		seg := Segment{
			StartIndex: i,
			EndIndex:   i + 1,
			Start:      line.Points[i],
			End:        line.Points[i+1],
		}

		bbox, err := segmentRect(seg)
		if err != nil {
			return err
		}
		entries = append(entries, &segmentEntry{segment: seg, bbox: bbox})
	}

	ix.tree = rtreego.NewTree(2, 25, 50, entries...)
	ix.size = len(entries)
	return nil
}

// Query returns all segments whose bounding box intersects box, ordered by
// ascending start index. An empty result is a valid outcome, not an error.
// Querying a cleared or never-built index is a precondition violation.
func (ix *Index) Query(box Box) ([]Segment, error) {
	if ix.tree == nil {
		return nil, errors.New("spatial index has not been built")
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{box.MinLng, box.MinLat},
		[]float64{extent(box.MaxLng - box.MinLng), extent(box.MaxLat - box.MinLat)},
	)
	if err != nil {
		return nil, err
	}

	results := ix.tree.SearchIntersect(rect)
	segments := make([]Segment, 0, len(results))
	for _, item := range results {
		segments = append(segments, item.(*segmentEntry).segment)
	}

	// SearchIntersect order depends on tree internals; callers need a stable view
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartIndex < segments[j].StartIndex
	})

	return segments, nil
}

// Clear releases the index; Build must run again before the next Query
func (ix *Index) Clear() {
	ix.tree = nil
	ix.size = 0
}

// Len reports the number of indexed segments
func (ix *Index) Len() int {
	return ix.size
}

// segmentRect computes the axis-aligned bounding box for a segment
func segmentRect(seg Segment) (rtreego.Rect, error) {
	minLng := math.Min(seg.Start.Longitude, seg.End.Longitude)
	maxLng := math.Max(seg.Start.Longitude, seg.End.Longitude)
	minLat := math.Min(seg.Start.Latitude, seg.End.Latitude)
	maxLat := math.Max(seg.Start.Latitude, seg.End.Latitude)

	return rtreego.NewRect(
		rtreego.Point{minLng, minLat},
		[]float64{extent(maxLng - minLng), extent(maxLat - minLat)},
	)
}

func extent(d float64) float64 {
	if d < minExtent {
		return minExtent
	}
	return d
}
