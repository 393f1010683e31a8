package kmlroute

import (
	"errors"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/routespan/internal/lib/geo"
)

// WriteSelection writes a coordinate sequence as a KML Placemark with a
// LineString, so a selected sub-route can be inspected in a map viewer
func WriteSelection(w io.Writer, name string, points []geo.Point) error {
	if len(points) < 2 {
		return errors.New("selection must have at least 2 points")
	}

	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	doc := kml.KML(
		kml.Document(
			kml.Placemark(
				kml.Name(name),
				kml.LineString(
					kml.Coordinates(coords...),
				),
			),
		),
	)

	return doc.WriteIndent(w, "", "  ")
}
