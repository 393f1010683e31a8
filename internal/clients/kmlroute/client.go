package kmlroute

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dpup/routespan/internal/lib/geo"
)

// Loader reads route geometry out of KML documents. The first Placemark
// carrying a LineString with at least two coordinates wins.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a Loader with a sane download timeout
func NewLoader() *Loader {
	return &Loader{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// KML document structure, limited to the elements route extraction needs

type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlFolder struct {
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name       string        `xml:"name"`
	LineString kmlLineString `xml:"LineString"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

// LoadURL downloads a KML document and extracts its route polyline
func (l *Loader) LoadURL(ctx context.Context, url string) (geo.Polyline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return geo.Polyline{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return geo.Polyline{}, fmt.Errorf("failed to download KML: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Polyline{}, fmt.Errorf("HTTP error %d downloading KML from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return geo.Polyline{}, fmt.Errorf("failed to read KML response: %w", err)
	}

	return l.Parse(data)
}

// LoadFile reads a KML document from disk and extracts its route polyline
func (l *Loader) LoadFile(path string) (geo.Polyline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return geo.Polyline{}, fmt.Errorf("failed to read KML file: %w", err)
	}
	return l.Parse(data)
}

// Parse extracts the first LineString with at least two coordinates
func (l *Loader) Parse(data []byte) (geo.Polyline, error) {
	var root kmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return geo.Polyline{}, fmt.Errorf("failed to parse KML: %w", err)
	}

	points := findLineString(root.Document.Placemarks, root.Document.Folders)
	if len(points) < 2 {
		return geo.Polyline{}, errors.New("KML document contains no LineString with at least 2 points")
	}

	return geo.Polyline{Points: points}, nil
}

func findLineString(placemarks []kmlPlacemark, folders []kmlFolder) []geo.Point {
	for _, pm := range placemarks {
		if points := parseCoordinateList(pm.LineString.Coordinates); len(points) >= 2 {
			return points
		}
	}
	for _, f := range folders {
		if points := findLineString(f.Placemarks, f.Folders); len(points) >= 2 {
			return points
		}
	}
	return nil
}

// parseCoordinateList parses KML "lon,lat[,alt]" tuples separated by
// whitespace. Malformed tuples are skipped.
func parseCoordinateList(s string) []geo.Point {
	var points []geo.Point

	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}

		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}

		p, err := geo.NewPoint(lat, lng)
		if err != nil {
			continue
		}
		points = append(points, p)
	}

	return points
}
