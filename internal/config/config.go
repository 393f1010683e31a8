package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Selection SelectionConfig `yaml:"selection"`
	Route     RouteConfig     `yaml:"route"`
}

// SelectionConfig tunes pointer interaction with the polyline
type SelectionConfig struct {
	// Pixel radius around the pointer that counts as a hit
	TolerancePixels float64 `yaml:"tolerance_pixels"`
	// Rendered line weight in pixels; half of it widens the hit radius
	LineWeightPixels float64 `yaml:"line_weight_pixels"`
	// How long a drag may sit idle before it is treated as released
	DragIdleTimeout time.Duration `yaml:"drag_idle_timeout"`
}

// RouteConfig describes where the session polyline comes from
type RouteConfig struct {
	// Path or URL of a KML document containing a LineString
	KMLSource string `yaml:"kml_source"`
	// Google encoded polyline, used when no KML source is configured
	EncodedPolyline string `yaml:"encoded_polyline"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Selection: SelectionConfig{
			TolerancePixels:  10,
			LineWeightPixels: 4,
			DragIdleTimeout:  2 * time.Second,
		},
	}
}
