package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/prefab"

	"github.com/dpup/routespan/internal/clients/kmlroute"
	"github.com/dpup/routespan/internal/config"
	"github.com/dpup/routespan/internal/lib/geo"
	"github.com/dpup/routespan/internal/lib/selection"
	"github.com/dpup/routespan/internal/lib/view"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "select-by-distance":
		handleSelectByDistance()
	case "nearest":
		handleNearest()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleSelectByDistance() {
	fs := flag.NewFlagSet("select-by-distance", flag.ExitOnError)
	kmlFile := fs.String("kml", "", "Path to KML file containing the route LineString")
	encoded := fs.String("polyline", "", "Google encoded polyline (alternative to --kml)")
	start := fs.Float64("start", 0, "Selection start distance in meters")
	end := fs.Float64("end", 0, "Selection end distance in meters")
	out := fs.String("out", "", "Optional path to write the selection as KML")

	fs.Parse(os.Args[2:])

	cfg := loadConfig()
	eng, ctx := newEngine(cfg)

	line := loadPolyline(cfg, *kmlFile, *encoded)
	if err := eng.SetPolyline(ctx, line); err != nil {
		log.Fatalf("Error loading polyline: %v", err)
	}

	fmt.Printf("Route: %d vertices, %.1fm total\n", len(line.Points), eng.TotalLength())

	if err := eng.SelectByDistance(ctx, *start, *end); err != nil {
		log.Fatalf("Error selecting by distance: %v", err)
	}

	coords, ok := eng.GetSelection()
	if !ok {
		log.Fatal("No selection produced")
	}

	output, err := json.MarshalIndent(coords, "", "  ")
	if err != nil {
		log.Fatalf("Error formatting selection: %v", err)
	}
	fmt.Printf("Selection (%d points):\n%s\n", len(coords), output)

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Error creating output file: %v", err)
		}
		defer f.Close()

		if err := kmlroute.WriteSelection(f, "selected span", coords); err != nil {
			log.Fatalf("Error writing KML: %v", err)
		}
		fmt.Printf("Selection written to %s\n", *out)
	}
}

func handleNearest() {
	fs := flag.NewFlagSet("nearest", flag.ExitOnError)
	kmlFile := fs.String("kml", "", "Path to KML file containing the route LineString")
	encoded := fs.String("polyline", "", "Google encoded polyline (alternative to --kml)")
	lat := fs.Float64("lat", 0, "Pointer latitude")
	lng := fs.Float64("lng", 0, "Pointer longitude")
	zoom := fs.Float64("zoom", 14, "View zoom level")

	fs.Parse(os.Args[2:])

	cfg := loadConfig()
	eng, ctx := newEngine(cfg)

	line := loadPolyline(cfg, *kmlFile, *encoded)
	if err := eng.SetPolyline(ctx, line); err != nil {
		log.Fatalf("Error loading polyline: %v", err)
	}

	pointer := geo.Point{Latitude: *lat, Longitude: *lng}
	if err := eng.SetView(ctx, view.Context{Center: pointer, Zoom: *zoom}); err != nil {
		log.Fatalf("Error setting view: %v", err)
	}

	candidate, err := eng.NearestPoint(pointer)
	if err != nil {
		log.Fatalf("Error resolving nearest point: %v", err)
	}
	if candidate == nil {
		fmt.Println("No segment within tolerance")
		return
	}

	output, _ := json.MarshalIndent(candidate, "", "  ")
	fmt.Printf("Nearest point:\n%s\n", output)
}

func newEngine(cfg *config.Config) (selection.Engine, context.Context) {
	eng := selection.NewEngine(selection.Config{
		TolerancePixels:  cfg.Selection.TolerancePixels,
		LineWeightPixels: cfg.Selection.LineWeightPixels,
		DragIdleTimeout:  cfg.Selection.DragIdleTimeout,
	})
	return eng, context.Background()
}

func loadPolyline(cfg *config.Config, kmlFile, encoded string) geo.Polyline {
	if kmlFile == "" {
		kmlFile = cfg.Route.KMLSource
	}
	if encoded == "" {
		encoded = cfg.Route.EncodedPolyline
	}

	switch {
	case kmlFile != "":
		line, err := kmlroute.NewLoader().LoadFile(kmlFile)
		if err != nil {
			log.Fatalf("Error reading KML route: %v", err)
		}
		return line
	case encoded != "":
		points, err := geo.NewOps().DecodePolyline(encoded)
		if err != nil {
			log.Fatalf("Error decoding polyline: %v", err)
		}
		return geo.Polyline{EncodedPolyline: encoded, Points: points}
	default:
		log.Fatal("Provide a route with --kml or --polyline (or configure one)")
		return geo.Polyline{}
	}
}

// loadConfig loads configuration using Prefab's config system, falling back
// to defaults for anything unset
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	if err := prefab.Config.Unmarshal("selection", &appConfig.Selection); err != nil {
		log.Printf("Using default selection config: %v", err)
	}
	if err := prefab.Config.Unmarshal("route", &appConfig.Route); err != nil {
		log.Printf("Using default route config: %v", err)
	}

	return appConfig
}

func printUsage() {
	fmt.Println("Selection engine test tool")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  test-selection select-by-distance --kml route.kml --start 500 --end 2500 [--out span.kml]")
	fmt.Println("  test-selection nearest --polyline '_p~iF~ps|U_ulLnnqC' --lat 38.1 --lng -120.5 --zoom 14")
	fmt.Println("  test-selection help")
}
