package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dpup/routespan/internal/lib/geo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	ops := geo.NewOps()

	switch command {
	case "point-distance":
		handlePointDistance(ops)
	case "closest-point":
		handleClosestPoint(ops)
	case "walk":
		handleWalk(ops)
	case "decode-polyline":
		handleDecodePolyline(ops)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(ops geo.Ops) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	from := fs.String("from", "", "First point as lat,lng")
	to := fs.String("to", "", "Second point as lat,lng")
	fs.Parse(os.Args[2:])

	a := parsePoint(*from)
	b := parsePoint(*to)

	distance, err := ops.Distance(a, b)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}
	fmt.Printf("Distance: %.1f meters (%.2f km)\n", distance, distance/1000)
}

func handleClosestPoint(ops geo.Ops) {
	fs := flag.NewFlagSet("closest-point", flag.ExitOnError)
	point := fs.String("point", "", "Query point as lat,lng")
	segStart := fs.String("seg-start", "", "Segment start as lat,lng")
	segEnd := fs.String("seg-end", "", "Segment end as lat,lng")
	fs.Parse(os.Args[2:])

	p := parsePoint(*point)
	a := parsePoint(*segStart)
	b := parsePoint(*segEnd)

	closest, param := ops.ClosestPointOnSegment(p, a, b)
	distance := ops.PointSegmentDistance(p, a, b)

	fmt.Printf("Closest point: %.6f,%.6f (param %.3f)\n", closest.Latitude, closest.Longitude, param)
	fmt.Printf("Distance: %.1f meters\n", distance)
}

func handleWalk(ops geo.Ops) {
	fs := flag.NewFlagSet("walk", flag.ExitOnError)
	encoded := fs.String("polyline", "", "Google encoded polyline")
	step := fs.Float64("step", 1000, "Step between walked points in meters")
	fs.Parse(os.Args[2:])

	if *encoded == "" {
		log.Fatal("Provide a route with --polyline")
	}

	points, err := ops.DecodePolyline(*encoded)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}
	if len(points) < 2 {
		log.Fatal("Polyline needs at least 2 points")
	}

	// Segment lengths and total
	cum := make([]float64, len(points))
	for i := 0; i < len(points)-1; i++ {
		d, err := ops.Distance(points[i], points[i+1])
		if err != nil {
			log.Fatalf("Invalid vertex %d: %v", i, err)
		}
		cum[i+1] = cum[i] + d
	}
	total := cum[len(cum)-1]
	fmt.Printf("Route: %d vertices, %.1fm total\n", len(points), total)

	for m := 0.0; m <= total; m += *step {
		seg := 0
		for seg < len(points)-2 && cum[seg+1] <= m {
			seg++
		}
		segLen := cum[seg+1] - cum[seg]
		p := ops.PointAtDistanceOnSegment(points[seg], points[seg+1], m-cum[seg], segLen)
		fmt.Printf("  %8.1fm  %.6f,%.6f  (segment %d)\n", m, p.Latitude, p.Longitude, seg)
	}
}

func handleDecodePolyline(ops geo.Ops) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	encoded := fs.String("polyline", "", "Google encoded polyline")
	fs.Parse(os.Args[2:])

	points, err := ops.DecodePolyline(*encoded)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Decoded %d points:\n", len(points))
	for i, p := range points {
		fmt.Printf("  %3d: %.6f,%.6f\n", i, p.Latitude, p.Longitude)
	}
}

func parsePoint(s string) geo.Point {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		log.Fatalf("Expected lat,lng but got %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		log.Fatalf("Invalid latitude in %q: %v", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		log.Fatalf("Invalid longitude in %q: %v", s, err)
	}

	p, err := geo.NewPoint(lat, lng)
	if err != nil {
		log.Fatalf("Invalid point %q: %v", s, err)
	}
	return p
}

func printUsage() {
	fmt.Println("Geometry test tool")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  test-geo-walk point-distance --from 38.0675,-120.5436 --to 38.1391,-120.4561")
	fmt.Println("  test-geo-walk closest-point --point 38.1,-120.5 --seg-start 38.0675,-120.5436 --seg-end 38.1391,-120.4561")
	fmt.Println("  test-geo-walk walk --polyline '_p~iF~ps|U_ulLnnqC' --step 500")
	fmt.Println("  test-geo-walk decode-polyline --polyline '_p~iF~ps|U_ulLnnqC'")
	fmt.Println("  test-geo-walk help")
}
