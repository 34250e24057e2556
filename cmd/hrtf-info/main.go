package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/sphere"
)

func main() {
	dir := flag.String("dir", "", "HRTF dataset directory")
	azimuth := flag.Float64("azimuth", math.NaN(), "Query azimuth in degrees (with -elevation)")
	elevation := flag.Float64("elevation", 0, "Query elevation in degrees")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: -dir is required")
		os.Exit(1)
	}

	index, err := hrtf.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset %q: %v\n", *dir, err)
		os.Exit(1)
	}

	fmt.Printf("Dataset:      %s\n", *dir)
	fmt.Printf("Measurements: %d\n", index.Len())
	fmt.Printf("Sample rate:  %d Hz\n", index.SampleRate())
	fmt.Printf("Max IR:       %d samples (%.1f ms)\n",
		index.MaxIRLen(), 1000*float64(index.MaxIRLen())/float64(index.SampleRate()))

	if math.IsNaN(*azimuth) {
		return
	}

	query := sphere.NewDirection(*azimuth, *elevation)
	pair, dist := index.NearestDistance(query)
	fmt.Printf("\nQuery (%.1f, %.1f):\n", query.Azimuth, query.Elevation)
	fmt.Printf("  nearest measurement: (%.1f, %.1f), %.2f degrees away\n",
		pair.Direction.Azimuth, pair.Direction.Elevation, dist)
	fmt.Printf("  kernel length: L=%d R=%d samples\n", len(pair.Left), len(pair.Right))
}
