// Command gen-measurements writes a synthetic LiDAR/radar measurement log
// with ground truth for replay through the fusion command.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/sensor-fusion/internal/measurements"
)

func main() {
	output := flag.String("o", "synthetic.txt", "output path")
	n := flag.Int("n", 500, "number of readings")
	seed := flag.Int64("seed", 1, "random seed")
	speed := flag.Float64("speed", 5.0, "target speed (m/s)")
	yawRate := flag.Float64("yaw-rate", 0.1, "target turn rate (rad/s)")
	hz := flag.Float64("hz", 20.0, "readings per second across both sensors")
	lidarOnly := flag.Bool("lidar-only", false, "emit LiDAR readings only")
	radarOnly := flag.Bool("radar-only", false, "emit radar readings only")
	flag.Parse()

	if *lidarOnly && *radarOnly {
		log.Fatal("-lidar-only and -radar-only are mutually exclusive")
	}
	if *hz <= 0 {
		log.Fatalf("-hz must be positive, got %v", *hz)
	}

	gen := measurements.NewGenerator(*seed)
	gen.SpeedMPS = *speed
	gen.YawRate = *yawRate
	gen.RateHz = *hz
	gen.EmitLidar = !*radarOnly
	gen.EmitRadar = !*lidarOnly

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	defer f.Close()

	if err := writeLog(f, gen, *n, *seed); err != nil {
		log.Fatalf("Write failed: %v", err)
	}
	log.Printf("✓ Created: %s (%d readings)", *output, *n)
}

// writeLog writes a header comment followed by n readings from gen.
func writeLog(w io.Writer, gen *measurements.Generator, n int, seed int64) error {
	if _, err := fmt.Fprintf(w, "# synthetic CTRV target, seed %d\n", seed); err != nil {
		return err
	}
	return measurements.WriteAll(w, gen.Generate(n))
}
