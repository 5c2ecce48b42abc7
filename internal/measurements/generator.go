package measurements

import (
	"math"
	"math/rand"

	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// Generator produces a synthetic measurement log for a single target
// moving with constant speed and turn rate. Readings alternate between
// LiDAR and radar and carry the ground truth they were sampled from.
type Generator struct {
	// Initial target state
	StartX   float64 // metres
	StartY   float64 // metres
	SpeedMPS float64
	Heading  float64 // radians
	YawRate  float64 // radians per second

	RateHz  float64 // readings per second, across both sensors
	StartUS int64

	// Sensor noise standard deviations. Zero produces exact readings.
	StdLaser    float64
	StdRadarR   float64
	StdRadarPhi float64
	StdRadarRD  float64

	// Which sensors to emit. When both are set readings alternate,
	// starting with LiDAR.
	EmitLidar bool
	EmitRadar bool

	n   int
	rng *rand.Rand
}

// NewGenerator creates a generator with the noise levels of the default
// tuning and a deterministic random source.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		StartX:      5.0,
		StartY:      2.0,
		SpeedMPS:    5.0,
		Heading:     0.3,
		YawRate:     0.1,
		RateHz:      20.0,
		StartUS:     1_477_010_443_000_000,
		StdLaser:    0.15,
		StdRadarR:   0.3,
		StdRadarPhi: 0.03,
		StdRadarRD:  0.3,
		EmitLidar:   true,
		EmitRadar:   true,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// TruthAt returns the noise-free ground truth t seconds after the start.
func (g *Generator) TruthAt(t float64) GroundTruth {
	start := [fusion.NX]float64{g.StartX, g.StartY, g.SpeedMPS, g.Heading, g.YawRate}
	s := fusion.PredictCTRV(start, 0, 0, t)
	return GroundTruth{
		PX: s[fusion.StatePX],
		PY: s[fusion.StatePY],
		VX: s[fusion.StateV] * math.Cos(s[fusion.StateYaw]),
		VY: s[fusion.StateV] * math.Sin(s[fusion.StateYaw]),
	}
}

// Next returns the next reading.
func (g *Generator) Next() Record {
	i := g.n
	g.n++

	t := float64(i) / g.RateHz
	ts := g.StartUS + int64(math.Round(t*1e6))
	gt := g.TruthAt(t)

	lidar := g.EmitLidar && (!g.EmitRadar || i%2 == 0)
	if lidar {
		return Record{
			Measurement: fusion.NewLidarMeasurement(ts,
				gt.PX+g.noise(g.StdLaser),
				gt.PY+g.noise(g.StdLaser)),
			GroundTruth: &gt,
		}
	}

	rho := math.Hypot(gt.PX, gt.PY)
	phi := math.Atan2(gt.PY, gt.PX)
	var rhoDot float64
	if rho > fusion.MinRangeForRangeRate {
		rhoDot = (gt.PX*gt.VX + gt.PY*gt.VY) / rho
	}
	return Record{
		Measurement: fusion.NewRadarMeasurement(ts,
			rho+g.noise(g.StdRadarR),
			fusion.NormalizeAngle(phi+g.noise(g.StdRadarPhi)),
			rhoDot+g.noise(g.StdRadarRD)),
		GroundTruth: &gt,
	}
}

// Generate returns the next n readings.
func (g *Generator) Generate(n int) []Record {
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

func (g *Generator) noise(std float64) float64 {
	if std == 0 {
		return 0
	}
	return g.rng.NormFloat64() * std
}
