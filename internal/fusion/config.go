package fusion

import (
	"fmt"

	"github.com/banshee-data/sensor-fusion/internal/config"
)

// Filter dimensions. These never change at runtime.
const (
	NX     = 5          // state: px, py, v, yaw, yaw rate
	NAug   = NX + 2     // state plus longitudinal and yaw acceleration noise
	NSigma = 2*NAug + 1 // sigma points per prediction
	Lambda = 3.0 - NAug // sigma point spread

	NZLidar = 2 // px, py
	NZRadar = 3 // rho, phi, rho_dot
)

// State vector indices.
const (
	StatePX = iota
	StatePY
	StateV
	StateYaw
	StateYawRate
)

// Radar observation indices.
const (
	RadarRho = iota
	RadarPhi
	RadarRhoDot
)

// Numerical guards. Not user-tunable.
const (
	// YawRateEpsilon is the yaw rate magnitude below which the straight-line
	// CTRV limit is used instead of the curved-path integral.
	YawRateEpsilon = 1e-6
	// MinRangeForRangeRate is the range below which the predicted range
	// rate is defined as zero.
	MinRangeForRangeRate = 1e-6
)

// Config holds the tunable noise parameters and sensor switches.
type Config struct {
	// Process noise standard deviations
	StdA     float64 // longitudinal acceleration (m/s²)
	StdYawDD float64 // yaw acceleration (rad/s²)

	// LiDAR measurement noise standard deviations (m)
	StdLaserPX float64
	StdLaserPY float64

	// Radar measurement noise standard deviations
	StdRadarR   float64 // m
	StdRadarPhi float64 // rad
	StdRadarRD  float64 // m/s

	// Disabled sensors still advance the prediction but skip correction.
	UseLidar bool
	UseRadar bool

	// MaxDt splits predictions longer than this many seconds into equal
	// sub-steps. Zero disables sub-stepping.
	MaxDt float64
}

// DefaultConfig returns filter configuration loaded from the canonical
// tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found. Intended for tests and binaries
// that have already validated config availability.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		StdA:        cfg.GetStdA(),
		StdYawDD:    cfg.GetStdYawDD(),
		StdLaserPX:  cfg.GetStdLaserPX(),
		StdLaserPY:  cfg.GetStdLaserPY(),
		StdRadarR:   cfg.GetStdRadarR(),
		StdRadarPhi: cfg.GetStdRadarPhi(),
		StdRadarRD:  cfg.GetStdRadarRD(),
		UseLidar:    cfg.GetUseLidar(),
		UseRadar:    cfg.GetUseRadar(),
		MaxDt:       cfg.GetMaxDtSeconds(),
	}
}

// Validate checks that every noise parameter is positive.
func (c Config) Validate() error {
	stds := []struct {
		name string
		v    float64
	}{
		{"StdA", c.StdA},
		{"StdYawDD", c.StdYawDD},
		{"StdLaserPX", c.StdLaserPX},
		{"StdLaserPY", c.StdLaserPY},
		{"StdRadarR", c.StdRadarR},
		{"StdRadarPhi", c.StdRadarPhi},
		{"StdRadarRD", c.StdRadarRD},
	}
	for _, s := range stds {
		if !(s.v > 0) {
			return fmt.Errorf("%s must be positive, got %v", s.name, s.v)
		}
	}
	if c.MaxDt < 0 {
		return fmt.Errorf("MaxDt must be non-negative, got %v", c.MaxDt)
	}
	return nil
}

// SigmaWeights returns the NSigma sigma point weights: λ/(λ+NAug) for the
// centre point and 1/(2(λ+NAug)) for the rest.
func SigmaWeights() []float64 {
	w := make([]float64, NSigma)
	w[0] = Lambda / (Lambda + NAug)
	for i := 1; i < NSigma; i++ {
		w[i] = 0.5 / (Lambda + NAug)
	}
	return w
}
