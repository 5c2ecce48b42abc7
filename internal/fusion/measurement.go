package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SensorType identifies which sensor produced a Measurement.
type SensorType int

const (
	SensorUnknown SensorType = iota
	SensorLidar              // Cartesian position (x, y)
	SensorRadar              // Polar (rho, phi, rho_dot)
)

// String returns the short sensor tag used in logs and input files.
func (s SensorType) String() string {
	switch s {
	case SensorLidar:
		return "lidar"
	case SensorRadar:
		return "radar"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Valid reports whether s names a sensor the estimator understands.
func (s SensorType) Valid() bool {
	return s == SensorLidar || s == SensorRadar
}

// LidarReading is a Cartesian position fix in metres.
type LidarReading struct {
	X float64
	Y float64
}

// RadarReading is a polar return: range (m), bearing (rad) and range
// rate (m/s).
type RadarReading struct {
	Rho    float64
	Phi    float64
	RhoDot float64
}

// Measurement is one timestamped sensor reading. Sensor selects which of
// Lidar or Radar carries the payload; the other is ignored.
type Measurement struct {
	Sensor      SensorType
	TimestampUS int64 // microseconds, non-decreasing across a stream
	Lidar       LidarReading
	Radar       RadarReading
}

// NewLidarMeasurement builds a LiDAR measurement.
func NewLidarMeasurement(timestampUS int64, x, y float64) Measurement {
	return Measurement{
		Sensor:      SensorLidar,
		TimestampUS: timestampUS,
		Lidar:       LidarReading{X: x, Y: y},
	}
}

// NewRadarMeasurement builds a radar measurement.
func NewRadarMeasurement(timestampUS int64, rho, phi, rhoDot float64) Measurement {
	return Measurement{
		Sensor:      SensorRadar,
		TimestampUS: timestampUS,
		Radar:       RadarReading{Rho: rho, Phi: phi, RhoDot: rhoDot},
	}
}

// Finite reports whether every value carried for the measurement's sensor
// is a finite number.
func (m Measurement) Finite() bool {
	v := m.Values()
	if v == nil {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if math.IsNaN(v.AtVec(i)) || math.IsInf(v.AtVec(i), 0) {
			return false
		}
	}
	return true
}

// Values returns the raw measurement vector: (x, y) for LiDAR and
// (rho, phi, rho_dot) for radar. It returns nil for an unknown sensor.
func (m Measurement) Values() *mat.VecDense {
	switch m.Sensor {
	case SensorLidar:
		return mat.NewVecDense(NZLidar, []float64{m.Lidar.X, m.Lidar.Y})
	case SensorRadar:
		return mat.NewVecDense(NZRadar, []float64{m.Radar.Rho, m.Radar.Phi, m.Radar.RhoDot})
	default:
		return nil
	}
}
