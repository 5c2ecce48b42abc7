package evaluation

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// NISConfidence is the chi-square quantile used for consistency thresholds.
const NISConfidence = 0.95

// NISThreshold returns the 95% chi-square bound for a correction from
// sensor, with degrees of freedom equal to its measurement dimension:
// about 5.991 for LiDAR and 7.815 for radar. Unknown sensors return 0.
func NISThreshold(sensor fusion.SensorType) float64 {
	var dof float64
	switch sensor {
	case fusion.SensorLidar:
		dof = fusion.NZLidar
	case fusion.SensorRadar:
		dof = fusion.NZRadar
	default:
		return 0
	}
	return distuv.ChiSquared{K: dof}.Quantile(NISConfidence)
}

// NISSummary describes the NIS values collected for one sensor.
type NISSummary struct {
	Sensor    string  `json:"sensor"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Threshold float64 `json:"threshold"`
	Above     int     `json:"above"`
	// FractionAbove should sit near 1 − NISConfidence for a well tuned filter.
	FractionAbove float64 `json:"fraction_above"`
}

// NISTracker collects NIS values per sensor.
type NISTracker struct {
	values map[fusion.SensorType][]float64
}

// NewNISTracker returns an empty tracker.
func NewNISTracker() *NISTracker {
	return &NISTracker{values: make(map[fusion.SensorType][]float64)}
}

// Add records one NIS value.
func (t *NISTracker) Add(sensor fusion.SensorType, nis float64) {
	t.values[sensor] = append(t.values[sensor], nis)
}

// Values returns the recorded NIS values for sensor in arrival order.
func (t *NISTracker) Values(sensor fusion.SensorType) []float64 {
	return append([]float64(nil), t.values[sensor]...)
}

// Summary computes the summary for sensor. A sensor with no values gets a
// zero summary apart from its name and threshold.
func (t *NISTracker) Summary(sensor fusion.SensorType) NISSummary {
	vals := t.values[sensor]
	s := NISSummary{
		Sensor:    sensor.String(),
		Count:     len(vals),
		Threshold: NISThreshold(sensor),
	}
	if len(vals) == 0 {
		return s
	}
	if len(vals) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	} else {
		s.Mean = vals[0]
	}
	for _, v := range vals {
		if v > s.Threshold {
			s.Above++
		}
	}
	s.FractionAbove = float64(s.Above) / float64(len(vals))
	return s
}
