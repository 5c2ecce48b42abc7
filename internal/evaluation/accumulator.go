package evaluation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// Sample pairs one estimator step with the ground truth at that time.
type Sample struct {
	TimestampUS int64
	Sensor      fusion.SensorType
	Estimate    *mat.VecDense // Cartesian (px, py, vx, vy)
	Truth       *mat.VecDense // Cartesian (px, py, vx, vy)
	NIS         float64
	Corrected   bool
}

// Accumulator collects estimator output alongside ground truth over a run
// and scores it.
type Accumulator struct {
	samples []Sample
	nis     *NISTracker
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{nis: NewNISTracker()}
}

// Add records one step. state is the full CTRV state after the step and
// truth is the Cartesian ground truth.
func (a *Accumulator) Add(step fusion.Step, state mat.Vector, truth mat.Vector) error {
	if truth.Len() < Dim {
		return fmt.Errorf("truth vector has %d components, want %d", truth.Len(), Dim)
	}
	t := mat.NewVecDense(Dim, nil)
	for i := 0; i < Dim; i++ {
		t.SetVec(i, truth.AtVec(i))
	}
	a.samples = append(a.samples, Sample{
		TimestampUS: step.TimestampUS,
		Sensor:      step.Sensor,
		Estimate:    ToCartesian(state),
		Truth:       t,
		NIS:         step.NIS,
		Corrected:   step.Corrected,
	})
	if step.Corrected {
		a.nis.Add(step.Sensor, step.NIS)
	}
	return nil
}

// Len returns the number of recorded samples.
func (a *Accumulator) Len() int { return len(a.samples) }

// Samples returns the recorded samples in order.
func (a *Accumulator) Samples() []Sample { return a.samples }

// RMSE scores every sample from index skip onward, so an initial
// transient can be excluded.
func (a *Accumulator) RMSE(skip int) (*mat.VecDense, error) {
	if skip < 0 {
		skip = 0
	}
	if skip > len(a.samples) {
		skip = len(a.samples)
	}
	est := make([]*mat.VecDense, 0, len(a.samples)-skip)
	truth := make([]*mat.VecDense, 0, len(a.samples)-skip)
	for _, s := range a.samples[skip:] {
		est = append(est, s.Estimate)
		truth = append(truth, s.Truth)
	}
	return RMSE(est, truth)
}

// NIS returns the per-sensor NIS tracker fed by corrected steps.
func (a *Accumulator) NIS() *NISTracker { return a.nis }

// Series is the sample history split into plotting columns.
type Series struct {
	TimeS                []float64 // seconds since the first sample
	EstX, EstY           []float64
	TruthX, TruthY       []float64
	LidarTimeS, LidarNIS []float64
	RadarTimeS, RadarNIS []float64
}

// Series returns the sample history as columns for plotting.
func (a *Accumulator) Series() Series {
	var s Series
	if len(a.samples) == 0 {
		return s
	}
	t0 := a.samples[0].TimestampUS
	for _, smp := range a.samples {
		ts := float64(smp.TimestampUS-t0) / 1e6
		s.TimeS = append(s.TimeS, ts)
		s.EstX = append(s.EstX, smp.Estimate.AtVec(0))
		s.EstY = append(s.EstY, smp.Estimate.AtVec(1))
		s.TruthX = append(s.TruthX, smp.Truth.AtVec(0))
		s.TruthY = append(s.TruthY, smp.Truth.AtVec(1))
		if !smp.Corrected {
			continue
		}
		switch smp.Sensor {
		case fusion.SensorLidar:
			s.LidarTimeS = append(s.LidarTimeS, ts)
			s.LidarNIS = append(s.LidarNIS, smp.NIS)
		case fusion.SensorRadar:
			s.RadarTimeS = append(s.RadarTimeS, ts)
			s.RadarNIS = append(s.RadarNIS, smp.NIS)
		}
	}
	return s
}
