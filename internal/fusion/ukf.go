package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/monitoring"
)

// Step describes what one ProcessMeasurement call did.
type Step struct {
	Sensor      SensorType
	TimestampUS int64
	Dt          float64 // seconds predicted; 0 on the initialising call
	Initialized bool    // true when this call set the initial belief
	Corrected   bool    // false when the sensor is disabled or unknown
	NIS         float64 // normalised innovation squared of the correction
}

// UKF is an unscented Kalman filter over the CTRV state
// [px, py, v, yaw, yaw rate]. It is not safe for concurrent use.
type UKF struct {
	cfg Config

	initialized bool
	timeUS      int64 // timestamp of the last processed measurement

	x *mat.VecDense // state mean
	p *mat.SymDense // state covariance

	// Sigma points from the most recent prediction, one per column.
	// The radar update transforms these instead of re-sampling.
	xSigPred *mat.Dense

	weights []float64

	h      *mat.Dense    // LiDAR observation matrix
	rLidar *mat.SymDense // LiDAR measurement noise
	rRadar *mat.SymDense // radar measurement noise
}

// New creates an uninitialised filter. The belief is set by the first
// measurement passed to ProcessMeasurement.
func New(cfg Config) (*UKF, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}

	h := mat.NewDense(NZLidar, NX, nil)
	h.Set(0, StatePX, 1)
	h.Set(1, StatePY, 1)

	rLidar := mat.NewSymDense(NZLidar, nil)
	rLidar.SetSym(0, 0, cfg.StdLaserPX*cfg.StdLaserPX)
	rLidar.SetSym(1, 1, cfg.StdLaserPY*cfg.StdLaserPY)

	rRadar := mat.NewSymDense(NZRadar, nil)
	rRadar.SetSym(RadarRho, RadarRho, cfg.StdRadarR*cfg.StdRadarR)
	rRadar.SetSym(RadarPhi, RadarPhi, cfg.StdRadarPhi*cfg.StdRadarPhi)
	rRadar.SetSym(RadarRhoDot, RadarRhoDot, cfg.StdRadarRD*cfg.StdRadarRD)

	return &UKF{
		cfg:      cfg,
		x:        mat.NewVecDense(NX, nil),
		p:        identity(NX),
		xSigPred: mat.NewDense(NX, NSigma, nil),
		weights:  SigmaWeights(),
		h:        h,
		rLidar:   rLidar,
		rRadar:   rRadar,
	}, nil
}

// ProcessMeasurement consumes one measurement. The first valid
// measurement initialises the belief; every later one predicts forward to
// its timestamp and then corrects with it.
//
// Measurements from an unknown sensor are logged and ignored. Disabled
// sensors still advance the prediction and the reference timestamp but
// skip the correction. On error the belief and the reference timestamp
// are left as they were before the call.
func (u *UKF) ProcessMeasurement(m Measurement) (Step, error) {
	step := Step{Sensor: m.Sensor, TimestampUS: m.TimestampUS}

	if !m.Sensor.Valid() {
		monitoring.Logf("fusion: ignoring measurement from %s sensor at t=%dus", m.Sensor, m.TimestampUS)
		return step, nil
	}
	if !m.Finite() {
		return step, fmt.Errorf("%s measurement at t=%dus: %w", m.Sensor, m.TimestampUS, ErrNonFinite)
	}

	if !u.initialized {
		u.initialize(m)
		step.Initialized = true
		return step, nil
	}

	dt := float64(m.TimestampUS-u.timeUS) / 1e6
	if dt < 0 {
		monitoring.Debugf("fusion: out-of-order measurement at t=%dus (dt=%.6fs)", m.TimestampUS, dt)
	}
	step.Dt = dt

	snap := u.snapshot()
	if err := u.Prediction(dt); err != nil {
		return step, fmt.Errorf("predict %.6fs to t=%dus: %w", dt, m.TimestampUS, err)
	}
	u.timeUS = m.TimestampUS

	var (
		nis float64
		err error
	)
	switch {
	case m.Sensor == SensorLidar && u.cfg.UseLidar:
		nis, err = u.UpdateLidar(m)
	case m.Sensor == SensorRadar && u.cfg.UseRadar:
		nis, err = u.UpdateRadar(m)
	default:
		monitoring.Debugf("fusion: %s disabled, prediction only at t=%dus", m.Sensor, m.TimestampUS)
		return step, nil
	}
	if err != nil {
		u.restore(snap)
		return step, fmt.Errorf("%s update at t=%dus: %w", m.Sensor, m.TimestampUS, err)
	}

	step.Corrected = true
	step.NIS = nis
	monitoring.Debugf("fusion: %s t=%dus dt=%.3fs nis=%.3f", m.Sensor, m.TimestampUS, dt, nis)
	return step, nil
}

// initialize sets the belief from a single reading. LiDAR copies the
// position; radar converts polar to Cartesian and takes the range rate
// magnitude as speed. Heading and yaw rate start at zero and the
// covariance at the identity.
func (u *UKF) initialize(m Measurement) {
	x := mat.NewVecDense(NX, nil)
	switch m.Sensor {
	case SensorLidar:
		x.SetVec(StatePX, m.Lidar.X)
		x.SetVec(StatePY, m.Lidar.Y)
	case SensorRadar:
		rho, phi, rhoDot := m.Radar.Rho, m.Radar.Phi, m.Radar.RhoDot
		x.SetVec(StatePX, rho*math.Cos(phi))
		x.SetVec(StatePY, rho*math.Sin(phi))
		x.SetVec(StateV, math.Hypot(rhoDot*math.Cos(phi), rhoDot*math.Sin(phi)))
	}

	u.x = x
	u.p = identity(NX)
	u.xSigPred = mat.NewDense(NX, NSigma, nil)
	u.timeUS = m.TimestampUS
	u.initialized = true
}

// Reset discards the belief so the next measurement re-initialises it.
func (u *UKF) Reset() {
	u.initialized = false
	u.timeUS = 0
	u.x = mat.NewVecDense(NX, nil)
	u.p = identity(NX)
	u.xSigPred = mat.NewDense(NX, NSigma, nil)
}

// Initialized reports whether the belief has been set.
func (u *UKF) Initialized() bool { return u.initialized }

// TimestampUS returns the timestamp of the last processed measurement.
func (u *UKF) TimestampUS() int64 { return u.timeUS }

// Config returns the filter configuration.
func (u *UKF) Config() Config { return u.cfg }

// State returns a copy of the state mean.
func (u *UKF) State() *mat.VecDense {
	return mat.VecDenseCopyOf(u.x)
}

// Covariance returns a copy of the state covariance.
func (u *UKF) Covariance() *mat.SymDense {
	p := mat.NewSymDense(NX, nil)
	p.CopySym(u.p)
	return p
}

// SigmaPoints returns a copy of the sigma points from the last prediction.
func (u *UKF) SigmaPoints() *mat.Dense {
	return mat.DenseCopyOf(u.xSigPred)
}

type beliefSnapshot struct {
	x        *mat.VecDense
	p        *mat.SymDense
	xSigPred *mat.Dense
	timeUS   int64
}

func (u *UKF) snapshot() beliefSnapshot {
	return beliefSnapshot{
		x:        u.State(),
		p:        u.Covariance(),
		xSigPred: u.SigmaPoints(),
		timeUS:   u.timeUS,
	}
}

func (u *UKF) restore(s beliefSnapshot) {
	u.x = s.x
	u.p = s.p
	u.xSigPred = s.xSigPred
	u.timeUS = s.timeUS
}

func identity(n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

// symmetrize returns (a + aᵀ)/2 as a SymDense. a must be square.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}

func isFiniteBelief(x mat.Vector, p mat.Matrix) bool {
	n := x.Len()
	for i := 0; i < n; i++ {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		for j := 0; j < n; j++ {
			c := p.At(i, j)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return false
			}
		}
	}
	return true
}
