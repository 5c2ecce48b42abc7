package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Prediction advances the belief by dt seconds through the CTRV motion
// model using augmented sigma points. When Config.MaxDt is set, long gaps
// are split into equal sub-steps no longer than MaxDt. The belief is only
// modified if every sub-step succeeds.
func (u *UKF) Prediction(dt float64) error {
	if !u.initialized {
		return ErrNotInitialized
	}

	steps := 1
	if u.cfg.MaxDt > 0 && math.Abs(dt) > u.cfg.MaxDt {
		steps = int(math.Ceil(math.Abs(dt) / u.cfg.MaxDt))
	}
	subDt := dt / float64(steps)

	x := mat.VecDenseCopyOf(u.x)
	p := mat.NewSymDense(NX, nil)
	p.CopySym(u.p)
	var sigPred *mat.Dense
	for i := 0; i < steps; i++ {
		var err error
		x, p, sigPred, err = u.predictStep(x, p, subDt)
		if err != nil {
			if steps > 1 {
				return fmt.Errorf("sub-step %d/%d: %w", i+1, steps, err)
			}
			return err
		}
	}

	if !isFiniteBelief(x, p) {
		return ErrNonFinite
	}

	u.x = x
	u.p = p
	u.xSigPred = sigPred
	return nil
}

// predictStep runs one sigma point prediction from (x, p) over dt and
// returns the predicted mean, covariance and propagated sigma points.
func (u *UKF) predictStep(x *mat.VecDense, p *mat.SymDense, dt float64) (*mat.VecDense, *mat.SymDense, *mat.Dense, error) {
	xSigAug, err := u.augmentedSigmaPoints(x, p)
	if err != nil {
		return nil, nil, nil, err
	}

	sigPred := mat.NewDense(NX, NSigma, nil)
	var pt [NAug]float64
	for i := 0; i < NSigma; i++ {
		for r := 0; r < NAug; r++ {
			pt[r] = xSigAug.At(r, i)
		}
		next := PredictCTRV([NX]float64(pt[:NX]), pt[NX], pt[NX+1], dt)
		sigPred.SetCol(i, next[:])
	}

	xPred := mat.NewVecDense(NX, nil)
	for i := 0; i < NSigma; i++ {
		xPred.AddScaledVec(xPred, u.weights[i], sigPred.ColView(i))
	}

	pPred := mat.NewSymDense(NX, nil)
	diff := mat.NewVecDense(NX, nil)
	for i := 0; i < NSigma; i++ {
		diff.SubVec(sigPred.ColView(i), xPred)
		diff.SetVec(StateYaw, NormalizeAngle(diff.AtVec(StateYaw)))
		pPred.SymRankOne(pPred, u.weights[i], diff)
	}

	xPred.SetVec(StateYaw, NormalizeAngle(xPred.AtVec(StateYaw)))
	return xPred, pPred, sigPred, nil
}

// augmentedSigmaPoints builds the NAug×NSigma sigma point matrix around
// the noise-augmented mean. The augmented covariance is block diagonal:
// p, then the two process noise variances.
func (u *UKF) augmentedSigmaPoints(x *mat.VecDense, p *mat.SymDense) (*mat.Dense, error) {
	xAug := make([]float64, NAug)
	for i := 0; i < NX; i++ {
		xAug[i] = x.AtVec(i)
	}

	pAug := mat.NewSymDense(NAug, nil)
	for i := 0; i < NX; i++ {
		for j := i; j < NX; j++ {
			pAug.SetSym(i, j, p.At(i, j))
		}
	}
	pAug.SetSym(NX, NX, u.cfg.StdA*u.cfg.StdA)
	pAug.SetSym(NX+1, NX+1, u.cfg.StdYawDD*u.cfg.StdYawDD)

	var chol mat.Cholesky
	if ok := chol.Factorize(pAug); !ok {
		return nil, ErrCovarianceNotPD
	}
	var l mat.TriDense
	chol.LTo(&l)

	scale := math.Sqrt(Lambda + NAug)
	sig := mat.NewDense(NAug, NSigma, nil)
	for r := 0; r < NAug; r++ {
		sig.Set(r, 0, xAug[r])
	}
	for c := 0; c < NAug; c++ {
		for r := 0; r < NAug; r++ {
			d := scale * l.At(r, c)
			sig.Set(r, c+1, xAug[r]+d)
			sig.Set(r, c+1+NAug, xAug[r]-d)
		}
	}
	return sig, nil
}

// PredictCTRV propagates one state through the constant turn rate and
// velocity model for dt seconds, adding the effect of the longitudinal
// (nuA) and yaw (nuYawDD) acceleration noise samples.
func PredictCTRV(s [NX]float64, nuA, nuYawDD, dt float64) [NX]float64 {
	var out [NX]float64
	if math.Abs(s[StateYawRate]) > YawRateEpsilon {
		out = ctrvCurved(s, dt)
	} else {
		out = ctrvStraight(s, dt)
	}

	yaw := s[StateYaw]
	dt2 := dt * dt
	out[StatePX] += 0.5 * nuA * dt2 * math.Cos(yaw)
	out[StatePY] += 0.5 * nuA * dt2 * math.Sin(yaw)
	out[StateV] += nuA * dt
	out[StateYaw] += 0.5 * nuYawDD * dt2
	out[StateYawRate] += nuYawDD * dt
	return out
}

// ctrvCurved is the closed-form CTRV integral; s[StateYawRate] must be
// non-zero.
func ctrvCurved(s [NX]float64, dt float64) [NX]float64 {
	v, yaw, yawd := s[StateV], s[StateYaw], s[StateYawRate]
	r := v / yawd
	return [NX]float64{
		s[StatePX] + r*(math.Sin(yaw+yawd*dt)-math.Sin(yaw)),
		s[StatePY] + r*(math.Cos(yaw)-math.Cos(yaw+yawd*dt)),
		v,
		yaw + yawd*dt,
		yawd,
	}
}

// ctrvStraight is the zero yaw rate limit of ctrvCurved.
func ctrvStraight(s [NX]float64, dt float64) [NX]float64 {
	v, yaw, yawd := s[StateV], s[StateYaw], s[StateYawRate]
	return [NX]float64{
		s[StatePX] + v*math.Cos(yaw)*dt,
		s[StatePY] + v*math.Sin(yaw)*dt,
		v,
		yaw + yawd*dt,
		yawd,
	}
}
