package fusion

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// UpdateRadar corrects the belief with a radar return using the unscented
// transform of the sigma points from the last prediction. Bearing and
// heading residuals are wrapped into (−π, π] wherever they appear. It
// returns the normalised innovation squared of the correction. The
// belief is only modified on success.
func (u *UKF) UpdateRadar(m Measurement) (float64, error) {
	if !u.initialized {
		return 0, ErrNotInitialized
	}
	if m.Sensor != SensorRadar {
		return 0, ErrSensorMismatch
	}

	// Sigma points in measurement space.
	zSig := mat.NewDense(NZRadar, NSigma, nil)
	for i := 0; i < NSigma; i++ {
		z := RadarObservation(
			u.xSigPred.At(StatePX, i),
			u.xSigPred.At(StatePY, i),
			u.xSigPred.At(StateV, i),
			u.xSigPred.At(StateYaw, i),
		)
		zSig.SetCol(i, z[:])
	}

	zPred := mat.NewVecDense(NZRadar, nil)
	for i := 0; i < NSigma; i++ {
		zPred.AddScaledVec(zPred, u.weights[i], zSig.ColView(i))
	}

	// Innovation covariance S and state/measurement cross covariance T.
	s := mat.NewSymDense(NZRadar, nil)
	t := mat.NewDense(NX, NZRadar, nil)
	zDiff := mat.NewVecDense(NZRadar, nil)
	xDiff := mat.NewVecDense(NX, nil)
	var outer mat.Dense
	for i := 0; i < NSigma; i++ {
		zDiff.SubVec(zSig.ColView(i), zPred)
		zDiff.SetVec(RadarPhi, NormalizeAngle(zDiff.AtVec(RadarPhi)))
		s.SymRankOne(s, u.weights[i], zDiff)

		xDiff.SubVec(u.xSigPred.ColView(i), u.x)
		xDiff.SetVec(StateYaw, NormalizeAngle(xDiff.AtVec(StateYaw)))
		outer.Outer(u.weights[i], xDiff, zDiff)
		t.Add(t, &outer)
	}
	s.AddSym(s, u.rRadar)

	var sInv mat.Dense
	if err := sInv.Inverse(s); err != nil {
		return 0, ErrSingularInnovation
	}

	// K = T·S⁻¹
	var k mat.Dense
	k.Mul(t, &sInv)

	y := m.Values()
	y.SubVec(y, zPred)
	y.SetVec(RadarPhi, NormalizeAngle(y.AtVec(RadarPhi)))

	var dx mat.VecDense
	dx.MulVec(&k, y)
	x := mat.NewVecDense(NX, nil)
	x.AddVec(u.x, &dx)
	x.SetVec(StateYaw, NormalizeAngle(x.AtVec(StateYaw)))

	// P = P − K·S·Kᵀ
	var ks, ksk mat.Dense
	ks.Mul(&k, s)
	ksk.Mul(&ks, k.T())
	var pNew mat.Dense
	pNew.Sub(u.p, &ksk)
	p := symmetrize(&pNew)

	if !isFiniteBelief(x, p) {
		return 0, ErrNonFinite
	}

	u.x = x
	u.p = p
	return mat.Inner(y, &sInv, y), nil
}

// RadarObservation maps a state (position, speed, heading) to the radar
// measurement space (rho, phi, rho_dot). The range rate is zero when the
// range is below MinRangeForRangeRate.
func RadarObservation(px, py, v, yaw float64) [NZRadar]float64 {
	rho := math.Hypot(px, py)
	phi := math.Atan2(py, px)
	var rhoDot float64
	if rho > MinRangeForRangeRate {
		vx := v * math.Cos(yaw)
		vy := v * math.Sin(yaw)
		rhoDot = (px*vx + py*vy) / rho
	}
	return [NZRadar]float64{rho, phi, rhoDot}
}
