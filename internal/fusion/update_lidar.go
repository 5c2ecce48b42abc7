package fusion

import (
	"gonum.org/v1/gonum/mat"
)

// UpdateLidar corrects the belief with a LiDAR position fix using the
// linear Kalman update, since the observation is linear in the state.
// It returns the normalised innovation squared of the correction. The
// belief is only modified on success.
func (u *UKF) UpdateLidar(m Measurement) (float64, error) {
	if !u.initialized {
		return 0, ErrNotInitialized
	}
	if m.Sensor != SensorLidar {
		return 0, ErrSensorMismatch
	}

	z := m.Values()

	// Innovation y = z − H·x
	var zPred mat.VecDense
	zPred.MulVec(u.h, u.x)
	var y mat.VecDense
	y.SubVec(z, &zPred)

	// S = H·P·Hᵀ + R
	var pht mat.Dense
	pht.Mul(u.p, u.h.T())
	var s mat.Dense
	s.Mul(u.h, &pht)
	s.Add(&s, u.rLidar)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return 0, ErrSingularInnovation
	}

	// K = P·Hᵀ·S⁻¹
	var k mat.Dense
	k.Mul(&pht, &sInv)

	var dx mat.VecDense
	dx.MulVec(&k, &y)
	x := mat.NewVecDense(NX, nil)
	x.AddVec(u.x, &dx)
	x.SetVec(StateYaw, NormalizeAngle(x.AtVec(StateYaw)))

	// P = (I − K·H)·P
	var kh mat.Dense
	kh.Mul(&k, u.h)
	ikh := mat.NewDense(NX, NX, nil)
	for i := 0; i < NX; i++ {
		ikh.Set(i, i, 1)
	}
	ikh.Sub(ikh, &kh)
	var pNew mat.Dense
	pNew.Mul(ikh, u.p)
	p := symmetrize(&pNew)

	if !isFiniteBelief(x, p) {
		return 0, ErrNonFinite
	}

	u.x = x
	u.p = p
	return mat.Inner(&y, &sInv, &y), nil
}
