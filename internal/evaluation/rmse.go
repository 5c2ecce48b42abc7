// Package evaluation scores estimator output against ground truth:
// per-component RMSE in Cartesian space and NIS consistency checks.
package evaluation

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// Dim is the length of the Cartesian vectors compared by RMSE:
// (px, py, vx, vy).
const Dim = 4

// ErrInvalidSequences is returned when the estimate and truth sequences
// are empty or of different lengths.
var ErrInvalidSequences = errors.New("estimation and ground truth sequences must be non-empty and of equal length")

// RMSE returns the per-component root mean squared error between paired
// estimate and truth vectors. Vectors are compared in their first Dim
// components. On invalid input it returns a zero vector together with
// ErrInvalidSequences.
func RMSE(estimates, truth []*mat.VecDense) (*mat.VecDense, error) {
	rmse := mat.NewVecDense(Dim, nil)
	if len(estimates) == 0 || len(estimates) != len(truth) {
		return rmse, ErrInvalidSequences
	}
	for i := range estimates {
		if estimates[i].Len() < Dim || truth[i].Len() < Dim {
			return mat.NewVecDense(Dim, nil), ErrInvalidSequences
		}
		for j := 0; j < Dim; j++ {
			d := estimates[i].AtVec(j) - truth[i].AtVec(j)
			rmse.SetVec(j, rmse.AtVec(j)+d*d)
		}
	}
	n := float64(len(estimates))
	for j := 0; j < Dim; j++ {
		rmse.SetVec(j, math.Sqrt(rmse.AtVec(j)/n))
	}
	return rmse, nil
}

// ToCartesian converts a CTRV state (px, py, v, yaw, yaw rate) into the
// (px, py, vx, vy) vector used for comparison with ground truth.
func ToCartesian(x mat.Vector) *mat.VecDense {
	v := x.AtVec(fusion.StateV)
	yaw := x.AtVec(fusion.StateYaw)
	return mat.NewVecDense(Dim, []float64{
		x.AtVec(fusion.StatePX),
		x.AtVec(fusion.StatePY),
		v * math.Cos(yaw),
		v * math.Sin(yaw),
	})
}
