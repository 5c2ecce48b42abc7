package fusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/monitoring"
	"github.com/banshee-data/sensor-fusion/internal/testutil"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StdA = -1
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StdA")

	cfg = DefaultConfig()
	cfg.MaxDt = -0.1
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestProcessMeasurement_InitFromLidar(t *testing.T) {
	t.Parallel()

	u, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, u.Initialized())

	step, err := u.ProcessMeasurement(NewLidarMeasurement(1_000, 1, 2))
	require.NoError(t, err)
	assert.True(t, step.Initialized)
	assert.False(t, step.Corrected)
	assert.Equal(t, int64(1_000), u.TimestampUS())

	testutil.AssertVecInDelta(t, u.State(), vec(1, 2, 0, 0, 0), 0)
	assert.True(t, mat.Equal(u.Covariance(), identity(NX)))
}

func TestProcessMeasurement_InitFromRadar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    Measurement
		want *mat.VecDense
	}{
		{
			name: "on x axis",
			m:    NewRadarMeasurement(0, 5, 0, 0),
			want: vec(5, 0, 0, 0, 0),
		},
		{
			name: "bearing quarter turn",
			m:    NewRadarMeasurement(0, 2, math.Pi/2, 1.5),
			want: vec(0, 2, 1.5, 0, 0),
		},
		{
			name: "closing target speed is a magnitude",
			m:    NewRadarMeasurement(0, 10, math.Pi/4, -3),
			want: vec(10/math.Sqrt2, 10/math.Sqrt2, 3, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u := newInitialized(t, DefaultConfig(), tt.m)
			testutil.AssertVecInDelta(t, u.State(), tt.want, 1e-12)
			assert.True(t, mat.Equal(u.Covariance(), identity(NX)))
		})
	}
}

func TestProcessMeasurement_UnknownSensorIsNoOp(t *testing.T) {
	var logged int
	monitoring.SetLogger(func(string, ...interface{}) { logged++ })
	defer monitoring.SetLogger(nil)

	u, err := New(DefaultConfig())
	require.NoError(t, err)

	step, err := u.ProcessMeasurement(Measurement{Sensor: SensorUnknown, TimestampUS: 5})
	require.NoError(t, err)
	assert.False(t, step.Initialized)
	assert.False(t, u.Initialized())

	_, err = u.ProcessMeasurement(NewLidarMeasurement(10, 1, 1))
	require.NoError(t, err)
	x0, p0 := u.State(), u.Covariance()

	step, err = u.ProcessMeasurement(Measurement{Sensor: SensorType(9), TimestampUS: 500_000})
	require.NoError(t, err)
	assert.False(t, step.Corrected)
	assert.Equal(t, int64(10), u.TimestampUS())
	testutil.AssertVecInDelta(t, u.State(), x0, 0)
	assert.True(t, mat.Equal(u.Covariance(), p0))
	assert.Equal(t, 2, logged)
}

func TestProcessMeasurement_DisabledSensorPredictsOnly(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.UseRadar = false
	u := newInitialized(t, cfg, NewLidarMeasurement(0, 1, 1))
	p0 := u.Covariance()

	step, err := u.ProcessMeasurement(NewRadarMeasurement(100_000, 1.4, math.Pi/4, 0))
	require.NoError(t, err)
	assert.False(t, step.Corrected)
	assert.InDelta(t, 0.1, step.Dt, 1e-12)
	assert.Equal(t, int64(100_000), u.TimestampUS())
	assert.Greater(t, u.Covariance().At(StatePX, StatePX), p0.At(StatePX, StatePX))

	// LiDAR is still applied.
	step, err = u.ProcessMeasurement(NewLidarMeasurement(200_000, 1, 1))
	require.NoError(t, err)
	assert.True(t, step.Corrected)
	assert.Less(t, u.Covariance().At(StatePX, StatePX), p0.At(StatePX, StatePX))
}

func TestProcessMeasurement_LidarUpdate(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(0, 1, 2))

	// Same timestamp: prediction is the identity, so the linear update
	// can be checked in closed form with P = I and R = 0.15² I.
	step, err := u.ProcessMeasurement(NewLidarMeasurement(0, 2, 2))
	require.NoError(t, err)
	require.True(t, step.Corrected)

	s := 1 + 0.15*0.15
	testutil.AssertVecInDelta(t, u.State(), vec(1+1/s, 2, 0, 0, 0), 1e-9)
	assert.InDelta(t, 1/s, step.NIS, 1e-9)

	p := u.Covariance()
	assert.InDelta(t, 1-1/s, p.At(StatePX, StatePX), 1e-9)
	assert.InDelta(t, 1-1/s, p.At(StatePY, StatePY), 1e-9)
	assert.InDelta(t, 1.0, p.At(StateV, StateV), 1e-9)
}

func TestProcessMeasurement_RadarUpdate(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewRadarMeasurement(0, 5, 0, 0))
	p0 := u.Covariance()

	step, err := u.ProcessMeasurement(NewRadarMeasurement(50_000, 5.05, 0.01, 1))
	require.NoError(t, err)
	require.True(t, step.Corrected)
	assert.GreaterOrEqual(t, step.NIS, 0.0)

	x := u.State()
	assert.InDelta(t, 5.05, x.AtVec(StatePX), 0.1)
	assert.InDelta(t, 0.05, x.AtVec(StatePY), 0.1)
	assert.Greater(t, x.AtVec(StateV), 0.0)

	p := u.Covariance()
	testutil.AssertSymmetric(t, p, 1e-9)
	assert.Less(t, p.At(StatePX, StatePX), p0.At(StatePX, StatePX))
}

func TestProcessMeasurement_RadarNearOrigin(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(0, 0, 0))
	u.p.ScaleSym(1e-4, u.p)

	_, err := u.ProcessMeasurement(NewRadarMeasurement(10_000, 0, 0, 0))
	require.NoError(t, err)
	testutil.AssertFinite(t, u.Covariance())
	testutil.AssertFinite(t, u.State())
}

func TestRadarObservation(t *testing.T) {
	t.Parallel()

	z := RadarObservation(3, 4, 2, math.Atan2(4, 3))
	assert.InDelta(t, 5.0, z[RadarRho], 1e-12)
	assert.InDelta(t, math.Atan2(4, 3), z[RadarPhi], 1e-12)
	assert.InDelta(t, 2.0, z[RadarRhoDot], 1e-12)

	z = RadarObservation(0, 0, 5, 1)
	assert.Equal(t, [NZRadar]float64{0, 0, 0}, z)
}

func TestProcessMeasurement_FailedUpdateRestoresBelief(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(1_000, 1, 2))
	_, err := u.ProcessMeasurement(NewLidarMeasurement(51_000, 1.1, 2.0))
	require.NoError(t, err)

	x0, p0, sig0 := u.State(), u.Covariance(), u.SigmaPoints()

	// A zero observation model and noise make S singular after a
	// successful prediction.
	h, r := u.h, u.rLidar
	u.h = mat.NewDense(NZLidar, NX, nil)
	u.rLidar = mat.NewSymDense(NZLidar, nil)

	step, err := u.ProcessMeasurement(NewLidarMeasurement(101_000, 1.2, 2.0))
	assert.ErrorIs(t, err, ErrSingularInnovation)
	assert.False(t, step.Corrected)

	assert.Equal(t, int64(51_000), u.TimestampUS())
	testutil.AssertVecInDelta(t, u.State(), x0, 0)
	assert.True(t, mat.Equal(u.Covariance(), p0))
	assert.True(t, mat.Equal(u.SigmaPoints(), sig0))

	// The filter carries on from the restored belief.
	u.h, u.rLidar = h, r
	step, err = u.ProcessMeasurement(NewLidarMeasurement(101_000, 1.2, 2.0))
	require.NoError(t, err)
	assert.True(t, step.Corrected)
	assert.InDelta(t, 0.05, step.Dt, 1e-12)
}

func TestProcessMeasurement_RejectsNonFiniteMeasurement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    Measurement
	}{
		{"lidar NaN x", NewLidarMeasurement(51_000, math.NaN(), 2)},
		{"lidar Inf y", NewLidarMeasurement(51_000, 1, math.Inf(1))},
		{"radar NaN phi", NewRadarMeasurement(51_000, 5, math.NaN(), 1)},
		{"radar -Inf rho_dot", NewRadarMeasurement(51_000, 5, 0.2, math.Inf(-1))},
	}

	for _, tt := range tests {
		m := tt.m
		t.Run(tt.name+"/first reading", func(t *testing.T) {
			t.Parallel()
			u, err := New(DefaultConfig())
			require.NoError(t, err)

			step, err := u.ProcessMeasurement(m)
			assert.ErrorIs(t, err, ErrNonFinite)
			assert.False(t, step.Initialized)
			assert.False(t, u.Initialized())

			// The next valid reading initialises the belief.
			step, err = u.ProcessMeasurement(NewLidarMeasurement(101_000, 1, 2))
			require.NoError(t, err)
			assert.True(t, step.Initialized)
			testutil.AssertVecInDelta(t, u.State(), vec(1, 2, 0, 0, 0), 0)

			step, err = u.ProcessMeasurement(NewLidarMeasurement(151_000, 1.1, 2))
			require.NoError(t, err)
			assert.True(t, step.Corrected)
		})

		t.Run(tt.name+"/after initialisation", func(t *testing.T) {
			t.Parallel()
			u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(1_000, 1, 2))
			x0, p0 := u.State(), u.Covariance()

			_, err := u.ProcessMeasurement(m)
			assert.ErrorIs(t, err, ErrNonFinite)
			assert.Equal(t, int64(1_000), u.TimestampUS())
			testutil.AssertVecInDelta(t, u.State(), x0, 0)
			assert.True(t, mat.Equal(u.Covariance(), p0))
		})
	}
}

func TestMeasurement_Finite(t *testing.T) {
	t.Parallel()

	assert.True(t, NewLidarMeasurement(0, 1, 2).Finite())
	assert.True(t, NewRadarMeasurement(0, 1, 0, -3).Finite())
	assert.False(t, NewLidarMeasurement(0, math.NaN(), 2).Finite())
	assert.False(t, NewRadarMeasurement(0, 1, 0, math.Inf(1)).Finite())
	// Only the active sensor's payload counts.
	m := NewLidarMeasurement(0, 1, 2)
	m.Radar.Rho = math.NaN()
	assert.True(t, m.Finite())
	assert.False(t, Measurement{Sensor: SensorType(9)}.Finite())
}

func TestProcessMeasurement_FailedPredictionKeepsTimestamp(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewRadarMeasurement(0, 5, 0.2, 1))
	u.p.SetSym(StateYaw, StateYaw, -1)

	_, err := u.ProcessMeasurement(NewRadarMeasurement(50_000, 5, 0.2, 1))
	assert.ErrorIs(t, err, ErrCovarianceNotPD)
	assert.Equal(t, int64(0), u.TimestampUS())
	assert.Equal(t, -1.0, u.Covariance().At(StateYaw, StateYaw))
}

func TestUpdates_Preconditions(t *testing.T) {
	t.Parallel()

	u, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = u.UpdateLidar(NewLidarMeasurement(0, 1, 1))
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = u.UpdateRadar(NewRadarMeasurement(0, 1, 0, 0))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = u.ProcessMeasurement(NewLidarMeasurement(0, 1, 1))
	require.NoError(t, err)

	_, err = u.UpdateLidar(NewRadarMeasurement(0, 1, 0, 0))
	assert.ErrorIs(t, err, ErrSensorMismatch)
	_, err = u.UpdateRadar(NewLidarMeasurement(0, 1, 1))
	assert.ErrorIs(t, err, ErrSensorMismatch)
}

func TestProcessMeasurement_CovarianceStaysSymmetric(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(0, 4, 1))
	ts := int64(0)
	for i := 0; i < 60; i++ {
		ts += 50_000
		tt := float64(ts) / 1e6
		px, py := 4+3*tt, 1+0.5*tt
		var m Measurement
		if i%2 == 0 {
			m = NewLidarMeasurement(ts, px, py)
		} else {
			m = NewRadarMeasurement(ts, math.Hypot(px, py), math.Atan2(py, px), (px*3+py*0.5)/math.Hypot(px, py))
		}
		_, err := u.ProcessMeasurement(m)
		require.NoError(t, err, "step %d", i)

		p := u.Covariance()
		testutil.AssertSymmetric(t, p, 1e-9)
		testutil.AssertFinite(t, p)
		yaw := u.State().AtVec(StateYaw)
		require.True(t, yaw > -math.Pi && yaw <= math.Pi, "yaw %v outside (-π, π]", yaw)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	u := newInitialized(t, DefaultConfig(), NewLidarMeasurement(100, 1, 2))
	u.Reset()
	assert.False(t, u.Initialized())
	assert.Zero(t, u.TimestampUS())

	step, err := u.ProcessMeasurement(NewRadarMeasurement(200, 5, 0, 0))
	require.NoError(t, err)
	assert.True(t, step.Initialized)
	testutil.AssertVecInDelta(t, u.State(), vec(5, 0, 0, 0, 0), 1e-12)
}

func TestSensorType_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lidar", SensorLidar.String())
	assert.Equal(t, "radar", SensorRadar.String())
	assert.Equal(t, "unknown(0)", SensorUnknown.String())
	assert.True(t, SensorRadar.Valid())
	assert.False(t, SensorType(7).Valid())
	assert.Nil(t, Measurement{}.Values())
}
