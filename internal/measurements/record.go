// Package measurements reads and writes the line-oriented sensor log
// consumed by the estimator, and generates synthetic logs with ground
// truth for tests and tuning.
//
// Each non-blank line holds one reading, whitespace separated:
//
//	L  px  py  timestamp_us  [gt_px gt_py gt_vx gt_vy]
//	R  rho phi rho_dot timestamp_us  [gt_px gt_py gt_vx gt_vy]
//
// Lines starting with '#' are comments.
package measurements

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// Sensor tags used in the log format.
const (
	TagLidar = "L"
	TagRadar = "R"
)

// ErrUnknownSensor is returned for lines whose leading tag is neither L nor R.
var ErrUnknownSensor = errors.New("unknown sensor tag")

// GroundTruth is the true position and Cartesian velocity at a reading.
type GroundTruth struct {
	PX float64
	PY float64
	VX float64
	VY float64
}

// Vector returns (px, py, vx, vy).
func (g GroundTruth) Vector() *mat.VecDense {
	return mat.NewVecDense(4, []float64{g.PX, g.PY, g.VX, g.VY})
}

// Record is one parsed line: a measurement and, when present, the ground
// truth recorded alongside it.
type Record struct {
	Measurement fusion.Measurement
	GroundTruth *GroundTruth
}

// ParseLine parses one log line. Blank and comment lines are not accepted
// here; Reader filters them.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("empty line")
	}

	var nValues int
	switch fields[0] {
	case TagLidar:
		nValues = fusion.NZLidar
	case TagRadar:
		nValues = fusion.NZRadar
	default:
		return Record{}, fmt.Errorf("%w %q", ErrUnknownSensor, fields[0])
	}

	// tag + values + timestamp, optionally followed by 4 ground truth values
	base := 1 + nValues + 1
	if len(fields) != base && len(fields) != base+4 {
		return Record{}, fmt.Errorf("%s line has %d fields, want %d or %d", fields[0], len(fields), base, base+4)
	}

	values, err := parseFloats(fields[1 : 1+nValues])
	if err != nil {
		return Record{}, err
	}
	ts, err := strconv.ParseInt(fields[1+nValues], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", fields[1+nValues], err)
	}

	var rec Record
	if fields[0] == TagLidar {
		rec.Measurement = fusion.NewLidarMeasurement(ts, values[0], values[1])
	} else {
		rec.Measurement = fusion.NewRadarMeasurement(ts, values[0], values[1], values[2])
	}

	if len(fields) == base+4 {
		gt, err := parseFloats(fields[base:])
		if err != nil {
			return Record{}, fmt.Errorf("ground truth: %w", err)
		}
		rec.GroundTruth = &GroundTruth{PX: gt[0], PY: gt[1], VX: gt[2], VY: gt[3]}
	}

	return rec, nil
}

// FormatRecord renders rec in the log format accepted by ParseLine.
func FormatRecord(rec Record) string {
	m := rec.Measurement
	parts := make([]string, 0, 9)
	switch m.Sensor {
	case fusion.SensorLidar:
		parts = append(parts, TagLidar, formatFloat(m.Lidar.X), formatFloat(m.Lidar.Y))
	case fusion.SensorRadar:
		parts = append(parts, TagRadar, formatFloat(m.Radar.Rho), formatFloat(m.Radar.Phi), formatFloat(m.Radar.RhoDot))
	default:
		parts = append(parts, "?")
	}
	parts = append(parts, strconv.FormatInt(m.TimestampUS, 10))
	if gt := rec.GroundTruth; gt != nil {
		parts = append(parts, formatFloat(gt.PX), formatFloat(gt.PY), formatFloat(gt.VX), formatFloat(gt.VY))
	}
	return strings.Join(parts, "\t")
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
