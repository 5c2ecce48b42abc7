package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sensor-fusion/internal/evaluation"
	"github.com/banshee-data/sensor-fusion/internal/units"
)

// Summary is the headline outcome of one run.
type Summary struct {
	Input        string                  `json:"input"`
	RunID        string                  `json:"run_id,omitempty"`
	Measurements int                     `json:"measurements"`
	Errors       int                     `json:"errors"`
	Skipped      int                     `json:"skipped"`
	RMSE         []float64               `json:"rmse,omitempty"` // px, py, vx, vy (m, m/s)
	NIS          []evaluation.NISSummary `json:"nis"`
	FinalState   []float64               `json:"final_state,omitempty"`
}

// SetRMSE copies an RMSE vector into the summary.
func (s *Summary) SetRMSE(v *mat.VecDense) {
	if v == nil {
		s.RMSE = nil
		return
	}
	s.RMSE = make([]float64, v.Len())
	for i := range s.RMSE {
		s.RMSE[i] = v.AtVec(i)
	}
}

// PrintSummary writes a human readable summary to w. Velocity figures are
// converted to unit.
func PrintSummary(w io.Writer, s Summary, unit string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Input:\t%s\n", s.Input)
	if s.RunID != "" {
		fmt.Fprintf(tw, "Run:\t%s\n", s.RunID)
	}
	fmt.Fprintf(tw, "Measurements:\t%d (errors %d, skipped %d)\n", s.Measurements, s.Errors, s.Skipped)

	if len(s.RMSE) == 4 {
		label := units.Label(unit)
		fmt.Fprintf(tw, "RMSE px, py:\t%.4f m, %.4f m\n", s.RMSE[0], s.RMSE[1])
		fmt.Fprintf(tw, "RMSE vx, vy:\t%.4f %s, %.4f %s\n",
			units.ConvertSpeed(s.RMSE[2], unit), label,
			units.ConvertSpeed(s.RMSE[3], unit), label)
	} else {
		fmt.Fprintf(tw, "RMSE:\tn/a (no ground truth)\n")
	}

	for _, n := range s.NIS {
		if n.Count == 0 {
			continue
		}
		fmt.Fprintf(tw, "NIS %s:\tmean %.3f, %d/%d above %.3f (%.1f%%)\n",
			n.Sensor, n.Mean, n.Above, n.Count, n.Threshold, 100*n.FractionAbove)
	}

	if len(s.FinalState) == 5 {
		label := units.Label(unit)
		fmt.Fprintf(tw, "Final state:\tpx %.3f m, py %.3f m, v %.3f %s, yaw %.3f rad, yaw rate %.3f rad/s\n",
			s.FinalState[0], s.FinalState[1], units.ConvertSpeed(s.FinalState[2], unit), label,
			s.FinalState[3], s.FinalState[4])
	}
	return tw.Flush()
}
