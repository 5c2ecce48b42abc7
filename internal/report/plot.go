// Package report renders the outcome of an estimator run: PNG plots, an
// interactive HTML page and a plain text summary.
package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sensor-fusion/internal/evaluation"
	"github.com/banshee-data/sensor-fusion/internal/fusion"
)

// Plot size used for every PNG.
const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// SaveTrajectoryPlot writes the estimated and true XY paths to path. The
// image format follows the file extension.
func SaveTrajectoryPlot(s evaluation.Series, path string) error {
	if len(s.EstX) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = "Estimated vs true trajectory"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(2)
	if err := addLine(p, "estimate", s.EstX, s.EstY, colors[0]); err != nil {
		return err
	}
	if err := addLine(p, "ground truth", s.TruthX, s.TruthY, colors[1]); err != nil {
		return err
	}
	configureLegend(p)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// SaveNISPlot writes NIS over time for each sensor to path, with each
// sensor's 95% threshold drawn as a flat line.
func SaveNISPlot(s evaluation.Series, path string) error {
	if len(s.LidarNIS) == 0 && len(s.RadarNIS) == 0 {
		return fmt.Errorf("no corrections to plot")
	}

	p := plot.New()
	p.Title.Text = "Normalised innovation squared"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "NIS"

	sensors := []struct {
		sensor fusion.SensorType
		t, nis []float64
	}{
		{fusion.SensorLidar, s.LidarTimeS, s.LidarNIS},
		{fusion.SensorRadar, s.RadarTimeS, s.RadarNIS},
	}
	colors := generateColors(len(sensors))
	for i, sn := range sensors {
		if len(sn.nis) == 0 {
			continue
		}
		if err := addLine(p, sn.sensor.String(), sn.t, sn.nis, colors[i]); err != nil {
			return err
		}

		threshold := evaluation.NISThreshold(sn.sensor)
		first, last := sn.t[0], sn.t[len(sn.t)-1]
		line, err := plotter.NewLine(plotter.XYs{{X: first, Y: threshold}, {X: last, Y: threshold}})
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s 95%% (%.3f)", sn.sensor, threshold), line)
	}
	configureLegend(p)

	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save nis plot: %w", err)
	}
	return nil
}

func addLine(p *plot.Plot, label string, xs, ys []float64, c color.Color) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%s: %d x values but %d y values", label, len(xs), len(ys))
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(label, line)
	return nil
}

func configureLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// generateColors creates a palette of distinct colors for plot lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
