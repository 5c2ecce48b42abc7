package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/sensor-fusion/internal/evaluation"
)

// RenderHTML writes a self-contained page with an XY trajectory chart and
// a NIS-over-time chart.
func RenderHTML(w io.Writer, title string, s evaluation.Series) error {
	traj := charts.NewScatter()
	traj.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trajectory", Subtitle: fmt.Sprintf("%s samples=%d", title, len(s.EstX))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	traj.AddSeries("estimate", scatterData(s.EstX, s.EstY), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	traj.AddSeries("ground truth", scatterData(s.TruthX, s.TruthY), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	nis := charts.NewScatter()
	nis.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "NIS", Subtitle: fmt.Sprintf("lidar=%d radar=%d", len(s.LidarNIS), len(s.RadarNIS))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "NIS", NameLocation: "middle", NameGap: 30}),
	)
	nis.AddSeries("lidar", scatterData(s.LidarTimeS, s.LidarNIS), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	nis.AddSeries("radar", scatterData(s.RadarTimeS, s.RadarNIS), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(traj, nis)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

func scatterData(xs, ys []float64) []opts.ScatterData {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	data := make([]opts.ScatterData, 0, n)
	for i := 0; i < n; i++ {
		data = append(data, opts.ScatterData{Value: []interface{}{xs[i], ys[i]}})
	}
	return data
}
