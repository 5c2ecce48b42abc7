// Command fusion replays a LiDAR/radar measurement log through the
// unscented Kalman filter, scores it against any ground truth in the log
// and optionally persists, plots and exports the run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/sensor-fusion/internal/config"
	"github.com/banshee-data/sensor-fusion/internal/evaluation"
	"github.com/banshee-data/sensor-fusion/internal/fusion"
	"github.com/banshee-data/sensor-fusion/internal/measurements"
	"github.com/banshee-data/sensor-fusion/internal/monitoring"
	"github.com/banshee-data/sensor-fusion/internal/report"
	"github.com/banshee-data/sensor-fusion/internal/storage/sqlite"
	"github.com/banshee-data/sensor-fusion/internal/timeutil"
	"github.com/banshee-data/sensor-fusion/internal/units"
	"github.com/banshee-data/sensor-fusion/internal/version"
)

// Config holds the command line options.
type Config struct {
	InputPath  string
	ConfigPath string
	DBPath     string
	PlotDir    string
	HTMLPath   string
	OutputJSON string
	Units      string
	SkipRMSE   int
	Verbose    bool
}

func main() {
	cfg, showVersion := parseFlags()

	if showVersion {
		fmt.Println(version.String())
		return
	}
	if cfg.InputPath == "" {
		log.Fatal("input file is required (-input)")
	}
	if !units.IsValid(cfg.Units) {
		log.Fatalf("invalid units %q, want one of: %s", cfg.Units, units.GetValidUnitsString())
	}
	monitoring.SetVerbose(cfg.Verbose)

	tuning, err := loadTuning(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	summary, err := run(cfg, tuning, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	if err := report.PrintSummary(os.Stdout, *summary, cfg.Units); err != nil {
		log.Printf("Warning: failed to print summary: %v", err)
	}

	if cfg.OutputJSON != "" {
		if err := exportJSON(summary, cfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", cfg.OutputJSON)
		}
	}
}

func parseFlags() (Config, bool) {
	cfg := Config{}
	var showVersion bool

	flag.StringVar(&cfg.InputPath, "input", "", "Measurement log to replay")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Tuning JSON (default "+config.DefaultConfigPath+" if present)")
	flag.StringVar(&cfg.DBPath, "db", "", "SQLite database to record the run in")
	flag.StringVar(&cfg.PlotDir, "plot-dir", "", "Directory for trajectory and NIS PNG plots")
	flag.StringVar(&cfg.HTMLPath, "html", "", "Write an interactive HTML report to this path")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Write the run summary as JSON to this path")
	flag.StringVar(&cfg.Units, "units", units.MPS, "Speed units for the summary: "+units.GetValidUnitsString())
	flag.IntVar(&cfg.SkipRMSE, "skip", 0, "Samples to exclude from RMSE as initial transient")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable per-step debug logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Parse()

	return cfg, showVersion
}

// loadTuning reads the tuning file at path. With no path it uses the
// repository defaults when present and the built-in defaults otherwise.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	tuning, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if err != nil {
		monitoring.Logf("Using built-in tuning defaults: %v", err)
		return config.EmptyTuningConfig(), nil
	}
	return tuning, nil
}

// run replays the input log and produces the summary, recording the run
// and writing reports as configured.
func run(cfg Config, tuning *config.TuningConfig, clock timeutil.Clock) (*report.Summary, error) {
	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	filter, err := fusion.New(fusion.ConfigFromTuning(tuning))
	if err != nil {
		return nil, err
	}

	start := clock.Now()
	res, err := replay(filter, f)
	if err != nil {
		return nil, err
	}
	log.Printf("Replayed %d measurements from %s in %v", res.summary.Measurements, cfg.InputPath, clock.Since(start))

	summary := &res.summary
	summary.Input = cfg.InputPath
	if res.acc.Len() > 0 {
		rmse, err := res.acc.RMSE(cfg.SkipRMSE)
		if err != nil {
			log.Printf("Warning: RMSE unavailable: %v", err)
		} else {
			summary.SetRMSE(rmse)
		}
	}

	if cfg.DBPath != "" {
		runID, err := persist(cfg, tuning, summary, res.estimates, clock)
		if err != nil {
			return nil, err
		}
		summary.RunID = runID
	}

	if err := writeReports(cfg, res.acc.Series()); err != nil {
		return nil, err
	}
	return summary, nil
}

type replayResult struct {
	summary   report.Summary
	acc       *evaluation.Accumulator
	estimates []sqlite.Estimate
}

// replay feeds every record to the filter. Records whose step fails are
// counted and skipped; the filter keeps its previous belief.
func replay(filter *fusion.UKF, r io.Reader) (*replayResult, error) {
	res := &replayResult{acc: evaluation.NewAccumulator()}
	rd := measurements.NewReader(r)

	for seq := 0; ; seq++ {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res.summary.Measurements++

		step, err := filter.ProcessMeasurement(rec.Measurement)
		if err != nil {
			res.summary.Errors++
			log.Printf("Warning: %v", err)
			continue
		}

		state := filter.State()
		est := sqlite.Estimate{
			Seq:         seq,
			TimestampUS: step.TimestampUS,
			Sensor:      step.Sensor.String(),
			Corrected:   step.Corrected,
			PX:          state.AtVec(fusion.StatePX),
			PY:          state.AtVec(fusion.StatePY),
			V:           state.AtVec(fusion.StateV),
			Yaw:         state.AtVec(fusion.StateYaw),
			YawRate:     state.AtVec(fusion.StateYawRate),
		}
		if step.Corrected {
			nis := step.NIS
			est.NIS = &nis
		}
		if gt := rec.GroundTruth; gt != nil {
			est.GroundTruth = []float64{gt.PX, gt.PY, gt.VX, gt.VY}
			if err := res.acc.Add(step, state, gt.Vector()); err != nil {
				return nil, err
			}
		}
		res.estimates = append(res.estimates, est)
	}
	res.summary.Skipped = rd.Skipped()

	if filter.Initialized() {
		state := filter.State()
		res.summary.FinalState = make([]float64, fusion.NX)
		for i := range res.summary.FinalState {
			res.summary.FinalState[i] = state.AtVec(i)
		}
	}
	nis := res.acc.NIS()
	res.summary.NIS = []evaluation.NISSummary{
		nis.Summary(fusion.SensorLidar),
		nis.Summary(fusion.SensorRadar),
	}
	return res, nil
}

func persist(cfg Config, tuning *config.TuningConfig, summary *report.Summary, estimates []sqlite.Estimate, clock timeutil.Clock) (string, error) {
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	cfgJSON, err := json.Marshal(tuning)
	if err != nil {
		return "", fmt.Errorf("encode tuning: %w", err)
	}
	nisJSON, err := json.Marshal(summary.NIS)
	if err != nil {
		return "", fmt.Errorf("encode nis: %w", err)
	}

	store := sqlite.NewRunStore(db.DB, clock)
	run := &sqlite.Run{
		InputPath:        cfg.InputPath,
		ToolVersion:      version.Version,
		GitSHA:           version.GitSHA,
		ConfigJSON:       cfgJSON,
		MeasurementCount: summary.Measurements,
		ErrorCount:       summary.Errors,
		RMSE:             summary.RMSE,
		NISJSON:          nisJSON,
	}
	if err := store.InsertRun(run); err != nil {
		return "", err
	}
	if err := store.InsertEstimates(run.RunID, estimates); err != nil {
		return "", err
	}
	log.Printf("Recorded run %s in %s", run.RunID, cfg.DBPath)
	return run.RunID, nil
}

func writeReports(cfg Config, series evaluation.Series) error {
	if len(series.EstX) == 0 {
		if cfg.PlotDir != "" || cfg.HTMLPath != "" {
			log.Printf("Warning: no ground truth in %s, skipping plots", cfg.InputPath)
		}
		return nil
	}

	if cfg.PlotDir != "" {
		if err := os.MkdirAll(cfg.PlotDir, 0755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
		if err := report.SaveTrajectoryPlot(series, filepath.Join(cfg.PlotDir, "trajectory.png")); err != nil {
			return err
		}
		if len(series.LidarNIS)+len(series.RadarNIS) > 0 {
			if err := report.SaveNISPlot(series, filepath.Join(cfg.PlotDir, "nis.png")); err != nil {
				return err
			}
		}
	}

	if cfg.HTMLPath != "" {
		f, err := os.Create(cfg.HTMLPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.RenderHTML(f, filepath.Base(cfg.InputPath), series); err != nil {
			return err
		}
	}
	return nil
}

func exportJSON(summary *report.Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
