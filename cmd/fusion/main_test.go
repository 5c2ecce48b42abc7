package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor-fusion/internal/config"
	"github.com/banshee-data/sensor-fusion/internal/fusion"
	"github.com/banshee-data/sensor-fusion/internal/measurements"
	"github.com/banshee-data/sensor-fusion/internal/storage/sqlite"
	"github.com/banshee-data/sensor-fusion/internal/timeutil"
)

func writeLog(t *testing.T, records []measurements.Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, measurements.WriteAll(f, records))
	return path
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		InputPath:  writeLog(t, measurements.NewGenerator(9).Generate(120)),
		DBPath:     filepath.Join(dir, "runs.db"),
		PlotDir:    filepath.Join(dir, "plots"),
		HTMLPath:   filepath.Join(dir, "report.html"),
		OutputJSON: filepath.Join(dir, "summary.json"),
		SkipRMSE:   10,
	}
	clock := timeutil.NewMockClock(time.Unix(1_700_000_000, 0))

	summary, err := run(cfg, config.MustLoadDefaultConfig(), clock)
	require.NoError(t, err)

	assert.Equal(t, 120, summary.Measurements)
	assert.Zero(t, summary.Errors)
	require.Len(t, summary.RMSE, 4)
	assert.Less(t, summary.RMSE[0], 0.5)
	assert.Less(t, summary.RMSE[1], 0.5)
	require.Len(t, summary.NIS, 2)
	assert.Equal(t, 59, summary.NIS[0].Count)
	assert.Equal(t, 60, summary.NIS[1].Count)
	assert.Len(t, summary.FinalState, fusion.NX)

	for _, name := range []string{"plots/trajectory.png", "plots/nis.png", "report.html"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	require.NoError(t, exportJSON(summary, cfg.OutputJSON))
	data, err := os.ReadFile(cfg.OutputJSON)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, summary.RunID, decoded["run_id"])

	db, err := sqlite.Open(cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewRunStore(db.DB, nil)

	stored, err := store.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, cfg.InputPath, stored.InputPath)
	assert.Equal(t, clock.Now().UnixNano(), stored.CreatedAt)
	assert.InDeltaSlice(t, summary.RMSE, stored.RMSE, 1e-12)

	estimates, err := store.ListEstimates(summary.RunID)
	require.NoError(t, err)
	assert.Len(t, estimates, 120)
	assert.Nil(t, estimates[0].NIS, "initialising step has no correction")
}

func TestReplay_CountsFailuresAndSkips(t *testing.T) {
	input := strings.Join([]string{
		"L 1 2 0 1 2 0 0",
		"Z 1 2 3 4",
		"L NaN 2 50000 1 2 0 0",
		"L 1.05 2 100000 1 2 0 0",
	}, "\n")

	filter, err := fusion.New(fusion.DefaultConfig())
	require.NoError(t, err)

	res, err := replay(filter, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, res.summary.Measurements)
	assert.Equal(t, 1, res.summary.Errors)
	assert.Equal(t, 1, res.summary.Skipped)
	assert.Len(t, res.estimates, 2)
	assert.Equal(t, 2, res.acc.Len())
	assert.Equal(t, int64(100000), filter.TimestampUS())
}

func TestReplay_NonFiniteFirstReadingDoesNotPoisonRun(t *testing.T) {
	input := strings.Join([]string{
		"L NaN 1 0 1 2 0 0",
		"L 1 2 50000 1 2 0 0",
		"L 1.05 2 100000 1.05 2 1 0",
		"R 2.3 1.1 0.5 150000 1.1 2 1 0",
	}, "\n")

	filter, err := fusion.New(fusion.DefaultConfig())
	require.NoError(t, err)

	res, err := replay(filter, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 4, res.summary.Measurements)
	assert.Equal(t, 1, res.summary.Errors)
	require.Len(t, res.estimates, 3)
	assert.Nil(t, res.estimates[0].NIS, "first valid reading initialises")
	assert.NotNil(t, res.estimates[1].NIS)
	assert.NotNil(t, res.estimates[2].NIS)
	assert.Equal(t, int64(150000), filter.TimestampUS())
}

func TestRun_MissingInput(t *testing.T) {
	_, err := run(Config{InputPath: filepath.Join(t.TempDir(), "missing.txt")}, config.EmptyTuningConfig(), timeutil.RealClock{})
	assert.Error(t, err)
}

func TestLoadTuning(t *testing.T) {
	tuning, err := loadTuning("")
	require.NoError(t, err)
	assert.Greater(t, tuning.GetStdA(), 0.0)

	_, err = loadTuning(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
