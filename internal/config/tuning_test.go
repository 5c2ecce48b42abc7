package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.Equal(t, 1.5, cfg.GetStdA())
	assert.Equal(t, 0.5, cfg.GetStdYawDD())
	assert.Equal(t, 0.15, cfg.GetStdLaserPX())
	assert.Equal(t, 0.15, cfg.GetStdLaserPY())
	assert.Equal(t, 0.3, cfg.GetStdRadarR())
	assert.Equal(t, 0.03, cfg.GetStdRadarPhi())
	assert.Equal(t, 0.3, cfg.GetStdRadarRD())
	assert.True(t, cfg.GetUseLidar())
	assert.True(t, cfg.GetUseRadar())
	assert.Equal(t, 0.0, cfg.GetMaxDtSeconds())
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg)

	// The defaults file and the built-in getters must agree.
	empty := EmptyTuningConfig()
	assert.Equal(t, empty.GetStdA(), cfg.GetStdA())
	assert.Equal(t, empty.GetStdYawDD(), cfg.GetStdYawDD())
	assert.Equal(t, empty.GetStdLaserPX(), cfg.GetStdLaserPX())
	assert.Equal(t, empty.GetStdRadarPhi(), cfg.GetStdRadarPhi())
	assert.Equal(t, empty.GetUseRadar(), cfg.GetUseRadar())
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "std_a": 2.0,
  "std_yawdd": 0.8,
  "use_radar": false,
  "max_dt_seconds": 0.5
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadTuningConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.GetStdA())
	assert.Equal(t, 0.8, cfg.GetStdYawDD())
	assert.False(t, cfg.GetUseRadar())
	assert.True(t, cfg.GetUseLidar(), "omitted field keeps its default")
	assert.Equal(t, 0.5, cfg.GetMaxDtSeconds())
	assert.Equal(t, 0.15, cfg.GetStdLaserPX(), "omitted field keeps its default")
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	assert.Error(t, err)
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0644))

	_, err := LoadTuningConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "big.json")
	big := `{"std_a": 1.0, "pad": "` + strings.Repeat("x", 1024*1024+1) + `"}`
	require.NoError(t, os.WriteFile(configPath, []byte(big), 0644))

	_, err := LoadTuningConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "std_a": "invalid"
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidJSON), 0644))

	_, err := LoadTuningConfig(configPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr string
	}{
		{
			name: "empty config is valid",
			cfg:  EmptyTuningConfig(),
		},
		{
			name: "positive noise values",
			cfg: &TuningConfig{
				StdA:        ptrFloat64(3),
				StdRadarPhi: ptrFloat64(0.01),
			},
		},
		{
			name:    "zero std_a",
			cfg:     &TuningConfig{StdA: ptrFloat64(0)},
			wantErr: "std_a",
		},
		{
			name:    "negative radar range noise",
			cfg:     &TuningConfig{StdRadarR: ptrFloat64(-0.1)},
			wantErr: "std_radar_r",
		},
		{
			name:    "negative max dt",
			cfg:     &TuningConfig{MaxDtSeconds: ptrFloat64(-1)},
			wantErr: "max_dt_seconds",
		},
		{
			name: "both sensors disabled",
			cfg: &TuningConfig{
				UseLidar: ptrBool(false),
				UseRadar: ptrBool(false),
			},
			wantErr: "at least one",
		},
		{
			name: "one sensor disabled",
			cfg:  &TuningConfig{UseLidar: ptrBool(false)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
