package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default filter values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the estimator.
// Every field is optional; the Get* methods fall back to the built-in
// defaults so partial files are safe.
type TuningConfig struct {
	// Process noise
	StdA     *float64 `json:"std_a,omitempty"`     // longitudinal acceleration (m/s²)
	StdYawDD *float64 `json:"std_yawdd,omitempty"` // yaw acceleration (rad/s²)

	// LiDAR measurement noise
	StdLaserPX *float64 `json:"std_laser_px,omitempty"` // metres
	StdLaserPY *float64 `json:"std_laser_py,omitempty"` // metres

	// Radar measurement noise
	StdRadarR   *float64 `json:"std_radar_r,omitempty"`   // metres
	StdRadarPhi *float64 `json:"std_radar_phi,omitempty"` // radians
	StdRadarRD  *float64 `json:"std_radar_rd,omitempty"`  // m/s

	// Sensor selection
	UseLidar *bool `json:"use_lidar,omitempty"`
	UseRadar *bool `json:"use_radar,omitempty"`

	// MaxDtSeconds splits long prediction gaps into sub-steps. 0 disables.
	MaxDtSeconds *float64 `json:"max_dt_seconds,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/storage/sqlite/, cmd/tools/x/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	stds := []struct {
		name string
		v    *float64
	}{
		{"std_a", c.StdA},
		{"std_yawdd", c.StdYawDD},
		{"std_laser_px", c.StdLaserPX},
		{"std_laser_py", c.StdLaserPY},
		{"std_radar_r", c.StdRadarR},
		{"std_radar_phi", c.StdRadarPhi},
		{"std_radar_rd", c.StdRadarRD},
	}
	for _, s := range stds {
		if s.v != nil && *s.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", s.name, *s.v)
		}
	}

	if c.MaxDtSeconds != nil && *c.MaxDtSeconds < 0 {
		return fmt.Errorf("max_dt_seconds must be non-negative, got %f", *c.MaxDtSeconds)
	}

	if !c.GetUseLidar() && !c.GetUseRadar() {
		return fmt.Errorf("at least one of use_lidar and use_radar must be enabled")
	}

	return nil
}

// GetStdA returns the std_a value or the default.
func (c *TuningConfig) GetStdA() float64 {
	if c.StdA == nil {
		return 1.5
	}
	return *c.StdA
}

// GetStdYawDD returns the std_yawdd value or the default.
func (c *TuningConfig) GetStdYawDD() float64 {
	if c.StdYawDD == nil {
		return 0.5
	}
	return *c.StdYawDD
}

// GetStdLaserPX returns the std_laser_px value or the default.
func (c *TuningConfig) GetStdLaserPX() float64 {
	if c.StdLaserPX == nil {
		return 0.15
	}
	return *c.StdLaserPX
}

// GetStdLaserPY returns the std_laser_py value or the default.
func (c *TuningConfig) GetStdLaserPY() float64 {
	if c.StdLaserPY == nil {
		return 0.15
	}
	return *c.StdLaserPY
}

// GetStdRadarR returns the std_radar_r value or the default.
func (c *TuningConfig) GetStdRadarR() float64 {
	if c.StdRadarR == nil {
		return 0.3
	}
	return *c.StdRadarR
}

// GetStdRadarPhi returns the std_radar_phi value or the default.
func (c *TuningConfig) GetStdRadarPhi() float64 {
	if c.StdRadarPhi == nil {
		return 0.03
	}
	return *c.StdRadarPhi
}

// GetStdRadarRD returns the std_radar_rd value or the default.
func (c *TuningConfig) GetStdRadarRD() float64 {
	if c.StdRadarRD == nil {
		return 0.3
	}
	return *c.StdRadarRD
}

// GetUseLidar returns the use_lidar value or the default.
func (c *TuningConfig) GetUseLidar() bool {
	if c.UseLidar == nil {
		return true
	}
	return *c.UseLidar
}

// GetUseRadar returns the use_radar value or the default.
func (c *TuningConfig) GetUseRadar() bool {
	if c.UseRadar == nil {
		return true
	}
	return *c.UseRadar
}

// GetMaxDtSeconds returns the max_dt_seconds value or the default.
func (c *TuningConfig) GetMaxDtSeconds() float64 {
	if c.MaxDtSeconds == nil {
		return 0
	}
	return *c.MaxDtSeconds
}
