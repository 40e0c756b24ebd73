// Package config holds all helioscan configuration: which station
// exports to process, how to clean them, analysis thresholds, output
// paths, and logging. Config lives in a YAML file (helioscan.yaml by
// default) with a small set of environment overrides for deployment.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "helioscan.yaml"

// Environment overrides applied after loading the file.
const (
	EnvDataDir  = "HELIOSCAN_DATA_DIR"
	EnvDBPath   = "HELIOSCAN_DB_PATH"
	EnvLogLevel = "HELIOSCAN_LOG_LEVEL"
)

// Config holds all helioscan configuration.
type Config struct {
	Stations map[string]Station `yaml:"stations"`
	Cleaning CleaningConfig     `yaml:"cleaning"`
	Analysis AnalysisConfig     `yaml:"analysis"`
	Paths    PathsConfig        `yaml:"paths"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// Station describes one measurement station's CSV exports.
type Station struct {
	File        string `yaml:"file"`         // raw export, relative to data dir
	CleanedFile string `yaml:"cleaned_file"` // cleaned output, relative to data dir
	Location    string `yaml:"location"`
}

// CleaningConfig configures the cleaning stage.
type CleaningConfig struct {
	ZThreshold     float64  `yaml:"z_threshold"`
	ImputeColumns  []string `yaml:"impute_columns"`
	OutlierColumns []string `yaml:"outlier_columns"`
}

// AnalysisConfig configures statistics and ranking.
type AnalysisConfig struct {
	CorrelationThreshold   float64 `yaml:"correlation_threshold"`
	SignificanceLevel      float64 `yaml:"significance_level"`
	SolarThreshold         float64 `yaml:"solar_threshold"`          // W/m2 floor for operational hours
	HighPotentialThreshold float64 `yaml:"high_potential_threshold"` // W/m2 floor for high-potential hours
	Weights                Weights `yaml:"weights"`
}

// Weights are the composite-score weights. They must sum to 1.
type Weights struct {
	MeanGHI            float64 `yaml:"mean_ghi"`
	Consistency        float64 `yaml:"consistency"`
	HighPotentialHours float64 `yaml:"high_potential_hours"`
	PeakPercentile     float64 `yaml:"peak_percentile"`
}

// PathsConfig configures filesystem layout.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir"`
	OutputDir  string `yaml:"output_dir"`
	ReportsDir string `yaml:"reports_dir"`
	DBPath     string `yaml:"db_path"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`   // empty = stderr
}

// DefaultConfig returns the default configuration: the three West
// African stations the challenge ships with, median imputation over the
// irradiance and weather columns, and |z| > 3 outlier removal.
func DefaultConfig() *Config {
	return &Config{
		Stations: map[string]Station{
			"benin": {
				File:        "benin-malanville.csv",
				CleanedFile: "benin_clean.csv",
				Location:    "Malanville",
			},
			"sierra_leone": {
				File:        "sierra_leone.csv",
				CleanedFile: "sierra_leone_clean.csv",
				Location:    "Sierra Leone",
			},
			"togo": {
				File:        "togo.csv",
				CleanedFile: "togo_clean.csv",
				Location:    "Togo",
			},
		},
		Cleaning: CleaningConfig{
			ZThreshold:     3,
			ImputeColumns:  []string{"GHI", "DNI", "DHI", "Tamb", "WS", "RH", "BP"},
			OutlierColumns: []string{"GHI", "DNI", "DHI", "ModA", "ModB", "WS", "WSgust", "Tamb"},
		},
		Analysis: AnalysisConfig{
			CorrelationThreshold:   0.3,
			SignificanceLevel:      0.05,
			SolarThreshold:         50,
			HighPotentialThreshold: 400,
			Weights: Weights{
				MeanGHI:            0.4,
				Consistency:        0.3,
				HighPotentialHours: 0.2,
				PeakPercentile:     0.1,
			},
		},
		Paths: PathsConfig{
			DataDir:    "data",
			OutputDir:  "outputs",
			ReportsDir: "reports",
			DBPath:     filepath.Join("outputs", "helioscan.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config from path, falling back to defaults if the file
// does not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Paths.DBPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if len(c.Stations) == 0 {
		return fmt.Errorf("config: no stations configured")
	}
	for name, st := range c.Stations {
		if st.File == "" {
			return fmt.Errorf("config: station %q has no file", name)
		}
		if st.CleanedFile == "" {
			return fmt.Errorf("config: station %q has no cleaned_file", name)
		}
	}
	if c.Cleaning.ZThreshold <= 0 {
		return fmt.Errorf("config: z_threshold must be positive, got %v", c.Cleaning.ZThreshold)
	}
	if c.Analysis.SolarThreshold < 0 || c.Analysis.HighPotentialThreshold < 0 {
		return fmt.Errorf("config: solar thresholds must be non-negative")
	}
	if c.Analysis.SignificanceLevel <= 0 || c.Analysis.SignificanceLevel >= 1 {
		return fmt.Errorf("config: significance_level must be in (0,1), got %v", c.Analysis.SignificanceLevel)
	}
	w := c.Analysis.Weights
	sum := w.MeanGHI + w.Consistency + w.HighPotentialHours + w.PeakPercentile
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("config: composite weights sum to %v, want 1", sum)
	}
	return nil
}

// StationNames returns configured station names, sorted for
// deterministic iteration.
func (c *Config) StationNames() []string {
	names := make([]string, 0, len(c.Stations))
	for name := range c.Stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StationPaths resolves the raw and cleaned file paths for a station.
func (c *Config) StationPaths(name string) (raw, cleaned string, err error) {
	st, ok := c.Stations[name]
	if !ok {
		return "", "", fmt.Errorf("config: unknown station %q", name)
	}
	return filepath.Join(c.Paths.DataDir, st.File),
		filepath.Join(c.Paths.DataDir, st.CleanedFile),
		nil
}

// StationForFile maps a raw export filename back to its station name.
// Used by the watcher to decide what to reprocess.
func (c *Config) StationForFile(filename string) (string, bool) {
	base := filepath.Base(filename)
	for name, st := range c.Stations {
		if st.File == base {
			return name, true
		}
	}
	return "", false
}
