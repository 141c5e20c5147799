package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/menta2k/calorie-estimator/pkg/analyzer"
	"github.com/menta2k/calorie-estimator/pkg/calorie"
	"github.com/menta2k/calorie-estimator/pkg/processing"
	"github.com/menta2k/calorie-estimator/pkg/types"
	"github.com/menta2k/calorie-estimator/pkg/vision"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// Config holds the application configuration
type Config struct {
	Analyzer   AnalyzerConfig   `json:"analyzer"`
	Processing ProcessingConfig `json:"processing"`
	Detection  DetectionConfig  `json:"detection"`
	Estimation EstimationConfig `json:"estimation"`
	Output     OutputConfig     `json:"output"`
	Log        LogConfig        `json:"log"`
}

// AnalyzerConfig holds configuration for image intake
type AnalyzerConfig struct {
	SupportedFormats []string `json:"supported_formats" validate:"min=1,dive,oneof=jpeg png gif webp"`
	MinImageSize     int      `json:"min_image_size" validate:"gte=1"`
	QualityThreshold float64  `json:"quality_threshold" validate:"gte=0,lte=1"`
}

// ProcessingConfig holds configuration for preprocessing
type ProcessingConfig struct {
	TargetResolution  int     `json:"target_resolution" validate:"gte=32,lte=4096"`
	DenoiseStrength   float64 `json:"denoise_strength" validate:"gte=0"`
	NormalizeLighting bool    `json:"normalize_lighting"`
	ContrastBoost     float64 `json:"contrast_boost" validate:"gte=-100,lte=100"`
	Saturation        float64 `json:"saturation" validate:"gte=-100,lte=100"`
}

// DetectionConfig holds configuration for food detection
type DetectionConfig struct {
	MinRegionFraction float64 `json:"min_region_fraction" validate:"gte=0,lte=1"`
	FullSizeFraction  float64 `json:"full_size_fraction" validate:"gt=0,lte=1"`
	MergeIoU          float64 `json:"merge_iou" validate:"gte=0,lte=1"`
	Parallel          bool    `json:"parallel"`
}

// EstimationConfig holds the per-run defaults and reference data location
type EstimationConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold" validate:"gte=0,lte=1"`
	PlateSize           string  `json:"plate_size,omitempty" validate:"omitempty,oneof=small medium large extra-large"`
	FoodTable           string  `json:"food_table,omitempty"`
	MinUncertaintyPct   float64 `json:"min_uncertainty_pct" validate:"gte=0,lte=100"`
	MaxUncertaintyPct   float64 `json:"max_uncertainty_pct" validate:"gtefield=MinUncertaintyPct,lte=100"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OverlayFormat  string `json:"overlay_format" validate:"oneof=jpg jpeg png webp"`
	OverlayQuality int    `json:"overlay_quality" validate:"gte=1,lte=100"`
	OutputDir      string `json:"output_dir"`
	Suffix         string `json:"suffix"`
	Indent         bool   `json:"indent"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `json:"file,omitempty"`
}

// Default returns a configuration with default values
func Default() *Config {
	proc := processing.DefaultConfig()
	det := vision.DefaultConfig()
	cal := calorie.DefaultConfig()

	return &Config{
		Analyzer: AnalyzerConfig{
			SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
			MinImageSize:     1,
			QualityThreshold: 0.3,
		},
		Processing: ProcessingConfig{
			TargetResolution:  proc.TargetResolution,
			DenoiseStrength:   proc.DenoiseStrength,
			NormalizeLighting: proc.NormalizeLighting,
			ContrastBoost:     proc.ContrastBoost,
			Saturation:        proc.Saturation,
		},
		Detection: DetectionConfig{
			MinRegionFraction: det.MinRegionFraction,
			FullSizeFraction:  det.FullSizeFraction,
			MergeIoU:          det.MergeIoU,
			Parallel:          det.Parallel,
		},
		Estimation: EstimationConfig{
			ConfidenceThreshold: 0.5,
			MinUncertaintyPct:   cal.MinUncertaintyPct,
			MaxUncertaintyPct:   cal.MaxUncertaintyPct,
		},
		Output: OutputConfig{
			OverlayFormat:  "jpg",
			OverlayQuality: 90,
			OutputDir:      "./output",
			Suffix:         "_detections",
			Indent:         true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their
// default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &types.ConfigError{
			Field:  fe.Namespace(),
			Reason: fmt.Sprintf("failed %s %s", fe.Tag(), fe.Param()),
		}
	}
	return fmt.Errorf("failed to validate config: %w", err)
}

// AnalyzerOptions converts the intake section to analyzer settings
func (c *Config) AnalyzerOptions() analyzer.Config {
	return analyzer.Config{
		SupportedFormats: c.Analyzer.SupportedFormats,
		MinImageSize:     c.Analyzer.MinImageSize,
		QualityThreshold: c.Analyzer.QualityThreshold,
	}
}

// ProcessingOptions converts the preprocessing section
func (c *Config) ProcessingOptions() processing.Config {
	return processing.Config{
		TargetResolution:  c.Processing.TargetResolution,
		DenoiseStrength:   c.Processing.DenoiseStrength,
		NormalizeLighting: c.Processing.NormalizeLighting,
		ContrastBoost:     c.Processing.ContrastBoost,
		Saturation:        c.Processing.Saturation,
	}
}

// DetectionOptions converts the detection section, keeping the built-in profiles
func (c *Config) DetectionOptions() vision.Config {
	cfg := vision.DefaultConfig()
	cfg.MinRegionFraction = c.Detection.MinRegionFraction
	cfg.FullSizeFraction = c.Detection.FullSizeFraction
	cfg.MergeIoU = c.Detection.MergeIoU
	cfg.Parallel = c.Detection.Parallel
	return cfg
}

// CalorieOptions converts the uncertainty range
func (c *Config) CalorieOptions() calorie.Config {
	return calorie.Config{
		MinUncertaintyPct: c.Estimation.MinUncertaintyPct,
		MaxUncertaintyPct: c.Estimation.MaxUncertaintyPct,
	}
}

// Environment variables read by Resolve
const (
	EnvConfig   = "CALORIE_CONFIG"
	EnvLogLevel = "CALORIE_LOG_LEVEL"
	EnvLogFile  = "CALORIE_LOG_FILE"
)

// Resolve loads the configuration from path, else from $CALORIE_CONFIG, else
// from GetConfigPath when that file exists, else the defaults. Logging
// settings from the environment are applied on top.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		if p := GetConfigPath(); fileExists(p) {
			path = p
		}
	}

	c := Default()
	if path != "" {
		var err error
		if c, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv()
	return c, nil
}

// ApplyEnv overrides the log settings with CALORIE_LOG_LEVEL and CALORIE_LOG_FILE when set
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "calorie-estimator", "config.json")
}
