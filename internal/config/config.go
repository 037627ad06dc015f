// Package config loads the scanner configuration from a JSON file with
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"card-scanner/internal/descriptor"
	"card-scanner/internal/detect"
	"card-scanner/internal/identify"
	"card-scanner/internal/scan"
)

const (
	appDir     = "card-scanner"
	configFile = "config.json"
	envPrefix  = "CARDSCAN_"
)

// Config is the complete scanner configuration.
type Config struct {
	ModelPath    string `json:"model_path"`
	CatalogPath  string `json:"catalog_path"`
	CameraDevice string `json:"camera_device"`

	InputSize      int     `json:"input_size"`
	ConfThreshold  float64 `json:"conf_threshold"`
	IoUThreshold   float64 `json:"iou_threshold"`
	RotatedNMS     bool    `json:"rotated_nms"`
	AllowHeuristic bool    `json:"allow_heuristic"`

	GridSize  int     `json:"grid_size"`
	DCTWeight float64 `json:"dct_weight"`

	TickIntervalMS     int     `json:"tick_interval_ms"`
	CooldownMS         int     `json:"cooldown_ms"`
	AcceptThreshold    float64 `json:"accept_threshold"`
	PlausibleThreshold float64 `json:"plausible_threshold"`
	AutoScan           bool    `json:"auto_scan"`
	NoMatchResetTicks  int     `json:"no_match_reset_ticks"`

	OCR         bool   `json:"ocr"`
	OCRLanguage string `json:"ocr_language"`

	CatalogWatchMS int `json:"catalog_watch_ms"`

	path string
}

// Default returns the built-in configuration.
func Default() *Config {
	det := detect.DefaultConfig()
	sc := scan.DefaultConfig()
	return &Config{
		ModelPath:          "models/card-obb.onnx",
		CatalogPath:        "catalog.json",
		CameraDevice:       "0",
		InputSize:          det.InputSize,
		ConfThreshold:      det.ConfThreshold,
		IoUThreshold:       det.IoUThreshold,
		AllowHeuristic:     true,
		GridSize:           descriptor.DefaultConfig().GridSize,
		TickIntervalMS:     int(sc.Interval / time.Millisecond),
		CooldownMS:         int(sc.Cooldown / time.Millisecond),
		AcceptThreshold:    identify.AutoAcceptThreshold,
		PlausibleThreshold: identify.PlausibleThreshold,
		AutoScan:           true,
		NoMatchResetTicks:  sc.NoMatchResetTicks,
		OCRLanguage:        "eng",
		CatalogWatchMS:     2000,
	}
}

// DefaultPath returns ~/.config/card-scanner/config.json or its platform
// equivalent.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, configFile)
}

// Load reads the configuration file at path (DefaultPath when empty),
// then applies a .env file from the working directory and CARDSCAN_*
// environment variables on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load(".env")
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// applyEnv overrides fields from CARDSCAN_<JSON_KEY> variables.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"model_path":    &c.ModelPath,
		"catalog_path":  &c.CatalogPath,
		"camera_device": &c.CameraDevice,
		"ocr_language":  &c.OCRLanguage,
	}
	ints := map[string]*int{
		"input_size":           &c.InputSize,
		"grid_size":            &c.GridSize,
		"tick_interval_ms":     &c.TickIntervalMS,
		"cooldown_ms":          &c.CooldownMS,
		"no_match_reset_ticks": &c.NoMatchResetTicks,
		"catalog_watch_ms":     &c.CatalogWatchMS,
	}
	floats := map[string]*float64{
		"conf_threshold":      &c.ConfThreshold,
		"iou_threshold":       &c.IoUThreshold,
		"dct_weight":          &c.DCTWeight,
		"accept_threshold":    &c.AcceptThreshold,
		"plausible_threshold": &c.PlausibleThreshold,
	}
	bools := map[string]*bool{
		"rotated_nms":     &c.RotatedNMS,
		"allow_heuristic": &c.AllowHeuristic,
		"auto_scan":       &c.AutoScan,
		"ocr":             &c.OCR,
	}

	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}
	for key, dst := range ints {
		if v, ok := lookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, strings.ToUpper(key), err)
			}
			*dst = n
		}
	}
	for key, dst := range floats {
		if v, ok := lookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, strings.ToUpper(key), err)
			}
			*dst = f
		}
	}
	for key, dst := range bools {
		if v, ok := lookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", envPrefix, strings.ToUpper(key), err)
			}
			*dst = b
		}
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + strings.ToUpper(key))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input_size must be a positive multiple of 32, got %d", c.InputSize)
	}
	for name, v := range map[string]float64{
		"conf_threshold":      c.ConfThreshold,
		"iou_threshold":       c.IoUThreshold,
		"dct_weight":          c.DCTWeight,
		"accept_threshold":    c.AcceptThreshold,
		"plausible_threshold": c.PlausibleThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", name, v)
		}
	}
	if c.GridSize < 2 {
		return fmt.Errorf("grid_size must be at least 2, got %d", c.GridSize)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", c.TickIntervalMS)
	}
	if c.CooldownMS < 0 {
		return fmt.Errorf("cooldown_ms must not be negative, got %d", c.CooldownMS)
	}
	if c.NoMatchResetTicks < 1 {
		return fmt.Errorf("no_match_reset_ticks must be at least 1, got %d", c.NoMatchResetTicks)
	}
	if c.CatalogWatchMS < 0 {
		return fmt.Errorf("catalog_watch_ms must not be negative, got %d", c.CatalogWatchMS)
	}
	return nil
}

// Detect returns the detector parameters.
func (c *Config) Detect() detect.Config {
	cfg := detect.DefaultConfig().
		WithThresholds(c.ConfThreshold, c.IoUThreshold).
		WithRotatedIoU(c.RotatedNMS)
	cfg.InputSize = c.InputSize
	return cfg
}

// Descriptor returns the extraction configuration.
func (c *Config) Descriptor() descriptor.Config {
	return descriptor.DefaultConfig().WithGridSize(c.GridSize)
}

// Identify returns the ranking options.
func (c *Config) Identify() identify.Options {
	opts := identify.DefaultOptions()
	opts.DCTWeight = c.DCTWeight
	opts.PlausibleThreshold = c.PlausibleThreshold
	return opts
}

// Scan returns the controller policy.
func (c *Config) Scan() scan.Config {
	cfg := scan.DefaultConfig().
		WithInterval(time.Duration(c.TickIntervalMS) * time.Millisecond).
		WithCooldown(time.Duration(c.CooldownMS) * time.Millisecond).
		WithAutoScan(c.AutoScan)
	cfg.AcceptThreshold = c.AcceptThreshold
	cfg.NoMatchResetTicks = c.NoMatchResetTicks
	return cfg
}

// CatalogWatchInterval returns the catalog polling interval, zero when
// hot reload is disabled.
func (c *Config) CatalogWatchInterval() time.Duration {
	return time.Duration(c.CatalogWatchMS) * time.Millisecond
}
