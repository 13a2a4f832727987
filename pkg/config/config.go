// Package config provides configuration loading and management for orionjets.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"orionjets/pkg/fitting"
	"orionjets/pkg/motion"
	"orionjets/pkg/remote"
	"orionjets/pkg/xcorr"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many regions are measured in parallel
		NumCores int `yaml:"numCores"`

		// Method is integer, gfit or both
		Method string `yaml:"method"`

		// Correlation is auto, direct or fft
		Correlation string `yaml:"correlation"`

		// FFTThreshold is the (rows*cols)^2 work above which auto uses the FFT
		FFTThreshold int `yaml:"fftThreshold"`
	} `yaml:"processing"`

	// Gaussian peak fit parameters
	Fit struct {
		MaxIterations    int     `yaml:"maxIterations"`
		Tolerance        float64 `yaml:"tolerance"`
		InitialAmplitude float64 `yaml:"initialAmplitude"`
		InitialStddev    float64 `yaml:"initialStddev"`
	} `yaml:"fit"`

	// Coordinate system check between epochs
	WCS struct {
		// Tolerance for numeric keywords; 0 requires exact equality
		Tolerance float64 `yaml:"tolerance"`

		// SkipCheck measures even when the coordinate systems differ
		SkipCheck bool `yaml:"skipCheck"`
	} `yaml:"wcs"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogFormat is text or json
		LogFormat string `yaml:"logFormat"`

		// ResultsFile receives the measurements as YAML when set
		ResultsFile string `yaml:"resultsFile"`

		// SurfacesDir receives correlation surface images when set
		SurfacesDir string `yaml:"surfacesDir"`
	} `yaml:"output"`

	// Remote data repository
	Remote struct {
		// BaseURL is the GitHub API root
		BaseURL   string        `yaml:"baseURL"`
		Owner     string        `yaml:"owner"`
		Repo      string        `yaml:"repo"`
		Branch    string        `yaml:"branch"`
		Path      string        `yaml:"path"`
		Suffix    string        `yaml:"suffix"`
		UserAgent string        `yaml:"userAgent"`
		Timeout   time.Duration `yaml:"timeout"`
		Attempts  int           `yaml:"attempts"`
	} `yaml:"remote"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Method = string(motion.MethodInteger)
	cfg.Processing.Correlation = xcorr.MethodAuto.String()
	cfg.Processing.FFTThreshold = xcorr.DefaultFFTThreshold

	// Set default fit parameters
	fit := fitting.DefaultOptions()
	cfg.Fit.MaxIterations = fit.MaxIterations
	cfg.Fit.Tolerance = fit.Tolerance
	cfg.Fit.InitialAmplitude = 1.0
	cfg.Fit.InitialStddev = 2.0

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.LogFormat = "text"

	// Set default remote parameters
	rc := remote.DefaultConfig()
	cfg.Remote.BaseURL = rc.BaseURL
	cfg.Remote.Owner = rc.Owner
	cfg.Remote.Repo = rc.Repo
	cfg.Remote.Branch = rc.Branch
	cfg.Remote.Path = rc.Path
	cfg.Remote.Suffix = rc.Suffix
	cfg.Remote.UserAgent = rc.UserAgent
	cfg.Remote.Timeout = rc.Timeout
	cfg.Remote.Attempts = rc.Attempts

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	if _, err := motion.ParseMethod(c.Processing.Method); err != nil {
		return err
	}
	if _, err := xcorr.ParseMethod(c.Processing.Correlation); err != nil {
		return err
	}
	switch c.Output.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Output.LogFormat)
	}
	if c.Fit.MaxIterations < 0 || c.Fit.Tolerance < 0 || c.WCS.Tolerance < 0 {
		return fmt.Errorf("fit limits and tolerances must not be negative")
	}
	return nil
}

// Estimator builds the correlation and fit settings.
func (c *Config) Estimator() (xcorr.Estimator, error) {
	m, err := xcorr.ParseMethod(c.Processing.Correlation)
	if err != nil {
		return xcorr.Estimator{}, err
	}
	est := xcorr.NewEstimator()
	est.Method = m
	if c.Processing.FFTThreshold > 0 {
		est.FFTThreshold = c.Processing.FFTThreshold
	}
	if c.Fit.MaxIterations > 0 {
		est.Fit.MaxIterations = c.Fit.MaxIterations
	}
	if c.Fit.Tolerance > 0 {
		est.Fit.Tolerance = c.Fit.Tolerance
	}
	if c.Fit.InitialAmplitude != 0 {
		est.InitialAmplitude = c.Fit.InitialAmplitude
	}
	if c.Fit.InitialStddev > 0 {
		est.InitialStddev = c.Fit.InitialStddev
	}
	return est, nil
}

// RemoteConfig builds the remote client settings.
func (c *Config) RemoteConfig() remote.Config {
	rc := remote.DefaultConfig()
	if c.Remote.BaseURL != "" {
		rc.BaseURL = c.Remote.BaseURL
	}
	if c.Remote.Owner != "" {
		rc.Owner = c.Remote.Owner
	}
	if c.Remote.Repo != "" {
		rc.Repo = c.Remote.Repo
	}
	rc.Branch = c.Remote.Branch
	rc.Path = c.Remote.Path
	if c.Remote.Suffix != "" {
		rc.Suffix = c.Remote.Suffix
	}
	if c.Remote.UserAgent != "" {
		rc.UserAgent = c.Remote.UserAgent
	}
	if c.Remote.Timeout > 0 {
		rc.Timeout = c.Remote.Timeout
	}
	if c.Remote.Attempts > 0 {
		rc.Attempts = c.Remote.Attempts
	}
	return rc
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
