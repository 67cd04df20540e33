package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file base name searched in standard locations.
const FileName = "dastgate.yaml"

// Config holds all configuration for dastgate
type Config struct {
	// Directory for stored evaluation history
	StorageDir string `mapstructure:"storage_dir" yaml:"storage_dir"`

	// Policy bundle passed to opa --data
	PolicyDir  string `mapstructure:"policy_dir" yaml:"policy_dir"`
	PolicyFile string `mapstructure:"policy_file" yaml:"policy_file"`

	// OPA acquisition and invocation
	OPAVersion     string        `mapstructure:"opa_version" yaml:"opa_version"`
	OPABinary      string        `mapstructure:"opa_binary" yaml:"opa_binary,omitempty"`
	OPACacheDir    string        `mapstructure:"opa_cache_dir" yaml:"opa_cache_dir,omitempty"`
	OPAQuery       string        `mapstructure:"opa_query" yaml:"opa_query"`
	OPADownloadURL string        `mapstructure:"opa_download_url" yaml:"opa_download_url"`
	OPATimeout     time.Duration `mapstructure:"opa_timeout" yaml:"opa_timeout"`

	// Scanner config files named in tuning hints
	ZAPConfig       string `mapstructure:"zap_config" yaml:"zap_config"`
	NucleiTemplates string `mapstructure:"nuclei_templates" yaml:"nuclei_templates"`

	// Report shaping
	TuningLimit  int `mapstructure:"tuning_limit" yaml:"tuning_limit"`
	SurfaceLimit int `mapstructure:"surface_limit" yaml:"surface_limit"`

	// Regression and health checks
	RegressionThreshold int    `mapstructure:"regression_threshold" yaml:"regression_threshold"`
	ExpectedStatus      string `mapstructure:"expected_status" yaml:"expected_status"`
	MaxRisk             int    `mapstructure:"max_risk" yaml:"max_risk"`
	CanonicalInput      string `mapstructure:"canonical_input" yaml:"canonical_input"`

	// Verbose output
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		StorageDir:          ".dastgate",
		PolicyDir:           "policies",
		PolicyFile:          "severity-rules.rego",
		OPAVersion:          "latest",
		OPAQuery:            "data.dast.evaluation",
		OPADownloadURL:      "https://openpolicyagent.org/downloads",
		OPATimeout:          5 * time.Minute,
		ZAPConfig:           "configs/zap-config.conf",
		NucleiTemplates:     "configs/nuclei-templates.yaml",
		TuningLimit:         3,
		SurfaceLimit:        5,
		RegressionThreshold: 5,
		ExpectedStatus:      "PASS",
		MaxRisk:             5,
		CanonicalInput:      "policies/canonical-input.json",
	}
}

// Load loads configuration with the following precedence (lowest to highest):
// 1. Default values
// 2. Config file (./dastgate.yaml, ~/dastgate.yaml, $XDG_CONFIG_HOME/dastgate/dastgate.yaml)
// 3. Environment variables (DASTGATE_*, plus OPA_BINARY and OPA_VERSION)
// 4. CLI flags (handled by caller)
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file path
// If path is empty, it searches for config in standard locations
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("storage_dir", defaults.StorageDir)
	v.SetDefault("policy_dir", defaults.PolicyDir)
	v.SetDefault("policy_file", defaults.PolicyFile)
	v.SetDefault("opa_version", defaults.OPAVersion)
	v.SetDefault("opa_binary", "")
	v.SetDefault("opa_cache_dir", "")
	v.SetDefault("opa_query", defaults.OPAQuery)
	v.SetDefault("opa_download_url", defaults.OPADownloadURL)
	v.SetDefault("opa_timeout", defaults.OPATimeout)
	v.SetDefault("zap_config", defaults.ZAPConfig)
	v.SetDefault("nuclei_templates", defaults.NucleiTemplates)
	v.SetDefault("tuning_limit", defaults.TuningLimit)
	v.SetDefault("surface_limit", defaults.SurfaceLimit)
	v.SetDefault("regression_threshold", defaults.RegressionThreshold)
	v.SetDefault("expected_status", defaults.ExpectedStatus)
	v.SetDefault("max_risk", defaults.MaxRisk)
	v.SetDefault("canonical_input", defaults.CanonicalInput)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("debug", defaults.Debug)

	v.SetConfigName("dastgate")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			v.AddConfigPath(filepath.Join(xdgConfig, "dastgate"))
		}
	}

	v.SetEnvPrefix("DASTGATE")
	v.AutomaticEnv()
	// Names the CI workflows already export
	_ = v.BindEnv("opa_binary", "DASTGATE_OPA_BINARY", "OPA_BINARY")
	_ = v.BindEnv("opa_version", "DASTGATE_OPA_VERSION", "OPA_VERSION")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ExpectedStatus = strings.ToUpper(strings.TrimSpace(cfg.ExpectedStatus))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}
	if c.PolicyDir == "" {
		return fmt.Errorf("policy_dir cannot be empty")
	}

	validStatus := map[string]bool{"PASS": true, "WARN": true, "FAIL": true}
	if !validStatus[c.ExpectedStatus] {
		return fmt.Errorf("invalid expected_status: %s (must be PASS, WARN, or FAIL)", c.ExpectedStatus)
	}

	nonNegative := []struct {
		key   string
		value int
	}{
		{"tuning_limit", c.TuningLimit},
		{"surface_limit", c.SurfaceLimit},
		{"regression_threshold", c.RegressionThreshold},
		{"max_risk", c.MaxRisk},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return fmt.Errorf("%s cannot be negative", n.key)
		}
	}

	if c.OPATimeout < 0 {
		return fmt.Errorf("opa_timeout cannot be negative")
	}

	return nil
}

// GetStoragePath returns the absolute path to the storage directory
func (c *Config) GetStoragePath() (string, error) {
	if strings.HasPrefix(c.StorageDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, c.StorageDir[2:]), nil
	}

	absPath, err := filepath.Abs(c.StorageDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// CacheDir returns where a downloaded OPA binary is kept. An empty
// opa_cache_dir means <outputDir>/.opa-cache.
func (c *Config) CacheDir(outputDir string) string {
	if c.OPACacheDir != "" {
		return c.OPACacheDir
	}
	return filepath.Join(outputDir, ".opa-cache")
}

// ConfigPath returns the per-user config file location.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dastgate", FileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, FileName)
	}
	return FileName
}

// WriteConfig merges cfg into the YAML file at path, keeping keys it does
// not know about. The file and its parent directory are created if needed.
func WriteConfig(path string, cfg *Config) error {
	doc := map[string]interface{}{}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(existing, &doc); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("failed to read existing config: %w", err)
	}

	fresh, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(fresh, &values); err != nil {
		return fmt.Errorf("failed to re-read config: %w", err)
	}
	for k, v := range values {
		doc[k] = v
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GenerateSampleConfig generates a sample configuration file content
func GenerateSampleConfig() string {
	return `# dastgate configuration
# Save this file as ./dastgate.yaml, ~/dastgate.yaml or
# $XDG_CONFIG_HOME/dastgate/dastgate.yaml

# Directory for stored evaluations (evaluate --store, history, regression)
storage_dir: .dastgate

# OPA policy bundle and the rule file recorded in evaluations
policy_dir: policies
policy_file: severity-rules.rego

# OPA binary: version to download when not on PATH ("latest" or "0.61.0")
# OPA_BINARY and OPA_VERSION env vars are honoured too
opa_version: latest
# opa_binary: /usr/local/bin/opa
# opa_cache_dir: reports/.opa-cache
opa_query: data.dast.evaluation
opa_download_url: https://openpolicyagent.org/downloads
opa_timeout: 5m

# Files named in tuning suggestions
zap_config: configs/zap-config.conf
nuclei_templates: configs/nuclei-templates.yaml

# Report shaping
tuning_limit: 3
surface_limit: 5

# Regression gate: max allowed risk increase between runs
regression_threshold: 5

# Policy health check against a canonical input
expected_status: PASS
max_risk: 5
canonical_input: policies/canonical-input.json

# Enable verbose output
verbose: false

# Enable debug mode
debug: false
`
}
