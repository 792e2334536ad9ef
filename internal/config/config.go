// Package config loads and validates fathom's configuration from
// .fathom/config.json, with optional vocabulary overrides from
// .fathom/vocab.toml.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete fathom configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RootPath string `json:"rootPath" mapstructure:"rootPath"`

	Analysis   AnalysisConfig   `json:"analysis" mapstructure:"analysis"`
	Thresholds ThresholdsConfig `json:"thresholds" mapstructure:"thresholds"`
	Snapshot   SnapshotConfig   `json:"snapshot" mapstructure:"snapshot"`
	Watch      WatchConfig      `json:"watch" mapstructure:"watch"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// AnalysisConfig controls what gets analyzed and how hard.
type AnalysisConfig struct {
	Exclude                []string `json:"exclude" mapstructure:"exclude"`
	MaxDepth               int      `json:"maxDepth" mapstructure:"maxDepth"`
	BatchSize              int      `json:"batchSize" mapstructure:"batchSize"`
	MemoryLimitBytes       int64    `json:"memoryLimitBytes" mapstructure:"memoryLimitBytes"`
	Workers                int      `json:"workers" mapstructure:"workers"`
	MaxFileSizeBytes       int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
	SemanticAnalysis       bool     `json:"semanticAnalysis" mapstructure:"semanticAnalysis"`
	IncludeAsyncFlows      bool     `json:"includeAsyncFlows" mapstructure:"includeAsyncFlows"`
	IncludeConditionalFlow bool     `json:"includeConditionalFlows" mapstructure:"includeConditionalFlows"`
	TargetFiles            []string `json:"targetFiles,omitempty" mapstructure:"targetFiles"`
	AnalyzersToRun         []string `json:"analyzersToRun,omitempty" mapstructure:"analyzersToRun"`
}

// ThresholdsConfig collects every tunable evidence gate. All values live in
// (0, 1].
type ThresholdsConfig struct {
	// NamingDominance is the population share a casing convention needs
	// before it counts as a naming pattern.
	NamingDominance float64 `json:"namingDominance" mapstructure:"namingDominance"`
	// CoherenceGate is the minimum concept coherence for unit formation.
	CoherenceGate float64 `json:"coherenceGate" mapstructure:"coherenceGate"`
	// ClusterMinSimilarity stops hierarchical merging below this average.
	ClusterMinSimilarity float64 `json:"clusterMinSimilarity" mapstructure:"clusterMinSimilarity"`
	// ClusterSimilarityFloor is the density-neighborhood admission floor.
	ClusterSimilarityFloor float64 `json:"clusterSimilarityFloor" mapstructure:"clusterSimilarityFloor"`
	// ConceptLinkMinJaccard gates shared-element concept links.
	ConceptLinkMinJaccard float64 `json:"conceptLinkMinJaccard" mapstructure:"conceptLinkMinJaccard"`
	// NameLinkMinJaccard gates name-similarity concept links.
	NameLinkMinJaccard float64 `json:"nameLinkMinJaccard" mapstructure:"nameLinkMinJaccard"`
	// CouplingMinDensity is the intra-group relationship density a
	// tightly-coupled unit must keep while growing.
	CouplingMinDensity float64 `json:"couplingMinDensity" mapstructure:"couplingMinDensity"`
}

// SnapshotConfig controls understanding persistence.
type SnapshotConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// WatchConfig controls watch mode. Enabled makes `fathom refresh` keep
// watching without the --watch flag.
type WatchConfig struct {
	Enabled        bool `json:"enabled" mapstructure:"enabled"`
	PollIntervalMs int  `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DebounceMs     int  `json:"debounceMs" mapstructure:"debounceMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RootPath: ".",
		Analysis: AnalysisConfig{
			Exclude:                []string{},
			MaxDepth:               0,
			BatchSize:              64,
			MemoryLimitBytes:       512 * 1024 * 1024,
			Workers:                0, // 0 means derive from CPU count
			MaxFileSizeBytes:       1000000,
			SemanticAnalysis:       true,
			IncludeAsyncFlows:      true,
			IncludeConditionalFlow: true,
		},
		Thresholds: ThresholdsConfig{
			NamingDominance:        0.6,
			CoherenceGate:          0.5,
			ClusterMinSimilarity:   0.4,
			ClusterSimilarityFloor: 0.5,
			ConceptLinkMinJaccard:  0.2,
			NameLinkMinJaccard:     0.3,
			CouplingMinDensity:     0.3,
		},
		Snapshot: SnapshotConfig{
			Dir:      ".fathom",
			Compress: true,
		},
		Watch: WatchConfig{
			PollIntervalMs: 2000,
			DebounceMs:     5000,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .fathom/config.json
func LoadConfig(rootPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("rootPath", ".")

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(rootPath, ".fathom"))

	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.RootPath = rootPath
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.RootPath == "." || cfg.RootPath == "" {
		cfg.RootPath = rootPath
	}

	return cfg, nil
}

// Save writes the configuration to .fathom/config.json
func (c *Config) Save(rootPath string) error {
	dir := filepath.Join(rootPath, ".fathom")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Analysis.BatchSize < 0 {
		return &ConfigError{Field: "analysis.batchSize", Message: "must not be negative"}
	}
	if c.Analysis.Workers < 0 {
		return &ConfigError{Field: "analysis.workers", Message: "must not be negative"}
	}
	if c.Analysis.MemoryLimitBytes < 0 {
		return &ConfigError{Field: "analysis.memoryLimitBytes", Message: "must not be negative"}
	}

	gates := map[string]float64{
		"thresholds.namingDominance":        c.Thresholds.NamingDominance,
		"thresholds.coherenceGate":          c.Thresholds.CoherenceGate,
		"thresholds.clusterMinSimilarity":   c.Thresholds.ClusterMinSimilarity,
		"thresholds.clusterSimilarityFloor": c.Thresholds.ClusterSimilarityFloor,
		"thresholds.conceptLinkMinJaccard":  c.Thresholds.ConceptLinkMinJaccard,
		"thresholds.nameLinkMinJaccard":     c.Thresholds.NameLinkMinJaccard,
		"thresholds.couplingMinDensity":     c.Thresholds.CouplingMinDensity,
	}
	for field, val := range gates {
		if val <= 0 || val > 1 {
			return &ConfigError{Field: field, Message: "must be in (0, 1]"}
		}
	}

	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
