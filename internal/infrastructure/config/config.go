// Package config provides configuration structs and utilities for the rasco scheduler.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the root configuration for a rasco scheduling run.
type Config struct {
	Resources     ResourcesConfig     `yaml:"resources"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	RunLedger     RunLedgerConfig     `yaml:"run_ledger"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ResourcesConfig holds the hardware partition ceilings every preprocessing
// and scheduling run is bounded by. NewDefaultConfig fills them from
// DefaultNumCPUs, DefaultMaxCacheItr and DefaultMaxMemBWItr; a config file
// overrides those values.
type ResourcesConfig struct {
	NumCPUs     int `yaml:"num_cpus"`
	MaxCacheItr int `yaml:"max_cache_itr"`
	MaxMemBWItr int `yaml:"max_membw_itr"`
}

// IngestionConfig points at the on-disk layout task sets and WCET/phase
// profiles are read from.
type IngestionConfig struct {
	TasksetRoot  string `yaml:"taskset_root"`
	ProfilesRoot string `yaml:"profiles_root"`
	PhasesRoot   string `yaml:"phases_root"`
	OutputRoot   string `yaml:"output_root"`
}

// RunLedgerConfig holds configuration for the resumable-driver run ledger.
type RunLedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ObservabilityConfig holds configuration for observability features.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`       // Whether tracing is enabled
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"` // OTLP collector endpoint
	SampleRate   float64 `yaml:"sample_rate"`   // Sampling rate (0.0 to 1.0)
	ServiceName  string  `yaml:"service_name"`  // Service name for traces
}

// Default configuration values.
const (
	DefaultNumCPUs     = 4
	DefaultMaxCacheItr = 11
	DefaultMaxMemBWItr = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultTasksetRoot  = "./tasksets"
	DefaultProfilesRoot = "./profiles"
	DefaultPhasesRoot   = "./profiles"
	DefaultOutputRoot   = "./output"

	DefaultRunLedgerEnabled = true
	DefaultRunLedgerDBPath  = "./rasco-run-ledger.db"

	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "rasco"

	DefaultDriverTimeout = 24 * time.Hour
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Resources: ResourcesConfig{
			NumCPUs:     DefaultNumCPUs,
			MaxCacheItr: DefaultMaxCacheItr,
			MaxMemBWItr: DefaultMaxMemBWItr,
		},
		Ingestion: IngestionConfig{
			TasksetRoot:  DefaultTasksetRoot,
			ProfilesRoot: DefaultProfilesRoot,
			PhasesRoot:   DefaultPhasesRoot,
			OutputRoot:   DefaultOutputRoot,
		},
		RunLedger: RunLedgerConfig{
			Enabled: DefaultRunLedgerEnabled,
			DBPath:  DefaultRunLedgerDBPath,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      DefaultTracingEnabled,
				ExporterType: DefaultTracingExporterType,
				SampleRate:   DefaultTracingSampleRate,
				ServiceName:  DefaultTracingServiceName,
			},
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Resources.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resources: %w", err))
	}
	if err := c.Ingestion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingestion: %w", err))
	}
	if err := c.RunLedger.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("run_ledger: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observability: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks if the ResourcesConfig is valid.
func (r *ResourcesConfig) Validate() error {
	var errs []error

	if r.NumCPUs <= 0 {
		errs = append(errs, errors.New("num_cpus must be positive"))
	}
	if r.MaxCacheItr < 2 {
		errs = append(errs, errors.New("max_cache_itr must be at least 2 (every subtask keeps a minimum 2-way floor)"))
	}
	if r.MaxMemBWItr < 2 {
		errs = append(errs, errors.New("max_membw_itr must be at least 2 (every subtask keeps a minimum floor)"))
	}
	if r.NumCPUs > 0 && r.MaxCacheItr < 2*r.NumCPUs {
		errs = append(errs, errors.New("max_cache_itr cannot fit the minimum 2-way-per-core floor across num_cpus cores"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks if the IngestionConfig is valid.
func (i *IngestionConfig) Validate() error {
	var errs []error

	if i.TasksetRoot == "" {
		errs = append(errs, errors.New("taskset_root is required"))
	}
	if i.ProfilesRoot == "" {
		errs = append(errs, errors.New("profiles_root is required"))
	}
	if i.PhasesRoot == "" {
		errs = append(errs, errors.New("phases_root is required"))
	}
	if i.OutputRoot == "" {
		errs = append(errs, errors.New("output_root is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks if the RunLedgerConfig is valid.
func (l *RunLedgerConfig) Validate() error {
	if l.Enabled && l.DBPath == "" {
		return errors.New("db_path is required when run_ledger is enabled")
	}
	return nil
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}
	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks if the ObservabilityConfig is valid.
func (o *ObservabilityConfig) Validate() error {
	if err := o.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
