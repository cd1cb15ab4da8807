package config

import (
	"testing"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg == nil {
		t.Fatal("NewDefaultConfig returned nil")
	}
	if cfg.Resources.NumCPUs != DefaultNumCPUs {
		t.Errorf("expected num_cpus %d, got %d", DefaultNumCPUs, cfg.Resources.NumCPUs)
	}
	if cfg.Resources.MaxCacheItr != DefaultMaxCacheItr {
		t.Errorf("expected max_cache_itr %d, got %d", DefaultMaxCacheItr, cfg.Resources.MaxCacheItr)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("expected log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("expected log format %q, got %q", DefaultLogFormat, cfg.Logging.Format)
	}
	if cfg.Ingestion.TasksetRoot != DefaultTasksetRoot {
		t.Errorf("expected taskset_root %q, got %q", DefaultTasksetRoot, cfg.Ingestion.TasksetRoot)
	}
	if !cfg.RunLedger.Enabled {
		t.Error("expected run ledger to be enabled by default")
	}
}

func TestConfig_Validate_DefaultIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}

func TestResourcesConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ResourcesConfig
		wantErr bool
	}{
		{"valid", ResourcesConfig{NumCPUs: 4, MaxCacheItr: 11, MaxMemBWItr: 10}, false},
		{"zero cpus invalid", ResourcesConfig{NumCPUs: 0, MaxCacheItr: 11, MaxMemBWItr: 10}, true},
		{"cache below floor invalid", ResourcesConfig{NumCPUs: 4, MaxCacheItr: 1, MaxMemBWItr: 10}, true},
		{"membw below floor invalid", ResourcesConfig{NumCPUs: 4, MaxCacheItr: 11, MaxMemBWItr: 1}, true},
		{"cache too small for core count invalid", ResourcesConfig{NumCPUs: 8, MaxCacheItr: 4, MaxMemBWItr: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIngestionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  IngestionConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  IngestionConfig{TasksetRoot: "a", ProfilesRoot: "b", PhasesRoot: "c", OutputRoot: "d"},
			wantErr: false,
		},
		{
			name:    "missing taskset root",
			config:  IngestionConfig{ProfilesRoot: "b", PhasesRoot: "c", OutputRoot: "d"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunLedgerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RunLedgerConfig
		wantErr bool
	}{
		{"disabled without path is valid", RunLedgerConfig{Enabled: false}, false},
		{"enabled without path is invalid", RunLedgerConfig{Enabled: true}, true},
		{"enabled with path is valid", RunLedgerConfig{Enabled: true, DBPath: "x.db"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{"valid debug level", LoggingConfig{Level: "debug", Format: "json"}, false},
		{"valid info level", LoggingConfig{Level: "info", Format: "text"}, false},
		{"invalid log level", LoggingConfig{Level: "invalid", Format: "json"}, true},
		{"invalid log format", LoggingConfig{Level: "info", Format: "invalid"}, true},
		{"empty values are valid", LoggingConfig{Level: "", Format: ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TracingConfig
		wantErr bool
	}{
		{"disabled is valid", TracingConfig{Enabled: false}, false},
		{
			name:    "enabled stdout exporter is valid",
			config:  TracingConfig{Enabled: true, ExporterType: "stdout", ServiceName: "rasco", SampleRate: 1.0},
			wantErr: false,
		},
		{
			name:    "otlp without endpoint is invalid",
			config:  TracingConfig{Enabled: true, ExporterType: "otlp", ServiceName: "rasco", SampleRate: 1.0},
			wantErr: true,
		},
		{
			name:    "sample rate out of range is invalid",
			config:  TracingConfig{Enabled: true, ExporterType: "stdout", ServiceName: "rasco", SampleRate: 1.5},
			wantErr: true,
		},
		{
			name:    "missing service name is invalid",
			config:  TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 1.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Resources: ResourcesConfig{NumCPUs: 0, MaxCacheItr: 1, MaxMemBWItr: 1},
		Ingestion: IngestionConfig{},
		RunLedger: RunLedgerConfig{Enabled: true},
		Logging:   LoggingConfig{Level: "invalid", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Error("expected validation error, got nil")
	}
}
