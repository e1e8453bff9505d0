package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Processing.MinContentLength != 50 {
		t.Errorf("MinContentLength = %d, want 50", cfg.Processing.MinContentLength)
	}
	if cfg.Processing.MaxSummaryLength != 200 {
		t.Errorf("MaxSummaryLength = %d, want 200", cfg.Processing.MaxSummaryLength)
	}
	if cfg.Processing.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.Processing.BatchSize)
	}
	if cfg.QualityControl.MinQualityScore != 3.0 {
		t.Errorf("MinQualityScore = %g, want 3.0", cfg.QualityControl.MinQualityScore)
	}
	if cfg.QualityControl.DuplicateThreshold != 0.85 {
		t.Errorf("DuplicateThreshold = %g, want 0.85", cfg.QualityControl.DuplicateThreshold)
	}
	if cfg.QualityControl.MaxContentLength != 1_000_000 {
		t.Errorf("MaxContentLength = %d, want 1000000", cfg.QualityControl.MaxContentLength)
	}
}

func TestLoadFile_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
file_system:
  enabled: true
  scan_paths: ["/data/notes"]
  max_file_size: 1048576
processing:
  batch_size: 25
quality_control:
  min_quality_score: 5.5
unknown_section:
  whatever: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.FileSystem.ScanPaths) != 1 || cfg.FileSystem.ScanPaths[0] != "/data/notes" {
		t.Errorf("ScanPaths = %v, want [/data/notes]", cfg.FileSystem.ScanPaths)
	}
	if cfg.FileSystem.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, want 1048576", cfg.FileSystem.MaxFileSize)
	}
	if cfg.Processing.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.Processing.BatchSize)
	}
	if cfg.QualityControl.MinQualityScore != 5.5 {
		t.Errorf("MinQualityScore = %g, want 5.5", cfg.QualityControl.MinQualityScore)
	}
	// Untouched sections keep defaults.
	if cfg.Processing.MaxSummaryLength != 200 {
		t.Errorf("MaxSummaryLength = %d, want default 200", cfg.Processing.MaxSummaryLength)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("GLEANER_PORT", "7777")
	t.Setenv("GLEANER_TOKEN", "secret")
	t.Setenv("GLEANER_MIN_QUALITY_SCORE", "4.2")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want 7777", cfg.Server.Port)
	}
	if cfg.Server.Token != "secret" {
		t.Errorf("Token = %q, want secret", cfg.Server.Token)
	}
	if cfg.QualityControl.MinQualityScore != 4.2 {
		t.Errorf("MinQualityScore = %g, want 4.2", cfg.QualityControl.MinQualityScore)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() error = nil, want parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = -1 }, true},
		{"zero batch size", func(c *Config) { c.Processing.BatchSize = 0 }, true},
		{"threshold out of range", func(c *Config) { c.QualityControl.DuplicateThreshold = 1.5 }, true},
		{"min score out of range", func(c *Config) { c.QualityControl.MinQualityScore = 11 }, true},
		{"min length above max", func(c *Config) {
			c.QualityControl.MinContentLength = 100
			c.QualityControl.MaxContentLength = 50
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
