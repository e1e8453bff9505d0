package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	FileSystem     FileSystemConfig     `yaml:"file_system"`
	CloudDrives    CloudDrivesConfig    `yaml:"cloud_drives"`
	Applications   ApplicationsConfig   `yaml:"applications"`
	DigitalLibrary DigitalLibraryConfig `yaml:"digital_library"`
	Processing     ProcessingConfig     `yaml:"processing"`
	QualityControl QualityControlConfig `yaml:"quality_control"`
	Storage        StorageConfig        `yaml:"storage"`
	Semantic       SemanticConfig       `yaml:"semantic"`
}

type ServerConfig struct {
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
}

type FileSystemConfig struct {
	Enabled          bool     `yaml:"enabled"`
	ScanPaths        []string `yaml:"scan_paths"`
	ExcludePatterns  []string `yaml:"exclude_patterns"`
	SupportedFormats []string `yaml:"supported_formats"`
	MaxFileSize      int64    `yaml:"max_file_size"`
}

type CloudDrivesConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SyncDirs []string `yaml:"sync_dirs"`
}

type ApplicationsConfig struct {
	Enabled       bool     `yaml:"enabled"`
	NotesDBPaths  []string `yaml:"notes_db_paths"`
	BookmarkPaths []string `yaml:"bookmark_paths"`
	VaultPaths    []string `yaml:"vault_paths"`
}

type DigitalLibraryConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIBaseURL string   `yaml:"api_base_url"`
	Queries    []string `yaml:"queries"`
	MaxBooks   int      `yaml:"max_books"`
}

type ProcessingConfig struct {
	MinContentLength   int  `yaml:"min_content_length"`
	MaxSummaryLength   int  `yaml:"max_summary_length"`
	BatchSize          int  `yaml:"batch_size"`
	ParallelProcessing bool `yaml:"parallel_processing"`
}

type QualityControlConfig struct {
	MinQualityScore    float64 `yaml:"min_quality_score"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	MinContentLength   int     `yaml:"min_content_length"`
	MaxContentLength   int     `yaml:"max_content_length"`
}

type StorageConfig struct {
	StoragePath   string `yaml:"storage_path"`
	BackupEnabled bool   `yaml:"backup_enabled"`
}

type SemanticConfig struct {
	Enabled        bool   `yaml:"enabled"`
	OllamaURL      string `yaml:"ollama_url"`
	EmbedModel     string `yaml:"embed_model"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		FileSystem: FileSystemConfig{
			Enabled:          true,
			ScanPaths:        []string{filepath.Join(home, "Documents")},
			ExcludePatterns:  []string{".git", "node_modules", "__pycache__", ".cache"},
			SupportedFormats: []string{".txt", ".md", ".pdf", ".html", ".htm", ".json", ".csv"},
			MaxFileSize:      50 << 20,
		},
		CloudDrives: CloudDrivesConfig{
			Enabled: false,
		},
		Applications: ApplicationsConfig{
			Enabled: false,
		},
		DigitalLibrary: DigitalLibraryConfig{
			Enabled:  false,
			MaxBooks: 20,
		},
		Processing: ProcessingConfig{
			MinContentLength:   50,
			MaxSummaryLength:   200,
			BatchSize:          10,
			ParallelProcessing: true,
		},
		QualityControl: QualityControlConfig{
			MinQualityScore:    3.0,
			DuplicateThreshold: 0.85,
			MinContentLength:   50,
			MaxContentLength:   1_000_000,
		},
		Storage: StorageConfig{
			StoragePath: defaultDataDir(),
		},
		Semantic: SemanticConfig{
			Enabled:        false,
			OllamaURL:      "http://localhost:11434",
			EmbedModel:     "nomic-embed-text",
			PollIntervalMS: 500,
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gleaner")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./gleaner-data"
	}
	return filepath.Join(home, ".local", "share", "gleaner")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "gleaner", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "gleaner", "config.yaml")
}

// Load reads configuration from the YAML file at DefaultPath (if present)
// and applies GLEANER_* environment variable overrides. A missing config
// file is not an error: defaults apply. Unknown YAML keys are ignored.
func Load() (Config, error) {
	return LoadFile(DefaultPath())
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GLEANER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GLEANER_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("GLEANER_STORAGE_PATH"); v != "" {
		cfg.Storage.StoragePath = v
	}
	if v := os.Getenv("GLEANER_SCAN_PATHS"); v != "" {
		parts := strings.Split(v, string(os.PathListSeparator))
		paths := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.FileSystem.ScanPaths = paths
	}
	if v := os.Getenv("GLEANER_MIN_QUALITY_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QualityControl.MinQualityScore = f
		}
	}
}

// Validate reports whether cfg is usable. LoadFile already validates; this
// is for callers that mutate a Config at runtime.
func Validate(cfg Config) error {
	return validate(cfg)
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Processing.BatchSize <= 0 {
		return fmt.Errorf("processing.batch_size must be positive, got %d", cfg.Processing.BatchSize)
	}
	if cfg.QualityControl.DuplicateThreshold < 0 || cfg.QualityControl.DuplicateThreshold > 1 {
		return fmt.Errorf("quality_control.duplicate_threshold must be in [0,1], got %g", cfg.QualityControl.DuplicateThreshold)
	}
	if cfg.QualityControl.MinQualityScore < 0 || cfg.QualityControl.MinQualityScore > 10 {
		return fmt.Errorf("quality_control.min_quality_score must be in [0,10], got %g", cfg.QualityControl.MinQualityScore)
	}
	if cfg.QualityControl.MinContentLength > cfg.QualityControl.MaxContentLength {
		return fmt.Errorf("quality_control.min_content_length %d exceeds max_content_length %d",
			cfg.QualityControl.MinContentLength, cfg.QualityControl.MaxContentLength)
	}
	return nil
}
