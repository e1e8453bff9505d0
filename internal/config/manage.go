package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

type keySpec struct {
	key     string
	env     string
	secret  bool
	extract func(Config) any
}

var specs = []keySpec{
	{key: "server.port", env: "GLEANER_PORT", extract: func(c Config) any { return c.Server.Port }},
	{key: "server.token", env: "GLEANER_TOKEN", secret: true, extract: func(c Config) any { return c.Server.Token }},
	{key: "file_system.enabled", extract: func(c Config) any { return c.FileSystem.Enabled }},
	{key: "file_system.scan_paths", env: "GLEANER_SCAN_PATHS", extract: func(c Config) any { return strings.Join(c.FileSystem.ScanPaths, ",") }},
	{key: "file_system.max_file_size", extract: func(c Config) any { return c.FileSystem.MaxFileSize }},
	{key: "cloud_drives.enabled", extract: func(c Config) any { return c.CloudDrives.Enabled }},
	{key: "applications.enabled", extract: func(c Config) any { return c.Applications.Enabled }},
	{key: "digital_library.enabled", extract: func(c Config) any { return c.DigitalLibrary.Enabled }},
	{key: "processing.min_content_length", extract: func(c Config) any { return c.Processing.MinContentLength }},
	{key: "processing.batch_size", extract: func(c Config) any { return c.Processing.BatchSize }},
	{key: "quality_control.min_quality_score", env: "GLEANER_MIN_QUALITY_SCORE", extract: func(c Config) any { return c.QualityControl.MinQualityScore }},
	{key: "quality_control.duplicate_threshold", extract: func(c Config) any { return c.QualityControl.DuplicateThreshold }},
	{key: "storage.storage_path", env: "GLEANER_STORAGE_PATH", extract: func(c Config) any { return c.Storage.StoragePath }},
	{key: "semantic.enabled", extract: func(c Config) any { return c.Semantic.Enabled }},
	{key: "semantic.ollama_url", extract: func(c Config) any { return c.Semantic.OllamaURL }},
	{key: "semantic.embed_model", extract: func(c Config) any { return c.Semantic.EmbedModel }},
}

// ShowAll returns all non-secret config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

// SetKey writes one dotted config key into the YAML config file at
// DefaultPath, creating the file if needed. The resulting config is
// validated before the file is written.
func SetKey(key, value string) error {
	return SetKeyFile(DefaultPath(), key, value)
}

// SetKeyFile is SetKey with an explicit config file path.
func SetKeyFile(path, key, value string) error {
	spec, err := findSpec(key)
	if err != nil {
		return err
	}
	if spec.secret {
		return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, spec.env)
	}

	doc := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	setDotted(doc, key, parseValue(value))

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// Round-trip through LoadFile semantics to catch invalid values before
	// anything lands on disk.
	cfg := defaults()
	if err := yaml.Unmarshal(out, &cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := validate(cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func findSpec(key string) (keySpec, error) {
	for _, s := range specs {
		if s.key == key {
			return s, nil
		}
	}
	return keySpec{}, fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(ValidKeys(), ", "))
}

func setDotted(doc map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := doc[part].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			doc[part] = child
		}
		doc = child
	}
	doc[parts[len(parts)-1]] = value
}

// parseValue lets YAML decide the scalar type, so "true", "5", and "4.5"
// come out as bool, int, and float.
func parseValue(value string) interface{} {
	var v interface{}
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return value
	}
	// Lists like "a,b,c" stay comma-joined strings unless the caller writes
	// YAML list syntax; split them for the common case.
	if s, ok := v.(string); ok && strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		list := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list
	}
	return v
}
