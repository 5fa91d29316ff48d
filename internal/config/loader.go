package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"podpress/pkg/types"
)

// Load reads and parses the configuration file
// It also supports environment variable overrides with PP_ prefix
func Load(configPath string) (*types.Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	cfg := GetDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func Validate(cfg *types.Config) error {
	// Validate server config
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	// Validate storage adapter
	if cfg.Storage.Adapter != "local" && cfg.Storage.Adapter != "s3" {
		return fmt.Errorf("invalid storage adapter: %s (must be 'local' or 's3')", cfg.Storage.Adapter)
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}

	if cfg.Storage.Adapter == "local" {
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("local storage base_path is required")
		}
		// Ensure base path is absolute
		if !filepath.IsAbs(cfg.Storage.Local.BasePath) {
			return fmt.Errorf("local storage base_path must be absolute: %s", cfg.Storage.Local.BasePath)
		}
	}

	if cfg.Storage.Adapter == "s3" {
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region is required")
		}
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if cfg.Enhancement.Enabled {
		if cfg.Enhancement.Endpoint == "" {
			return fmt.Errorf("enhancement endpoint is required when enhancement is enabled")
		}
		if cfg.Enhancement.APIKey == "" || cfg.Enhancement.APISecret == "" {
			return fmt.Errorf("enhancement api_key and api_secret are required when enhancement is enabled")
		}
	}

	// Validate audio timing
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate must be positive")
	}
	if cfg.Audio.IntroDurationMs < 0 || cfg.Audio.OutroDurationMs < 0 {
		return fmt.Errorf("audio durations must be non-negative")
	}
	if cfg.Audio.FadeOutMs > cfg.Audio.IntroDurationMs {
		return fmt.Errorf("fade_out_ms (%d) cannot exceed intro_duration_ms (%d)",
			cfg.Audio.FadeOutMs, cfg.Audio.IntroDurationMs)
	}
	if cfg.Audio.FadeInMs > cfg.Audio.OutroDurationMs {
		return fmt.Errorf("fade_in_ms (%d) cannot exceed outro_duration_ms (%d)",
			cfg.Audio.FadeInMs, cfg.Audio.OutroDurationMs)
	}

	if cfg.Assets.DefaultBackground == "" {
		return fmt.Errorf("assets default_background is required")
	}

	if cfg.Pipeline.MaxRetries < 0 {
		cfg.Pipeline.MaxRetries = 3 // default
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
// Environment variables should be prefixed with PP_ (PodPress)
func applyEnvOverrides(cfg *types.Config) {
	// Server overrides
	if val := os.Getenv("PP_SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("PP_SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.Server.Port)
	}

	// Storage overrides
	if val := os.Getenv("PP_STORAGE_ADAPTER"); val != "" {
		cfg.Storage.Adapter = val
	}
	if val := os.Getenv("PP_STORAGE_BUCKET"); val != "" {
		cfg.Storage.Bucket = val
	}
	if val := os.Getenv("PP_STORAGE_LOCAL_BASE_PATH"); val != "" {
		cfg.Storage.Local.BasePath = val
	}
	if val := os.Getenv("PP_STORAGE_S3_REGION"); val != "" {
		cfg.Storage.S3.Region = val
	}
	if val := os.Getenv("PP_STORAGE_S3_ENDPOINT"); val != "" {
		cfg.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("PP_STORAGE_S3_ACCESS_KEY_ID"); val != "" {
		cfg.Storage.S3.AccessKeyID = val
	}
	if val := os.Getenv("PP_STORAGE_S3_SECRET_ACCESS_KEY"); val != "" {
		cfg.Storage.S3.SecretAccessKey = val
	}

	// Database overrides
	if val := os.Getenv("PP_DATABASE_PATH"); val != "" {
		cfg.Database.Path = val
	}

	// Enhancement service overrides
	if val := os.Getenv("PP_ENHANCEMENT_ENDPOINT"); val != "" {
		cfg.Enhancement.Endpoint = val
	}
	if val := os.Getenv("PP_ENHANCEMENT_API_KEY"); val != "" {
		cfg.Enhancement.APIKey = val
	}
	if val := os.Getenv("PP_ENHANCEMENT_API_SECRET"); val != "" {
		cfg.Enhancement.APISecret = val
	}
}

// GetDefault returns a default configuration. Audio timing defaults
// match the standard episode layout: a 50s intro bed with a 3s fade
// out, a 30s outro bed with a 1s fade in, music 10dB under narration.
func GetDefault() *types.Config {
	return &types.Config{
		Server: types.ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
		Storage: types.StorageConfig{
			Adapter: "local",
			Bucket:  "podcast_audio",
			Local: types.LocalStorageOpts{
				BasePath:      "/var/lib/podpress/storage",
				PublicBaseURL: "http://localhost:8080/files",
			},
		},
		Database: types.DatabaseConfig{
			Path: "/var/lib/podpress/episodes.db",
		},
		Enhancement: types.EnhancementConfig{
			Enabled:      false,
			PollInterval: 5,
			PollAttempts: 60,
			HTTPTimeout:  30,
		},
		Audio: types.AudioConfig{
			IntroDurationMs: 50000,
			OutroDurationMs: 30000,
			FadeInMs:        1000,
			FadeOutMs:       3000,
			MusicVolumeDb:   -10,
			SampleRate:      44100,
		},
		Assets: types.AssetsConfig{
			MusicBucket:       "podcast_music",
			IntroMusic:        "intro_theme.mp3",
			OutroMusic:        "outro_theme.mp3",
			DefaultBackground: "default_background.mp3",
		},
		Pipeline: types.PipelineConfig{
			MaxRetries:     3,
			RetryBackoffMs: 1000,
			FetchTimeout:   60,
		},
	}
}
