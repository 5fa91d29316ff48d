package config

import (
	"os"
	"path/filepath"
	"testing"

	"podpress/pkg/types"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 9090
  read_timeout: 10
  write_timeout: 10

storage:
  adapter: "local"
  bucket: "podcast_audio"
  local:
    base_path: "/tmp/test"
    public_base_url: "http://localhost:9090/files"

database:
  path: "/tmp/test/episodes.db"

audio:
  intro_duration_ms: 40000
  music_volume_db: -12
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Local.BasePath != "/tmp/test" {
		t.Errorf("Expected base_path '/tmp/test', got '%s'", cfg.Storage.Local.BasePath)
	}
	if cfg.Audio.IntroDurationMs != 40000 {
		t.Errorf("Expected intro 40000ms, got %d", cfg.Audio.IntroDurationMs)
	}
	if cfg.Audio.MusicVolumeDb != -12 {
		t.Errorf("Expected music volume -12dB, got %v", cfg.Audio.MusicVolumeDb)
	}
	// Unset fields keep their defaults
	if cfg.Audio.OutroDurationMs != 30000 {
		t.Errorf("Expected default outro 30000ms, got %d", cfg.Audio.OutroDurationMs)
	}
	if cfg.Assets.DefaultBackground != "default_background.mp3" {
		t.Errorf("Expected default background asset, got '%s'", cfg.Assets.DefaultBackground)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*types.Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *types.Config) {},
			wantErr: false,
		},
		{
			name: "invalid port",
			modify: func(c *types.Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid storage adapter",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "invalid"
			},
			wantErr: true,
		},
		{
			name: "missing local base path",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "local"
				c.Storage.Local.BasePath = ""
			},
			wantErr: true,
		},
		{
			name: "missing bucket",
			modify: func(c *types.Config) {
				c.Storage.Bucket = ""
			},
			wantErr: true,
		},
		{
			name: "missing s3 region",
			modify: func(c *types.Config) {
				c.Storage.Adapter = "s3"
				c.Storage.S3.Region = ""
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			modify: func(c *types.Config) {
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name: "enhancement enabled without credentials",
			modify: func(c *types.Config) {
				c.Enhancement.Enabled = true
				c.Enhancement.Endpoint = "https://api.example.com"
			},
			wantErr: true,
		},
		{
			name: "enhancement enabled with credentials",
			modify: func(c *types.Config) {
				c.Enhancement.Enabled = true
				c.Enhancement.Endpoint = "https://api.example.com"
				c.Enhancement.APIKey = "key"
				c.Enhancement.APISecret = "secret"
			},
			wantErr: false,
		},
		{
			name: "fade out longer than intro",
			modify: func(c *types.Config) {
				c.Audio.IntroDurationMs = 2000
				c.Audio.FadeOutMs = 3000
			},
			wantErr: true,
		},
		{
			name: "zero sample rate",
			modify: func(c *types.Config) {
				c.Audio.SampleRate = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefault()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test.yaml")

	configContent := `
server:
  host: "localhost"
  port: 8080
storage:
  adapter: "local"
  bucket: "podcast_audio"
  local:
    base_path: "/tmp/test"
database:
  path: "/tmp/test/episodes.db"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Set environment variables
	os.Setenv("PP_SERVER_PORT", "9999")
	os.Setenv("PP_STORAGE_LOCAL_BASE_PATH", "/tmp/override")
	os.Setenv("PP_ENHANCEMENT_API_KEY", "env-key")
	defer func() {
		os.Unsetenv("PP_SERVER_PORT")
		os.Unsetenv("PP_STORAGE_LOCAL_BASE_PATH")
		os.Unsetenv("PP_ENHANCEMENT_API_KEY")
	}()

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment overrides were applied
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env override, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Local.BasePath != "/tmp/override" {
		t.Errorf("Expected base_path '/tmp/override' from env override, got '%s'", cfg.Storage.Local.BasePath)
	}
	if cfg.Enhancement.APIKey != "env-key" {
		t.Errorf("Expected enhancement api key from env override, got '%s'", cfg.Enhancement.APIKey)
	}
}

func TestGetDefault(t *testing.T) {
	cfg := GetDefault()
	if cfg == nil {
		t.Fatal("GetDefault() returned nil")
	}
	if cfg.Server.Port <= 0 {
		t.Error("Default config has invalid port")
	}
	if cfg.Storage.Adapter == "" {
		t.Error("Default config has empty storage adapter")
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("Default sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}
