package types

// Config represents the overall application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Database    DatabaseConfig    `yaml:"database" json:"database"`
	Enhancement EnhancementConfig `yaml:"enhancement" json:"enhancement"`
	Audio       AudioConfig       `yaml:"audio" json:"audio"`
	Assets      AssetsConfig      `yaml:"assets" json:"assets"`
	Pipeline    PipelineConfig    `yaml:"pipeline" json:"pipeline"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
}

// StorageConfig defines storage adapter settings
type StorageConfig struct {
	Adapter string           `yaml:"adapter" json:"adapter"` // "local" or "s3"
	Bucket  string           `yaml:"bucket" json:"bucket"`
	Local   LocalStorageOpts `yaml:"local" json:"local"`
	S3      S3StorageOpts    `yaml:"s3" json:"s3"`
}

// LocalStorageOpts configures the local filesystem adapter
type LocalStorageOpts struct {
	BasePath string `yaml:"base_path" json:"base_path"`
	// PublicBaseURL is prepended to object paths when building public URLs,
	// e.g. "http://localhost:8080/files".
	PublicBaseURL string `yaml:"public_base_url" json:"public_base_url"`
}

// S3StorageOpts configures the S3-compatible adapter
type S3StorageOpts struct {
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl" json:"use_ssl"`
	PublicBaseURL   string `yaml:"public_base_url" json:"public_base_url"`
}

// DatabaseConfig configures the episode record store
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"` // SQLite database file
}

// EnhancementConfig configures the remote audio enhancement service
type EnhancementConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	APIKey       string `yaml:"api_key" json:"api_key"`
	APISecret    string `yaml:"api_secret" json:"api_secret"`
	PollInterval int    `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	PollAttempts int    `yaml:"poll_attempts" json:"poll_attempts"`
	HTTPTimeout  int    `yaml:"http_timeout_seconds" json:"http_timeout_seconds"`
}

// AudioConfig holds the mixing parameters for episode composition.
// Everything lives here rather than in package constants so timing and
// volume are overridable per deployment and in tests.
type AudioConfig struct {
	IntroDurationMs int     `yaml:"intro_duration_ms" json:"intro_duration_ms"`
	OutroDurationMs int     `yaml:"outro_duration_ms" json:"outro_duration_ms"`
	FadeInMs        int     `yaml:"fade_in_ms" json:"fade_in_ms"`
	FadeOutMs       int     `yaml:"fade_out_ms" json:"fade_out_ms"`
	MusicVolumeDb   float64 `yaml:"music_volume_db" json:"music_volume_db"`
	SampleRate      int     `yaml:"sample_rate" json:"sample_rate"`
}

// AssetsConfig names the music assets used during composition
type AssetsConfig struct {
	MusicBucket       string `yaml:"music_bucket" json:"music_bucket"`
	IntroMusic        string `yaml:"intro_music" json:"intro_music"`
	OutroMusic        string `yaml:"outro_music" json:"outro_music"`
	DefaultBackground string `yaml:"default_background" json:"default_background"`
}

// PipelineConfig holds pipeline-level settings
type PipelineConfig struct {
	MaxRetries     int `yaml:"max_retries" json:"max_retries"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" json:"retry_backoff_ms"`
	FetchTimeout   int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`
}
