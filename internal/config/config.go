// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidChunkSeconds is returned when CHUNK_SECONDS is outside [5, 120].
	ErrInvalidChunkSeconds = errors.New("config: CHUNK_SECONDS must be between 5 and 120")
	// ErrInvalidYTTimeout is returned when YT_TIMEOUT_SECONDS is not positive.
	ErrInvalidYTTimeout = errors.New("config: YT_TIMEOUT_SECONDS must be positive")
	// ErrInvalidWebhookTimeout is returned when WEBHOOK_TIMEOUT_SECONDS is not positive.
	ErrInvalidWebhookTimeout = errors.New("config: WEBHOOK_TIMEOUT_SECONDS must be positive")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Chunk length bounds accepted from configuration and requests.
const (
	MinChunkSeconds = 5
	MaxChunkSeconds = 120
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port                   int      `env:"PORT, default=8081" json:"port"`
	ShutdownTimeoutSeconds int      `env:"SHUTDOWN_TIMEOUT_SECONDS, default=30" json:"shutdown_timeout_seconds"`
	CORSAllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins"`

	// Working directories
	TempDir         string `env:"TEMP_DIR, default=./data/tmp" json:"temp_dir"`
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR, default=./data/output" json:"local_storage_dir"`

	// Processing settings
	ChunkSeconds int `env:"CHUNK_SECONDS, default=20" json:"chunk_seconds"`

	// External tools
	YTDLPPath   string `env:"YT_DLP_PATH, default=yt-dlp" json:"yt_dlp_path"`
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// yt-dlp tuning
	YTTimeoutSeconds int    `env:"YT_TIMEOUT_SECONDS, default=300" json:"yt_timeout_seconds"`
	YTRetries        int    `env:"YT_RETRIES, default=8" json:"yt_retries"`
	YTSocketTimeout  int    `env:"YT_SOCKET_TIMEOUT, default=30" json:"yt_socket_timeout"`
	YTForceIPv4      bool   `env:"YT_FORCE_IPV4, default=true" json:"yt_force_ipv4"`
	YTNoPlaylist     bool   `env:"YT_NO_PLAYLIST, default=true" json:"yt_no_playlist"`
	YTExtraArgs      string `env:"YT_EXTRA_ARGS" json:"yt_extra_args,omitempty"`

	// Webhook settings
	WebhookAuthToken      string `env:"WEBHOOK_AUTH_TOKEN" json:"-"` // Masked in JSON
	DefaultWebhookURL     string `env:"DEFAULT_WEBHOOK_URL" json:"default_webhook_url,omitempty"`
	WebhookTimeoutSeconds int    `env:"WEBHOOK_TIMEOUT_SECONDS, default=30" json:"webhook_timeout_seconds"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX, default=audio_chunks" json:"s3_key_prefix"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json", "text" or "auto"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// YTTimeout returns the per-attempt download timeout.
func (c *Config) YTTimeout() time.Duration {
	return time.Duration(c.YTTimeoutSeconds) * time.Second
}

// WebhookTimeout returns the per-request webhook timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

// DefaultShutdownTimeout bounds graceful shutdown when SHUTDOWN_TIMEOUT_SECONDS
// is not positive.
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownTimeout returns how long the server may spend draining requests and
// in-flight jobs after a stop signal.
func (c *Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return DefaultShutdownTimeout
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory, if present, is loaded first; it never
// overrides variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.ChunkSeconds < MinChunkSeconds || c.ChunkSeconds > MaxChunkSeconds {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSeconds, c.ChunkSeconds)
	}
	if c.YTTimeoutSeconds <= 0 {
		return ErrInvalidYTTimeout
	}
	if c.WebhookTimeoutSeconds <= 0 {
		return ErrInvalidWebhookTimeout
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// "auto" picks text on a terminal and JSON otherwise.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to f instead of stdout.
func (c *Config) NewLoggerTo(f *os.File) *slog.Logger {
	fd := f.Fd()
	return c.newLogger(f, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func (c *Config) newLogger(w io.Writer, isTerminal bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	switch strings.ToLower(c.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "auto":
		if isTerminal {
			handler = slog.NewTextHandler(w, opts)
		} else {
			handler = slog.NewJSONHandler(w, opts)
		}
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, LocalStorageDir: %s, ChunkSeconds: %d, YTRetries: %d, YTTimeoutSeconds: %d, WebhookAuthToken: %s, DefaultWebhookURL: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, AWSSecretAccessKey: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.LocalStorageDir,
		c.ChunkSeconds,
		c.YTRetries,
		c.YTTimeoutSeconds,
		mask(c.WebhookAuthToken),
		c.DefaultWebhookURL,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		mask(c.AWSAccessKeyID),
		mask(c.AWSSecretAccessKey),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides a secret while showing whether it is set.
func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
