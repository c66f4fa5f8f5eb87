package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray .env is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 30, cfg.ShutdownTimeoutSeconds)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "./data/tmp", cfg.TempDir)
	assert.Equal(t, "./data/output", cfg.LocalStorageDir)
	assert.Equal(t, 20, cfg.ChunkSeconds)
	assert.Equal(t, "yt-dlp", cfg.YTDLPPath)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 300, cfg.YTTimeoutSeconds)
	assert.Equal(t, 8, cfg.YTRetries)
	assert.Equal(t, 30, cfg.YTSocketTimeout)
	assert.True(t, cfg.YTForceIPv4)
	assert.True(t, cfg.YTNoPlaylist)
	assert.Equal(t, 30, cfg.WebhookTimeoutSeconds)
	assert.Equal(t, "audio_chunks", cfg.S3KeyPrefix)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CustomValues(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("CHUNK_SECONDS", "30")
	t.Setenv("YT_RETRIES", "3")
	t.Setenv("YT_FORCE_IPV4", "false")
	t.Setenv("YT_EXTRA_ARGS", "--cookies /tmp/c.txt")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("WEBHOOK_AUTH_TOKEN", "hook-secret")
	t.Setenv("DEFAULT_WEBHOOK_URL", "https://example.com/hook")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "90")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, 30, cfg.ChunkSeconds)
	assert.Equal(t, 3, cfg.YTRetries)
	assert.False(t, cfg.YTForceIPv4)
	assert.Equal(t, "--cookies /tmp/c.txt", cfg.YTExtraArgs)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "hook-secret", cfg.WebhookAuthToken)
	assert.Equal(t, "https://example.com/hook", cfg.DefaultWebhookURL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90, cfg.ShutdownTimeoutSeconds)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CHUNK_SECONDS=45\nS3_KEY_PREFIX=from_dotenv\n"), 0o600))
	t.Chdir(dir)
	// Real environment wins over .env.
	t.Setenv("CHUNK_SECONDS", "25")
	// godotenv sets variables it loads; make sure the test restores them.
	t.Setenv("S3_KEY_PREFIX", "")
	require.NoError(t, os.Unsetenv("S3_KEY_PREFIX"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.ChunkSeconds)
	assert.Equal(t, "from_dotenv", cfg.S3KeyPrefix)
}

func TestLoad_InvalidInteger(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "not-a-number")

	// go-envconfig returns an error when parsing fails
	_, err := Load()
	require.Error(t, err)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{YTTimeoutSeconds: 300, WebhookTimeoutSeconds: 30}

	assert.Equal(t, 5*time.Minute, cfg.YTTimeout())
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout())
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout())

	cfg.ShutdownTimeoutSeconds = 45
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8081,
		TempDir:            "/tmp/test",
		ChunkSeconds:       20,
		WebhookAuthToken:   "hook-secret",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8081")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "hook-secret")
	assert.NotContains(t, str, "AKIDEXAMPLE")
	assert.NotContains(t, str, "secret-key")
	assert.Contains(t, str, "****")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		isTerminal bool
		wantJSON   bool
	}{
		{"json", "json", true, true},
		{"text", "text", false, false},
		{"default is text", "", false, false},
		{"auto on terminal", "auto", true, false},
		{"auto when piped", "auto", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := &Config{LogFormat: tt.format, LogLevel: "info"}

			cfg.newLogger(&buf, tt.isTerminal).Info("test message")

			assert.Contains(t, buf.String(), "test message")
			assert.Equal(t, tt.wantJSON, json.Valid(bytes.TrimSpace(buf.Bytes())))
		})
	}
}

func TestConfig_NewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogFormat: "text", LogLevel: "warn"}
	logger := cfg.newLogger(&buf, false)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	require.NotNil(t, cfg.NewLogger())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{ChunkSeconds: 20, YTTimeoutSeconds: 300, WebhookTimeoutSeconds: 30}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("chunk seconds bounds", func(t *testing.T) {
		for _, n := range []int{4, 121, 0} {
			cfg := valid()
			cfg.ChunkSeconds = n
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidChunkSeconds, "chunk seconds %d", n)
		}
		for _, n := range []int{5, 120} {
			cfg := valid()
			cfg.ChunkSeconds = n
			assert.NoError(t, cfg.Validate(), "chunk seconds %d", n)
		}
	})

	t.Run("non-positive yt timeout", func(t *testing.T) {
		cfg := valid()
		cfg.YTTimeoutSeconds = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidYTTimeout)
	})

	t.Run("non-positive webhook timeout", func(t *testing.T) {
		cfg := valid()
		cfg.WebhookTimeoutSeconds = -1
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidWebhookTimeout)
	})

	t.Run("bucket without region", func(t *testing.T) {
		cfg := valid()
		cfg.S3Bucket = "bucket"
		assert.ErrorIs(t, cfg.Validate(), ErrS3RegionRequired)
	})
}
