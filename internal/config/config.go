// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/sequence"
)

// Static errors for configuration validation.
var (
	// ErrInvalid is returned when a loaded value fails validation.
	ErrInvalid = errors.New("config: invalid value")
	// ErrImagesDirRequired is returned when a one-shot render has no IMAGES_DIR.
	ErrImagesDirRequired = errors.New("config: IMAGES_DIR is required")
	// ErrRenderRootRequired is returned when the server has no RENDER_ROOT.
	ErrRenderRootRequired = errors.New("config: RENDER_ROOT is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Encoder settings
	FFmpegPath string `env:"FFMPEG_PATH, default=/usr/bin/ffmpeg" json:"ffmpeg_path" validate:"required"`
	FrameRate  uint32 `env:"FRAME_RATE, default=24" json:"frame_rate" validate:"min=1"`
	Codec      string `env:"CODEC, default=h264" json:"codec" validate:"oneof=prores h264 libx264"`

	// One-shot render settings
	ImagesDir    string `env:"IMAGES_DIR" json:"images_dir,omitempty"`
	OutputDir    string `env:"OUTPUT_DIR" json:"output_dir,omitempty"`
	OutputName   string `env:"OUTPUT_NAME" json:"output_name,omitempty" validate:"omitempty,excludes=/"`
	ManifestPath string `env:"MANIFEST_PATH" json:"manifest_path,omitempty"`

	// Processing settings
	InspectFrames       bool `env:"INSPECT_FRAMES, default=true" json:"inspect_frames"`
	CleanupAfterPublish bool `env:"CLEANUP_AFTER_PUBLISH, default=false" json:"cleanup_after_publish"`

	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// RenderRoot confines the directories HTTP clients may name.
	RenderRoot     string   `env:"RENDER_ROOT" json:"render_root,omitempty"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" json:"cors_allowed_origins,omitempty"`

	// Publishing settings
	PublishDir string `env:"PUBLISH_DIR" json:"publish_dir,omitempty"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith reads configuration from l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Codec = strings.ToLower(cfg.Codec)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalid, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// RenderOptions returns the sequence options for a one-shot render.
func (c *Config) RenderOptions() (sequence.Options, error) {
	if c.ImagesDir == "" {
		return sequence.Options{}, ErrImagesDirRequired
	}
	cd, err := codec.Parse(c.Codec)
	if err != nil {
		return sequence.Options{}, fmt.Errorf("config: %w", err)
	}
	return sequence.Options{
		FFmpegPath: c.FFmpegPath,
		ImagesDir:  c.ImagesDir,
		OutputDir:  c.OutputDir,
		OutputName: c.OutputName,
		FrameRate:  c.FrameRate,
		Codec:      cd,
	}, nil
}

// RenderRootDir returns RENDER_ROOT as an absolute path.
func (c *Config) RenderRootDir() (string, error) {
	if c.RenderRoot == "" {
		return "", ErrRenderRootRequired
	}
	root, err := filepath.Abs(c.RenderRoot)
	if err != nil {
		return "", fmt.Errorf("config: RENDER_ROOT: %w", err)
	}
	return root, nil
}

// NewLogger creates a structured logger writing to standard output.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{FFmpegPath: %s, FrameRate: %d, Codec: %s, ImagesDir: %s, Port: %d, RenderRoot: %s, PublishDir: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.FFmpegPath,
		c.FrameRate,
		c.Codec,
		c.ImagesDir,
		c.Port,
		c.RenderRoot,
		c.PublishDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
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
