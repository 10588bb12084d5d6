// Package bootstrap wires configuration into the render service.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/frameseq/internal/config"
	"github.com/maauso/frameseq/internal/job"
	"github.com/maauso/frameseq/internal/media"
	"github.com/maauso/frameseq/internal/storage"
)

// Dependencies holds all initialized dependencies for the entry points.
type Dependencies struct {
	RenderService *job.Service
	Storage       storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := job.NewService(
		job.NewMemoryRepository(),
		media.NewFFmpegRunner(logger),
		store,
		logger,
		job.WithFFmpegPath(cfg.FFmpegPath),
		job.WithInspection(cfg.InspectFrames),
		job.WithCleanup(cfg.CleanupAfterPublish),
	)

	return &Dependencies{
		RenderService: svc,
		Storage:       store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.PublishDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	if cfg.PublishDir == "" {
		logger.Info("videos stay in their output directory")
	} else {
		logger.Info("local storage configured",
			slog.String("publish_dir", cfg.PublishDir),
		)
	}
	return localStore, nil
}
