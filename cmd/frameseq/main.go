// Package main renders one image sequence into a video, configured from
// the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/frameseq/internal/bootstrap"
	"github.com/maauso/frameseq/internal/config"
	"github.com/maauso/frameseq/internal/job"
	"github.com/maauso/frameseq/internal/manifest"
	"github.com/maauso/frameseq/internal/media"
)

func main() {
	if err := run(); err != nil {
		var exitErr *media.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Standard output carries ffmpeg's message.
	logger := cfg.NewLoggerTo(os.Stderr)
	slog.SetDefault(logger)

	req, err := renderRequest(cfg)
	if err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	render, err := deps.RenderService.Render(ctx, req)
	if err != nil {
		return err
	}

	if cfg.ManifestPath != "" {
		if err := manifest.Write(manifest.FromJob(render), cfg.ManifestPath); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
		logger.Info("manifest written", slog.String("path", cfg.ManifestPath))
	}

	switch render.Status {
	case job.StatusSucceeded:
		fmt.Fprint(os.Stdout, render.Message)
		logger.Info("video ready", slog.String("location", render.Location))
		return nil
	case job.StatusFailed:
		fmt.Fprint(os.Stderr, render.Message)
		return &media.ExitError{Code: render.ExitCode, Stderr: render.Message}
	default:
		return errors.New(render.Error)
	}
}

// renderRequest reads the request from the environment. Without IMAGES_DIR
// the render recorded at MANIFEST_PATH is replayed.
func renderRequest(cfg *config.Config) (job.Request, error) {
	if cfg.ImagesDir == "" && cfg.ManifestPath != "" {
		m, err := manifest.Read(cfg.ManifestPath)
		if err != nil {
			return job.Request{}, fmt.Errorf("replay manifest: %w", err)
		}
		return m.Request()
	}

	opts, err := cfg.RenderOptions()
	if err != nil {
		return job.Request{}, err
	}
	return job.Request{
		ImagesDir:  opts.ImagesDir,
		OutputDir:  opts.OutputDir,
		OutputName: opts.OutputName,
		FrameRate:  opts.FrameRate,
		Codec:      opts.Codec,
	}, nil
}
