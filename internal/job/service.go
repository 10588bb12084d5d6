package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/media"
	"github.com/maauso/frameseq/internal/sequence"
	"github.com/maauso/frameseq/internal/storage"
)

var (
	// ErrNotQueued is returned by Process when the job already left QUEUED.
	ErrNotQueued = errors.New("job is not queued")
	// ErrNotTerminal is returned by Delete while the job can still change.
	ErrNotTerminal = errors.New("job has not finished")
)

// defaultHeartbeat is how often a running render is logged.
const defaultHeartbeat = 30 * time.Second

// Request contains the input parameters for a render.
type Request struct {
	// ImagesDir is the directory holding the frames.
	ImagesDir string
	// OutputDir overrides the default <ImagesDir>/_video output directory.
	OutputDir string
	// OutputName overrides the default _Video.mov file name.
	OutputName string
	// FrameRate is the input frame rate in frames per second.
	FrameRate uint32
	// Codec selects the video encoder.
	Codec codec.Codec
}

// Service orchestrates renders: it builds the configuration, runs the
// encoder, and publishes the resulting video.
type Service struct {
	repo       Repository
	runner     media.Runner
	store      storage.Storage
	logger     *slog.Logger
	ffmpegPath string
	inspect    bool
	cleanup    bool
	heartbeat  time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithFFmpegPath sets the ffmpeg executable used for every render.
func WithFFmpegPath(path string) Option {
	return func(s *Service) {
		s.ffmpegPath = path
	}
}

// WithInspection enables reading frame headers before encoding.
func WithInspection(enabled bool) Option {
	return func(s *Service) {
		s.inspect = enabled
	}
}

// WithCleanup removes the rendered file once it was published elsewhere.
func WithCleanup(enabled bool) Option {
	return func(s *Service) {
		s.cleanup = enabled
	}
}

// WithHeartbeat sets how often a render that is still encoding is logged.
// Zero or negative disables the log line.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Service) {
		s.heartbeat = d
	}
}

// NewService creates a new Service.
// If logger is nil, slog.Default() is used.
func NewService(repo Repository, runner media.Runner, store storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:       repo,
		runner:     runner,
		store:      store,
		logger:     logger,
		ffmpegPath: "/usr/bin/ffmpeg",
		inspect:    true,
		heartbeat:  defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req, builds its configuration and stores a QUEUED job.
// Validation errors are returned as is and no job is created.
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	cfg, err := sequence.Build(sequence.Options{
		FFmpegPath: s.ffmpegPath,
		ImagesDir:  req.ImagesDir,
		OutputDir:  req.OutputDir,
		OutputName: req.OutputName,
		FrameRate:  req.FrameRate,
		Codec:      req.Codec,
	})
	if err != nil {
		s.logger.Warn("render rejected",
			slog.String("images_dir", req.ImagesDir),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	job := New(cfg)
	s.logger.Info("render queued",
		slog.String("render_id", job.ID),
		slog.String("input", cfg.InputPattern()),
		slog.String("output", cfg.OutputPath()),
		slog.String("codec", cfg.Codec().String()),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// Process runs a queued job to completion and returns its final state.
//
// The returned error is reserved for repository failures and jobs that are
// not in QUEUED; encoder and publish problems are recorded on the job.
func (s *Service) Process(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotQueued, jobID, job.GetStatus())
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	log := s.logger.With(slog.String("render_id", job.ID))
	log.Info("render started")

	if s.inspect {
		s.inspectFrames(ctx, log, job)
	}

	result, err := s.encode(ctx, log, job)
	if err != nil {
		log.Error("ffmpeg could not run", slog.String("error", err.Error()))
		return s.finish(ctx, job, job.Fail(err.Error()))
	}

	if result.Succeeded() {
		location, err := s.publish(ctx, job)
		if err != nil {
			log.Error("publish failed", slog.String("error", err.Error()))
			return s.finish(ctx, job, job.Fail(err.Error()))
		}
		job.SetLocation(location)
	}

	if err := job.Finish(result); err != nil {
		return nil, err
	}
	log.Info("render finished",
		slog.String("status", string(job.GetStatus())),
		slog.Int("exit_code", result.ExitCode),
	)
	return s.finish(ctx, job, nil)
}

// Render submits req and processes it synchronously.
func (s *Service) Render(ctx context.Context, req Request) (*Job, error) {
	job, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, job.ID)
}

// Delete removes a finished job. Jobs that are QUEUED or RUNNING are kept
// and ErrNotTerminal is returned.
func (s *Service) Delete(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, jobID, job.GetStatus())
	}
	if err := s.repo.Delete(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("render deleted", slog.String("render_id", jobID))
	return nil
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// List returns every job, oldest first.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// inspectFrames records frame information. Inspection never blocks a
// render; ffmpeg gets the final say.
func (s *Service) inspectFrames(ctx context.Context, log *slog.Logger, job *Job) {
	info, err := sequence.Inspect(ctx, job.Config)
	if err != nil {
		log.Warn("frame inspection failed", slog.String("error", err.Error()))
		return
	}
	job.SetInfo(info)

	if job.Config.Codec() == codec.H264 && !info.EvenDimensions() {
		log.Warn("h264 needs even frame dimensions",
			slog.Int("width", info.Width),
			slog.Int("height", info.Height),
		)
	}
}

// encode runs the encoder and logs a heartbeat until it exits.
func (s *Service) encode(ctx context.Context, log *slog.Logger, job *Job) (*media.Result, error) {
	done := media.Start(ctx, s.runner, job.Config)
	if s.heartbeat <= 0 {
		outcome := <-done
		return outcome.Result, outcome.Err
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	started := time.Now()
	for {
		select {
		case outcome := <-done:
			return outcome.Result, outcome.Err
		case <-ticker.C:
			log.Info("render still running",
				slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
			)
		}
	}
}

func (s *Service) publish(ctx context.Context, job *Job) (string, error) {
	output := job.Config.OutputPath()
	key := "renders/" + job.ID + "/" + filepath.Base(output)

	location, err := s.store.Publish(ctx, key, output)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", output, err)
	}

	if s.cleanup && location != output {
		if err := s.store.Cleanup(ctx, []string{output}); err != nil {
			s.logger.Warn("cleanup failed",
				slog.String("render_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return location, nil
}

// finish persists the job after a terminal transition.
func (s *Service) finish(ctx context.Context, job *Job, transitionErr error) (*Job, error) {
	if transitionErr != nil {
		return nil, transitionErr
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job.Clone(), nil
}
