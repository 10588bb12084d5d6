package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maauso/frameseq/internal/failure"
	"github.com/maauso/frameseq/internal/sequence"
)

// ErrInvalidUTF8 is returned when the captured encoder message is not
// valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("ffmpeg output is not valid UTF-8")

// Compile-time check that FFmpegRunner implements Runner.
var _ Runner = (*FFmpegRunner)(nil)

// FFmpegRunner implements Runner using the ffmpeg CLI named by each Config.
type FFmpegRunner struct {
	logger *slog.Logger
}

// NewFFmpegRunner creates a new FFmpegRunner.
// If logger is nil, slog.Default() is used.
func NewFFmpegRunner(logger *slog.Logger) *FFmpegRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegRunner{logger: logger}
}

// Args returns the ffmpeg arguments that encode cfg. The order is fixed:
// overwrite, glob input mode, frame rate, input, encoder, pixel format,
// output.
func Args(cfg *sequence.Config) ([]string, error) {
	if cfg.FrameRate() == 0 {
		return nil, failure.Invalid("build ffmpeg arguments", sequence.ErrInvalidFrameRate)
	}
	encoder, err := cfg.Codec().Encoder()
	if err != nil {
		return nil, failure.Invalid("resolve codec", err)
	}
	pixelFormat, err := cfg.Codec().PixelFormat()
	if err != nil {
		return nil, failure.Invalid("resolve codec", err)
	}

	return []string{
		"-y",                    // Overwrite output file without asking
		"-pattern_type", "glob", // Treat the input as a glob
		"-framerate", strconv.FormatUint(uint64(cfg.FrameRate()), 10),
		"-i", cfg.InputPattern(),
		"-c:v", encoder,
		"-pix_fmt", pixelFormat,
		cfg.OutputPath(),
	}, nil
}

// Run executes ffmpeg for cfg and waits for it to exit.
//
// A non-zero exit still returns a Result with a nil error; its Status is
// StatusFailed and Message carries ffmpeg's standard error. Errors are
// returned only when ffmpeg cannot be launched, the context ends, or the
// message is not valid UTF-8.
func (r *FFmpegRunner) Run(ctx context.Context, cfg *sequence.Config) (*Result, error) {
	args, err := Args(cfg)
	if err != nil {
		return nil, err
	}

	// #nosec G204 - the executable was validated by sequence.Build
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running ffmpeg",
		slog.String("path", cfg.FFmpegPath()),
		slog.String("args", strings.Join(args, " ")),
	)

	start := time.Now()
	result := &Result{Status: StatusSucceeded}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, failure.IO("run ffmpeg", &LaunchError{
				Path: cfg.FFmpegPath(),
				Args: args,
				Err:  err,
			})
		}
		result.Status = StatusFailed
		result.ExitCode = exitErr.ExitCode()
	}

	message := stdout.Bytes()
	if !result.Succeeded() {
		message = stderr.Bytes()
	}
	if !utf8.Valid(message) {
		return nil, failure.Decode("read ffmpeg output", ErrInvalidUTF8)
	}
	result.Stdout = strings.ToValidUTF8(stdout.String(), string(utf8.RuneError))
	result.Stderr = strings.ToValidUTF8(stderr.String(), string(utf8.RuneError))

	r.logger.Debug("ffmpeg finished",
		slog.String("status", string(result.Status)),
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// LaunchError reports that ffmpeg could not be started.
type LaunchError struct {
	Path string
	Args []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch ffmpeg %s: %v\nargs: %v", e.Path, e.Err, e.Args)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ExitError reports that ffmpeg exited with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg exited with status %d\nstderr: %s", e.Code, e.Stderr)
}
