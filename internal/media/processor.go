// Package media runs ffmpeg to encode image sequences into video files.
package media

import (
	"context"

	"github.com/maauso/frameseq/internal/sequence"
)

// Runner encodes the image sequence described by a Config.
// Implementations should use ffmpeg or a compatible tool.
type Runner interface {
	// Run encodes cfg and waits for the encoder to exit. A non-zero exit
	// is reported through Result.Status, not through the error; the error
	// is reserved for failures to launch the encoder or read its output.
	Run(ctx context.Context, cfg *sequence.Config) (*Result, error)
}

// Status is the outcome of an encoder run.
type Status string

const (
	// StatusSucceeded indicates the encoder exited with status 0.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the encoder exited with a non-zero status.
	StatusFailed Status = "FAILED"
)

// Result is the captured outcome of one encoder run.
type Result struct {
	// Status tells whether the encoder succeeded.
	Status Status `json:"status"`
	// ExitCode is the encoder's exit status.
	ExitCode int `json:"exit_code"`
	// Stdout and Stderr hold the captured output streams.
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Succeeded reports whether the encoder exited with status 0.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Message returns the text a caller would show for the run: standard
// output on success, standard error on failure.
func (r *Result) Message() string {
	if r.Succeeded() {
		return r.Stdout
	}
	return r.Stderr
}

// Err returns an *ExitError for failed runs and nil otherwise.
func (r *Result) Err() error {
	if r.Succeeded() {
		return nil
	}
	return &ExitError{Code: r.ExitCode, Stderr: r.Stderr}
}

// Outcome is delivered by Start once the run finishes.
type Outcome struct {
	Result *Result
	Err    error
}

// Start calls r.Run in a new goroutine. The returned channel receives
// exactly one Outcome and is then closed.
func Start(ctx context.Context, r Runner, cfg *sequence.Config) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := r.Run(ctx, cfg)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}
