// Package job provides the render Job aggregate, its state machine and
// the service that builds, encodes and publishes image sequence renders.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/frameseq/internal/job/id"
	"github.com/maauso/frameseq/internal/media"
	"github.com/maauso/frameseq/internal/sequence"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the render was accepted and waits to run.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates ffmpeg is encoding the sequence.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates ffmpeg exited cleanly and the video was published.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates ffmpeg exited with a non-zero status.
	StatusFailed Status = "FAILED"
	// StatusError indicates ffmpeg could not be run or its output could
	// not be read or published.
	StatusError Status = "ERROR"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusError},
	StatusRunning:   {StatusSucceeded, StatusFailed, StatusError},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusError:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job is a single render of an image sequence into a video.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Config is the validated render configuration.
	Config *sequence.Config
	// Info describes the frames, when inspection ran.
	Info *sequence.Info
	// ExitCode is ffmpeg's exit status once it has run.
	ExitCode int
	// Message is ffmpeg's stdout on success or stderr on failure.
	Message string
	// Error contains any error message if the job ended in ERROR.
	Error string
	// Location is where the published video can be found.
	Location string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when encoding started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial QUEUED status.
func New(cfg *sequence.Config) *Job {
	return NewWithID(id.Generate(), cfg)
}

// NewWithID creates a new Job with the specified ID and initial QUEUED status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, cfg *sequence.Config) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusQueued,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed, StatusError:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Finish records an ffmpeg result and moves the job to SUCCEEDED or
// FAILED accordingly.
func (j *Job) Finish(result *media.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	next := StatusFailed
	if result.Succeeded() {
		next = StatusSucceeded
	}
	if err := j.transitionLocked(next); err != nil {
		return err
	}
	j.ExitCode = result.ExitCode
	j.Message = result.Message()
	return nil
}

// Fail transitions the job to ERROR state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusError); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetInfo records the frame inspection result.
func (j *Job) SetInfo(info *sequence.Info) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Info = info
	j.UpdatedAt = time.Now()
}

// SetLocation records where the video was published.
func (j *Job) SetLocation(location string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Location = location
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusSucceeded ||
		j.Status == StatusFailed ||
		j.Status == StatusError
}

// Clone creates a copy of the job for safe reads. Config is immutable and
// shared; Info is copied.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var info *sequence.Info
	if j.Info != nil {
		cp := *j.Info
		info = &cp
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Config:      j.Config,
		Info:        info,
		ExitCode:    j.ExitCode,
		Message:     j.Message,
		Error:       j.Error,
		Location:    j.Location,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
