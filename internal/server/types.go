// Package server provides the HTTP surface for submitting and tracking
// image sequence renders. DTOs here are kept separate from domain types.
package server

import (
	"time"

	"github.com/maauso/frameseq/internal/sequence"
)

// CreateRenderRequest is the HTTP request body for creating a render.
type CreateRenderRequest struct {
	// ImagesDir is the directory holding the frames.
	ImagesDir string `json:"images_dir" validate:"required"`
	// OutputDir overrides the default <images_dir>/_video directory.
	OutputDir string `json:"output_dir,omitempty"`
	// OutputName overrides the default _Video.mov file name.
	OutputName string `json:"output_name,omitempty" validate:"omitempty,excludes=/"`
	// FrameRate is the input frame rate in frames per second.
	FrameRate uint32 `json:"frame_rate" validate:"required,min=1,max=1000"`
	// Codec is one of prores, h264 or libx264.
	Codec string `json:"codec" validate:"required,oneof=prores h264 libx264"`
}

// CreateRenderResponse is the HTTP response after creating a render.
type CreateRenderResponse struct {
	// ID is the unique identifier for the created render.
	ID string `json:"id"`
	// Status is the initial render status.
	Status string `json:"status"`
}

// RenderResponse is the HTTP response for render details.
type RenderResponse struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	InputPattern string         `json:"input_pattern"`
	OutputPath   string         `json:"output_path"`
	FrameRate    uint32         `json:"frame_rate"`
	Codec        string         `json:"codec"`
	Info         *sequence.Info `json:"info,omitempty"`
	ExitCode     int            `json:"exit_code"`
	// Message is ffmpeg's stdout on success or stderr on failure.
	Message string `json:"message,omitempty"`
	// Error describes why the render could not run or be published.
	Error string `json:"error,omitempty"`
	// Location is the published video path or URL.
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// ListRendersResponse is the HTTP response for listing renders.
type ListRendersResponse struct {
	Renders []RenderResponse `json:"renders"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Host carries host resource usage when it can be read.
	Host *HostStats `json:"host,omitempty"`
}

// HostStats describes the resources available to ffmpeg.
type HostStats struct {
	CPUs          int     `json:"cpus"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
}
