// Package manifest records a finished render as a YAML document.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maauso/frameseq/internal/job"
	"github.com/maauso/frameseq/internal/sequence"
)

// Version is the manifest format version written by Write.
const Version = "1"

var (
	// ErrUnsupportedVersion is returned when reading a manifest of another version.
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	// ErrNoConfig is returned when a manifest without a config is replayed.
	ErrNoConfig = errors.New("manifest has no config")
)

// Manifest describes one render.
type Manifest struct {
	Version     string           `yaml:"version"`
	ID          string           `yaml:"id"`
	Status      job.Status       `yaml:"status"`
	Config      *sequence.Config `yaml:"config"`
	Info        *sequence.Info   `yaml:"info,omitempty"`
	ExitCode    int              `yaml:"exit_code"`
	Message     string           `yaml:"message,omitempty"`
	Error       string           `yaml:"error,omitempty"`
	Location    string           `yaml:"location,omitempty"`
	CreatedAt   time.Time        `yaml:"created_at"`
	CompletedAt time.Time        `yaml:"completed_at,omitempty"`
}

// FromJob builds a manifest from a job snapshot.
func FromJob(j *job.Job) *Manifest {
	return &Manifest{
		Version:     Version,
		ID:          j.ID,
		Status:      j.Status,
		Config:      j.Config,
		Info:        j.Info,
		ExitCode:    j.ExitCode,
		Message:     j.Message,
		Error:       j.Error,
		Location:    j.Location,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Request rebuilds the render request recorded in m. The ffmpeg path is
// left to the service that replays it.
func (m *Manifest) Request() (job.Request, error) {
	if m.Config == nil {
		return job.Request{}, ErrNoConfig
	}
	output := m.Config.OutputPath()
	return job.Request{
		ImagesDir:  m.Config.ImagesDir(),
		OutputDir:  filepath.Dir(output),
		OutputName: filepath.Base(output),
		FrameRate:  m.Config.FrameRate(),
		Codec:      m.Config.Codec(),
	}, nil
}

// Write encodes m as YAML into path, creating parent directories.
func Write(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	return os.WriteFile(path, data, 0644) // #nosec G306 - manifests are meant to be shared
}

// Read decodes the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, m.Version)
	}
	return &m, nil
}
