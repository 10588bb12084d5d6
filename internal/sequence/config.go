// Package sequence validates a directory of numbered still images and
// derives the immutable render Config that ffmpeg is invoked with.
package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/failure"
)

// Config is a validated render configuration. It can only be produced by
// Build or by decoding a previously serialized Config, and it is never
// modified after construction.
type Config struct {
	ffmpegPath   string
	inputPattern string
	outputPath   string
	frameRate    uint32
	codec        codec.Codec
}

// FFmpegPath returns the path of the ffmpeg executable.
func (c *Config) FFmpegPath() string { return c.ffmpegPath }

// InputPattern returns the glob matching the image sequence, in the form
// <images dir>/*.<ext>.
func (c *Config) InputPattern() string { return c.inputPattern }

// ImagesDir returns the directory holding the image sequence.
func (c *Config) ImagesDir() string { return filepath.Dir(c.inputPattern) }

// OutputPath returns the path of the video file ffmpeg writes.
func (c *Config) OutputPath() string { return c.outputPath }

// FrameRate returns the input frame rate in frames per second.
func (c *Config) FrameRate() uint32 { return c.frameRate }

// Codec returns the output codec.
func (c *Config) Codec() codec.Codec { return c.codec }

// WithCodec returns a copy of the config that encodes with cd.
func (c *Config) WithCodec(cd codec.Codec) *Config {
	cp := *c
	cp.codec = cd
	return &cp
}

// String returns a one-line summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{FFmpegPath: %s, InputPattern: %s, OutputPath: %s, FrameRate: %d, Codec: %s}",
		c.ffmpegPath,
		c.inputPattern,
		c.outputPath,
		c.frameRate,
		c.codec,
	)
}

// ErrPathNotUTF8 is returned when a Config path cannot be written as JSON
// text without loss.
var ErrPathNotUTF8 = errors.New("path is not valid UTF-8")

// configDocument is the serialized form of a Config.
type configDocument struct {
	FFmpegPath   string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	InputPattern string `json:"input_pattern" yaml:"input_pattern"`
	OutputPath   string `json:"output_path" yaml:"output_path"`
	FrameRate    uint32 `json:"frame_rate" yaml:"frame_rate"`
	Codec        string `json:"codec" yaml:"codec"`
}

func (c *Config) document() configDocument {
	return configDocument{
		FFmpegPath:   c.ffmpegPath,
		InputPattern: c.inputPattern,
		OutputPath:   c.outputPath,
		FrameRate:    c.frameRate,
		Codec:        c.codec.String(),
	}
}

func (c *Config) fromDocument(doc configDocument) error {
	cd, err := codec.Parse(doc.Codec)
	if err != nil {
		return failure.Parse("decode config", err)
	}
	if doc.FrameRate == 0 {
		return failure.Parse("decode config", ErrInvalidFrameRate)
	}
	*c = Config{
		ffmpegPath:   doc.FFmpegPath,
		inputPattern: doc.InputPattern,
		outputPath:   doc.OutputPath,
		frameRate:    doc.FrameRate,
		codec:        cd,
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Paths that are not valid UTF-8
// are rejected; encoding/json would replace their bytes.
func (c *Config) MarshalJSON() ([]byte, error) {
	for _, p := range []string{c.ffmpegPath, c.inputPattern, c.outputPath} {
		if !utf8.ValidString(p) {
			return nil, failure.Decode("encode config", fmt.Errorf("%w: %q", ErrPathNotUTF8, p))
		}
	}
	return json.Marshal(c.document())
}

// UnmarshalJSON implements json.Unmarshaler. The decoded paths are not
// checked against the filesystem.
func (c *Config) UnmarshalJSON(data []byte) error {
	var doc configDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return failure.Parse("decode config", err)
	}
	return c.fromDocument(doc)
}

// MarshalYAML implements yaml.Marshaler.
func (c *Config) MarshalYAML() (any, error) {
	return c.document(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var doc configDocument
	if err := node.Decode(&doc); err != nil {
		return failure.Parse("decode config", err)
	}
	return c.fromDocument(doc)
}
