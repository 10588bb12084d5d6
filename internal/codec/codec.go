// Package codec defines the video codecs frameseq can encode to and their
// ffmpeg encoder settings.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for codec resolution.
var (
	// ErrNotSet is returned when an Unset codec is resolved to ffmpeg settings.
	ErrNotSet = errors.New("codec not set")
	// ErrUnknown is returned when a codec name cannot be parsed.
	ErrUnknown = errors.New("unknown codec")
)

// Codec is the output video codec. The zero value is Unset.
type Codec uint8

const (
	// Unset means no codec was chosen. It is rejected wherever ffmpeg
	// settings are required.
	Unset Codec = iota
	// ProRes encodes Apple ProRes 422 10-bit.
	ProRes
	// H264 encodes H.264 through libx264.
	H264
)

// settings is the ffmpeg encoder name and pixel format of a codec.
type settings struct {
	encoder     string
	pixelFormat string
}

var ffmpegSettings = map[Codec]settings{
	ProRes: {encoder: "prores", pixelFormat: "yuv422p10le"},
	H264:   {encoder: "libx264", pixelFormat: "yuv420p"},
}

// Encoder returns the ffmpeg encoder name passed to -c:v.
func (c Codec) Encoder() (string, error) {
	s, ok := ffmpegSettings[c]
	if !ok {
		return "", ErrNotSet
	}
	return s.encoder, nil
}

// PixelFormat returns the ffmpeg pixel format passed to -pix_fmt.
func (c Codec) PixelFormat() (string, error) {
	s, ok := ffmpegSettings[c]
	if !ok {
		return "", ErrNotSet
	}
	return s.pixelFormat, nil
}

// IsSet reports whether c names a real codec.
func (c Codec) IsSet() bool {
	_, ok := ffmpegSettings[c]
	return ok
}

// String returns the canonical name of the codec.
func (c Codec) String() string {
	switch c {
	case ProRes:
		return "prores"
	case H264:
		return "h264"
	default:
		return "unset"
	}
}

// Parse converts a codec name into a Codec. Names are case-insensitive;
// "libx264" is accepted as an alias of "h264". "unset" and the empty
// string parse to Unset.
func Parse(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "prores":
		return ProRes, nil
	case "h264", "libx264":
		return H264, nil
	case "", "unset":
		return Unset, nil
	default:
		return Unset, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Codec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
