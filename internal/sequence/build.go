package sequence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/maauso/frameseq/internal/codec"
	"github.com/maauso/frameseq/internal/failure"
)

const (
	// DefaultOutputDir is the subdirectory of the images directory that
	// receives the video when no output directory is given.
	DefaultOutputDir = "_video"
	// DefaultOutputName is the video file name used when none is given.
	DefaultOutputName = "_Video.mov"
)

// ExecutableName is the file name the ffmpeg path must end in.
var ExecutableName = executableName()

func executableName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// Static errors for config validation.
var (
	// ErrCodecNotSet is returned when the codec is Unset.
	ErrCodecNotSet = errors.New("codec not configured")
	// ErrInvalidFrameRate is returned when the frame rate is zero.
	ErrInvalidFrameRate = errors.New("frame rate must be positive")
	// ErrExecutableNotFound is returned when the ffmpeg path does not exist.
	ErrExecutableNotFound = errors.New("executable does not exist")
	// ErrWrongExecutableName is returned when the ffmpeg path names another file.
	ErrWrongExecutableName = errors.New("wrong file name")
	// ErrNotDirectory is returned when the images path is missing or not a directory.
	ErrNotDirectory = errors.New("must be a directory")
	// ErrEmptyImagesFolder is returned when the images directory holds no
	// file with an extension.
	ErrEmptyImagesFolder = errors.New("empty images folder")
	// ErrOutputDir is returned when the default output directory cannot be created.
	ErrOutputDir = errors.New("create output directory")
)

// Options are the caller-supplied inputs of Build.
type Options struct {
	// FFmpegPath is the path to the ffmpeg executable.
	FFmpegPath string
	// ImagesDir is the directory holding the image sequence.
	ImagesDir string
	// OutputDir is where the video is written. When empty,
	// <ImagesDir>/DefaultOutputDir is created and used.
	OutputDir string
	// OutputName is the video file name. Defaults to DefaultOutputName.
	OutputName string
	// FrameRate is the input frame rate in frames per second.
	FrameRate uint32
	// Codec is the output codec. Unset is rejected.
	Codec codec.Codec
}

// Build validates opts and returns the render Config.
//
// Frames are ordered lexically by file name, so sequences must be named
// with zero-padded numbers. The extension of the lexically first frame
// decides the input pattern; frames with other extensions are not matched.
func Build(opts Options) (*Config, error) {
	if !opts.Codec.IsSet() {
		return nil, failure.Invalid("build config", ErrCodecNotSet)
	}
	if opts.FrameRate == 0 {
		return nil, failure.Invalid("build config", ErrInvalidFrameRate)
	}

	ffmpegPath, err := checkExecutable(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	pattern, err := inputPattern(opts.ImagesDir)
	if err != nil {
		return nil, err
	}

	output, err := outputPath(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		ffmpegPath:   ffmpegPath,
		inputPattern: pattern,
		outputPath:   output,
		frameRate:    opts.FrameRate,
		codec:        opts.Codec,
	}, nil
}

// checkExecutable verifies that path exists and is named ExecutableName.
func checkExecutable(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", failure.Invalid("check executable", fmt.Errorf("%s %w", path, ErrExecutableNotFound))
		}
		return "", failure.IO("check executable", err)
	}
	if name := filepath.Base(path); name != ExecutableName {
		return "", failure.Invalid("check executable",
			fmt.Errorf("%w: %q is not %q", ErrWrongExecutableName, name, ExecutableName))
	}
	return path, nil
}

// inputPattern lists dir and returns the glob matching its frames.
func inputPattern(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", failure.IO("check images dir", err)
	}
	if err != nil || !info.IsDir() {
		return "", failure.Invalid("check images dir", fmt.Errorf("%s %w", dir, ErrNotDirectory))
	}

	frames, err := listFrames(dir)
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", failure.Invalid("check images dir", fmt.Errorf("%w: %s", ErrEmptyImagesFolder, dir))
	}

	return filepath.Join(dir, "*."+extension(frames[0])), nil
}

// listFrames returns the sorted names of the files in dir that carry an
// extension.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, failure.IO("read images dir", err)
	}
	return frameNames(entries), nil
}

// frameNames filters entries down to non-directories with an extension and
// sorts them lexically.
func frameNames(entries []fs.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || extension(e.Name()) == "" {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names
}

// extension returns the extension of name without the dot. Dot-files such
// as ".DS_Store" have none, and neither do names ending in a dot such as
// "0001.", so those are never treated as frames.
func extension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) <= 1 || ext == name {
		return ""
	}
	return ext[1:]
}

// outputPath resolves the video path, creating the default output
// directory when needed.
func outputPath(opts Options) (string, error) {
	name := opts.OutputName
	if name == "" {
		name = DefaultOutputName
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Join(opts.ImagesDir, DefaultOutputDir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", failure.IO("prepare output", fmt.Errorf("%w %s: %w", ErrOutputDir, dir, err))
		}
	}

	return filepath.Join(dir, name), nil
}
