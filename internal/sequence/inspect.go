package sequence

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/gen2brain/avif" // register AVIF decoder
	_ "golang.org/x/image/bmp"    // register BMP decoder
	_ "golang.org/x/image/tiff"   // register TIFF decoder
	_ "golang.org/x/image/webp"   // register WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/maauso/frameseq/internal/failure"
)

// ErrMixedDimensions is returned when frames of a sequence differ in size.
var ErrMixedDimensions = errors.New("frames have different dimensions")

// Info describes the frames a Config matches.
type Info struct {
	// Frames is the number of files matched by the input pattern.
	Frames int `json:"frames" yaml:"frames"`
	// Width and Height are the frame dimensions in pixels.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Format is the image format of the first frame, e.g. "png".
	Format string `json:"format" yaml:"format"`
	// Duration is the playback length at the configured frame rate.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// EvenDimensions reports whether both dimensions are even, which yuv420p
// output requires.
func (i *Info) EvenDimensions() bool {
	return i.Width%2 == 0 && i.Height%2 == 0
}

type frameHeader struct {
	name   string
	config image.Config
	format string
}

// Inspect reads the header of every frame matched by cfg and checks that
// all frames share one size. Frame pixel data is never decoded.
func Inspect(ctx context.Context, cfg *Config) (*Info, error) {
	if cfg.FrameRate() == 0 {
		return nil, failure.Invalid("inspect frames", ErrInvalidFrameRate)
	}
	names, err := matchFrames(cfg)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, failure.Invalid("inspect frames", fmt.Errorf("%w: %s", ErrEmptyImagesFolder, cfg.ImagesDir()))
	}

	headers := make([]frameHeader, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := readHeader(filepath.Join(cfg.ImagesDir(), name))
			if err != nil {
				return err
			}
			headers[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	first := headers[0]
	for _, h := range headers[1:] {
		if h.config.Width != first.config.Width || h.config.Height != first.config.Height {
			return nil, failure.Invalid("inspect frames", fmt.Errorf("%w: %s is %dx%d, %s is %dx%d",
				ErrMixedDimensions,
				first.name, first.config.Width, first.config.Height,
				h.name, h.config.Width, h.config.Height,
			))
		}
	}

	return &Info{
		Frames:   len(names),
		Width:    first.config.Width,
		Height:   first.config.Height,
		Format:   first.format,
		Duration: time.Duration(len(names)) * time.Second / time.Duration(cfg.FrameRate()),
	}, nil
}

// matchFrames returns the sorted frame names matched by the config's
// input pattern.
func matchFrames(cfg *Config) ([]string, error) {
	names, err := listFrames(cfg.ImagesDir())
	if err != nil {
		return nil, err
	}
	glob := filepath.Base(cfg.InputPattern())
	matched := names[:0]
	for _, name := range names {
		ok, err := filepath.Match(glob, name)
		if err != nil {
			return nil, failure.Parse("match frames", err)
		}
		if ok {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

func readHeader(path string) (frameHeader, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the validated images dir
	if err != nil {
		return frameHeader{}, failure.IO("open frame", err)
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return frameHeader{}, failure.Decode("decode frame header", fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	return frameHeader{name: filepath.Base(path), config: cfg, format: format}, nil
}
