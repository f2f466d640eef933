package output

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/panoflat/panoflat/internal/config"
	"github.com/panoflat/panoflat/internal/logger"
)

// framePadding keeps lexicographic order equal to frame order for any
// realistic frame count, matching the frame_%08d convention that image
// sequence consumers glob for.
const framePadding = 8

// FileSink writes one image file per frame index into a directory.
// Names are zero-padded so a plain sorted directory listing reconstructs
// temporal order. Writes go to a temp file first and rename into place,
// so a cancelled or crashed run never leaves a truncated frame behind.
type FileSink struct {
	dir     string
	format  config.ImageFormat
	quality int
}

// NewFileSink creates the output directory if needed and returns a sink
// writing into it
func NewFileSink(cfg config.OutputConfig) (*FileSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("output directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	quality := cfg.JPEGQuality
	if quality == 0 {
		quality = 90
	}

	return &FileSink{
		dir:     cfg.Dir,
		format:  cfg.Format,
		quality: quality,
	}, nil
}

// FramePath returns the artifact path for a frame index
func (s *FileSink) FramePath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%0*d.%s", framePadding, index, s.ext()))
}

// EncodePattern returns the printf-style pattern an external encoder
// (e.g. ffmpeg's image2 demuxer) uses to consume the sequence
func (s *FileSink) EncodePattern() string {
	return filepath.Join(s.dir, fmt.Sprintf("frame_%%0%dd.%s", framePadding, s.ext()))
}

func (s *FileSink) ext() string {
	if s.format == config.FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Store encodes and atomically writes one frame artifact
func (s *FileSink) Store(index int, frame *image.RGBA) error {
	if index < 0 {
		return fmt.Errorf("negative frame index %d", index)
	}
	if frame == nil {
		return fmt.Errorf("nil frame for index %d", index)
	}

	buf := new(bytes.Buffer)
	switch s.format {
	case config.FormatJPEG:
		if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: s.quality}); err != nil {
			return fmt.Errorf("failed to encode JPEG for frame %d: %w", index, err)
		}
	default:
		if err := png.Encode(buf, frame); err != nil {
			return fmt.Errorf("failed to encode PNG for frame %d: %w", index, err)
		}
	}

	// Temp file in the same directory so the rename is a same-filesystem
	// atomic replace
	tmp, err := os.CreateTemp(s.dir, ".frame-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for frame %d: %w", index, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for frame %d: %w", index, err)
	}

	finalPath := s.FramePath(index)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit frame %d: %w", index, err)
	}

	logger.WithComponent("sink").Debug().
		Int("frame", index).
		Str("path", finalPath).
		Int("bytes", buf.Len()).
		Msg("Frame stored")

	return nil
}
