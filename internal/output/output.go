package output

import (
	"image"
)

// Sink defines the interface for frame persistence.
// This allows us to swap between different storage backends:
// - local filesystem directory
// - in-memory (tests)
// - etc.
type Sink interface {
	// Store persists one frame artifact for the given frame index.
	// Storing the same index twice overwrites; given identical inputs
	// the bytes are identical, which is what makes re-runs resumable.
	Store(index int, frame *image.RGBA) error

	// FramePath returns where the artifact for a frame index lives
	FramePath(index int) string
}
