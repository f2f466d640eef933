package extract

import (
	"fmt"
)

// Kind classifies extraction errors. Fatal kinds abort the run before or
// at scheduling; frame kinds are collected per frame and reported in the
// final result without disturbing sibling frames.
type Kind string

const (
	KindInvalidSourceAspectRatio Kind = "invalid_source_aspect_ratio"
	KindSourceLoadFailure        Kind = "source_load_failure"
	KindInvalidConfiguration     Kind = "invalid_configuration"
	KindFrameProjectionFailure   Kind = "frame_projection_failure"
	KindFrameWriteFailure        Kind = "frame_write_failure"
)

// FatalError aborts the whole run with no partial output claimed as valid
type FatalError struct {
	Kind Kind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// FrameFailure records a single frame that could not be produced
type FrameFailure struct {
	Index int   `json:"index"`
	Kind  Kind  `json:"kind"`
	Err   error `json:"-"`
}

func (f FrameFailure) String() string {
	return fmt.Sprintf("frame %d: %s: %v", f.Index, f.Kind, f.Err)
}
