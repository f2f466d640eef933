package extract

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panoflat/panoflat/internal/config"
	"github.com/panoflat/panoflat/internal/logger"
	"github.com/panoflat/panoflat/internal/metrics"
	"github.com/panoflat/panoflat/internal/output"
	"github.com/panoflat/panoflat/internal/pano"
)

// PoseFunc evaluates the camera pose for one frame. It must be a pure
// function of its arguments: workers evaluate frames in whatever order
// they claim them, with no coordination.
type PoseFunc func(index, frameCount int) (pano.Pose, error)

// Result summarizes an extraction run
type Result struct {
	Attempted int
	Succeeded int
	Failures  []FrameFailure
}

// Partial reports whether some but not all frames succeeded
func (r *Result) Partial() bool {
	return len(r.Failures) > 0 && r.Succeeded > 0
}

// Extractor runs the frame extraction pipeline: a fixed pool of workers
// claim frame indices from an atomic counter, project each frame, and
// hand the result to the sink. Output artifacts are addressed by frame
// index, so completion order never matters.
type Extractor struct {
	frameCount  int
	outW        int
	outH        int
	concurrency int
	interp      pano.Interpolation
	pose        PoseFunc
	sink        output.Sink

	progress func(done, total int)
}

// New validates the configuration eagerly and builds an extractor.
// A zero concurrency resolves to the host core count.
func New(cfg *config.Config, pose PoseFunc, sink output.Sink) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &FatalError{Kind: KindInvalidConfiguration, Err: err}
	}
	if pose == nil {
		return nil, &FatalError{Kind: KindInvalidConfiguration, Err: fmt.Errorf("no pose function")}
	}
	if sink == nil {
		return nil, &FatalError{Kind: KindInvalidConfiguration, Err: fmt.Errorf("no output sink")}
	}

	interp, err := pano.ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, &FatalError{Kind: KindInvalidConfiguration, Err: err}
	}

	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = runtime.NumCPU()
	}

	return &Extractor{
		frameCount:  cfg.FrameCount,
		outW:        cfg.OutputWidth,
		outH:        cfg.OutputHeight,
		concurrency: concurrency,
		interp:      interp,
		pose:        pose,
		sink:        sink,
	}, nil
}

// SetProgress installs a callback invoked after each frame settles,
// successfully or not. It may be called from any worker.
func (e *Extractor) SetProgress(fn func(done, total int)) {
	e.progress = fn
}

// Run extracts all frames. Per-frame failures are collected in the
// result and never retried (projection is deterministic, so a retry with
// the same input cannot change the outcome). Run returns an error only
// for fatal conditions: when every single frame failed, the run as a
// whole is considered failed.
//
// Cancelling ctx stops workers from claiming new frames; frames already
// in flight finish normally, and the sink's atomic commit guarantees no
// truncated artifact is left behind either way.
func (e *Extractor) Run(ctx context.Context, src *pano.Source) (*Result, error) {
	if src == nil {
		return nil, &FatalError{Kind: KindSourceLoadFailure, Err: fmt.Errorf("no source image")}
	}

	log := logger.WithComponent("extract")
	log.Info().
		Int("frames", e.frameCount).
		Int("workers", e.concurrency).
		Int("width", e.outW).
		Int("height", e.outH).
		Msg("Starting extraction")

	var (
		next     atomic.Int64 // work-claim counter, the only shared mutable state
		done     atomic.Int64
		mu       sync.Mutex
		failures []FrameFailure
		wg       sync.WaitGroup
	)

	workers := e.concurrency
	if workers > e.frameCount {
		workers = e.frameCount
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()

			for {
				if ctx.Err() != nil {
					return
				}
				index := int(next.Add(1) - 1)
				if index >= e.frameCount {
					return
				}

				if failure := e.processFrame(src, index); failure != nil {
					mu.Lock()
					failures = append(failures, *failure)
					mu.Unlock()
				}

				settled := int(done.Add(1))
				if e.progress != nil {
					e.progress(settled, e.frameCount)
				}
			}
		}()
	}

	wg.Wait()

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Index < failures[j].Index
	})

	result := &Result{
		Attempted: int(done.Load()),
		Succeeded: int(done.Load()) - len(failures),
		Failures:  failures,
	}

	log.Info().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", len(result.Failures)).
		Msg("Extraction finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if result.Succeeded == 0 {
		return result, &FatalError{
			Kind: KindFrameProjectionFailure,
			Err:  fmt.Errorf("all %d frames failed", result.Attempted),
		}
	}
	return result, nil
}

// processFrame claims no state of its own: pose evaluation, projection,
// and storage all flow one direction, keyed by the frame index.
func (e *Extractor) processFrame(src *pano.Source, index int) *FrameFailure {
	start := time.Now()

	pose, err := e.pose(index, e.frameCount)
	if err != nil {
		metrics.FrameFailuresTotal.WithLabelValues(string(KindFrameProjectionFailure)).Inc()
		return &FrameFailure{Index: index, Kind: KindFrameProjectionFailure, Err: err}
	}

	frame, err := pano.Project(src, pose, e.outW, e.outH, e.interp)
	if err != nil {
		metrics.FrameFailuresTotal.WithLabelValues(string(KindFrameProjectionFailure)).Inc()
		logger.WithComponent("extract").Warn().
			Int("frame", index).
			Err(err).
			Msg("Frame projection failed")
		return &FrameFailure{Index: index, Kind: KindFrameProjectionFailure, Err: err}
	}

	if err := e.sink.Store(index, frame); err != nil {
		metrics.FrameFailuresTotal.WithLabelValues(string(KindFrameWriteFailure)).Inc()
		logger.WithComponent("extract").Warn().
			Int("frame", index).
			Err(err).
			Msg("Frame write failed")
		return &FrameFailure{Index: index, Kind: KindFrameWriteFailure, Err: err}
	}

	metrics.FramesExtractedTotal.Inc()
	metrics.FrameDuration.Observe(time.Since(start).Seconds())
	return nil
}
