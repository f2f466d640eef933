package extract

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/panoflat/panoflat/internal/config"
	"github.com/panoflat/panoflat/internal/output"
	"github.com/panoflat/panoflat/internal/pano"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(t *testing.T, w int) *pano.Source {
	t.Helper()
	h := w / 2
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(math.Round(127.5 + 127*math.Sin(2*math.Pi*float64(x)/float64(w))))
			g := uint8(math.Round(255 * float64(y) / float64(h-1)))
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: 64, A: 255})
		}
	}
	src, err := pano.NewSource(img)
	require.NoError(t, err)
	return src
}

func testConfig(dir string, frames, concurrency int) *config.Config {
	cfg := config.Defaults()
	cfg.FrameCount = frames
	cfg.OutputWidth = 80
	cfg.OutputHeight = 45
	cfg.Concurrency = concurrency
	cfg.Camera = config.CameraConfig{StartYawDeg: 0, SweepDeg: 90, PitchDeg: 0, HFovDeg: 60}
	cfg.Output.Dir = dir
	return cfg
}

func newTestExtractor(t *testing.T, cfg *config.Config) (*Extractor, *output.FileSink) {
	t.Helper()
	sink, err := output.NewFileSink(cfg.Output)
	require.NoError(t, err)
	path := pano.NewPath(cfg.Camera)
	extractor, err := New(cfg, path.PoseFor, sink)
	require.NoError(t, err)
	return extractor, sink
}

func readFrames(t *testing.T, sink *output.FileSink, count int) [][]byte {
	t.Helper()
	frames := make([][]byte, count)
	for i := 0; i < count; i++ {
		data, err := os.ReadFile(sink.FramePath(i))
		require.NoError(t, err, "frame %d missing", i)
		frames[i] = data
	}
	return frames
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 10, 4)
	extractor, sink := newTestExtractor(t, cfg)

	result, err := extractor.Run(context.Background(), testSource(t, 400))
	require.NoError(t, err)
	assert.Equal(t, 10, result.Attempted)
	assert.Equal(t, 10, result.Succeeded)
	assert.Empty(t, result.Failures)
	assert.False(t, result.Partial())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 10)

	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%08d.png", i))
		f, err := os.Open(path)
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 80, 45), img.Bounds(), "frame %d", i)
	}

	// The camera swept 90°, so first and last frames see different content
	frames := readFrames(t, sink, 10)
	assert.NotEqual(t, frames[0], frames[9])
}

func TestRunDeterministicAcrossConcurrency(t *testing.T) {
	src := testSource(t, 400)

	dirA := t.TempDir()
	extractorA, sinkA := newTestExtractor(t, testConfig(dirA, 10, 1))
	_, err := extractorA.Run(context.Background(), src)
	require.NoError(t, err)

	dirB := t.TempDir()
	extractorB, sinkB := newTestExtractor(t, testConfig(dirB, 10, 8))
	_, err = extractorB.Run(context.Background(), src)
	require.NoError(t, err)

	framesA := readFrames(t, sinkA, 10)
	framesB := readFrames(t, sinkB, 10)
	for i := range framesA {
		assert.Equal(t, framesA[i], framesB[i], "frame %d differs between concurrency 1 and 8", i)
	}
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := testSource(t, 400)
	cfg := testConfig(dir, 5, 4)

	extractor, sink := newTestExtractor(t, cfg)
	_, err := extractor.Run(context.Background(), src)
	require.NoError(t, err)
	first := readFrames(t, sink, 5)

	_, err = extractor.Run(context.Background(), src)
	require.NoError(t, err)
	second := readFrames(t, sink, 5)

	assert.Equal(t, first, second)
}

func TestRunPartialFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 5, 4)
	sink, err := output.NewFileSink(cfg.Output)
	require.NoError(t, err)

	// Frame 2 gets a degenerate pose; its neighbors must be untouched
	path := pano.NewPath(cfg.Camera)
	brokenPose := func(index, frameCount int) (pano.Pose, error) {
		if index == 2 {
			return pano.Pose{Pitch: math.NaN(), HFov: 1}, nil
		}
		return path.PoseFor(index, frameCount)
	}

	extractor, err := New(cfg, brokenPose, sink)
	require.NoError(t, err)

	result, err := extractor.Run(context.Background(), testSource(t, 400))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Attempted)
	assert.Equal(t, 4, result.Succeeded)
	assert.True(t, result.Partial())

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Equal(t, KindFrameProjectionFailure, result.Failures[0].Kind)

	for _, i := range []int{0, 1, 3, 4} {
		_, err := os.Stat(sink.FramePath(i))
		assert.NoError(t, err, "frame %d should exist", i)
	}
	_, err = os.Stat(sink.FramePath(2))
	assert.True(t, os.IsNotExist(err), "frame 2 should not exist")
}

type failingSink struct{}

func (failingSink) Store(index int, frame *image.RGBA) error {
	return fmt.Errorf("disk on fire")
}

func (failingSink) FramePath(index int) string { return "" }

func TestRunFailsWhenNothingSucceeds(t *testing.T) {
	cfg := testConfig(t.TempDir(), 3, 2)
	path := pano.NewPath(cfg.Camera)

	extractor, err := New(cfg, path.PoseFor, failingSink{})
	require.NoError(t, err)

	result, err := extractor.Run(context.Background(), testSource(t, 200))
	require.Error(t, err)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 0, result.Succeeded)
	require.Len(t, result.Failures, 3)
	for i, failure := range result.Failures {
		assert.Equal(t, i, failure.Index)
		assert.Equal(t, KindFrameWriteFailure, failure.Kind)
	}
}

func TestRunInvalidConfiguration(t *testing.T) {
	cfg := testConfig(t.TempDir(), 0, 1) // frameCount = 0
	path := pano.NewPath(cfg.Camera)
	sink, err := output.NewFileSink(cfg.Output)
	require.NoError(t, err)

	_, err = New(cfg, path.PoseFor, sink)
	require.Error(t, err)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, KindInvalidConfiguration, fatal.Kind)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 100, 4)
	extractor, _ := newTestExtractor(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := extractor.Run(ctx, testSource(t, 200))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Attempted)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunNilSource(t *testing.T) {
	cfg := testConfig(t.TempDir(), 3, 1)
	extractor, _ := newTestExtractor(t, cfg)

	_, err := extractor.Run(context.Background(), nil)
	require.Error(t, err)

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, KindSourceLoadFailure, fatal.Kind)
}

func TestRunProgressCallback(t *testing.T) {
	cfg := testConfig(t.TempDir(), 6, 1)
	extractor, _ := newTestExtractor(t, cfg)

	var calls []int
	extractor.SetProgress(func(done, total int) {
		assert.Equal(t, 6, total)
		calls = append(calls, done)
	})

	_, err := extractor.Run(context.Background(), testSource(t, 200))
	require.NoError(t, err)

	// With one worker, progress is strictly increasing and ends at total
	require.Len(t, calls, 6)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, calls)
}
