package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panoflat/panoflat/internal/api"
	"github.com/panoflat/panoflat/internal/config"
	"github.com/panoflat/panoflat/internal/extract"
	"github.com/panoflat/panoflat/internal/logger"
	"github.com/panoflat/panoflat/internal/output"
	"github.com/panoflat/panoflat/internal/pano"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:   "extract INPUT",
	Short: "Extract rectilinear frames from an equirectangular panorama",
	Long: `Extract a sequence of rectilinear frames from a single equirectangular
panorama image. Each frame is rendered by a virtual camera following a
yaw sweep at fixed pitch and field of view, and written as a zero-padded
numbered artifact ready for an external encoder.

A partially successful run (some frames failed) exits with status 2;
fatal errors exit with status 1.`,
	Example: `  # Extract with defaults (360 frames, full sweep, 1280x720)
  panoflat extract pano.jpg

  # Ten frames of a quarter sweep, 8 workers
  panoflat extract pano.png --frames 10 --sweep 90 --start-yaw 0 --concurrency 8

  # Watch progress while extracting
  panoflat extract pano.jpg --status-addr :8080`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.Int("frames", 0, "number of frames to extract")
	f.Int("width", 0, "output frame width in pixels")
	f.Int("height", 0, "output frame height in pixels")
	f.Int("concurrency", 0, "worker count (default: host core count)")
	f.Float64("start-yaw", 0, "camera starting yaw in degrees")
	f.Float64("sweep", 0, "total yaw sweep across the run in degrees")
	f.Float64("pitch", 0, "camera pitch in degrees")
	f.Float64("h-fov", 0, "camera horizontal field of view in degrees")
	f.String("out-dir", "", "output directory for frame artifacts")
	f.String("format", "", "frame format (png or jpeg)")
	f.Int("quality", 0, "JPEG quality (1-100)")
	f.String("interpolation", "", "sampling kernel (nearest or bilinear)")
	f.String("status-addr", "", "serve progress and metrics on this address (e.g. :8080)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	cfg := configMgr.Get()
	applyExtractFlags(cmd, &cfg)

	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.LogLevel = viper.GetString("log_level")
	}
	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	log := logger.WithComponent("extract-cmd")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sink, err := output.NewFileSink(cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	src, err := pano.LoadSource(args[0])
	if err != nil {
		if errors.Is(err, pano.ErrInvalidAspectRatio) {
			return err
		}
		return fmt.Errorf("failed to load source: %w", err)
	}

	path := pano.NewPath(cfg.Camera)
	extractor, err := extract.New(&cfg, path.PoseFor, sink)
	if err != nil {
		return err
	}

	tracker := extract.NewTracker(cfg.FrameCount)
	defer tracker.Close()
	extractor.SetProgress(func(done, total int) {
		tracker.Update(done, total)
		log.Debug().Int("done", done).Int("total", total).Msg("Progress")
	})

	// Optional status server: progress JSON, websocket stream, /metrics
	if cfg.StatusAddr != "" {
		server := api.NewServer(tracker)
		go func() {
			if err := server.Start(cfg.StatusAddr); err != nil {
				log.Error().Err(err).Msg("Status server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := extractor.Run(ctx, src)

	if result != nil {
		for _, failure := range result.Failures {
			log.Warn().
				Int("frame", failure.Index).
				Str("kind", string(failure.Kind)).
				Err(failure.Err).
				Msg("Frame failed")
		}
		log.Info().
			Int("attempted", result.Attempted).
			Int("succeeded", result.Succeeded).
			Int("failed", len(result.Failures)).
			Msg("Run summary")
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("extraction interrupted: %w", runErr)
		}
		return runErr
	}

	log.Info().Msgf("Encode with e.g.: ffmpeg -framerate 30 -i %s -c:v libx264 -pix_fmt yuv420p output.mp4", sink.EncodePattern())

	if result.Partial() {
		// Distinguishable from fatal so callers can decide whether to
		// encode with gaps
		os.Exit(2)
	}
	return nil
}

// applyExtractFlags overlays explicitly-set flags onto the file config
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("frames") {
		cfg.FrameCount, _ = f.GetInt("frames")
	}
	if f.Changed("width") {
		cfg.OutputWidth, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.OutputHeight, _ = f.GetInt("height")
	}
	if f.Changed("concurrency") {
		cfg.Concurrency, _ = f.GetInt("concurrency")
	}
	if f.Changed("start-yaw") {
		cfg.Camera.StartYawDeg, _ = f.GetFloat64("start-yaw")
	}
	if f.Changed("sweep") {
		cfg.Camera.SweepDeg, _ = f.GetFloat64("sweep")
	}
	if f.Changed("pitch") {
		cfg.Camera.PitchDeg, _ = f.GetFloat64("pitch")
	}
	if f.Changed("h-fov") {
		cfg.Camera.HFovDeg, _ = f.GetFloat64("h-fov")
	}
	if f.Changed("out-dir") {
		cfg.Output.Dir, _ = f.GetString("out-dir")
	}
	if f.Changed("format") {
		format, _ := f.GetString("format")
		cfg.Output.Format = config.ImageFormat(format)
	}
	if f.Changed("quality") {
		cfg.Output.JPEGQuality, _ = f.GetInt("quality")
	}
	if f.Changed("interpolation") {
		interp, _ := f.GetString("interpolation")
		cfg.Interpolation = config.Interpolation(interp)
	}
	if f.Changed("status-addr") {
		cfg.StatusAddr, _ = f.GetString("status-addr")
	}
}
