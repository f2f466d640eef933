package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "panoflat",
		Short: "panoflat - rectilinear frame extraction from 360° panoramas",
		Long: `panoflat turns a single equirectangular (360°) panorama into a
sequence of rectilinear frames, each rendered by a virtual camera
sweeping across the sphere. The numbered frame sequence is ready for an
external encoder (e.g. ffmpeg) to assemble into a video.

Features:
  • Native gnomonic projection with seam-free bilinear sampling
  • Parallel, deterministic frame extraction
  • Crash-safe, resumable output (atomic per-frame commits)
  • Optional live status server with progress streaming and metrics`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/panoflat/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable log output")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
