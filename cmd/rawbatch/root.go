package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rawbatch/rawbatch/internal/cli"
	"github.com/rawbatch/rawbatch/internal/cli/config"
	"github.com/rawbatch/rawbatch/pkg/converter"
)

var (
	// Set during build with -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile     string
	profileName string
	verbose     bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "rawbatch -i <inputDir> -o <outputDir>",
	Short: "Batch-converts camera RAW files to JPEG.",
	Long: `rawbatch recursively scans a directory for camera RAW files (NEF, ARW,
CR2/CR3, DNG, ORF, RW2 and more), renders them through dcraw, and writes
JPEG output mirroring the source directory layout.

It features:
  - Parallel conversion with a configurable worker pool.
  - ICC camera profile embedding with per-brand/model/scene lookup.
  - Incremental runs that skip up-to-date output files.
  - A machine-readable run report (text, JSON, or YAML).
  - An interactive terminal view for monitoring progress.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts, logger, err := config.LoadAndValidate(cfgFile, profileName, version, verbose, cmd.Flags())
		if err != nil {
			return err
		}

		return cli.Run(ctx, opts, logger)
	},
}

// Execute runs the root command. Cobra prints the error and exits non-zero
// when RunE fails.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default searches ., $HOME/.config/rawbatch/)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output (disables the interactive view)")

	rootCmd.PersistentFlags().StringP("input", "i", "", "Required. RAW source directory path.")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Required. Output directory path for JPEG files.")
	_ = rootCmd.MarkPersistentFlagRequired("input")
	_ = rootCmd.MarkPersistentFlagRequired("output")

	// Core behavior flags. Names align with the Viper keys bound in
	// internal/cli/config.
	rootCmd.Flags().IntP("quality", "q", converter.DefaultQuality, "JPEG quality factor (1-100)")
	rootCmd.Flags().StringSlice("extensions", converter.DefaultExtensions, "RAW file extensions to convert")
	rootCmd.Flags().IntP("concurrency", "j", converter.DefaultConcurrency, "Number of parallel workers")
	rootCmd.Flags().String("on-error", string(converter.DefaultOnErrorMode), `Behavior on per-file errors ("continue" or "stop")`)
	rootCmd.Flags().Bool("skip-existing", converter.DefaultSkipExisting, "Skip files whose JPEG output is newer than the source")
	rootCmd.Flags().Bool("no-tui", false, "Disable the interactive terminal view even in a TTY")
	rootCmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Final report format ("text", "json", "yaml")`)

	// ICC profile flags
	rootCmd.Flags().String("profile-dir", "", "Directory containing ICC camera profiles (.icm/.icc)")
	rootCmd.Flags().String("brand", "", "Override detected camera brand for profile lookup")
	rootCmd.Flags().String("model", "", "Override detected camera model for profile lookup")
	rootCmd.Flags().String("scene", "", "Scene profile selector (e.g. \"landscape\", \"portrait\")")
	rootCmd.Flags().Bool("strict-profile", converter.DefaultStrictProfile, "Fail files that have no exact ICC profile match")

	// Decoder flags
	rootCmd.Flags().String("dcraw-path", converter.DefaultDcrawPath, "Path to the dcraw binary")
	rootCmd.Flags().Bool("camera-wb", true, "Use the camera's recorded white balance")
	rootCmd.Flags().Bool("auto-wb", false, "Compute white balance from the whole image")
	rootCmd.Flags().Float64("brightness", 1.0, "Brightness multiplier applied during rendering")
	rootCmd.Flags().Bool("half-size", false, "Render at half resolution (much faster)")
	rootCmd.Flags().Bool("preserve-highlights", false, "Rebuild clipped highlights instead of clipping")
	rootCmd.Flags().Bool("four-color", false, "Interpolate using four-color RGB")
}
