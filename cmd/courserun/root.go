// ABOUTME: Root Cobra command and global flags
// ABOUTME: Sets up logging, configuration, storage, and the course catalog

package main

import (
	"fmt"

	"github.com/harper/courserun/internal/config"
	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfg     *config.Config
	repo    storage.Repository
	catalog *course.Catalog
	logger  = zap.NewNop()
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "courserun",
	Short: "GPS course tracking and completion verification",
	Long: `
 ██████╗ ██████╗ ██╗   ██╗██████╗ ███████╗███████╗██████╗ ██╗   ██╗███╗   ██╗
██╔════╝██╔═══██╗██║   ██║██╔══██╗██╔════╝██╔════╝██╔══██╗██║   ██║████╗  ██║
██║     ██║   ██║██║   ██║██████╔╝███████╗█████╗  ██████╔╝██║   ██║██╔██╗ ██║
██║     ██║   ██║██║   ██║██╔══██╗╚════██║██╔══╝  ██╔══██╗██║   ██║██║╚██╗██║
╚██████╗╚██████╔╝╚██████╔╝██║  ██║███████║███████╗██║  ██║╚██████╔╝██║ ╚████║
 ╚═════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═══╝

     Follow a running course, pass its checkpoints, and prove you finished

Examples:
  courserun course import river.gpx --name "River Loop"
  courserun run river-loop morning.gpx
  courserun verify --screenshot finish.png
  courserun completions`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		repo, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}

		catalog = course.NewCatalog(cfg.GetCourseDir(), course.WithLogger(logger))
		logger.Debug("Storage opened",
			zap.String("backend", cfg.GetBackend()),
			zap.String("data_dir", cfg.GetDataDir()),
			zap.String("course_dir", catalog.Dir()))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		if repo != nil {
			return repo.Close()
		}
		return nil
	},
}

// newLogger writes warnings and above to stderr, or everything with verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
