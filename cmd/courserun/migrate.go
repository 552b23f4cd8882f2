// ABOUTME: Migration command for converting data between storage backends
// ABOUTME: Supports sqlite-to-badger and badger-to-sqlite with safety checks

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/courserun/internal/config"
	"github.com/harper/courserun/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate data between storage backends",
	Long: `Migrate all sessions and completions from the currently configured backend
to a different backend.

Does NOT update the config file; verify the migration was successful, then
run 'courserun config set backend <name>'.

Examples:
  courserun migrate --to badger
  courserun migrate --to sqlite --data-dir ~/courserun-sqlite
  courserun migrate --to badger --force`,
	RunE: runMigrate,
}

var (
	migrateTo      string
	migrateDataDir string
	migrateForce   bool
)

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend (sqlite or badger)")
	migrateCmd.Flags().StringVar(&migrateDataDir, "data-dir", "", "target data directory (defaults to current config data_dir)")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "allow writing into a non-empty target")
	_ = migrateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	sourceBackend := cfg.GetBackend()
	targetBackend := migrateTo

	if targetBackend != config.BackendSQLite && targetBackend != config.BackendBadger {
		return fmt.Errorf("invalid target backend %q: must be \"sqlite\" or \"badger\"", targetBackend)
	}
	if targetBackend == sourceBackend && migrateDataDir == "" {
		return fmt.Errorf("target backend %q is the same as the current backend", targetBackend)
	}

	target := *cfg
	if migrateDataDir != "" {
		target.DataDir = config.ExpandPath(migrateDataDir)
	}
	targetPath := target.StoragePath(targetBackend)

	nonEmpty, err := targetHasData(targetBackend, targetPath)
	if err != nil {
		return fmt.Errorf("check target: %w", err)
	}
	if nonEmpty && !migrateForce {
		return fmt.Errorf("target %q already has data; use --force to write into it", targetPath)
	}

	dst, err := target.OpenBackend(targetBackend)
	if err != nil {
		return fmt.Errorf("open target storage (%s): %w", targetBackend, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: closing target storage: %v\n", cerr)
		}
	}()

	color.Yellow("Migrating courserun data:")
	fmt.Printf("  Source:  %s (%s)\n", sourceBackend, cfg.StoragePath(sourceBackend))
	fmt.Printf("  Target:  %s (%s)\n", targetBackend, targetPath)
	fmt.Println()

	summary, err := storage.MigrateData(repo, dst)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	color.Green("Migration complete!")
	fmt.Printf("  Sessions:    %d\n", summary.Sessions)
	fmt.Printf("  Completions: %d\n", summary.Completions)
	if summary.Active {
		fmt.Println("  Active session carried over")
	}
	fmt.Println()
	color.Yellow("Note: config.json was NOT updated. To switch to the new backend run:")
	fmt.Printf("  courserun config set backend %s\n", targetBackend)
	if migrateDataDir != "" {
		fmt.Printf("  courserun config set data_dir %s\n", migrateDataDir)
	}

	return nil
}

// targetHasData reports whether the target backend already holds data.
func targetHasData(backend, path string) (bool, error) {
	if backend == config.BackendBadger {
		return storage.IsDirNonEmpty(path)
	}
	return storage.FileExists(path)
}
