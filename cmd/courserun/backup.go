// ABOUTME: Backup command for exporting data to YAML
// ABOUTME: Creates portable backup files for data migration

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/storage"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a YAML backup of all data",
	Long: `Create a YAML backup file containing all sessions and completions.

The backup file can be used to:
- Move runs between machines
- Restore after data loss
- Import into a fresh database

Examples:
  courserun backup --output runs.yaml
  courserun backup -o ~/backups/courserun-$(date +%Y%m%d).yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		data, err := storage.ExportBackup(repo)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}

		if output == "" {
			output = fmt.Sprintf("courserun-%s.yaml", time.Now().Format("20060102-150405"))
		}

		if err := os.WriteFile(output, data, 0644); err != nil { //nolint:gosec // 0644 is intentional for backup files
			return fmt.Errorf("failed to write backup: %w", err)
		}

		sessions, _ := repo.ListSessions()
		completions, _ := repo.ListCompletions()

		color.Green("Backup created: %s", output)
		fmt.Printf("  %d sessions, %d completions\n", len(sessions), len(completions))

		return nil
	},
}

func init() {
	backupCmd.Flags().StringP("output", "o", "", "output file (default: courserun-YYYYMMDD-HHMMSS.yaml)")

	rootCmd.AddCommand(backupCmd)
}
