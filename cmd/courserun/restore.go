// ABOUTME: Restore command for importing a YAML backup
// ABOUTME: Adds sessions and completions from a backup created by the backup command

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/storage"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Import data from a YAML backup",
	Long: `Import sessions and completions from a YAML backup file.

This restores data from a backup created with 'courserun backup'.

WARNING: This adds to existing data. A completion already recorded for the
same session stops the import.

Examples:
  courserun restore runs.yaml
  courserun restore ~/backups/courserun-20260501.yaml --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename) //nolint:gosec // user-supplied backup path
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			fmt.Printf("Import data from '%s'? [y/N] ", filename)
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Canceled.")
				return nil
			}
		}

		if err := storage.ImportBackup(repo, data); err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}

		sessions, _ := repo.ListSessions()
		completions, _ := repo.ListCompletions()

		color.Green("Import complete")
		fmt.Printf("  %d sessions, %d completions in database\n", len(sessions), len(completions))

		return nil
	},
}

func init() {
	restoreCmd.Flags().Bool("confirm", false, "skip confirmation prompt")

	rootCmd.AddCommand(restoreCmd)
}
