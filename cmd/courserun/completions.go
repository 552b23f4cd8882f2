// ABOUTME: Completions commands
// ABOUTME: Lists recorded completions and removes them by id prefix

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
)

var completionsCmd = &cobra.Command{
	Use:     "completions [course-id]",
	Aliases: []string{"done"},
	Short:   "List recorded completions, newest first",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		completions, err := repo.ListCompletions()
		if err != nil {
			return fmt.Errorf("failed to list completions: %w", err)
		}

		shown := 0
		for _, c := range completions {
			if len(args) == 1 && c.Summary.CourseID != args[0] {
				continue
			}
			fmt.Println(ui.FormatCompletion(c))
			shown++
		}
		if shown == 0 {
			fmt.Println("No completions recorded yet. Use 'courserun run' to finish a course.")
		}
		return nil
	},
}

var completionsRemoveCmd = &cobra.Command{
	Use:     "remove <id-prefix>",
	Aliases: []string{"rm"},
	Short:   "Remove a completion by completion or session id prefix",
	Long: `Remove a recorded completion. The run's track is kept, so the session can be
recorded again later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := findCompletion(args[0])
		if err != nil {
			return err
		}

		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			fmt.Printf("Remove completion %s? [y/N] ", ui.FormatCompletion(c))
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := repo.DeleteCompletion(c.ID); err != nil {
			return fmt.Errorf("failed to remove completion: %w", err)
		}
		color.Green("✓ Removed completion %s", c.ID.String()[:8])
		return nil
	},
}

// findCompletion resolves a unique completion by id or session id prefix.
func findCompletion(prefix string) (*models.Completion, error) {
	prefix = strings.ToLower(prefix)
	completions, err := repo.ListCompletions()
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	var found *models.Completion
	for _, c := range completions {
		if !strings.HasPrefix(c.ID.String(), prefix) && !strings.HasPrefix(c.Summary.SessionID.String(), prefix) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("id prefix '%s' is ambiguous", prefix)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("completion '%s' not found", prefix)
	}
	return found, nil
}

func init() {
	completionsRemoveCmd.Flags().Bool("confirm", false, "skip confirmation prompt")

	completionsCmd.AddCommand(completionsRemoveCmd)
	rootCmd.AddCommand(completionsCmd)
}
