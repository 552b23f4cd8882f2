// ABOUTME: Course catalog commands
// ABOUTME: Lists, shows, and imports GPX courses into the catalog

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
)

var courseCmd = &cobra.Command{
	Use:     "course",
	Aliases: []string{"courses"},
	Short:   "Manage the course catalog",
}

var courseListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		courses, err := catalog.List()
		if err != nil {
			return fmt.Errorf("failed to list courses: %w", err)
		}

		if len(courses) == 0 {
			fmt.Println("No courses yet. Use 'courserun course import' to add one.")
			return nil
		}

		for _, c := range courses {
			fmt.Println(ui.FormatCourse(c))
		}
		return nil
	},
}

var courseShowCmd = &cobra.Command{
	Use:   "show <course-id>",
	Short: "Show a course and its waypoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Get(args[0])
		if err != nil {
			return fmt.Errorf("course '%s' not found", args[0])
		}

		fmt.Println(ui.FormatCourse(c))
		waypoints := c.Waypoints()
		for i, p := range waypoints {
			label := "checkpoint"
			switch i {
			case 0:
				label = "start"
			case len(waypoints) - 1:
				label = "finish"
			}
			fmt.Printf("  %2d %-10s (%.5f, %.5f)\n", i, label, p.Lat, p.Lng)
		}
		return nil
	},
}

var courseImportCmd = &cobra.Command{
	Use:   "import <file.gpx>",
	Short: "Import a GPX track as a course",
	Long: `Import a GPX track into the course catalog. The track is simplified to
at most --max-points vertices and saved as YAML in the course directory.

Examples:
  courserun course import river.gpx
  courserun course import river.gpx --id river --name "River Loop"
  courserun course import hill.gpx --checkpoints 20,45,70`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		maxPoints, _ := cmd.Flags().GetInt("max-points")
		checkpoints, _ := cmd.Flags().GetIntSlice("checkpoints")

		c, err := catalog.Import(args[0], course.ImportOptions{
			ID:          id,
			Name:        name,
			MaxPoints:   maxPoints,
			Checkpoints: checkpoints,
		})
		if err != nil {
			return fmt.Errorf("failed to import course: %w", err)
		}

		color.Green("✓ Imported course %s", c.ID)
		fmt.Printf("  %s\n", ui.FormatCourse(c))
		return nil
	},
}

func init() {
	courseImportCmd.Flags().String("id", "", "course id (default: slug of the track name)")
	courseImportCmd.Flags().String("name", "", "display name (default: track name)")
	courseImportCmd.Flags().Int("max-points", course.DefaultMaxPoints, "maximum polyline vertices")
	courseImportCmd.Flags().IntSlice("checkpoints", nil, "vertex indices to use as checkpoints")

	courseCmd.AddCommand(courseListCmd, courseShowCmd, courseImportCmd)
	rootCmd.AddCommand(courseCmd)
}
