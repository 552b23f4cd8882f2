// ABOUTME: Export command for GeoJSON maps, markdown reports, and YAML dumps
// ABOUTME: GeoJSON covers a course, a recorded session, or both overlaid

package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/geojson"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/storage"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"e"},
	Short:   "Export courses, sessions, and completions",
	Long: `Export as GeoJSON, Markdown, or YAML.

Examples:
  # Course line with start, checkpoints, and finish
  courserun export --course river-loop

  # A recorded run over its course
  courserun export --course river-loop --session 3f2a9c1e-8d4b-4c2a-9e1f-0a1b2c3d4e5f

  # The active session as individual fixes
  courserun export --session active --geometry points

  # Completion report
  courserun export --format markdown --course river-loop

  # Save to file
  courserun export --course river-loop --output river.geojson`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		geometry, _ := cmd.Flags().GetString("geometry")
		courseID, _ := cmd.Flags().GetString("course")
		sessionID, _ := cmd.Flags().GetString("session")
		output, _ := cmd.Flags().GetString("output")

		if geometry != "line" && geometry != "points" {
			return fmt.Errorf("unsupported geometry: %s (use 'line' or 'points')", geometry)
		}

		var (
			data []byte
			err  error
		)
		switch format {
		case "geojson":
			data, err = exportGeoJSON(courseID, sessionID, geometry)
		case "markdown":
			data, err = storage.ExportToMarkdown(repo, courseID)
		case "yaml":
			data, err = storage.ExportToYAML(repo)
		default:
			return fmt.Errorf("unsupported format: %s (use 'geojson', 'markdown', or 'yaml')", format)
		}
		if err != nil {
			return err
		}

		if output == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(output, data, 0644); err != nil { //nolint:gosec // 0644 is intentional for export files
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Exported to %s\n", output)
		return nil
	},
}

func exportGeoJSON(courseID, sessionID, geometry string) ([]byte, error) {
	if courseID == "" && sessionID == "" {
		return nil, fmt.Errorf("geojson export needs --course, --session, or both")
	}

	fc := geojson.NewFeatureCollection()
	if courseID != "" {
		c, err := catalog.Get(courseID)
		if err != nil {
			return nil, fmt.Errorf("course '%s' not found", courseID)
		}
		fc.Add(geojson.Course(c).Features...)
	}
	if sessionID != "" {
		sess, err := lookupSession(sessionID)
		if err != nil {
			return nil, err
		}
		if geometry == "points" {
			fc.Add(geojson.Fixes(sess).Features...)
		} else {
			fc.Add(geojson.Session(sess).Features...)
		}
	}

	data, err := fc.ToJSONIndent()
	if err != nil {
		return nil, fmt.Errorf("failed to encode geojson: %w", err)
	}
	return data, nil
}

// lookupSession resolves "active" or a session UUID.
func lookupSession(id string) (*models.TrackingSession, error) {
	if id == "active" {
		sess, err := repo.LoadActiveSession()
		if err != nil {
			return nil, fmt.Errorf("no active session")
		}
		return sess, nil
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	sess, err := repo.GetSession(uid)
	if err != nil {
		return nil, fmt.Errorf("session '%s' not found", id)
	}
	return sess, nil
}

func init() {
	exportCmd.Flags().StringP("format", "f", "geojson", "output format (geojson, markdown, yaml)")
	exportCmd.Flags().StringP("geometry", "g", "line", "session geometry (line, points)")
	exportCmd.Flags().StringP("course", "c", "", "course id (filters markdown reports)")
	exportCmd.Flags().StringP("session", "s", "", "session id or 'active'")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(exportCmd)
}
