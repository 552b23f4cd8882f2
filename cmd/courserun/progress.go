// ABOUTME: Progress command for a single position on a course
// ABOUTME: Reports distance done, off-course state, and the next turn

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/geojson"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress <course-id> <latitude> <longitude>",
	Short: "Show progress along a course for a position",
	Long: `Project a position onto a course and report how far along it is.

Examples:
  courserun progress river-loop 47.6101 -122.3321
  courserun progress --pace 5.5 river-loop 47.6101 -122.3321
  courserun progress --geojson split.geojson river-loop 47.6101 -122.3321

Flags go before the course id so negative coordinates are not read as flags.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pace, _ := cmd.Flags().GetFloat64("pace")
		out, _ := cmd.Flags().GetString("geojson")

		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude: %w", err)
		}
		lng, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude: %w", err)
		}
		if err := models.ValidateCoordinates(lat, lng); err != nil {
			return err
		}

		c, err := catalog.Get(args[0])
		if err != nil {
			return fmt.Errorf("course '%s' not found", args[0])
		}
		r, err := route.Index(c.Polyline, cfg.RouteOptions()...)
		if err != nil {
			return fmt.Errorf("failed to index course: %w", err)
		}

		here := geo.Point{Lat: lat, Lng: lng}
		p := r.Progress(here, pace)
		fmt.Println(ui.FormatCourse(c))
		fmt.Printf("  %s\n", ui.FormatProgress(p))
		if turn, ok := r.NextTurn(p.CurrentSegmentIndex, route.DefaultLookahead); ok {
			fmt.Printf("  %s\n", ui.FormatTurn(turn))
		}

		if out == "" {
			return nil
		}
		data, err := geojson.Progress(r, p, here).ToJSONIndent()
		if err != nil {
			return fmt.Errorf("failed to encode geojson: %w", err)
		}
		if err := os.WriteFile(out, data, 0644); err != nil { //nolint:gosec // 0644 is intentional for export files
			return fmt.Errorf("failed to write geojson: %w", err)
		}
		return nil
	},
}

func init() {
	progressCmd.Flags().Float64("pace", 0, "average pace in min/km for the time estimate")
	progressCmd.Flags().String("geojson", "", "write the passed/upcoming split as GeoJSON")
	progressCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(progressCmd)
}
