// ABOUTME: Verify command for scoring a session and an optional screenshot
// ABOUTME: Runs the GPS and screenshot checks concurrently and prints both

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/screenshot"
	"github.com/harper/courserun/internal/storage"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [session-id]",
	Short: "Score how likely a run is genuine",
	Long: `Score a session's GPS track and, with --screenshot, a running app screenshot.
Without a session id the saved active session is used.

Examples:
  courserun verify
  courserun verify 3f2a9c1e-8d4b-4c2a-9e1f-0a1b2c3d4e5f
  courserun verify --screenshot finish.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shot, _ := cmd.Flags().GetString("screenshot")

		sess, err := sessionForVerify(args)
		if err != nil && (shot == "" || !errors.Is(err, storage.ErrNotFound)) {
			return err
		}

		var c *models.Course
		if sess != nil {
			c, _ = catalog.Get(sess.CourseID)
			fmt.Println(ui.FormatSession(sess))
		}

		var (
			gps      *models.VerificationResult
			analysis *screenshot.Analysis
		)
		g, ctx := errgroup.WithContext(commandContext(cmd))
		if sess != nil {
			g.Go(func() error {
				res := newVerifier().Verify(sess, c)
				gps = &res
				return nil
			})
		}
		if shot != "" {
			g.Go(func() error {
				image, err := os.ReadFile(shot) //nolint:gosec // user-supplied screenshot path
				if err != nil {
					return fmt.Errorf("failed to read screenshot: %w", err)
				}
				a := newScreenshotVerifier().Analyze(ctx, image)
				analysis = &a
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if gps != nil {
			fmt.Println(color.New(color.Bold).Sprint("GPS"))
			fmt.Println(ui.FormatVerification(*gps))
		}
		if analysis != nil {
			fmt.Println(color.New(color.Bold).Sprint("Screenshot"))
			fmt.Println(ui.FormatVerification(analysis.Result()))
			printExtracted(analysis.Extracted)
		}
		return nil
	},
}

// sessionForVerify loads the named session or the active one.
func sessionForVerify(args []string) (*models.TrackingSession, error) {
	if len(args) == 0 {
		sess, err := repo.LoadActiveSession()
		if err != nil {
			return nil, fmt.Errorf("no active session: %w", err)
		}
		return sess, nil
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	sess, err := repo.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("session '%s' not found: %w", args[0], err)
	}
	return sess, nil
}

func printExtracted(e screenshot.Extracted) {
	for _, f := range []struct{ label, value string }{
		{"distance", e.Distance},
		{"duration", e.Duration},
		{"pace", e.Pace},
		{"speed", e.Speed},
		{"calories", e.Calories},
	} {
		if f.value != "" {
			fmt.Printf("  %-9s %s\n", f.label, f.value)
		}
	}
}

func init() {
	verifyCmd.Flags().StringP("screenshot", "s", "", "running app screenshot to check")

	rootCmd.AddCommand(verifyCmd)
}
