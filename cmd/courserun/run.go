// ABOUTME: Run command that follows a course with a recorded GPS track
// ABOUTME: Replays the track through the tracker, reporting checkpoints and the finish

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/sampler"
	"github.com/harper/courserun/internal/tracker"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <course-id> <track-file>",
	Short: "Track a run on a course from a GPX or CSV recording",
	Long: `Replay a recorded GPS track against a catalog course. Fixes go through the
same pipeline as live tracking: checkpoints are announced in order, the session
is saved after every fix, and reaching the finish verifies and records the
completion.

If the track ends before the finish, the session stays saved and can be
continued or recorded with 'courserun recover'.

Examples:
  courserun run river-loop morning.gpx
  courserun run river-loop morning.csv --interval 200ms
  courserun run river-loop morning.gpx --screenshot watch.png`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		step, _ := cmd.Flags().GetDuration("step")
		every, _ := cmd.Flags().GetInt("every")
		shot, _ := cmd.Flags().GetString("screenshot")

		c, err := catalog.Get(args[0])
		if err != nil {
			return fmt.Errorf("course '%s' not found", args[0])
		}

		positions, err := readReplay(args[1], time.Now(), step)
		if err != nil {
			return err
		}

		clock := newReplayClock(positions[0].Timestamp)
		provider := sampler.NewReplayProvider(positions, interval)

		finished := make(chan tracker.Update, 1)
		printer := &updatePrinter{every: every}
		t, _ := newTracker(clockedProvider{provider, clock}, clock.Now, func(u tracker.Update) {
			printer.print(u)
			if u.Finished {
				select {
				case finished <- u:
				default:
				}
			}
		})

		fmt.Printf("Starting %s\n", ui.FormatCourse(c))
		if err := t.StartSession(c); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		waitReplay(ctx, provider)

		select {
		case u := <-finished:
			printFinish(u)
			return screenshotFallback(ctx, t, u.Result, shot)
		default:
		}

		sess, err := t.SuspendSession()
		provider.Wait()
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		color.Yellow("Track ended before the finish")
		if sess != nil {
			fmt.Printf("  %s\n", ui.FormatSession(sess))
		}
		fmt.Println("  Use 'courserun recover' to continue or record it.")
		return nil
	},
}

// commandContext returns the command's context, which is nil when RunE is
// called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// waitReplay blocks until the replay runs out or ctx is cancelled.
func waitReplay(ctx context.Context, provider *sampler.ReplayProvider) {
	done := make(chan struct{})
	go func() {
		provider.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// screenshotFallback checks a screenshot when GPS verification asked for one.
func screenshotFallback(ctx context.Context, t *tracker.Tracker, result *models.VerificationResult, path string) error {
	if result == nil || result.Recommendation != models.ScreenshotRequired {
		return nil
	}
	if path == "" {
		color.Yellow("GPS data was not conclusive; pass --screenshot to verify with a running app screenshot.")
		return nil
	}
	image, err := os.ReadFile(path) //nolint:gosec // user-supplied screenshot path
	if err != nil {
		return fmt.Errorf("failed to read screenshot: %w", err)
	}
	fmt.Println(ui.FormatVerification(t.VerifyScreenshot(ctx, image)))
	return nil
}

func init() {
	runCmd.Flags().Duration("interval", 0, "delay between replayed fixes (0 replays as fast as possible)")
	runCmd.Flags().Duration("step", 5*time.Second, "time between fixes for tracks without timestamps")
	runCmd.Flags().Int("every", 10, "print a stats line every N fixes (0 disables)")
	runCmd.Flags().String("screenshot", "", "screenshot to check if GPS verification is not conclusive")

	rootCmd.AddCommand(runCmd)
}
