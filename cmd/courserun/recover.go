// ABOUTME: Recover command for sessions interrupted before the finish
// ABOUTME: Shows, resumes, records, or discards the saved session

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/sampler"
	"github.com/harper/courserun/internal/tracker"
	"github.com/harper/courserun/internal/ui"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Resume, record, or discard an interrupted session",
	Long: `Look for a session saved less than 24 hours ago that never reached the
finish. Older sessions are discarded.

Examples:
  courserun recover
  courserun recover --resume rest-of-run.gpx
  courserun recover --record
  courserun recover --discard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetString("resume")
		record, _ := cmd.Flags().GetBool("record")
		discard, _ := cmd.Flags().GetBool("discard")

		chosen := 0
		for _, set := range []bool{resume != "", record, discard} {
			if set {
				chosen++
			}
		}
		if chosen > 1 {
			return fmt.Errorf("use only one of --resume, --record, or --discard")
		}

		if resume != "" {
			return resumeSession(cmd, resume)
		}

		t, samp := newTracker(sampler.NewReplayProvider(nil, 0), time.Now, nil)
		sess, err := t.Recover()
		if err != nil {
			return fmt.Errorf("failed to recover session: %w", err)
		}
		if sess == nil {
			fmt.Println("No session to recover.")
			return nil
		}
		fmt.Println(ui.FormatSession(sess))

		switch {
		case discard:
			if err := samp.Clear(); err != nil {
				return fmt.Errorf("failed to discard session: %w", err)
			}
			color.Green("✓ Discarded session %s", sess.ID.String()[:8])
		case record:
			c, err := recoveredCourse(sess)
			if err != nil {
				return err
			}
			closeSession(sess)
			completion, err := t.RecordSession(sess, c)
			if err != nil {
				return fmt.Errorf("failed to record session: %w", err)
			}
			color.Green("✓ Recorded completion %s", completion.ID)
			fmt.Println(ui.FormatVerification(completion.Result))
		default:
			fmt.Println("  Use --resume <track>, --record, or --discard.")
		}
		return nil
	},
}

// resumeSession continues the saved session with the fixes in trackPath.
func resumeSession(cmd *cobra.Command, trackPath string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	step, _ := cmd.Flags().GetDuration("step")

	peek, err := repo.LoadActiveSession()
	if err != nil {
		return fmt.Errorf("no session to resume")
	}
	start := time.Now()
	if n := len(peek.Fixes); n > 0 {
		start = peek.Fixes[n-1].Timestamp.Add(step)
	}

	positions, err := readReplay(trackPath, start, step)
	if err != nil {
		return err
	}

	clock := newReplayClock(positions[0].Timestamp)
	provider := sampler.NewReplayProvider(positions, interval)
	finished := make(chan tracker.Update, 1)
	printer := &updatePrinter{every: 10}
	t, _ := newTracker(clockedProvider{provider, clock}, clock.Now, func(u tracker.Update) {
		printer.print(u)
		if u.Finished {
			select {
			case finished <- u:
			default:
			}
		}
	})

	sess, err := t.Recover()
	if err != nil {
		return fmt.Errorf("failed to recover session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("no session to resume")
	}
	c, err := catalog.Get(sess.CourseID)
	if err != nil {
		return fmt.Errorf("course '%s' not found", sess.CourseID)
	}

	if err := t.ResumeRecovered(sess, c); err != nil {
		if errors.Is(err, tracker.ErrAlreadyFinished) {
			return fmt.Errorf("session %s already reached the finish; use 'courserun recover --record'", sess.ID.String()[:8])
		}
		return fmt.Errorf("failed to resume session: %w", err)
	}
	fmt.Printf("Resumed %s\n", ui.FormatSession(sess))

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	waitReplay(ctx, provider)

	select {
	case u := <-finished:
		printFinish(u)
		return nil
	default:
	}

	if _, err := t.SuspendSession(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	provider.Wait()
	color.Yellow("Track ended before the finish; the session is still saved.")
	return nil
}

// recoveredCourse looks up the session's course. A course that has since
// left the catalog only skips the endpoint checks.
func recoveredCourse(sess *models.TrackingSession) (*models.Course, error) {
	c, err := catalog.Get(sess.CourseID)
	if errors.Is(err, course.ErrNotFound) {
		color.Yellow("Course %s is no longer in the catalog", sess.CourseID)
		return nil, nil
	}
	return c, err
}

// closeSession ends a session interrupted mid-run at its last fix.
func closeSession(sess *models.TrackingSession) {
	if sess.EndTime != nil {
		return
	}
	end := sess.StartTime
	if n := len(sess.Fixes); n > 0 {
		end = sess.Fixes[n-1].Timestamp
	}
	sess.EndTime = &end
	sess.IsActive = false
}

func init() {
	recoverCmd.Flags().String("resume", "", "continue the session with fixes from a GPX or CSV track")
	recoverCmd.Flags().Bool("record", false, "verify and record the session as it stands")
	recoverCmd.Flags().Bool("discard", false, "delete the saved session")
	recoverCmd.Flags().Duration("interval", 0, "delay between replayed fixes")
	recoverCmd.Flags().Duration("step", 5*time.Second, "time between fixes for tracks without timestamps")

	rootCmd.AddCommand(recoverCmd)
}
