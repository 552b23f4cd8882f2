// ABOUTME: Shared wiring for commands that drive a tracker
// ABOUTME: Builds sampler and tracker from config and replays recorded tracks on their own clock

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/sampler"
	"github.com/harper/courserun/internal/screenshot"
	"github.com/harper/courserun/internal/tracker"
	"github.com/harper/courserun/internal/ui"
	"github.com/harper/courserun/internal/verify"
)

// replayClock follows the timestamps of replayed fixes so elapsed time
// matches the recording rather than the replay speed.
type replayClock struct {
	mu  sync.Mutex
	now time.Time
}

func newReplayClock(start time.Time) *replayClock {
	return &replayClock{now: start}
}

func (c *replayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *replayClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// clockedProvider moves the clock to each fix's timestamp before delivery.
type clockedProvider struct {
	sampler.LocationProvider
	clock *replayClock
}

func (p clockedProvider) WatchPosition(onFix func(models.RawPosition), onError func(error), opts sampler.WatchOptions) (sampler.WatchID, error) {
	return p.LocationProvider.WatchPosition(func(raw models.RawPosition) {
		p.clock.Set(raw.Timestamp)
		onFix(raw)
	}, onError, opts)
}

// stampPositions gives untimed positions timestamps step apart, continuing
// from the last timed one or from start.
func stampPositions(positions []models.RawPosition, start time.Time, step time.Duration) {
	next := start
	for i := range positions {
		if positions[i].Timestamp.IsZero() {
			positions[i].Timestamp = next
		}
		next = positions[i].Timestamp.Add(step)
	}
}

// readReplay loads a track file and stamps untimed fixes from start.
func readReplay(path string, start time.Time, step time.Duration) ([]models.RawPosition, error) {
	positions, err := course.ReadTrack(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("track %s has no positions", path)
	}
	stampPositions(positions, start, step)
	return positions, nil
}

func newVerifier() *verify.Verifier {
	return verify.New(cfg.Verification)
}

func newScreenshotVerifier() *screenshot.Verifier {
	ocr := screenshot.NewTesseractOCR()
	ocr.Binary = cfg.GetTesseract()
	return screenshot.New(ocr, cfg.Screenshot)
}

// newTracker builds a sampler over provider and a tracker persisting to repo.
func newTracker(provider sampler.LocationProvider, now func() time.Time, onUpdate func(tracker.Update)) (*tracker.Tracker, *sampler.Sampler) {
	opts := append([]sampler.Option{
		sampler.WithLogger(logger.Named("sampler")),
		sampler.WithClock(now),
	}, cfg.SamplerOptions()...)
	samp := sampler.New(provider, repo, opts...)
	t := tracker.New(samp, repo,
		tracker.WithLogger(logger.Named("tracker")),
		tracker.WithClock(now),
		tracker.WithVerifier(newVerifier()),
		tracker.WithScreenshotVerifier(newScreenshotVerifier()),
		tracker.WithRouteOptions(cfg.RouteOptions()...),
		tracker.WithCheckpointOptions(cfg.CheckpointOptions()...),
		tracker.WithCompletionCriteria(cfg.Completion),
		tracker.WithUpdateHandler(onUpdate))
	return t, samp
}

// updatePrinter prints checkpoint events as they happen and a stats line
// every n accepted fixes.
type updatePrinter struct {
	every     int
	count     int
	offCourse bool
}

func (p *updatePrinter) print(u tracker.Update) {
	if u.Err != nil {
		fmt.Println(color.YellowString("! %v", u.Err))
	}
	if !u.Accepted {
		return
	}
	p.count++

	for _, ev := range u.Events {
		fmt.Println(ui.FormatEvent(ev))
	}
	if u.Progress.IsOffCourse != p.offCourse {
		p.offCourse = u.Progress.IsOffCourse
		fmt.Println(ui.FormatProgress(u.Progress))
	}
	if p.every > 0 && p.count%p.every == 0 {
		line := ui.FormatStats(u.Stats)
		if u.Turn != nil {
			line += "  " + ui.FormatTurn(*u.Turn)
		}
		fmt.Println(line)
	}
}

// printFinish reports a finished run and its recorded completion.
func printFinish(u tracker.Update) {
	color.Green("✓ Finished in %s", ui.FormatDuration(u.Stats.Duration))
	fmt.Printf("  %s\n", ui.FormatStats(u.Stats))
	if u.Check != nil && !u.Check.Completed {
		color.Yellow("  Completion criteria not met: %s", u.Check.Reason)
	}
	if u.Result != nil {
		fmt.Println(ui.FormatVerification(*u.Result))
	}
	if u.Completion != nil {
		fmt.Printf("  completion %s recorded\n", u.Completion.ID)
	}
}
