// ABOUTME: Terminal UI formatting utilities
// ABOUTME: Human-readable output for courses, live run stats, verification, and completions

package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harper/courserun/internal/checkpoint"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
)

var faint = color.New(color.Faint)

// FormatDistance renders meters as "850 m" below a kilometer and "4.98 km" above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

// FormatDuration renders a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatPace renders min/km as 5'30"/km, or --'--" when unknown.
func FormatPace(minPerKm float64) string {
	if minPerKm <= 0 || math.IsInf(minPerKm, 0) || math.IsNaN(minPerKm) {
		return `--'--"/km`
	}
	secs := int(math.Round(minPerKm * 60))
	return fmt.Sprintf(`%d'%02d"/km`, secs/60, secs%60)
}

// FormatStats renders live run stats on one line.
func FormatStats(s models.RunningStats) string {
	return fmt.Sprintf("%s  %s  %s  %.1f km/h  %s",
		color.CyanString(FormatDistance(s.Distance)),
		FormatDuration(s.Duration),
		FormatPace(s.Pace),
		s.Speed,
		faint.Sprintf("%.0f%%", s.Progress*100))
}

// FormatProgress renders route progress, flagging when off course.
func FormatProgress(p route.Progress) string {
	out := fmt.Sprintf("%.1f%% done, %s to go",
		p.ProgressPercent, FormatDistance(p.RemainingDistance))
	if p.EstimatedRemainingTime > 0 {
		eta := time.Duration(p.EstimatedRemainingTime * float64(time.Minute))
		out += faint.Sprintf(" (~%s)", FormatDuration(eta))
	}
	if p.IsOffCourse {
		out += " " + color.RedString("OFF COURSE %s", FormatDistance(p.DistanceToRoute))
	}
	return out
}

// FormatTurn renders an upcoming turn.
func FormatTurn(t route.Turn) string {
	return color.YellowString("%s", t.Description)
}

// FormatEvent renders a checkpoint event.
func FormatEvent(ev checkpoint.Event) string {
	if ev.Kind == checkpoint.KindFinish {
		return color.GreenString("Finish reached (%.0f m away)", ev.Distance)
	}
	return color.GreenString("Checkpoint %d reached (%.0f m away)", ev.Index, ev.Distance)
}

// FormatRecommendation colors a recommendation by severity.
func FormatRecommendation(r models.Recommendation) string {
	switch r {
	case models.AutoApprove:
		return color.GreenString("%s", r)
	case models.ManualReview:
		return color.YellowString("%s", r)
	default:
		return color.RedString("%s", r)
	}
}

// FormatVerification renders a verification result with its sub-scores and issues.
func FormatVerification(res models.VerificationResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  confidence %.2f  %s\n",
		FormatRecommendation(res.Recommendation),
		res.Confidence,
		faint.Sprintf("(%s)", res.Source))

	if res.Source == models.SourceGPS {
		m := res.Metrics
		fmt.Fprintf(&sb, "  data %.2f  route %.2f  speed %.2f  duration %.2f  distance %.2f km\n",
			m.DataQuality, m.RouteConsistency, m.SpeedProfile, m.Duration, m.Distance)
	}
	for _, issue := range res.Issues {
		fmt.Fprintf(&sb, "  %s %s\n", color.YellowString("!"), issue)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatCourse renders a course for listings.
func FormatCourse(c *models.Course) string {
	if c == nil {
		return faint.Sprint("(no course)")
	}
	return fmt.Sprintf("%s %s - %s, %d waypoints",
		color.GreenString(c.ID),
		c.Name,
		FormatDistance(c.TotalDistance),
		len(c.Waypoints()))
}

// FormatCompletion renders a recorded completion for listings.
func FormatCompletion(c *models.Completion) string {
	if c == nil {
		return faint.Sprint("(no completion)")
	}
	s := c.Summary
	return fmt.Sprintf("%s %s  %s in %s  %s %s",
		color.CyanString(s.CourseID),
		faint.Sprint(s.SessionID.String()[:8]),
		FormatDistance(s.Distance),
		FormatDuration(s.Elapsed),
		FormatRecommendation(c.Result.Recommendation),
		faint.Sprintf("(%s)", FormatRelativeTime(c.RecordedAt)))
}

// FormatSession renders a stored session for recovery prompts.
func FormatSession(s *models.TrackingSession) string {
	if s == nil {
		return faint.Sprint("(no session)")
	}
	state := color.GreenString("active")
	if !s.IsActive {
		state = faint.Sprint("stopped")
	}
	return fmt.Sprintf("%s on %s - %d fixes, started %s, %s",
		s.ID.String()[:8],
		color.CyanString(s.CourseID),
		len(s.Fixes),
		FormatRelativeTime(s.StartTime),
		state)
}

// FormatRelativeTime formats a time as relative to now.
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	// Handle future times (clock skew, bad data)
	if diff < 0 {
		return color.YellowString("in the future")
	}

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(diff.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
