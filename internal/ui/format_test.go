// ABOUTME: Unit tests for terminal UI formatting
// ABOUTME: Tests human-readable output for stats, progress, verification, and completions

package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/checkpoint"
	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
)

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0 m"},
		{850.4, "850 m"},
		{1000, "1.00 km"},
		{4990, "4.99 km"},
	}
	for _, tc := range tests {
		if got := FormatDistance(tc.meters); got != tc.want {
			t.Errorf("FormatDistance(%v) = %q, want %q", tc.meters, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{65 * time.Second, "1:05"},
		{32*time.Minute + 10*time.Second, "32:10"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tc := range tests {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestFormatPace(t *testing.T) {
	if got := FormatPace(5.5); got != `5'30"/km` {
		t.Errorf("got %q", got)
	}
	if got := FormatPace(0); got != `--'--"/km` {
		t.Errorf("got %q", got)
	}
}

func TestFormatStats(t *testing.T) {
	out := FormatStats(models.RunningStats{Distance: 1000.8, Duration: 5 * time.Minute, Speed: 12, Pace: 5, Progress: 0.5})
	for _, want := range []string{"1.00 km", "5:00", `5'00"/km`, "12.0 km/h", "50%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	out := FormatProgress(route.Progress{ProgressPercent: 50, RemainingDistance: 111.2, EstimatedRemainingTime: 1.5})
	if !strings.Contains(out, "50.0% done") || !strings.Contains(out, "111 m to go") || !strings.Contains(out, "1:30") {
		t.Errorf("unexpected progress output %q", out)
	}
	if strings.Contains(out, "OFF COURSE") {
		t.Error("on-course progress flagged off course")
	}

	out = FormatProgress(route.Progress{IsOffCourse: true, DistanceToRoute: 1000})
	if !strings.Contains(out, "OFF COURSE 1.00 km") {
		t.Errorf("expected off-course flag, got %q", out)
	}
}

func TestFormatEvent(t *testing.T) {
	cp := FormatEvent(checkpoint.Event{Kind: checkpoint.KindCheckpoint, Index: 2, Distance: 12})
	if !strings.Contains(cp, "Checkpoint 2") {
		t.Errorf("got %q", cp)
	}
	fin := FormatEvent(checkpoint.Event{Kind: checkpoint.KindFinish, Index: 3, Distance: 40})
	if !strings.Contains(fin, "Finish") {
		t.Errorf("got %q", fin)
	}
	turn := FormatTurn(route.Turn{Description: "Turn right in 80 m"})
	if !strings.Contains(turn, "Turn right") {
		t.Errorf("got %q", turn)
	}
}

func TestFormatVerification(t *testing.T) {
	res := models.VerificationResult{
		Confidence:     0.45,
		Issues:         []string{"average speed is too high (vehicle suspected)"},
		Recommendation: models.ScreenshotRequired,
		Source:         models.SourceGPS,
		Metrics:        models.VerificationMetrics{DataQuality: 1, Distance: 6},
	}

	out := FormatVerification(res)

	for _, want := range []string{"SCREENSHOT_REQUIRED", "0.45", "vehicle suspected", "6.00 km"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	res.Source = models.SourceScreenshot
	if strings.Contains(FormatVerification(res), "distance") {
		t.Error("screenshot results should not show GPS metrics")
	}
}

func TestFormatCourse(t *testing.T) {
	c, err := models.NewCourse("river", "River Line", []geo.Point{{Lat: 37.5, Lng: 127}, {Lat: 37.51, Lng: 127}})
	if err != nil {
		t.Fatalf("failed to build course: %v", err)
	}
	out := FormatCourse(c)
	if !strings.Contains(out, "river") || !strings.Contains(out, "1.11 km") || !strings.Contains(out, "2 waypoints") {
		t.Errorf("unexpected course output %q", out)
	}
	if !strings.Contains(FormatCourse(nil), "no course") {
		t.Error("expected placeholder for nil course")
	}
}

func TestFormatCompletion(t *testing.T) {
	c := models.NewCompletion(models.SessionSummary{
		SessionID: uuid.New(),
		CourseID:  "river",
		Elapsed:   30 * time.Minute,
		Distance:  4975,
	}, models.VerificationResult{Recommendation: models.AutoApprove})
	c.RecordedAt = time.Now().Add(-2 * time.Hour)

	out := FormatCompletion(c)
	for _, want := range []string{"river", "30:00", "AUTO_APPROVE", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestFormatSession(t *testing.T) {
	s := models.NewTrackingSession("river", time.Now().Add(-5*time.Minute))
	out := FormatSession(s)
	if !strings.Contains(out, "river") || !strings.Contains(out, "active") || !strings.Contains(out, "5 minutes ago") {
		t.Errorf("unexpected session output %q", out)
	}
	s.IsActive = false
	if !strings.Contains(FormatSession(s), "stopped") {
		t.Error("expected stopped marker")
	}
}

func TestFormatRelativeTime(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		contains string
	}{
		{"just_now", 30 * time.Second, "just now"},
		{"one_minute", 1 * time.Minute, "1 minute ago"},
		{"five_minutes", 5 * time.Minute, "5 minutes ago"},
		{"one_hour", 1 * time.Hour, "1 hour ago"},
		{"two_hours", 2 * time.Hour, "2 hours ago"},
		{"one_day", 25 * time.Hour, "1 day ago"},
		{"multiple_days", 72 * time.Hour, "3 days ago"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tm := time.Now().Add(-tc.duration)
			result := FormatRelativeTime(tm)
			if !strings.Contains(result, tc.contains) {
				t.Errorf("FormatRelativeTime for %v: expected to contain %q, got %q", tc.duration, tc.contains, result)
			}
		})
	}
}

func TestFormatRelativeTime_FutureTime(t *testing.T) {
	futureTime := time.Now().Add(1 * time.Hour)
	result := FormatRelativeTime(futureTime)
	if !strings.Contains(result, "future") {
		t.Errorf("expected future time message, got %q", result)
	}
}

func TestFormatRelativeTime_EdgeCases(t *testing.T) {
	// Test just under one minute
	tm := time.Now().Add(-59 * time.Second)
	result := FormatRelativeTime(tm)
	if !strings.Contains(result, "just now") {
		t.Errorf("59 seconds ago should be 'just now', got %q", result)
	}

	// Test exactly one minute
	tm = time.Now().Add(-60 * time.Second)
	result = FormatRelativeTime(tm)
	if !strings.Contains(result, "minute") {
		t.Errorf("60 seconds ago should contain 'minute', got %q", result)
	}

	// Test 59 minutes
	tm = time.Now().Add(-59 * time.Minute)
	result = FormatRelativeTime(tm)
	if !strings.Contains(result, "59 minutes") {
		t.Errorf("59 minutes ago should be '59 minutes ago', got %q", result)
	}

	// Test 23 hours
	tm = time.Now().Add(-23 * time.Hour)
	result = FormatRelativeTime(tm)
	if !strings.Contains(result, "23 hours") {
		t.Errorf("23 hours ago should be '23 hours ago', got %q", result)
	}
}
