// ABOUTME: Tests for MCP server, tools, and resources
// ABOUTME: Verifies MCP integration against a real SQLite repository and course catalog

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var start = geo.Point{Lat: 47.6062, Lng: -122.3321}

// faultyRepo overrides selected Repository methods with failures.
type faultyRepo struct {
	storage.Repository
	listCompletionsErr error
	loadActiveErr      error
}

func (f *faultyRepo) ListCompletions() ([]*models.Completion, error) {
	if f.listCompletionsErr != nil {
		return nil, f.listCompletionsErr
	}
	return f.Repository.ListCompletions()
}

func (f *faultyRepo) LoadActiveSession() (*models.TrackingSession, error) {
	if f.loadActiveErr != nil {
		return nil, f.loadActiveErr
	}
	return f.Repository.LoadActiveSession()
}

func setupServer(t *testing.T) (*Server, storage.Repository) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.NewSQLiteDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := course.NewCatalog(filepath.Join(dir, "courses"))
	// 500 m north, then a right turn and 500 m east.
	corner := geo.Offset(start, 500, 0)
	c, err := models.NewCourse("river", "River Loop", []geo.Point{start, corner, geo.Offset(corner, 0, 500)})
	if err != nil {
		t.Fatalf("failed to build course: %v", err)
	}
	if err := catalog.Save(c); err != nil {
		t.Fatalf("failed to save course: %v", err)
	}

	server, err := NewServer(db, catalog)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, db
}

// runSession builds a stopped session walking north along the course.
func runSession(courseID string, fixes int) *models.TrackingSession {
	t0 := time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)
	s := models.NewTrackingSession(courseID, t0)
	for i := 0; i < fixes; i++ {
		p := geo.Offset(start, float64(i)*25, 0)
		at := t0.Add(time.Duration(i) * 9 * time.Second)
		s.Fixes = append(s.Fixes, models.NewFix(models.RawPosition{Lat: p.Lat, Lng: p.Lng, Accuracy: 5, Timestamp: at}, at))
	}
	end := t0.Add(time.Duration(fixes) * 9 * time.Second)
	s.EndTime = &end
	s.IsActive = false
	return s
}

func TestNewServer_NilRepo(t *testing.T) {
	_, err := NewServer(nil, course.NewCatalog(t.TempDir()))
	if err == nil {
		t.Error("expected error for nil repository")
	}
}

func TestNewServer_NilCatalog(t *testing.T) {
	db, err := storage.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := NewServer(db, nil); err == nil {
		t.Error("expected error for nil catalog")
	}
}

func TestHandleListCourses(t *testing.T) {
	server, _ := setupServer(t)

	result, output, err := server.handleListCourses(context.Background(), nil, ListCoursesInput{})
	if err != nil {
		t.Fatalf("handleListCourses failed: %v", err)
	}
	if result == nil || len(result.Content) != 1 {
		t.Fatal("expected one content block")
	}
	if output.Count != 1 {
		t.Fatalf("expected 1 course, got %d", output.Count)
	}
	got := output.Courses[0]
	if got.ID != "river" || got.Name != "River Loop" {
		t.Errorf("unexpected course %+v", got)
	}
	if got.TotalDistance < 990 || got.TotalDistance > 1010 {
		t.Errorf("expected ~1000m course, got %.1f", got.TotalDistance)
	}
	if got.Waypoints != 3 {
		t.Errorf("expected 3 waypoints, got %d", got.Waypoints)
	}
}

func TestHandleCourseProgress(t *testing.T) {
	server, _ := setupServer(t)
	here := geo.Offset(start, 250, 0)

	_, output, err := server.handleCourseProgress(context.Background(), nil, CourseProgressInput{
		CourseID:  "river",
		Latitude:  here.Lat,
		Longitude: here.Lng,
		Pace:      6,
	})
	if err != nil {
		t.Fatalf("handleCourseProgress failed: %v", err)
	}
	if output.Progress.IsOffCourse {
		t.Error("expected runner to be on course")
	}
	if output.Progress.ProgressPercent < 24 || output.Progress.ProgressPercent > 26 {
		t.Errorf("expected ~25%% progress, got %.2f", output.Progress.ProgressPercent)
	}
	if output.NextTurn == nil {
		t.Fatal("expected a turn ahead")
	}
	if output.NextTurn.Type != route.TurnRight {
		t.Errorf("expected right turn, got %s", output.NextTurn.Type)
	}
}

func TestHandleCourseProgress_Errors(t *testing.T) {
	server, _ := setupServer(t)

	tests := []struct {
		name  string
		input CourseProgressInput
	}{
		{"unknown course", CourseProgressInput{CourseID: "nope", Latitude: start.Lat, Longitude: start.Lng}},
		{"bad latitude", CourseProgressInput{CourseID: "river", Latitude: 91, Longitude: 0}},
		{"bad longitude", CourseProgressInput{CourseID: "river", Latitude: 0, Longitude: 181}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := server.handleCourseProgress(context.Background(), nil, tt.input); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHandleVerifySession_Active(t *testing.T) {
	server, db := setupServer(t)
	sess := runSession("river", 1)
	if err := db.SaveActiveSession(sess); err != nil {
		t.Fatalf("SaveActiveSession failed: %v", err)
	}

	_, output, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{})
	if err != nil {
		t.Fatalf("handleVerifySession failed: %v", err)
	}
	if output.SessionID != sess.ID.String() {
		t.Errorf("expected session %s, got %s", sess.ID, output.SessionID)
	}
	if output.Result.Recommendation != models.ScreenshotRequired {
		t.Errorf("expected screenshot required for a single fix, got %s", output.Result.Recommendation)
	}
}

func TestHandleVerifySession_ByID(t *testing.T) {
	server, db := setupServer(t)
	sess := runSession("river", 21)
	if err := db.PutSession(sess); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}

	_, output, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{SessionID: sess.ID.String()})
	if err != nil {
		t.Fatalf("handleVerifySession failed: %v", err)
	}
	if output.CourseID != "river" {
		t.Errorf("expected course river, got %s", output.CourseID)
	}
	if output.Result.Source != models.SourceGPS {
		t.Errorf("expected GPS source, got %s", output.Result.Source)
	}
	if output.Result.Metrics.Distance < 0.49 || output.Result.Metrics.Distance > 0.51 {
		t.Errorf("expected ~0.5km, got %.3f", output.Result.Metrics.Distance)
	}
}

func TestHandleVerifySession_UnknownCourse(t *testing.T) {
	server, db := setupServer(t)
	sess := runSession("elsewhere", 21)
	if err := db.PutSession(sess); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}

	_, output, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{SessionID: sess.ID.String()})
	if err != nil {
		t.Fatalf("expected verification without course, got %v", err)
	}
	for _, issue := range output.Result.Issues {
		if issue == "start point does not match the course" {
			t.Error("endpoint checks should be skipped without a course")
		}
	}
}

func TestHandleVerifySession_Errors(t *testing.T) {
	server, _ := setupServer(t)

	if _, _, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{}); err == nil {
		t.Error("expected error without an active session")
	}
	if _, _, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{SessionID: "not-a-uuid"}); err == nil {
		t.Error("expected error for invalid id")
	}
	missing := runSession("river", 2)
	if _, _, err := server.handleVerifySession(context.Background(), nil, VerifySessionInput{SessionID: missing.ID.String()}); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestHandleListCompletions(t *testing.T) {
	server, db := setupServer(t)

	for _, courseID := range []string{"river", "hill", "river"} {
		sess := runSession(courseID, 5)
		summary := models.SessionSummary{SessionID: sess.ID, CourseID: courseID, EndTime: *sess.EndTime}
		c := models.NewCompletion(summary, models.VerificationResult{Recommendation: models.AutoApprove, Source: models.SourceGPS})
		if err := db.RecordCompletion(c, sess); err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
	}

	_, all, err := server.handleListCompletions(context.Background(), nil, ListCompletionsInput{})
	if err != nil {
		t.Fatalf("handleListCompletions failed: %v", err)
	}
	if all.Count != 3 {
		t.Errorf("expected 3 completions, got %d", all.Count)
	}

	result, river, err := server.handleListCompletions(context.Background(), nil, ListCompletionsInput{CourseID: "river"})
	if err != nil {
		t.Fatalf("handleListCompletions failed: %v", err)
	}
	if river.Count != 2 {
		t.Errorf("expected 2 river completions, got %d", river.Count)
	}

	text := result.Content[0].(*mcp.TextContent).Text
	var decoded ListCompletionsOutput
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("tool text is not JSON: %v", err)
	}
	if decoded.Count != 2 {
		t.Errorf("expected JSON count 2, got %d", decoded.Count)
	}
}

func TestHandleListCompletions_Empty(t *testing.T) {
	server, _ := setupServer(t)

	_, output, err := server.handleListCompletions(context.Background(), nil, ListCompletionsInput{})
	if err != nil {
		t.Fatalf("handleListCompletions failed: %v", err)
	}
	if output.Count != 0 || output.Completions == nil {
		t.Errorf("expected empty non-nil list, got %+v", output)
	}
}

func TestHandleListCompletions_RepoError(t *testing.T) {
	server, db := setupServer(t)
	server.repo = &faultyRepo{Repository: db, listCompletionsErr: errors.New("disk gone")}

	if _, _, err := server.handleListCompletions(context.Background(), nil, ListCompletionsInput{}); err == nil {
		t.Error("expected repository error")
	}
}

func TestHandleActiveSessionResource(t *testing.T) {
	server, db := setupServer(t)

	result, err := server.handleActiveSessionResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("resource read failed: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(result.Contents))
	}
	if result.Contents[0].URI != activeSessionURI {
		t.Errorf("expected URI %s, got %s", activeSessionURI, result.Contents[0].URI)
	}
	if result.Contents[0].MIMEType != "application/json" {
		t.Errorf("expected application/json, got %s", result.Contents[0].MIMEType)
	}

	var idle ActiveSessionOutput
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &idle); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if idle.Active {
		t.Error("expected no active session")
	}

	sess := runSession("river", 5)
	if err := db.SaveActiveSession(sess); err != nil {
		t.Fatalf("SaveActiveSession failed: %v", err)
	}
	result, err = server.handleActiveSessionResource(context.Background(), nil)
	if err != nil {
		t.Fatalf("resource read failed: %v", err)
	}
	var active ActiveSessionOutput
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &active); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !active.Active || active.SessionID != sess.ID.String() {
		t.Errorf("unexpected resource %+v", active)
	}
	if active.FixCount != 5 {
		t.Errorf("expected 5 fixes, got %d", active.FixCount)
	}
	if active.Distance < 99 || active.Distance > 101 {
		t.Errorf("expected ~100m, got %.1f", active.Distance)
	}
}

func TestHandleActiveSessionResource_RepoError(t *testing.T) {
	server, db := setupServer(t)
	server.repo = &faultyRepo{Repository: db, loadActiveErr: errors.New("corrupt")}

	if _, err := server.handleActiveSessionResource(context.Background(), nil); err == nil {
		t.Error("expected error")
	}
}
