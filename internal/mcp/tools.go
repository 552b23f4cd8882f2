// ABOUTME: MCP tool definitions and handlers
// ABOUTME: Course listing, progress queries, session verification, and completion lookups

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	s.registerListCoursesTool()
	s.registerCourseProgressTool()
	s.registerVerifySessionTool()
	s.registerListCompletionsTool()
}

func textResult(v interface{}) *mcp.CallToolResult {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ") //nolint:errchkjson // output is always serializable
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}
}

// CourseOutput describes a catalog course.
type CourseOutput struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	TotalDistance float64 `json:"total_distance"`
	Waypoints     int     `json:"waypoints"`
}

// ListCoursesInput defines input for list_courses tool.
type ListCoursesInput struct{}

// ListCoursesOutput defines output for list_courses tool.
type ListCoursesOutput struct {
	Courses []CourseOutput `json:"courses"`
	Count   int            `json:"count"`
}

func (s *Server) registerListCoursesTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_courses",
		Description: "List the running courses available in the catalog with their length in meters.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.handleListCourses)
}

func (s *Server) handleListCourses(_ context.Context, _ *mcp.CallToolRequest, _ ListCoursesInput) (*mcp.CallToolResult, ListCoursesOutput, error) {
	courses, err := s.catalog.List()
	if err != nil {
		return nil, ListCoursesOutput{}, fmt.Errorf("failed to list courses: %w", err)
	}

	output := ListCoursesOutput{Courses: make([]CourseOutput, len(courses)), Count: len(courses)}
	for i, c := range courses {
		output.Courses[i] = CourseOutput{
			ID:            c.ID,
			Name:          c.Name,
			TotalDistance: c.TotalDistance,
			Waypoints:     len(c.Waypoints()),
		}
	}
	return textResult(output), output, nil
}

// CourseProgressInput defines input for course_progress tool.
type CourseProgressInput struct {
	CourseID  string  `json:"course_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Pace      float64 `json:"pace,omitempty"`
}

// CourseProgressOutput defines output for course_progress tool.
type CourseProgressOutput struct {
	CourseID string         `json:"course_id"`
	Progress route.Progress `json:"progress"`
	NextTurn *route.Turn    `json:"next_turn,omitempty"`
}

func (s *Server) registerCourseProgressTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "course_progress",
		Description: "Compute how far along a course a position is, whether it is off course, and the next turn.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"course_id": map[string]interface{}{
					"type":        "string",
					"description": "Course identifier from list_courses",
				},
				"latitude": map[string]interface{}{
					"type":        "number",
					"description": "Latitude coordinate (-90 to 90)",
				},
				"longitude": map[string]interface{}{
					"type":        "number",
					"description": "Longitude coordinate (-180 to 180)",
				},
				"pace": map[string]interface{}{
					"type":        "number",
					"description": "Optional average pace in minutes per km, used for the remaining time estimate",
				},
			},
			"required": []string{"course_id", "latitude", "longitude"},
		},
	}, s.handleCourseProgress)
}

func (s *Server) handleCourseProgress(_ context.Context, _ *mcp.CallToolRequest, input CourseProgressInput) (*mcp.CallToolResult, CourseProgressOutput, error) {
	if err := models.ValidateCoordinates(input.Latitude, input.Longitude); err != nil {
		return nil, CourseProgressOutput{}, err
	}

	c, err := s.catalog.Get(input.CourseID)
	if err != nil {
		return nil, CourseProgressOutput{}, fmt.Errorf("course '%s' not found", input.CourseID)
	}
	r, err := route.Index(c.Polyline, s.routeOpts...)
	if err != nil {
		return nil, CourseProgressOutput{}, fmt.Errorf("failed to index course: %w", err)
	}

	p := r.Progress(geo.Point{Lat: input.Latitude, Lng: input.Longitude}, input.Pace)
	output := CourseProgressOutput{CourseID: c.ID, Progress: p}
	if turn, ok := r.NextTurn(p.CurrentSegmentIndex, route.DefaultLookahead); ok {
		output.NextTurn = &turn
	}
	return textResult(output), output, nil
}

// VerifySessionInput defines input for verify_session tool.
type VerifySessionInput struct {
	SessionID string `json:"session_id,omitempty"`
}

// VerifySessionOutput defines output for verify_session tool.
type VerifySessionOutput struct {
	SessionID string                    `json:"session_id"`
	CourseID  string                    `json:"course_id"`
	Result    models.VerificationResult `json:"result"`
}

func (s *Server) registerVerifySessionTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "verify_session",
		Description: "Score how likely a recorded run is genuine. Without a session_id the active session is used.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional session UUID",
				},
			},
		},
	}, s.handleVerifySession)
}

func (s *Server) handleVerifySession(_ context.Context, _ *mcp.CallToolRequest, input VerifySessionInput) (*mcp.CallToolResult, VerifySessionOutput, error) {
	var sess *models.TrackingSession
	if input.SessionID == "" {
		active, err := s.repo.LoadActiveSession()
		if err != nil {
			return nil, VerifySessionOutput{}, fmt.Errorf("no active session")
		}
		sess = active
	} else {
		id, err := uuid.Parse(input.SessionID)
		if err != nil {
			return nil, VerifySessionOutput{}, fmt.Errorf("invalid session id: %w", err)
		}
		sess, err = s.repo.GetSession(id)
		if err != nil {
			return nil, VerifySessionOutput{}, fmt.Errorf("session '%s' not found", input.SessionID)
		}
	}

	// A course missing from the catalog only skips the endpoint checks.
	c, err := s.catalog.Get(sess.CourseID)
	if err != nil && !errors.Is(err, course.ErrNotFound) {
		return nil, VerifySessionOutput{}, fmt.Errorf("failed to load course: %w", err)
	}

	output := VerifySessionOutput{
		SessionID: sess.ID.String(),
		CourseID:  sess.CourseID,
		Result:    s.verifier.Verify(sess, c),
	}
	return textResult(output), output, nil
}

// ListCompletionsInput defines input for list_completions tool.
type ListCompletionsInput struct {
	CourseID string `json:"course_id,omitempty"`
}

// ListCompletionsOutput defines output for list_completions tool.
type ListCompletionsOutput struct {
	Completions []models.Completion `json:"completions"`
	Count       int                 `json:"count"`
}

func (s *Server) registerListCompletionsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_completions",
		Description: "List recorded course completions, newest first, optionally for one course.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"course_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional course identifier filter",
				},
			},
		},
	}, s.handleListCompletions)
}

func (s *Server) handleListCompletions(_ context.Context, _ *mcp.CallToolRequest, input ListCompletionsInput) (*mcp.CallToolResult, ListCompletionsOutput, error) {
	completions, err := s.repo.ListCompletions()
	if err != nil {
		return nil, ListCompletionsOutput{}, fmt.Errorf("failed to list completions: %w", err)
	}

	output := ListCompletionsOutput{Completions: []models.Completion{}}
	for _, c := range completions {
		if input.CourseID != "" && c.Summary.CourseID != input.CourseID {
			continue
		}
		output.Completions = append(output.Completions, *c)
	}
	output.Count = len(output.Completions)
	return textResult(output), output, nil
}

// sessionOrNil maps ErrNotFound to a nil session.
func sessionOrNil(sess *models.TrackingSession, err error) (*models.TrackingSession, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return sess, err
}
