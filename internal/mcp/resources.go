// ABOUTME: MCP resource definitions
// ABOUTME: Provides a read-only view of the active tracking session

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/courserun/internal/geo"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const activeSessionURI = "courserun://active-session"

// ActiveSessionOutput summarizes the stored active session.
type ActiveSessionOutput struct {
	Active    bool       `json:"active"`
	SessionID string     `json:"session_id,omitempty"`
	CourseID  string     `json:"course_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Tracking  bool       `json:"tracking"`
	FixCount  int        `json:"fix_count"`
	Distance  float64    `json:"distance"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        activeSessionURI,
		Description: "The session being tracked or awaiting recording, if any",
		URI:         activeSessionURI,
		MIMEType:    "application/json",
	}, s.handleActiveSessionResource)
}

func (s *Server) handleActiveSessionResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sess, err := sessionOrNil(s.repo.LoadActiveSession())
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}

	output := ActiveSessionOutput{}
	if sess != nil {
		start := sess.StartTime
		output = ActiveSessionOutput{
			Active:    true,
			SessionID: sess.ID.String(),
			CourseID:  sess.CourseID,
			StartTime: &start,
			EndTime:   sess.EndTime,
			Tracking:  sess.IsActive,
			FixCount:  len(sess.Fixes),
			Distance:  geo.PathLength(sess.Points()),
		}
	}

	jsonBytes, _ := json.MarshalIndent(output, "", "  ") //nolint:errchkjson // output is always serializable

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      activeSessionURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		},
	}, nil
}
