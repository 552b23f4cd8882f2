// ABOUTME: MCP server initialization and configuration
// ABOUTME: Exposes courses, live progress, and verification to AI agents

package mcp

import (
	"context"
	"fmt"

	"github.com/harper/courserun/internal/course"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/storage"
	"github.com/harper/courserun/internal/verify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with storage and the course catalog.
type Server struct {
	mcp       *mcp.Server
	repo      storage.Repository
	catalog   *course.Catalog
	verifier  *verify.Verifier
	routeOpts []route.Option
}

// Option configures a Server.
type Option func(*Server)

// WithVerifier replaces the default GPS verifier.
func WithVerifier(v *verify.Verifier) Option {
	return func(s *Server) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithRouteOptions passes options to route indexing for progress queries.
func WithRouteOptions(opts ...route.Option) Option {
	return func(s *Server) { s.routeOpts = append(s.routeOpts, opts...) }
}

// NewServer creates MCP server with all capabilities.
func NewServer(repo storage.Repository, catalog *course.Catalog, opts ...Option) (*Server, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("course catalog is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "courserun",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		repo:     repo,
		catalog:  catalog,
		verifier: verify.New(verify.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
