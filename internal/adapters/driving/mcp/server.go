package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mentions/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// DefaultSearchLimit caps search_opinions when the caller sends no limit.
const DefaultSearchLimit = 10

// shutdownTimeout bounds how long open HTTP sessions get to finish.
const shutdownTimeout = 5 * time.Second

// Server exposes the opinion ledger to assistants over MCP.
type Server struct {
	ports        *Ports
	server       *mcp.Server
	defaultLimit int
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultLimit sets the search_opinions limit used when the caller
// sends none. Non-positive values keep DefaultSearchLimit.
func WithDefaultLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// NewServer creates a server over ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, defaultLimit: DefaultSearchLimit}
	for _, opt := range opts {
		opt(s)
	}

	impl := &mcp.Implementation{Name: "mentions", Version: Version}
	s.server = mcp.NewServer(impl, &mcp.ServerOptions{Instructions: s.instructions()})

	s.registerTools()
	s.registerResources()
	return s, nil
}

// instructions tells the assistant how the records are keyed and which
// tools are live.
func (s *Server) instructions() string {
	var b strings.Builder
	b.WriteString("Opinions about people found in the Q&A parts of video transcripts. ")
	b.WriteString("Records are keyed by chunk_id (<video_id>:<block_id>). ")
	b.WriteString("Start with search_opinions, then read a record with get_opinion ")
	b.WriteString("or a video's structure with get_segments.")
	if s.ports.Export == nil {
		b.WriteString(" Export snapshots are not available on this server.")
	} else {
		b.WriteString(" get_export returns the consolidated snapshot of a video.")
	}
	return b.String()
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("mcp: serving over stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: serving http on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
