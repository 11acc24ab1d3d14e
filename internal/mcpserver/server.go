package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
)

// Config holds server configuration.
type Config struct {
	Addr      string // listen address for the http transport
	Transport string // http or stdio
	MaxRuns   int
	Version   string
}

// Server is the MCP server exposing production runs as tools.
type Server struct {
	cfg      Config
	mcp      *server.MCPServer
	handlers *Handlers
	log      *slog.Logger
}

// New creates and configures the MCP server. ctx bounds every run started
// through it.
func New(ctx context.Context, cfg Config, factory MachineFactory, logger *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	runs := NewRuns(factory, cfg.MaxRuns, logger, ctx)
	handlers := NewHandlers(runs, logger)

	mcpServer := server.NewMCPServer(
		"newsroom",
		cfg.Version,
		server.WithToolCapabilities(true),
	)
	for _, tool := range ToolDefs() {
		mcpServer.AddTool(tool, handlers.Handler(tool.Name))
	}

	return &Server{
		cfg:      cfg,
		mcp:      mcpServer,
		handlers: handlers,
		log:      logger,
	}
}

// Start serves until ctx is cancelled or the transport fails.
func (s *Server) Start(ctx context.Context) error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server", "transport", "stdio")
		return server.ServeStdio(s.mcp)
	case "http", "":
		s.log.Info("Starting MCP server", "transport", "http", "addr", s.cfg.Addr)
		httpServer := server.NewStreamableHTTPServer(s.mcp)

		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.Start(s.cfg.Addr) }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			s.log.Info("Shutdown signal received, stopping MCP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	default:
		return fmt.Errorf("unknown MCP transport %q", s.cfg.Transport)
	}
}
