package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/a3tai/reportshield/internal/audit"
	"github.com/a3tai/reportshield/internal/config"
	"github.com/a3tai/reportshield/internal/descriptions"
	"github.com/a3tai/reportshield/internal/pipeline"
)

// ServerName is the MCP implementation name.
const ServerName = "reportshield"

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	pipeline  *pipeline.Pipeline
	guard     *PathGuard
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, p *pipeline.Pipeline) (*Server, error) {
	if cfg == nil {
		return nil, eris.New("config cannot be nil")
	}
	if p == nil {
		return nil, eris.New("pipeline cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		pipeline:  p,
		guard:     NewPathGuard(cfg.MCP.Root),
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"audit_report",
		mcp.WithDescription(descriptions.AuditReportDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the appraisal PDF"),
		),
		mcp.WithString("style",
			mcp.Description("Output style: 'analyst' (default) or 'legacy'"),
		),
	), s.handleAuditReport)

	s.mcpServer.AddTool(mcp.NewTool(
		"audit_versions",
		mcp.WithDescription(descriptions.AuditVersionsDescription),
	), s.handleAuditVersions)

	s.mcpServer.AddTool(mcp.NewTool(
		"audit_ready",
		mcp.WithDescription(descriptions.AuditReadyDescription),
	), s.handleAuditReady)
}

func (s *Server) handleAuditReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	style, err := audit.ParseStyle(request.GetString("style", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	res := s.pipeline.Run(ctx, audit.Input{Data: data, FileName: filepath.Base(resolved)}, style)
	return mcp.NewToolResultText(res.Report), nil
}

func (s *Server) handleAuditVersions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules, schematic := s.pipeline.Versions()
	return mcp.NewToolResultText(fmt.Sprintf("Output rules: %s\nExecution schematic: %s\n", rules, schematic)), nil
}

func (s *Server) handleAuditReady(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.pipeline.Ready(); err != nil {
		zap.L().Warn("audit not ready", zap.Error(err))
		return mcp.NewToolResultText("not_ready"), nil
	}
	return mcp.NewToolResultText("ready"), nil
}

// Run serves MCP over stdio until the client disconnects.
func (s *Server) Run(_ context.Context) error {
	zap.L().Info("starting MCP server on stdio", zap.String("root", s.config.MCP.Root))
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return eris.Wrap(err, "failed to serve stdio")
	}
	return nil
}
