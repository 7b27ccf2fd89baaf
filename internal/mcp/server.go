// Package mcp exposes the gated filesystem operations as MCP tools over
// stdio or streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"

	"github.com/ppiankov/fsgate/internal/allowlist"
	"github.com/ppiankov/fsgate/internal/audit"
	"github.com/ppiankov/fsgate/internal/fsops"
	"github.com/ppiankov/fsgate/internal/logging"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "local-filesystem"

// Transport labels recorded in the audit log.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds MCP server configuration.
type Config struct {
	// AllowedDirsEnv names the variable holding the allow-list.
	// Defaults to MCP_FS_ALLOWED_DIRS.
	AllowedDirsEnv string
	// AuditLogPath enables the hash-chained audit log when set.
	AuditLogPath string
	Version      string
	Logger       *logging.Logger
	// Fs replaces the OS filesystem. Tests only.
	Fs afero.Fs
}

// Server wraps the MCP SDK server around one fsops.Dispatcher.
type Server struct {
	mcpServer *mcpsdk.Server
	ops       *fsops.Dispatcher
	recorder  audit.Recorder
	auditLog  *audit.Log
	logger    *logging.Logger
	sessionID string

	mu        sync.Mutex
	transport string
}

// New creates an MCP server with all filesystem tools registered.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	opts := []fsops.Option{fsops.WithLogger(logger.With("component", "fsops"))}
	if cfg.Fs != nil {
		opts = append(opts, fsops.WithFs(cfg.Fs))
	}

	s := &Server{
		ops:       fsops.New(allowlist.FromEnv(cfg.AllowedDirsEnv), opts...),
		recorder:  audit.Nop{},
		logger:    logger,
		sessionID: audit.NewSessionID(),
		transport: TransportStdio,
	}

	if cfg.AuditLogPath != "" {
		auditLog, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		s.auditLog = auditLog
		s.recorder = auditLog
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// SessionID identifies this server run in audit entries.
func (s *Server) SessionID() string { return s.sessionID }

// Dispatcher returns the dispatcher shared by both bindings.
func (s *Server) Dispatcher() *fsops.Dispatcher { return s.ops }

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.setTransport(TransportStdio)
	s.logger.Info("serving MCP over stdio", "session", s.sessionID, "roots", len(s.ops.Roots()))
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Handler returns a streamable HTTP handler serving this server.
func (s *Server) Handler() http.Handler {
	s.setTransport(TransportHTTP)
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcpServer
	}, nil)
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

func (s *Server) setTransport(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

func (s *Server) currentTransport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func boolPtr(b bool) *bool { return &b }

// registerTools adds the six filesystem tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolList,
		Description: "List directory contents within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{ReadOnlyHint: true},
	}, s.handleList)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolReadFile,
		Description: "Read a file within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{ReadOnlyHint: true},
	}, s.handleReadFile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolWriteFile,
		Description: "Create or overwrite a file within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{DestructiveHint: boolPtr(true), IdempotentHint: true},
	}, s.handleWriteFile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolDelete,
		Description: "Delete a file or directory (recursive for directories) within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{DestructiveHint: boolPtr(true), IdempotentHint: true},
	}, s.handleDelete)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolMkdir,
		Description: "Create a directory (mkdir -p behavior) within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{DestructiveHint: boolPtr(false), IdempotentHint: true},
	}, s.handleMkdir)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        ToolMove,
		Description: "Move or rename files/directories within allowed paths",
		Annotations: &mcpsdk.ToolAnnotations{DestructiveHint: boolPtr(true)},
	}, s.handleMove)
}
