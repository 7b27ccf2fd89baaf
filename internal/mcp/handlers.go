package mcp

import (
	"context"
	"errors"
	"fmt"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/fsgate/internal/audit"
	"github.com/ppiankov/fsgate/internal/fsops"
)

// Tool names exposed to MCP clients.
const (
	ToolList      = "fs_list"
	ToolReadFile  = "fs_read_file"
	ToolWriteFile = "fs_write_file"
	ToolDelete    = "fs_delete"
	ToolMkdir     = "fs_mkdir"
	ToolMove      = "fs_move"
)

// --- Input/Output types ---

// PathInput is the single-path argument shared by list, read, delete and mkdir.
type PathInput struct {
	Path string `json:"path" jsonschema:"absolute path, ~ expands to the home directory"`
}

// ListOutput holds the direct children of a directory.
type ListOutput struct {
	Entries []fsops.Entry `json:"entries"`
}

// ReadFileOutput holds a file's text.
type ReadFileOutput struct {
	Content string `json:"content"`
}

// WriteFileInput defines parameters for fs_write_file.
type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"file to create or overwrite"`
	Content string `json:"content" jsonschema:"UTF-8 text to write"`
}

// MoveInput defines parameters for fs_move.
type MoveInput struct {
	Src       string `json:"src" jsonschema:"existing file or directory"`
	Dst       string `json:"dst" jsonschema:"new location"`
	Overwrite bool   `json:"overwrite,omitempty" jsonschema:"replace dst if it exists (default false)"`
}

// AckOutput acknowledges a mutating operation.
type AckOutput struct {
	OK   bool   `json:"ok"`
	Path string `json:"path,omitempty"`
}

func ackOutput(a fsops.Ack) AckOutput {
	return AckOutput{OK: a.OK, Path: a.Path}
}

// --- Handlers ---

func (s *Server) handleList(ctx context.Context, req *mcpsdk.CallToolRequest, input PathInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	entries, err := s.ops.List(ctx, input.Path)
	s.recordAudit(ToolList, err, input.Path)
	if err != nil {
		return errorResult(err), ListOutput{Entries: []fsops.Entry{}}, nil
	}
	if entries == nil {
		entries = []fsops.Entry{}
	}
	return nil, ListOutput{Entries: entries}, nil
}

func (s *Server) handleReadFile(ctx context.Context, req *mcpsdk.CallToolRequest, input PathInput) (*mcpsdk.CallToolResult, ReadFileOutput, error) {
	text, err := s.ops.ReadFile(ctx, input.Path)
	s.recordAudit(ToolReadFile, err, input.Path)
	if err != nil {
		return errorResult(err), ReadFileOutput{}, nil
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, ReadFileOutput{Content: text}, nil
}

func (s *Server) handleWriteFile(ctx context.Context, req *mcpsdk.CallToolRequest, input WriteFileInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	ack, err := s.ops.WriteFile(ctx, input.Path, input.Content)
	s.recordAudit(ToolWriteFile, err, input.Path)
	if err != nil {
		return errorResult(err), AckOutput{}, nil
	}
	return nil, ackOutput(ack), nil
}

func (s *Server) handleDelete(ctx context.Context, req *mcpsdk.CallToolRequest, input PathInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	ack, err := s.ops.Delete(ctx, input.Path)
	s.recordAudit(ToolDelete, err, input.Path)
	if err != nil {
		return errorResult(err), AckOutput{}, nil
	}
	return nil, ackOutput(ack), nil
}

func (s *Server) handleMkdir(ctx context.Context, req *mcpsdk.CallToolRequest, input PathInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	ack, err := s.ops.Mkdir(ctx, input.Path)
	s.recordAudit(ToolMkdir, err, input.Path)
	if err != nil {
		return errorResult(err), AckOutput{}, nil
	}
	return nil, ackOutput(ack), nil
}

func (s *Server) handleMove(ctx context.Context, req *mcpsdk.CallToolRequest, input MoveInput) (*mcpsdk.CallToolResult, AckOutput, error) {
	ack, err := s.ops.Move(ctx, input.Src, input.Dst, input.Overwrite)
	s.recordAudit(ToolMove, err, input.Src, input.Dst)
	if err != nil {
		return errorResult(err), AckOutput{}, nil
	}
	return nil, ackOutput(ack), nil
}

// --- Helpers ---

// errorText renders err as "<Kind>: <message>".
func errorText(err error) string {
	kind := fsops.Classify(err)
	msg := err.Error()
	var fe *fsops.Error
	if errors.As(err, &fe) {
		msg = fe.Message()
	}
	if !slices.Contains(fsops.Kinds(), kind) {
		kind = fsops.KindFilesystem
	}
	return fmt.Sprintf("%s: %s", kind, msg)
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: errorText(err)}},
	}
}

// decision maps an outcome to its audit decision. Refusals by the allow-list
// (including an unconfigured one) are denials; everything else failing is an error.
func decision(err error) string {
	switch fsops.Classify(err) {
	case "":
		return audit.DecisionAllow
	case fsops.KindAccessDenied, fsops.KindConfiguration:
		return audit.DecisionDeny
	default:
		return audit.DecisionError
	}
}

func (s *Server) recordAudit(tool string, err error, paths ...string) {
	entry := audit.Entry{
		SessionID: s.sessionID,
		Transport: s.currentTransport(),
		Tool:      tool,
		Paths:     paths,
		Decision:  decision(err),
	}
	if err != nil {
		entry.Kind = string(fsops.Classify(err))
		entry.Reason = err.Error()
		s.logger.Warn("tool call failed", "tool", tool, "kind", entry.Kind, "error", err)
	} else {
		s.logger.Debug("tool call", "tool", tool, "paths", paths)
	}
	if rerr := s.recorder.Record(entry); rerr != nil {
		s.logger.Error("audit record failed", "tool", tool, "error", rerr)
	}
}
