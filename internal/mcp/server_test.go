package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/fsgate/internal/audit"
	"github.com/ppiankov/fsgate/internal/fsops"
)

const testEnvVar = "FSGATE_MCP_TEST_DIRS"

type testEnv struct {
	s       *Server
	allowed string
	outside string
	audit   string
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	allowed := filepath.Join(base, "allowed")
	outside := filepath.Join(base, "outside")
	for _, d := range []string{allowed, outside} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv(testEnvVar, allowed)

	auditPath := filepath.Join(base, "audit.jsonl")
	s, err := New(Config{AllowedDirsEnv: testEnvVar, AuditLogPath: auditPath, Version: "test"})
	if err != nil {
		t.Fatalf("failed to create MCP server: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &testEnv{s: s, allowed: allowed, outside: outside, audit: auditPath}
}

func resultText(t *testing.T, r *mcpsdk.CallToolResult) string {
	t.Helper()
	if r == nil || len(r.Content) == 0 {
		t.Fatal("expected content in result")
	}
	tc, ok := r.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", r.Content[0])
	}
	return tc.Text
}

func expectError(t *testing.T, r *mcpsdk.CallToolResult, kind fsops.Kind) {
	t.Helper()
	if r == nil || !r.IsError {
		t.Fatalf("expected IsError result with %s", kind)
	}
	if text := resultText(t, r); !strings.HasPrefix(text, string(kind)+": ") {
		t.Fatalf("expected %q prefix, got %q", kind, text)
	}
}

func TestWriteReadList(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	file := filepath.Join(env.allowed, "notes", "a.txt")

	result, ack, err := env.s.handleWriteFile(ctx, &mcpsdk.CallToolRequest{}, WriteFileInput{Path: file, Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got %q", resultText(t, result))
	}
	if !ack.OK || ack.Path != file {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	result, out, err := env.s.handleReadFile(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: file})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Content != "hello" || resultText(t, result) != "hello" {
		t.Fatalf("expected hello, got %q", out.Content)
	}

	_, list, err := env.s.handleList(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "notes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Entries) != 1 || list.Entries[0].Name != "a.txt" || list.Entries[0].Size != 5 {
		t.Fatalf("unexpected entries: %+v", list.Entries)
	}
}

func TestDeniedOutsideAllowList(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	target := filepath.Join(env.outside, "x.txt")

	result, _, err := env.s.handleWriteFile(ctx, &mcpsdk.CallToolRequest{}, WriteFileInput{Path: target, Content: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, result, fsops.KindAccessDenied)
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatal("denied write must not create the file")
	}
}

func TestNotConfigured(t *testing.T) {
	env := newTestServer(t)
	t.Setenv(testEnvVar, "")

	result, out, err := env.s.handleList(context.Background(), &mcpsdk.CallToolRequest{}, PathInput{Path: env.allowed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, result, fsops.KindConfiguration)
	if !strings.Contains(resultText(t, result), testEnvVar) {
		t.Fatalf("expected message to name %s, got %q", testEnvVar, resultText(t, result))
	}
	if out.Entries == nil {
		t.Fatal("error output should still carry an empty entries list")
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	env := newTestServer(t)
	result, _, err := env.s.handleReadFile(context.Background(), &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "nope")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, result, fsops.KindNotFound)
}

func TestMoveOverwrite(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	src := filepath.Join(env.allowed, "src.txt")
	dst := filepath.Join(env.allowed, "dst.txt")
	os.WriteFile(src, []byte("new"), 0o644)
	os.WriteFile(dst, []byte("old"), 0o644)

	result, _, err := env.s.handleMove(ctx, &mcpsdk.CallToolRequest{}, MoveInput{Src: src, Dst: dst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, result, fsops.KindAlreadyExists)

	result, ack, err := env.s.handleMove(ctx, &mcpsdk.CallToolRequest{}, MoveInput{Src: src, Dst: dst, Overwrite: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatalf("expected success, got %q", resultText(t, result))
	}
	if !ack.OK {
		t.Fatal("expected ok ack")
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "new" {
		t.Fatalf("expected dst to hold src content, got %q", data)
	}
}

func TestMoveDeniedDestinationLeavesSource(t *testing.T) {
	env := newTestServer(t)
	src := filepath.Join(env.allowed, "keep.txt")
	os.WriteFile(src, []byte("keep"), 0o644)

	result, _, err := env.s.handleMove(context.Background(), &mcpsdk.CallToolRequest{}, MoveInput{Src: src, Dst: filepath.Join(env.outside, "keep.txt")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectError(t, result, fsops.KindAccessDenied)
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must survive a denied move: %v", err)
	}
}

func TestDeleteAndMkdir(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()
	dir := filepath.Join(env.allowed, "a", "b")

	for i := 0; i < 2; i++ {
		_, ack, err := env.s.handleMkdir(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: dir})
		if err != nil || !ack.OK || ack.Path != dir {
			t.Fatalf("mkdir #%d: ack=%+v err=%v", i+1, ack, err)
		}
	}

	_, ack, err := env.s.handleDelete(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "a")})
	if err != nil || !ack.OK {
		t.Fatalf("delete: ack=%+v err=%v", ack, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected tree removed")
	}

	// Deleting again is a no-op.
	result, ack, err := env.s.handleDelete(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "a")})
	if err != nil || (result != nil && result.IsError) || !ack.OK {
		t.Fatalf("second delete should succeed: ack=%+v err=%v", ack, err)
	}
}

func TestAuditRecorded(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	env.s.handleMkdir(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "d")})
	env.s.handleReadFile(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.outside, "secret")})
	env.s.handleReadFile(ctx, &mcpsdk.CallToolRequest{}, PathInput{Path: filepath.Join(env.allowed, "missing")})

	if v := audit.Verify(env.audit); !v.Valid || v.Lines != 3 {
		t.Fatalf("expected valid 3-line audit log, got %+v", v)
	}

	report, err := audit.Summarize(env.audit, audit.Filter{SessionID: env.s.SessionID()})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if report.Summary.Allowed != 1 || report.Summary.Denied != 1 || report.Summary.Errored != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	if report.Entries[1].Kind != string(fsops.KindAccessDenied) || report.Entries[1].Transport != TransportStdio {
		t.Fatalf("unexpected denial entry: %+v", report.Entries[1])
	}
}

func TestErrorTextFallsBackToFilesystemKind(t *testing.T) {
	text := errorText(os.ErrPermission)
	if !strings.HasPrefix(text, string(fsops.KindFilesystem)+": ") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDecision(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, audit.DecisionAllow},
		{&fsops.Error{Kind: fsops.KindAccessDenied}, audit.DecisionDeny},
		{&fsops.Error{Kind: fsops.KindConfiguration}, audit.DecisionDeny},
		{&fsops.Error{Kind: fsops.KindNotFound}, audit.DecisionError},
		{&fsops.Error{Kind: fsops.KindInvalidArgument}, audit.DecisionError},
	}
	for _, tt := range tests {
		if got := decision(tt.err); got != tt.want {
			t.Errorf("decision(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := env.s.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{ToolList, ToolReadFile, ToolWriteFile, ToolDelete, ToolMkdir, ToolMove} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}

	file := filepath.Join(env.allowed, "wire.txt")
	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      ToolWriteFile,
		Arguments: map[string]any{"path": file, "content": "over the wire"},
	})
	if err != nil {
		t.Fatalf("call write: %v", err)
	}
	if res.IsError {
		t.Fatalf("write failed: %+v", res.Content)
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	var ack AckOutput
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.OK || ack.Path != file {
		t.Fatalf("unexpected ack %+v", ack)
	}

	res, err = session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      ToolReadFile,
		Arguments: map[string]any{"path": filepath.Join(env.outside, "x")},
	})
	if err != nil {
		t.Fatalf("call read: %v", err)
	}
	expectError(t, res, fsops.KindAccessDenied)
}

func TestErrorTextUnknownKind(t *testing.T) {
	text := errorText(&fsops.Error{Kind: "Mystery", Err: os.ErrInvalid})
	if !strings.HasPrefix(text, string(fsops.KindFilesystem)+": ") {
		t.Fatalf("unknown kind should render as %s, got %q", fsops.KindFilesystem, text)
	}
}
