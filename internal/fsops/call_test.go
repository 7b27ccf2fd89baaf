package fsops

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRoundTripByToolName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.d.Call(ctx, "fs_write_file", map[string]any{"path": f.in("x.txt"), "content": "hello"})
	require.NoError(t, err)
	require.NotNil(t, res.Ack)
	assert.Equal(t, OpWriteFile, res.Operation)
	assert.Equal(t, f.in("x.txt"), res.Ack.Path)

	res, err = f.d.Call(ctx, "read_file", map[string]any{"path": f.in("x.txt")})
	require.NoError(t, err)
	require.NotNil(t, res.Text)
	assert.Equal(t, "hello", *res.Text)
}

func TestCallListAlwaysHasEntries(t *testing.T) {
	f := newFixture(t)
	res, err := f.d.Call(context.Background(), "list", map[string]any{"path": f.allowed})
	require.NoError(t, err)
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entries":[]`)
}

func TestCallMoveWithStringOverwrite(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.in("a"), "a")
	writeFile(t, f.in("b"), "b")

	_, err := f.d.Call(context.Background(), "move", map[string]any{"src": f.in("a"), "dst": f.in("b")})
	requireKind(t, err, KindAlreadyExists)

	res, err := f.d.Call(context.Background(), "fs_move", map[string]any{"src": f.in("a"), "dst": f.in("b"), "overwrite": "true"})
	require.NoError(t, err)
	assert.True(t, res.Ack.OK)
	data, err := os.ReadFile(f.in("b"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestCallDeleteAndMkdir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.d.Call(ctx, "mkdir", map[string]any{"path": f.in("d")})
	require.NoError(t, err)
	assert.Equal(t, f.in("d"), res.Ack.Path)

	res, err = f.d.Call(ctx, "delete", map[string]any{"path": f.in("d")})
	require.NoError(t, err)
	assert.True(t, res.Ack.OK)
	assert.NoDirExists(t, f.in("d"))
}

func TestCallWriteWithoutContentWritesEmptyFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.d.Call(context.Background(), "write_file", map[string]any{"path": f.in("e")})
	require.NoError(t, err)
	data, err := os.ReadFile(f.in("e"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCallInvalidArguments(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		op   string
		args map[string]any
	}{
		{"unknown operation", "chmod", map[string]any{"path": f.allowed}},
		{"missing path", "list", map[string]any{}},
		{"nil path", "read_file", map[string]any{"path": nil}},
		{"path not string", "delete", map[string]any{"path": 42}},
		{"content not string", "write_file", map[string]any{"path": f.in("x"), "content": []byte("x")}},
		{"missing dst", "move", map[string]any{"src": f.in("x")}},
		{"bad overwrite", "move", map[string]any{"src": f.in("x"), "dst": f.in("y"), "overwrite": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.d.Call(context.Background(), tt.op, tt.args)
			requireKind(t, err, KindInvalidArgument)
		})
	}
}

func TestBoolArg(t *testing.T) {
	for in, want := range map[any]bool{true: true, false: false, "TRUE": true, "no": false, "1": true, "": false} {
		got, err := boolArg("move", map[string]any{"overwrite": in}, "overwrite")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %v", in)
	}
	got, err := boolArg("move", map[string]any{}, "overwrite")
	require.NoError(t, err)
	assert.False(t, got)
}
