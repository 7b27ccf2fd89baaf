package fsops

import (
	"context"
	"strings"
)

// Operation names accepted by Call. The "fs_" tool-name prefix is optional.
const (
	OpList      = "list"
	OpReadFile  = "read_file"
	OpWriteFile = "write_file"
	OpDelete    = "delete"
	OpMkdir     = "mkdir"
	OpMove      = "move"
)

// Operations lists the supported operation names.
func Operations() []string {
	return []string{OpList, OpReadFile, OpWriteFile, OpDelete, OpMkdir, OpMove}
}

// Result is the success payload of Call. Exactly one of Entries, Text or
// Ack is set, depending on the operation. Entries is always emitted so an
// empty listing encodes as [].
type Result struct {
	Operation string  `json:"operation"`
	Entries   []Entry `json:"entries"`
	Text      *string `json:"text,omitempty"`
	Ack       *Ack    `json:"ack,omitempty"`
}

// Call dispatches a named operation with loosely typed arguments, as
// received from a transport that does not decode into typed inputs.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (*Result, error) {
	op := strings.TrimPrefix(strings.TrimSpace(name), "fs_")
	res := &Result{Operation: op}

	switch op {
	case OpList:
		path, err := stringArg(op, args, "path", true)
		if err != nil {
			return nil, err
		}
		entries, err := d.List(ctx, path)
		if err != nil {
			return nil, err
		}
		res.Entries = entries
		if res.Entries == nil {
			res.Entries = []Entry{}
		}

	case OpReadFile:
		path, err := stringArg(op, args, "path", true)
		if err != nil {
			return nil, err
		}
		text, err := d.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		res.Text = &text

	case OpWriteFile:
		path, err := stringArg(op, args, "path", true)
		if err != nil {
			return nil, err
		}
		content, err := stringArg(op, args, "content", false)
		if err != nil {
			return nil, err
		}
		return ackResult(res, func() (Ack, error) { return d.WriteFile(ctx, path, content) })

	case OpDelete:
		path, err := stringArg(op, args, "path", true)
		if err != nil {
			return nil, err
		}
		return ackResult(res, func() (Ack, error) { return d.Delete(ctx, path) })

	case OpMkdir:
		path, err := stringArg(op, args, "path", true)
		if err != nil {
			return nil, err
		}
		return ackResult(res, func() (Ack, error) { return d.Mkdir(ctx, path) })

	case OpMove:
		src, err := stringArg(op, args, "src", true)
		if err != nil {
			return nil, err
		}
		dst, err := stringArg(op, args, "dst", true)
		if err != nil {
			return nil, err
		}
		overwrite, err := boolArg(op, args, "overwrite")
		if err != nil {
			return nil, err
		}
		return ackResult(res, func() (Ack, error) { return d.Move(ctx, src, dst, overwrite) })

	default:
		return nil, invalidArgument(name, "unknown operation %q (supported: %s)", name, strings.Join(Operations(), ", "))
	}
	return res, nil
}

func ackResult(res *Result, fn func() (Ack, error)) (*Result, error) {
	ack, err := fn()
	if err != nil {
		return nil, err
	}
	res.Ack = &ack
	return res, nil
}

func stringArg(op string, args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", invalidArgument(op, "missing required argument %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidArgument(op, "argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// boolArg accepts real booleans and the strings "true"/"false" (CLI input).
func boolArg(op string, args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
	}
	return false, invalidArgument(op, "argument %q must be a boolean, got %v", key, v)
}
