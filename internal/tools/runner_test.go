package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestInvokerFunc(t *testing.T) {
	called := false
	fn := InvokerFunc(func(ctx context.Context, tool string, params any) (any, error) {
		called = true
		if tool != "notify" {
			t.Errorf("tool = %q, want notify", tool)
		}
		return "ok", nil
	})

	result, err := fn.Invoke(context.Background(), "notify", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !called {
		t.Fatal("wrapped function was not called")
	}
	if result != "ok" {
		t.Errorf("result = %v", result)
	}
}

func TestMCPRunner_NotConfigured(t *testing.T) {
	r := NewMCPRunner(Config{}, nil)
	if _, err := r.Invoke(context.Background(), "anything", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Invoke() error = %v, want ErrNotConfigured", err)
	}
}

func TestMCPRunner_CloseWithoutStart(t *testing.T) {
	r := NewMCPRunner(Config{Command: "never-started"}, nil)
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCollectText(t *testing.T) {
	tests := []struct {
		name   string
		result *mcp.CallToolResult
		want   string
	}{
		{
			name:   "empty",
			result: &mcp.CallToolResult{},
			want:   "",
		},
		{
			name: "single text block",
			result: &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "hello"}},
			},
			want: "hello",
		},
		{
			name: "multiple blocks joined",
			result: &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.TextContent{Type: "text", Text: "one"},
					mcp.TextContent{Type: "text", Text: "two"},
				},
			},
			want: "one\ntwo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collectText(tt.result); got != tt.want {
				t.Errorf("collectText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n", nil},
		{"json object", `{"ok": true}`, map[string]any{"ok": true}},
		{"json array", `[1, 2]`, []any{float64(1), float64(2)}},
		{"json number", "42", float64(42)},
		{"plain text", "done, nothing to report", "done, nothing to report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeResult(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeResult(%q) = %#v, want %#v", tt.text, got, tt.want)
			}
		})
	}
}
