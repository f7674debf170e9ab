// Package tools invokes external tools on behalf of automation actions.
//
// The only production implementation is MCPRunner, which drives a Model
// Context Protocol server over stdio. The subprocess is started lazily on
// first invocation and reused for the lifetime of the runner.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Sentinel errors returned by the runner.
var (
	ErrNotConfigured = errors.New("tools: no tool command configured")
	ErrToolFailed    = errors.New("tools: tool reported an error")
)

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Invoker runs a named tool with the given parameters.
type Invoker interface {
	Invoke(ctx context.Context, tool string, params any) (any, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, tool string, params any) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, tool string, params any) (any, error) {
	return f(ctx, tool, params)
}

// Config controls the MCP subprocess.
type Config struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// MCPRunner invokes tools on an MCP server spawned as a stdio subprocess.
type MCPRunner struct {
	cfg    Config
	logger Logger

	mu      sync.Mutex
	client  *client.Client
	initErr error
}

// NewMCPRunner creates a runner. The subprocess is not started until the
// first Invoke call.
func NewMCPRunner(cfg Config, logger Logger) *MCPRunner {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &MCPRunner{cfg: cfg, logger: logger}
}

// Invoke calls the named tool and returns its decoded result. Text results
// that parse as JSON are returned decoded, otherwise as a plain string.
func (r *MCPRunner) Invoke(ctx context.Context, tool string, params any) (any, error) {
	if r.cfg.Command == "" {
		return nil, ErrNotConfigured
	}

	c, err := r.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = params

	r.logger.Debug("invoking tool", "tool", tool)
	result, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling tool %s: %w", tool, err)
	}

	text := collectText(result)
	if result.IsError {
		return nil, fmt.Errorf("%w: %s: %s", ErrToolFailed, tool, text)
	}
	return decodeResult(text), nil
}

// Close shuts down the subprocess if it was started.
func (r *MCPRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.initErr = nil
	return err
}

// ensureClient starts the subprocess and performs the MCP handshake on
// first use. A failed start is not retried until Close resets the runner.
func (r *MCPRunner) ensureClient(ctx context.Context) (*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}
	if r.initErr != nil {
		return nil, r.initErr
	}

	c, err := client.NewStdioMCPClient(r.cfg.Command, nil, r.cfg.Args...)
	if err != nil {
		r.initErr = fmt.Errorf("starting tool server %s: %w", r.cfg.Command, err)
		return nil, r.initErr
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "hearth",
		Version: "1.0.0",
	}

	initCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if _, err := c.Initialize(initCtx, initReq); err != nil {
		_ = c.Close()
		r.initErr = fmt.Errorf("initializing tool server %s: %w", r.cfg.Command, err)
		return nil, r.initErr
	}

	r.logger.Info("tool server started", "command", r.cfg.Command)
	r.client = c
	return c, nil
}

// collectText joins the text content blocks of a tool result.
func collectText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeResult interprets tool output as JSON when possible.
func decodeResult(text string) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return decoded
	}
	return text
}
