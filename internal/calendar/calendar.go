// Package calendar syncs study blocks to an external calendar through an
// MCP server spoken over stdio. The server binary and its arguments come
// from configuration; when no command is configured the client is nil and
// the scheduler simply skips syncing.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createEventTool is the tool name exposed by the calendar MCP server.
const createEventTool = "create-event"

// Event is one calendar entry to create.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Client talks to the calendar MCP server. One session is held for the
// client's lifetime; Close shuts down the spawned server process.
type Client struct {
	session *mcp.ClientSession
	logger  *slog.Logger
}

// Connect spawns the MCP server command and performs the MCP handshake.
func Connect(ctx context.Context, command string, args []string, logger *slog.Logger) (*Client, error) {
	if command == "" {
		return nil, fmt.Errorf("calendar command is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "studypal",
		Version: "1.0.0",
	}, nil)

	transport := &mcp.CommandTransport{Command: exec.Command(command, args...)}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to calendar MCP server: %w", err)
	}

	logger.Debug("calendar MCP session established", "command", command)
	return &Client{
		session: session,
		logger:  logger.With("component", "calendar"),
	}, nil
}

// CreateEvent creates a single calendar event. Each call is independent;
// the scheduler relies on that to tolerate per-event failures.
func (c *Client) CreateEvent(ctx context.Context, ev Event) error {
	if ev.Summary == "" {
		return fmt.Errorf("event summary is required")
	}
	if !ev.End.After(ev.Start) {
		return fmt.Errorf("event end %v is not after start %v", ev.End, ev.Start)
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name: createEventTool,
		Arguments: map[string]any{
			"summary":     ev.Summary,
			"description": ev.Description,
			"start":       ev.Start.Format(time.RFC3339),
			"end":         ev.End.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("calling %s: %w", createEventTool, err)
	}
	if res.IsError {
		return fmt.Errorf("%s failed: %s", createEventTool, textContent(res))
	}

	c.logger.Debug("calendar event created", "summary", ev.Summary, "start", ev.Start)
	return nil
}

// Close tears down the MCP session and the spawned server process.
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("closing calendar session: %w", err)
	}
	return nil
}

// textContent extracts the first text block of a tool result for error
// reporting.
func textContent(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "no error detail"
}
