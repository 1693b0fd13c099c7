package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/seedlink/internal/backup"
	"github.com/kalambet/seedlink/internal/kvstore"
	"github.com/kalambet/seedlink/internal/metrics"
	"github.com/kalambet/seedlink/internal/settings"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Registry *settings.Registry
	Feeds    FeedEvaluator
}

// NewMCPServer creates an MCP server with all seedlink tools and resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"seedlink",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("seedlink keeps the torrent client connections, seedbox accounts and RSS feeds of one user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_servers",
			mcp.WithDescription("List every configured torrent client connection, manual and seedbox, in order."),
		),
		mcpListServers(deps),
	)

	s.AddTool(
		mcp.NewTool("remove_server",
			mcp.WithDescription("Remove the server at the given order. Orders of other servers are not reused."),
			mcp.WithNumber("order", mcp.Description("Order of the server as returned by list_servers"), mcp.Required()),
		),
		mcpRemoveServer(deps),
	)

	s.AddTool(
		mcp.NewTool("list_feeds",
			mcp.WithDescription("List the configured RSS feeds."),
		),
		mcpListFeeds(deps),
	)

	s.AddTool(
		mcp.NewTool("check_feeds",
			mcp.WithDescription("Fetch every alarm-enabled RSS feed and count the items that are new since it was last viewed."),
		),
		mcpCheckFeeds(deps),
	)

	s.AddTool(
		mcp.NewTool("export_settings",
			mcp.WithDescription("Export all settings as one document."),
			mcp.WithString("format", mcp.Description("json (default), yaml or compact")),
		),
		mcpExportSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("import_settings",
			mcp.WithDescription("Import a settings document produced by export_settings."),
			mcp.WithString("document", mcp.Description("The exported document"), mcp.Required()),
			mcp.WithString("format", mcp.Description("json (default), yaml or compact")),
			mcp.WithString("mode", mcp.Description("merge (default) keeps keys missing from the document; replace drops them")),
		),
		mcpImportSettings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"seedlink://servers",
			"Servers",
			mcp.WithResourceDescription("Configured servers as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceServers(deps),
	)

	return s
}

func mcpListServers(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		all, err := deps.Registry.ListAll()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list servers: %v", err)), nil
		}
		if all == nil {
			all = []settings.ServerRecord{}
		}
		return mcpJSON(all)
	}
}

func mcpRemoveServer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		order, err := req.RequireInt("order")
		if err != nil {
			return mcpError("order is required"), nil
		}
		found, err := deps.Registry.Remove(order)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to remove server: %v", err)), nil
		}
		if !found {
			return mcpText(fmt.Sprintf("No server at order %d", order)), nil
		}
		refreshRecordGauge(deps.Registry)
		return mcpText(fmt.Sprintf("Removed server %d", order)), nil
	}
}

func mcpListFeeds(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feeds, err := deps.Registry.Feeds()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list feeds: %v", err)), nil
		}
		if feeds == nil {
			feeds = []settings.FeedRecord{}
		}
		return mcpJSON(feeds)
	}
}

func mcpCheckFeeds(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feeds, err := deps.Registry.Feeds()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list feeds: %v", err)), nil
		}
		return mcpJSON(deps.Feeds.Evaluate(ctx, feeds))
	}
}

func mcpExportSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f, err := backup.ParseFormat(req.GetString("format", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		var data []byte
		err = deps.Registry.Exclusive(func(s kvstore.Store) error {
			var err error
			data, err = backup.ExportBytes(s, f)
			return err
		})
		metrics.RecordSettingsTransfer("export", string(f), err)
		if err != nil {
			return mcpError(fmt.Sprintf("export failed: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpImportSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := req.RequireString("document")
		if err != nil {
			return mcpError("document is required"), nil
		}
		f, err := backup.ParseFormat(req.GetString("format", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		mode, err := backup.ParseMode(req.GetString("mode", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		var n int
		err = deps.Registry.Exclusive(func(s kvstore.Store) error {
			var err error
			n, err = backup.Import(s, strings.NewReader(doc), f, mode)
			return err
		})
		metrics.RecordSettingsTransfer("import", string(f), err)
		if errors.Is(err, backup.ErrMalformed) {
			return mcpError(fmt.Sprintf("document rejected: %v", err)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("import failed: %v", err)), nil
		}
		refreshRecordGauge(deps.Registry)
		return mcpText(fmt.Sprintf("Imported %d keys (%s)", n, mode)), nil
	}
}

func mcpResourceServers(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		all, err := deps.Registry.ListAll()
		if err != nil {
			return nil, fmt.Errorf("failed to list servers: %w", err)
		}
		if all == nil {
			all = []settings.ServerRecord{}
		}

		b, err := json.Marshal(all)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal servers: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
