package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/seedlink/internal/feed"
	"github.com/kalambet/seedlink/internal/kvstore"
	"github.com/kalambet/seedlink/internal/settings"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *fakeEvaluator) {
	t.Helper()
	eval := &fakeEvaluator{sum: feed.Summary{Names: []string{}}}
	return MCPDeps{
		Registry: settings.NewRegistry(kvstore.NewMemory()),
		Feeds:    eval,
	}, eval
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPServer_Construction(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_ListServers(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpListServers(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_servers", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolText(t, result) != "[]" {
		t.Errorf("empty registry listed %s", toolText(t, result))
	}

	deps.Registry.AddManual(settings.ServerRecord{Name: "nas", Host: "nas.lan"})
	if _, _, err := deps.Registry.AddSeedbox(settings.XirvikDedi, settings.ServerRecord{Host: "box.xirvik.com"}); err != nil {
		t.Fatalf("AddSeedbox: %v", err)
	}

	result, err = handler(context.Background(), makeCallToolRequest("list_servers", nil))
	if err != nil || result.IsError {
		t.Fatalf("list_servers failed: %v %s", err, toolText(t, result))
	}
	var recs []settings.ServerRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(recs) != 2 || recs[0].Host != "nas.lan" || recs[1].Provider != settings.XirvikDedi {
		t.Errorf("servers = %+v", recs)
	}
}

func TestMCPTool_RemoveServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Registry.AddManual(settings.ServerRecord{Host: "a.lan"})
	handler := mcpRemoveServer(deps)

	result, err := handler(context.Background(), makeCallToolRequest("remove_server", map[string]interface{}{"order": 0}))
	if err != nil || result.IsError {
		t.Fatalf("remove_server failed: %v", err)
	}
	if !strings.Contains(toolText(t, result), "Removed") {
		t.Errorf("text = %q", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("remove_server", map[string]interface{}{"order": 0}))
	if result.IsError || !strings.Contains(toolText(t, result), "No server") {
		t.Errorf("second remove = %q", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("remove_server", map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error for missing order")
	}
}

func TestMCPTool_Feeds(t *testing.T) {
	deps, eval := newTestMCPDeps(t)
	if _, err := deps.Registry.AddFeed(settings.FeedRecord{Name: "f", URL: "https://f/rss", AlarmOnNewItems: true}); err != nil {
		t.Fatalf("AddFeed: %v", err)
	}

	result, err := mcpListFeeds(deps)(context.Background(), makeCallToolRequest("list_feeds", nil))
	if err != nil || result.IsError {
		t.Fatalf("list_feeds failed: %v", err)
	}
	var feeds []settings.FeedRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &feeds); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(feeds) != 1 || feeds[0].URL != "https://f/rss" {
		t.Errorf("feeds = %+v", feeds)
	}

	eval.sum = feed.Summary{Total: 2, Names: []string{"f"}}
	result, err = mcpCheckFeeds(deps)(context.Background(), makeCallToolRequest("check_feeds", nil))
	if err != nil || result.IsError {
		t.Fatalf("check_feeds failed: %v", err)
	}
	var sum feed.Summary
	if err := json.Unmarshal([]byte(toolText(t, result)), &sum); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if sum.Total != 2 || len(sum.Names) != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestMCPTool_ExportImport(t *testing.T) {
	src, _ := newTestMCPDeps(t)
	src.Registry.AddManual(settings.ServerRecord{Name: "nas", Host: "nas.lan"})

	exported, err := mcpExportSettings(src)(context.Background(), makeCallToolRequest("export_settings", map[string]interface{}{"format": "compact"}))
	if err != nil || exported.IsError {
		t.Fatalf("export_settings failed: %v", err)
	}
	doc := toolText(t, exported)

	dst, _ := newTestMCPDeps(t)
	dst.Registry.AddManual(settings.ServerRecord{Host: "old.lan"})
	dst.Registry.AddManual(settings.ServerRecord{Host: "older.lan"})

	result, err := mcpImportSettings(dst)(context.Background(), makeCallToolRequest("import_settings", map[string]interface{}{
		"document": doc,
		"format":   "compact",
		"mode":     "replace",
	}))
	if err != nil || result.IsError {
		t.Fatalf("import_settings failed: %v %s", err, toolText(t, result))
	}

	all, err := dst.Registry.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].Host != "nas.lan" {
		t.Errorf("servers after replace = %+v", all)
	}
}

func TestMCPTool_ImportRejectsMalformed(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Registry.AddManual(settings.ServerRecord{Host: "keep.lan"})

	result, err := mcpImportSettings(deps)(context.Background(), makeCallToolRequest("import_settings", map[string]interface{}{
		"document": "{not json",
		"mode":     "replace",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for malformed document")
	}
	all, _ := deps.Registry.ListAll()
	if len(all) != 1 {
		t.Errorf("store changed by rejected import: %+v", all)
	}

	result, _ = mcpImportSettings(deps)(context.Background(), makeCallToolRequest("import_settings", map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error for missing document")
	}
}

func TestMCPResource_Servers(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Registry.AddManual(settings.ServerRecord{Host: "nas.lan"})

	contents, err := mcpResourceServers(deps)(context.Background(), makeReadResourceRequest("seedlink://servers"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" || !strings.Contains(tc.Text, "nas.lan") {
		t.Errorf("resource = %+v", tc)
	}
}
