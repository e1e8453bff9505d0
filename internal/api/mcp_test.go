package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gleanerhq/gleaner/internal/coordinator"
	"github.com/gleanerhq/gleaner/internal/storage"
)

func newTestMCPDeps(t *testing.T) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })

	coord := coordinator.New(testConfig(t, t.TempDir()), store)
	return Deps{Coordinator: coord, Token: testToken}, store
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

func TestMCPTool_SearchKnowledge(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedContent(t, store, "m-1", "Goroutine scheduling deep dive", "technical", 8.5)
	seedContent(t, store, "m-2", "Trip planning notes", "personal", 5.0)

	handler := mcpSearchKnowledge(deps)
	req := makeCallToolRequest("search_knowledge", map[string]interface{}{
		"query": "goroutine",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var results []storage.ContentSummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &results); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m-1" {
		t.Fatalf("results = %+v, want [m-1]", results)
	}
}

func TestMCPTool_SearchKnowledge_MissingQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpSearchKnowledge(deps)
	req := makeCallToolRequest("search_knowledge", map[string]interface{}{})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing query")
	}
}

func TestMCPTool_SearchKnowledge_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpSearchKnowledge(deps)
	req := makeCallToolRequest("search_knowledge", map[string]interface{}{
		"query": "nothing here",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_GetKnowledge(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedContent(t, store, "m-1", "Goroutine scheduling deep dive", "technical", 8.5)

	handler := mcpGetKnowledge(deps)
	req := makeCallToolRequest("get_knowledge", map[string]interface{}{
		"id": "m-1",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var content storage.Content
	if err := json.Unmarshal([]byte(toolText(t, result)), &content); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if content.ID != "m-1" {
		t.Fatalf("content.ID = %q, want m-1", content.ID)
	}
}

func TestMCPTool_GetKnowledge_NotFound(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	handler := mcpGetKnowledge(deps)
	req := makeCallToolRequest("get_knowledge", map[string]interface{}{
		"id": "nonexistent",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing content")
	}
}

func TestMCPTool_RunIngestion(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "aurora.md", sampleDoc)

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })
	deps := Deps{Coordinator: coordinator.New(testConfig(t, dir), store), Token: testToken}

	handler := mcpRunIngestion(deps)
	req := makeCallToolRequest("run_ingestion", map[string]interface{}{})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var stats coordinator.Stats
	if err := json.Unmarshal([]byte(toolText(t, result)), &stats); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if stats.TotalStored != 1 {
		t.Fatalf("TotalStored = %d, want 1 (errors %v)", stats.TotalStored, stats.Errors)
	}
}

func TestMCPTool_GetStats(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedContent(t, store, "m-1", "Doc one", "technical", 8.0)
	seedContent(t, store, "m-2", "Doc two", "personal", 6.0)

	handler := mcpGetStats(deps)
	req := makeCallToolRequest("get_stats", map[string]interface{}{})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", toolText(t, result))
	}

	var stats storage.Statistics
	if err := json.Unmarshal([]byte(toolText(t, result)), &stats); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if stats.TotalContent != 2 {
		t.Fatalf("TotalContent = %d, want 2", stats.TotalContent)
	}
}

func TestMCPTool_ListCollections(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	handler := mcpListCollections(deps)
	req := makeCallToolRequest("list_collections", map[string]interface{}{})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}

	if _, err := store.CreateCollection("reading-list", ""); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	result, err = handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var collections []storage.Collection
	if err := json.Unmarshal([]byte(toolText(t, result)), &collections); err != nil {
		t.Fatalf("failed to parse collections: %v", err)
	}
	if len(collections) != 1 || collections[0].Name != "reading-list" {
		t.Fatalf("collections = %+v, want [reading-list]", collections)
	}
}

func TestMCPResource_Stats(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedContent(t, store, "m-1", "Doc one", "technical", 8.0)

	handler := mcpResourceStats(deps)
	req := makeReadResourceRequest("knowledge://stats")

	contents, err := handler(context.Background(), req)
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
	if tc.URI != "knowledge://stats" || tc.MIMEType != "application/json" {
		t.Errorf("URI = %q, MIMEType = %q", tc.URI, tc.MIMEType)
	}

	var stats storage.Statistics
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatalf("failed to parse stats JSON: %v", err)
	}
	if stats.TotalContent != 1 {
		t.Fatalf("TotalContent = %d, want 1", stats.TotalContent)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedContent(t, store, "m-1", "Doc one", "technical", 8.0)
	seedContent(t, store, "m-2", "Doc two", "personal", 6.0)

	handler := mcpResourceRecent(deps)
	req := makeReadResourceRequest("knowledge://recent")

	contents, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
