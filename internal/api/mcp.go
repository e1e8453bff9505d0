package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gleanerhq/gleaner/internal/storage"
)

// NewMCPServer creates an MCP server exposing the knowledge base to agents.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"gleaner",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("gleaner — personal knowledge base built from local files, notes, and cloud drives."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the knowledge base by keyword; returns content summaries ranked by quality."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("content_type", mcp.Description("Restrict to a content type (technical, personal, academic, ...)")),
			mcp.WithString("source", mcp.Description("Restrict to a source (file_system, apple_notes, cloud_drives, ...)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("get_knowledge",
			mcp.WithDescription("Fetch one knowledge record by id, including its full processed content."),
			mcp.WithString("id", mcp.Description("Content id"), mcp.Required()),
		),
		mcpGetKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("get_stats",
			mcp.WithDescription("Summarize the knowledge base: counts by type, source, and quality level; top keywords and topics."),
		),
		mcpGetStats(deps),
	)

	s.AddTool(
		mcp.NewTool("run_ingestion",
			mcp.WithDescription("Run a full ingestion pass over all enabled sources and return run statistics."),
		),
		mcpRunIngestion(deps),
	)

	s.AddTool(
		mcp.NewTool("list_collections",
			mcp.WithDescription("List named collections in the knowledge base."),
		),
		mcpListCollections(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"knowledge://stats",
			"Knowledge Base Statistics",
			mcp.WithResourceDescription("Corpus statistics: counts by type, source, and quality level; top keywords and topics"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"knowledge://recent",
			"Recently Ingested Content",
			mcp.WithResourceDescription("Summaries of the most recently processed content"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSearchKnowledge(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		filters := storage.SearchFilters{
			ContentType: req.GetString("content_type", ""),
			Source:      req.GetString("source", ""),
		}

		results, err := deps.Coordinator.SearchKnowledge(query, filters, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetKnowledge(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		content, err := deps.Coordinator.GetKnowledge(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("no content with id %s", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load content: %v", err)), nil
		}

		b, err := json.Marshal(content)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal content: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetStats(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.Coordinator.Statistics()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to compute statistics: %v", err)), nil
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRunIngestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := deps.Coordinator.RunFullIngestion(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListCollections(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collections, err := deps.Coordinator.ListCollections()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list collections: %v", err)), nil
		}
		if len(collections) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(collections)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal collections: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Coordinator.Statistics()
		if err != nil {
			return nil, fmt.Errorf("failed to compute statistics: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal statistics: %w", err)
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

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		results, err := deps.Coordinator.RecentKnowledge(10)
		if err != nil {
			return nil, fmt.Errorf("failed to load recent content: %w", err)
		}

		type recentEntry struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			ContentType   string `json:"content_type"`
			Source        string `json:"source"`
			Summary       string `json:"summary"`
			ProcessedTime string `json:"processed_time"`
		}

		entries := make([]recentEntry, len(results))
		for i, r := range results {
			entries[i] = recentEntry{
				ID:            r.ID,
				Title:         r.Title,
				ContentType:   r.ContentType,
				Source:        r.Source,
				Summary:       r.Summary,
				ProcessedTime: r.ProcessingTime.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal recent content: %w", err)
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
