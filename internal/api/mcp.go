package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/paperchat/paperchat/internal/pipeline"
	"github.com/paperchat/paperchat/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Answerer Answerer
}

// NewMCPServer creates an MCP server exposing the document library to
// MCP clients: listing processed documents, asking questions, and reading
// summaries and extracted entities.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"paperchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("paperchat: chat with uploaded PDF documents via retrieval-augmented generation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List all processed documents available for querying."),
		),
		mcpListDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_document",
			mcp.WithDescription("Ask a natural-language question about a processed document."),
			mcp.WithString("document_id", mcp.Description("Document id returned by list_documents"), mcp.Required()),
			mcp.WithString("query", mcp.Description("The question to ask"), mcp.Required()),
		),
		mcpAskDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("get_summary",
			mcp.WithDescription("Return the generated summary of a document."),
			mcp.WithString("document_id", mcp.Description("Document id"), mcp.Required()),
		),
		mcpGetSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("get_entities",
			mcp.WithDescription("Return the entities extracted from a document."),
			mcp.WithString("document_id", mcp.Description("Document id"), mcp.Required()),
		),
		mcpGetEntities(deps),
	)

	return s
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Store.ListProcessedDocuments()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		type docResult struct {
			ID         string `json:"id"`
			Filename   string `json:"filename"`
			UploadedAt string `json:"uploaded_at"`
		}
		results := make([]docResult, len(docs))
		for i, d := range docs {
			results[i] = docResult{
				ID:         d.ID,
				Filename:   d.Filename,
				UploadedAt: d.UploadedAt.Format("2006-01-02 15:04:05"),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		answer, err := deps.Answerer.Answer(ctx, documentID, query)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrNotFound):
			return mcpError("document not found"), nil
		case errors.Is(err, pipeline.ErrNotReady):
			return mcpError("document not processed yet"), nil
		default:
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcpText(answer), nil
	}
}

func mcpGetSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		doc, err := deps.Store.GetDocument(documentID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError("document not found"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load document: %v", err)), nil
		}
		if doc.Summary == "" {
			return mcpText("No summary available."), nil
		}
		return mcpText(doc.Summary), nil
	}
}

func mcpGetEntities(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		documentID, err := req.RequireString("document_id")
		if err != nil {
			return mcpError("document_id is required"), nil
		}

		if _, err := deps.Store.GetDocument(documentID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError("document not found"), nil
			}
			return mcpError(fmt.Sprintf("failed to load document: %v", err)), nil
		}

		entities, err := deps.Store.ListEntities(documentID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list entities: %v", err)), nil
		}

		type entityResult struct {
			Type  string `json:"type"`
			Text  string `json:"text"`
			Count int    `json:"count"`
		}
		results := make([]entityResult, len(entities))
		for i, e := range entities {
			results[i] = entityResult{Type: e.Type, Text: e.Text, Count: e.Count}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entities: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
