package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"pdfrag/internal/app"
	"pdfrag/internal/search"
	"pdfrag/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const serverVersion = "1.0.0"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing document search tools over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; logs stay on stderr.
	a, _, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcpserver.ServeStdio(newMCPServer(a))
}

func newMCPServer(a *app.App) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("pdfrag", serverVersion, mcpserver.WithToolCapabilities(false))
	s.AddTool(searchDocumentsTool(), makeSearchHandler(a))
	s.AddTool(indexStatsTool(), makeStatsHandler(a.Store))
	s.AddTool(listSourcesTool(), makeListSourcesHandler(a.Store))
	return s
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchDocumentsTool() mcp.Tool {
	return mcp.NewTool("search_documents",
		mcp.WithDescription("Semantically search the indexed PDF documents. Returns the most similar text chunks with their source file, page and similarity."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default from configuration)"),
		),
	)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool("index_stats",
		mcp.WithDescription("Report how many documents and chunks are indexed, and with which embedding model."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listSourcesTool() mcp.Tool {
	return mcp.NewTool("list_sources",
		mcp.WithDescription("List the indexed PDF files with their chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("filter",
			mcp.Description("Optional case-insensitive substring the file path must contain"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(a *app.App) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", a.Config.TopK)
		if k <= 0 {
			k = a.Config.TopK
		}

		ready, err := a.SearchReady()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if !ready {
			return mcp.NewToolResultText(app.EmptyIndexMessage), nil
		}

		results, err := a.Engine.Search(ctx, query, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(search.Markdown(query, results)), nil
	}
}

func makeStatsHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := st.Stats()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatStats(stats)), nil
	}
}

func makeListSourcesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := strings.ToLower(req.GetString("filter", ""))

		sources, err := st.Sources()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list sources failed: %v", err)), nil
		}

		var filtered []store.SourceInfo
		for _, s := range sources {
			if filter == "" || strings.Contains(strings.ToLower(s.Path), filter) {
				filtered = append(filtered, s)
			}
		}
		return mcp.NewToolResultText(formatSources(filtered, filter)), nil
	}
}

// --- Formatting helpers ---

func formatStats(st store.Stats) string {
	var sb strings.Builder
	sb.WriteString("## Index statistics\n\n")
	fmt.Fprintf(&sb, "- **Documents:** %d\n", st.TotalDocuments)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", st.TotalChunks)
	if st.EmbeddingModel != "" {
		fmt.Fprintf(&sb, "- **Embedding model:** %s\n", st.EmbeddingModel)
	}
	if st.Dimension != nil {
		fmt.Fprintf(&sb, "- **Dimension:** %d\n", *st.Dimension)
	}
	if st.TotalChunks == 0 {
		sb.WriteString("\nThe index is empty. Run `pdfrag index <path>` to add documents.\n")
	}
	return sb.String()
}

func formatSources(sources []store.SourceInfo, filter string) string {
	var sb strings.Builder
	if filter != "" {
		fmt.Fprintf(&sb, "## Indexed files (%d, matching %q)\n\n", len(sources), filter)
	} else {
		fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(sources))
	}
	for _, s := range sources {
		fmt.Fprintf(&sb, "- **%s** (%d chunks) `%s`\n", filepath.Base(s.Path), s.Chunks, s.Path)
	}
	return sb.String()
}
