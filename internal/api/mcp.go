package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/christopher/internal/task"
)

// recentLimit is how many interactions christopher://recent lists.
const recentLimit = 10

type toolSpec struct {
	name        string
	typ         task.Type
	description string
	input       string
}

var toolSpecs = []toolSpec{
	{
		name:        "generate_code",
		typ:         task.GenerateFromDescription,
		description: "Generate code from a natural-language description using the local code model.",
		input:       "What the code should do",
	},
	{
		name:        "explain_code",
		typ:         task.Explain,
		description: "Explain a piece of code line by line.",
		input:       "The code to explain",
	},
	{
		name:        "complete_code",
		typ:         task.Complete,
		description: "Complete a partial piece of code.",
		input:       "The incomplete code",
	},
	{
		name:        "debug_code",
		typ:         task.Debug,
		description: "Find and fix the errors in a piece of code.",
		input:       "The faulty code",
	},
}

// NewMCPServer creates an MCP server exposing the four assistant tasks as
// tools and the recent interaction log as a resource.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"christopher",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("christopher: offline coding assistant backed by local models."),
		server.WithRecovery(),
	)

	for _, ts := range toolSpecs {
		opts := []mcp.ToolOption{
			mcp.WithDescription(ts.description),
			mcp.WithString("input", mcp.Description(ts.input), mcp.Required()),
			mcp.WithString("language", mcp.Description("Programming language, e.g. python, go, c")),
		}
		if ts.typ == task.Explain {
			opts = append(opts, mcp.WithString("explanation_language",
				mcp.Description("Natural language of the explanation (default English)")))
		}
		s.AddTool(mcp.NewTool(ts.name, opts...), mcpRunTask(deps, ts.typ))
	}

	s.AddResource(
		mcp.NewResource(
			"christopher://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 logged interactions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpRunTask(deps Deps, typ task.Type) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := req.RequireString("input")
		if err != nil {
			return mcpError("input is required"), nil
		}

		res, err := deps.Assistant.Run(ctx, task.Request{
			Type:                typ,
			Input:               input,
			Language:            req.GetString("language", ""),
			ExplanationLanguage: req.GetString("explanation_language", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("%s failed: %v", typ, err)), nil
		}

		return mcpText(res.Response), nil
	}
}

func mcpResourceRecent(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Store.ListInteractions(ctx, recentLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Task      string `json:"task"`
			Input     string `json:"input"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			input := ix.UserInput
			if utf8.RuneCountInString(input) > 200 {
				runes := []rune(input)
				input = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Task:      ix.TaskType,
				Input:     input,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
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
