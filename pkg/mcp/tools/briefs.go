package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-briefs/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-briefs/pkg/models"
)

// PublishedBriefSource serves the anonymized marketplace view of briefs.
type PublishedBriefSource interface {
	ListPublished(ctx context.Context) ([]models.PublishedBrief, error)
	GetPublished(ctx context.Context, briefID uuid.UUID) (*models.PublishedBrief, error)
}

// BriefToolDeps holds what the published-brief tools need.
type BriefToolDeps struct {
	Briefs PublishedBriefSource
	Logger *zap.Logger
}

type listPublishedResponse struct {
	Briefs []models.PublishedBrief `json:"briefs"`
	Total  int                     `json:"total"`
}

// RegisterBriefTools exposes published briefs to downstream agents. Only
// published briefs are reachable and none carry client identity.
func RegisterBriefTools(s *server.MCPServer, deps *BriefToolDeps) {
	registerListPublishedBriefsTool(s, deps)
	registerGetPublishedBriefTool(s, deps)
}

func registerListPublishedBriefsTool(s *server.MCPServer, deps *BriefToolDeps) {
	categories := make([]string, len(models.AllBriefCategories))
	for i, c := range models.AllBriefCategories {
		categories[i] = string(c)
	}

	tool := mcp.NewTool(
		"list_published_briefs",
		mcp.WithDescription(
			"List briefs that are open for proposals. "+
				"Returns title, category, budget, deadline and description for each brief. "+
				"Example: list_published_briefs(category='design')",
		),
		mcp.WithString(
			"category",
			mcp.Description("Only return briefs in this category"),
			mcp.Enum(categories...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var filter models.BriefCategory
		if raw := strings.TrimSpace(getOptionalString(req, "category")); raw != "" {
			c, err := models.ParseBriefCategory(raw)
			if err != nil {
				return NewErrorResult("invalid_parameters", err.Error()), nil
			}
			filter = c
		}

		briefs, err := deps.Briefs.ListPublished(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list published briefs: %w", err)
		}

		out := make([]models.PublishedBrief, 0, len(briefs))
		for _, b := range briefs {
			if filter == "" || b.Category == filter {
				out = append(out, b)
			}
		}

		deps.Logger.Debug("Listed published briefs",
			zap.String("category", string(filter)),
			zap.Int("count", len(out)))
		return jsonResult(listPublishedResponse{Briefs: out, Total: len(out)})
	})
}

func registerGetPublishedBriefTool(s *server.MCPServer, deps *BriefToolDeps) {
	tool := mcp.NewTool(
		"get_published_brief",
		mcp.WithDescription(
			"Get one published brief by id. Briefs that are not published are reported as not found.",
		),
		mcp.WithString(
			"brief_id",
			mcp.Required(),
			mcp.Description("UUID of the brief"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("brief_id")
		if err != nil {
			return nil, err
		}
		briefID, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return NewErrorResult("invalid_parameters", fmt.Sprintf("brief_id %q is not a UUID", raw)), nil
		}

		brief, err := deps.Briefs.GetPublished(ctx, briefID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return NewErrorResult("brief_not_found", "no published brief with that id"), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get published brief: %w", err)
		}
		return jsonResult(brief)
	})
}
