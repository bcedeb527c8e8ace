// Package projects exposes Resource Manager project discovery as an MCP tool.
package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gcptools/gcp-mcp/internal/gcperr"
)

const userAgent = "gcp-mcp/0.2.0"

// ProjectInfo summarizes one project visible to the caller.
type ProjectInfo struct {
	ProjectID   string `json:"project_id"`
	DisplayName string `json:"display_name,omitempty"`
	State       string `json:"state"`
}

// API is the slice of the Resource Manager SDK the tool handler consumes.
type API interface {
	SearchProjects(ctx context.Context, query string) ([]ProjectInfo, error)
	Close() error
}

// Factory opens an API. The production factory dials the real service.
type Factory func(ctx context.Context) (API, error)

// NewClient is the production Factory.
func NewClient(ctx context.Context) (API, error) {
	c, err := resourcemanager.NewProjectsClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, gcperr.Classify("resourcemanager client", err)
	}
	return &client{projects: c}, nil
}

type client struct {
	projects *resourcemanager.ProjectsClient
}

func (c *client) Close() error { return c.projects.Close() }

func (c *client) SearchProjects(ctx context.Context, query string) ([]ProjectInfo, error) {
	var out []ProjectInfo
	it := c.projects.SearchProjects(ctx, &resourcemanagerpb.SearchProjectsRequest{Query: query})
	for {
		p, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("search projects", err)
		}
		out = append(out, ProjectInfo{
			ProjectID:   p.GetProjectId(),
			DisplayName: p.GetDisplayName(),
			State:       p.GetState().String(),
		})
	}
	return out, nil
}

type handlers struct {
	factory Factory
}

// Install registers the project discovery tool on s.
func Install(s *mcp.Server, factory Factory) {
	h := &handlers{factory: factory}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "gcp-list-projects",
		Description: "List the active GCP projects the caller can see, optionally filtered by a name fragment.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listProjects)
}

type listProjectsArgs struct {
	Filter string `json:"filter,omitempty" jsonschema:"substring to match against project IDs and display names"`
}

func (h *handlers) listProjects(ctx context.Context, _ *mcp.CallToolRequest, args listProjectsArgs) (*mcp.CallToolResult, any, error) {
	api, err := h.factory(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	query := "state:ACTIVE"
	if f := strings.TrimSpace(args.Filter); f != "" {
		query = fmt.Sprintf("state:ACTIVE AND (id:*%s* OR displayName:*%s*)", f, f)
	}
	projects, err := api.SearchProjects(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	data, err := json.MarshalIndent(map[string]any{"projects": projects}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
