// Package cloudrun exposes Cloud Run listing operations as MCP tools.
package cloudrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gcptools/gcp-mcp/internal/gcperr"
)

const userAgent = "gcp-mcp/0.2.0"

// ServiceInfo is the flattened view of one Cloud Run service.
type ServiceInfo struct {
	Name       string    `json:"name"`
	Region     string    `json:"region"`
	URI        string    `json:"uri,omitempty"`
	Image      string    `json:"image,omitempty"`
	Ready      bool      `json:"ready"`
	LastUpdate time.Time `json:"last_update,omitzero"`
}

// API is the slice of the Cloud Run SDK the tool handlers consume.
type API interface {
	ListServices(ctx context.Context, project, region string) ([]ServiceInfo, error)
	Close() error
}

// Factory opens an API. The production factory dials the real service.
type Factory func(ctx context.Context) (API, error)

// NewClient is the production Factory.
func NewClient(ctx context.Context) (API, error) {
	c, err := run.NewServicesClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, gcperr.Classify("run client", err)
	}
	return &client{services: c}, nil
}

type client struct {
	services *run.ServicesClient
}

func (c *client) Close() error { return c.services.Close() }

func (c *client) ListServices(ctx context.Context, project, region string) ([]ServiceInfo, error) {
	if region == "" {
		// The wildcard location lists every region in one call.
		region = "-"
	}
	var out []ServiceInfo
	it := c.services.ListServices(ctx, &runpb.ListServicesRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s", project, region),
	})
	for {
		svc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("list services", err)
		}
		out = append(out, serviceInfo(svc))
	}
	return out, nil
}

func serviceInfo(svc *runpb.Service) ServiceInfo {
	info := ServiceInfo{
		Name:   lastSegment(svc.GetName()),
		Region: regionOf(svc.GetName()),
		URI:    svc.GetUri(),
	}
	if tmpl := svc.GetTemplate(); tmpl != nil && len(tmpl.GetContainers()) > 0 {
		info.Image = tmpl.GetContainers()[0].GetImage()
	}
	if cond := svc.GetTerminalCondition(); cond != nil {
		info.Ready = cond.GetState() == runpb.Condition_CONDITION_SUCCEEDED
	}
	if ts := svc.GetUpdateTime(); ts != nil {
		info.LastUpdate = ts.AsTime()
	}
	return info
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// regionOf extracts the location from a resource name like
// projects/p/locations/us-central1/services/s.
func regionOf(name string) string {
	parts := strings.Split(name, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "locations" {
			return parts[i+1]
		}
	}
	return ""
}

type handlers struct {
	factory Factory
	project string
}

// Install registers the Cloud Run tools on s.
func Install(s *mcp.Server, factory Factory, project string) {
	h := &handlers{factory: factory, project: project}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "run-list-services",
		Description: "List Cloud Run services, across all regions or within one region.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listServices)
}

type listServicesArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	Region    string `json:"region,omitempty" jsonschema:"restrict the listing to one region, e.g. us-central1"`
}

func (h *handlers) listServices(ctx context.Context, _ *mcp.CallToolRequest, args listServicesArgs) (*mcp.CallToolResult, any, error) {
	project := args.ProjectID
	if project == "" {
		project = h.project
	}
	if project == "" {
		return nil, nil, fmt.Errorf("no project: set GOOGLE_CLOUD_PROJECT or pass project_id")
	}

	api, err := h.factory(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	services, err := api.ListServices(ctx, project, args.Region)
	if err != nil {
		return nil, nil, err
	}

	data, err := json.MarshalIndent(map[string]any{
		"project":  project,
		"region":   args.Region,
		"services": services,
	}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
