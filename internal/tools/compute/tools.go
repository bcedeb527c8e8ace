// Package compute exposes Compute Engine listing operations as MCP tools.
package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gce "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/compute/apiv1/computepb"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gcptools/gcp-mcp/internal/gcperr"
)

const userAgent = "gcp-mcp/0.2.0"

// InstanceInfo is the flattened view of one VM instance.
type InstanceInfo struct {
	Name        string   `json:"name"`
	Zone        string   `json:"zone"`
	MachineType string   `json:"machine_type"`
	Status      string   `json:"status"`
	InternalIPs []string `json:"internal_ips,omitempty"`
	ExternalIPs []string `json:"external_ips,omitempty"`
}

// API is the slice of the Compute SDK the tool handlers consume.
type API interface {
	ListInstances(ctx context.Context, project, zone string) ([]InstanceInfo, error)
	Close() error
}

// Factory opens an API. The production factory dials the real service.
type Factory func(ctx context.Context) (API, error)

// NewClient is the production Factory.
func NewClient(ctx context.Context) (API, error) {
	c, err := gce.NewInstancesRESTClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, gcperr.Classify("compute client", err)
	}
	return &client{instances: c}, nil
}

type client struct {
	instances *gce.InstancesClient
}

func (c *client) Close() error { return c.instances.Close() }

// ListInstances lists one zone when zone is set, otherwise every zone via
// the aggregated listing.
func (c *client) ListInstances(ctx context.Context, project, zone string) ([]InstanceInfo, error) {
	if zone != "" {
		var out []InstanceInfo
		it := c.instances.List(ctx, &computepb.ListInstancesRequest{
			Project: project,
			Zone:    zone,
		})
		for {
			inst, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, gcperr.Classify("list instances", err)
			}
			out = append(out, instanceInfo(inst, zone))
		}
		return out, nil
	}

	var out []InstanceInfo
	it := c.instances.AggregatedList(ctx, &computepb.AggregatedListInstancesRequest{
		Project: project,
	})
	for {
		pair, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("list instances", err)
		}
		scope := strings.TrimPrefix(pair.Key, "zones/")
		for _, inst := range pair.Value.GetInstances() {
			out = append(out, instanceInfo(inst, scope))
		}
	}
	return out, nil
}

func instanceInfo(inst *computepb.Instance, zone string) InstanceInfo {
	info := InstanceInfo{
		Name:        inst.GetName(),
		Zone:        zone,
		MachineType: lastSegment(inst.GetMachineType()),
		Status:      inst.GetStatus(),
	}
	for _, ni := range inst.GetNetworkInterfaces() {
		if ip := ni.GetNetworkIP(); ip != "" {
			info.InternalIPs = append(info.InternalIPs, ip)
		}
		for _, ac := range ni.GetAccessConfigs() {
			if ip := ac.GetNatIP(); ip != "" {
				info.ExternalIPs = append(info.ExternalIPs, ip)
			}
		}
	}
	return info
}

// lastSegment trims a resource URL like .../machineTypes/e2-medium to its
// final path element.
func lastSegment(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

type handlers struct {
	factory Factory
	project string
}

// Install registers the Compute Engine tools on s.
func Install(s *mcp.Server, factory Factory, project string) {
	h := &handlers{factory: factory, project: project}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "gce-list-instances",
		Description: "List Compute Engine VM instances, across all zones or within one zone.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listInstances)
}

type listInstancesArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	Zone      string `json:"zone,omitempty" jsonschema:"restrict the listing to one zone, e.g. us-central1-a"`
}

func (h *handlers) listInstances(ctx context.Context, _ *mcp.CallToolRequest, args listInstancesArgs) (*mcp.CallToolResult, any, error) {
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

	instances, err := api.ListInstances(ctx, project, args.Zone)
	if err != nil {
		return nil, nil, err
	}

	data, err := json.MarshalIndent(map[string]any{
		"project":   project,
		"zone":      args.Zone,
		"instances": instances,
	}, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
