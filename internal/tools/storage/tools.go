// Package storage exposes Cloud Storage listing operations as MCP tools.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gcptools/gcp-mcp/internal/gcperr"
)

const userAgent = "gcp-mcp/0.2.0"

// BucketInfo summarizes one bucket.
type BucketInfo struct {
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
	Created      time.Time `json:"created,omitzero"`
}

// ObjectInfo summarizes one object of a bucket listing.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	StorageClass string    `json:"storage_class,omitempty"`
	Updated      time.Time `json:"updated,omitzero"`
}

// API is the slice of the Storage SDK the tool handlers consume.
type API interface {
	ListBuckets(ctx context.Context, project string) ([]BucketInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string, max int) ([]ObjectInfo, bool, error)
	Close() error
}

// Factory opens an API. The production factory dials the real service.
type Factory func(ctx context.Context) (API, error)

// NewClient is the production Factory.
func NewClient(ctx context.Context) (API, error) {
	c, err := gcs.NewClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, gcperr.Classify("storage client", err)
	}
	return &client{gcs: c}, nil
}

type client struct {
	gcs *gcs.Client
}

func (c *client) Close() error { return c.gcs.Close() }

func (c *client) ListBuckets(ctx context.Context, project string) ([]BucketInfo, error) {
	var out []BucketInfo
	it := c.gcs.Buckets(ctx, project)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("list buckets", err)
		}
		out = append(out, BucketInfo{
			Name:         attrs.Name,
			Location:     attrs.Location,
			StorageClass: attrs.StorageClass,
			Created:      attrs.Created,
		})
	}
	return out, nil
}

func (c *client) ListObjects(ctx context.Context, bucket, prefix string, max int) ([]ObjectInfo, bool, error) {
	it := c.gcs.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	return collectObjects(it, max)
}

// objectIterator is the slice of *gcs.ObjectIterator that collectObjects
// consumes.
type objectIterator interface {
	Next() (*gcs.ObjectAttrs, error)
}

// collectObjects drains up to max objects and reports whether more remain.
func collectObjects(it objectIterator, max int) ([]ObjectInfo, bool, error) {
	var out []ObjectInfo
	for len(out) < max {
		attrs, err := it.Next()
		if err == iterator.Done {
			return out, false, nil
		}
		if err != nil {
			return nil, false, gcperr.Classify("list objects", err)
		}
		out = append(out, ObjectInfo{
			Name:         attrs.Name,
			Size:         attrs.Size,
			ContentType:  attrs.ContentType,
			StorageClass: attrs.StorageClass,
			Updated:      attrs.Updated,
		})
	}
	// One more pull decides whether the listing was cut short.
	switch _, err := it.Next(); err {
	case iterator.Done:
		return out, false, nil
	case nil:
		return out, true, nil
	default:
		return nil, false, gcperr.Classify("list objects", err)
	}
}

type handlers struct {
	factory Factory
	project string
}

// Install registers the Cloud Storage tools on s.
func Install(s *mcp.Server, factory Factory, project string) {
	h := &handlers{factory: factory, project: project}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "gcs-list-buckets",
		Description: "List Cloud Storage buckets in the project.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listBuckets)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "gcs-list-objects",
		Description: "List objects in a Cloud Storage bucket, optionally under a name prefix.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listObjects)
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

type listBucketsArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
}

func (h *handlers) listBuckets(ctx context.Context, _ *mcp.CallToolRequest, args listBucketsArgs) (*mcp.CallToolResult, any, error) {
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

	buckets, err := api.ListBuckets(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"project": project, "buckets": buckets})
}

const defaultMaxObjects = 1000

type listObjectsArgs struct {
	Bucket     string `json:"bucket" jsonschema:"bucket name"`
	Prefix     string `json:"prefix,omitempty" jsonschema:"only list objects whose names start with this prefix"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"cap on returned objects (default 1000)"`
}

func (h *handlers) listObjects(ctx context.Context, _ *mcp.CallToolRequest, args listObjectsArgs) (*mcp.CallToolResult, any, error) {
	if args.Bucket == "" {
		return nil, nil, fmt.Errorf("bucket argument cannot be empty")
	}
	max := args.MaxResults
	if max <= 0 || max > defaultMaxObjects {
		max = defaultMaxObjects
	}

	api, err := h.factory(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	objects, truncated, err := api.ListObjects(ctx, args.Bucket, args.Prefix, max)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{
		"bucket":    args.Bucket,
		"prefix":    args.Prefix,
		"objects":   objects,
		"truncated": truncated,
	})
}
