package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed sql-reference.md
var sqlReferenceDocumentation string

//go:embed tool-usage.md
var toolUsageDocumentation string

var embeddedResources = map[string]string{
	"sql-reference": sqlReferenceDocumentation,
	"tool-usage":    toolUsageDocumentation,
}

func embeddedResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	u, err := url.Parse(req.Params.URI)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "gcp" {
		return nil, fmt.Errorf("wrong scheme: %q", u.Scheme)
	}
	key := u.Host
	text, ok := embeddedResources[key]
	if !ok {
		return nil, fmt.Errorf("no embedded resource named %q", key)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/markdown", Text: text},
		},
	}, nil
}

func addEmbeddedResources(server *mcp.Server) {
	for resourceName := range embeddedResources {
		server.AddResource(&mcp.Resource{
			Name:     resourceName,
			MIMEType: "text/markdown",
			URI:      fmt.Sprintf("gcp://%s", resourceName),
		}, embeddedResource)
	}
}
