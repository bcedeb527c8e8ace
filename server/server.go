// Package server assembles the MCP server: tool registration for every GCP
// service and the embedded documentation resources.
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/config"
	"github.com/gcptools/gcp-mcp/internal/tools/bigquery"
	"github.com/gcptools/gcp-mcp/internal/tools/cloudrun"
	"github.com/gcptools/gcp-mcp/internal/tools/compute"
	"github.com/gcptools/gcp-mcp/internal/tools/projects"
	"github.com/gcptools/gcp-mcp/internal/tools/storage"
)

const version = "0.2.0"

// Deps holds the client factories the tool handlers dial through. Production
// code uses ProdDeps; tests substitute mocks.
type Deps struct {
	BigQuery bigquery.Factory
	Storage  storage.Factory
	Compute  compute.Factory
	CloudRun cloudrun.Factory
	Projects projects.Factory
}

// ProdDeps returns factories that dial the real services.
func ProdDeps() Deps {
	return Deps{
		BigQuery: bigquery.NewClient,
		Storage:  storage.NewClient,
		Compute:  compute.NewClient,
		CloudRun: cloudrun.NewClient,
		Projects: projects.NewClient,
	}
}

// New creates a configured MCP server with all tools and resources registered.
func New(cfg *config.Config) *mcp.Server {
	return newServer(cfg, ProdDeps())
}

func newServer(cfg *config.Config, deps Deps) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "gcp-mcp", Version: version}, nil)
	addEmbeddedResources(s)
	bigquery.Install(s, deps.BigQuery, cfg.Project, cfg.MaxRows)
	storage.Install(s, deps.Storage, cfg.Project)
	compute.Install(s, deps.Compute, cfg.Project)
	cloudrun.Install(s, deps.CloudRun, cfg.Project)
	projects.Install(s, deps.Projects)
	return s
}
