package cloudrun

import (
	"context"
	"testing"

	"cloud.google.com/go/run/apiv2/runpb"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	services   []ServiceInfo
	gotProject string
	gotRegion  string
	closed     bool
}

func (m *mockAPI) Close() error { m.closed = true; return nil }

func (m *mockAPI) ListServices(_ context.Context, project, region string) ([]ServiceInfo, error) {
	m.gotProject, m.gotRegion = project, region
	return m.services, nil
}

func TestListServices(t *testing.T) {
	m := &mockAPI{services: []ServiceInfo{
		{Name: "api", Region: "us-central1", URI: "https://api-x.run.app", Ready: true},
	}}
	h := &handlers{
		factory: func(context.Context) (API, error) { return m, nil },
		project: "test-project",
	}

	res, _, err := h.listServices(context.Background(), nil, listServicesArgs{})
	require.NoError(t, err)
	assert.Equal(t, "test-project", m.gotProject)
	assert.Empty(t, m.gotRegion)
	assert.True(t, m.closed)

	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, `"api"`)
	assert.Contains(t, text, "https://api-x.run.app")
}

func TestListServices_NoProject(t *testing.T) {
	h := &handlers{
		factory: func(context.Context) (API, error) { return &mockAPI{}, nil },
	}
	_, _, err := h.listServices(context.Background(), nil, listServicesArgs{})
	assert.ErrorContains(t, err, "no project")
}

func TestServiceInfo(t *testing.T) {
	svc := &runpb.Service{
		Name: "projects/p/locations/europe-west1/services/checkout",
		Uri:  "https://checkout-x.run.app",
		Template: &runpb.RevisionTemplate{
			Containers: []*runpb.Container{{Image: "gcr.io/p/checkout:v3"}},
		},
		TerminalCondition: &runpb.Condition{State: runpb.Condition_CONDITION_SUCCEEDED},
	}
	info := serviceInfo(svc)
	assert.Equal(t, "checkout", info.Name)
	assert.Equal(t, "europe-west1", info.Region)
	assert.Equal(t, "gcr.io/p/checkout:v3", info.Image)
	assert.True(t, info.Ready)
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, "us-east1", regionOf("projects/p/locations/us-east1/services/s"))
	assert.Equal(t, "", regionOf("projects/p"))
}
