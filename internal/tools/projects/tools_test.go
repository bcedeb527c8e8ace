package projects

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	projects []ProjectInfo
	gotQuery string
	closed   bool
}

func (m *mockAPI) Close() error { m.closed = true; return nil }

func (m *mockAPI) SearchProjects(_ context.Context, query string) ([]ProjectInfo, error) {
	m.gotQuery = query
	return m.projects, nil
}

func TestListProjects(t *testing.T) {
	m := &mockAPI{projects: []ProjectInfo{
		{ProjectID: "prod-data", DisplayName: "Prod Data", State: "ACTIVE"},
	}}
	h := &handlers{factory: func(context.Context) (API, error) { return m, nil }}

	res, _, err := h.listProjects(context.Background(), nil, listProjectsArgs{})
	require.NoError(t, err)
	assert.Equal(t, "state:ACTIVE", m.gotQuery)
	assert.True(t, m.closed)

	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, `"prod-data"`)
}

func TestListProjects_Filter(t *testing.T) {
	m := &mockAPI{}
	h := &handlers{factory: func(context.Context) (API, error) { return m, nil }}

	_, _, err := h.listProjects(context.Background(), nil, listProjectsArgs{Filter: "data"})
	require.NoError(t, err)
	assert.Equal(t, "state:ACTIVE AND (id:*data* OR displayName:*data*)", m.gotQuery)
}
