package server

import (
	"context"
	"slices"
	"strings"
	"testing"

	bq "cloud.google.com/go/bigquery"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/config"
	"github.com/gcptools/gcp-mcp/internal/tools/bigquery"
	"github.com/gcptools/gcp-mcp/internal/tools/cloudrun"
	"github.com/gcptools/gcp-mcp/internal/tools/compute"
	"github.com/gcptools/gcp-mcp/internal/tools/projects"
	"github.com/gcptools/gcp-mcp/internal/tools/storage"
)

// fakeBigQuery satisfies bigquery.API with canned data.
type fakeBigQuery struct {
	project string
}

func (f *fakeBigQuery) Project() string { return f.project }
func (f *fakeBigQuery) Close() error    { return nil }

func (f *fakeBigQuery) RunQuery(_ context.Context, _ string, _ bigquery.QueryOptions) (*bigquery.QueryResult, error) {
	return &bigquery.QueryResult{
		JobID:     "job-fake",
		Rows:      []map[string]any{{"answer": int64(42)}},
		TotalRows: 1,
	}, nil
}

func (f *fakeBigQuery) ListDatasets(context.Context) ([]bigquery.DatasetInfo, error) {
	return []bigquery.DatasetInfo{{ID: "analytics", Location: "US"}}, nil
}

func (f *fakeBigQuery) ListTables(context.Context, string) ([]bigquery.TableInfo, error) {
	return []bigquery.TableInfo{{ID: "events"}}, nil
}

func (f *fakeBigQuery) TableMetadata(context.Context, string, string) (*bq.TableMetadata, error) {
	return &bq.TableMetadata{Schema: bq.Schema{{Name: "id", Type: bq.IntegerFieldType}}}, nil
}

func (f *fakeBigQuery) CreateDataset(context.Context, string, string) error { return nil }

func (f *fakeBigQuery) JobStatus(_ context.Context, jobID, _ string) (*bigquery.JobInfo, error) {
	return &bigquery.JobInfo{ID: jobID, State: "DONE", Done: true}, nil
}

func (f *fakeBigQuery) CancelJob(context.Context, string, string) error { return nil }

type fakeStorage struct{}

func (fakeStorage) Close() error { return nil }

func (fakeStorage) ListBuckets(context.Context, string) ([]storage.BucketInfo, error) {
	return []storage.BucketInfo{{Name: "backups", Location: "US"}}, nil
}

func (fakeStorage) ListObjects(context.Context, string, string, int) ([]storage.ObjectInfo, bool, error) {
	return []storage.ObjectInfo{{Name: "dump.sql", Size: 10}}, false, nil
}

type fakeCompute struct{}

func (fakeCompute) Close() error { return nil }

func (fakeCompute) ListInstances(context.Context, string, string) ([]compute.InstanceInfo, error) {
	return []compute.InstanceInfo{{Name: "web-1", Zone: "us-central1-a", Status: "RUNNING"}}, nil
}

type fakeCloudRun struct{}

func (fakeCloudRun) Close() error { return nil }

func (fakeCloudRun) ListServices(context.Context, string, string) ([]cloudrun.ServiceInfo, error) {
	return []cloudrun.ServiceInfo{{Name: "api", Region: "us-central1", Ready: true}}, nil
}

type fakeProjects struct{}

func (fakeProjects) Close() error { return nil }

func (fakeProjects) SearchProjects(context.Context, string) ([]projects.ProjectInfo, error) {
	return []projects.ProjectInfo{{ProjectID: "test-project", State: "ACTIVE"}}, nil
}

func testDeps() Deps {
	return Deps{
		BigQuery: func(_ context.Context, project string) (bigquery.API, error) {
			return &fakeBigQuery{project: project}, nil
		},
		Storage:  func(context.Context) (storage.API, error) { return fakeStorage{}, nil },
		Compute:  func(context.Context) (compute.API, error) { return fakeCompute{}, nil },
		CloudRun: func(context.Context) (cloudrun.API, error) { return fakeCloudRun{}, nil },
		Projects: func(context.Context) (projects.API, error) { return fakeProjects{}, nil },
	}
}

func startTestServer(t *testing.T) *mcp.ClientSession {
	t.Helper()

	t1, t2 := mcp.NewInMemoryTransports()
	cfg := &config.Config{Project: "test-project", MaxRows: 1000}
	server := newServer(cfg, testDeps())
	client := mcp.NewClient(&mcp.Implementation{Name: "test client"}, nil)

	serverSession, err := server.Connect(t.Context(), t1, nil)
	if err != nil {
		t.Fatalf("Failed to connect server: %v", err)
	}
	clientSession, err := client.Connect(t.Context(), t2, nil)
	if err != nil {
		t.Fatalf("Failed to connect client: %v", err)
	}

	t.Cleanup(func() {
		if err := clientSession.Close(); err != nil {
			t.Fatalf("Failed to close client session: %v", err)
		}
		if err := serverSession.Wait(); err != nil {
			t.Fatalf("Server session failed: %v", err)
		}
	})

	return clientSession
}

func expectCallToolSuccess(t *testing.T, client *mcp.ClientSession, params *mcp.CallToolParams) string {
	t.Helper()
	res := callTool(t, client, params)
	if res.IsError {
		t.Fatalf("Expected tool call to succeed, but it failed. Full result: %#v", res)
	}
	return expectTextContent(t, res)
}

func expectCallToolError(t *testing.T, client *mcp.ClientSession, params *mcp.CallToolParams) string {
	t.Helper()
	res := callTool(t, client, params)
	if !res.IsError {
		t.Fatal("expected an error, but got none")
	}
	return expectTextContent(t, res)
}

func callTool(t *testing.T, client *mcp.ClientSession, params *mcp.CallToolParams) *mcp.CallToolResult {
	t.Helper()
	res, err := client.CallTool(t.Context(), params)
	if err != nil {
		t.Fatalf("client.CallTool failed: %v", err)
	}
	return res
}

func expectTextContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("Incorrect number of content blocks:\n- want: 1\n-  got: %d", len(res.Content))
	}
	textContent, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Incorrect content block type:\n- want: *mcp.TextContent\n-  got: %T", res.Content[0])
	}
	return textContent.Text
}

func TestListTools(t *testing.T) {
	client := startTestServer(t)
	res, err := client.ListTools(t.Context(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	var got []string
	for _, tool := range res.Tools {
		got = append(got, tool.Name)
	}
	want := []string{
		"bq-query", "bq-list-datasets", "bq-list-tables", "bq-describe-table",
		"bq-create-dataset", "bq-create-table", "bq-execute-dml",
		"bq-build-join-query", "bq-query-profile", "bq-partition-analysis",
		"bq-trend-analysis", "bq-job-status", "bq-cancel-job", "bq-wait-job",
		"gcs-list-buckets", "gcs-list-objects",
		"gce-list-instances", "run-list-services", "gcp-list-projects",
	}
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Fatalf("tool %q not registered; got %v", name, got)
		}
	}
}

func TestQueryTool(t *testing.T) {
	client := startTestServer(t)
	text := expectCallToolSuccess(t, client, &mcp.CallToolParams{
		Name:      "bq-query",
		Arguments: map[string]any{"sql": "SELECT 42 AS answer"},
	})
	if !strings.Contains(text, `"job-fake"`) {
		t.Fatalf("expected response to contain %q, but got %q", `"job-fake"`, text)
	}
	if !strings.Contains(text, `"answer": 42`) {
		t.Fatalf("expected response to contain the row, but got %q", text)
	}
}

func TestQueryTool_EmptySQL(t *testing.T) {
	client := startTestServer(t)
	errorText := expectCallToolError(t, client, &mcp.CallToolParams{
		Name:      "bq-query",
		Arguments: map[string]any{},
	})
	if !strings.Contains(errorText, "sql argument") {
		t.Fatalf("expected error to contain %q, but got %q", "sql argument", errorText)
	}
}

func TestBuildJoinQueryTool(t *testing.T) {
	client := startTestServer(t)
	text := expectCallToolSuccess(t, client, &mcp.CallToolParams{
		Name: "bq-build-join-query",
		Arguments: map[string]any{
			"table": "sales.orders",
			"alias": "o",
			"joins": []map[string]any{
				{"table": "sales.customers", "alias": "c", "on": "o.customer_id = c.id"},
			},
		},
	})
	if !strings.Contains(text, "INNER JOIN `sales.customers` AS `c`") {
		t.Fatalf("unexpected generated SQL: %q", text)
	}
}

func TestExecuteDMLTool_MissingWhere(t *testing.T) {
	client := startTestServer(t)
	errorText := expectCallToolError(t, client, &mcp.CallToolParams{
		Name: "bq-execute-dml",
		Arguments: map[string]any{
			"statement": "delete",
			"table":     "sales.orders",
		},
	})
	if !strings.Contains(errorText, "WHERE") {
		t.Fatalf("expected error to mention the WHERE clause, but got %q", errorText)
	}
}

func TestListBucketsTool(t *testing.T) {
	client := startTestServer(t)
	text := expectCallToolSuccess(t, client, &mcp.CallToolParams{
		Name:      "gcs-list-buckets",
		Arguments: map[string]any{},
	})
	if !strings.Contains(text, `"backups"`) {
		t.Fatalf("expected response to contain %q, but got %q", `"backups"`, text)
	}
}

func TestEmbeddedResources(t *testing.T) {
	testCases := []struct {
		name          string
		uri           string
		expectedText  string
		expectedError string
	}{
		{
			name:         "sql_reference",
			uri:          "gcp://sql-reference",
			expectedText: sqlReferenceDocumentation,
		},
		{
			name:         "tool_usage",
			uri:          "gcp://tool-usage",
			expectedText: toolUsageDocumentation,
		},
		{
			name:          "not_found",
			uri:           "gcp://foo",
			expectedError: "Resource not found",
		},
		{
			name:          "wrong_scheme",
			uri:           "http://sql-reference",
			expectedError: "Resource not found",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := startTestServer(t)
			res, err := client.ReadResource(t.Context(), &mcp.ReadResourceParams{URI: tc.uri})

			if tc.expectedError != "" {
				if err == nil {
					t.Fatal("expected an error, but got none")
				}
				if !strings.Contains(err.Error(), tc.expectedError) {
					t.Fatalf("error message %q does not contain %q", err.Error(), tc.expectedError)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Contents) != 1 {
				t.Fatalf("wanted len(res.Contents) = 1, got %d", len(res.Contents))
			}
			if res.Contents[0].Text != tc.expectedText {
				t.Fatalf("Incorrect resource content:\n- want: %q\n-  got: %q", tc.expectedText, res.Contents[0].Text)
			}
		})
	}
}
