package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type jobArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	JobID     string `json:"job_id" jsonschema:"the BigQuery job ID"`
	Location  string `json:"location,omitempty" jsonschema:"job location, required for jobs outside the default region"`
}

func (h *handlers) jobStatus(ctx context.Context, _ *mcp.CallToolRequest, args jobArgs) (*mcp.CallToolResult, any, error) {
	if args.JobID == "" {
		return nil, nil, fmt.Errorf("job_id argument cannot be empty")
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	info, err := api.JobStatus(ctx, args.JobID, args.Location)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(info)
}

func (h *handlers) cancelJob(ctx context.Context, _ *mcp.CallToolRequest, args jobArgs) (*mcp.CallToolResult, any, error) {
	if args.JobID == "" {
		return nil, nil, fmt.Errorf("job_id argument cannot be empty")
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	if err := api.CancelJob(ctx, args.JobID, args.Location); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"cancelled": args.JobID})
}

type waitJobArgs struct {
	ProjectID      string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	JobID          string `json:"job_id" jsonschema:"the BigQuery job ID"`
	Location       string `json:"location,omitempty" jsonschema:"job location"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"wait budget in seconds (default 60, max 600)"`
}

// Polling cadence for bq-wait-job. The budget is bounded so a stuck job
// cannot pin a tool call forever. The interval is a variable so tests can
// shorten it.
var waitPollInterval = 2 * time.Second

const (
	defaultWaitSeconds = 60
	maxWaitSeconds     = 600
)

func (h *handlers) waitJob(ctx context.Context, _ *mcp.CallToolRequest, args waitJobArgs) (*mcp.CallToolResult, any, error) {
	if args.JobID == "" {
		return nil, nil, fmt.Errorf("job_id argument cannot be empty")
	}
	timeout := args.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultWaitSeconds
	}
	if timeout > maxWaitSeconds {
		timeout = maxWaitSeconds
	}

	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for {
		info, err := api.JobStatus(ctx, args.JobID, args.Location)
		if err != nil {
			return nil, nil, err
		}
		if info.Done {
			return jsonResult(info)
		}
		if time.Now().After(deadline) {
			return jsonResult(map[string]any{
				"timed_out": true,
				"waited":    fmt.Sprintf("%ds", timeout),
				"job":       info,
			})
		}
		if err := gax.Sleep(ctx, waitPollInterval); err != nil {
			return nil, nil, err
		}
	}
}
