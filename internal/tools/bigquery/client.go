// Package bigquery exposes BigQuery operations as MCP tools. Handlers talk
// to the service through the narrow API interface so tests can substitute a
// mock for the SDK client.
package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gcptools/gcp-mcp/internal/gcperr"
)

const userAgent = "gcp-mcp/0.2.0"

// QueryOptions tune a single query execution.
type QueryOptions struct {
	DryRun         bool
	MaxBytesBilled int64
	Location       string
	MaxRows        int
}

// QueryResult is the bounded, serializable outcome of a query.
type QueryResult struct {
	JobID          string           `json:"job_id,omitempty"`
	Rows           []map[string]any `json:"rows,omitempty"`
	TotalRows      uint64           `json:"total_rows"`
	Truncated      bool             `json:"truncated,omitempty"`
	BytesProcessed int64            `json:"bytes_processed"`
	CacheHit       bool             `json:"cache_hit,omitempty"`
	DryRun         bool             `json:"dry_run,omitempty"`
}

// DatasetInfo summarizes one dataset.
type DatasetInfo struct {
	ID       string `json:"id"`
	Location string `json:"location,omitempty"`
}

// TableInfo summarizes one table of a dataset listing.
type TableInfo struct {
	ID string `json:"id"`
}

// JobInfo summarizes a job's status and statistics.
type JobInfo struct {
	ID             string    `json:"id"`
	State          string    `json:"state"`
	Done           bool      `json:"done"`
	Errors         []string  `json:"errors,omitempty"`
	StartTime      time.Time `json:"start_time,omitzero"`
	EndTime        time.Time `json:"end_time,omitzero"`
	BytesProcessed int64     `json:"bytes_processed,omitempty"`
}

// API is the slice of the BigQuery SDK the tool handlers consume.
type API interface {
	Project() string
	RunQuery(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error)
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
	ListTables(ctx context.Context, datasetID string) ([]TableInfo, error)
	TableMetadata(ctx context.Context, datasetID, tableID string) (*bq.TableMetadata, error)
	CreateDataset(ctx context.Context, datasetID, location string) error
	JobStatus(ctx context.Context, jobID, location string) (*JobInfo, error)
	CancelJob(ctx context.Context, jobID, location string) error
	Close() error
}

// Factory opens an API bound to a project. The production factory dials the
// real service; tests install one that returns a mock.
type Factory func(ctx context.Context, project string) (API, error)

// NewClient is the production Factory.
func NewClient(ctx context.Context, project string) (API, error) {
	c, err := bq.NewClient(ctx, project, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, gcperr.Classify("bigquery client", err)
	}
	return &client{bq: c, project: project}, nil
}

type client struct {
	bq      *bq.Client
	project string
}

func (c *client) Project() string { return c.project }

func (c *client) Close() error { return c.bq.Close() }

func (c *client) RunQuery(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error) {
	q := c.bq.Query(sql)
	q.DryRun = opts.DryRun
	if opts.MaxBytesBilled > 0 {
		q.MaxBytesBilled = opts.MaxBytesBilled
	}
	if opts.Location != "" {
		q.Location = opts.Location
	}

	var job *bq.Job
	err := gcperr.Retry(ctx, "run query", func(ctx context.Context) error {
		var err error
		job, err = q.Run(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &QueryResult{JobID: job.ID(), DryRun: opts.DryRun}
	if opts.DryRun {
		if stats := job.LastStatus().Statistics; stats != nil {
			res.BytesProcessed = stats.TotalBytesProcessed
		}
		return res, nil
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, gcperr.Classify("read query results", err)
	}
	res.Rows, res.Truncated, err = collectRows(bqRowIterator{it}, opts.MaxRows)
	if err != nil {
		return nil, err
	}
	res.TotalRows = it.TotalRows

	if status, err := job.Status(ctx); err == nil && status.Statistics != nil {
		res.BytesProcessed = status.Statistics.TotalBytesProcessed
		if qs, ok := status.Statistics.Details.(*bq.QueryStatistics); ok {
			res.CacheHit = qs.CacheHit
		}
	}
	return res, nil
}

// rowIterator is the slice of *bq.RowIterator that collectRows consumes.
// Schema and TotalRows are fields on the SDK iterator, populated only after
// the first Next, so the adapter reads them lazily through methods.
type rowIterator interface {
	Next(dst *[]bq.Value) error
	Schema() bq.Schema
	TotalRows() uint64
}

type bqRowIterator struct{ it *bq.RowIterator }

func (b bqRowIterator) Next(dst *[]bq.Value) error { return b.it.Next(dst) }
func (b bqRowIterator) Schema() bq.Schema          { return b.it.Schema }
func (b bqRowIterator) TotalRows() uint64          { return b.it.TotalRows }

// collectRows drains up to maxRows rows (default 1000) and reports whether
// the result set was cut short of the server's total.
func collectRows(it rowIterator, maxRows int) ([]map[string]any, bool, error) {
	if maxRows <= 0 {
		maxRows = 1000
	}
	var rows []map[string]any
	for len(rows) < maxRows {
		var row []bq.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, false, gcperr.Classify("read query results", err)
		}
		rows = append(rows, rowToMap(it.Schema(), row))
	}
	return rows, uint64(len(rows)) < it.TotalRows(), nil
}

func rowToMap(schema bq.Schema, row []bq.Value) map[string]any {
	m := make(map[string]any, len(row))
	for i, v := range row {
		name := fmt.Sprintf("f%d", i)
		if i < len(schema) {
			name = schema[i].Name
		}
		m[name] = v
	}
	return m
}

func (c *client) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	var out []DatasetInfo
	it := c.bq.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("list datasets", err)
		}
		info := DatasetInfo{ID: ds.DatasetID}
		// Location lives in metadata; a failed lookup degrades to ID only.
		if md, err := ds.Metadata(ctx); err == nil {
			info.Location = md.Location
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *client) ListTables(ctx context.Context, datasetID string) ([]TableInfo, error) {
	var out []TableInfo
	it := c.bq.Dataset(datasetID).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcperr.Classify("list tables", err)
		}
		out = append(out, TableInfo{ID: t.TableID})
	}
	return out, nil
}

func (c *client) TableMetadata(ctx context.Context, datasetID, tableID string) (*bq.TableMetadata, error) {
	var md *bq.TableMetadata
	err := gcperr.Retry(ctx, "table metadata", func(ctx context.Context) error {
		var err error
		md, err = c.bq.Dataset(datasetID).Table(tableID).Metadata(ctx)
		return err
	})
	return md, err
}

func (c *client) CreateDataset(ctx context.Context, datasetID, location string) error {
	md := &bq.DatasetMetadata{Location: location}
	err := c.bq.Dataset(datasetID).Create(ctx, md)
	return gcperr.Classify("create dataset", err)
}

func (c *client) JobStatus(ctx context.Context, jobID, location string) (*JobInfo, error) {
	job, err := c.job(ctx, jobID, location)
	if err != nil {
		return nil, err
	}
	status, err := job.Status(ctx)
	if err != nil {
		return nil, gcperr.Classify("job status", err)
	}
	return jobInfo(jobID, status), nil
}

func (c *client) CancelJob(ctx context.Context, jobID, location string) error {
	job, err := c.job(ctx, jobID, location)
	if err != nil {
		return err
	}
	return gcperr.Classify("cancel job", job.Cancel(ctx))
}

func (c *client) job(ctx context.Context, jobID, location string) (*bq.Job, error) {
	var job *bq.Job
	var err error
	if location != "" {
		job, err = c.bq.JobFromIDLocation(ctx, jobID, location)
	} else {
		job, err = c.bq.JobFromID(ctx, jobID)
	}
	if err != nil {
		return nil, gcperr.Classify("lookup job", err)
	}
	return job, nil
}

func jobInfo(jobID string, status *bq.JobStatus) *JobInfo {
	info := &JobInfo{ID: jobID, Done: status.Done()}
	switch status.State {
	case bq.Pending:
		info.State = "PENDING"
	case bq.Running:
		info.State = "RUNNING"
	case bq.Done:
		info.State = "DONE"
	}
	for _, e := range status.Errors {
		info.Errors = append(info.Errors, e.Error())
	}
	if status.Statistics != nil {
		info.StartTime = status.Statistics.StartTime
		info.EndTime = status.Statistics.EndTime
		info.BytesProcessed = status.Statistics.TotalBytesProcessed
	}
	return info
}
