package bigquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/queryprofile"
	"github.com/gcptools/gcp-mcp/internal/sqlgen"
	"github.com/gcptools/gcp-mcp/internal/textutil"
)

type handlers struct {
	factory Factory
	project string
	maxRows int
}

// Install registers the BigQuery tools on s. factory opens clients on
// demand, project is the default when a call names none, and maxRows caps
// query output.
func Install(s *mcp.Server, factory Factory, project string, maxRows int) {
	h := &handlers{factory: factory, project: project, maxRows: maxRows}

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-query",
		Description: textutil.Dedent(`
			Run a BigQuery SQL query and return the rows (capped). Set dry_run
			to estimate bytes scanned without running, and max_bytes_billed to
			put a hard ceiling on cost.
		`),
	}, h.query)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-list-datasets",
		Description: "List BigQuery datasets in the project.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listDatasets)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-list-tables",
		Description: "List tables in a BigQuery dataset.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.listTables)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-describe-table",
		Description: "Describe a BigQuery table: schema, partitioning, clustering, size.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.describeTable)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-create-dataset",
		Description: "Create a BigQuery dataset.",
	}, h.createDataset)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-create-table",
		Description: textutil.Dedent(`
			Create a BigQuery table from a column list, with optional time
			partitioning (a TIMESTAMP/DATE/DATETIME column or ingestion time)
			and up to four clustering columns. Returns the executed DDL.
		`),
	}, h.createTable)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-execute-dml",
		Description: textutil.Dedent(`
			Build and run an INSERT, UPDATE, DELETE or MERGE statement from
			structured arguments. UPDATE and DELETE refuse to run without a
			WHERE clause; pass "TRUE" explicitly to touch every row.
		`),
	}, h.executeDML)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-build-join-query",
		Description: textutil.Dedent(`
			Generate (without running) a SELECT that joins two or more tables.
			Table and column names are validated and quoted; the returned SQL
			can be fed to bq-query.
		`),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.buildJoinQuery)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-query-profile",
		Description: textutil.Dedent(`
			Inspect a SQL query for likely bottlenecks (SELECT *, cross joins,
			missing partition filters, unbounded sorts) without running it.
			Set dry_run to also fetch the bytes-scanned estimate.
		`),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.queryProfile)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-partition-analysis",
		Description: textutil.Dedent(`
			Analyze a table's metadata and recommend a partitioning and
			clustering layout, including ready-to-run DDL when the schema
			allows it.
		`),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.partitionAnalysis)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bq-trend-analysis",
		Description: textutil.Dedent(`
			Aggregate a table into time buckets, fit a linear trend over the
			buckets and flag outlier periods (|z-score| > 2).
		`),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.trendAnalysis)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-job-status",
		Description: "Report the state, errors and statistics of a BigQuery job.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.jobStatus)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-cancel-job",
		Description: "Cancel a running BigQuery job.",
	}, h.cancelJob)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bq-wait-job",
		Description: "Poll a BigQuery job until it finishes or the wait budget runs out.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, h.waitJob)
}

// api opens a client for the project named in the call, falling back to the
// configured default. Callers must Close the returned API.
func (h *handlers) api(ctx context.Context, project string) (API, error) {
	if project == "" {
		project = h.project
	}
	if project == "" {
		return nil, fmt.Errorf("no project: set GOOGLE_CLOUD_PROJECT or pass project_id")
	}
	return h.factory(ctx, project)
}

// jsonResult marshals v into a single text content block.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

type queryArgs struct {
	ProjectID      string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	SQL            string `json:"sql" jsonschema:"the SQL query to run"`
	DryRun         bool   `json:"dry_run,omitempty" jsonschema:"estimate bytes scanned instead of running"`
	MaxBytesBilled int64  `json:"max_bytes_billed,omitempty" jsonschema:"fail the query if it would bill more than this many bytes"`
	Location       string `json:"location,omitempty" jsonschema:"job location, e.g. US or europe-west1"`
	MaxRows        int    `json:"max_rows,omitempty" jsonschema:"cap on returned rows; bounded by the server limit"`
}

func (h *handlers) query(ctx context.Context, _ *mcp.CallToolRequest, args queryArgs) (*mcp.CallToolResult, any, error) {
	if args.SQL == "" {
		return nil, nil, fmt.Errorf("sql argument cannot be empty")
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	maxRows := args.MaxRows
	if maxRows <= 0 || maxRows > h.maxRows {
		maxRows = h.maxRows
	}
	res, err := api.RunQuery(ctx, args.SQL, QueryOptions{
		DryRun:         args.DryRun,
		MaxBytesBilled: args.MaxBytesBilled,
		Location:       args.Location,
		MaxRows:        maxRows,
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(res)
}

type projectArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
}

func (h *handlers) listDatasets(ctx context.Context, _ *mcp.CallToolRequest, args projectArgs) (*mcp.CallToolResult, any, error) {
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	datasets, err := api.ListDatasets(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"project": api.Project(), "datasets": datasets})
}

type listTablesArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	DatasetID string `json:"dataset_id" jsonschema:"the dataset to list"`
}

func (h *handlers) listTables(ctx context.Context, _ *mcp.CallToolRequest, args listTablesArgs) (*mcp.CallToolResult, any, error) {
	if args.DatasetID == "" {
		return nil, nil, fmt.Errorf("dataset_id argument cannot be empty")
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	tables, err := api.ListTables(ctx, args.DatasetID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"dataset": args.DatasetID, "tables": tables})
}

type tableArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	DatasetID string `json:"dataset_id" jsonschema:"dataset containing the table"`
	TableID   string `json:"table_id" jsonschema:"the table to inspect"`
}

func (a tableArgs) validate() error {
	if a.DatasetID == "" {
		return fmt.Errorf("dataset_id argument cannot be empty")
	}
	if a.TableID == "" {
		return fmt.Errorf("table_id argument cannot be empty")
	}
	return nil
}

func (h *handlers) describeTable(ctx context.Context, _ *mcp.CallToolRequest, args tableArgs) (*mcp.CallToolResult, any, error) {
	if err := args.validate(); err != nil {
		return nil, nil, err
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	md, err := api.TableMetadata(ctx, args.DatasetID, args.TableID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(describeMetadata(args.DatasetID, args.TableID, md))
}

type createDatasetArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	DatasetID string `json:"dataset_id" jsonschema:"ID of the dataset to create"`
	Location  string `json:"location,omitempty" jsonschema:"dataset location, e.g. US or europe-west1"`
}

func (h *handlers) createDataset(ctx context.Context, _ *mcp.CallToolRequest, args createDatasetArgs) (*mcp.CallToolResult, any, error) {
	if args.DatasetID == "" {
		return nil, nil, fmt.Errorf("dataset_id argument cannot be empty")
	}
	if err := sqlgen.ValidateIdentifier(args.DatasetID); err != nil {
		return nil, nil, fmt.Errorf("dataset_id: %w", err)
	}
	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	if err := api.CreateDataset(ctx, args.DatasetID, args.Location); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"created": args.DatasetID, "location": args.Location})
}

type columnArg struct {
	Name        string `json:"name" jsonschema:"column name"`
	Type        string `json:"type" jsonschema:"BigQuery standard SQL type, e.g. STRING, INT64, TIMESTAMP"`
	Required    bool   `json:"required,omitempty" jsonschema:"emit NOT NULL"`
	Description string `json:"description,omitempty" jsonschema:"column description"`
}

type createTableArgs struct {
	ProjectID            string      `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	DatasetID            string      `json:"dataset_id" jsonschema:"dataset to create the table in"`
	TableID              string      `json:"table_id" jsonschema:"name of the new table"`
	Columns              []columnArg `json:"columns" jsonschema:"column definitions"`
	PartitionField       string      `json:"partition_field,omitempty" jsonschema:"TIMESTAMP/DATE/DATETIME column to partition on"`
	PartitionGranularity string      `json:"partition_granularity,omitempty" jsonschema:"HOUR, DAY, MONTH or YEAR (default DAY)"`
	IngestionTime        bool        `json:"ingestion_time,omitempty" jsonschema:"partition on ingestion time instead of a column"`
	ClusterBy            []string    `json:"cluster_by,omitempty" jsonschema:"up to four clustering columns"`
	Description          string      `json:"description,omitempty" jsonschema:"table description"`
	ExpirationDays       int         `json:"expiration_days,omitempty" jsonschema:"auto-expire the table after this many days"`
	IfNotExists          bool        `json:"if_not_exists,omitempty" jsonschema:"no error if the table already exists"`
	Location             string      `json:"location,omitempty" jsonschema:"job location"`
}

func (h *handlers) createTable(ctx context.Context, _ *mcp.CallToolRequest, args createTableArgs) (*mcp.CallToolResult, any, error) {
	if args.DatasetID == "" || args.TableID == "" {
		return nil, nil, fmt.Errorf("dataset_id and table_id arguments cannot be empty")
	}
	cols := make([]sqlgen.Column, len(args.Columns))
	for i, c := range args.Columns {
		cols[i] = sqlgen.Column{Name: c.Name, Type: c.Type, Required: c.Required, Description: c.Description}
	}
	ddl, err := sqlgen.CreateTable{
		Table:                args.DatasetID + "." + args.TableID,
		Columns:              cols,
		PartitionField:       args.PartitionField,
		PartitionGranularity: args.PartitionGranularity,
		IngestionTime:        args.IngestionTime,
		ClusterBy:            args.ClusterBy,
		Description:          args.Description,
		ExpirationDays:       args.ExpirationDays,
		IfNotExists:          args.IfNotExists,
	}.SQL()
	if err != nil {
		return nil, nil, err
	}

	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	res, err := api.RunQuery(ctx, ddl, QueryOptions{Location: args.Location})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"ddl": ddl, "job_id": res.JobID})
}

type executeDMLArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	Statement string `json:"statement" jsonschema:"one of insert, update, delete, merge"`
	Table     string `json:"table" jsonschema:"target table as dataset.table"`

	// INSERT
	Columns []string `json:"columns,omitempty" jsonschema:"insert column list"`
	Rows    [][]any  `json:"rows,omitempty" jsonschema:"literal rows, one array per row"`
	Select  string   `json:"select,omitempty" jsonschema:"SELECT feeding the insert, instead of rows"`

	// UPDATE / MERGE
	Set map[string]any `json:"set,omitempty" jsonschema:"column to value assignments"`

	// UPDATE / DELETE
	Where string `json:"where,omitempty" jsonschema:"row filter; required, use TRUE to affect all rows"`

	// MERGE
	Source           string   `json:"source,omitempty" jsonschema:"merge source table as dataset.table"`
	On               string   `json:"on,omitempty" jsonschema:"merge join condition"`
	NotMatchedInsert []string `json:"not_matched_insert,omitempty" jsonschema:"columns to insert from the source when unmatched"`
	MatchedDelete    bool     `json:"matched_delete,omitempty" jsonschema:"delete matched rows instead of updating"`

	DryRun   bool   `json:"dry_run,omitempty" jsonschema:"validate and estimate without running"`
	Location string `json:"location,omitempty" jsonschema:"job location"`
}

func (h *handlers) executeDML(ctx context.Context, _ *mcp.CallToolRequest, args executeDMLArgs) (*mcp.CallToolResult, any, error) {
	var sql string
	var err error
	switch args.Statement {
	case "insert":
		sql, err = sqlgen.Insert{Table: args.Table, Columns: args.Columns, Rows: args.Rows, Select: args.Select}.SQL()
	case "update":
		sql, err = sqlgen.Update{Table: args.Table, Set: args.Set, Where: args.Where}.SQL()
	case "delete":
		sql, err = sqlgen.Delete{Table: args.Table, Where: args.Where}.SQL()
	case "merge":
		sql, err = sqlgen.Merge{
			Target:               args.Table,
			Source:               args.Source,
			On:                   args.On,
			WhenMatchedUpdate:    args.Set,
			WhenMatchedDelete:    args.MatchedDelete,
			WhenNotMatchedInsert: args.NotMatchedInsert,
		}.SQL()
	default:
		return nil, nil, fmt.Errorf("unknown statement %q: want insert, update, delete or merge", args.Statement)
	}
	if err != nil {
		return nil, nil, err
	}

	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	res, err := api.RunQuery(ctx, sql, QueryOptions{DryRun: args.DryRun, Location: args.Location})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"sql": sql, "result": res})
}

type joinArg struct {
	Table string `json:"table" jsonschema:"table to join, as dataset.table"`
	Alias string `json:"alias,omitempty" jsonschema:"table alias"`
	Type  string `json:"type,omitempty" jsonschema:"INNER, LEFT, RIGHT, FULL or CROSS (default INNER)"`
	On    string `json:"on,omitempty" jsonschema:"join condition; required except for CROSS"`
}

type buildJoinQueryArgs struct {
	Table   string    `json:"table" jsonschema:"base table as dataset.table"`
	Alias   string    `json:"alias,omitempty" jsonschema:"base table alias"`
	Select  []string  `json:"select,omitempty" jsonschema:"columns to project, e.g. o.id; defaults to *"`
	Joins   []joinArg `json:"joins" jsonschema:"join clauses in order"`
	Where   string    `json:"where,omitempty" jsonschema:"row filter"`
	GroupBy []string  `json:"group_by,omitempty" jsonschema:"grouping columns"`
	OrderBy []string  `json:"order_by,omitempty" jsonschema:"ordering columns, optionally with ASC/DESC"`
	Limit   int       `json:"limit,omitempty" jsonschema:"row limit"`
}

func (h *handlers) buildJoinQuery(_ context.Context, _ *mcp.CallToolRequest, args buildJoinQueryArgs) (*mcp.CallToolResult, any, error) {
	joins := make([]sqlgen.Join, len(args.Joins))
	for i, j := range args.Joins {
		joins[i] = sqlgen.Join{Table: j.Table, Alias: j.Alias, Type: j.Type, On: j.On}
	}
	sql, err := sqlgen.JoinQuery{
		Table:   args.Table,
		Alias:   args.Alias,
		Select:  args.Select,
		Joins:   joins,
		Where:   args.Where,
		GroupBy: args.GroupBy,
		OrderBy: args.OrderBy,
		Limit:   args.Limit,
	}.SQL()
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"sql": sql})
}

type queryProfileArgs struct {
	ProjectID string `json:"project_id,omitempty" jsonschema:"GCP project ID; only needed with dry_run"`
	SQL       string `json:"sql" jsonschema:"the SQL query to inspect"`
	DryRun    bool   `json:"dry_run,omitempty" jsonschema:"also dry-run the query for a bytes-scanned estimate"`
	Location  string `json:"location,omitempty" jsonschema:"job location for the dry run"`
}

func (h *handlers) queryProfile(ctx context.Context, _ *mcp.CallToolRequest, args queryProfileArgs) (*mcp.CallToolResult, any, error) {
	if args.SQL == "" {
		return nil, nil, fmt.Errorf("sql argument cannot be empty")
	}
	report := map[string]any{
		"profile":  queryprofile.Analyze(args.SQL),
		"findings": queryprofile.Detect(args.SQL),
	}
	if args.DryRun {
		api, err := h.api(ctx, args.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		defer api.Close()
		res, err := api.RunQuery(ctx, args.SQL, QueryOptions{DryRun: true, Location: args.Location})
		if err != nil {
			return nil, nil, err
		}
		report["bytes_processed"] = res.BytesProcessed
	}
	return jsonResult(report)
}
