package bigquery

import (
	"context"
	"fmt"
	"math"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gcptools/gcp-mcp/internal/queryprofile"
	"github.com/gcptools/gcp-mcp/internal/sqlgen"
)

type fieldInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Repeated    bool   `json:"repeated,omitempty"`
	Description string `json:"description,omitempty"`
}

type partitionInfo struct {
	Kind        string `json:"kind"` // time, range or ingestion_time
	Field       string `json:"field,omitempty"`
	Granularity string `json:"granularity,omitempty"`
}

type tableDescription struct {
	Dataset      string         `json:"dataset"`
	Table        string         `json:"table"`
	Type         string         `json:"type,omitempty"`
	Description  string         `json:"description,omitempty"`
	Schema       []fieldInfo    `json:"schema"`
	Partitioning *partitionInfo `json:"partitioning,omitempty"`
	Clustering   []string       `json:"clustering,omitempty"`
	NumRows      uint64         `json:"num_rows"`
	NumBytes     int64          `json:"num_bytes"`
	Created      time.Time      `json:"created,omitzero"`
	LastModified time.Time      `json:"last_modified,omitzero"`
}

func describeMetadata(datasetID, tableID string, md *bq.TableMetadata) *tableDescription {
	d := &tableDescription{
		Dataset:      datasetID,
		Table:        tableID,
		Type:         string(md.Type),
		Description:  md.Description,
		NumRows:      md.NumRows,
		NumBytes:     md.NumBytes,
		Created:      md.CreationTime,
		LastModified: md.LastModifiedTime,
	}
	for _, f := range md.Schema {
		d.Schema = append(d.Schema, fieldInfo{
			Name:        f.Name,
			Type:        string(f.Type),
			Required:    f.Required,
			Repeated:    f.Repeated,
			Description: f.Description,
		})
	}
	if tp := md.TimePartitioning; tp != nil {
		kind := "time"
		if tp.Field == "" {
			kind = "ingestion_time"
		}
		d.Partitioning = &partitionInfo{Kind: kind, Field: tp.Field, Granularity: string(tp.Type)}
	} else if md.RangePartitioning != nil {
		d.Partitioning = &partitionInfo{Kind: "range", Field: md.RangePartitioning.Field}
	}
	if md.Clustering != nil {
		d.Clustering = md.Clustering.Fields
	}
	return d
}

// Size thresholds for partitioning advice. Below the small bound the
// overhead outweighs the pruning; above the large bound unpartitioned scans
// get expensive fast.
const (
	smallTableBytes = 100 << 20
	largeTableBytes = 1 << 30
)

type recommendation struct {
	Severity string `json:"severity"` // info, suggestion or high
	Detail   string `json:"detail"`
	DDL      string `json:"ddl,omitempty"`
}

type partitionReport struct {
	Table           *tableDescription `json:"table"`
	TimeColumns     []string          `json:"time_columns,omitempty"`
	Recommendations []recommendation  `json:"recommendations"`
}

func (h *handlers) partitionAnalysis(ctx context.Context, _ *mcp.CallToolRequest, args tableArgs) (*mcp.CallToolResult, any, error) {
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
	return jsonResult(analyzePartitioning(args.DatasetID, args.TableID, md))
}

func analyzePartitioning(datasetID, tableID string, md *bq.TableMetadata) *partitionReport {
	report := &partitionReport{Table: describeMetadata(datasetID, tableID, md)}

	var timeCols []string
	for _, f := range md.Schema {
		switch f.Type {
		case bq.TimestampFieldType, bq.DateFieldType, bq.DateTimeFieldType:
			if !f.Repeated {
				timeCols = append(timeCols, f.Name)
			}
		}
	}
	report.TimeColumns = timeCols

	if report.Table.Partitioning != nil {
		report.Recommendations = append(report.Recommendations, recommendation{
			Severity: "info",
			Detail:   "table is already partitioned; verify queries filter on the partition column so pruning applies",
		})
		if len(report.Table.Clustering) == 0 && md.NumBytes > largeTableBytes {
			if cols := clusterCandidates(md.Schema, partitionField(md)); len(cols) > 0 {
				report.Recommendations = append(report.Recommendations, recommendation{
					Severity: "suggestion",
					Detail:   fmt.Sprintf("large partitioned table has no clustering; consider CLUSTER BY %v to cut scanned bytes on selective filters", cols),
				})
			}
		}
		return report
	}

	switch {
	case md.NumBytes < smallTableBytes:
		report.Recommendations = append(report.Recommendations, recommendation{
			Severity: "info",
			Detail:   fmt.Sprintf("table is small (%s); partitioning would add overhead without meaningful savings", humanBytes(md.NumBytes)),
		})
	case len(timeCols) > 0:
		sev := "suggestion"
		if md.NumBytes > largeTableBytes {
			sev = "high"
		}
		rec := recommendation{
			Severity: sev,
			Detail: fmt.Sprintf("unpartitioned table is %s; partition on %q (DAY) so time-bounded queries prune partitions",
				humanBytes(md.NumBytes), timeCols[0]),
		}
		if ddl, err := replacementDDL(datasetID, tableID, md, timeCols[0]); err == nil {
			rec.DDL = ddl
		}
		report.Recommendations = append(report.Recommendations, rec)
	default:
		report.Recommendations = append(report.Recommendations, recommendation{
			Severity: "suggestion",
			Detail: fmt.Sprintf("unpartitioned table is %s and has no time column; ingestion-time partitioning (_PARTITIONTIME) still enables pruning",
				humanBytes(md.NumBytes)),
		})
	}
	return report
}

func partitionField(md *bq.TableMetadata) string {
	if md.TimePartitioning != nil {
		return md.TimePartitioning.Field
	}
	if md.RangePartitioning != nil {
		return md.RangePartitioning.Field
	}
	return ""
}

// clusterCandidates picks up to four scalar STRING/INT64/BOOL columns,
// skipping the partition column.
func clusterCandidates(schema bq.Schema, skip string) []string {
	var cols []string
	for _, f := range schema {
		if f.Repeated || f.Name == skip {
			continue
		}
		switch f.Type {
		case bq.StringFieldType, bq.IntegerFieldType, bq.BooleanFieldType:
			cols = append(cols, f.Name)
		}
		if len(cols) == 4 {
			break
		}
	}
	return cols
}

// replacementDDL renders a CREATE TABLE matching the current schema with the
// recommended partitioning. Nested or repeated fields have no DDL rendering
// here, so those tables get advice without a statement.
func replacementDDL(datasetID, tableID string, md *bq.TableMetadata, field string) (string, error) {
	cols := make([]sqlgen.Column, 0, len(md.Schema))
	for _, f := range md.Schema {
		if f.Repeated || f.Type == bq.RecordFieldType {
			return "", fmt.Errorf("schema has nested or repeated field %q", f.Name)
		}
		cols = append(cols, sqlgen.Column{
			Name:        f.Name,
			Type:        string(f.Type),
			Required:    f.Required,
			Description: f.Description,
		})
	}
	return sqlgen.CreateTable{
		Table:          datasetID + "." + tableID + "_partitioned",
		Columns:        cols,
		PartitionField: field,
		ClusterBy:      clusterCandidates(md.Schema, field),
	}.SQL()
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<40:
		return fmt.Sprintf("%.1f TiB", float64(n)/(1<<40))
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

type trendArgs struct {
	ProjectID    string `json:"project_id,omitempty" jsonschema:"GCP project ID; defaults to the configured project"`
	Table        string `json:"table" jsonschema:"table to analyze, as dataset.table"`
	TimeColumn   string `json:"time_column" jsonschema:"TIMESTAMP column that orders the data"`
	Metric       string `json:"metric,omitempty" jsonschema:"column to aggregate; defaults to row counts"`
	Aggregate    string `json:"aggregate,omitempty" jsonschema:"COUNT, SUM, AVG, MIN or MAX (default COUNT)"`
	Granularity  string `json:"granularity,omitempty" jsonschema:"HOUR, DAY, WEEK or MONTH bucket size (default DAY)"`
	IntervalDays int    `json:"interval_days,omitempty" jsonschema:"how far back to look (default 30)"`
	Where        string `json:"where,omitempty" jsonschema:"extra row filter"`
	Location     string `json:"location,omitempty" jsonschema:"job location"`
}

type trendPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
	ZScore float64   `json:"z_score"`
}

type trendReport struct {
	SQL        string                 `json:"sql"`
	Points     []trendPoint           `json:"points"`
	Regression queryprofile.Regression `json:"regression"`
	Direction  string                 `json:"direction"`
	Outliers   []trendPoint           `json:"outliers,omitempty"`
}

func (h *handlers) trendAnalysis(ctx context.Context, _ *mcp.CallToolRequest, args trendArgs) (*mcp.CallToolResult, any, error) {
	sql, err := sqlgen.TrendQuery{
		Table:        args.Table,
		TimeColumn:   args.TimeColumn,
		Metric:       args.Metric,
		Aggregate:    args.Aggregate,
		Granularity:  args.Granularity,
		IntervalDays: args.IntervalDays,
		Where:        args.Where,
	}.SQL()
	if err != nil {
		return nil, nil, err
	}

	api, err := h.api(ctx, args.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	defer api.Close()

	res, err := api.RunQuery(ctx, sql, QueryOptions{Location: args.Location, MaxRows: h.maxRows})
	if err != nil {
		return nil, nil, err
	}

	report, err := buildTrendReport(sql, res.Rows)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(report)
}

func buildTrendReport(sql string, rows []map[string]any) (*trendReport, error) {
	report := &trendReport{SQL: sql, Points: []trendPoint{}}
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		period, ok := row["period"].(time.Time)
		if !ok {
			return nil, fmt.Errorf("unexpected period value %v", row["period"])
		}
		v, err := toFloat(row["value"])
		if err != nil {
			return nil, err
		}
		report.Points = append(report.Points, trendPoint{Period: period, Value: v})
		values = append(values, v)
	}

	report.Regression = queryprofile.LinearRegression(values)
	report.Direction = queryprofile.ClassifyTrend(report.Regression.Slope, values)

	zs := queryprofile.ZScores(values)
	for i := range report.Points {
		report.Points[i].ZScore = round4(zs[i])
	}
	for _, i := range queryprofile.Outliers(values, 2) {
		report.Outliers = append(report.Outliers, report.Points[i])
	}
	return report, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected metric value %v (%T)", v, v)
	}
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
