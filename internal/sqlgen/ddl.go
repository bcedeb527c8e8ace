package sqlgen

import (
	"fmt"
	"strings"
)

// Column is one column of a CREATE TABLE statement.
type Column struct {
	Name        string
	Type        string // BigQuery standard SQL type
	Required    bool
	Description string
}

// Partition granularities accepted by PARTITION BY on time columns.
var partitionGranularities = map[string]bool{
	"HOUR":  true,
	"DAY":   true,
	"MONTH": true,
	"YEAR":  true,
}

// columnTypes is the set of standard SQL scalar types the DDL builder
// accepts. Nested types are out of scope for generated DDL.
var columnTypes = map[string]bool{
	"STRING": true, "BYTES": true, "INT64": true, "INTEGER": true,
	"FLOAT64": true, "FLOAT": true, "NUMERIC": true, "BIGNUMERIC": true,
	"BOOL": true, "BOOLEAN": true, "TIMESTAMP": true, "DATE": true,
	"TIME": true, "DATETIME": true, "GEOGRAPHY": true, "JSON": true,
}

// CreateTable describes a CREATE TABLE statement with optional
// partitioning, clustering and table options.
type CreateTable struct {
	Table   string // qualified table name
	Columns []Column

	// PartitionField names a TIMESTAMP/DATE/DATETIME column to partition
	// on. Empty with IngestionTime set partitions on _PARTITIONTIME.
	PartitionField string
	// PartitionGranularity is HOUR, DAY, MONTH or YEAR (default DAY).
	PartitionGranularity string
	IngestionTime        bool

	// ClusterBy lists up to four clustering columns.
	ClusterBy []string

	Description    string
	ExpirationDays int
	IfNotExists    bool
}

// SQL renders the CREATE TABLE statement.
func (c CreateTable) SQL() (string, error) {
	table, err := QuoteQualified(c.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	if len(c.Columns) == 0 {
		return "", fmt.Errorf("table %s: no columns", c.Table)
	}

	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		name, err := QuoteIdentifier(col.Name)
		if err != nil {
			return "", fmt.Errorf("column %d: %w", i, err)
		}
		typ := strings.ToUpper(strings.TrimSpace(col.Type))
		if !columnTypes[typ] {
			return "", fmt.Errorf("column %q: unsupported type %q", col.Name, col.Type)
		}
		def := fmt.Sprintf("  %s %s", name, typ)
		if col.Required {
			def += " NOT NULL"
		}
		if col.Description != "" {
			def += fmt.Sprintf(" OPTIONS(description=%s)", quoteString(col.Description))
		}
		cols[i] = def
	}

	create := "CREATE TABLE "
	if c.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS "
	}

	var b strings.Builder
	b.WriteString(create + table + " (\n")
	b.WriteString(strings.Join(cols, ",\n"))
	b.WriteString("\n)")

	if c.PartitionField != "" && c.IngestionTime {
		return "", fmt.Errorf("table %s: partition field and ingestion-time partitioning are mutually exclusive", c.Table)
	}
	gran := strings.ToUpper(c.PartitionGranularity)
	if gran == "" {
		gran = "DAY"
	}
	if !partitionGranularities[gran] {
		return "", fmt.Errorf("unsupported partition granularity %q", c.PartitionGranularity)
	}
	switch {
	case c.PartitionField != "":
		field, err := QuoteIdentifier(c.PartitionField)
		if err != nil {
			return "", fmt.Errorf("partition field: %w", err)
		}
		// The truncation function is dictated by the column's type: DATE
		// columns partition directly (or via DATE_TRUNC), DATETIME needs
		// DATETIME_TRUNC, and TIMESTAMP_TRUNC only accepts TIMESTAMP.
		switch partitionColumnType(c.Columns, c.PartitionField) {
		case "TIMESTAMP":
			fmt.Fprintf(&b, "\nPARTITION BY TIMESTAMP_TRUNC(%s, %s)", field, gran)
		case "DATETIME":
			fmt.Fprintf(&b, "\nPARTITION BY DATETIME_TRUNC(%s, %s)", field, gran)
		case "DATE":
			if gran == "HOUR" {
				return "", fmt.Errorf("partition field %q: DATE columns cannot partition by HOUR", c.PartitionField)
			}
			if gran == "DAY" {
				fmt.Fprintf(&b, "\nPARTITION BY %s", field)
			} else {
				fmt.Fprintf(&b, "\nPARTITION BY DATE_TRUNC(%s, %s)", field, gran)
			}
		case "":
			return "", fmt.Errorf("partition field %q is not a declared column", c.PartitionField)
		default:
			return "", fmt.Errorf("partition field %q must be a TIMESTAMP, DATE or DATETIME column", c.PartitionField)
		}
	case c.IngestionTime:
		if gran == "DAY" {
			b.WriteString("\nPARTITION BY _PARTITIONDATE")
		} else {
			fmt.Fprintf(&b, "\nPARTITION BY TIMESTAMP_TRUNC(_PARTITIONTIME, %s)", gran)
		}
	}

	if len(c.ClusterBy) > 0 {
		if len(c.ClusterBy) > 4 {
			return "", fmt.Errorf("clustering supports at most 4 columns, got %d", len(c.ClusterBy))
		}
		quoted, err := quoteColumns(c.ClusterBy)
		if err != nil {
			return "", fmt.Errorf("cluster by: %w", err)
		}
		b.WriteString("\nCLUSTER BY " + strings.Join(quoted, ", "))
	}

	var opts []string
	if c.Description != "" {
		opts = append(opts, "description="+quoteString(c.Description))
	}
	if c.ExpirationDays < 0 {
		return "", fmt.Errorf("negative expiration: %d days", c.ExpirationDays)
	}
	if c.ExpirationDays > 0 {
		opts = append(opts, fmt.Sprintf("expiration_timestamp=TIMESTAMP_ADD(CURRENT_TIMESTAMP(), INTERVAL %d DAY)", c.ExpirationDays))
	}
	if len(opts) > 0 {
		b.WriteString("\nOPTIONS(" + strings.Join(opts, ", ") + ")")
	}

	return b.String(), nil
}

// partitionColumnType returns the normalized declared type of name, or ""
// when no column with that name exists.
func partitionColumnType(cols []Column, name string) string {
	for _, col := range cols {
		if col.Name == name {
			return strings.ToUpper(strings.TrimSpace(col.Type))
		}
	}
	return ""
}
