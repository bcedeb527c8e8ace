package sqlgen

import (
	"fmt"
	"strings"
)

// Aggregates accepted by the trend query builder.
var trendAggregates = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

var trendGranularities = map[string]bool{
	"HOUR":  true,
	"DAY":   true,
	"WEEK":  true,
	"MONTH": true,
}

// TrendQuery describes a time-bucketed aggregate over one table, the shape
// consumed by trend analysis: one row per bucket, oldest first.
type TrendQuery struct {
	Table      string
	TimeColumn string // TIMESTAMP/DATETIME column to bucket on
	// Metric names the column to aggregate. Empty with COUNT counts rows.
	Metric      string
	Aggregate   string // COUNT, SUM, AVG, MIN, MAX (default COUNT)
	Granularity string // HOUR, DAY, WEEK, MONTH (default DAY)
	// IntervalDays bounds the scan to the trailing N days (default 30).
	IntervalDays int
	Where        string // optional extra filter
}

// SQL renders the trend query. Output columns are fixed: period, value.
func (t TrendQuery) SQL() (string, error) {
	table, err := QuoteQualified(t.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	timeCol, err := QuoteIdentifier(t.TimeColumn)
	if err != nil {
		return "", fmt.Errorf("time column: %w", err)
	}

	agg := strings.ToUpper(strings.TrimSpace(t.Aggregate))
	if agg == "" {
		agg = "COUNT"
	}
	if !trendAggregates[agg] {
		return "", fmt.Errorf("unsupported aggregate %q", t.Aggregate)
	}

	var expr string
	switch {
	case t.Metric == "" && agg == "COUNT":
		expr = "COUNT(*)"
	case t.Metric == "":
		return "", fmt.Errorf("aggregate %s requires a metric column", agg)
	default:
		metric, err := QuoteIdentifier(t.Metric)
		if err != nil {
			return "", fmt.Errorf("metric: %w", err)
		}
		expr = fmt.Sprintf("%s(%s)", agg, metric)
	}

	gran := strings.ToUpper(strings.TrimSpace(t.Granularity))
	if gran == "" {
		gran = "DAY"
	}
	if !trendGranularities[gran] {
		return "", fmt.Errorf("unsupported granularity %q", t.Granularity)
	}

	days := t.IntervalDays
	if days < 0 {
		return "", fmt.Errorf("negative interval: %d days", days)
	}
	if days == 0 {
		days = 30
	}

	where := fmt.Sprintf("%s >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d DAY)", timeCol, days)
	if t.Where != "" {
		if err := checkCondition(t.Where); err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		where += fmt.Sprintf("\n  AND (%s)", t.Where)
	}

	return fmt.Sprintf(
		"SELECT TIMESTAMP_TRUNC(%s, %s) AS period, %s AS value\nFROM %s\nWHERE %s\nGROUP BY period\nORDER BY period",
		timeCol, gran, expr, table, where,
	), nil
}
