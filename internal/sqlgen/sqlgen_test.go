package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"users", "my_table", "my-table", "table 2024", "événements", "T1"}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	invalid := []string{
		"",
		"users`; DROP TABLE customers; --",
		"a;b",
		"a.b", // dots belong to QuoteQualified
		"col(1)",
		"a'b",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateIdentifier(name), name)
	}
}

func TestQuoteQualified(t *testing.T) {
	got, err := QuoteQualified("proj.dataset.table")
	require.NoError(t, err)
	assert.Equal(t, "`proj.dataset.table`", got)

	got, err = QuoteQualified("dataset.table")
	require.NoError(t, err)
	assert.Equal(t, "`dataset.table`", got)

	_, err = QuoteQualified("a.b.c.d")
	assert.Error(t, err)

	_, err = QuoteQualified("ds.`table` WHERE 1=1")
	assert.ErrorIs(t, err, ErrInvalidCharacters)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"plain", "'plain'"},
		{"it's", `'it\'s'`},
		{"a\nb", `'a\nb'`},
		{true, "TRUE"},
		{false, "FALSE"},
		{int(7), "7"},
		{int64(-3), "-3"},
		{float64(4), "4"},
		{float64(4.5), "4.5"},
	}
	for _, tt := range tests {
		got, err := Literal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := Literal(struct{}{})
	assert.Error(t, err)
}

func TestJoinQuery(t *testing.T) {
	q := JoinQuery{
		Table:  "shop.orders",
		Alias:  "o",
		Select: []string{"o.id", "c.name", "o.amount"},
		Joins: []Join{
			{Table: "shop.customers", Alias: "c", Type: "left", On: "o.customer_id = c.id"},
		},
		Where:   "o.amount > 100",
		OrderBy: []string{"o.amount DESC"},
		Limit:   10,
	}
	got, err := q.SQL()
	require.NoError(t, err)
	want := "SELECT `o`.`id`, `c`.`name`, `o`.`amount`\n" +
		"FROM `shop.orders` AS `o`\n" +
		"LEFT JOIN `shop.customers` AS `c` ON o.customer_id = c.id\n" +
		"WHERE o.amount > 100\n" +
		"ORDER BY `o`.`amount` DESC\n" +
		"LIMIT 10"
	assert.Equal(t, want, got)
}

func TestJoinQuery_Defaults(t *testing.T) {
	got, err := JoinQuery{Table: "ds.t"}.SQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT *\nFROM `ds.t`", got)
}

func TestJoinQuery_Cross(t *testing.T) {
	q := JoinQuery{
		Table: "ds.a",
		Joins: []Join{{Table: "ds.b", Type: "CROSS"}},
	}
	got, err := q.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "CROSS JOIN `ds.b`")

	q.Joins[0].On = "a.x = b.x"
	_, err = q.SQL()
	assert.Error(t, err, "CROSS JOIN must reject an ON condition")
}

func TestJoinQuery_Errors(t *testing.T) {
	_, err := JoinQuery{Table: "ds.t", Joins: []Join{{Table: "ds.u", Type: "LEFT"}}}.SQL()
	assert.ErrorIs(t, err, ErrMissingJoinCondition)

	_, err = JoinQuery{Table: "ds.t", Joins: []Join{{Table: "ds.u", Type: "SIDEWAYS", On: "1=1"}}}.SQL()
	assert.Error(t, err)

	_, err = JoinQuery{Table: "ds.t", Where: "1=1; DROP TABLE x"}.SQL()
	assert.ErrorIs(t, err, ErrUnsafeCondition)

	_, err = JoinQuery{Table: "ds.t", Where: "1=1 -- comment"}.SQL()
	assert.ErrorIs(t, err, ErrUnsafeCondition)

	_, err = JoinQuery{Table: "ds.t", OrderBy: []string{"x SIDEWAYS"}}.SQL()
	assert.Error(t, err)

	_, err = JoinQuery{Table: "ds.t", Limit: -1}.SQL()
	assert.Error(t, err)
}

func TestCreateTable(t *testing.T) {
	c := CreateTable{
		Table: "proj.analytics.events",
		Columns: []Column{
			{Name: "event_time", Type: "TIMESTAMP", Required: true},
			{Name: "user_id", Type: "STRING", Description: "opaque user key"},
			{Name: "amount", Type: "FLOAT64"},
		},
		PartitionField: "event_time",
		ClusterBy:      []string{"user_id"},
		Description:    "event stream",
		ExpirationDays: 90,
		IfNotExists:    true,
	}
	got, err := c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "CREATE TABLE IF NOT EXISTS `proj.analytics.events` (")
	assert.Contains(t, got, "  `event_time` TIMESTAMP NOT NULL")
	assert.Contains(t, got, "  `user_id` STRING OPTIONS(description='opaque user key')")
	assert.Contains(t, got, "PARTITION BY TIMESTAMP_TRUNC(`event_time`, DAY)")
	assert.Contains(t, got, "CLUSTER BY `user_id`")
	assert.Contains(t, got, "description='event stream'")
	assert.Contains(t, got, "INTERVAL 90 DAY")
}

func TestCreateTable_IngestionTime(t *testing.T) {
	c := CreateTable{
		Table:         "ds.t",
		Columns:       []Column{{Name: "x", Type: "INT64"}},
		IngestionTime: true,
	}
	got, err := c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY _PARTITIONDATE")

	c.PartitionGranularity = "HOUR"
	got, err = c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY TIMESTAMP_TRUNC(_PARTITIONTIME, HOUR)")
}

func TestCreateTable_PartitionColumnTypes(t *testing.T) {
	base := CreateTable{
		Table: "ds.t",
		Columns: []Column{
			{Name: "d", Type: "DATE"},
			{Name: "dt", Type: "DATETIME"},
			{Name: "ts", Type: "TIMESTAMP"},
			{Name: "v", Type: "INT64"},
		},
	}

	c := base
	c.PartitionField = "d"
	got, err := c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY `d`")
	assert.NotContains(t, got, "TIMESTAMP_TRUNC")

	c.PartitionGranularity = "MONTH"
	got, err = c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY DATE_TRUNC(`d`, MONTH)")

	c = base
	c.PartitionField = "dt"
	c.PartitionGranularity = "HOUR"
	got, err = c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY DATETIME_TRUNC(`dt`, HOUR)")

	c = base
	c.PartitionField = "ts"
	c.PartitionGranularity = "MONTH"
	got, err = c.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "PARTITION BY TIMESTAMP_TRUNC(`ts`, MONTH)")

	c = base
	c.PartitionField = "d"
	c.PartitionGranularity = "HOUR"
	_, err = c.SQL()
	assert.ErrorContains(t, err, "cannot partition by HOUR")

	c = base
	c.PartitionField = "missing"
	_, err = c.SQL()
	assert.ErrorContains(t, err, "not a declared column")

	c = base
	c.PartitionField = "v"
	_, err = c.SQL()
	assert.ErrorContains(t, err, "must be a TIMESTAMP, DATE or DATETIME column")
}

func TestCreateTable_Errors(t *testing.T) {
	base := CreateTable{Table: "ds.t", Columns: []Column{{Name: "x", Type: "INT64"}}}

	c := base
	c.Columns = nil
	_, err := c.SQL()
	assert.Error(t, err)

	c = base
	c.Columns = []Column{{Name: "x", Type: "STRUCT<a INT64>"}}
	_, err = c.SQL()
	assert.Error(t, err)

	c = base
	c.PartitionField = "x"
	c.IngestionTime = true
	_, err = c.SQL()
	assert.Error(t, err)

	c = base
	c.ClusterBy = []string{"a", "b", "c", "d", "e"}
	_, err = c.SQL()
	assert.Error(t, err)

	c = base
	c.PartitionGranularity = "FORTNIGHT"
	_, err = c.SQL()
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	i := Insert{
		Table:   "ds.users",
		Columns: []string{"id", "name", "active"},
		Rows: [][]any{
			{int64(1), "ada", true},
			{int64(2), "grace", false},
		},
	}
	got, err := i.SQL()
	require.NoError(t, err)
	want := "INSERT INTO `ds.users` (`id`, `name`, `active`)\n" +
		"VALUES (1, 'ada', TRUE),\n" +
		"       (2, 'grace', FALSE)"
	assert.Equal(t, want, got)
}

func TestInsert_Select(t *testing.T) {
	i := Insert{
		Table:   "ds.archive",
		Columns: []string{"id"},
		Select:  "SELECT id FROM `ds.users` WHERE active = FALSE",
	}
	got, err := i.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "INSERT INTO `ds.archive` (`id`)\nSELECT id")
}

func TestInsert_Errors(t *testing.T) {
	_, err := Insert{Table: "ds.t", Columns: []string{"a"}}.SQL()
	assert.Error(t, err, "no rows and no select")

	_, err = Insert{Table: "ds.t", Columns: []string{"a"}, Rows: [][]any{{1, 2}}}.SQL()
	assert.Error(t, err, "row width mismatch")

	_, err = Insert{Table: "ds.t", Columns: []string{"a"}, Rows: [][]any{{1}}, Select: "SELECT 1"}.SQL()
	assert.Error(t, err, "rows and select together")
}

func TestUpdate(t *testing.T) {
	u := Update{
		Table: "ds.users",
		Set:   map[string]any{"name": "ada", "active": false},
		Where: "id = 1",
	}
	got, err := u.SQL()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `ds.users`\nSET `active` = FALSE, `name` = 'ada'\nWHERE id = 1", got)
}

func TestUpdate_RequiresWhere(t *testing.T) {
	_, err := Update{Table: "ds.t", Set: map[string]any{"a": 1}}.SQL()
	assert.ErrorIs(t, err, ErrMissingWhere)

	got, err := Update{Table: "ds.t", Set: map[string]any{"a": 1}, Where: "TRUE"}.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "WHERE TRUE")
}

func TestDelete(t *testing.T) {
	got, err := Delete{Table: "ds.t", Where: "created < '2020-01-01'"}.SQL()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `ds.t`\nWHERE created < '2020-01-01'", got)

	_, err = Delete{Table: "ds.t"}.SQL()
	assert.ErrorIs(t, err, ErrMissingWhere)
}

func TestMerge(t *testing.T) {
	m := Merge{
		Target:               "ds.current",
		TargetAlias:          "t",
		Source:               "ds.staged",
		SourceAlias:          "s",
		On:                   "t.id = s.id",
		WhenMatchedUpdate:    map[string]any{"state": "synced"},
		WhenNotMatchedInsert: []string{"id", "state"},
	}
	got, err := m.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "MERGE `ds.current` AS `t`\nUSING `ds.staged` AS `s`\nON t.id = s.id")
	assert.Contains(t, got, "WHEN MATCHED THEN UPDATE SET `state` = 'synced'")
	assert.Contains(t, got, "WHEN NOT MATCHED THEN INSERT (`id`, `state`) VALUES (`id`, `state`)")
}

func TestMerge_Errors(t *testing.T) {
	_, err := Merge{Target: "ds.a", Source: "ds.b", On: "", WhenMatchedDelete: true}.SQL()
	assert.Error(t, err, "missing ON")

	_, err = Merge{Target: "ds.a", Source: "ds.b", On: "a.id = b.id"}.SQL()
	assert.Error(t, err, "no actions")

	_, err = Merge{
		Target: "ds.a", Source: "ds.b", On: "a.id = b.id",
		WhenMatchedDelete: true, WhenMatchedUpdate: map[string]any{"x": 1},
	}.SQL()
	assert.Error(t, err, "conflicting matched actions")
}

func TestTrendQuery(t *testing.T) {
	q := TrendQuery{
		Table:        "proj.analytics.events",
		TimeColumn:   "event_time",
		Metric:       "amount",
		Aggregate:    "sum",
		Granularity:  "day",
		IntervalDays: 7,
		Where:        "country = 'DE'",
	}
	got, err := q.SQL()
	require.NoError(t, err)
	want := "SELECT TIMESTAMP_TRUNC(`event_time`, DAY) AS period, SUM(`amount`) AS value\n" +
		"FROM `proj.analytics.events`\n" +
		"WHERE `event_time` >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL 7 DAY)\n" +
		"  AND (country = 'DE')\n" +
		"GROUP BY period\nORDER BY period"
	assert.Equal(t, want, got)
}

func TestTrendQuery_Defaults(t *testing.T) {
	got, err := TrendQuery{Table: "ds.t", TimeColumn: "ts"}.SQL()
	require.NoError(t, err)
	assert.Contains(t, got, "COUNT(*) AS value")
	assert.Contains(t, got, "INTERVAL 30 DAY")
	assert.Contains(t, got, "TIMESTAMP_TRUNC(`ts`, DAY)")
}

func TestTrendQuery_Errors(t *testing.T) {
	_, err := TrendQuery{Table: "ds.t", TimeColumn: "ts", Aggregate: "SUM"}.SQL()
	assert.Error(t, err, "SUM needs a metric")

	_, err = TrendQuery{Table: "ds.t", TimeColumn: "ts", Granularity: "DECADE"}.SQL()
	assert.Error(t, err)

	_, err = TrendQuery{Table: "ds.t", TimeColumn: "ts; DROP"}.SQL()
	assert.Error(t, err)
}
