package sqlgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingWhere guards UPDATE and DELETE: touching every row requires an
// explicit WHERE TRUE, never an omitted clause.
var ErrMissingWhere = errors.New("statement requires a WHERE clause (use TRUE to affect all rows)")

// Insert describes an INSERT statement fed either by literal rows or by a
// SELECT.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]any // literal values, one slice per row
	Select  string  // alternative to Rows: a full SELECT statement
}

// SQL renders the INSERT.
func (i Insert) SQL() (string, error) {
	table, err := QuoteQualified(i.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	if len(i.Columns) == 0 {
		return "", fmt.Errorf("insert into %s: no columns", i.Table)
	}
	cols, err := quoteColumns(i.Columns)
	if err != nil {
		return "", fmt.Errorf("columns: %w", err)
	}

	head := fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(cols, ", "))

	switch {
	case len(i.Rows) > 0 && i.Select != "":
		return "", fmt.Errorf("insert into %s: rows and select are mutually exclusive", i.Table)
	case i.Select != "":
		if err := checkCondition(i.Select); err != nil {
			return "", fmt.Errorf("select: %w", err)
		}
		return head + "\n" + i.Select, nil
	case len(i.Rows) == 0:
		return "", fmt.Errorf("insert into %s: no rows", i.Table)
	}

	values := make([]string, len(i.Rows))
	for r, row := range i.Rows {
		if len(row) != len(i.Columns) {
			return "", fmt.Errorf("row %d has %d values, want %d", r, len(row), len(i.Columns))
		}
		lits := make([]string, len(row))
		for c, v := range row {
			lit, err := Literal(v)
			if err != nil {
				return "", fmt.Errorf("row %d column %q: %w", r, i.Columns[c], err)
			}
			lits[c] = lit
		}
		values[r] = "(" + strings.Join(lits, ", ") + ")"
	}
	return head + "\nVALUES " + strings.Join(values, ",\n       "), nil
}

// Update describes an UPDATE statement.
type Update struct {
	Table string
	Set   map[string]any
	Where string
}

// SQL renders the UPDATE. Assignments are emitted in sorted column order so
// output is deterministic.
func (u Update) SQL() (string, error) {
	table, err := QuoteQualified(u.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	if len(u.Set) == 0 {
		return "", fmt.Errorf("update %s: empty SET", u.Table)
	}
	if strings.TrimSpace(u.Where) == "" {
		return "", ErrMissingWhere
	}
	if err := checkCondition(u.Where); err != nil {
		return "", fmt.Errorf("where: %w", err)
	}

	cols := make([]string, 0, len(u.Set))
	for c := range u.Set {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	assigns := make([]string, len(cols))
	for i, c := range cols {
		name, err := QuoteIdentifier(c)
		if err != nil {
			return "", fmt.Errorf("set column: %w", err)
		}
		lit, err := Literal(u.Set[c])
		if err != nil {
			return "", fmt.Errorf("set %q: %w", c, err)
		}
		assigns[i] = name + " = " + lit
	}
	return fmt.Sprintf("UPDATE %s\nSET %s\nWHERE %s", table, strings.Join(assigns, ", "), u.Where), nil
}

// Delete describes a DELETE statement.
type Delete struct {
	Table string
	Where string
}

// SQL renders the DELETE.
func (d Delete) SQL() (string, error) {
	table, err := QuoteQualified(d.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	if strings.TrimSpace(d.Where) == "" {
		return "", ErrMissingWhere
	}
	if err := checkCondition(d.Where); err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	return fmt.Sprintf("DELETE FROM %s\nWHERE %s", table, d.Where), nil
}

// Merge describes a MERGE statement with optional matched / not-matched
// actions.
type Merge struct {
	Target      string
	TargetAlias string
	Source      string // table name or a parenthesized subquery is not accepted; use a source table
	SourceAlias string
	On          string

	// WhenMatchedUpdate sets columns on match; nil skips the clause.
	WhenMatchedUpdate map[string]any
	// WhenMatchedDelete deletes on match; exclusive with WhenMatchedUpdate.
	WhenMatchedDelete bool
	// WhenNotMatchedInsert inserts these columns from source columns of the
	// same name when no match exists; nil skips the clause.
	WhenNotMatchedInsert []string
}

// SQL renders the MERGE.
func (m Merge) SQL() (string, error) {
	target, err := QuoteQualified(m.Target)
	if err != nil {
		return "", fmt.Errorf("target: %w", err)
	}
	source, err := QuoteQualified(m.Source)
	if err != nil {
		return "", fmt.Errorf("source: %w", err)
	}
	if strings.TrimSpace(m.On) == "" {
		return "", fmt.Errorf("merge into %s: missing ON condition", m.Target)
	}
	if err := checkCondition(m.On); err != nil {
		return "", fmt.Errorf("on: %w", err)
	}
	if m.WhenMatchedDelete && len(m.WhenMatchedUpdate) > 0 {
		return "", fmt.Errorf("merge into %s: matched update and matched delete are mutually exclusive", m.Target)
	}
	if !m.WhenMatchedDelete && len(m.WhenMatchedUpdate) == 0 && len(m.WhenNotMatchedInsert) == 0 {
		return "", fmt.Errorf("merge into %s: no actions", m.Target)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s", target)
	if m.TargetAlias != "" {
		alias, err := QuoteIdentifier(m.TargetAlias)
		if err != nil {
			return "", fmt.Errorf("target alias: %w", err)
		}
		b.WriteString(" AS " + alias)
	}
	fmt.Fprintf(&b, "\nUSING %s", source)
	if m.SourceAlias != "" {
		alias, err := QuoteIdentifier(m.SourceAlias)
		if err != nil {
			return "", fmt.Errorf("source alias: %w", err)
		}
		b.WriteString(" AS " + alias)
	}
	b.WriteString("\nON " + m.On)

	if m.WhenMatchedDelete {
		b.WriteString("\nWHEN MATCHED THEN DELETE")
	}
	if len(m.WhenMatchedUpdate) > 0 {
		cols := make([]string, 0, len(m.WhenMatchedUpdate))
		for c := range m.WhenMatchedUpdate {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		assigns := make([]string, len(cols))
		for i, c := range cols {
			name, err := QuoteIdentifier(c)
			if err != nil {
				return "", fmt.Errorf("matched update column: %w", err)
			}
			lit, err := Literal(m.WhenMatchedUpdate[c])
			if err != nil {
				return "", fmt.Errorf("matched update %q: %w", c, err)
			}
			assigns[i] = name + " = " + lit
		}
		b.WriteString("\nWHEN MATCHED THEN UPDATE SET " + strings.Join(assigns, ", "))
	}
	if len(m.WhenNotMatchedInsert) > 0 {
		cols, err := quoteColumns(m.WhenNotMatchedInsert)
		if err != nil {
			return "", fmt.Errorf("not matched insert: %w", err)
		}
		list := strings.Join(cols, ", ")
		fmt.Fprintf(&b, "\nWHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", list, list)
	}
	return b.String(), nil
}
