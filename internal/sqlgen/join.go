package sqlgen

import (
	"errors"
	"fmt"
	"strings"
)

// Join describes one JOIN clause of a generated query.
type Join struct {
	Table string // qualified table name
	Alias string
	Type  string // INNER, LEFT, RIGHT, FULL, CROSS
	On    string // join condition; required except for CROSS
}

// JoinQuery describes a SELECT over a base table with zero or more joins.
type JoinQuery struct {
	Table   string // qualified base table
	Alias   string
	Select  []string // column references; defaults to *
	Joins   []Join
	Where   string
	GroupBy []string
	OrderBy []string // column references, optionally suffixed with ASC or DESC
	Limit   int
}

var joinTypes = map[string]bool{
	"INNER": true,
	"LEFT":  true,
	"RIGHT": true,
	"FULL":  true,
	"CROSS": true,
}

var (
	ErrMissingJoinCondition = errors.New("join requires an ON condition")
	ErrUnsafeCondition      = errors.New("condition contains a statement separator or comment")
)

// SQL renders the query. All table, alias and column references are
// validated; ON and WHERE conditions pass through after a screen for
// statement separators and comment markers.
func (q JoinQuery) SQL() (string, error) {
	base, err := QuoteQualified(q.Table)
	if err != nil {
		return "", fmt.Errorf("base table: %w", err)
	}

	sel := "*"
	if len(q.Select) > 0 {
		cols := make([]string, len(q.Select))
		for i, c := range q.Select {
			ref, err := columnRef(c)
			if err != nil {
				return "", fmt.Errorf("select: %w", err)
			}
			cols[i] = ref
		}
		sel = strings.Join(cols, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s\nFROM %s", sel, base)
	if q.Alias != "" {
		alias, err := QuoteIdentifier(q.Alias)
		if err != nil {
			return "", fmt.Errorf("base alias: %w", err)
		}
		b.WriteString(" AS " + alias)
	}

	for i, j := range q.Joins {
		jt := strings.ToUpper(strings.TrimSpace(j.Type))
		if jt == "" {
			jt = "INNER"
		}
		if !joinTypes[jt] {
			return "", fmt.Errorf("join %d: unsupported join type %q", i, j.Type)
		}
		table, err := QuoteQualified(j.Table)
		if err != nil {
			return "", fmt.Errorf("join %d table: %w", i, err)
		}
		fmt.Fprintf(&b, "\n%s JOIN %s", jt, table)
		if j.Alias != "" {
			alias, err := QuoteIdentifier(j.Alias)
			if err != nil {
				return "", fmt.Errorf("join %d alias: %w", i, err)
			}
			b.WriteString(" AS " + alias)
		}
		if jt == "CROSS" {
			if j.On != "" {
				return "", fmt.Errorf("join %d: CROSS JOIN takes no ON condition", i)
			}
			continue
		}
		if strings.TrimSpace(j.On) == "" {
			return "", fmt.Errorf("join %d: %w", i, ErrMissingJoinCondition)
		}
		if err := checkCondition(j.On); err != nil {
			return "", fmt.Errorf("join %d: %w", i, err)
		}
		b.WriteString(" ON " + j.On)
	}

	if q.Where != "" {
		if err := checkCondition(q.Where); err != nil {
			return "", fmt.Errorf("where: %w", err)
		}
		b.WriteString("\nWHERE " + q.Where)
	}
	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, c := range q.GroupBy {
			ref, err := columnRef(c)
			if err != nil {
				return "", fmt.Errorf("group by: %w", err)
			}
			cols[i] = ref
		}
		b.WriteString("\nGROUP BY " + strings.Join(cols, ", "))
	}
	if len(q.OrderBy) > 0 {
		cols := make([]string, len(q.OrderBy))
		for i, c := range q.OrderBy {
			ref, err := orderRef(c)
			if err != nil {
				return "", fmt.Errorf("order by: %w", err)
			}
			cols[i] = ref
		}
		b.WriteString("\nORDER BY " + strings.Join(cols, ", "))
	}
	if q.Limit < 0 {
		return "", fmt.Errorf("negative limit: %d", q.Limit)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "\nLIMIT %d", q.Limit)
	}
	return b.String(), nil
}

// columnRef validates a possibly alias-qualified column reference like
// "t.amount", "amount", "t.*" or "*".
func columnRef(ref string) (string, error) {
	if ref == "*" {
		return "*", nil
	}
	parts := strings.Split(ref, ".")
	if len(parts) > 3 {
		return "", fmt.Errorf("%w: too many segments in %q", ErrInvalidCharacters, ref)
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if p == "*" && i == len(parts)-1 {
			quoted[i] = "*"
			continue
		}
		q, err := QuoteIdentifier(p)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, "."), nil
}

// orderRef is columnRef plus an optional ASC/DESC suffix.
func orderRef(ref string) (string, error) {
	dir := ""
	fields := strings.Fields(ref)
	if len(fields) == 2 {
		switch strings.ToUpper(fields[1]) {
		case "ASC", "DESC":
			ref, dir = fields[0], " "+strings.ToUpper(fields[1])
		default:
			return "", fmt.Errorf("invalid sort direction %q", fields[1])
		}
	} else if len(fields) > 2 {
		return "", fmt.Errorf("invalid order expression %q", ref)
	}
	col, err := columnRef(ref)
	if err != nil {
		return "", err
	}
	return col + dir, nil
}

// checkCondition screens raw condition text. Conditions are caller-supplied
// SQL fragments, so full validation is out of reach; this only blocks the
// separators that would end the statement or comment out the remainder.
func checkCondition(cond string) error {
	if strings.ContainsAny(cond, ";") ||
		strings.Contains(cond, "--") ||
		strings.Contains(cond, "/*") {
		return ErrUnsafeCondition
	}
	return nil
}
