// Package queryprofile inspects SQL text with regex heuristics and flags
// likely bottlenecks. It never parses SQL properly; the point is cheap
// advisory signal, with query planning left to BigQuery.
package queryprofile

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile counts the structural features of a SQL string.
type Profile struct {
	Selects          int            `json:"selects"`
	Joins            int            `json:"joins"`
	JoinKinds        map[string]int `json:"join_kinds,omitempty"`
	GroupBys         int            `json:"group_bys"`
	OrderBys         int            `json:"order_bys"`
	WildcardSelects  int            `json:"wildcard_selects"`
	Distincts        int            `json:"distincts"`
	WindowFunctions  int            `json:"window_functions"`
	Subqueries       int            `json:"subqueries"`
	MaxSubqueryDepth int            `json:"max_subquery_depth"`
	HasWhere         bool           `json:"has_where"`
	HasLimit         bool           `json:"has_limit"`
}

var (
	reSelect   = regexp.MustCompile(`(?i)\bSELECT\b`)
	reJoin     = regexp.MustCompile(`(?i)\b(INNER|LEFT|RIGHT|FULL|CROSS)?(?:\s+OUTER)?\s*JOIN\b`)
	reGroupBy  = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	reOrderBy  = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	reWildcard = regexp.MustCompile(`(?i)\bSELECT\s+(DISTINCT\s+)?\*`)
	reDistinct = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	reWindow   = regexp.MustCompile(`(?i)\bOVER\s*\(`)
	reWhere    = regexp.MustCompile(`(?i)\bWHERE\b`)
	reLimit    = regexp.MustCompile(`(?i)\bLIMIT\s+\d`)
)

// Analyze counts features of sql. Counting is purely lexical; keywords
// inside string literals are stripped first so they do not inflate counts.
func Analyze(sql string) Profile {
	sql = stripStrings(sql)
	p := Profile{
		Selects:         len(reSelect.FindAllString(sql, -1)),
		GroupBys:        len(reGroupBy.FindAllString(sql, -1)),
		OrderBys:        len(reOrderBy.FindAllString(sql, -1)),
		WildcardSelects: len(reWildcard.FindAllString(sql, -1)),
		Distincts:       len(reDistinct.FindAllString(sql, -1)),
		WindowFunctions: len(reWindow.FindAllString(sql, -1)),
		HasWhere:        reWhere.MatchString(sql),
		HasLimit:        reLimit.MatchString(sql),
	}

	for _, m := range reJoin.FindAllStringSubmatch(sql, -1) {
		p.Joins++
		kind := strings.ToUpper(strings.TrimSpace(m[1]))
		if kind == "" {
			kind = "INNER"
		}
		if p.JoinKinds == nil {
			p.JoinKinds = map[string]int{}
		}
		p.JoinKinds[kind]++
	}

	p.Subqueries, p.MaxSubqueryDepth = subqueryDepth(sql)
	return p
}

// subqueryDepth counts parenthesized SELECTs and the deepest nesting level.
func subqueryDepth(sql string) (count, maxDepth int) {
	upper := strings.ToUpper(sql)
	depth := 0
	selectDepths := make([]int, 0, 4) // depths at which a subquery SELECT opened
	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case '(':
			depth++
			rest := strings.TrimLeft(upper[i+1:], " \t\n\r")
			if strings.HasPrefix(rest, "SELECT") {
				count++
				selectDepths = append(selectDepths, depth)
				if n := len(selectDepths); n > maxDepth {
					maxDepth = n
				}
			}
		case ')':
			if len(selectDepths) > 0 && selectDepths[len(selectDepths)-1] == depth {
				selectDepths = selectDepths[:len(selectDepths)-1]
			}
			if depth > 0 {
				depth--
			}
		}
	}
	return count, maxDepth
}

// stripStrings blanks out single-quoted string literals.
func stripStrings(sql string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inString && c == '\\' && i+1 < len(sql):
			i++ // skip escaped char
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case inString:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Severity of a finding.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityHigh    = "high"
)

// Finding is one detected anti-pattern.
type Finding struct {
	Code       string `json:"code"`
	Severity   string `json:"severity"`
	Detail     string `json:"detail"`
	Suggestion string `json:"suggestion"`
}

// reCommaJoin matches a second table after a comma in FROM, allowing an
// optional alias on the first. RE2 has no lookahead, so the second name is
// captured and UNNEST (a correlated expansion, not a cross join) is
// excluded by inspecting the capture.
var reCommaJoin = regexp.MustCompile(`(?i)\bFROM\s+[\w.\x60]+(?:\s+(?:AS\s+)?[\w\x60]+)?\s*,\s*([\w.\x60]+)`)

// commaJoined reports whether any FROM clause lists a second table after a
// comma, ignoring UNNEST expansions.
func commaJoined(sql string) bool {
	for _, m := range reCommaJoin.FindAllStringSubmatch(sql, -1) {
		if !strings.EqualFold(m[1], "UNNEST") {
			return true
		}
	}
	return false
}
var rePartitionFn = regexp.MustCompile(`(?i)\b(DATE|TIMESTAMP_TRUNC|EXTRACT|CAST)\s*\(\s*[\w.\x60]*(_PARTITIONTIME|_PARTITIONDATE)`)

// Detect runs the bottleneck rules over sql and returns findings, worst
// first is not guaranteed; callers sort if they care.
func Detect(sql string) []Finding {
	p := Analyze(sql)
	stripped := stripStrings(sql)
	var findings []Finding

	if p.WildcardSelects > 0 {
		findings = append(findings, Finding{
			Code:       "select_star",
			Severity:   SeverityWarning,
			Detail:     fmt.Sprintf("%d SELECT * projection(s) scan every column", p.WildcardSelects),
			Suggestion: "Project only the columns you need; BigQuery bills by columns scanned.",
		})
	}
	if n := p.JoinKinds["CROSS"]; n > 0 {
		findings = append(findings, Finding{
			Code:       "cross_join",
			Severity:   SeverityHigh,
			Detail:     fmt.Sprintf("%d CROSS JOIN(s) multiply row counts", n),
			Suggestion: "Replace with an INNER JOIN on a key, or bound one side first.",
		})
	}
	if commaJoined(stripped) {
		findings = append(findings, Finding{
			Code:       "comma_join",
			Severity:   SeverityHigh,
			Detail:     "comma-separated tables in FROM form an implicit cross join",
			Suggestion: "Use explicit JOIN ... ON syntax.",
		})
	}
	if p.Joins > 3 {
		findings = append(findings, Finding{
			Code:       "many_joins",
			Severity:   SeverityWarning,
			Detail:     fmt.Sprintf("%d joins in one statement", p.Joins),
			Suggestion: "Consider staging intermediate results or denormalizing hot paths.",
		})
	}
	if !p.HasWhere && p.Selects > 0 {
		findings = append(findings, Finding{
			Code:       "no_filter",
			Severity:   SeverityWarning,
			Detail:     "no WHERE clause: full-table scan",
			Suggestion: "Filter on a partition column to prune scanned data.",
		})
	}
	if p.OrderBys > 0 && !p.HasLimit {
		findings = append(findings, Finding{
			Code:       "order_without_limit",
			Severity:   SeverityWarning,
			Detail:     "ORDER BY without LIMIT sorts the full result on one worker",
			Suggestion: "Add a LIMIT, or drop the sort if downstream reorders anyway.",
		})
	}
	if rePartitionFn.MatchString(stripped) {
		findings = append(findings, Finding{
			Code:       "function_on_partition_column",
			Severity:   SeverityHigh,
			Detail:     "function applied to a partition pseudo-column defeats partition pruning",
			Suggestion: "Compare the pseudo-column directly against constant bounds.",
		})
	}
	if p.MaxSubqueryDepth > 2 {
		findings = append(findings, Finding{
			Code:       "deep_subqueries",
			Severity:   SeverityInfo,
			Detail:     fmt.Sprintf("subqueries nested %d deep", p.MaxSubqueryDepth),
			Suggestion: "Flatten with WITH clauses for readability and better plan reuse.",
		})
	}
	return findings
}
