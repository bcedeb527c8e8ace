// Package sqlgen builds BigQuery SQL statements from structured inputs.
// Every identifier that reaches generated SQL is validated and
// backtick-quoted, so table and dataset names supplied by a client cannot
// smuggle SQL into a statement.
package sqlgen

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// BigQuery caps table and column names at 1024 bytes.
const maxIdentifierBytes = 1024

var (
	ErrEmptyIdentifier   = errors.New("empty identifier")
	ErrIdentifierTooLong = errors.New("identifier exceeds 1024 bytes")
	ErrInvalidCharacters = errors.New("identifier contains invalid characters")
)

// ValidateIdentifier checks a single unquoted identifier segment against
// BigQuery's naming rules: unicode letters, marks and digits, plus
// underscore, dash and space.
func ValidateIdentifier(name string) error {
	if name == "" {
		return ErrEmptyIdentifier
	}
	if len(name) > maxIdentifierBytes {
		return fmt.Errorf("%w: %q", ErrIdentifierTooLong, name[:32]+"...")
	}
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r):
		case r == '_', r == '-', r == ' ':
		default:
			return fmt.Errorf("%w: %q in %q", ErrInvalidCharacters, string(r), name)
		}
	}
	return nil
}

// QuoteIdentifier validates name and returns it wrapped in backticks.
func QuoteIdentifier(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return "`" + name + "`", nil
}

// QuoteQualified validates a dotted name (project.dataset.table,
// dataset.table or a bare table) segment by segment and quotes the whole
// path in a single pair of backticks, the form BigQuery documents for
// qualified references.
func QuoteQualified(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyIdentifier
	}
	segments := strings.Split(name, ".")
	if len(segments) > 3 {
		return "", fmt.Errorf("%w: too many segments in %q", ErrInvalidCharacters, name)
	}
	for _, seg := range segments {
		if err := ValidateIdentifier(seg); err != nil {
			return "", err
		}
	}
	return "`" + strings.Join(segments, ".") + "`", nil
}

// quoteColumns quotes each name, failing on the first invalid one.
func quoteColumns(names []string) ([]string, error) {
	quoted := make([]string, len(names))
	for i, n := range names {
		q, err := QuoteIdentifier(n)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
	}
	return quoted, nil
}
