// Package security provides helpers for building safe, dialect-portable
// SQL fragments from user input.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// LikeEscapeChar is the escape character used in every LIKE clause.
// A backslash is not portable: MySQL treats it as a string escape.
const LikeEscapeChar = "!"

// ValidIdentifierRegex matches a plain or table-qualified column name
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// ValidateIdentifier checks if a string is a valid, optionally qualified, column name
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 127 {
		return fmt.Errorf("identifier too long")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// EscapeLikePattern escapes the LIKE wildcards and the escape character itself
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, LikeEscapeChar, LikeEscapeChar+LikeEscapeChar)
	pattern = strings.ReplaceAll(pattern, `%`, LikeEscapeChar+`%`)
	pattern = strings.ReplaceAll(pattern, `_`, LikeEscapeChar+`_`)
	return pattern
}

// Lower folds term the way the dialect's LOWER() folds column values.
// SQLite's built-in LOWER only changes ASCII letters, so a Unicode fold
// there would turn "ÓLEO" into a pattern no stored "Óleo" can match.
func Lower(dialect, term string) string {
	if dialect != "sqlite" {
		return strings.ToLower(term)
	}
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, term)
}

// ContainsParam returns the lowercased "%term%" parameter for a substring match
func ContainsParam(dialect, term string) string {
	return "%" + EscapeLikePattern(Lower(dialect, term)) + "%"
}

// BuildMultiSearchCondition builds a case-insensitive substring condition
// OR-ed over columns. Each column gets its own placeholder, so the returned
// args line up with the "?" markers. Invalid column names are skipped.
// dialect is the gorm dialector name.
func BuildMultiSearchCondition(dialect string, columns []string, searchTerm string) (string, []interface{}) {
	searchTerm = strings.TrimSpace(searchTerm)
	if len(columns) == 0 || searchTerm == "" {
		return "", nil
	}

	param := ContainsParam(dialect, searchTerm)
	conditions := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		if err := ValidateIdentifier(col); err != nil {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '%s'", col, LikeEscapeChar))
		args = append(args, param)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "(" + strings.Join(conditions, " OR ") + ")", args
}

// SortClause returns "column direction" when column is in the allowed map,
// otherwise the fallback. allowed maps public names to column names.
func SortClause(allowed map[string]string, sort, dir, fallback string) string {
	col, ok := allowed[strings.ToLower(strings.TrimSpace(sort))]
	if !ok || ValidateIdentifier(col) != nil {
		return fallback
	}
	if strings.EqualFold(dir, "desc") {
		return col + " DESC"
	}
	return col + " ASC"
}
