// Package safety validates that SQL sent to the engine is read-only.
//
// Two layers: a textual forbidden-keyword scan over comment-stripped SQL
// (fast, runs first, its verdicts are authoritative for ForbiddenOperation
// rejections), and an AST pass using PostgreSQL's actual C parser via
// pg_query that enforces single statements and read-only statement types.
// The textual scan is a heuristic, not a SQL parser: it can both over- and
// under-block, which is why the AST pass and session-level
// default_transaction_read_only back it up.
package safety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ForbiddenError reports the forbidden keyword that matched.
type ForbiddenError struct {
	Pattern string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("query contains forbidden operation %q: only read-only queries are allowed", e.Pattern)
}

// forbiddenKeywords are matched case-insensitively as whole words on
// comment-stripped text. Mutation/DDL, bulk-load, and maintenance.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"TRUNCATE", "GRANT", "REVOKE", "COPY",
	"VACUUM", "REINDEX", "CLUSTER",
}

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	limitRe        = regexp.MustCompile(`(?i)\bLIMIT\b`)

	forbiddenRe = regexp.MustCompile(`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
)

// CheckReadOnly rejects SQL containing a forbidden mutation/DDL keyword as
// a whole word outside comments. Keywords appearing only inside -- or
// /* */ comments do not trigger a rejection.
func CheckReadOnly(sql string) error {
	stripped := stripComments(sql)
	if m := forbiddenRe.FindString(stripped); m != "" {
		return &ForbiddenError{Pattern: strings.ToUpper(m)}
	}
	return nil
}

// CheckStatement parses the SQL with pg_query and rejects multi-statement
// input and statement types that are not read-only. This catches forms the
// keyword scan cannot, e.g. SELECT ... INTO.
func CheckStatement(sql string) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("SQL parse error: %w", err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("SQL parse error: empty query")
	}
	if len(result.Stmts) > 1 {
		return fmt.Errorf("multi-statement queries are not allowed: found %d statements", len(result.Stmts))
	}

	switch n := result.Stmts[0].Stmt.Node.(type) {
	case *pg_query.Node_SelectStmt:
		if n.SelectStmt.IntoClause != nil {
			return fmt.Errorf("SELECT INTO is not allowed: it creates a new table")
		}
		return nil
	case *pg_query.Node_ExplainStmt:
		return nil
	case *pg_query.Node_VariableShowStmt:
		return nil
	default:
		return fmt.Errorf("statement type is not allowed: only SELECT, EXPLAIN, and SHOW are permitted")
	}
}

// EnsureLimit trims a trailing semicolon and whitespace, then appends
// " LIMIT <limit>" when the statement begins with SELECT and contains no
// LIMIT keyword. Idempotent. Non-SELECT statements (e.g. WITH forms) pass
// through unmodified — a known gap, not a guarantee.
func EnsureLimit(sql string, limit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\r\n")
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return trimmed
	}
	if limitRe.MatchString(trimmed) {
		return trimmed
	}
	return trimmed + " LIMIT " + strconv.Itoa(limit)
}

// stripComments removes -- line comments and /* */ block comments so that
// forbidden keywords hidden inside comments are not the basis of a match.
// Block comments are not treated as nested.
func stripComments(sql string) string {
	sql = blockCommentRe.ReplaceAllString(sql, " ")
	return lineCommentRe.ReplaceAllString(sql, " ")
}
