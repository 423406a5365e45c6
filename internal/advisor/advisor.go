// Package advisor applies rule-based performance heuristics to execution
// plan trees: human-readable warnings and concrete index suggestions.
//
// All thresholds are fixed constants, strict greater-than, and not
// configurable. Column extraction is pattern matching over filter/sort
// text, not expression parsing: it fails closed (no suggestion) rather
// than misidentifying columns in ambiguous compound expressions.
package advisor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pgtuner/pgtuner-mcp/internal/plan"
)

// Impact is the coarse severity band of an index suggestion, derived from
// estimated row counts.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Rank orders impacts for sorting: high > medium > low.
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	default:
		return 1
	}
}

// IndexSuggestion is one index-creation recommendation. CreateStatement is
// ready to run, except for sort-derived suggestions where the target table
// is not reliably known: those carry a commented-out template with a
// placeholder instead.
type IndexSuggestion struct {
	Table           string   `json:"table,omitempty"`
	Columns         []string `json:"columns"`
	Reason          string   `json:"reason"`
	Impact          Impact   `json:"impact"`
	CreateStatement string   `json:"create_statement"`
}

// Warning thresholds (strict greater-than).
const (
	seqScanRowsThreshold    = 10000
	nestedLoopRowsThreshold = 50000
	sortHashCostThreshold   = 10000
)

// Suggestion thresholds (strict greater-than).
const (
	filterSuggestRows    = 1000
	filterImpactHighRows = 100000
	filterImpactMedRows  = 10000
	sortSuggestRows      = 5000
	sortImpactHighRows   = 50000
)

// filterColumnRe matches an identifier immediately followed by a
// comparison operator inside parentheses, e.g. "(status = " or
// "(user_id > ". This is the whole extent of filter-expression analysis.
var filterColumnRe = regexp.MustCompile(`\(([a-zA-Z_][a-zA-Z0-9_]*)\s*[=<>!~]`)

// ExtractWarnings walks the plan tree in pre-order and returns
// human-readable performance warnings in traversal order. Pure function of
// the tree; no I/O.
func ExtractWarnings(root *plan.Node) []string {
	warnings := []string{}
	plan.Walk(root, func(n *plan.Node) {
		switch n.NodeType {
		case "Seq Scan":
			if n.PlanRows > seqScanRowsThreshold {
				warnings = append(warnings, fmt.Sprintf(
					"Sequential scan on table '%s' with ~%d rows. Consider adding an index.",
					n.RelationName, n.PlanRows))
			}
		case "Nested Loop":
			if n.PlanRows > nestedLoopRowsThreshold {
				warnings = append(warnings, fmt.Sprintf(
					"Nested loop join producing ~%d rows. Consider restructuring the query or adding indexes on the join columns.",
					n.PlanRows))
			}
		case "Sort", "Hash":
			if n.TotalCost > sortHashCostThreshold {
				warnings = append(warnings, fmt.Sprintf(
					"Expensive %s operation (cost: %.2f). Consider increasing work_mem or restructuring the query.",
					n.NodeType, n.TotalCost))
			}
		}
	})
	return warnings
}

// SuggestIndexes walks the plan tree in pre-order and returns index
// suggestions in traversal order. Suggestions are not deduplicated across
// nodes: the same table/column combination reachable from several nodes is
// reported once per node.
func SuggestIndexes(root *plan.Node, schema string) []IndexSuggestion {
	suggestions := []IndexSuggestion{}
	plan.Walk(root, func(n *plan.Node) {
		if s := suggestForFilter(n, schema); s != nil {
			suggestions = append(suggestions, *s)
		}
		if s := suggestForSort(n, schema); s != nil {
			suggestions = append(suggestions, *s)
		}
	})
	return suggestions
}

// suggestForFilter handles sequential scans with a filter expression.
func suggestForFilter(n *plan.Node, schema string) *IndexSuggestion {
	if n.NodeType != "Seq Scan" || n.Filter == "" || n.PlanRows <= filterSuggestRows {
		return nil
	}
	columns := extractFilterColumns(n.Filter)
	if len(columns) == 0 {
		return nil
	}

	impact := ImpactLow
	switch {
	case n.PlanRows > filterImpactHighRows:
		impact = ImpactHigh
	case n.PlanRows > filterImpactMedRows:
		impact = ImpactMedium
	}

	return &IndexSuggestion{
		Table:   n.RelationName,
		Columns: columns,
		Reason: fmt.Sprintf("Sequential scan on '%s' filters on %s over ~%d rows",
			n.RelationName, strings.Join(columns, ", "), n.PlanRows),
		Impact: impact,
		CreateStatement: fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s.%s (%s);",
			n.RelationName, strings.Join(columns, "_"),
			schema, n.RelationName, strings.Join(columns, ", ")),
	}
}

// suggestForSort handles sorts without a supporting index. The sorted
// table is not reliably known at a Sort node, so the statement is a
// commented-out template with a placeholder.
func suggestForSort(n *plan.Node, schema string) *IndexSuggestion {
	if n.NodeType != "Sort" || len(n.SortKey) == 0 || n.PlanRows <= sortSuggestRows {
		return nil
	}
	columns := sortKeyColumns(n.SortKey)
	if len(columns) == 0 {
		return nil
	}

	impact := ImpactMedium
	if n.PlanRows > sortImpactHighRows {
		impact = ImpactHigh
	}

	return &IndexSuggestion{
		Columns: columns,
		Reason: fmt.Sprintf("Sort on (%s) over ~%d rows without a supporting index",
			strings.Join(columns, ", "), n.PlanRows),
		Impact: impact,
		CreateStatement: fmt.Sprintf("-- CREATE INDEX idx_<table>_%s ON %s.<table> (%s); -- replace <table> with the sorted table",
			strings.Join(columns, "_"), schema, strings.Join(columns, ", ")),
	}
}

// extractFilterColumns pulls candidate column names out of a filter
// expression, deduplicating while preserving first-seen order.
func extractFilterColumns(filter string) []string {
	matches := filterColumnRe.FindAllStringSubmatch(filter, -1)
	seen := make(map[string]bool, len(matches))
	columns := []string{}
	for _, m := range matches {
		col := m[1]
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	return columns
}

// sortKeyColumns derives column names from sort keys by stripping any
// qualifying table prefix and a trailing ASC/DESC direction marker.
func sortKeyColumns(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	columns := []string{}
	for _, key := range keys {
		col := strings.TrimSpace(key)
		if upper := strings.ToUpper(col); strings.HasSuffix(upper, " DESC") {
			col = strings.TrimSpace(col[:len(col)-5])
		} else if strings.HasSuffix(upper, " ASC") {
			col = strings.TrimSpace(col[:len(col)-4])
		}
		if dot := strings.LastIndex(col, "."); dot >= 0 {
			col = col[dot+1:]
		}
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		columns = append(columns, col)
	}
	return columns
}
