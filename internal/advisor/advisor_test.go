package advisor

import (
	"strings"
	"testing"

	"github.com/pgtuner/pgtuner-mcp/internal/plan"
)

func seqScan(relation string, rows int64, filter string) *plan.Node {
	return &plan.Node{
		NodeType:     "Seq Scan",
		RelationName: relation,
		PlanRows:     rows,
		Filter:       filter,
	}
}

// --- Warnings ---

func TestExtractWarnings_SeqScanOverThreshold(t *testing.T) {
	t.Parallel()
	warnings := ExtractWarnings(seqScan("users", 15000, ""))
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	want := "Sequential scan on table 'users' with ~15000 rows. Consider adding an index."
	if warnings[0] != want {
		t.Fatalf("expected %q, got %q", want, warnings[0])
	}
}

func TestExtractWarnings_SeqScanAtThresholdNotEmitted(t *testing.T) {
	t.Parallel()
	// Thresholds are strict greater-than.
	if warnings := ExtractWarnings(seqScan("users", 10000, "")); len(warnings) != 0 {
		t.Fatalf("expected no warnings at the threshold, got %v", warnings)
	}
	if warnings := ExtractWarnings(seqScan("users", 10001, "")); len(warnings) != 1 {
		t.Fatalf("expected a warning just above the threshold, got %v", warnings)
	}
}

func TestExtractWarnings_NestedLoop(t *testing.T) {
	t.Parallel()
	root := &plan.Node{NodeType: "Nested Loop", PlanRows: 60000}
	warnings := ExtractWarnings(root)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %v", len(warnings), warnings)
	}
	want := "Nested loop join producing ~60000 rows. Consider restructuring the query or adding indexes on the join columns."
	if warnings[0] != want {
		t.Fatalf("expected %q, got %q", want, warnings[0])
	}
}

func TestExtractWarnings_NestedLoopAtThresholdNotEmitted(t *testing.T) {
	t.Parallel()
	root := &plan.Node{NodeType: "Nested Loop", PlanRows: 50000}
	if warnings := ExtractWarnings(root); len(warnings) != 0 {
		t.Fatalf("expected no warnings at the threshold, got %v", warnings)
	}
}

func TestExtractWarnings_ExpensiveSortAndHash(t *testing.T) {
	t.Parallel()
	sort := &plan.Node{NodeType: "Sort", TotalCost: 12000.5}
	warnings := ExtractWarnings(sort)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	want := "Expensive Sort operation (cost: 12000.50). Consider increasing work_mem or restructuring the query."
	if warnings[0] != want {
		t.Fatalf("expected %q, got %q", want, warnings[0])
	}

	hash := &plan.Node{NodeType: "Hash", TotalCost: 10000.01}
	warnings = ExtractWarnings(hash)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "Expensive Hash operation") {
		t.Fatalf("expected a Hash warning, got %v", warnings)
	}
}

func TestExtractWarnings_TraversalOrder(t *testing.T) {
	t.Parallel()
	root := &plan.Node{
		NodeType: "Nested Loop",
		PlanRows: 60000,
		Children: []plan.Node{
			*seqScan("orders", 20000, ""),
			*seqScan("users", 30000, ""),
		},
	}
	warnings := ExtractWarnings(root)
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "Nested loop") {
		t.Fatalf("expected the parent warning first, got %v", warnings)
	}
	if !strings.Contains(warnings[1], "'orders'") || !strings.Contains(warnings[2], "'users'") {
		t.Fatalf("expected children in execution order, got %v", warnings)
	}
}

func TestExtractWarnings_CleanPlanEmpty(t *testing.T) {
	t.Parallel()
	root := &plan.Node{NodeType: "Index Scan", RelationName: "users", PlanRows: 1}
	warnings := ExtractWarnings(root)
	if warnings == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

// --- Index Suggestions ---

func TestSuggestIndexes_FilterSuggestion(t *testing.T) {
	t.Parallel()
	root := seqScan("users", 2000, "(user_id = 5)")
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d: %v", len(suggestions), suggestions)
	}
	s := suggestions[0]
	if s.Table != "users" {
		t.Fatalf("expected table users, got %q", s.Table)
	}
	if len(s.Columns) != 1 || s.Columns[0] != "user_id" {
		t.Fatalf("expected columns [user_id], got %v", s.Columns)
	}
	if s.Impact != ImpactLow {
		t.Fatalf("expected low impact at 2000 rows, got %q", s.Impact)
	}
	want := "CREATE INDEX idx_users_user_id ON public.users (user_id);"
	if s.CreateStatement != want {
		t.Fatalf("expected %q, got %q", want, s.CreateStatement)
	}
}

func TestSuggestIndexes_FilterImpactBands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		rows   int64
		impact Impact
	}{
		{1001, ImpactLow},
		{10000, ImpactLow},
		{10001, ImpactMedium},
		{100000, ImpactMedium},
		{100001, ImpactHigh},
	}
	for _, tc := range cases {
		suggestions := SuggestIndexes(seqScan("t", tc.rows, "(a = 1)"), "public")
		if len(suggestions) != 1 {
			t.Fatalf("rows=%d: expected 1 suggestion, got %v", tc.rows, suggestions)
		}
		if suggestions[0].Impact != tc.impact {
			t.Fatalf("rows=%d: expected impact %q, got %q", tc.rows, tc.impact, suggestions[0].Impact)
		}
	}
}

func TestSuggestIndexes_FilterAtThresholdNotEmitted(t *testing.T) {
	t.Parallel()
	if suggestions := SuggestIndexes(seqScan("t", 1000, "(a = 1)"), "public"); len(suggestions) != 0 {
		t.Fatalf("expected no suggestions at the threshold, got %v", suggestions)
	}
}

func TestSuggestIndexes_MultiColumnFilter(t *testing.T) {
	t.Parallel()
	root := seqScan("orders", 20000, "((status = 'open'::text) AND (region_id > 7))")
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", suggestions)
	}
	s := suggestions[0]
	if len(s.Columns) != 2 || s.Columns[0] != "status" || s.Columns[1] != "region_id" {
		t.Fatalf("expected columns [status region_id], got %v", s.Columns)
	}
	want := "CREATE INDEX idx_orders_status_region_id ON public.orders (status, region_id);"
	if s.CreateStatement != want {
		t.Fatalf("expected %q, got %q", want, s.CreateStatement)
	}
}

func TestSuggestIndexes_DuplicateColumnsDeduplicated(t *testing.T) {
	t.Parallel()
	root := seqScan("t", 5000, "((a = 1) OR (a = 2))")
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", suggestions)
	}
	if len(suggestions[0].Columns) != 1 || suggestions[0].Columns[0] != "a" {
		t.Fatalf("expected deduplicated [a], got %v", suggestions[0].Columns)
	}
}

func TestSuggestIndexes_UnparseableFilterFailsClosed(t *testing.T) {
	t.Parallel()
	root := seqScan("t", 5000, "lower(name) ~~ 'x%'")
	if suggestions := SuggestIndexes(root, "public"); len(suggestions) != 0 {
		t.Fatalf("expected no suggestions for unextractable filter, got %v", suggestions)
	}
}

func TestSuggestIndexes_SortSuggestion(t *testing.T) {
	t.Parallel()
	root := &plan.Node{
		NodeType: "Sort",
		PlanRows: 6000,
		SortKey:  []string{"users.created_at DESC", "id"},
	}
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", suggestions)
	}
	s := suggestions[0]
	if s.Table != "" {
		t.Fatalf("expected no table on sort suggestions, got %q", s.Table)
	}
	if len(s.Columns) != 2 || s.Columns[0] != "created_at" || s.Columns[1] != "id" {
		t.Fatalf("expected columns [created_at id], got %v", s.Columns)
	}
	if s.Impact != ImpactMedium {
		t.Fatalf("expected medium impact at 6000 rows, got %q", s.Impact)
	}
	if !strings.HasPrefix(s.CreateStatement, "-- CREATE INDEX idx_<table>_created_at_id") {
		t.Fatalf("expected commented-out template, got %q", s.CreateStatement)
	}
}

func TestSuggestIndexes_SortImpactHigh(t *testing.T) {
	t.Parallel()
	root := &plan.Node{NodeType: "Sort", PlanRows: 50001, SortKey: []string{"x"}}
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 1 || suggestions[0].Impact != ImpactHigh {
		t.Fatalf("expected high impact above 50000 rows, got %v", suggestions)
	}
}

func TestSuggestIndexes_SortAtThresholdNotEmitted(t *testing.T) {
	t.Parallel()
	root := &plan.Node{NodeType: "Sort", PlanRows: 5000, SortKey: []string{"x"}}
	if suggestions := SuggestIndexes(root, "public"); len(suggestions) != 0 {
		t.Fatalf("expected no suggestions at the threshold, got %v", suggestions)
	}
}

func TestSuggestIndexes_NotDeduplicatedAcrossNodes(t *testing.T) {
	t.Parallel()
	scan := seqScan("t", 5000, "(a = 1)")
	root := &plan.Node{
		NodeType: "Append",
		Children: []plan.Node{*scan, *scan},
	}
	suggestions := SuggestIndexes(root, "public")
	if len(suggestions) != 2 {
		t.Fatalf("expected one suggestion per node, got %d: %v", len(suggestions), suggestions)
	}
}

func TestSuggestIndexes_SchemaUsedInStatement(t *testing.T) {
	t.Parallel()
	suggestions := SuggestIndexes(seqScan("t", 5000, "(a = 1)"), "analytics")
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", suggestions)
	}
	if !strings.Contains(suggestions[0].CreateStatement, "ON analytics.t") {
		t.Fatalf("expected schema in statement, got %q", suggestions[0].CreateStatement)
	}
}

// --- Column Extraction ---

func TestSortKeyColumns_StripsDirectionAndPrefix(t *testing.T) {
	t.Parallel()
	got := sortKeyColumns([]string{"u.created_at DESC", "name ASC", "id"})
	want := []string{"created_at", "name", "id"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestImpact_Rank(t *testing.T) {
	t.Parallel()
	if ImpactHigh.Rank() <= ImpactMedium.Rank() || ImpactMedium.Rank() <= ImpactLow.Rank() {
		t.Fatal("expected high > medium > low")
	}
}
