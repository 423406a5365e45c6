package pgtuner

import (
	"testing"
)

// --- Bloat Ratio ---

func TestBloatRatio_ZeroLiveTuples(t *testing.T) {
	t.Parallel()
	if got := bloatRatio(0, 5000); got != 0 {
		t.Fatalf("expected 0 for zero live tuples, got %f", got)
	}
}

func TestBloatRatio_Percentage(t *testing.T) {
	t.Parallel()
	if got := bloatRatio(10000, 2500); got != 25.0 {
		t.Fatalf("expected 25.0, got %f", got)
	}
}

func TestBloatRatio_RoundsToTwoDecimals(t *testing.T) {
	t.Parallel()
	// 1/3 * 100 = 33.333... rounds to 33.33
	if got := bloatRatio(3, 1); got != 33.33 {
		t.Fatalf("expected 33.33, got %f", got)
	}
}

func TestBloatRatio_OverHundredPercent(t *testing.T) {
	t.Parallel()
	if got := bloatRatio(100, 250); got != 250.0 {
		t.Fatalf("expected 250.0, got %f", got)
	}
}

// --- Cache Hit Ratio Formatting ---

func TestFormatCacheHitRatio_NilIsNA(t *testing.T) {
	t.Parallel()
	if got := formatCacheHitRatio(nil); got != "N/A" {
		t.Fatalf("expected N/A, got %q", got)
	}
}

func TestFormatCacheHitRatio_TwoDecimals(t *testing.T) {
	t.Parallel()
	ratio := 99.987
	if got := formatCacheHitRatio(&ratio); got != "99.99%" {
		t.Fatalf("expected 99.99%%, got %q", got)
	}
	zero := 0.0
	if got := formatCacheHitRatio(&zero); got != "0.00%" {
		t.Fatalf("expected 0.00%%, got %q", got)
	}
}

// --- Duplicate Index Pair Normalization ---

func TestNormalizeIndexPairs_OrdersLexicographically(t *testing.T) {
	t.Parallel()
	pairs := normalizeIndexPairs([]DuplicateIndexPair{
		{Schema: "public", Table: "users", IndexA: "idx_b", IndexB: "idx_a", Columns: "email"},
	})
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].IndexA != "idx_a" || pairs[0].IndexB != "idx_b" {
		t.Fatalf("expected lexicographic order, got %q / %q", pairs[0].IndexA, pairs[0].IndexB)
	}
}

func TestNormalizeIndexPairs_DropsSelfPairs(t *testing.T) {
	t.Parallel()
	pairs := normalizeIndexPairs([]DuplicateIndexPair{
		{Schema: "public", Table: "users", IndexA: "idx_a", IndexB: "idx_a"},
	})
	if len(pairs) != 0 {
		t.Fatalf("expected self-pair dropped, got %v", pairs)
	}
}

func TestNormalizeIndexPairs_DropsReversedDuplicates(t *testing.T) {
	t.Parallel()
	pairs := normalizeIndexPairs([]DuplicateIndexPair{
		{Schema: "public", Table: "users", IndexA: "idx_a", IndexB: "idx_b"},
		{Schema: "public", Table: "users", IndexA: "idx_b", IndexB: "idx_a"},
	})
	if len(pairs) != 1 {
		t.Fatalf("expected reversed duplicate collapsed, got %v", pairs)
	}
}

func TestNormalizeIndexPairs_SortsByTableThenIndex(t *testing.T) {
	t.Parallel()
	pairs := normalizeIndexPairs([]DuplicateIndexPair{
		{Schema: "public", Table: "zebras", IndexA: "idx_a", IndexB: "idx_b"},
		{Schema: "public", Table: "apples", IndexA: "idx_c", IndexB: "idx_d"},
		{Schema: "public", Table: "apples", IndexA: "idx_a", IndexB: "idx_b"},
	})
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if pairs[0].Table != "apples" || pairs[0].IndexA != "idx_a" {
		t.Fatalf("expected apples/idx_a first, got %v", pairs[0])
	}
	if pairs[2].Table != "zebras" {
		t.Fatalf("expected zebras last, got %v", pairs[2])
	}
}

func TestNormalizeIndexPairs_SameNamesDifferentTablesKept(t *testing.T) {
	t.Parallel()
	pairs := normalizeIndexPairs([]DuplicateIndexPair{
		{Schema: "public", Table: "users", IndexA: "idx_a", IndexB: "idx_b"},
		{Schema: "public", Table: "orders", IndexA: "idx_a", IndexB: "idx_b"},
	})
	if len(pairs) != 2 {
		t.Fatalf("expected both pairs kept, got %v", pairs)
	}
}

// --- Schema Defaulting ---

func TestSchemaOrDefault(t *testing.T) {
	t.Parallel()
	if got := schemaOrDefault(""); got != "public" {
		t.Fatalf("expected public, got %q", got)
	}
	if got := schemaOrDefault("analytics"); got != "analytics" {
		t.Fatalf("expected analytics, got %q", got)
	}
}
