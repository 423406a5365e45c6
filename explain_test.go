package pgtuner

import (
	"testing"
)

func TestExplainSQL_PlainExplain(t *testing.T) {
	t.Parallel()
	got := explainSQL("SELECT * FROM users", false)
	want := "EXPLAIN (FORMAT JSON) SELECT * FROM users"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExplainSQL_AnalyzeIncludesBuffers(t *testing.T) {
	t.Parallel()
	got := explainSQL("SELECT * FROM users", true)
	want := "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) SELECT * FROM users"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
