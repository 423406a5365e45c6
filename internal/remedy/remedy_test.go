package remedy

import (
	"strings"
	"testing"
)

func newMatcher(t *testing.T, rules []Rule) *Matcher {
	t.Helper()
	m, err := NewMatcher(rules)
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	return m
}

func TestNewMatcher_InvalidPatternErrors(t *testing.T) {
	t.Parallel()
	if _, err := NewMatcher([]Rule{{Pattern: "[bad", Message: "x"}}); err == nil {
		t.Fatal("expected error for invalid regex, got nil")
	}
}

func TestMatch_BuiltinPermissionDenied(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, nil)
	guidance := m.Match(`ERROR: permission denied for table secrets`)
	if !strings.Contains(guidance, "SELECT privilege") {
		t.Fatalf("expected permission guidance, got %q", guidance)
	}
}

func TestMatch_BuiltinReadOnlyViolation(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, nil)
	guidance := m.Match(`ERROR: cannot execute INSERT in a read-only transaction`)
	if !strings.Contains(guidance, "read-only") {
		t.Fatalf("expected read-only guidance, got %q", guidance)
	}
}

func TestMatch_NoMatchReturnsEmpty(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, nil)
	if guidance := m.Match("ERROR: division by zero"); guidance != "" {
		t.Fatalf("expected empty guidance, got %q", guidance)
	}
}

func TestMatch_OperatorRulesRunBeforeBuiltins(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, []Rule{
		{Pattern: `permission denied`, Message: "Contact the data platform team in #db-access."},
	})
	guidance := m.Match("permission denied for table x")
	parts := strings.Split(guidance, "\n")
	if len(parts) != 2 {
		t.Fatalf("expected operator rule plus builtin, got %q", guidance)
	}
	if !strings.Contains(parts[0], "#db-access") {
		t.Fatalf("expected operator rule first, got %q", parts[0])
	}
}

func TestMatchedPatterns(t *testing.T) {
	t.Parallel()
	m := newMatcher(t, nil)
	patterns := m.MatchedPatterns("permission denied for relation users")
	if len(patterns) != 1 || patterns[0] != `permission denied` {
		t.Fatalf("expected matched pattern list, got %v", patterns)
	}
	if got := m.MatchedPatterns("all fine"); got != nil {
		t.Fatalf("expected nil for no matches, got %v", got)
	}
}
