package pgtuner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// --- Construction ---

func TestNew_InvalidRedactionRegexErrors(t *testing.T) {
	t.Parallel()
	config := Config{
		Redaction: []RedactionRule{{Pattern: "[broken", Replacement: "x"}},
	}
	if _, err := New(config, testLogger()); err == nil {
		t.Fatal("expected error for invalid redaction regex, got nil")
	}
}

func TestNew_InvalidErrorPromptRegexErrors(t *testing.T) {
	t.Parallel()
	config := Config{
		ErrorPrompts: []ErrorPromptRule{{Pattern: "(bad", Message: "x"}},
	}
	if _, err := New(config, testLogger()); err == nil {
		t.Fatal("expected error for invalid error prompt regex, got nil")
	}
}

func TestNew_InvalidTimeoutRegexErrors(t *testing.T) {
	t.Parallel()
	config := Config{
		Query: QueryConfig{TimeoutRules: []TimeoutRule{{Pattern: "[oops", TimeoutSeconds: 10}}},
	}
	if _, err := New(config, testLogger()); err == nil {
		t.Fatal("expected error for invalid timeout regex, got nil")
	}
}

func TestNew_NegativeMaxConnsPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for negative max_conns")
		}
	}()
	_, _ = New(Config{Pool: PoolConfig{MaxConns: -1}}, testLogger())
}

// --- Disconnected State ---

func TestDisconnect_WhenNotConnected(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	if err := p.Disconnect(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestConnInfo_WhenNotConnected(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	if _, err := p.ConnInfo(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRunQuery_WhenNotConnected(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	_, err := p.RunQuery(context.Background(), RunQueryInput{SQL: "SELECT 1"})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestOverview_WhenNotConnected(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	if _, err := p.Overview(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClose_WhenNotConnectedIsNoop(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	p.Close(context.Background())
	p.Close(context.Background())
}

// --- SQL Length Guard ---

func TestRunQuery_SQLTooLong(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{Query: QueryConfig{MaxSQLLength: 20}})
	_, err := p.RunQuery(context.Background(), RunQueryInput{SQL: "SELECT * FROM a_table_with_a_long_name"})
	if err == nil || !strings.Contains(err.Error(), "too long") {
		t.Fatalf("expected length rejection, got %v", err)
	}
}

// --- Connection String ---

func TestBuildConnString_SSLModes(t *testing.T) {
	t.Parallel()
	info := ConnectionInfo{Host: "db", Port: 5432, Database: "app", User: "reader", SSL: true}
	got := buildConnString(info, "pw")
	if !strings.Contains(got, "sslmode=require") {
		t.Fatalf("expected sslmode=require, got %q", got)
	}
	if !strings.Contains(got, "password=pw") {
		t.Fatalf("expected password present, got %q", got)
	}

	info.SSL = false
	got = buildConnString(info, "")
	if !strings.Contains(got, "sslmode=disable") {
		t.Fatalf("expected sslmode=disable, got %q", got)
	}
	if strings.Contains(got, "password") {
		t.Fatalf("expected no password key when empty, got %q", got)
	}
}

// --- Error Classification ---

func TestIsEngineError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want bool
	}{
		{ErrNotConnected, true},
		{&ForbiddenOperationError{Pattern: "DROP"}, true},
		{&ExtensionUnavailableError{Extension: "pg_stat_statements"}, true},
		{&ConnectionError{Err: errors.New("refused")}, true},
		{&QueryError{Err: errors.New("boom")}, true},
		{fmt.Errorf("wrapped: %w", ErrNotConnected), true},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := isEngineError(tc.err); got != tc.want {
			t.Fatalf("isEngineError(%v): expected %v, got %v", tc.err, tc.want, got)
		}
	}
}

func TestErrorMessage_AppendsRemedyGuidance(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	msg := p.errorMessage(errors.New("ERROR: permission denied for table secrets"))
	if !strings.Contains(msg, "permission denied for table secrets") {
		t.Fatalf("expected original message preserved, got %q", msg)
	}
	if !strings.Contains(msg, "SELECT privilege") {
		t.Fatalf("expected remediation guidance appended, got %q", msg)
	}
}

func TestErrorMessage_NoGuidanceForUnknownErrors(t *testing.T) {
	t.Parallel()
	p := newTestEngine(t, Config{})
	msg := p.errorMessage(errors.New("ERROR: division by zero"))
	if msg != "ERROR: division by zero" {
		t.Fatalf("expected message unchanged, got %q", msg)
	}
}

func TestErrorMessage_OperatorRules(t *testing.T) {
	t.Parallel()
	config := Config{
		ErrorPrompts: []ErrorPromptRule{
			{Pattern: `relation .* does not exist`, Message: "Check the schema with database_overview."},
		},
	}
	p := newTestEngine(t, config)
	msg := p.errorMessage(errors.New(`ERROR: relation "usrs" does not exist`))
	if !strings.Contains(msg, "database_overview") {
		t.Fatalf("expected operator guidance appended, got %q", msg)
	}
}

// --- Error Types ---

func TestErrorTypes_MessagesAndUnwrap(t *testing.T) {
	t.Parallel()

	forbidden := &ForbiddenOperationError{Pattern: "TRUNCATE"}
	if !strings.Contains(forbidden.Error(), `"TRUNCATE"`) {
		t.Fatalf("expected pattern in message, got %q", forbidden.Error())
	}

	unavailable := &ExtensionUnavailableError{Extension: "pg_stat_statements", Remedy: "Enable it."}
	if !strings.Contains(unavailable.Error(), "pg_stat_statements") || !strings.Contains(unavailable.Error(), "Enable it.") {
		t.Fatalf("expected extension and remedy in message, got %q", unavailable.Error())
	}

	inner := errors.New("tcp refused")
	connErr := &ConnectionError{Err: inner}
	if !errors.Is(connErr, inner) {
		t.Fatal("expected ConnectionError to unwrap")
	}

	queryErr := &QueryError{Err: inner}
	if !errors.Is(queryErr, inner) {
		t.Fatal("expected QueryError to unwrap")
	}
}
