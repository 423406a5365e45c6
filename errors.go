package pgtuner

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by every data operation attempted before a
// successful Connect (or after Disconnect).
var ErrNotConnected = errors.New("not connected to a database: call the connect tool first")

// ForbiddenOperationError is returned by the safety validator when a query
// contains a forbidden mutation/DDL keyword outside comments.
type ForbiddenOperationError struct {
	Pattern string
}

func (e *ForbiddenOperationError) Error() string {
	return fmt.Sprintf("query contains forbidden operation %q: only read-only queries are allowed", e.Pattern)
}

// ExtensionUnavailableError is returned when a reporting query depends on a
// PostgreSQL extension that is not installed. Remedy carries the exact
// commands needed to enable it.
type ExtensionUnavailableError struct {
	Extension string
	Remedy    string
}

func (e *ExtensionUnavailableError) Error() string {
	return fmt.Sprintf("extension %q is not available. %s", e.Extension, e.Remedy)
}

// ConnectionError wraps pool creation / authentication / network failures
// during Connect.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to database: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps an underlying database error raised during execution or
// plan retrieval. The enclosing transaction has already been rolled back by
// the time a QueryError is returned.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
