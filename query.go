package pgtuner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pgtuner/pgtuner-mcp/internal/safety"
)

// RunQuery executes a validated read-only query and returns its rows.
// The query is rejected before any network round-trip if it contains a
// forbidden keyword; unbounded SELECTs get a row limit appended.
func (p *PgTuner) RunQuery(ctx context.Context, input RunQueryInput) (*RunQueryOutput, error) {
	startTime := time.Now()
	sql := input.SQL

	if len(sql) > p.config.Query.MaxSQLLength {
		return nil, fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength)
	}

	if err := p.validateReadOnly(sql); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = p.config.Query.DefaultRowLimit
	}
	sql = safety.EnsureLimit(sql, limit)

	d, timeoutRule := p.timeoutMgr.Resolve(sql)

	var output *RunQueryOutput
	err := p.withReadOnlyTx(ctx, d, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, sql)
		if err != nil {
			return err
		}
		output, err = collectRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	output.Rows = p.redactor.Rows(output.Rows)
	p.truncateIfNeeded(output)

	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", output.RowCount)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	logEvent.Msg("query executed")

	return output, nil
}

// validateReadOnly runs both safety layers: the textual forbidden-keyword
// scan first (its verdicts produce ForbiddenOperationError), then the AST
// pass for single-statement and statement-type enforcement.
func (p *PgTuner) validateReadOnly(sql string) error {
	if err := safety.CheckReadOnly(sql); err != nil {
		var fe *safety.ForbiddenError
		if errors.As(err, &fe) {
			return &ForbiddenOperationError{Pattern: fe.Pattern}
		}
		return err
	}
	return safety.CheckStatement(sql)
}

// collectRows reads all rows from pgx.Rows into a RunQueryOutput.
func collectRows(rows pgx.Rows) (*RunQueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RunQueryOutput{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return formatInterval(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea, xml — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

func formatInterval(val pgtype.Interval) string {
	parts := []string{}
	if val.Months != 0 {
		years := val.Months / 12
		months := val.Months % 12
		if years != 0 {
			parts = append(parts, fmt.Sprintf("%d year(s)", years))
		}
		if months != 0 {
			parts = append(parts, fmt.Sprintf("%d mon(s)", months))
		}
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		dur := time.Duration(val.Microseconds) * time.Microsecond
		parts = append(parts, dur.String())
	}
	if len(parts) == 0 {
		return "0"
	}
	result := parts[0]
	for _, part := range parts[1:] {
		result += " " + part
	}
	return result
}

// truncateIfNeeded truncates query output rows if their JSON rendering
// exceeds MaxResultLength characters.
func (p *PgTuner) truncateIfNeeded(output *RunQueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= p.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	output.Rows = []map[string]interface{}{
		{"truncated": string(runes[:p.config.Query.MaxResultLength]) + "...[truncated] Result is too long! Add limits in your query!"},
	}
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
