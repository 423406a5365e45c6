package pgtuner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// SQL for schema introspection.

const detectTypeSQL = `
SELECT c.relkind
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.oid = $1::regclass;
`

const columnsSQL = `
SELECT
    c.column_name AS name,
    c.data_type AS type,
    CASE c.is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    COALESCE(c.column_default, '') AS default_val,
    CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = $1
        AND tc.table_name = $2
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = $1
    AND c.table_name = $2
ORDER BY c.ordinal_position;
`

// Materialized view columns live in pg_attribute; information_schema.columns
// does not cover matviews.
const matviewColumnsSQL = `
SELECT a.attname AS name,
       pg_catalog.format_type(a.atttypid, a.atttypmod) AS type,
       NOT a.attnotnull AS nullable,
       COALESCE(pg_catalog.pg_get_expr(d.adbin, d.adrelid), '') AS default_val
FROM pg_catalog.pg_attribute a
LEFT JOIN pg_catalog.pg_attrdef d ON (a.attrelid = d.adrelid AND a.attnum = d.adnum)
WHERE a.attrelid = $1::regclass
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attnum;
`

const viewDefSQL = `
SELECT pg_catalog.pg_get_viewdef($1::regclass, true) AS definition;
`

const indexesSQL = `
SELECT
    indexname AS name,
    indexdef AS definition,
    i.indisunique AS is_unique,
    i.indisprimary AS is_primary
FROM pg_catalog.pg_indexes pi
JOIN pg_catalog.pg_class c ON c.relname = pi.indexname AND c.relnamespace = (
    SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = pi.schemaname
)
JOIN pg_catalog.pg_index i ON i.indexrelid = c.oid
WHERE pi.schemaname = $1
  AND pi.tablename = $2
ORDER BY pi.indexname;
`

const constraintsSQL = `
SELECT
    con.conname AS name,
    CASE con.contype
        WHEN 'p' THEN 'PRIMARY KEY'
        WHEN 'f' THEN 'FOREIGN KEY'
        WHEN 'u' THEN 'UNIQUE'
        WHEN 'c' THEN 'CHECK'
        WHEN 'x' THEN 'EXCLUSION'
    END AS type,
    pg_catalog.pg_get_constraintdef(con.oid, true) AS definition
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
ORDER BY con.conname;
`

const foreignKeysSQL = `
SELECT
    con.conname AS name,
    (
        SELECT string_agg(a.attname, ', ' ORDER BY array_position(con.conkey, a.attnum))
        FROM pg_catalog.pg_attribute a
        WHERE a.attrelid = con.conrelid AND a.attnum = ANY(con.conkey)
    ) AS columns,
    fc.relname AS referenced_table,
    (
        SELECT string_agg(a.attname, ', ' ORDER BY array_position(con.confkey, a.attnum))
        FROM pg_catalog.pg_attribute a
        WHERE a.attrelid = con.confrelid AND a.attnum = ANY(con.confkey)
    ) AS referenced_columns,
    CASE con.confupdtype
        WHEN 'a' THEN 'NO ACTION'
        WHEN 'r' THEN 'RESTRICT'
        WHEN 'c' THEN 'CASCADE'
        WHEN 'n' THEN 'SET NULL'
        WHEN 'd' THEN 'SET DEFAULT'
    END AS on_update,
    CASE con.confdeltype
        WHEN 'a' THEN 'NO ACTION'
        WHEN 'r' THEN 'RESTRICT'
        WHEN 'c' THEN 'CASCADE'
        WHEN 'n' THEN 'SET NULL'
        WHEN 'd' THEN 'SET DEFAULT'
    END AS on_delete
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_class fc ON fc.oid = con.confrelid
WHERE con.contype = 'f'
  AND n.nspname = $1
  AND c.relname = $2
ORDER BY con.conname;
`

const tableStatsSQL = `
SELECT
    s.schemaname,
    s.relname,
    s.seq_scan,
    s.seq_tup_read,
    COALESCE(s.idx_scan, 0),
    COALESCE(s.idx_tup_fetch, 0),
    s.n_live_tup,
    s.n_dead_tup,
    pg_total_relation_size(s.relid),
    pg_size_pretty(pg_total_relation_size(s.relid)),
    s.last_vacuum,
    s.last_autovacuum,
    s.last_analyze
FROM pg_catalog.pg_stat_user_tables s
WHERE s.schemaname = $1
  AND s.relname = $2;
`

// DescribeTable returns columns, indexes, constraints, and foreign keys of
// a table in a single read-only transaction.
func (p *PgTuner) DescribeTable(ctx context.Context, input TableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()
	schema := schemaOrDefault(input.Schema)

	output := &DescribeTableOutput{
		Schema:      schema,
		Name:        input.Table,
		Columns:     []ColumnInfo{},
		Indexes:     []IndexInfo{},
		Constraints: []ConstraintInfo{},
		ForeignKeys: []ForeignKeyInfo{},
	}

	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		qualName := quoteIdent(schema) + "." + quoteIdent(input.Table)

		var relkind string
		if err := tx.QueryRow(ctx, detectTypeSQL, qualName).Scan(&relkind); err != nil {
			return fmt.Errorf("table not found: %s.%s: %w", schema, input.Table, err)
		}
		output.Type = relkindName(relkind)

		if relkind == "m" {
			if err := fetchMatviewColumns(ctx, tx, qualName, &output.Columns); err != nil {
				return err
			}
		} else {
			if err := fetchColumns(ctx, tx, schema, input.Table, &output.Columns); err != nil {
				return err
			}
		}

		if relkind == "v" || relkind == "m" {
			var def string
			if err := tx.QueryRow(ctx, viewDefSQL, qualName).Scan(&def); err != nil && err != pgx.ErrNoRows {
				return fmt.Errorf("failed to fetch view definition: %w", err)
			}
			output.Definition = def
		}

		if relkindHasIndexes(relkind) {
			if err := fetchIndexes(ctx, tx, schema, input.Table, &output.Indexes); err != nil {
				return err
			}
		}
		if relkindHasConstraints(relkind) {
			if err := fetchConstraints(ctx, tx, schema, input.Table, &output.Constraints); err != nil {
				return err
			}
			return fetchForeignKeys(ctx, tx, schema, input.Table, &output.ForeignKeys)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("schema", schema).
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Str("type", output.Type).
		Int("column_count", len(output.Columns)).
		Msg("DescribeTable executed")

	return output, nil
}

// ListIndexes returns all indexes of a table.
func (p *PgTuner) ListIndexes(ctx context.Context, input TableInput) (*ListIndexesOutput, error) {
	schema := schemaOrDefault(input.Schema)

	indexes := []IndexInfo{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		return fetchIndexes(ctx, tx, schema, input.Table, &indexes)
	})
	if err != nil {
		return nil, err
	}
	return &ListIndexesOutput{Indexes: indexes}, nil
}

// GetConstraints returns all constraints of a table.
func (p *PgTuner) GetConstraints(ctx context.Context, input TableInput) (*ConstraintsOutput, error) {
	schema := schemaOrDefault(input.Schema)

	constraints := []ConstraintInfo{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		return fetchConstraints(ctx, tx, schema, input.Table, &constraints)
	})
	if err != nil {
		return nil, err
	}
	return &ConstraintsOutput{Constraints: constraints}, nil
}

// GetForeignKeys returns all foreign keys of a table.
func (p *PgTuner) GetForeignKeys(ctx context.Context, input TableInput) (*ForeignKeysOutput, error) {
	schema := schemaOrDefault(input.Schema)

	fks := []ForeignKeyInfo{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		return fetchForeignKeys(ctx, tx, schema, input.Table, &fks)
	})
	if err != nil {
		return nil, err
	}
	return &ForeignKeysOutput{ForeignKeys: fks}, nil
}

// TableStats returns access and maintenance statistics for one table.
func (p *PgTuner) TableStats(ctx context.Context, input TableInput) (*TableStatsOutput, error) {
	schema := schemaOrDefault(input.Schema)

	output := &TableStatsOutput{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		var lastVacuum, lastAutovacuum, lastAnalyze *time.Time
		err := tx.QueryRow(ctx, tableStatsSQL, schema, input.Table).Scan(
			&output.Schema, &output.Table,
			&output.SeqScans, &output.SeqTuplesRead,
			&output.IndexScans, &output.IndexTuples,
			&output.LiveTuples, &output.DeadTuples,
			&output.TotalSizeBytes, &output.TotalSize,
			&lastVacuum, &lastAutovacuum, &lastAnalyze,
		)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("table not found: %s.%s", schema, input.Table)
		}
		if err != nil {
			return err
		}
		output.LastVacuum = formatTimestamp(lastVacuum)
		output.LastAutovacuum = formatTimestamp(lastAutovacuum)
		output.LastAnalyze = formatTimestamp(lastAnalyze)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output, nil
}

func fetchColumns(ctx context.Context, tx pgx.Tx, schema, table string, out *[]ColumnInfo) error {
	rows, err := tx.Query(ctx, columnsSQL, schema, table)
	if err != nil {
		return fmt.Errorf("failed to fetch columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default, &col.IsPrimaryKey); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		*out = append(*out, col)
	}
	return rows.Err()
}

func fetchMatviewColumns(ctx context.Context, tx pgx.Tx, qualName string, out *[]ColumnInfo) error {
	rows, err := tx.Query(ctx, matviewColumnsSQL, qualName)
	if err != nil {
		return fmt.Errorf("failed to fetch materialized view columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default); err != nil {
			return fmt.Errorf("failed to scan materialized view column: %w", err)
		}
		// Materialized views don't have primary keys.
		*out = append(*out, col)
	}
	return rows.Err()
}

func fetchIndexes(ctx context.Context, tx pgx.Tx, schema, table string, out *[]IndexInfo) error {
	rows, err := tx.Query(ctx, indexesSQL, schema, table)
	if err != nil {
		return fmt.Errorf("failed to fetch indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx IndexInfo
		if err := rows.Scan(&idx.Name, &idx.Definition, &idx.IsUnique, &idx.IsPrimary); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		*out = append(*out, idx)
	}
	return rows.Err()
}

func fetchConstraints(ctx context.Context, tx pgx.Tx, schema, table string, out *[]ConstraintInfo) error {
	rows, err := tx.Query(ctx, constraintsSQL, schema, table)
	if err != nil {
		return fmt.Errorf("failed to fetch constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var con ConstraintInfo
		if err := rows.Scan(&con.Name, &con.Type, &con.Definition); err != nil {
			return fmt.Errorf("failed to scan constraint: %w", err)
		}
		*out = append(*out, con)
	}
	return rows.Err()
}

func fetchForeignKeys(ctx context.Context, tx pgx.Tx, schema, table string, out *[]ForeignKeyInfo) error {
	rows, err := tx.Query(ctx, foreignKeysSQL, schema, table)
	if err != nil {
		return fmt.Errorf("failed to fetch foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKeyInfo
		if err := rows.Scan(&fk.Name, &fk.Columns, &fk.ReferencedTable, &fk.ReferencedColumns, &fk.OnUpdate, &fk.OnDelete); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		*out = append(*out, fk)
	}
	return rows.Err()
}

// relkindName maps pg_class.relkind codes to human-readable type names.
func relkindName(relkind string) string {
	switch relkind {
	case "r":
		return "table"
	case "v":
		return "view"
	case "m":
		return "materialized_view"
	case "f":
		return "foreign_table"
	case "p":
		return "partitioned_table"
	default:
		return "unknown"
	}
}

// relkindHasIndexes: tables, partitioned tables, and materialized views
// carry indexes; plain and foreign views do not.
func relkindHasIndexes(relkind string) bool {
	return relkind == "r" || relkind == "p" || relkind == "m"
}

// relkindHasConstraints: only tables and partitioned tables carry
// constraints and foreign keys.
func relkindHasConstraints(relkind string) bool {
	return relkind == "r" || relkind == "p"
}

// formatTimestamp renders an optional timestamp as RFC3339, nil when absent.
func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// quoteIdent escapes a SQL identifier for safe use in $1::regclass.
// Doubles embedded double-quotes and wraps in double-quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
