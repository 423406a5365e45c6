package pgtuner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// SQL for the catalog statistics reporters. All read-only, all
// parameterized; none of them require plan analysis.

const unusedIndexesSQL = `
SELECT
    s.schemaname,
    s.relname AS table_name,
    s.indexrelname AS index_name,
    pg_relation_size(s.indexrelid) AS size_bytes,
    pg_size_pretty(pg_relation_size(s.indexrelid)) AS size
FROM pg_catalog.pg_stat_user_indexes s
JOIN pg_catalog.pg_index i ON i.indexrelid = s.indexrelid
WHERE s.idx_scan = 0
  AND NOT i.indisunique
  AND NOT i.indisprimary
  AND s.schemaname = $1
ORDER BY pg_relation_size(s.indexrelid) DESC;
`

// Candidate pairs of indexes on the same table with the identical ordered
// column list. The OID inequality avoids self-pairs and emitting each pair
// twice at the SQL level; name ordering is normalized Go-side.
const duplicateIndexesSQL = `
SELECT
    n.nspname AS schema,
    ct.relname AS table_name,
    ca.relname AS index_a,
    cb.relname AS index_b,
    (
        SELECT string_agg(att.attname, ', ' ORDER BY k.ord)
        FROM unnest(a.indkey) WITH ORDINALITY AS k(attnum, ord)
        JOIN pg_catalog.pg_attribute att
            ON att.attrelid = a.indrelid AND att.attnum = k.attnum
    ) AS columns
FROM pg_catalog.pg_index a
JOIN pg_catalog.pg_index b
    ON a.indrelid = b.indrelid
    AND a.indexrelid < b.indexrelid
    AND a.indkey::text = b.indkey::text
JOIN pg_catalog.pg_class ca ON ca.oid = a.indexrelid
JOIN pg_catalog.pg_class cb ON cb.oid = b.indexrelid
JOIN pg_catalog.pg_class ct ON ct.oid = a.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = ct.relnamespace
WHERE n.nspname = $1
ORDER BY ct.relname, ca.relname;
`

const tableBloatSQL = `
SELECT schemaname, relname, n_live_tup, n_dead_tup
FROM pg_catalog.pg_stat_user_tables
WHERE schemaname = $1
ORDER BY n_dead_tup DESC
LIMIT 20;
`

const databaseSizeSQL = `
SELECT pg_database_size(current_database()),
       pg_size_pretty(pg_database_size(current_database()));
`

const connectionsSQL = `
SELECT COALESCE(state, 'unknown') AS state, count(*)::int
FROM pg_catalog.pg_stat_activity
WHERE datname = current_database()
GROUP BY state
ORDER BY state;
`

const maxConnectionsSQL = `
SELECT setting::int FROM pg_catalog.pg_settings WHERE name = 'max_connections';
`

// NULL when there has been no buffer activity yet; the caller renders
// that as the literal "N/A".
const cacheHitRatioSQL = `
SELECT round(100.0 * sum(blks_hit) / nullif(sum(blks_hit) + sum(blks_read), 0), 2)
FROM pg_catalog.pg_stat_database;
`

const txCountersSQL = `
SELECT COALESCE(sum(xact_commit), 0)::bigint, COALESCE(sum(xact_rollback), 0)::bigint
FROM pg_catalog.pg_stat_database
WHERE datname = current_database();
`

const statStatementsExistsSQL = `
SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_extension WHERE extname = 'pg_stat_statements');
`

const slowQueriesSQL = `
SELECT
    query,
    calls,
    total_exec_time,
    mean_exec_time,
    rows,
    CASE WHEN shared_blks_hit + shared_blks_read = 0 THEN 0
         ELSE round(100.0 * shared_blks_hit / (shared_blks_hit + shared_blks_read), 2)::float8
    END AS hit_pct
FROM pg_stat_statements
ORDER BY mean_exec_time DESC
LIMIT $1;
`

// UnusedIndexes reports indexes with a zero scan count. Unique and
// primary-key indexes are excluded: they exist for correctness, so
// "unused" does not imply removable.
func (p *PgTuner) UnusedIndexes(ctx context.Context, input SchemaInput) (*UnusedIndexesOutput, error) {
	schema := schemaOrDefault(input.Schema)

	entries := []UnusedIndexEntry{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, unusedIndexesSQL, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e UnusedIndexEntry
			if err := rows.Scan(&e.Schema, &e.Table, &e.Index, &e.SizeBytes, &e.Size); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("schema", schema).Int("index_count", len(entries)).Msg("UnusedIndexes executed")
	return &UnusedIndexesOutput{Indexes: entries}, nil
}

// DuplicateIndexes reports pairs of indexes on the same table covering the
// identical ordered column list. Each pair appears once, with the
// lexicographically earlier index name first; self-pairs are excluded.
func (p *PgTuner) DuplicateIndexes(ctx context.Context, input SchemaInput) (*DuplicateIndexesOutput, error) {
	schema := schemaOrDefault(input.Schema)

	pairs := []DuplicateIndexPair{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, duplicateIndexesSQL, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var pair DuplicateIndexPair
			if err := rows.Scan(&pair.Schema, &pair.Table, &pair.IndexA, &pair.IndexB, &pair.Columns); err != nil {
				return err
			}
			pairs = append(pairs, pair)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	pairs = normalizeIndexPairs(pairs)
	p.logger.Info().Str("schema", schema).Int("pair_count", len(pairs)).Msg("DuplicateIndexes executed")
	return &DuplicateIndexesOutput{Pairs: pairs}, nil
}

// normalizeIndexPairs orders each pair lexicographically, drops self-pairs
// and reversed duplicates, and sorts the result by table then index name.
func normalizeIndexPairs(pairs []DuplicateIndexPair) []DuplicateIndexPair {
	seen := make(map[string]bool, len(pairs))
	result := []DuplicateIndexPair{}
	for _, pair := range pairs {
		if pair.IndexA == pair.IndexB {
			continue
		}
		if pair.IndexA > pair.IndexB {
			pair.IndexA, pair.IndexB = pair.IndexB, pair.IndexA
		}
		key := pair.Schema + "\x00" + pair.Table + "\x00" + pair.IndexA + "\x00" + pair.IndexB
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, pair)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Table != result[j].Table {
			return result[i].Table < result[j].Table
		}
		if result[i].IndexA != result[j].IndexA {
			return result[i].IndexA < result[j].IndexA
		}
		return result[i].IndexB < result[j].IndexB
	})
	return result
}

// TableBloat reports the dead-to-live row ratio per table as a percentage,
// sorted by raw dead-row count descending, capped to the top 20 tables.
func (p *PgTuner) TableBloat(ctx context.Context, input SchemaInput) (*TableBloatOutput, error) {
	schema := schemaOrDefault(input.Schema)

	entries := []TableBloatEntry{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, tableBloatSQL, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e TableBloatEntry
			if err := rows.Scan(&e.Schema, &e.Table, &e.LiveTuples, &e.DeadTuples); err != nil {
				return err
			}
			e.BloatRatio = bloatRatio(e.LiveTuples, e.DeadTuples)
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("schema", schema).Int("table_count", len(entries)).Msg("TableBloat executed")
	return &TableBloatOutput{Tables: entries}, nil
}

// bloatRatio is the dead-to-live percentage rounded to two decimals,
// bounded to zero when there are no live rows.
func bloatRatio(live, dead int64) float64 {
	if live == 0 {
		return 0
	}
	return math.Round(float64(dead)/float64(live)*100*100) / 100
}

// DatabaseHealth fans out four independent sub-queries concurrently and
// merges them into one report. Partial failure of any sub-query fails the
// whole report.
//
// The sub-queries run directly on the pool rather than through
// withReadOnlyTx: a single transaction cannot span four concurrent pooled
// connections, and each autocommit statement is still read-only under the
// session's default_transaction_read_only = on.
func (p *PgTuner) DatabaseHealth(ctx context.Context) (*HealthOutput, error) {
	startTime := time.Now()

	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer p.releaseSlot()

	pool, err := p.getPool()
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, p.defaultTimeout())
	defer cancel()

	output := &HealthOutput{}
	g, gCtx := errgroup.WithContext(queryCtx)

	g.Go(func() error {
		return pool.QueryRow(gCtx, databaseSizeSQL).Scan(&output.SizeBytes, &output.DatabaseSize)
	})

	g.Go(func() error {
		rows, err := pool.Query(gCtx, connectionsSQL)
		if err != nil {
			return err
		}
		defer rows.Close()
		counts := []ConnectionStateCount{}
		for rows.Next() {
			var c ConnectionStateCount
			if err := rows.Scan(&c.State, &c.Count); err != nil {
				return err
			}
			counts = append(counts, c)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		output.Connections = counts
		return pool.QueryRow(gCtx, maxConnectionsSQL).Scan(&output.MaxConnections)
	})

	g.Go(func() error {
		var ratio *float64
		if err := pool.QueryRow(gCtx, cacheHitRatioSQL).Scan(&ratio); err != nil {
			return err
		}
		output.CacheHitRatio = formatCacheHitRatio(ratio)
		return nil
	})

	g.Go(func() error {
		return pool.QueryRow(gCtx, txCountersSQL).Scan(&output.Commits, &output.Rollbacks)
	})

	if err := g.Wait(); err != nil {
		return nil, &QueryError{Err: err}
	}

	p.logger.Info().Dur("duration", time.Since(startTime)).Msg("DatabaseHealth executed")
	return output, nil
}

// formatCacheHitRatio renders the buffer cache hit ratio as a percentage
// with two decimals, or the literal "N/A" when the aggregate is undefined
// (no buffer activity yet).
func formatCacheHitRatio(ratio *float64) string {
	if ratio == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *ratio)
}

// SlowQueries reports the slowest statements from pg_stat_statements. When
// the extension is not installed the error names it and carries the exact
// enabling commands.
func (p *PgTuner) SlowQueries(ctx context.Context, input SlowQueriesInput) (*SlowQueriesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSlowLimit
	}

	entries := []SlowQueryEntry{}
	err := p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		var available bool
		if err := tx.QueryRow(ctx, statStatementsExistsSQL).Scan(&available); err != nil {
			return err
		}
		if !available {
			return &ExtensionUnavailableError{
				Extension: "pg_stat_statements",
				Remedy:    "Enable it with: CREATE EXTENSION pg_stat_statements; and add pg_stat_statements to shared_preload_libraries in postgresql.conf (requires a server restart).",
			}
		}

		rows, err := tx.Query(ctx, slowQueriesSQL, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var e SlowQueryEntry
			if err := rows.Scan(&e.Query, &e.Calls, &e.TotalTimeMs, &e.MeanTimeMs, &e.RowsReturned, &e.HitPercentage); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Int("limit", limit).Int("query_count", len(entries)).Msg("SlowQueries executed")
	return &SlowQueriesOutput{Queries: entries}, nil
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return DefaultSchema
	}
	return schema
}
