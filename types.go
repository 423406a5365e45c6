package pgtuner

import "github.com/pgtuner/pgtuner-mcp/internal/advisor"

// ConnectInput is the input for the Connect tool.
type ConnectInput struct {
	Host     string `json:"host"`
	Port     int    `json:"port"` // 0 means 5432
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSL      bool   `json:"ssl"`
}

// ConnectionInfo describes the currently active connection.
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	SSL      bool   `json:"ssl"`
}

// RunQueryInput is the input for the RunQuery tool.
type RunQueryInput struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"` // 0 means the configured default (100)
}

// RunQueryOutput is the output of the RunQuery tool.
type RunQueryOutput struct {
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"row_count"`
}

// ExplainInput is the input for the ExplainQuery tool.
type ExplainInput struct {
	SQL     string `json:"sql"`
	Analyze bool   `json:"analyze"`
}

// ExplainOutput is the output of the ExplainQuery tool. Plan carries the
// raw EXPLAIN (FORMAT JSON) output so agents can inspect every annotation;
// Warnings are the analyzer's findings in traversal order.
type ExplainOutput struct {
	Plan     interface{} `json:"plan"`
	Warnings []string    `json:"warnings"`
}

// QueryCostInput is the input for the QueryCost tool.
type QueryCostInput struct {
	SQL string `json:"sql"`
}

// QueryCostOutput summarizes planner cost estimates for a query.
type QueryCostOutput struct {
	NodeType      string   `json:"node_type"`
	StartupCost   float64  `json:"startup_cost"`
	TotalCost     float64  `json:"total_cost"`
	EstimatedRows int64    `json:"estimated_rows"`
	PlanningTime  float64  `json:"planning_time_ms,omitempty"`
	Warnings      []string `json:"warnings"`
}

// SuggestIndexesInput is the input for the SuggestIndexes tool.
type SuggestIndexesInput struct {
	SQL    string `json:"sql"`
	Schema string `json:"schema"` // "" means "public"
}

// SuggestIndexesOutput is the output of the SuggestIndexes tool.
// Suggestions are not deduplicated across plan nodes: the same
// table/column combination reachable from multiple nodes appears once
// per node.
type SuggestIndexesOutput struct {
	Suggestions []advisor.IndexSuggestion `json:"suggestions"`
}

// SlowQueriesInput is the input for the SlowQueries tool.
type SlowQueriesInput struct {
	Limit int `json:"limit"` // 0 means 10
}

// SlowQueryEntry is one row from pg_stat_statements.
type SlowQueryEntry struct {
	Query         string  `json:"query"`
	Calls         int64   `json:"calls"`
	TotalTimeMs   float64 `json:"total_time_ms"`
	MeanTimeMs    float64 `json:"mean_time_ms"`
	RowsReturned  int64   `json:"rows_returned"`
	HitPercentage float64 `json:"cache_hit_pct"`
}

// SlowQueriesOutput is the output of the SlowQueries tool.
type SlowQueriesOutput struct {
	Queries []SlowQueryEntry `json:"queries"`
}

// SchemaInput selects a schema for the statistics reporters.
type SchemaInput struct {
	Schema string `json:"schema"` // "" means "public"
}

// UnusedIndexEntry is an index with zero recorded scans. Unique and
// primary-key indexes are excluded: they exist for correctness, so a zero
// scan count does not imply they are removable.
type UnusedIndexEntry struct {
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Index     string `json:"index"`
	SizeBytes int64  `json:"size_bytes"`
	Size      string `json:"size"`
}

// UnusedIndexesOutput is the output of the UnusedIndexes tool.
type UnusedIndexesOutput struct {
	Indexes []UnusedIndexEntry `json:"indexes"`
}

// DuplicateIndexPair is a pair of indexes on the same table covering the
// identical ordered column list. IndexA sorts lexicographically before
// IndexB.
type DuplicateIndexPair struct {
	Schema  string `json:"schema"`
	Table   string `json:"table"`
	IndexA  string `json:"index_a"`
	IndexB  string `json:"index_b"`
	Columns string `json:"columns"`
}

// DuplicateIndexesOutput is the output of the DuplicateIndexes tool.
type DuplicateIndexesOutput struct {
	Pairs []DuplicateIndexPair `json:"pairs"`
}

// TableBloatEntry reports dead-to-live row estimates for one table.
type TableBloatEntry struct {
	Schema     string  `json:"schema"`
	Table      string  `json:"table"`
	LiveTuples int64   `json:"live_tuples"`
	DeadTuples int64   `json:"dead_tuples"`
	BloatRatio float64 `json:"bloat_ratio"` // percentage, 0 when live_tuples is 0
}

// TableBloatOutput is the output of the TableBloat tool, sorted by raw
// dead-row count descending, capped to the top 20 tables.
type TableBloatOutput struct {
	Tables []TableBloatEntry `json:"tables"`
}

// ConnectionStateCount is one pg_stat_activity state bucket.
type ConnectionStateCount struct {
	State string `json:"state"`
	Count int    `json:"count"`
}

// HealthOutput is the merged database health report. CacheHitRatio is a
// percentage string rounded to two decimals, or the literal "N/A" when the
// underlying aggregate is undefined (no buffer activity yet).
type HealthOutput struct {
	DatabaseSize   string                 `json:"database_size"`
	SizeBytes      int64                  `json:"size_bytes"`
	Connections    []ConnectionStateCount `json:"connections"`
	MaxConnections int                    `json:"max_connections"`
	CacheHitRatio  string                 `json:"cache_hit_ratio"`
	Commits        int64                  `json:"commits"`
	Rollbacks      int64                  `json:"rollbacks"`
}

// TableInput selects a table (and optional schema) for introspection tools.
type TableInput struct {
	Table  string `json:"table"`
	Schema string `json:"schema"` // "" means "public"
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// IndexInfo describes a single index.
type IndexInfo struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	IsUnique   bool   `json:"is_unique"`
	IsPrimary  bool   `json:"is_primary"`
}

// ConstraintInfo describes a single constraint.
type ConstraintInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK, EXCLUSION
	Definition string `json:"definition"`
}

// ForeignKeyInfo describes a single foreign key.
type ForeignKeyInfo struct {
	Name              string `json:"name"`
	Columns           string `json:"columns"`
	ReferencedTable   string `json:"referenced_table"`
	ReferencedColumns string `json:"referenced_columns"`
	OnUpdate          string `json:"on_update"`
	OnDelete          string `json:"on_delete"`
}

// DescribeTableOutput is the output of the DescribeTable tool. Definition
// is set for views and materialized views only.
type DescribeTableOutput struct {
	Schema      string           `json:"schema"`
	Name        string           `json:"name"`
	Type        string           `json:"type"` // "table", "view", "materialized_view", "foreign_table", "partitioned_table"
	Definition  string           `json:"definition,omitempty"`
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	Constraints []ConstraintInfo `json:"constraints"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
}

// ListIndexesOutput is the output of the ListIndexes tool.
type ListIndexesOutput struct {
	Indexes []IndexInfo `json:"indexes"`
}

// ConstraintsOutput is the output of the GetConstraints tool.
type ConstraintsOutput struct {
	Constraints []ConstraintInfo `json:"constraints"`
}

// ForeignKeysOutput is the output of the GetForeignKeys tool.
type ForeignKeysOutput struct {
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
}

// TableStatsOutput reports access and maintenance statistics for one table
// from pg_stat_user_tables.
type TableStatsOutput struct {
	Schema         string  `json:"schema"`
	Table          string  `json:"table"`
	SeqScans       int64   `json:"seq_scans"`
	SeqTuplesRead  int64   `json:"seq_tuples_read"`
	IndexScans     int64   `json:"index_scans"`
	IndexTuples    int64   `json:"index_tuples_fetched"`
	LiveTuples     int64   `json:"live_tuples"`
	DeadTuples     int64   `json:"dead_tuples"`
	TotalSize      string  `json:"total_size"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	LastVacuum     *string `json:"last_vacuum,omitempty"`
	LastAutovacuum *string `json:"last_autovacuum,omitempty"`
	LastAnalyze    *string `json:"last_analyze,omitempty"`
}

// OverviewOutput is the on-demand read-only overview: the current
// connection info plus a mapping from each schema to its table list.
type OverviewOutput struct {
	Connection ConnectionInfo      `json:"connection"`
	Schemas    map[string][]string `json:"schemas"`
}
