package pgtuner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pgtuner/pgtuner-mcp/internal/advisor"
	"github.com/pgtuner/pgtuner-mcp/internal/plan"
)

// ExplainQuery runs EXPLAIN (FORMAT JSON) on the query and returns the
// raw plan together with the analyzer's warnings. With Analyze set the
// query is actually executed (inside the usual read-only transaction,
// which is rolled back) and the plan carries actual timings and buffers.
func (p *PgTuner) ExplainQuery(ctx context.Context, input ExplainInput) (*ExplainOutput, error) {
	startTime := time.Now()

	explain, raw, err := p.runExplain(ctx, input.SQL, input.Analyze)
	if err != nil {
		return nil, err
	}

	var rawPlan interface{}
	if err := json.Unmarshal(raw, &rawPlan); err != nil {
		return nil, &QueryError{Err: err}
	}

	warnings := advisor.ExtractWarnings(&explain.Plan)

	p.logger.Info().
		Str("sql", truncateForLog(input.SQL, 200)).
		Bool("analyze", input.Analyze).
		Dur("duration", time.Since(startTime)).
		Int("warning_count", len(warnings)).
		Msg("ExplainQuery executed")

	return &ExplainOutput{Plan: rawPlan, Warnings: warnings}, nil
}

// QueryCost returns the planner's cost estimates for a query without
// executing it.
func (p *PgTuner) QueryCost(ctx context.Context, input QueryCostInput) (*QueryCostOutput, error) {
	explain, _, err := p.runExplain(ctx, input.SQL, false)
	if err != nil {
		return nil, err
	}

	root := explain.Plan
	return &QueryCostOutput{
		NodeType:      root.NodeType,
		StartupCost:   root.StartupCost,
		TotalCost:     root.TotalCost,
		EstimatedRows: root.PlanRows,
		PlanningTime:  explain.PlanningTime,
		Warnings:      advisor.ExtractWarnings(&explain.Plan),
	}, nil
}

// SuggestIndexes runs EXPLAIN on the query and derives index suggestions
// from the plan. Suggestions are heuristic and never consult the index
// catalogs; use list_indexes or duplicate_indexes to cross-check.
func (p *PgTuner) SuggestIndexes(ctx context.Context, input SuggestIndexesInput) (*SuggestIndexesOutput, error) {
	schema := input.Schema
	if schema == "" {
		schema = DefaultSchema
	}

	explain, _, err := p.runExplain(ctx, input.SQL, false)
	if err != nil {
		return nil, err
	}

	suggestions := advisor.SuggestIndexes(&explain.Plan, schema)

	p.logger.Info().
		Str("sql", truncateForLog(input.SQL, 200)).
		Str("schema", schema).
		Int("suggestion_count", len(suggestions)).
		Msg("SuggestIndexes executed")

	return &SuggestIndexesOutput{Suggestions: suggestions}, nil
}

// runExplain validates the inner query, executes EXPLAIN (FORMAT JSON)
// inside a read-only transaction, and parses the plan tree.
func (p *PgTuner) runExplain(ctx context.Context, sql string, analyze bool) (*plan.Explain, []byte, error) {
	if err := p.validateReadOnly(sql); err != nil {
		return nil, nil, err
	}

	d, _ := p.timeoutMgr.Resolve(sql)

	var raw []byte
	err := p.withReadOnlyTx(ctx, d, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, explainSQL(sql, analyze)).Scan(&raw)
	})
	if err != nil {
		return nil, nil, err
	}

	explain, err := plan.Parse(raw)
	if err != nil {
		return nil, nil, &QueryError{Err: err}
	}
	return explain, raw, nil
}

// explainSQL prefixes the query with the EXPLAIN options used by this
// server. BUFFERS requires ANALYZE.
func explainSQL(sql string, analyze bool) string {
	if analyze {
		return "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) " + sql
	}
	return "EXPLAIN (FORMAT JSON) " + sql
}
