// Package pgtuner provides PostgreSQL introspection, read-only query
// execution, and rule-based performance heuristics for AI agents through
// the Model Context Protocol (MCP).
//
// It exposes connection management (connect, disconnect), safe query
// execution (run_query), EXPLAIN-driven analysis (explain_query,
// query_cost, suggest_indexes), catalog statistics reporting
// (slow_queries, unused_indexes, duplicate_indexes, table_bloat,
// database_health), and schema introspection (describe_table,
// get_foreign_keys, list_indexes, get_constraints, table_stats,
// database_overview).
//
// Safety is layered: a textual forbidden-keyword validator rejects
// mutation and DDL statements before any network round-trip, an AST pass
// using PostgreSQL's actual C parser via pg_query enforces single
// read-only statements, and every pooled connection runs with
// default_transaction_read_only = on so the database itself is the final
// boundary. All reads run inside their own read-only transaction that is
// rolled back on every exit path.
//
// # Library Usage
//
//	p, err := pgtuner.New(pgtuner.Config{
//		Pool:  pgtuner.PoolConfig{MaxConns: 5},
//		Query: pgtuner.QueryConfig{DefaultTimeoutSeconds: 30},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	if err := p.Connect(ctx, pgtuner.ConnectInput{
//		Host: "localhost", Database: "app", User: "readonly", Password: "…",
//	}); err != nil {
//		log.Fatal(err)
//	}
//
//	out, err := p.RunQuery(ctx, pgtuner.RunQueryInput{SQL: "SELECT * FROM users"})
//
//	// Or register everything as MCP tools:
//	pgtuner.RegisterMCPTools(mcpServer, p)
//
// Plan analysis is heuristic and non-authoritative: warnings and index
// suggestions are produced by fixed rules over EXPLAIN (FORMAT JSON)
// output and never consult the index catalogs themselves.
package pgtuner
