package pgtuner

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers every tool on the given MCP server.
//
// Tool failures are returned as tool-result errors, never as protocol
// errors: the agent is expected to read the message (including any
// remediation guidance) and adjust.
func RegisterMCPTools(mcpServer *server.MCPServer, tuner *PgTuner) {
	registerConnectionTools(mcpServer, tuner)
	registerQueryTools(mcpServer, tuner)
	registerReportTools(mcpServer, tuner)
	registerSchemaTools(mcpServer, tuner)
}

func registerConnectionTools(mcpServer *server.MCPServer, tuner *PgTuner) {
	// Connect tool
	connectTool := mcp.NewTool("connect",
		mcp.WithDescription("Connect to a PostgreSQL database. Replaces any existing connection; the previous connection stays active if this one fails."),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Database host"),
		),
		mcp.WithNumber("port",
			mcp.Description("Database port (defaults to 5432)"),
		),
		mcp.WithString("database",
			mcp.Required(),
			mcp.Description("Database name"),
		),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Database user"),
		),
		mcp.WithString("password",
			mcp.Description("Database password"),
		),
		mcp.WithBoolean("ssl",
			mcp.Description("Require SSL (sslmode=require); plaintext otherwise"),
		),
	)

	mcpServer.AddTool(connectTool, tuner.loggedToolHandler("connect", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		host, err := req.RequireString("host")
		if err != nil {
			return mcp.NewToolResultError("host parameter is required"), nil
		}
		database, err := req.RequireString("database")
		if err != nil {
			return mcp.NewToolResultError("database parameter is required"), nil
		}
		user, err := req.RequireString("user")
		if err != nil {
			return mcp.NewToolResultError("user parameter is required"), nil
		}

		input := ConnectInput{
			Host:     host,
			Port:     req.GetInt("port", 0),
			Database: database,
			User:     user,
			Password: req.GetString("password", ""),
			SSL:      req.GetBool("ssl", false),
		}
		if err := tuner.Connect(ctx, input); err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		info, _ := tuner.ConnInfo()
		return marshalToolResult(info)
	}))

	// Disconnect tool
	disconnectTool := mcp.NewTool("disconnect",
		mcp.WithDescription("Close the current database connection."),
	)

	mcpServer.AddTool(disconnectTool, tuner.loggedToolHandler("disconnect", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := tuner.Disconnect(ctx); err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return mcp.NewToolResultText(`{"disconnected": true}`), nil
	}))
}

func registerQueryTools(mcpServer *server.MCPServer, tuner *PgTuner) {
	// RunQuery tool
	runQueryTool := mcp.NewTool("run_query",
		mcp.WithDescription("Execute a read-only SQL query. Mutation statements are rejected; SELECTs without a LIMIT get one appended."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL query to execute (SELECT, EXPLAIN, or SHOW)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows to return (defaults to 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(runQueryTool, tuner.loggedToolHandler("run_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		output, err := tuner.RunQuery(ctx, RunQueryInput{SQL: sql, Limit: req.GetInt("limit", 0)})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// ExplainQuery tool
	explainTool := mcp.NewTool("explain_query",
		mcp.WithDescription("Run EXPLAIN (FORMAT JSON) on a query and flag potential performance problems (large sequential scans, expensive sorts, oversized nested loops)."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The query to explain"),
		),
		mcp.WithBoolean("analyze",
			mcp.Description("Actually execute the query (EXPLAIN ANALYZE, BUFFERS) for real timings; the transaction is rolled back"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(explainTool, tuner.loggedToolHandler("explain_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		output, err := tuner.ExplainQuery(ctx, ExplainInput{SQL: sql, Analyze: req.GetBool("analyze", false)})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// QueryCost tool
	queryCostTool := mcp.NewTool("query_cost",
		mcp.WithDescription("Return the planner's cost estimates (startup cost, total cost, estimated rows) for a query without executing it."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The query to estimate"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryCostTool, tuner.loggedToolHandler("query_cost", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		output, err := tuner.QueryCost(ctx, QueryCostInput{SQL: sql})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// SuggestIndexes tool
	suggestTool := mcp.NewTool("suggest_indexes",
		mcp.WithDescription("Derive heuristic index suggestions from a query's execution plan. Suggestions do not consult existing indexes; cross-check with list_indexes."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The query to analyze"),
		),
		mcp.WithString("schema",
			mcp.Description("Schema used in generated CREATE INDEX statements (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(suggestTool, tuner.loggedToolHandler("suggest_indexes", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		output, err := tuner.SuggestIndexes(ctx, SuggestIndexesInput{SQL: sql, Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))
}

func registerReportTools(mcpServer *server.MCPServer, tuner *PgTuner) {
	// SlowQueries tool
	slowQueriesTool := mcp.NewTool("slow_queries",
		mcp.WithDescription("List the slowest queries by mean execution time from pg_stat_statements. Requires the pg_stat_statements extension."),
		mcp.WithNumber("limit",
			mcp.Description("Number of queries to return (defaults to 10)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(slowQueriesTool, tuner.loggedToolHandler("slow_queries", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.SlowQueries(ctx, SlowQueriesInput{Limit: req.GetInt("limit", 0)})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// UnusedIndexes tool
	unusedTool := mcp.NewTool("unused_indexes",
		mcp.WithDescription("List indexes with zero recorded scans. Unique and primary-key indexes are excluded since they enforce correctness."),
		mcp.WithString("schema",
			mcp.Description("Schema to inspect (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(unusedTool, tuner.loggedToolHandler("unused_indexes", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.UnusedIndexes(ctx, SchemaInput{Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// DuplicateIndexes tool
	duplicateTool := mcp.NewTool("duplicate_indexes",
		mcp.WithDescription("Find pairs of indexes on the same table covering the identical ordered column list."),
		mcp.WithString("schema",
			mcp.Description("Schema to inspect (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(duplicateTool, tuner.loggedToolHandler("duplicate_indexes", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.DuplicateIndexes(ctx, SchemaInput{Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// TableBloat tool
	bloatTool := mcp.NewTool("table_bloat",
		mcp.WithDescription("Estimate table bloat from dead-to-live row ratios (pg_stat_user_tables). Returns the top 20 tables by dead rows."),
		mcp.WithString("schema",
			mcp.Description("Schema to inspect (defaults to 'public')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(bloatTool, tuner.loggedToolHandler("table_bloat", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.TableBloat(ctx, SchemaInput{Schema: req.GetString("schema", "")})
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// DatabaseHealth tool
	healthTool := mcp.NewTool("database_health",
		mcp.WithDescription("Report database size, connection counts by state, cache hit ratio, and transaction commit/rollback counters."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(healthTool, tuner.loggedToolHandler("database_health", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.DatabaseHealth(ctx)
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))

	// Overview tool
	overviewTool := mcp.NewTool("database_overview",
		mcp.WithDescription("Show the current connection parameters and every user schema with its tables."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(overviewTool, tuner.loggedToolHandler("database_overview", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := tuner.Overview(ctx)
		if err != nil {
			return mcp.NewToolResultError(tuner.errorMessage(err)), nil
		}
		return marshalToolResult(output)
	}))
}

func registerSchemaTools(mcpServer *server.MCPServer, tuner *PgTuner) {
	type tableTool struct {
		name        string
		description string
		call        func(ctx context.Context, input TableInput) (interface{}, error)
	}

	tools := []tableTool{
		{
			name:        "describe_table",
			description: "Describe a table: columns, indexes, constraints, and foreign keys.",
			call: func(ctx context.Context, input TableInput) (interface{}, error) {
				return tuner.DescribeTable(ctx, input)
			},
		},
		{
			name:        "list_indexes",
			description: "List all indexes of a table with their definitions.",
			call: func(ctx context.Context, input TableInput) (interface{}, error) {
				return tuner.ListIndexes(ctx, input)
			},
		},
		{
			name:        "get_constraints",
			description: "List all constraints of a table (primary key, foreign key, unique, check, exclusion).",
			call: func(ctx context.Context, input TableInput) (interface{}, error) {
				return tuner.GetConstraints(ctx, input)
			},
		},
		{
			name:        "get_foreign_keys",
			description: "List all foreign keys of a table with referenced columns and ON UPDATE/DELETE actions.",
			call: func(ctx context.Context, input TableInput) (interface{}, error) {
				return tuner.GetForeignKeys(ctx, input)
			},
		},
		{
			name:        "table_stats",
			description: "Report access statistics for a table: scan counts, tuple counts, total size, and last vacuum/analyze times.",
			call: func(ctx context.Context, input TableInput) (interface{}, error) {
				return tuner.TableStats(ctx, input)
			},
		},
	}

	for _, tt := range tools {
		tt := tt
		tool := mcp.NewTool(tt.name,
			mcp.WithDescription(tt.description),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description("The table name"),
			),
			mcp.WithString("schema",
				mcp.Description("The schema name (defaults to 'public')"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
		)

		mcpServer.AddTool(tool, tuner.loggedToolHandler(tt.name, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			table, err := req.RequireString("table")
			if err != nil {
				return mcp.NewToolResultError("table parameter is required"), nil
			}
			output, err := tt.call(ctx, TableInput{Table: table, Schema: req.GetString("schema", "")})
			if err != nil {
				return mcp.NewToolResultError(tuner.errorMessage(err)), nil
			}
			return marshalToolResult(output)
		}))
	}
}

// marshalToolResult renders a tool's output struct as a JSON text result.
func marshalToolResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal tool result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *PgTuner) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
