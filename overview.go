package pgtuner

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const schemaTablesSQL = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
  AND table_schema NOT LIKE 'pg_toast%'
ORDER BY table_schema, table_name;
`

// Overview returns the active connection parameters together with every
// user schema and its tables. Tables, views, and foreign tables all
// appear; system schemas are excluded.
func (p *PgTuner) Overview(ctx context.Context) (*OverviewOutput, error) {
	startTime := time.Now()

	info, err := p.ConnInfo()
	if err != nil {
		return nil, err
	}

	schemas := map[string][]string{}
	err = p.withReadOnlyTx(ctx, p.defaultTimeout(), func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, schemaTablesSQL)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var schema, table string
			if err := rows.Scan(&schema, &table); err != nil {
				return err
			}
			schemas[schema] = append(schemas[schema], table)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("schema_count", len(schemas)).
		Msg("Overview executed")

	return &OverviewOutput{Connection: info, Schemas: schemas}, nil
}
