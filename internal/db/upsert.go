package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertRow inserts a single row, updating all non-key columns when a row
// with the same conflict keys already exists. Values are passed positionally
// in the same order as columns.
func UpsertRow(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, values []any) error {
	if len(columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(columns) != len(values) {
		return eris.Errorf("db: upsert: %d columns but %d values", len(columns), len(values))
	}
	if len(conflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}

	sql := buildUpsertSQL(table, columns, conflictKeys)
	if _, err := pool.Exec(ctx, sql, values...); err != nil {
		return eris.Wrapf(err, "db: upsert into %s", table)
	}

	return nil
}

func buildUpsertSQL(table string, columns, conflictKeys []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	keySet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = true
	}

	var setClauses []string
	for _, col := range columns {
		if keySet[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	conflictAction := "DO NOTHING"
	if len(setClauses) > 0 {
		conflictAction = "DO UPDATE SET " + strings.Join(setClauses, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		conflictAction,
	)
}

// sanitizeTable handles schema-qualified table names like "isolysis.analyses".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
