// Package schema discovers the shape of each game's price table, creating
// it with a canonical layout when it does not exist yet.
package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/guarzo/tcgcomps/internal/model"
)

// Querier is the subset of *pgxpool.Pool the database code uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Adapter resolves and caches one Profile per game.
type Adapter struct {
	db     Querier
	logger logrus.FieldLogger

	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewAdapter creates a schema adapter.
func NewAdapter(db Querier, logger logrus.FieldLogger) *Adapter {
	return &Adapter{
		db:       db,
		logger:   logger,
		profiles: make(map[string]*Profile),
	}
}

// Resolve returns the profile of game's price table, creating the table
// first if needed. The result is cached for the life of the adapter.
func (a *Adapter) Resolve(ctx context.Context, game model.Game) (*Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.profiles[game.Key]; ok {
		return p, nil
	}

	if !ValidTable(game.PriceTable) {
		return nil, fmt.Errorf("price table name %q for %s is not allowed", game.PriceTable, game.Key)
	}

	if _, err := a.db.Exec(ctx, createTableSQL(game.PriceTable, game.Layout)); err != nil {
		return nil, fmt.Errorf("create %s: %w", game.PriceTable, err)
	}

	types, err := TableColumns(ctx, a.db, game.PriceTable)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(types))
	for c := range types {
		cols[c] = true
	}
	idCol, ok := chooseIDColumn(cols)
	if !ok {
		return nil, fmt.Errorf("%s has no id column (want one of %v)", game.PriceTable, IDColumns)
	}

	indexes, err := a.uniqueIndexes(ctx, game.PriceTable)
	if err != nil {
		return nil, err
	}

	hasGame := cols[ColGame]
	keys, hasUnique := chooseKey(idCol, hasGame, indexes)

	p := &Profile{
		Game:       game.Key,
		Table:      game.PriceTable,
		IDColumn:   idCol,
		IDType:     castFor(types[idCol]),
		KeyColumns: keys,
		HasUnique:  hasUnique,
		Columns:    cols,
	}
	if hasGame {
		p.GameValue = game.Discriminator
		if p.GameValue == "" {
			p.GameValue = game.Key
		}
	}
	for _, c := range TimestampColumns {
		if cols[c] {
			p.RefreshColumn = c
			break
		}
	}

	a.logger.WithFields(logrus.Fields{
		"game":       game.Key,
		"table":      p.Table,
		"id_column":  p.IDColumn,
		"keys":       p.KeyColumns,
		"has_unique": p.HasUnique,
		"refresh":    p.RefreshColumn,
	}).Debug("Resolved price table profile")

	a.profiles[game.Key] = p
	return p, nil
}

const columnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`

// TableColumns returns the columns of table in the current schema mapped to
// their data types. A table that does not exist is an error.
func TableColumns(ctx context.Context, db Querier, table string) (map[string]string, error) {
	rows, err := db.Query(ctx, columnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("introspect columns of %s: %w", table, err)
	}
	defer rows.Close()

	types := make(map[string]string)
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		types[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect columns of %s: %w", table, err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("table %s not found in current schema", table)
	}
	return types, nil
}

// Partial and expression indexes cannot serve as a plain ON CONFLICT target.
const uniqueIndexesSQL = `SELECT ic.relname::text, array_agg(a.attname::text ORDER BY k.ord)
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_class ic ON ic.oid = i.indexrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
WHERE c.relname = $1
  AND n.nspname = current_schema()
  AND i.indisunique
  AND i.indpred IS NULL
  AND i.indexprs IS NULL
GROUP BY ic.relname`

func (a *Adapter) uniqueIndexes(ctx context.Context, table string) ([]uniqueIndex, error) {
	rows, err := a.db.Query(ctx, uniqueIndexesSQL, table)
	if err != nil {
		return nil, fmt.Errorf("introspect unique indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var out []uniqueIndex
	for rows.Next() {
		var idx uniqueIndex
		if err := rows.Scan(&idx.Name, &idx.Columns); err != nil {
			return nil, fmt.Errorf("scan unique index of %s: %w", table, err)
		}
		out = append(out, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect unique indexes of %s: %w", table, err)
	}
	return out, nil
}
