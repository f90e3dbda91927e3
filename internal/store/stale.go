package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/schema"
)

// ListStale returns catalog ids of game whose price is missing, empty or
// older than days, oldest first. limit <= 0 means no limit.
func (s *Store) ListStale(ctx context.Context, p *schema.Profile, game model.Game, days, limit int) ([]string, error) {
	st, err := buildStale(p, game, days, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("list stale %s: %w", game.Key, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stale %s: %w", game.Key, err)
	}
	return ids, nil
}

func buildStale(p *schema.Profile, game model.Game, days, limit int) (statement, error) {
	if !schema.ValidTable(game.CatalogTable) {
		return statement{}, fmt.Errorf("catalog table name %q for %s is not allowed", game.CatalogTable, game.Key)
	}
	if days < 0 {
		days = 0
	}

	id := "p." + schema.MustQuote(p.IDColumn)
	join := fmt.Sprintf("%s::text = c.id::text", id)
	var args []any
	if p.HasGameColumn() {
		args = append(args, p.GameValue)
		join += fmt.Sprintf(" AND p.%s = $%d", schema.MustQuote(schema.ColGame), len(args))
	}

	conds := []string{id + " IS NULL"}
	if p.Has(schema.ColSampleCount) {
		conds = append(conds, "p."+schema.MustQuote(schema.ColSampleCount)+" = 0")
	}
	order := "c.id"
	if p.RefreshColumn != "" {
		ts := "p." + schema.MustQuote(p.RefreshColumn)
		args = append(args, days)
		conds = append(conds,
			ts+" IS NULL",
			fmt.Sprintf("%s < now() - make_interval(days => $%d::int)", ts, len(args)))
		order = ts + " ASC NULLS FIRST, c.id"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT c.id::text FROM %s c LEFT JOIN %s p ON %s WHERE %s ORDER BY %s",
		schema.MustQuote(game.CatalogTable), schema.MustQuote(p.Table), join,
		strings.Join(conds, " OR "), order)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return statement{SQL: b.String(), Args: args}, nil
}
