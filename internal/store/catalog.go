package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/guarzo/tcgcomps/internal/model"
	"github.com/guarzo/tcgcomps/internal/schema"
)

// LoadCatalog reads every item of game's catalog. Only id and name are
// required; set and number columns are used when the table has them.
func (s *Store) LoadCatalog(ctx context.Context, game model.Game) ([]model.CatalogItem, error) {
	if !schema.ValidTable(game.CatalogTable) {
		return nil, fmt.Errorf("catalog table name %q for %s is not allowed", game.CatalogTable, game.Key)
	}
	types, err := schema.TableColumns(ctx, s.db, game.CatalogTable)
	if err != nil {
		return nil, err
	}
	sql, err := buildCatalog(game.CatalogTable, types)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", game.Key, err)
	}
	defer rows.Close()

	var items []model.CatalogItem
	for rows.Next() {
		item := model.CatalogItem{Game: game.Key}
		if err := rows.Scan(&item.ID, &item.Name, &item.SetCode, &item.SetName, &item.Number); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", game.Key, err)
	}
	return items, nil
}

// buildCatalog selects id, name, set code, set name and number, using ''
// for optional columns the table lacks.
func buildCatalog(table string, types map[string]string) (string, error) {
	for _, required := range []string{"id", schema.ColName} {
		if _, ok := types[required]; !ok {
			return "", fmt.Errorf("catalog %s has no %s column", table, required)
		}
	}

	pick := func(candidates ...string) string {
		for _, c := range candidates {
			if _, ok := types[c]; ok {
				return fmt.Sprintf("coalesce(%s::text, '')", schema.MustQuote(c))
			}
		}
		return "''"
	}

	cols := []string{
		`"id"::text`,
		fmt.Sprintf("coalesce(%s::text, '')", schema.MustQuote(schema.ColName)),
		pick(schema.ColSetCode, schema.ColSetNum),
		pick(schema.ColSetName),
		pick(schema.ColNumber, schema.ColCollectorNumber),
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY \"id\"", strings.Join(cols, ", "), schema.MustQuote(table)), nil
}
