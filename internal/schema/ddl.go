package schema

import (
	"fmt"

	"github.com/guarzo/tcgcomps/internal/model"
)

// createTableSQL returns the canonical DDL for layout. table must already
// have passed ValidTable.
func createTableSQL(table string, layout model.Layout) string {
	name := MustQuote(table)
	switch layout {
	case model.LayoutRich:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	card_id      text PRIMARY KEY,
	low          numeric(12,2),
	median       numeric(12,2),
	high         numeric(12,2),
	sample_count integer NOT NULL DEFAULT 0,
	currency     text,
	method       text,
	query        text,
	sample_url   text,
	last_run     timestamptz,
	updated_at   timestamptz NOT NULL DEFAULT now()
)`, name)
	default:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	game         text NOT NULL,
	card_id      text NOT NULL,
	median       numeric(12,2),
	sample_count integer NOT NULL DEFAULT 0,
	currency     text,
	sample_url   text,
	updated_at   timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (game, card_id)
)`, name)
	}
}
