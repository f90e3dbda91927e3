package schema

import "slices"

// Profile describes how to write one game's prices into its table.
// It is built once per run by Adapter.Resolve and never modified.
type Profile struct {
	Game  string
	Table string
	// IDColumn holds the card id; IDType is the SQL type id parameters are cast to.
	IDColumn string
	IDType   string
	// KeyColumns identify a row. When HasUnique is false there is no unique
	// constraint over them and writes fall back to update-then-insert.
	KeyColumns []string
	HasUnique  bool
	// Columns is every column present on the table.
	Columns map[string]bool
	// GameValue is written to the game column when the table has one.
	GameValue string
	// RefreshColumn is the timestamp used for staleness, "" when none exists.
	RefreshColumn string
}

// Has reports whether the table has column name.
func (p *Profile) Has(name string) bool {
	return p.Columns[name]
}

// HasGameColumn reports whether rows are discriminated by game.
func (p *Profile) HasGameColumn() bool {
	return p.Columns[ColGame]
}

// IsKey reports whether name is one of the key columns.
func (p *Profile) IsKey(name string) bool {
	return slices.Contains(p.KeyColumns, name)
}
